package controller

import (
	"picshare_backend/internal/service"
	"picshare_backend/internal/util"
	"strconv"

	"github.com/gin-gonic/gin"
)

type PictureController struct {
	PictureService *service.PictureService
}

func NewPictureController(pictureService *service.PictureService) *PictureController {
	return &PictureController{PictureService: pictureService}
}

// @Summary 上传图片
// @Tags 图片
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "图片文件"
// @Param title formData string false "标题"
// @Success 201 {object} util.Response
// @Router /pictures [post]
func (c *PictureController) Upload(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	fh, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}

	title := ctx.PostForm("title")

	picture, err := c.PictureService.UploadPicture(user.UserID, title, fh)
	if err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	util.Created(ctx, picture)
}

// @Summary 我的图片列表
// @Tags 图片
// @Security BearerAuth
// @Produce json
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response
// @Router /pictures [get]
func (c *PictureController) List(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	page := 1
	limit := 20
	if p := ctx.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}
	if l := ctx.Query("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			limit = v
		}
	}

	pictures, total, err := c.PictureService.ListPictures(user.UserID, page, limit)
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}

	util.Success(ctx, util.PageResponse{List: pictures, Total: total, Page: page, Limit: limit})
}

// @Summary 图片详情
// @Tags 图片
// @Security BearerAuth
// @Produce json
// @Param id path int true "图片ID"
// @Success 200 {object} util.Response
// @Router /pictures/{id} [get]
func (c *PictureController) Get(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	picture, err := c.PictureService.GetPicture(user.UserID, util.MustParseUint(ctx.Param("id")))
	if err != nil {
		c.renderOwnedError(ctx, err)
		return
	}

	util.Success(ctx, picture)
}

// @Summary 创建分享链接
// @Tags 图片
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "图片ID"
// @Param body body service.ShareRequest true "分享策略"
// @Success 200 {object} util.Response
// @Router /pictures/{id}/share [post]
func (c *PictureController) Share(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	var req service.ShareRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	picture, err := c.PictureService.SharePicture(user.UserID, util.MustParseUint(ctx.Param("id")), req)
	if err != nil {
		if err == util.ErrGameNotFound {
			util.BadRequest(ctx, err.Error())
			return
		}
		c.renderOwnedError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"shareToken": picture.ShareToken,
		"maxUnlocks": picture.MaxUnlocks,
		"expiresAt":  picture.ExpiresAt,
	})
}

// @Summary 撤销分享链接
// @Tags 图片
// @Security BearerAuth
// @Param id path int true "图片ID"
// @Success 200 {object} util.Response
// @Router /pictures/{id}/share [delete]
func (c *PictureController) Revoke(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	if err := c.PictureService.RevokeShare(user.UserID, util.MustParseUint(ctx.Param("id"))); err != nil {
		c.renderOwnedError(ctx, err)
		return
	}

	util.Success(ctx, nil)
}

// @Summary 分享明细（接收者状态与挑战记录）
// @Tags 图片
// @Security BearerAuth
// @Produce json
// @Param id path int true "图片ID"
// @Success 200 {object} util.Response
// @Router /pictures/{id}/audit [get]
func (c *PictureController) Audit(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	picture, recipients, views, err := c.PictureService.ShareAudit(user.UserID, util.MustParseUint(ctx.Param("id")))
	if err != nil {
		c.renderOwnedError(ctx, err)
		return
	}

	util.Success(ctx, gin.H{
		"picture":    picture,
		"recipients": recipients,
		"views":      views,
	})
}

func (c *PictureController) renderOwnedError(ctx *gin.Context, err error) {
	switch err {
	case util.ErrPictureNotFound:
		util.NotFound(ctx)
	case util.ErrPermissionDenied:
		util.Forbidden(ctx)
	default:
		util.LogInternalError(ctx, err)
	}
}
