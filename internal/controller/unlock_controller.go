package controller

import (
	"fmt"
	"net/http"
	"picshare_backend/internal/service"
	"picshare_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type UnlockController struct {
	UnlockService  *service.UnlockService
	PictureService *service.PictureService
}

func NewUnlockController(unlockService *service.UnlockService, pictureService *service.PictureService) *UnlockController {
	return &UnlockController{UnlockService: unlockService, PictureService: pictureService}
}

type StartChallengeRequest struct {
	GameSlug string `json:"gameSlug" binding:"required"`
}

type VerifyCompletionRequest struct {
	SessionID string `json:"sessionId" binding:"required"`
	Signature string `json:"signature" binding:"required"`
	Score     int    `json:"score"`
}

// resolveIdentity 接收者身份：登录用户取JWT里的id，
// 匿名访客取客户端自带的 X-Viewer-Id
func resolveIdentity(ctx *gin.Context) string {
	if claims := util.GetUserFromContext(ctx); claims != nil {
		return fmt.Sprintf("%s%d", util.IdentityUserPrefix, claims.UserID)
	}
	viewerID := ctx.GetHeader("X-Viewer-Id")
	if viewerID == "" {
		viewerID = ctx.Query("viewerId")
	}
	if viewerID == "" || len(viewerID) > 80 {
		return ""
	}
	return util.IdentityAnonPrefix + viewerID
}

// @Summary 查看分享页
// @Tags 解锁
// @Produce json
// @Param token path string true "分享Token"
// @Param viewerId query string false "匿名访客ID"
// @Success 200 {object} util.Response
// @Router /shared/{token} [get]
func (c *UnlockController) ViewShared(ctx *gin.Context) {
	view, err := c.UnlockService.ViewShared(ctx.Param("token"), resolveIdentity(ctx))
	if err != nil {
		c.renderStartError(ctx, err)
		return
	}

	c.PictureService.TrackView(view.PictureID)

	util.Success(ctx, view)
}

// @Summary 为分享图片开始挑战
// @Tags 解锁
// @Produce json
// @Param token path string true "分享Token"
// @Param viewerId query string false "匿名访客ID"
// @Success 200 {object} util.Response
// @Router /shared/{token}/challenge [post]
func (c *UnlockController) StartSharedChallenge(ctx *gin.Context) {
	result, err := c.UnlockService.StartChallengeForToken(ctx.Param("token"), resolveIdentity(ctx))
	if err != nil {
		c.renderStartError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// @Summary 普通模式开始挑战（不关联图片）
// @Tags 解锁
// @Accept json
// @Produce json
// @Param body body StartChallengeRequest true "游戏标识"
// @Success 200 {object} util.Response
// @Router /challenges/start [post]
func (c *UnlockController) StartChallenge(ctx *gin.Context) {
	var req StartChallengeRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.UnlockService.StartChallengeForGame(req.GameSlug)
	if err != nil {
		c.renderStartError(ctx, err)
		return
	}

	util.Success(ctx, result)
}

// @Summary 提交完成证明
// @Tags 解锁
// @Accept json
// @Produce json
// @Param body body VerifyCompletionRequest true "会话ID、签名和分数"
// @Success 200 {object} util.Response
// @Router /challenges/verify [post]
func (c *UnlockController) VerifyCompletion(ctx *gin.Context) {
	var req VerifyCompletionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}

	result, err := c.UnlockService.VerifyCompletion(req.SessionID, req.Signature, req.Score)
	if err != nil {
		switch err {
		case util.ErrVerificationFailed:
			// 无效会话和签名错误统一口径
			util.Error(ctx, http.StatusUnprocessableEntity, "verification failed")
		case util.ErrQuotaExceeded:
			util.Error(ctx, http.StatusConflict, err.Error())
		default:
			util.LogInternalError(ctx, err)
		}
		return
	}

	util.Success(ctx, result)
}

func (c *UnlockController) renderStartError(ctx *gin.Context, err error) {
	switch err {
	case util.ErrIdentityRequired:
		util.BadRequest(ctx, err.Error())
	case util.ErrPictureNotFound, util.ErrGameNotFound:
		util.NotFound(ctx)
	case util.ErrPictureGone:
		util.Gone(ctx, err.Error())
	case util.ErrQuotaExceeded:
		util.Error(ctx, http.StatusConflict, err.Error())
	default:
		util.LogInternalError(ctx, err)
	}
}
