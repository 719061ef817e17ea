package controller

import (
	"picshare_backend/internal/service"
	"picshare_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type GameController struct {
	GameService *service.GameService
}

func NewGameController(gameService *service.GameService) *GameController {
	return &GameController{GameService: gameService}
}

// @Summary 小游戏目录
// @Tags 游戏
// @Produce json
// @Success 200 {object} util.Response
// @Router /games [get]
func (c *GameController) ListGames(ctx *gin.Context) {
	games, err := c.GameService.ListGames()
	if err != nil {
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, games)
}

// @Summary 游戏详情
// @Tags 游戏
// @Produce json
// @Param slug path string true "游戏标识"
// @Success 200 {object} util.Response
// @Router /games/{slug} [get]
func (c *GameController) GetGame(ctx *gin.Context) {
	game, err := c.GameService.GetGame(ctx.Param("slug"))
	if err != nil {
		if err == util.ErrGameNotFound {
			util.NotFound(ctx)
			return
		}
		util.LogInternalError(ctx, err)
		return
	}
	util.Success(ctx, game)
}
