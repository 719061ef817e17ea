package app

import (
	"picshare_backend/docs"
	"picshare_backend/internal/config"
	"picshare_backend/internal/middleware"
	"picshare_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	a.registerPublicRoutes(router, c, repos, cfg)

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		a.registerOwnerRoutes(authGroup, c)
	}
}

func (a *App) registerPublicRoutes(router *gin.Engine, c *controllers, repos *repositories, cfg *config.Config) {
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
		public.POST("/register", c.auth.Register)
		public.POST("/login", c.auth.Login)
		public.GET("/games", c.game.ListGames)
		public.GET("/games/:slug", c.game.GetGame)
	}

	// 分享与挑战：可选认证，匿名接收者带 X-Viewer-Id 即可
	shared := router.Group("/api")
	shared.Use(middleware.TryAuthMiddleware(cfg), middleware.ActivityMiddleware(repos.user))
	{
		shared.GET("/shared/:token", c.unlock.ViewShared)
		shared.POST("/shared/:token/challenge", c.unlock.StartSharedChallenge)
		shared.POST("/challenges/start", c.unlock.StartChallenge)
		shared.POST("/challenges/verify", c.unlock.VerifyCompletion)
	}
}

func (a *App) registerOwnerRoutes(rg *gin.RouterGroup, c *controllers) {
	rg.GET("/profile", c.auth.GetProfile)

	rg.POST("/pictures", c.picture.Upload)
	rg.GET("/pictures", c.picture.List)
	rg.GET("/pictures/:id", c.picture.Get)
	rg.POST("/pictures/:id/share", c.picture.Share)
	rg.DELETE("/pictures/:id/share", c.picture.Revoke)
	rg.GET("/pictures/:id/audit", c.picture.Audit)
}
