package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"picshare_backend/internal/config"
	"picshare_backend/internal/controller"
	"picshare_backend/internal/repository"
	"picshare_backend/internal/service"
	"picshare_backend/pkg/configwatcher"
	"picshare_backend/pkg/database"
	"picshare_backend/pkg/logger"
	"picshare_backend/pkg/monitoring"
	"picshare_backend/pkg/security"
	"picshare_backend/pkg/tracing"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	configCallbacks []func(*config.Config)
}

type repositories struct {
	user      *repository.UserRepository
	game      *repository.GameRepository
	picture   *repository.PictureRepository
	recipient *repository.RecipientRepository
	attempt   *repository.AttemptRepository
}

type services struct {
	auth     *service.AuthService
	storage  *service.StorageService
	game     *service.GameService
	picture  *service.PictureService
	unlock   *service.UnlockService
	registry *service.SessionRegistry
}

type controllers struct {
	auth    *controller.AuthController
	game    *controller.GameController
	picture *controller.PictureController
	unlock  *controller.UnlockController
	health  *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		user:      repository.NewUserRepository(db),
		game:      repository.NewGameRepository(db),
		picture:   repository.NewPictureRepository(db),
		recipient: repository.NewRecipientRepository(db),
		attempt:   repository.NewAttemptRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.registry = service.NewSessionRegistry()
	s.storage = service.NewStorageService(cfg)
	s.auth = service.NewAuthService(repos.user, cfg)
	s.game = service.NewGameService(repos.game)
	s.picture = service.NewPictureService(repos.picture, repos.recipient, repos.game, s.storage, rdb, cfg)
	s.unlock = service.NewUnlockService(repos.picture, repos.recipient, repos.attempt, repos.game, s.registry, cfg)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		auth:    controller.NewAuthController(s.auth),
		game:    controller.NewGameController(s.game),
		picture: controller.NewPictureController(s.picture),
		unlock:  controller.NewUnlockController(s.unlock, s.picture),
		health:  controller.NewHealthController(db),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 1000
	}
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(maxRequests, window))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) startBackgroundTasks(s *services) {
	go func() {
		ticker := time.NewTicker(time.Minute)
		for range ticker.C {
			s.unlock.SweepSessions()
		}
	}()

	// 配置热更新：密钥轮换、会话TTL调整不用重启。
	// 服务层持有同一个 Config 指针，原地覆盖即可生效。
	go configwatcher.WatchConfig("configs/config.yaml", a.Config, func(raw interface{}) {
		newCfg, ok := raw.(*config.Config)
		if !ok {
			return
		}
		for _, cb := range a.configCallbacks {
			cb(newCfg)
		}
	})
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db)

	// 监控初始化
	monitoring.Init()

	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("picshare-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
			}
		}()
	}

	app.registerRoutes(router, controllers, repos, cfg)

	if cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	app.RegisterConfigCallback(func(newCfg *config.Config) {
		if newCfg.Unlock.Secret != "" {
			cfg.Unlock.Secret = newCfg.Unlock.Secret
		}
		if newCfg.Unlock.SessionTTL > 0 {
			cfg.Unlock.SessionTTL = newCfg.Unlock.SessionTTL
		}
		logger.Log.Info("unlock config reloaded")
	})

	app.startBackgroundTasks(services)

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
