package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"course_engine_backend/internal/config"
	"course_engine_backend/internal/controller"
	"course_engine_backend/internal/repository"
	"course_engine_backend/internal/service"
	"course_engine_backend/internal/util"
	"course_engine_backend/pkg/configwatcher"
	"course_engine_backend/pkg/database"
	"course_engine_backend/pkg/logger"
	"course_engine_backend/pkg/monitoring"
	"course_engine_backend/pkg/security"
	"course_engine_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
}

type repositories struct {
	activity   *repository.ActivityRepository
	attempt    *repository.AttemptRepository
	submission *repository.SubmissionRepository
	parameter  *repository.GradeParameterRepository
	lesson     *repository.LessonRepository
}

type services struct {
	policy      *service.PolicyStore
	storage     *service.StorageService
	grade       *service.GradeService
	progression *service.ProgressionService
	attempt     *service.AttemptService
	submission  *service.SubmissionService
}

type controllers struct {
	attempt    *controller.AttemptController
	submission *controller.SubmissionController
	grade      *controller.GradeController
	lesson     *controller.LessonController
	health     *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		activity:   repository.NewActivityRepository(db),
		attempt:    repository.NewAttemptRepository(db),
		submission: repository.NewSubmissionRepository(db),
		parameter:  repository.NewGradeParameterRepository(db),
		lesson:     repository.NewLessonRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.policy = service.NewPolicyStore(service.PolicyFromConfig(cfg.Grading))
	s.storage = service.NewStorageService(cfg)

	var cache service.GradeCache
	if rdb != nil {
		cache = service.NewRedisGradeCache(rdb)
	} else {
		cache = service.NewMemoryGradeCache()
	}
	s.grade = service.NewGradeService(
		repos.activity,
		repos.parameter,
		repos.attempt,
		repos.submission,
		cache,
		s.policy,
		cfg.Grading.SummaryCacheTTL(),
	)

	s.progression = service.NewProgressionService(
		repos.lesson,
		repos.activity,
		repos.attempt,
		repos.submission,
		service.NewCatalogUnlocker(repos.lesson, s.policy),
		s.policy,
	)
	s.attempt = service.NewAttemptService(repos.activity, repos.attempt, s.progression, s.grade, s.policy)
	s.submission = service.NewSubmissionService(repos.activity, repos.submission, s.storage, s.progression, s.grade)

	// 评分策略支持热更新
	a.RegisterConfigCallback(func(newCfg *config.Config) {
		s.policy.Store(service.PolicyFromConfig(newCfg.Grading))
		s.grade.SetCacheTTL(newCfg.Grading.SummaryCacheTTL())
		logger.Log.Info("Grading policy reloaded",
			zap.Float64("passingScore", newCfg.Grading.PassingScore),
			zap.Int("reviewedAttemptLimit", newCfg.Grading.ReviewedAttemptLimit),
			zap.Bool("unlockOnExhausted", newCfg.Grading.UnlockOnExhausted),
		)
	})

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		attempt:    controller.NewAttemptController(s.attempt),
		submission: controller.NewSubmissionController(s.submission),
		grade:      controller.NewGradeController(s.grade),
		lesson:     controller.NewLessonController(s.progression),
		health:     controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}

	app := &App{
		Config: cfg,
		DB:     db,
	}
	if cfg.MigrateOnly {
		return app
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		// 缓存只是加速，redis 不可用时退回进程内缓存
		logger.Log.Warn("Redis unavailable, grade summaries use in-memory cache", zap.Error(err))
		rdb = nil
	}
	app.Redis = rdb

	repos := app.initRepositories(db)
	app.services = app.initServices(repos, cfg, rdb)
	controllers := app.initControllers(app.services, db, rdb)

	// 监控初始化
	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("course-engine", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Error("Failed to initialize tracing", zap.Error(err))
		} else {
			app.tracer = tp
		}
	}

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

// WatchConfig applies config.yaml changes to the registered callbacks until ctx ends.
func (a *App) WatchConfig(ctx context.Context, configDir string) {
	go func() {
		err := configwatcher.WatchConfig(ctx, configDir, func(newCfg *config.Config) {
			for _, cb := range a.configCallbacks {
				cb(newCfg)
			}
		})
		if err != nil {
			logger.Log.Error("Config watcher stopped", zap.Error(err))
		}
	}()
}

// Run serves until SIGINT/SIGTERM, reloading configDir/config.yaml on change.
func (a *App) Run(configDir string) {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.WatchConfig(ctx, configDir)

	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Error("listen failed", zap.Error(err))
			os.Exit(1)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	<-ctx.Done()
	logger.Log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(shutdownCtx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Println("Server exiting")
}
