package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/gorilla/handlers"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	httpHandler "studyroom/internal/handler/http"
	gormpersistence "studyroom/internal/infra/persistence/gorm"
	"studyroom/internal/infra/rtc"
	"studyroom/internal/infra/setup"
	redisstate "studyroom/internal/infra/state/redis"
	"studyroom/internal/middleware"
	"studyroom/internal/service"
	"studyroom/internal/worker"
)

// App is the REST API process together with the worker that consumes
// room-close tasks from the gateway.
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB
	RedisClient *redis.Client
	Worker      *worker.WorkerServer
	HttpServer  *http.Server
}

// NewApp wires the API process.
func NewApp(cfg *Config) (*App, error) {
	log := NewLogger(cfg)
	log.Infof("Logger initialized (Level: %s)", log.GetLevel())

	log.Info("Initializing infrastructure...")
	db, err := setup.InitDB(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}
	if cfg.AutoMigrate {
		if err := setup.MigrateDB(db); err != nil {
			return nil, fmt.Errorf("failed to migrate DB: %w", err)
		}
	}
	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}
	issuer, err := rtc.NewAgoraIssuer(cfg.AgoraAppID, cfg.AgoraAppCertificate)
	if err != nil {
		return nil, fmt.Errorf("failed to init token issuer: %w", err)
	}

	userRepo := gormpersistence.NewGormUserRepository(db)
	roomRepo := gormpersistence.NewGormRoomRepository(db)
	historyRepo := gormpersistence.NewGormHistoryRepository(db)
	stateStore := redisstate.NewRoomStateStore(redisClient, cfg.KeyPrefix)

	authService, err := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTExpiryHours)
	if err != nil {
		return nil, fmt.Errorf("failed to create AuthService: %w", err)
	}
	roomService := service.NewRoomService(roomRepo, userRepo, historyRepo, issuer)
	log.Info("Services initialized")

	redisClientOpt := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}
	workerServer := worker.NewWorkerServer(redisClientOpt, roomService, cfg.WorkerConcurrency, log)

	router := newRouter(cfg, log)
	router.Use(middleware.RateLimit(stateStore, cfg.RateLimitMax, cfg.RateLimitWindow))
	httpHandler.RegisterRoutes(router,
		middleware.Auth(cfg.JWTSecret),
		httpHandler.NewAuthHandler(authService),
		httpHandler.NewRoomHandler(roomService),
	)

	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           withCORS(cfg, router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &App{
		Config:      cfg,
		Log:         log,
		DB:          db,
		RedisClient: redisClient,
		Worker:      workerServer,
		HttpServer:  httpServer,
	}, nil
}

// Start runs the worker and the HTTP server in the background.
func (a *App) Start() {
	go a.Worker.Start()
	a.Log.Info("Asynq worker server routine started")

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

// Shutdown stops the HTTP server, then the worker, then closes connections.
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	if a.Worker != nil {
		a.Worker.Shutdown()
	}
	closeStores(a.Log, a.RedisClient, a.DB)
	a.Log.Info("Application shutdown complete.")
}

func newRouter(cfg *Config, log *logrus.Logger) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	return router
}

func withCORS(cfg *Config, h http.Handler) http.Handler {
	return handlers.CORS(
		handlers.AllowedOrigins(cfg.CORSAllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", "Authorization", "X-Requested-With"}),
		handlers.AllowCredentials(),
	)(h)
}

func closeStores(log *logrus.Logger, redisClient *redis.Client, db *gorm.DB) {
	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Errorf("Error closing Redis connection: %v", err)
		} else {
			log.Info("Redis connection closed.")
		}
	}
	if db != nil {
		if sqlDB, err := db.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				log.Errorf("Error closing database connection: %v", err)
			}
		}
	}
}
