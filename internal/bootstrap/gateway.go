package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	wsHandler "studyroom/internal/handler/websocket"
	"studyroom/internal/hub"
	gormpersistence "studyroom/internal/infra/persistence/gorm"
	"studyroom/internal/infra/setup"
	redisstate "studyroom/internal/infra/state/redis"
	"studyroom/internal/middleware"
	"studyroom/internal/tasks"
)

// Gateway is the real-time websocket process.
type Gateway struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB
	RedisClient *redis.Client
	AsynqClient *asynq.Client
	Hub         *hub.Hub
	HttpServer  *http.Server

	cancel context.CancelFunc
}

// NewGateway wires the gateway process.
func NewGateway(cfg *Config) (*Gateway, error) {
	log := NewLogger(cfg)

	db, err := setup.InitDB(cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}
	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}
	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})

	// the gateway only reads rooms: existence and owner
	roomRepo := gormpersistence.NewGormRoomRepository(db)

	stateStore := redisstate.NewRoomStateStore(redisClient, cfg.KeyPrefix)
	hubInstance := hub.NewHub(stateStore, stateStore, tasks.NewEnqueuer(asynqClient))
	log.WithField("instance_id", hubInstance.InstanceID()).Info("Hub initialized")

	handler := wsHandler.NewWebSocketHandler(hubInstance, roomRepo, cfg.CORSAllowedOrigins)

	router := newRouter(cfg, log)
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	router.GET("/ws/rooms/:uuid",
		middleware.RateLimit(stateStore, cfg.RateLimitMax, cfg.RateLimitWindow),
		middleware.Auth(cfg.JWTSecret),
		handler.HandleConnection,
	)

	return &Gateway{
		Config:      cfg,
		Log:         log,
		DB:          db,
		RedisClient: redisClient,
		AsynqClient: asynqClient,
		Hub:         hubInstance,
		HttpServer: &http.Server{
			Addr:              ":" + cfg.GatewayPort,
			Handler:           withCORS(cfg, router),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Start runs the hub and the HTTP server in the background.
func (g *Gateway) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	g.cancel = cancel
	go g.Hub.Run(ctx)

	go func() {
		g.Log.Infof("Gateway starting to listen on %s", g.HttpServer.Addr)
		if err := g.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.Log.Fatalf("Failed to start gateway: %v", err)
		}
		g.Log.Info("Gateway stopped listening.")
	}()
}

// Shutdown stops accepting sockets, drains the hub and closes connections.
func (g *Gateway) Shutdown() {
	g.Log.Info("Shutting down gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := g.HttpServer.Shutdown(ctx); err != nil {
		g.Log.Errorf("Error shutting down gateway HTTP server: %v", err)
	}
	if g.cancel != nil {
		g.cancel()
	}
	// let the hub release presence before Redis goes away
	time.Sleep(500 * time.Millisecond)

	if err := g.AsynqClient.Close(); err != nil {
		g.Log.Errorf("Error closing Asynq client: %v", err)
	}
	closeStores(g.Log, g.RedisClient, g.DB)
	g.Log.Info("Gateway shutdown complete.")
}
