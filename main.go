package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"wisdomwalk-chat-service/internal/auth"
	"wisdomwalk-chat-service/internal/config"
	"wisdomwalk-chat-service/internal/db"
	"wisdomwalk-chat-service/internal/directory"
	"wisdomwalk-chat-service/internal/guard"
	"wisdomwalk-chat-service/internal/handlers"
	"wisdomwalk-chat-service/internal/logging"
	"wisdomwalk-chat-service/internal/notify"
	"wisdomwalk-chat-service/internal/observability"
	"wisdomwalk-chat-service/internal/presence"
	"wisdomwalk-chat-service/internal/rabbitmq"
	"wisdomwalk-chat-service/internal/repositories"
	"wisdomwalk-chat-service/internal/service"
	"wisdomwalk-chat-service/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := logging.New(cfg.Environment)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg.Telemetry.OTLPEndpoint, cfg.Telemetry.ServiceName)
	if err != nil {
		logger.Fatalw("setup tracing", "error", err)
	}

	database, err := db.Connect(cfg.Database)
	if err != nil {
		logger.Fatalw("connect database", "error", err)
	}
	defer database.Close()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Warnw("redis unreachable, presence mirror disabled", "error", err)
			redisClient = nil
		}
	}

	chatRepo := repositories.NewChatRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	notificationRepo := repositories.NewNotificationRepo(database)
	blockRepo := repositories.NewBlockRepo(database)

	accessGuard := guard.New(blockRepo)
	verifier := auth.NewVerifier(cfg.JWT.Secret, cfg.JWT.Issuer)
	users := directory.NewHTTPClient(cfg.Directory.BaseURL, cfg.Directory.Timeout)

	registry := presence.NewRegistry()
	mirror := presence.NewMirror(redisClient, cfg.Telemetry.ServiceName, logger)

	publisher := rabbitmq.NewPublisher(cfg.AMQP.URL, cfg.AMQP.Exchange, logger)
	defer func() { _ = publisher.Close() }()

	fanout := notify.NewFanout(notificationRepo, registry, publisher, logger)

	hub := ws.NewHub(logger)
	chatService := service.NewChatService(chatRepo, messageRepo, blockRepo, accessGuard, users, fanout, hub, publisher, logger)
	gateway := ws.NewGateway(hub, chatService, verifier, registry, mirror, cfg.WS, logger)

	chatHandler := handlers.NewChatHandler(chatService, logger)
	messageHandler := handlers.NewMessageHandler(chatService, logger)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(cfg.Telemetry.ServiceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/ws", gateway.Handle)

	api := router.Group("/api")
	api.Use(auth.Middleware(verifier))
	handlers.RegisterRoutes(api, chatHandler, messageHandler)

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Infow("chat service listening", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Errorw("server shutdown", "error", err)
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Errorw("tracing shutdown", "error", err)
	}
}
