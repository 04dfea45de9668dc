package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/harukio/corpchat/internal/api"
	"github.com/harukio/corpchat/internal/chat"
	"github.com/harukio/corpchat/internal/config"
	"github.com/harukio/corpchat/internal/db"
	"github.com/harukio/corpchat/internal/middleware"
	"github.com/harukio/corpchat/internal/observ"
	"github.com/harukio/corpchat/internal/repository/postgres"
	"github.com/harukio/corpchat/internal/ws"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer logger.Sync()

	// Root context cancels on SIGINT/SIGTERM and drives the shutdown
	// sequence for the relay loop and the HTTP server alike.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := db.New(ctx, cfg.DatabaseURL, logger)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer database.Close()

	// Redis is optional: without it, broadcasts stay process-local,
	// which is correct for a single instance.
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("parse redis url: %w", err)
		}
		rdb = redis.NewClient(opts)
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis unreachable, falling back to local fan-out", zap.Error(err))
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	pool := database.Pool()
	corporationRepo := postgres.NewCorporationStore(pool)
	userRepo := postgres.NewUserStore(pool)
	chatRepo := postgres.NewChatStore(pool)
	messageRepo := postgres.NewMessageStore(pool)
	readRepo := postgres.NewReadStore(pool)

	registry := ws.NewRegistry(logger)
	broadcaster := ws.NewBroadcaster(registry, rdb, logger)
	go broadcaster.Run(ctx)

	readTracker := chat.NewReadTracker(readRepo)
	coordinator := chat.NewCoordinator(chatRepo, corporationRepo, messageRepo, readTracker, broadcaster, logger)

	authHandler := api.NewAuthHandler(userRepo, cfg.JWTSecret, cfg.AccessTokenTTLMin, cfg.RefreshTokenTTLDays, logger)
	userHandler := api.NewUserHandler()
	chatHandler := api.NewChatHandler(coordinator, logger)
	guestHandler := api.NewGuestHandler(coordinator, corporationRepo, cfg.WSBaseURL, logger)
	wsHandler := ws.NewHandler(registry, broadcaster, corporationRepo, userRepo, cfg.JWTSecret, logger)

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := gin.New()
	srv.Use(gin.Recovery())

	srv.GET("/v1/health", func(c *gin.Context) {
		if err := database.Health(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	srv.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Public auth endpoints — these produce the tokens everything
	// else requires.
	srv.POST("/v1/auth/sign-up", authHandler.SignUp)
	srv.POST("/v1/auth/sign-in", authHandler.SignIn)
	srv.POST("/v1/auth/refresh-token", authHandler.Refresh)

	// Unauthenticated guest widget surface.
	srv.GET("/guest/frame/:corporation_uuid", guestHandler.Frame)
	srv.POST("/guest/chat-message", guestHandler.SaveMessage)

	// Live connections. The room socket is public (guests connect);
	// the chat-list socket authenticates via its first frame.
	srv.GET("/ws/chat", wsHandler.ServeChatList)
	srv.GET("/ws/chat/:corporation_uuid/:chat_uuid", wsHandler.ServeRoom)

	// Staff-only routes behind JWT validation.
	v1 := srv.Group("/v1")
	v1.Use(middleware.AuthMiddleware(userRepo, cfg.JWTSecret))
	v1.POST("/auth/sign-out", authHandler.SignOut)
	v1.GET("/me", userHandler.Me)
	v1.GET("/chats", chatHandler.List)
	v1.GET("/chats/:uuid/messages", chatHandler.Messages)
	v1.POST("/chats/:uuid/messages", chatHandler.SendMessage)
	v1.POST("/chats/:uuid/read", chatHandler.MarkRead)

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: srv,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting corpchat",
			zap.String("port", cfg.Port),
			zap.String("env", cfg.Env),
			zap.Bool("redis_relay", rdb != nil),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	// Closing the registry tears down every live connection, which
	// unblocks the per-connection read loops.
	registry.Shutdown()

	return nil
}
