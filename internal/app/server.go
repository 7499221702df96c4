// Package app wires the graph execution engine's dependencies into a
// runnable HTTP server. It is shared by cmd/server (the primary daemon)
// and cmd/enginectl (the operator CLI's serve subcommand) so the two
// entrypoints never drift out of sync.
package app

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	goredis "github.com/redis/go-redis/v9"

	"github.com/duragraph/duragraph/internal/application/service"
	"github.com/duragraph/duragraph/internal/buildinfo"
	"github.com/duragraph/duragraph/internal/config"
	"github.com/duragraph/duragraph/internal/domain/processor"
	"github.com/duragraph/duragraph/internal/infrastructure/auth"
	"github.com/duragraph/duragraph/internal/infrastructure/cache"
	"github.com/duragraph/duragraph/internal/infrastructure/cache/redis"
	"github.com/duragraph/duragraph/internal/infrastructure/http/handlers"
	"github.com/duragraph/duragraph/internal/infrastructure/http/middleware"
	"github.com/duragraph/duragraph/internal/infrastructure/messaging"
	"github.com/duragraph/duragraph/internal/infrastructure/messaging/nats"
	"github.com/duragraph/duragraph/internal/infrastructure/monitoring"
	"github.com/duragraph/duragraph/internal/infrastructure/persistence/postgres"
	"github.com/duragraph/duragraph/internal/infrastructure/processors"
	"github.com/duragraph/duragraph/internal/infrastructure/scheduler"
	"github.com/duragraph/duragraph/internal/infrastructure/storage"
	"github.com/duragraph/duragraph/internal/pkg/eventbus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RunServer wires every adapter, starts the HTTP server, and blocks
// until ctx is cancelled or an OS interrupt/terminate signal arrives.
func RunServer(ctx context.Context, cfg *config.Config) error {
	version := buildinfo.GetVersion().ShortVersion()

	fmt.Println("🚀 DuraGraph Engine Server")
	fmt.Printf("📍 Server: %s\n", cfg.ServerAddr())
	fmt.Printf("🗄️  Database: %s:%d/%s\n", cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)
	fmt.Printf("📨 NATS: %s\n", cfg.NATS.URL)
	fmt.Printf("🧠 Redis: %s\n", cfg.Redis.Addr)

	pool, err := postgres.NewPool(ctx, postgres.Config{
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		Database: cfg.Database.Database,
		SSLMode:  cfg.Database.SSLMode,
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer postgres.Close(pool)
	fmt.Println("✅ Database connected")

	redisClient := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	fmt.Println("✅ Redis connected")

	eventBus := eventbus.New()
	eventStore := postgres.NewEventStore(pool)
	outbox := postgres.NewOutbox(pool)

	// Persistence adapters feeding the scheduler (spec.md §6 Consumed #1/#2).
	canvasRepo := postgres.NewCanvasRepository(pool)
	batchRepo := postgres.NewBatchRepository(pool, eventStore)
	taskRepo := postgres.NewTaskRepository(pool, eventStore)
	metrics := monitoring.NewMetrics("duragraph")
	sessionStore := redis.NewStore(redisClient, metrics)

	logger := watermill.NewStdLogger(false, false)
	publisher, err := nats.NewPublisher(cfg.NATS.URL, logger)
	if err != nil {
		return fmt.Errorf("create NATS publisher: %w", err)
	}
	defer publisher.Close()
	fmt.Println("✅ NATS publisher connected")

	outboxRelay := messaging.NewOutboxRelay(outbox, publisher, 1*time.Second, 10)
	go func() {
		if err := outboxRelay.Start(ctx); err != nil {
			log.Printf("outbox relay error: %v", err)
		}
	}()
	fmt.Println("✅ Outbox relay worker started")

	cleanupWorker := messaging.NewCleanupWorker(outbox, 1*time.Hour, 7)
	go func() {
		if err := cleanupWorker.Start(ctx); err != nil {
			log.Printf("cleanup worker error: %v", err)
		}
	}()
	fmt.Println("✅ Cleanup worker started")

	// Processor registry: reference implementations exercising the
	// scheduler's injection surface (spec.md §4.3).
	registry := processor.NewRegistry()
	if err := processors.RegisterAll(registry, processors.DefaultClientFactory, metrics); err != nil {
		return fmt.Errorf("register processors: %w", err)
	}
	fmt.Println("✅ Processor registry initialized")

	objectStorage := storage.New()

	snapshots := cache.NewCachedCanvasSnapshotLoader(canvasRepo, cache.NewRedisCacheFromClient(redisClient), 5*time.Minute)
	persistence := NewSchedulerPersistence(canvasRepo, batchRepo, taskRepo)
	maxParallel := 0 // defaults to runtime.GOMAXPROCS(0)*2 inside NewEngine
	engine := scheduler.NewEngine(snapshots, persistence, registry, objectStorage, eventBus, maxParallel, metrics)

	janitor := scheduler.NewJanitor(taskRepo, sessionStore, 10*time.Minute)
	if err := janitor.Start(ctx); err != nil {
		return fmt.Errorf("start janitor: %w", err)
	}
	fmt.Println("✅ Janitor started")

	schedulerService := service.NewSchedulerService(engine, batchRepo, taskRepo)
	sessionService := service.NewSessionService(sessionStore)

	schedulerHandler := handlers.NewSchedulerHandler(schedulerService)
	sessionHandler := handlers.NewSessionHandler(sessionService)
	systemHandler := handlers.NewSystemHandler(version)

	e := echo.New()
	e.HideBanner = true
	e.HTTPErrorHandler = middleware.ErrorHandler()

	e.Use(middleware.Logger())
	e.Use(middleware.Metrics(metrics))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())

	if limit := cfg.Server.RateLimitPerMinute; limit > 0 {
		e.Use(middleware.RedisRateLimit(redisClient, limit, time.Minute))
		fmt.Printf("✅ Rate limiting enabled (%d req/min)\n", limit)
	}

	authEnabled := os.Getenv("AUTH_ENABLED") == "true"
	var jwtSecret string
	if authEnabled {
		jwtSecret = os.Getenv("JWT_SECRET")
		if jwtSecret == "" {
			jwtSecret = "default-secret-change-in-production"
		}
		e.Use(middleware.OptionalAuth(jwtSecret))
		fmt.Println("✅ Authentication enabled")
	}

	oauthConfig := auth.OAuthConfig{
		GoogleClientID:     os.Getenv("OAUTH_GOOGLE_CLIENT_ID"),
		GoogleClientSecret: os.Getenv("OAUTH_GOOGLE_CLIENT_SECRET"),
		GitHubClientID:     os.Getenv("OAUTH_GITHUB_CLIENT_ID"),
		GitHubClientSecret: os.Getenv("OAUTH_GITHUB_CLIENT_SECRET"),
		RedirectURL:        os.Getenv("OAUTH_REDIRECT_URL"),
		JWTSecret:          jwtSecret,
		StateStore:         cache.NewRedisStateStore(cache.NewRedisCacheFromClient(redisClient)),
	}
	if oauthConfig.GoogleClientID != "" || oauthConfig.GitHubClientID != "" {
		oauthManager := auth.NewOAuthManager(oauthConfig)
		e.GET("/auth/:provider/login", func(c echo.Context) error {
			return oauthManager.LoginHandler(auth.Provider(c.Param("provider")))(c)
		})
		e.GET("/auth/:provider/callback", func(c echo.Context) error {
			return oauthManager.CallbackHandler(auth.Provider(c.Param("provider")))(c)
		})
		fmt.Println("✅ OAuth login enabled")
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]string{"status": "healthy", "version": version})
	})
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
	e.GET("/ok", systemHandler.Ok)
	e.GET("/info", systemHandler.Info)

	api := e.Group("/api/v1")

	api.POST("/canvases/:canvas_id/runs", schedulerHandler.RunBatch)
	api.GET("/canvases/:canvas_id/runs", schedulerHandler.ListBatches)
	api.GET("/canvases/:canvas_id/runs/:batch_id", schedulerHandler.GetBatch)

	api.POST("/sessions/:app/:user/:session_id", sessionHandler.Create)
	api.GET("/sessions/:app/:user/:session_id", sessionHandler.Get)
	api.DELETE("/sessions/:app/:user/:session_id", sessionHandler.Delete)
	api.GET("/sessions/:app/:user", sessionHandler.List)
	api.POST("/sessions/:app/:user/:session_id/events", sessionHandler.AppendEvent)

	go func() {
		fmt.Printf("🌐 Server listening on %s\n", cfg.ServerAddr())
		if err := e.Start(cfg.ServerAddr()); err != nil {
			log.Printf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case <-ctx.Done():
	}

	fmt.Println("\n🛑 Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("server shutdown error: %v", err)
	}

	janitor.Stop()
	outboxRelay.Stop()
	cleanupWorker.Stop()

	fmt.Println("👋 Shutdown complete")
	return nil
}
