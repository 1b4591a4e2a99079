package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"shopsync/feedhub/internal/config"
	"shopsync/feedhub/internal/etsy"
	"shopsync/feedhub/internal/handler"
	"shopsync/feedhub/internal/model"
	"shopsync/feedhub/internal/repository"
	"shopsync/feedhub/internal/service"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	// 2. Initialize logger
	var logger *zap.Logger
	if cfg.Log.Format == "json" {
		logger, _ = zap.NewProduction()
	} else {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	// 3. Connect to PostgreSQL
	db, err := config.NewPostgresDB(cfg.Database.Postgres)
	if err != nil {
		logger.Fatal("failed to connect to postgres", zap.Error(err))
	}

	// 4. Auto-migrate if enabled
	if cfg.Database.Postgres.AutoMigrate {
		if err := model.AutoMigrate(db); err != nil {
			logger.Fatal("failed to auto-migrate", zap.Error(err))
		}
		logger.Info("database migration completed")
	}

	// 5. Initialize state store (Redis or in-memory)
	var stateStore repository.StateStore
	switch cfg.State.Backend {
	case "redis":
		redisClient, err := config.NewRedisClient(cfg.Database.Redis)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		stateStore = repository.NewRedisStateStore(redisClient)
		logger.Info("using Redis state store")
	case "memory":
		stateStore = repository.NewMemoryStateStore()
		logger.Info("using in-memory state store")
	default:
		logger.Fatal("unknown state backend", zap.String("backend", cfg.State.Backend))
	}

	// 6. Initialize feed blob store (MinIO, in-memory when unconfigured)
	var feedStore repository.FeedStore
	if cfg.Storage.Minio.Endpoint != "" {
		minioClient, err := config.NewMinioClient(cfg.Storage.Minio)
		if err != nil {
			logger.Fatal("failed to connect to minio", zap.Error(err))
		}
		feedStore, err = repository.NewMinioFeedStore(
			context.Background(), minioClient,
			cfg.Storage.Minio.Bucket, cfg.Storage.Minio.PublicBaseURL,
		)
		if err != nil {
			logger.Fatal("failed to prepare feed bucket", zap.Error(err))
		}
		logger.Info("using MinIO feed store", zap.String("bucket", cfg.Storage.Minio.Bucket))
	} else {
		feedStore = repository.NewMemoryFeedStore("")
		logger.Warn("no blob store configured, feed kept in memory")
	}

	// 7. Initialize repositories
	runRepo := repository.NewPGSyncRunRepository(db)

	// 8. Initialize the Etsy client chain
	authClient := etsy.NewAuthClient(cfg.Etsy, nil, logger)
	tokenManager := etsy.NewTokenManager(stateStore, authClient, logger)
	limiter := etsy.NewLimiter(stateStore, cfg.Etsy.QPSLimit, cfg.Etsy.QPDLimit, logger)
	executor := etsy.NewExecutor(cfg.Etsy, tokenManager, limiter, nil, logger)
	etsyClient := etsy.NewClient(executor, logger)

	// 9. Initialize services
	oauthService := service.NewOAuthService(
		authClient, tokenManager, stateStore,
		cfg.State.PropagationDelay, logger,
	)
	syncService := service.NewSyncService(
		etsyClient, tokenManager, runRepo, feedStore,
		cfg.Etsy, cfg.Sync, logger,
	)

	// 10. Initialize handlers
	oauthHandler := handler.NewOAuthHandler(oauthService, cfg.Dashboard.URL)
	feedHandler := handler.NewFeedHandler(feedStore, cfg.Sync.FeedObject)
	syncHandler := handler.NewSyncHandler(syncService)

	// 11. Setup router
	router := handler.SetupRouter(cfg, logger, oauthHandler, feedHandler, syncHandler)

	// 12. Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 13. Start server with graceful shutdown
	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	// 14. Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.GracefulShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server exited gracefully")
}
