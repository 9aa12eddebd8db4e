package main

import (
	"context"
	"os/signal"
	"syscall"

	"anoa.com/bountyboard/internal/config"
	"anoa.com/bountyboard/internal/server"
	"anoa.com/bountyboard/pkg/database"
	"anoa.com/bountyboard/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	if err := logger.Init(cfg.LogLevel, cfg.LogFormat, cfg.LogOutput); err != nil {
		logger.Fatalf("failed to init logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := database.Connect(cfg.DatabaseURL)
	defer database.Close()

	if err := server.Migrate(db); err != nil {
		logger.Fatalf("migration failed: %v", err)
	}

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warnf("redis unavailable, running without cache: %v", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	app, err := server.NewApp(ctx, cfg, db, redisClient)
	if err != nil {
		logger.Fatalf("failed to wire application: %v", err)
	}

	srv, err := server.NewServer(app)
	if err != nil {
		logger.Fatalf("failed to build server: %v", err)
	}

	if err := srv.Run(ctx, ":"+cfg.Port); err != nil {
		logger.Fatalf("server exited with error: %v", err)
	}
	logger.Info("server stopped")
}
