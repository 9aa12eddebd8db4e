// Command rebuild runs a single leaderboard rebuild and prints the run
// summary as JSON. It exits non-zero when the rebuild aborts.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"anoa.com/bountyboard/internal/config"
	leaderboardService "anoa.com/bountyboard/internal/modules/leaderboard/service"
	"anoa.com/bountyboard/internal/server"
	"anoa.com/bountyboard/pkg/database"
	"anoa.com/bountyboard/pkg/logger"
)

type status struct {
	Success bool                           `json:"success"`
	Message string                         `json:"message,omitempty"`
	Error   string                         `json:"error,omitempty"`
	Details string                         `json:"details,omitempty"`
	Step    string                         `json:"step,omitempty"`
	Summary *leaderboardService.RunSummary `json:"summary,omitempty"`
}

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		logger.Errorf("failed to load config: %v", err)
		return 2
	}

	// Logs go to stderr so stdout carries only the status payload.
	output := cfg.LogOutput
	if output == "" || output == "stdout" {
		output = "stderr"
	}
	if err := logger.Init(cfg.LogLevel, cfg.LogFormat, output); err != nil {
		logger.Errorf("failed to init logger: %v", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db := database.Connect(cfg.DatabaseURL)
	defer database.Close()

	if err := server.Migrate(db); err != nil {
		logger.Errorf("migration failed: %v", err)
		return 2
	}

	redisClient, err := database.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		logger.Warnf("redis unavailable, cache will not be invalidated: %v", err)
		redisClient = nil
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	app, err := server.NewApp(ctx, cfg, db, redisClient)
	if err != nil {
		logger.Errorf("failed to wire application: %v", err)
		return 2
	}

	summary, err := app.Job.Trigger(ctx)
	out := statusFor(summary, err)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if encErr := enc.Encode(out); encErr != nil {
		logger.Errorf("failed to write status: %v", encErr)
	}

	if err != nil {
		return 1
	}
	return 0
}

func statusFor(summary *leaderboardService.RunSummary, err error) status {
	if err != nil {
		out := status{Error: "Failed to update leaderboard cache", Details: err.Error()}
		var fatal *leaderboardService.FatalJobError
		if errors.As(err, &fatal) {
			out.Step = fatal.Step
		}
		return out
	}
	return status{Success: true, Message: "Leaderboard cache updated successfully", Summary: summary}
}
