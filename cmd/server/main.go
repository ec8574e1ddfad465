package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arnold/gatherings-api/internal/clock"
	"github.com/arnold/gatherings-api/internal/config"
	"github.com/arnold/gatherings-api/internal/database"
	"github.com/arnold/gatherings-api/internal/handlers"
	"github.com/arnold/gatherings-api/internal/routes"
	"github.com/arnold/gatherings-api/internal/services"
	"github.com/arnold/gatherings-api/internal/sweep"
	"github.com/arnold/gatherings-api/pkg/logging"
)

func main() {
	logging.Setup()
	cfg := config.Load()

	if err := database.Connect(cfg.DatabaseURL); err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	if err := database.Migrate(database.DB); err != nil {
		slog.Error("Failed to migrate database", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "postgres", cfg.UsesPostgres())

	hub := handlers.NewHub()
	sweeper := sweep.New(database.DB, clock.System{})
	svc := services.New(database.DB, services.Options{
		Clock:        clock.System{},
		Sweeper:      sweeper,
		Events:       hub,
		DueLeadHours: cfg.DueLeadHours,
	})

	cron, err := sweeper.Schedule(cfg.SweepSchedule)
	if err != nil {
		slog.Error("Failed to schedule sweep", "error", err)
		os.Exit(1)
	}

	h := handlers.New(svc, services.NewImageStore(cfg.UploadDir), hub, cfg.JWTSecret)
	app := routes.NewApp(h, cfg)

	go func() {
		slog.Info("Server starting", "port", cfg.Port)
		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down")

	if cron != nil {
		<-cron.Stop().Done()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.ShutdownWithContext(ctx); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}
	if err := database.Close(database.DB); err != nil {
		slog.Error("Failed to close database", "error", err)
	}
}
