// Command scheduler runs the planned transaction sweep as its own process,
// for deployments that set SWEEP_ENABLED=false on the API.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"budgetapi/internal/config"
	"budgetapi/internal/database"
	"budgetapi/internal/ledger"
	"budgetapi/internal/logger"
	"budgetapi/internal/notify"
	"budgetapi/internal/scheduler"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Scheduler error: %v", err)
	}
}

func run() error {
	log := logger.Named("scheduler")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	dbManager, err := database.NewManager(cfg)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("database close error: %v", err)
		}
	}()
	db := dbManager.DB()

	mailer, closeMailer := notify.OutboundMailer(cfg)
	defer func() {
		if err := closeMailer(); err != nil {
			log.Warnf("mailer close error: %v", err)
		}
	}()

	// Row locks serialize against the API process; the in-process locks only
	// cover this process.
	sweeper := scheduler.NewSweeper(db, notify.NewRouter(db, mailer), ledger.NewUserLocks(),
		scheduler.WithLocation(cfg.Scheduler.Location),
		scheduler.WithConcurrency(cfg.Scheduler.Concurrency),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Infow("starting planned sweep worker",
		"hour", cfg.Scheduler.Hour,
		"interval", cfg.Scheduler.Interval.String(),
		"location", cfg.Scheduler.Location.String(),
	)
	return scheduler.NewRunner(sweeper.SweepOnce, cfg.Scheduler.Hour, cfg.Scheduler.Interval, cfg.Scheduler.Location).Run(ctx)
}
