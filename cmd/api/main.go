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

	"budgetapi/internal/config"
	"budgetapi/internal/database"
	"budgetapi/internal/ledger"
	"budgetapi/internal/logger"
	"budgetapi/internal/middleware"
	"budgetapi/internal/notify"
	"budgetapi/internal/scheduler"
	"budgetapi/internal/server"
	"budgetapi/internal/services"

	_ "budgetapi/internal/docs" // Import swagger docs
)

// @title           Budget API
// @version         1.0
// @description     Personal budget ledger: categories, immediate and planned transactions, balance threshold alerts and notifications.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

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

	if err := dbManager.RunMigrations(os.Getenv("MIGRATIONS_DIR")); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}
	db := dbManager.DB()

	if cfg.AdminUsername != "" {
		admin, err := services.NewUserService(db).EnsureAdmin(cfg.AdminUsername, cfg.AdminPassword, cfg.AdminEmail)
		if err != nil {
			return fmt.Errorf("failed to ensure admin user: %w", err)
		}
		log.Infow("admin account ready", "username", admin.Username)
	}

	mailer, closeMailer := notify.OutboundMailer(cfg)
	defer func() {
		if err := closeMailer(); err != nil {
			log.Warnf("mailer close error: %v", err)
		}
	}()

	dispatcher := notify.NewRouter(db, mailer)
	locks := ledger.NewUserLocks()
	sweeper := scheduler.NewSweeper(db, dispatcher, locks,
		scheduler.WithLocation(cfg.Scheduler.Location),
		scheduler.WithConcurrency(cfg.Scheduler.Concurrency),
	)

	router := server.NewRouter(server.Deps{
		DB:             db,
		Tokens:         middleware.NewTokenManager(cfg.JWTSecret, cfg.JWTExpirationDur),
		Dispatcher:     dispatcher,
		Locks:          locks,
		Sweeper:        sweeper,
		InternalAPIKey: cfg.InternalAPIKey,
		Location:       cfg.Scheduler.Location,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Scheduler.Enabled {
		runner := scheduler.NewRunner(sweeper.SweepOnce, cfg.Scheduler.Hour, cfg.Scheduler.Interval, cfg.Scheduler.Location)
		go func() {
			if err := runner.Run(ctx); err != nil {
				log.Errorw("planned sweep runner stopped", "error", err)
			}
		}()
	} else {
		log.Info("in-process sweep disabled, run cmd/scheduler or call the internal sweep endpoint")
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("Starting budget API server on port %s", cfg.Port)
		log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}
