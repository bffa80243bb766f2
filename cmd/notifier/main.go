// Command notifier consumes queued mail from AMQP and delivers it over SMTP.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"budgetapi/internal/config"
	"budgetapi/internal/logger"
	"budgetapi/internal/notify"
)

func main() {
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Notifier error: %v", err)
	}
}

func run() error {
	log := logger.Named("notifier")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.AMQP.URL == "" {
		return errors.New("AMQP_URL is required")
	}

	var mailer notify.Mailer = notify.NewLogMailer()
	if cfg.Mail.Enabled() {
		mailer = notify.NewSMTPMailer(cfg.Mail)
	} else {
		log.Warn("MAIL_SERVER or MAIL_FROM not set, consumed mail is only logged")
	}

	queue, err := notify.NewQueue(cfg.AMQP)
	if err != nil {
		return fmt.Errorf("failed to connect to AMQP: %w", err)
	}
	defer func() {
		if err := queue.Close(); err != nil {
			log.Warnf("queue close error: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := queue.Consume(ctx, notify.Deliver(mailer)); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("consume failed: %w", err)
	}
	log.Info("notifier stopped")
	return nil
}
