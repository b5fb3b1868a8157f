package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"antspend/internal/amqp"
	"antspend/internal/config"
	"antspend/internal/log"
)

// heartbeatInterval paces the periodic "still alive" log line with the
// running delivery count.
const heartbeatInterval = time.Minute

func main() {
	cfg := config.Load()

	logger := log.New(log.DefaultConfig()).WithComponent(log.ComponentWorker)
	log.SetDefault(logger)

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL must be set for the alert worker")
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to connect to AMQP broker", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var delivered atomic.Int64

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return client.ConsumeBudgetAlerts(ctx, func(msg *amqp.BudgetAlertMessage) error {
			// Delivery hand-off point: downstream channels (mail, chat hooks)
			// pick alerts up from this log stream.
			logger.Info("Budget alert received",
				log.FieldUserID, msg.UserID,
				"username", msg.Username,
				"email", msg.Email,
				"status", msg.Status,
				"percent_used", msg.PercentUsed,
				"spent_cents", msg.SpentCents,
				"limit_cents", msg.MonthlyLimitCents,
			)
			delivered.Add(1)
			return nil
		})
	})

	g.Go(func() error {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				logger.Info("Alert worker heartbeat", "delivered", delivered.Load())
			}
		}
	})

	logger.Info("Alert worker started", "queue", cfg.AMQPQueue, "exchange", cfg.AMQPExchange)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Alert worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Alert worker stopped", "delivered", delivered.Load())
}
