package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"antspend/internal/amqp"
	"antspend/internal/auth"
	"antspend/internal/cache"
	"antspend/internal/config"
	apphttp "antspend/internal/http"
	"antspend/internal/log"
	"antspend/internal/services"
	"antspend/internal/storage"
)

func main() {
	cfg := config.Load()

	logger := log.New(log.DefaultConfig())
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration", log.FieldError, err)
		os.Exit(1)
	}

	repo, err := storage.NewRepository(cfg.SQLiteDBPath)
	if err != nil {
		logger.Error("Failed to open database", log.FieldError, err, "path", cfg.SQLiteDBPath)
		os.Exit(1)
	}
	defer repo.Close()

	// The broker is optional: without it budget alerts are skipped, the rest
	// of the app keeps working.
	var publisher services.AlertPublisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.Warn("AMQP broker unavailable, budget alerts disabled", log.FieldError, err)
		} else {
			publisher = amqpClient
			defer amqpClient.Close()
		}
	}

	dashCache := cache.NewLRUCache[services.Dashboard](cfg.CacheEntries, cfg.CacheTTL)
	cacheManager := cache.NewManager()
	cacheManager.Register(dashCache)
	cacheManager.StartCleanup(cfg.CacheTTL)
	defer cacheManager.Stop()

	aggregation := services.NewAggregationService(repo, dashCache, logger)
	alerts := services.NewAlertService(repo, publisher, logger)
	reports := services.NewReportService(repo)
	sessions := auth.NewService(repo, cfg.SessionTTL, logger)

	srv := apphttp.NewServer(apphttp.Config{
		Addr:     ":" + cfg.Port,
		APIToken: cfg.APIToken,
	}, apphttp.Deps{
		Store:       repo,
		Aggregation: aggregation,
		Alerts:      alerts,
		Reports:     reports,
		Auth:        sessions,
		Logger:      logger,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		cancel()
	}()

	logger.Info("Starting antspend server", "port", cfg.Port, "alerts_enabled", publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
