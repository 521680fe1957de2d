package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"bilancio/internal/amqp"
	"bilancio/internal/cli"
	apphttp "bilancio/internal/http"
	"bilancio/internal/log"
	"bilancio/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	store := cli.OpenStore(context.Background(), logger, cfg)

	categoryCache, err := cli.NewCategoryCache(cfg)
	if err != nil {
		logger.Error("Failed to create category cache", log.FieldError, err)
		os.Exit(1)
	}

	var publisher services.EventPublisher
	amqpClient, err := cli.ConnectAMQP(logger, cfg)
	if err != nil {
		logger.Warn("Failed to initialize AMQP client, continuing without ledger events", log.FieldError, err)
	}
	if amqpClient != nil {
		publisher = amqpClient
	}

	ledger := services.NewLedgerService(store.Store, categoryCache, publisher)
	recurring := services.NewRecurringService(store.Store, store.Store, ledger, publisher)

	srv := apphttp.NewServer(apphttp.Options{
		Addr:         ":" + cfg.Port,
		Logger:       logger,
		JWTSecret:    cfg.JWTSecret,
		RateLimitRPM: cfg.RateLimitRPM,
		Ready:        readiness(store.Ping, amqpClient),
	}, ledger, recurring)

	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 10 * time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("AMQP close error", log.FieldError, err)
			}
		}
		categoryCache.Close()
		if err := store.Cleanup(); err != nil {
			logger.Warn("Store close error", log.FieldError, err)
		}
	})

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET not set, trusting the " + apphttp.AccountHeader + " header")
	}
	logger.Info("Starting bilancio server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events_enabled", publisher != nil)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

// readiness fails while the store is unreachable or the broker circuit is open.
func readiness(ping func(context.Context) error, client *amqp.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := ping(ctx); err != nil {
			return err
		}
		if client != nil && !client.Healthy() {
			return errors.New("amqp circuit breaker open")
		}
		return nil
	}
}
