package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"rentalhub/internal/app/bootstrap"
	"rentalhub/internal/app/notifications"
	"rentalhub/internal/infra/config"
	ginserver "rentalhub/internal/infra/http/gin"
	"rentalhub/internal/infra/obs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config invalid", "error", err)
		os.Exit(1)
	}
	logger := obs.NewLogger(cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("rentalhub stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("rentalhub stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	notifier, closeNotifier, err := buildNotifier(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeNotifier()

	dispatcher := &notifications.Dispatcher{Notifier: notifier, Logger: logger}
	be, err := openBackend(ctx, cfg, dispatcher, logger)
	if err != nil {
		return err
	}
	defer be.close()
	dispatcher.Inbox = be.inbox

	if err := loadListingFixtures(ctx, cfg.ListingsFixtures, be.catalog, logger); err != nil {
		logger.Warn("listing fixtures load failed", "error", err, "path", cfg.ListingsFixtures)
	}

	buses := bootstrap.Wire(bootstrap.Deps{
		UoW:         be.uow,
		Outbox:      be.outbox,
		Idempotency: be.idempotency,
		TxRetries:   cfg.TxRetries,
		TxBackoff:   cfg.TxBackoff,
		Logger:      logger,
	})

	server := ginserver.NewServer(cfg, obs.Middleware{Logger: logger}, obs.HealthHandlers{Checks: be.checks}, ginserver.Handlers{
		Booking: ginserver.BookingHandler{Commands: buses.Commands, Queries: buses.Queries, Logger: logger},
		Listing: ginserver.ListingHandler{Queries: buses.Queries, Logger: logger},
		Me:      ginserver.MeHandler{Queries: buses.Queries, Logger: logger},
	})

	jobsCtx, cancelJobs := context.WithCancel(ctx)
	defer cancelJobs()
	var wg sync.WaitGroup
	for name, job := range be.background {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := job(jobsCtx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("background job stopped", "job", name, "error", err)
			}
		}()
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", "error", err)
		}
	}()

	logger.Info("HTTP server starting", "addr", cfg.HTTPAddr, "storage", cfg.StorageBackend, "broker", cfg.Broker, "notifier", cfg.Notifier)
	serveErr := server.ListenAndServe()
	cancelJobs()
	wg.Wait()
	if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
		return serveErr
	}
	return nil
}
