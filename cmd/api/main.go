package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"water-bill-portal/internal"
	"water-bill-portal/pkg/profiling"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := internal.LoadConfig()
	slog.SetLogLoggerLevel(cfg.LogLevel)

	if cfg.EnableProfiling {
		stopProfiling, err := profiling.Start("prof", 2*time.Minute)
		if err != nil {
			slog.Error("failed to start profiling", "err", err)
		} else {
			defer stopProfiling()
		}
	}

	redisClient, err := internal.OpenRedis(ctx, cfg)
	if err != nil {
		panic(err)
	}
	defer redisClient.Close()

	directory, closeDirectory, err := internal.OpenDirectory(ctx, cfg)
	if err != nil {
		panic(err)
	}
	defer closeDirectory()

	sessions := internal.NewSessionStore(redisClient, cfg.SessionTTL)
	receipts := internal.NewReceiptRepository(redisClient)
	queue := internal.NewPaymentQueue(redisClient)

	if cfg.InlineWorkers {
		processor := internal.NewPaymentProcessor(
			redisClient,
			internal.NewGateway(ctx, cfg),
			sessions,
			receipts,
			cfg.ChargeTimeout,
			cfg.Workers,
		)
		processor.StartWorkers(ctx)
		slog.Info("payment workers started in the api process", "workers", cfg.Workers, "gateway", cfg.Gateway)
	}

	handler := internal.NewPortalHandler(directory, sessions, queue, receipts, cfg.DiscountPolicy, cfg.Location)
	app := internal.NewApp(handler)

	go func() {
		<-ctx.Done()
		slog.Info("shutting down api")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := app.ShutdownWithContext(shutdownCtx); err != nil {
			slog.Error("failed to shut down the server", "err", err)
		}
	}()

	if err := app.Listen(":" + cfg.Port); err != nil {
		panic(fmt.Errorf("failed to listen to port: %w", err))
	}
}
