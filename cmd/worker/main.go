package main

import (
	"context"
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

	processor := internal.NewPaymentProcessor(
		redisClient,
		internal.NewGateway(ctx, cfg),
		internal.NewSessionStore(redisClient, cfg.SessionTTL),
		internal.NewReceiptRepository(redisClient),
		cfg.ChargeTimeout,
		cfg.Workers,
	)

	processor.StartWorkers(ctx)
	slog.Info("payment workers started", "workers", cfg.Workers, "gateway", cfg.Gateway)

	<-ctx.Done()
	slog.Info("shutting down worker")
}
