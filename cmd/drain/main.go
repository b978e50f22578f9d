package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"aws-sqs-queue-backend/configs"
	"aws-sqs-queue-backend/internal/app/backend"
	"aws-sqs-queue-backend/internal/app/drain"
	"aws-sqs-queue-backend/internal/pkg/http"
	"aws-sqs-queue-backend/internal/pkg/logger"
	"aws-sqs-queue-backend/internal/pkg/observability/metrics"
)

func main() {
	if err := logger.Setup(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := configs.Parse()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	metrics.Setup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	http.StartHTTPServer(ctx, cfg.HTTPAddr)

	b, err := backend.Open(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to open queue backend", zap.Error(err))
	}
	defer func() {
		if err := b.Close(); err != nil {
			logger.Error("Failed to close queue backend", zap.Error(err))
		}
	}()

	w := &drain.Worker{
		Queue:           b,
		Out:             os.Stdout,
		PollingInterval: cfg.PollingIntervalDuration,
	}

	logger.Info("Starting drain worker", zap.String("queue", b.Handle().String()))
	if err := w.Run(ctx); err != nil {
		logger.Error("Drain worker stopped", zap.Error(err))
	}
}
