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
	"aws-sqs-queue-backend/internal/app/queuectl"
	"aws-sqs-queue-backend/internal/pkg/logger"
	"aws-sqs-queue-backend/internal/pkg/queue"
)

func main() {
	if err := logger.Setup(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to set up logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	open := func(ctx context.Context) (queue.Backend, error) {
		cfg, err := configs.Parse()
		if err != nil {
			return nil, err
		}
		return backend.Open(ctx, cfg)
	}

	if err := queuectl.NewRootCmd(open, os.Stdout).ExecuteContext(ctx); err != nil {
		logger.Error("queuectl failed", zap.Error(err))
		stop()
		logger.Sync()
		os.Exit(1)
	}
}
