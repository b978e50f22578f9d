// Package backend builds the configured queue backend.
package backend

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"aws-sqs-queue-backend/configs"
	"aws-sqs-queue-backend/internal/pkg/logger"
	"aws-sqs-queue-backend/internal/pkg/observability/metrics"
	"aws-sqs-queue-backend/internal/pkg/queue"
	"aws-sqs-queue-backend/internal/pkg/queue/postgres"
	"aws-sqs-queue-backend/internal/pkg/queue/rabbitmq"
	redisQueue "aws-sqs-queue-backend/internal/pkg/queue/redis"
	"aws-sqs-queue-backend/internal/pkg/queue/retry"
	"aws-sqs-queue-backend/internal/pkg/queue/sqs"
)

// Open connects to the provider named by cfg.QueueType. The result retries
// transient failures per the QUEUE_RETRY_* settings and reports metrics.
func Open(ctx context.Context, cfg *configs.Config) (queue.Backend, error) {
	b, err := open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("queue backend ready",
		zap.String("type", cfg.QueueType),
		zap.String("queue", b.Handle().String()),
		zap.Bool("async", cfg.QueueAsync),
	)

	b = retry.Wrap(b, Policy(cfg))
	return metrics.Instrument(cfg.QueueType, b), nil
}

// Policy is the retry policy described by cfg.
func Policy(cfg *configs.Config) retry.Policy {
	return retry.Policy{
		Attempts:  cfg.QueueRetryAttempts,
		BaseDelay: cfg.RetryBaseDelay,
		MaxDelay:  cfg.RetryMaxDelay,
		RetrySend: cfg.QueueRetrySend,
	}
}

func open(ctx context.Context, cfg *configs.Config) (queue.Backend, error) {
	switch cfg.QueueType {
	case configs.QueueTypeSQS:
		client, err := sqs.NewClient(ctx, sqs.ClientConfig{
			Region:   cfg.QueueAwsSqsRegion,
			Endpoint: cfg.QueueAwsSqsEndpoint,
		})
		if err != nil {
			return nil, err
		}
		return sqs.New(client, sqs.Config{QueueURL: cfg.QueueAwsSqsUrl, Async: cfg.QueueAsync}), nil

	case configs.QueueTypeRedis:
		client := redisQueue.NewClient(cfg.QueueRedisEndpoint, cfg.QueueRedisDB)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		b := redisQueue.New(client, &redisQueue.Config{
			Key:               cfg.QueueRedisKey,
			VisibilityTimeout: cfg.VisibilityTimeoutDuration,
			Async:             cfg.QueueAsync,
		})
		return queue.WithCloser(b, client.Close), nil

	case configs.QueueTypeRabbitMQ:
		b, err := rabbitmq.Dial(rabbitmq.Config{
			URL:   cfg.QueueRabbitMQURL,
			Queue: cfg.QueueRabbitMQQueue,
			Async: cfg.QueueAsync,
		})
		if err != nil {
			return nil, err
		}
		return b, nil

	case configs.QueueTypePostgres:
		pool, err := postgres.OpenPool(ctx, cfg.QueuePostgresDSN)
		if err != nil {
			return nil, err
		}
		b := postgres.New(pool, postgres.Config{
			Queue:             cfg.QueuePostgresQueue,
			VisibilityTimeout: cfg.VisibilityTimeoutDuration,
			Async:             cfg.QueueAsync,
		})
		return queue.WithCloser(b, func() error { pool.Close(); return nil }), nil
	}
	return nil, fmt.Errorf("unsupported queue type %q", cfg.QueueType)
}
