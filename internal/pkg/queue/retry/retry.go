// Package retry re-runs queue operations that failed with a transient error.
package retry

import (
	"context"
	"time"

	"go.uber.org/zap"

	"aws-sqs-queue-backend/internal/pkg/logger"
	"aws-sqs-queue-backend/internal/pkg/queue"
)

// Policy configures retries. Attempts counts the first call, so 1 disables retrying.
type Policy struct {
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// RetrySend also retries Send, which may deliver the payload twice.
	RetrySend bool
}

func (p Policy) delay(attempt int) time.Duration {
	d := p.BaseDelay << attempt
	if d < p.BaseDelay || (p.MaxDelay > 0 && d > p.MaxDelay) {
		return p.MaxDelay
	}
	return d
}

// Do calls fn until it succeeds, fails with a non-retryable error, or the attempts
// run out. It waits BaseDelay, doubled per attempt and capped at MaxDelay, between calls.
func Do[T any](ctx context.Context, p Policy, op queue.Operation, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	attempts := max(p.Attempts, 1)

	for i := 0; ; i++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if !queue.IsRetryable(err) || i == attempts-1 {
			return zero, err
		}
		logger.WarnCtx(ctx, "queue operation failed, retrying",
			zap.String("operation", string(op)),
			zap.Int("attempt", i+1),
			zap.Int("attempts", attempts),
			zap.Error(err),
		)

		select {
		case <-ctx.Done():
			return zero, err
		case <-time.After(p.delay(i)):
		}
	}
}

func doErr(ctx context.Context, p Policy, op queue.Operation, fn func(context.Context) error) error {
	_, err := Do(ctx, p, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

type retrying struct {
	queue.Backend
	policy Policy
}

// Wrap applies p to every operation of b. Send is only retried with p.RetrySend.
func Wrap(b queue.Backend, p Policy) queue.Backend {
	if p.Attempts <= 1 {
		return b
	}
	return &retrying{Backend: b, policy: p}
}

func (r *retrying) Send(ctx context.Context, payload string) (string, error) {
	if !r.policy.RetrySend {
		return r.Backend.Send(ctx, payload)
	}
	return Do(ctx, r.policy, queue.OpSend, func(ctx context.Context) (string, error) {
		return r.Backend.Send(ctx, payload)
	})
}

func (r *retrying) Receive(ctx context.Context) (*queue.InboundMessage, error) {
	return Do(ctx, r.policy, queue.OpReceive, r.Backend.Receive)
}

func (r *retrying) SetVisibilityTimeout(ctx context.Context, receiptHandle string, seconds int32) error {
	return doErr(ctx, r.policy, queue.OpSetVisibilityTimeout, func(ctx context.Context) error {
		return r.Backend.SetVisibilityTimeout(ctx, receiptHandle, seconds)
	})
}

func (r *retrying) DeleteMessage(ctx context.Context, receiptHandle string) error {
	return doErr(ctx, r.policy, queue.OpDeleteMessage, func(ctx context.Context) error {
		return r.Backend.DeleteMessage(ctx, receiptHandle)
	})
}

func (r *retrying) QueueArn(ctx context.Context) (string, error) {
	return Do(ctx, r.policy, queue.OpGetQueueArn, r.Backend.QueueArn)
}

func (r *retrying) SetPolicy(ctx context.Context, policy string) error {
	return doErr(ctx, r.policy, queue.OpSetPolicy, func(ctx context.Context) error {
		return r.Backend.SetPolicy(ctx, policy)
	})
}

func (r *retrying) DeleteQueue(ctx context.Context) error {
	return doErr(ctx, r.policy, queue.OpDeleteQueue, r.Backend.DeleteQueue)
}
