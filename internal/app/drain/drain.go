// Package drain moves messages out of a queue into a stream of JSON lines.
package drain

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"aws-sqs-queue-backend/internal/pkg/logger"
	"aws-sqs-queue-backend/internal/pkg/observability/metrics"
	"aws-sqs-queue-backend/internal/pkg/queue"
)

// Record is one line of drain output.
type Record struct {
	ID         string            `json:"id"`
	Queue      string            `json:"queue"`
	Body       string            `json:"body"`
	Attributes map[string]string `json:"attributes,omitempty"`
	DrainedAt  time.Time         `json:"drained_at"`
}

type Worker struct {
	Queue           queue.Backend
	Out             io.Writer
	PollingInterval time.Duration
	// ExitWhenEmpty stops Run on the first empty receive.
	ExitWhenEmpty bool
	Now           func() time.Time
}

// Run drains until ctx is done. A message is deleted only after its line is
// written, so a failed write leaves it to be redelivered.
func (w *Worker) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("drain worker panic", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("drain worker panic: %v", r)
		}
	}()

	enc := json.NewEncoder(w.Out)
	for {
		if ctx.Err() != nil {
			logger.Info("Stopping drain loop")
			return nil
		}

		msg, err := w.Queue.Receive(ctx)
		switch {
		case err != nil:
			if queue.IsKind(err, queue.KindCanceled) {
				return nil
			}
			logger.ErrorCtx(ctx, "Failed to receive message", zap.Error(err))
			if !queue.IsRetryable(err) {
				return err
			}
		case msg == nil:
			if w.ExitWhenEmpty {
				return nil
			}
		default:
			if err := w.handle(ctx, enc, msg); err != nil {
				return err
			}
			continue
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(w.PollingInterval):
		}
	}
}

func (w *Worker) handle(ctx context.Context, enc *json.Encoder, msg *queue.InboundMessage) error {
	now := time.Now
	if w.Now != nil {
		now = w.Now
	}
	record := Record{
		ID:         msg.ID,
		Queue:      w.Queue.Handle().String(),
		Body:       msg.Body,
		Attributes: msg.Attributes,
		DrainedAt:  now().UTC(),
	}
	if err := enc.Encode(record); err != nil {
		return fmt.Errorf("failed to write message %s: %w", msg.ID, err)
	}

	if err := w.Queue.DeleteMessage(ctx, msg.ReceiptHandle); err != nil {
		// The line is already out; the redelivered copy will be written again.
		logger.WarnCtx(ctx, "Failed to delete drained message",
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
		return nil
	}
	metrics.MessagesDrained.Inc()
	return nil
}
