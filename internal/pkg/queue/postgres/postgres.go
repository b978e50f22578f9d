// Package postgres stores queues in two PostgreSQL tables and hands out deliveries
// with FOR UPDATE SKIP LOCKED.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"aws-sqs-queue-backend/internal/pkg/logger"
	"aws-sqs-queue-backend/internal/pkg/queue"
)

// Schema creates the tables the backend expects.
const Schema = `
CREATE TABLE IF NOT EXISTS queue_messages (
	id             UUID PRIMARY KEY,
	queue          TEXT NOT NULL,
	body           TEXT NOT NULL,
	receipt_handle UUID UNIQUE,
	visible_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	receive_count  INTEGER NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
);
CREATE INDEX IF NOT EXISTS queue_messages_ready_idx ON queue_messages (queue, visible_at, created_at);
CREATE TABLE IF NOT EXISTS queue_attributes (
	queue TEXT NOT NULL,
	name  TEXT NOT NULL,
	value TEXT NOT NULL,
	PRIMARY KEY (queue, name)
);
`

const (
	sendSQL = `INSERT INTO queue_messages (id, queue, body) VALUES ($1, $2, $3)`

	receiveSQL = `
UPDATE queue_messages
SET receipt_handle = $2, visible_at = now() + make_interval(secs => $3), receive_count = receive_count + 1
WHERE id = (
	SELECT id FROM queue_messages
	WHERE queue = $1 AND visible_at <= now()
	ORDER BY created_at, id
	LIMIT 1
	FOR UPDATE SKIP LOCKED
)
RETURNING id, body, receive_count`

	visibilitySQL = `
UPDATE queue_messages SET visible_at = now() + make_interval(secs => $3)
WHERE queue = $1 AND receipt_handle = $2 AND visible_at > now()`

	deleteMessageSQL = `DELETE FROM queue_messages WHERE queue = $1 AND receipt_handle = $2 AND visible_at > now()`

	getAttributeSQL = `SELECT value FROM queue_attributes WHERE queue = $1 AND name = $2`

	setAttributeSQL = `
INSERT INTO queue_attributes (queue, name, value) VALUES ($1, $2, $3)
ON CONFLICT (queue, name) DO UPDATE SET value = EXCLUDED.value`

	deleteQueueSQL = `
WITH removed AS (DELETE FROM queue_messages WHERE queue = $1)
DELETE FROM queue_attributes WHERE queue = $1`
)

const maxVisibilityTimeout = 12 * time.Hour

var errUnknownReceipt = errors.New("receipt handle is unknown or no longer in flight")

// DB is satisfied by *pgxpool.Pool, *pgx.Conn and pgx.Tx.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ queue.Backend = (*Backend)(nil)

type Config struct {
	Queue             string
	VisibilityTimeout time.Duration
	Async             bool
}

type Backend struct {
	db         DB
	handle     queue.Handle
	visibility time.Duration
	async      bool
	pending    queue.Inflight
}

// OpenPool parses dsn, connects and pings. The caller owns the pool.
func OpenPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

func New(db DB, cfg Config) *Backend {
	visibility := cfg.VisibilityTimeout
	if visibility <= 0 {
		visibility = 30 * time.Second
	}
	return &Backend{
		db:         db,
		handle:     queue.Handle(cfg.Queue),
		visibility: visibility,
		async:      cfg.Async,
	}
}

func (b *Backend) Handle() queue.Handle {
	return b.handle
}

func (b *Backend) fail(op queue.Operation, action string, err error) error {
	return queue.Normalize(Classifier, op, b.handle, action, err)
}

func (b *Backend) Send(ctx context.Context, payload string) (string, error) {
	id := uuid.NewString()

	if err := b.pending.Begin(b.handle); err != nil {
		return "", err
	}

	if b.async {
		go func(ctx context.Context) {
			defer b.pending.Done()
			if _, err := b.db.Exec(ctx, sendSQL, id, b.handle.String(), payload); err != nil {
				logger.ErrorCtx(ctx, "async postgres send failed",
					zap.String("queue", b.handle.String()),
					zap.Error(b.fail(queue.OpSend, queue.SendAction(b.handle), err)),
				)
			}
		}(context.WithoutCancel(ctx))
		return "", nil
	}

	defer b.pending.Done()
	if _, err := b.db.Exec(ctx, sendSQL, id, b.handle.String(), payload); err != nil {
		return "", b.fail(queue.OpSend, queue.SendAction(b.handle), err)
	}
	return id, nil
}

// Receive claims the oldest visible message and rotates its receipt handle.
func (b *Backend) Receive(ctx context.Context) (*queue.InboundMessage, error) {
	receipt := uuid.NewString()

	var (
		id    string
		body  string
		count int32
	)
	err := b.db.QueryRow(ctx, receiveSQL, b.handle.String(), receipt, b.visibility.Seconds()).Scan(&id, &body, &count)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, b.fail(queue.OpReceive, queue.ReceiveAction(b.handle), err)
	}

	return &queue.InboundMessage{
		ID:            id,
		Body:          body,
		ReceiptHandle: receipt,
		Attributes:    map[string]string{"ApproximateReceiveCount": strconv.Itoa(int(count))},
	}, nil
}

func (b *Backend) SetVisibilityTimeout(ctx context.Context, receiptHandle string, seconds int32) error {
	action := queue.VisibilityAction(receiptHandle)
	timeout := time.Duration(seconds) * time.Second
	if timeout < 0 || timeout > maxVisibilityTimeout {
		return queue.NewError(queue.OpSetVisibilityTimeout, b.handle, queue.KindInvalidArgument, action,
			fmt.Errorf("visibility timeout %ds is outside 0..%d", seconds, int(maxVisibilityTimeout.Seconds())))
	}
	if _, err := uuid.Parse(receiptHandle); err != nil {
		return queue.NewError(queue.OpSetVisibilityTimeout, b.handle, queue.KindInvalidHandle, action, err)
	}

	tag, err := b.db.Exec(ctx, visibilitySQL, b.handle.String(), receiptHandle, timeout.Seconds())
	if err != nil {
		return b.fail(queue.OpSetVisibilityTimeout, action, err)
	}
	if tag.RowsAffected() == 0 {
		return queue.NewError(queue.OpSetVisibilityTimeout, b.handle, queue.KindInvalidHandle, action, errUnknownReceipt)
	}
	return nil
}

func (b *Backend) DeleteMessage(ctx context.Context, receiptHandle string) error {
	action := queue.DeleteMessageAction(receiptHandle)
	if _, err := uuid.Parse(receiptHandle); err != nil {
		return queue.NewError(queue.OpDeleteMessage, b.handle, queue.KindInvalidHandle, action, err)
	}

	tag, err := b.db.Exec(ctx, deleteMessageSQL, b.handle.String(), receiptHandle)
	if err != nil {
		return b.fail(queue.OpDeleteMessage, action, err)
	}
	if tag.RowsAffected() == 0 {
		return queue.NewError(queue.OpDeleteMessage, b.handle, queue.KindInvalidHandle, action, errUnknownReceipt)
	}
	return nil
}

func (b *Backend) QueueArn(ctx context.Context) (string, error) {
	var arn string
	err := b.db.QueryRow(ctx, getAttributeSQL, b.handle.String(), queue.AttributeQueueArn).Scan(&arn)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", b.fail(queue.OpGetQueueArn, queue.QueueArnAction(b.handle), err)
	}
	return arn, nil
}

func (b *Backend) SetPolicy(ctx context.Context, policy string) error {
	_, err := b.db.Exec(ctx, setAttributeSQL, b.handle.String(), queue.AttributePolicy, policy)
	return b.fail(queue.OpSetPolicy, queue.SetPolicyAction(b.handle), err)
}

func (b *Backend) DeleteQueue(ctx context.Context) error {
	_, err := b.db.Exec(ctx, deleteQueueSQL, b.handle.String())
	return b.fail(queue.OpDeleteQueue, queue.DeleteQueueAction(b.handle), err)
}

// Close rejects new sends and waits for pending ones. The pool is closed by its owner.
func (b *Backend) Close() error {
	b.pending.Close()
	return nil
}
