package redisQueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"aws-sqs-queue-backend/internal/pkg/logger"
	"aws-sqs-queue-backend/internal/pkg/queue"
)

const (
	defaultVisibilityTimeout = 30 * time.Second
	maxVisibilityTimeout     = 12 * time.Hour
)

var _ queue.Backend = (*RedisActions)(nil)

var (
	errUnknownReceipt = errors.New("receipt handle is not in flight")
	errExpiredReceipt = errors.New("receipt handle has expired")
)

// RedisActions stores a queue in Redis under one key prefix.
type RedisActions struct {
	Client redis.UniversalClient // Redis client
	Config *Config               // Configuration for Redis queue

	pending queue.Inflight
}

type Config struct {
	Key               string        // Redis key of the ready list, also the queue handle
	VisibilityTimeout time.Duration // Default invisibility window after receive
	Async             bool          // Fire-and-forget sends
	Now               func() time.Time
}

// NewClient creates a new redis client
func NewClient(addr string, db int) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
}

// New creates a new RedisActions instance.
func New(client redis.UniversalClient, cfg *Config) *RedisActions {
	if cfg.VisibilityTimeout <= 0 {
		cfg.VisibilityTimeout = defaultVisibilityTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &RedisActions{Client: client, Config: cfg}
}

func (q *RedisActions) Handle() queue.Handle {
	return queue.Handle(q.Config.Key)
}

func (q *RedisActions) key(suffix string) string {
	return q.Config.Key + ":" + suffix
}

func (q *RedisActions) now() int64 {
	return q.Config.Now().UnixMilli()
}

func (q *RedisActions) fail(op queue.Operation, action string, err error) error {
	return queue.Normalize(Classifier, op, q.Handle(), action, err)
}

// Send stores the body under a new id and pushes the id onto the ready list in one transaction.
func (q *RedisActions) Send(ctx context.Context, payload string) (string, error) {
	id := uuid.NewString()

	if err := q.pending.Begin(q.Handle()); err != nil {
		return "", err
	}

	if q.Config.Async {
		go func(ctx context.Context) {
			defer q.pending.Done()
			if err := q.push(ctx, id, payload); err != nil {
				logger.ErrorCtx(ctx, "async redis send failed",
					zap.String("queue", q.Config.Key),
					zap.Error(q.fail(queue.OpSend, queue.SendAction(q.Handle()), err)),
				)
			}
		}(context.WithoutCancel(ctx))
		return "", nil
	}

	defer q.pending.Done()
	if err := q.push(ctx, id, payload); err != nil {
		return "", q.fail(queue.OpSend, queue.SendAction(q.Handle()), err)
	}
	return id, nil
}

func (q *RedisActions) push(ctx context.Context, id, payload string) error {
	_, err := q.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, q.key("messages"), id, payload)
		pipe.LPush(ctx, q.Config.Key, id)
		return nil
	})
	return err
}

// Receive requeues expired deliveries, then takes the oldest ready message and makes it
// invisible for the configured visibility timeout.
func (q *RedisActions) Receive(ctx context.Context) (*queue.InboundMessage, error) {
	now := q.now()
	receipt := uuid.NewString()
	keys := []string{q.Config.Key, q.key("messages"), q.key("inflight"), q.key("receipts"), q.key("counts")}

	res, err := receiveScript.Run(ctx, q.Client, keys, now, now+q.Config.VisibilityTimeout.Milliseconds(), receipt).StringSlice()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, q.fail(queue.OpReceive, queue.ReceiveAction(q.Handle()), err)
	}
	if len(res) != 3 {
		return nil, q.fail(queue.OpReceive, queue.ReceiveAction(q.Handle()),
			fmt.Errorf("unexpected receive script reply of %d elements", len(res)))
	}

	return &queue.InboundMessage{
		ID:            res[0],
		Body:          res[1],
		ReceiptHandle: receipt,
		Attributes:    map[string]string{"ApproximateReceiveCount": res[2]},
	}, nil
}

// SetVisibilityTimeout moves the deadline of an in-flight delivery. Zero makes it visible
// again on the next receive.
func (q *RedisActions) SetVisibilityTimeout(ctx context.Context, receiptHandle string, seconds int32) error {
	action := queue.VisibilityAction(receiptHandle)
	timeout := time.Duration(seconds) * time.Second
	if timeout < 0 || timeout > maxVisibilityTimeout {
		return queue.NewError(queue.OpSetVisibilityTimeout, q.Handle(), queue.KindInvalidArgument, action,
			fmt.Errorf("visibility timeout %ds is outside 0..%d", seconds, int(maxVisibilityTimeout.Seconds())))
	}

	now := q.now()
	keys := []string{q.key("inflight"), q.key("receipts")}
	res, err := visibilityScript.Run(ctx, q.Client, keys, receiptHandle, now, now+timeout.Milliseconds()).Int()
	if err != nil {
		return q.fail(queue.OpSetVisibilityTimeout, action, err)
	}
	return q.receiptResult(queue.OpSetVisibilityTimeout, action, res)
}

// DeleteMessage removes the message behind an in-flight receipt handle.
func (q *RedisActions) DeleteMessage(ctx context.Context, receiptHandle string) error {
	action := queue.DeleteMessageAction(receiptHandle)
	keys := []string{q.key("inflight"), q.key("receipts"), q.key("messages"), q.key("counts")}
	res, err := deleteScript.Run(ctx, q.Client, keys, receiptHandle, q.now()).Int()
	if err != nil {
		return q.fail(queue.OpDeleteMessage, action, err)
	}
	return q.receiptResult(queue.OpDeleteMessage, action, res)
}

func (q *RedisActions) receiptResult(op queue.Operation, action string, res int) error {
	switch res {
	case 1:
		return nil
	case -1:
		return queue.NewError(op, q.Handle(), queue.KindInvalidHandle, action, errExpiredReceipt)
	default:
		return queue.NewError(op, q.Handle(), queue.KindInvalidHandle, action, errUnknownReceipt)
	}
}

// QueueArn reads the QueueArn attribute. Queues without one yield "".
func (q *RedisActions) QueueArn(ctx context.Context) (string, error) {
	arn, err := q.Client.HGet(ctx, q.key("attributes"), queue.AttributeQueueArn).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", q.fail(queue.OpGetQueueArn, queue.QueueArnAction(q.Handle()), err)
	}
	return arn, nil
}

func (q *RedisActions) SetPolicy(ctx context.Context, policy string) error {
	err := q.Client.HSet(ctx, q.key("attributes"), queue.AttributePolicy, policy).Err()
	return q.fail(queue.OpSetPolicy, queue.SetPolicyAction(q.Handle()), err)
}

// DeleteQueue drops every key of the queue.
func (q *RedisActions) DeleteQueue(ctx context.Context) error {
	err := q.Client.Del(ctx,
		q.Config.Key,
		q.key("messages"),
		q.key("inflight"),
		q.key("receipts"),
		q.key("counts"),
		q.key("attributes"),
	).Err()
	return q.fail(queue.OpDeleteQueue, queue.DeleteQueueAction(q.Handle()), err)
}

// Close rejects new sends and waits for pending ones. The client is closed by its owner.
func (q *RedisActions) Close() error {
	q.pending.Close()
	return nil
}
