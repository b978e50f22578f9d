package redisQueue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aws-sqs-queue-backend/internal/pkg/queue"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestQueue(t *testing.T, async bool) (*RedisActions, *miniredis.Miniredis, *fakeClock) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	clock := &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	q := New(client, &Config{
		Key:               "queue-orders",
		VisibilityTimeout: 30 * time.Second,
		Async:             async,
		Now:               clock.Now,
	})
	return q, mr, clock
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	q, _, _ := newTestQueue(t, false)

	id, err := q.Send(ctx, "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msg, err := q.Receive(ctx)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, id, msg.ID)
	assert.Equal(t, "hello", msg.Body)
	assert.NotEmpty(t, msg.ReceiptHandle)
	assert.Equal(t, "1", msg.Attributes["ApproximateReceiveCount"])

	require.NoError(t, q.DeleteMessage(ctx, msg.ReceiptHandle))

	msg, err = q.Receive(ctx)
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestReceiveIsFIFOAndHidesInFlight(t *testing.T) {
	ctx := context.Background()
	q, _, _ := newTestQueue(t, false)

	for _, body := range []string{"a", "b"} {
		_, err := q.Send(ctx, body)
		require.NoError(t, err)
	}

	first, err := q.Receive(ctx)
	require.NoError(t, err)
	second, err := q.Receive(ctx)
	require.NoError(t, err)
	third, err := q.Receive(ctx)
	require.NoError(t, err)

	assert.Equal(t, "a", first.Body)
	assert.Equal(t, "b", second.Body)
	assert.Nil(t, third)
}

func TestReceiveEmpty(t *testing.T) {
	q, _, _ := newTestQueue(t, false)

	msg, err := q.Receive(context.Background())
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestExpiredDeliveryIsRedelivered(t *testing.T) {
	ctx := context.Background()
	q, _, clock := newTestQueue(t, false)

	_, err := q.Send(ctx, "hello")
	require.NoError(t, err)
	first, err := q.Receive(ctx)
	require.NoError(t, err)

	clock.Advance(31 * time.Second)

	second, err := q.Receive(ctx)
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, first.ID, second.ID)
	assert.NotEqual(t, first.ReceiptHandle, second.ReceiptHandle)
	assert.Equal(t, "2", second.Attributes["ApproximateReceiveCount"])

	err = q.DeleteMessage(ctx, first.ReceiptHandle)
	assert.True(t, queue.IsKind(err, queue.KindInvalidHandle))
	require.NoError(t, q.DeleteMessage(ctx, second.ReceiptHandle))
}

func TestDeleteMessageReusedHandle(t *testing.T) {
	ctx := context.Background()
	q, _, _ := newTestQueue(t, false)

	_, err := q.Send(ctx, "hello")
	require.NoError(t, err)
	msg, err := q.Receive(ctx)
	require.NoError(t, err)
	require.NoError(t, q.DeleteMessage(ctx, msg.ReceiptHandle))

	err = q.DeleteMessage(ctx, msg.ReceiptHandle)
	var be *queue.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, queue.KindInvalidHandle, be.Kind)
	assert.Equal(t, queue.OpDeleteMessage, be.Op)
	assert.ErrorIs(t, err, errUnknownReceipt)
}

func TestDeleteMessageExpiredHandle(t *testing.T) {
	ctx := context.Background()
	q, _, clock := newTestQueue(t, false)

	_, err := q.Send(ctx, "hello")
	require.NoError(t, err)
	msg, err := q.Receive(ctx)
	require.NoError(t, err)

	clock.Advance(30 * time.Second)

	err = q.DeleteMessage(ctx, msg.ReceiptHandle)
	assert.ErrorIs(t, err, errExpiredReceipt)
}

func TestSetVisibilityTimeout(t *testing.T) {
	ctx := context.Background()
	q, _, clock := newTestQueue(t, false)

	_, err := q.Send(ctx, "hello")
	require.NoError(t, err)
	msg, err := q.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, q.SetVisibilityTimeout(ctx, msg.ReceiptHandle, 120))
	clock.Advance(60 * time.Second)

	none, err := q.Receive(ctx)
	require.NoError(t, err)
	assert.Nil(t, none, "extended delivery must stay invisible")

	require.NoError(t, q.SetVisibilityTimeout(ctx, msg.ReceiptHandle, 0))
	again, err := q.Receive(ctx)
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, msg.ID, again.ID)
}

func TestSetVisibilityTimeoutInvalid(t *testing.T) {
	ctx := context.Background()
	q, _, _ := newTestQueue(t, false)

	err := q.SetVisibilityTimeout(ctx, "r1", -1)
	assert.True(t, queue.IsKind(err, queue.KindInvalidArgument))

	err = q.SetVisibilityTimeout(ctx, "r1", 43201)
	assert.True(t, queue.IsKind(err, queue.KindInvalidArgument))

	err = q.SetVisibilityTimeout(ctx, "unknown", 10)
	assert.True(t, queue.IsKind(err, queue.KindInvalidHandle))
}

func TestAttributes(t *testing.T) {
	ctx := context.Background()
	q, mr, _ := newTestQueue(t, false)

	arn, err := q.QueueArn(ctx)
	require.NoError(t, err)
	assert.Empty(t, arn)

	mr.HSet("queue-orders:attributes", "QueueArn", "arn:redis:local:queue-orders")
	arn, err = q.QueueArn(ctx)
	require.NoError(t, err)
	assert.Equal(t, "arn:redis:local:queue-orders", arn)

	require.NoError(t, q.SetPolicy(ctx, `{"v":1}`))
	require.NoError(t, q.SetPolicy(ctx, `{"v":2}`))
	assert.Equal(t, `{"v":2}`, mr.HGet("queue-orders:attributes", "Policy"))
}

func TestDeleteQueue(t *testing.T) {
	ctx := context.Background()
	q, mr, _ := newTestQueue(t, false)

	_, err := q.Send(ctx, "hello")
	require.NoError(t, err)
	_, err = q.Receive(ctx)
	require.NoError(t, err)
	require.NoError(t, q.SetPolicy(ctx, "{}"))

	require.NoError(t, q.DeleteQueue(ctx))
	assert.Empty(t, mr.Keys())
}

func TestSendAsync(t *testing.T) {
	ctx := context.Background()
	q, _, _ := newTestQueue(t, true)

	id, err := q.Send(ctx, "hello")
	require.NoError(t, err)
	assert.Empty(t, id)
	require.NoError(t, q.Close())

	msg, err := q.Receive(ctx)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, "hello", msg.Body)
}

func TestSendAfterClose(t *testing.T) {
	q, mr, _ := newTestQueue(t, true)
	require.NoError(t, q.Close())

	_, err := q.Send(context.Background(), "late")

	assert.True(t, queue.IsKind(err, queue.KindClosed))
	assert.False(t, mr.Exists("queue-orders"))
}

func TestTransportFailure(t *testing.T) {
	ctx := context.Background()
	q, mr, _ := newTestQueue(t, false)
	mr.Close()

	_, err := q.Send(ctx, "hello")
	var be *queue.BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, queue.OpSend, be.Op)
	assert.Equal(t, "queue-orders", be.Queue)
	assert.Equal(t, queue.KindTransient, be.Kind)

	_, err = q.Receive(ctx)
	assert.True(t, queue.IsKind(err, queue.KindTransient))
	_, err = q.QueueArn(ctx)
	assert.True(t, queue.IsKind(err, queue.KindTransient))
}

type serverError string

func (e serverError) Error() string { return string(e) }

func (serverError) RedisError() {}

func TestClassify(t *testing.T) {
	assert.Equal(t, queue.KindTransient, classify(serverError("LOADING Redis is loading the dataset in memory")))
	assert.Equal(t, queue.KindPermissionDenied, classify(serverError("NOPERM this user has no permissions")))
	assert.Equal(t, queue.KindUnknown, classify(serverError("ERR syntax error")))
	assert.Equal(t, queue.KindUnknown, classify(errors.New("plain")))
}
