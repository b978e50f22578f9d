package backend

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"aws-sqs-queue-backend/configs"
	"aws-sqs-queue-backend/internal/pkg/queue"
)

func redisConfig(addr string) *configs.Config {
	return &configs.Config{
		QueueType:                 configs.QueueTypeRedis,
		QueueRedisEndpoint:        addr,
		QueueRedisKey:             "queue-orders",
		VisibilityTimeoutDuration: 30 * time.Second,
		QueueRetryAttempts:        3,
		RetryBaseDelay:            time.Millisecond,
		RetryMaxDelay:             time.Millisecond,
	}
}

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	b, err := Open(ctx, redisConfig(mr.Addr()))
	require.NoError(t, err)

	assert.Equal(t, queue.Handle("queue-orders"), b.Handle())

	id, err := b.Send(ctx, "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msg, err := b.Receive(ctx)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.Equal(t, id, msg.ID)
	require.NoError(t, b.DeleteMessage(ctx, msg.ReceiptHandle))

	require.NoError(t, b.Close())
}

func TestOpenRedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := Open(context.Background(), redisConfig(addr))
	assert.ErrorContains(t, err, "failed to connect to redis")
}

func TestOpenPostgresBadDSN(t *testing.T) {
	_, err := Open(context.Background(), &configs.Config{
		QueueType:        configs.QueueTypePostgres,
		QueuePostgresDSN: "postgres://user@localhost:notaport/db",
	})
	assert.ErrorContains(t, err, "failed to parse database URL")
}

func TestOpenUnsupported(t *testing.T) {
	_, err := Open(context.Background(), &configs.Config{QueueType: "kafka"})
	assert.EqualError(t, err, `unsupported queue type "kafka"`)
}

func TestPolicy(t *testing.T) {
	p := Policy(redisConfig("unused"))
	assert.Equal(t, 3, p.Attempts)
	assert.Equal(t, time.Millisecond, p.BaseDelay)
	assert.False(t, p.RetrySend)
}
