package queue_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"aws-sqs-queue-backend/internal/pkg/queue"
	"aws-sqs-queue-backend/internal/pkg/queue/queuetest"
)

func TestWithCloser(t *testing.T) {
	b := queuetest.New("orders")
	b.On("Close").Return(nil).Once()

	var order []string
	wrapped := queue.WithCloser(b,
		func() error { order = append(order, "client"); return errors.New("client closed twice") },
		func() error { order = append(order, "pool"); return nil },
	)

	err := wrapped.Close()
	assert.EqualError(t, err, "client closed twice")
	assert.Equal(t, []string{"client", "pool"}, order)
	assert.Equal(t, queue.Handle("orders"), wrapped.Handle())
	b.AssertExpectations(t)
}

func TestWithCloserWithoutClosers(t *testing.T) {
	b := queuetest.New("orders")
	assert.Same(t, b, queue.WithCloser(b))
}
