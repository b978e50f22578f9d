// Package queuetest provides a testify mock of queue.Backend.
package queuetest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"aws-sqs-queue-backend/internal/pkg/queue"
)

var _ queue.Backend = (*Backend)(nil)

type Backend struct {
	mock.Mock
	Queue queue.Handle
}

func New(q queue.Handle) *Backend {
	return &Backend{Queue: q}
}

func (m *Backend) Send(ctx context.Context, payload string) (string, error) {
	args := m.Called(ctx, payload)
	return args.String(0), args.Error(1)
}

func (m *Backend) Receive(ctx context.Context) (*queue.InboundMessage, error) {
	args := m.Called(ctx)
	msg, _ := args.Get(0).(*queue.InboundMessage)
	return msg, args.Error(1)
}

func (m *Backend) SetVisibilityTimeout(ctx context.Context, receiptHandle string, seconds int32) error {
	return m.Called(ctx, receiptHandle, seconds).Error(0)
}

func (m *Backend) DeleteMessage(ctx context.Context, receiptHandle string) error {
	return m.Called(ctx, receiptHandle).Error(0)
}

func (m *Backend) QueueArn(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *Backend) SetPolicy(ctx context.Context, policy string) error {
	return m.Called(ctx, policy).Error(0)
}

func (m *Backend) DeleteQueue(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *Backend) Handle() queue.Handle {
	return m.Queue
}

func (m *Backend) Close() error {
	return m.Called().Error(0)
}

// Fail builds the error a real backend would return for op.
func Fail(q queue.Handle, op queue.Operation, kind queue.Kind) error {
	return queue.NewError(op, q, kind, "unable to "+string(op), nil)
}
