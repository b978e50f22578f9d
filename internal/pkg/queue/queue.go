package queue

import (
	"context"
	"errors"
)

// Attribute names understood by every backend.
const (
	AttributeQueueArn = "QueueArn"
	AttributePolicy   = "Policy"
)

// Handle identifies one destination queue: an SQS URL, a Redis key, an AMQP queue name, etc.
type Handle string

func (h Handle) String() string { return string(h) }

// InboundMessage is one delivery of a message. ReceiptHandle is only valid while the
// delivery is invisible to other receivers.
type InboundMessage struct {
	ID            string
	Body          string
	ReceiptHandle string
	Attributes    map[string]string
}

// Backend defines the operations every queue provider adapter implements.
// The destination is bound at construction; every call is one provider round trip.
type Backend interface {
	// Send submits payload. Synchronous backends return the provider message id,
	// asynchronous ones return "" without waiting for the provider.
	Send(ctx context.Context, payload string) (string, error)
	// Receive polls once for at most one message. It returns nil, nil when none is available.
	Receive(ctx context.Context) (*InboundMessage, error)
	// SetVisibilityTimeout resets the invisibility window of one in-flight delivery.
	SetVisibilityTimeout(ctx context.Context, receiptHandle string, seconds int32) error
	// DeleteMessage acknowledges the delivery identified by receiptHandle.
	DeleteMessage(ctx context.Context, receiptHandle string) error
	// QueueArn returns the canonical provider identifier, or "" when the provider has none.
	QueueArn(ctx context.Context) (string, error)
	// SetPolicy replaces the queue access policy.
	SetPolicy(ctx context.Context, policy string) error
	// DeleteQueue removes the destination itself.
	DeleteQueue(ctx context.Context) error
	// Handle returns the bound destination.
	Handle() Handle
	// Close waits for pending asynchronous sends and releases owned resources.
	Close() error
}

type closingBackend struct {
	Backend
	closers []func() error
}

// WithCloser returns b with closers run, in order, after b.Close. It is used for
// clients and pools a backend shares but does not own.
func WithCloser(b Backend, closers ...func() error) Backend {
	if len(closers) == 0 {
		return b
	}
	return &closingBackend{Backend: b, closers: closers}
}

func (c *closingBackend) Close() error {
	errs := []error{c.Backend.Close()}
	for _, closer := range c.closers {
		errs = append(errs, closer())
	}
	return errors.Join(errs...)
}
