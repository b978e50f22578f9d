package queue

import (
	"context"
	"errors"
	"fmt"
)

// Operation names a Backend method in errors, logs and metrics.
type Operation string

const (
	OpSend                 Operation = "send"
	OpReceive              Operation = "receive"
	OpSetVisibilityTimeout Operation = "set_visibility_timeout"
	OpDeleteMessage        Operation = "delete_message"
	OpGetQueueArn          Operation = "get_queue_arn"
	OpSetPolicy            Operation = "set_policy"
	OpDeleteQueue          Operation = "delete_queue"
)

// Kind is a coarse classification of a provider failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransient
	KindPermissionDenied
	KindNotFound
	KindInvalidHandle
	KindInvalidArgument
	KindUnsupported
	KindCanceled
	KindClosed
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindPermissionDenied:
		return "permission_denied"
	case KindNotFound:
		return "not_found"
	case KindInvalidHandle:
		return "invalid_handle"
	case KindInvalidArgument:
		return "invalid_argument"
	case KindUnsupported:
		return "unsupported"
	case KindCanceled:
		return "canceled"
	case KindClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// BackendError is the only error type a Backend returns.
type BackendError struct {
	Op     Operation
	Queue  string
	Action string
	Kind   Kind
	Err    error
}

func (e *BackendError) Error() string {
	if e.Err == nil {
		return e.Action
	}
	return fmt.Sprintf("%s: %v", e.Action, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// Classifier maps a provider-native error to a Kind.
type Classifier interface {
	Classify(err error) Kind
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(err error) Kind

func (f ClassifierFunc) Classify(err error) Kind {
	return f(err)
}

// Normalize wraps err into a *BackendError. A nil err stays nil and an existing
// *BackendError is returned unchanged. Context cancellation always yields KindCanceled.
func Normalize(c Classifier, op Operation, queue Handle, action string, err error) error {
	if err == nil {
		return nil
	}
	var be *BackendError
	if errors.As(err, &be) {
		return err
	}
	kind := KindUnknown
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = KindCanceled
	case c != nil:
		kind = c.Classify(err)
	}
	return &BackendError{
		Op:     op,
		Queue:  queue.String(),
		Action: action,
		Kind:   kind,
		Err:    err,
	}
}

// NewError builds a *BackendError for failures the backend detects itself.
func NewError(op Operation, queue Handle, kind Kind, action string, err error) *BackendError {
	return &BackendError{Op: op, Queue: queue.String(), Action: action, Kind: kind, Err: err}
}

// KindOf returns the Kind of a *BackendError in err's chain, or KindUnknown.
func KindOf(err error) Kind {
	var be *BackendError
	if errors.As(err, &be) {
		return be.Kind
	}
	return KindUnknown
}

func IsKind(err error, kind Kind) bool {
	var be *BackendError
	return errors.As(err, &be) && be.Kind == kind
}

// IsRetryable reports whether err is a transient backend failure.
func IsRetryable(err error) bool {
	return IsKind(err, KindTransient)
}

// Action texts shared by all backends.
func SendAction(q Handle) string {
	return "unable to send message to queue " + q.String()
}

func ReceiveAction(q Handle) string {
	return "unable to retrieve message from queue " + q.String()
}

func VisibilityAction(receiptHandle string) string {
	return "unable to reset message visibility for message with receipt handle " + receiptHandle
}

func DeleteMessageAction(receiptHandle string) string {
	return "unable to delete message with receipt handle " + receiptHandle
}

func QueueArnAction(q Handle) string {
	return "unable to get queue ARN for queue " + q.String()
}

func SetPolicyAction(q Handle) string {
	return "unable to set policy for queue " + q.String()
}

func DeleteQueueAction(q Handle) string {
	return "unable to delete message queue " + q.String()
}
