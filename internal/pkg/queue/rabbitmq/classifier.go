package rabbitmq

import (
	"errors"
	"net"

	amqp "github.com/rabbitmq/amqp091-go"

	"aws-sqs-queue-backend/internal/pkg/queue"
)

// Classifier maps AMQP errors to queue kinds.
var Classifier = queue.ClassifierFunc(classify)

// handleClassifier is used for ack/nack, where a precondition failure means the
// delivery tag is unknown on the channel.
var handleClassifier = queue.ClassifierFunc(func(err error) queue.Kind {
	kind := classify(err)
	if kind == queue.KindInvalidArgument {
		return queue.KindInvalidHandle
	}
	return kind
})

func classify(err error) queue.Kind {
	var amqpErr *amqp.Error
	if errors.As(err, &amqpErr) {
		switch amqpErr.Code {
		case amqp.AccessRefused:
			return queue.KindPermissionDenied
		case amqp.NotFound:
			return queue.KindNotFound
		case amqp.PreconditionFailed:
			return queue.KindInvalidArgument
		case amqp.NotImplemented:
			return queue.KindUnsupported
		case amqp.ConnectionForced, amqp.ChannelError, amqp.ResourceError, amqp.InternalError, amqp.FrameError:
			return queue.KindTransient
		}
		if amqpErr.Recover {
			return queue.KindTransient
		}
		return queue.KindUnknown
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return queue.KindTransient
	}
	return queue.KindUnknown
}
