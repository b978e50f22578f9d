package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"aws-sqs-queue-backend/internal/pkg/queue"
)

const resultOK = "ok"

var (
	Operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_backend_operations_total",
			Help: "Total queue backend operations by result (ok or error kind)",
		}, []string{"backend", "operation", "result"})

	OperationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "queue_backend_operation_seconds",
			Help:    "Histogram of queue backend operation duration",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend", "operation"})

	MessagesDrained = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "queue_drain_messages_total",
			Help: "Total messages written and deleted by the drain worker",
		})
)

func Setup() {
	prometheus.MustRegister(Operations)
	prometheus.MustRegister(OperationSeconds)
	prometheus.MustRegister(MessagesDrained)
}

type instrumented struct {
	queue.Backend
	name string
}

// Instrument records a count and a latency sample for every call on b.
func Instrument(name string, b queue.Backend) queue.Backend {
	return &instrumented{Backend: b, name: name}
}

func (i *instrumented) observe(op queue.Operation, start time.Time, err error) {
	result := resultOK
	if err != nil {
		result = queue.KindOf(err).String()
	}
	Operations.WithLabelValues(i.name, string(op), result).Inc()
	OperationSeconds.WithLabelValues(i.name, string(op)).Observe(time.Since(start).Seconds())
}

func (i *instrumented) Send(ctx context.Context, payload string) (string, error) {
	start := time.Now()
	id, err := i.Backend.Send(ctx, payload)
	i.observe(queue.OpSend, start, err)
	return id, err
}

func (i *instrumented) Receive(ctx context.Context) (*queue.InboundMessage, error) {
	start := time.Now()
	msg, err := i.Backend.Receive(ctx)
	i.observe(queue.OpReceive, start, err)
	return msg, err
}

func (i *instrumented) SetVisibilityTimeout(ctx context.Context, receiptHandle string, seconds int32) error {
	start := time.Now()
	err := i.Backend.SetVisibilityTimeout(ctx, receiptHandle, seconds)
	i.observe(queue.OpSetVisibilityTimeout, start, err)
	return err
}

func (i *instrumented) DeleteMessage(ctx context.Context, receiptHandle string) error {
	start := time.Now()
	err := i.Backend.DeleteMessage(ctx, receiptHandle)
	i.observe(queue.OpDeleteMessage, start, err)
	return err
}

func (i *instrumented) QueueArn(ctx context.Context) (string, error) {
	start := time.Now()
	arn, err := i.Backend.QueueArn(ctx)
	i.observe(queue.OpGetQueueArn, start, err)
	return arn, err
}

func (i *instrumented) SetPolicy(ctx context.Context, policy string) error {
	start := time.Now()
	err := i.Backend.SetPolicy(ctx, policy)
	i.observe(queue.OpSetPolicy, start, err)
	return err
}

func (i *instrumented) DeleteQueue(ctx context.Context) error {
	start := time.Now()
	err := i.Backend.DeleteQueue(ctx)
	i.observe(queue.OpDeleteQueue, start, err)
	return err
}
