package sqs

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"aws-sqs-queue-backend/internal/pkg/logger"
	"aws-sqs-queue-backend/internal/pkg/queue"
)

// API is the part of the SQS client used by Backend, so it can be mocked.
type API interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
	SetQueueAttributes(ctx context.Context, params *sqs.SetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.SetQueueAttributesOutput, error)
	DeleteQueue(ctx context.Context, params *sqs.DeleteQueueInput, optFns ...func(*sqs.Options)) (*sqs.DeleteQueueOutput, error)
}

var _ queue.Backend = (*Backend)(nil)

// ClientConfig selects where the shared SQS client talks to.
type ClientConfig struct {
	Region   string
	Endpoint string // LocalStack or another SQS-compatible endpoint
}

type Config struct {
	QueueURL string // SQS queue URL
	Async    bool   // fire-and-forget sends
}

// Backend binds one SQS queue URL to a shared SQS client.
type Backend struct {
	client  API
	handle  queue.Handle
	async   bool
	pending queue.Inflight
}

// NewClient creates a new sqs client
func NewClient(ctx context.Context, cfg ClientConfig) (*sqs.Client, error) {
	// Load the Shared AWS Configuration
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	if cfg.Endpoint != "" {
		return sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}), nil
	}
	return sqs.NewFromConfig(awsCfg), nil
}

// New binds cfg.QueueURL to client. The client may be shared by many backends.
func New(client API, cfg Config) *Backend {
	return &Backend{
		client: client,
		handle: queue.Handle(cfg.QueueURL),
		async:  cfg.Async,
	}
}

func (b *Backend) Handle() queue.Handle {
	return b.handle
}

func (b *Backend) url() *string {
	return aws.String(b.handle.String())
}

func (b *Backend) fail(op queue.Operation, action string, err error) error {
	return queue.Normalize(Classifier, op, b.handle, action, err)
}

// Send sends payload to the queue. In async mode the request is submitted in the
// background and "" is returned.
func (b *Backend) Send(ctx context.Context, payload string) (string, error) {
	input := &sqs.SendMessageInput{
		QueueUrl:    b.url(),
		MessageBody: aws.String(payload),
	}

	if err := b.pending.Begin(b.handle); err != nil {
		return "", err
	}

	if b.async {
		go func(ctx context.Context) {
			defer b.pending.Done()
			if _, err := b.client.SendMessage(ctx, input); err != nil {
				logger.ErrorCtx(ctx, "async SQS SendMessage failed",
					zap.String("queue", b.handle.String()),
					zap.Error(b.fail(queue.OpSend, queue.SendAction(b.handle), err)),
				)
			}
		}(context.WithoutCancel(ctx))
		return "", nil
	}

	defer b.pending.Done()
	out, err := b.client.SendMessage(ctx, input)
	if err != nil {
		return "", b.fail(queue.OpSend, queue.SendAction(b.handle), err)
	}
	return aws.ToString(out.MessageId), nil
}

// Receive polls the queue once for a single message.
func (b *Backend) Receive(ctx context.Context) (*queue.InboundMessage, error) {
	out, err := b.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            b.url(),
		MaxNumberOfMessages: 1,
	})
	if err != nil {
		return nil, b.fail(queue.OpReceive, queue.ReceiveAction(b.handle), err)
	}
	if out == nil || len(out.Messages) == 0 {
		return nil, nil
	}
	return toInbound(out.Messages[0]), nil
}

func toInbound(msg types.Message) *queue.InboundMessage {
	in := &queue.InboundMessage{
		ID:            aws.ToString(msg.MessageId),
		Body:          aws.ToString(msg.Body),
		ReceiptHandle: aws.ToString(msg.ReceiptHandle),
	}
	if len(msg.Attributes) > 0 {
		in.Attributes = make(map[string]string, len(msg.Attributes))
		for k, v := range msg.Attributes {
			in.Attributes[k] = v
		}
	}
	return in
}

// SetVisibilityTimeout changes the visibility of one in-flight message. SQS validates
// the handle and the bounds.
func (b *Backend) SetVisibilityTimeout(ctx context.Context, receiptHandle string, seconds int32) error {
	_, err := b.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          b.url(),
		ReceiptHandle:     aws.String(receiptHandle),
		VisibilityTimeout: seconds,
	})
	return b.fail(queue.OpSetVisibilityTimeout, queue.VisibilityAction(receiptHandle), err)
}

// DeleteMessage deletes a message from the SQS queue.
func (b *Backend) DeleteMessage(ctx context.Context, receiptHandle string) error {
	_, err := b.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      b.url(),
		ReceiptHandle: aws.String(receiptHandle),
	})
	return b.fail(queue.OpDeleteMessage, queue.DeleteMessageAction(receiptHandle), err)
}

// QueueArn queries the QueueArn attribute. A missing attribute yields "".
func (b *Backend) QueueArn(ctx context.Context) (string, error) {
	out, err := b.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl:       b.url(),
		AttributeNames: []types.QueueAttributeName{types.QueueAttributeNameQueueArn},
	})
	if err != nil {
		return "", b.fail(queue.OpGetQueueArn, queue.QueueArnAction(b.handle), err)
	}
	if out == nil {
		return "", nil
	}
	return out.Attributes[queue.AttributeQueueArn], nil
}

func (b *Backend) SetPolicy(ctx context.Context, policy string) error {
	_, err := b.client.SetQueueAttributes(ctx, &sqs.SetQueueAttributesInput{
		QueueUrl:   b.url(),
		Attributes: map[string]string{queue.AttributePolicy: policy},
	})
	return b.fail(queue.OpSetPolicy, queue.SetPolicyAction(b.handle), err)
}

func (b *Backend) DeleteQueue(ctx context.Context) error {
	_, err := b.client.DeleteQueue(ctx, &sqs.DeleteQueueInput{
		QueueUrl: b.url(),
	})
	return b.fail(queue.OpDeleteQueue, queue.DeleteQueueAction(b.handle), err)
}

// Close rejects new sends and waits for pending ones. The shared client is not
// owned by the backend.
func (b *Backend) Close() error {
	b.pending.Close()
	return nil
}
