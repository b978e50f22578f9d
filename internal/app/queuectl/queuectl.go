// Package queuectl implements the queuectl commands on top of a queue.Backend.
package queuectl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"aws-sqs-queue-backend/internal/pkg/queue"
)

// OpenFunc returns the backend a command runs against. The command closes it.
type OpenFunc func(ctx context.Context) (queue.Backend, error)

type result struct {
	Queue         string            `json:"queue"`
	MessageID     string            `json:"message_id,omitempty"`
	Body          *string           `json:"body,omitempty"`
	ReceiptHandle string            `json:"receipt_handle,omitempty"`
	Attributes    map[string]string `json:"attributes,omitempty"`
	QueueArn      *string           `json:"queue_arn,omitempty"`
	Empty         bool              `json:"empty,omitempty"`
	OK            bool              `json:"ok"`
}

// NewRootCmd builds the command tree. Results are written to out as JSON.
func NewRootCmd(open OpenFunc, out io.Writer) *cobra.Command {
	root := &cobra.Command{
		Use:           "queuectl",
		Short:         "queuectl operates on the queue configured by QUEUE_* variables",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)

	run := func(fn func(ctx context.Context, b queue.Backend, args []string) (result, error)) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			b, err := open(ctx)
			if err != nil {
				return err
			}
			defer func() {
				if cerr := b.Close(); err == nil {
					err = cerr
				}
			}()

			res, err := fn(ctx, b, args)
			if err != nil {
				return err
			}
			res.Queue = b.Handle().String()
			res.OK = true
			enc := json.NewEncoder(cmd.OutOrStdout())
			return enc.Encode(res)
		}
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "send <payload>",
			Short: "Send one message",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(ctx context.Context, b queue.Backend, args []string) (result, error) {
				id, err := b.Send(ctx, args[0])
				return result{MessageID: id}, err
			}),
		},
		&cobra.Command{
			Use:   "receive",
			Short: "Receive at most one message without deleting it",
			Args:  cobra.NoArgs,
			RunE: run(func(ctx context.Context, b queue.Backend, _ []string) (result, error) {
				msg, err := b.Receive(ctx)
				if err != nil || msg == nil {
					return result{Empty: msg == nil}, err
				}
				return result{
					MessageID:     msg.ID,
					Body:          &msg.Body,
					ReceiptHandle: msg.ReceiptHandle,
					Attributes:    msg.Attributes,
				}, nil
			}),
		},
		&cobra.Command{
			Use:   "delete <receipt-handle>",
			Short: "Delete a received message",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(ctx context.Context, b queue.Backend, args []string) (result, error) {
				return result{ReceiptHandle: args[0]}, b.DeleteMessage(ctx, args[0])
			}),
		},
		&cobra.Command{
			Use:   "visibility <receipt-handle> <seconds>",
			Short: "Reset the visibility timeout of a received message",
			Args:  cobra.ExactArgs(2),
			RunE: run(func(ctx context.Context, b queue.Backend, args []string) (result, error) {
				seconds, err := strconv.ParseInt(args[1], 10, 32)
				if err != nil {
					return result{}, fmt.Errorf("invalid seconds %q: %w", args[1], err)
				}
				return result{ReceiptHandle: args[0]}, b.SetVisibilityTimeout(ctx, args[0], int32(seconds))
			}),
		},
		&cobra.Command{
			Use:   "arn",
			Short: "Print the queue ARN",
			Args:  cobra.NoArgs,
			RunE: run(func(ctx context.Context, b queue.Backend, _ []string) (result, error) {
				arn, err := b.QueueArn(ctx)
				return result{QueueArn: &arn}, err
			}),
		},
		&cobra.Command{
			Use:   "set-policy <policy|@file>",
			Short: "Replace the queue access policy",
			Args:  cobra.ExactArgs(1),
			RunE: run(func(ctx context.Context, b queue.Backend, args []string) (result, error) {
				policy, err := readArg(args[0])
				if err != nil {
					return result{}, err
				}
				return result{}, b.SetPolicy(ctx, policy)
			}),
		},
		&cobra.Command{
			Use:   "delete-queue",
			Short: "Delete the queue itself",
			Args:  cobra.NoArgs,
			RunE: run(func(ctx context.Context, b queue.Backend, _ []string) (result, error) {
				return result{}, b.DeleteQueue(ctx)
			}),
		},
	)

	return root
}

// readArg returns arg, or the contents of the named file when arg starts with @.
func readArg(arg string) (string, error) {
	name, ok := strings.CutPrefix(arg, "@")
	if !ok {
		return arg, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	return string(data), nil
}
