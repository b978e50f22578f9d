package queuectl

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"aws-sqs-queue-backend/internal/pkg/queue"
	"aws-sqs-queue-backend/internal/pkg/queue/queuetest"
)

const q = queue.Handle("orders")

func execute(t *testing.T, b *queuetest.Backend, args ...string) (map[string]any, error) {
	t.Helper()
	b.On("Close").Return(nil).Maybe()

	var out bytes.Buffer
	cmd := NewRootCmd(func(context.Context) (queue.Backend, error) { return b, nil }, &out)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		return nil, err
	}

	var res map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &res))
	return res, nil
}

func TestSend(t *testing.T) {
	b := queuetest.New(q)
	b.On("Send", mock.Anything, `{"order":1}`).Return("m1", nil).Once()

	res, err := execute(t, b, "send", `{"order":1}`)
	require.NoError(t, err)
	assert.Equal(t, "m1", res["message_id"])
	assert.Equal(t, "orders", res["queue"])
	assert.Equal(t, true, res["ok"])
	b.AssertExpectations(t)
}

func TestReceive(t *testing.T) {
	b := queuetest.New(q)
	b.On("Receive", mock.Anything).Return(&queue.InboundMessage{ID: "m1", Body: "", ReceiptHandle: "r1"}, nil).Once()
	b.On("Receive", mock.Anything).Return(nil, nil).Once()

	res, err := execute(t, b, "receive")
	require.NoError(t, err)
	assert.Equal(t, "m1", res["message_id"])
	assert.Equal(t, "", res["body"])
	assert.Equal(t, "r1", res["receipt_handle"])

	res, err = execute(t, b, "receive")
	require.NoError(t, err)
	assert.Equal(t, true, res["empty"])
	assert.NotContains(t, res, "message_id")
}

func TestDeleteAndVisibility(t *testing.T) {
	b := queuetest.New(q)
	b.On("DeleteMessage", mock.Anything, "r1").Return(nil).Once()
	b.On("SetVisibilityTimeout", mock.Anything, "r1", int32(45)).Return(nil).Once()

	_, err := execute(t, b, "delete", "r1")
	require.NoError(t, err)
	_, err = execute(t, b, "visibility", "r1", "45")
	require.NoError(t, err)

	_, err = execute(t, b, "visibility", "r1", "soon")
	assert.ErrorContains(t, err, `invalid seconds "soon"`)
	b.AssertExpectations(t)
}

func TestArnPolicyAndDeleteQueue(t *testing.T) {
	policy := `{"Version":"2012-10-17","Statement":[]}`
	path := filepath.Join(t.TempDir(), "policy.json")
	require.NoError(t, os.WriteFile(path, []byte(policy), 0o600))

	b := queuetest.New(q)
	b.On("QueueArn", mock.Anything).Return("", nil).Once()
	b.On("SetPolicy", mock.Anything, policy).Return(nil).Twice()
	b.On("DeleteQueue", mock.Anything).Return(nil).Once()

	res, err := execute(t, b, "arn")
	require.NoError(t, err)
	assert.Equal(t, "", res["queue_arn"])

	_, err = execute(t, b, "set-policy", policy)
	require.NoError(t, err)
	_, err = execute(t, b, "set-policy", "@"+path)
	require.NoError(t, err)

	_, err = execute(t, b, "delete-queue")
	require.NoError(t, err)
	b.AssertExpectations(t)
}

func TestBackendErrorIsReturned(t *testing.T) {
	b := queuetest.New(q)
	b.On("DeleteMessage", mock.Anything, "r1").Return(queuetest.Fail(q, queue.OpDeleteMessage, queue.KindInvalidHandle)).Once()

	_, err := execute(t, b, "delete", "r1")
	assert.True(t, queue.IsKind(err, queue.KindInvalidHandle))
	b.AssertCalled(t, "Close")
}
