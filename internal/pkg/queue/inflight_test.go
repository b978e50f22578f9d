package queue

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInflightCloseWaitsForAdmitted(t *testing.T) {
	var f Inflight
	require.NoError(t, f.Begin("orders"))

	released := make(chan struct{})
	go func() {
		time.Sleep(10 * time.Millisecond)
		close(released)
		f.Done()
	}()

	f.Close()
	select {
	case <-released:
	default:
		t.Fatal("Close returned before the admitted send finished")
	}
}

func TestInflightRejectsAfterClose(t *testing.T) {
	var f Inflight
	f.Close()

	err := f.Begin("orders")
	var be *BackendError
	require.ErrorAs(t, err, &be)
	assert.Equal(t, OpSend, be.Op)
	assert.Equal(t, KindClosed, be.Kind)
	assert.ErrorIs(t, err, ErrClosed)
	assert.False(t, IsRetryable(err))
}

func TestInflightConcurrentBeginAndClose(t *testing.T) {
	var f Inflight
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if f.Begin("orders") == nil {
				f.Done()
			}
		}()
	}
	f.Close()
	wg.Wait()
	assert.True(t, IsKind(f.Begin("orders"), KindClosed))
}
