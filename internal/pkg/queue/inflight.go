package queue

import (
	"errors"
	"sync"
)

// ErrClosed is the cause of a send attempted after Close.
var ErrClosed = errors.New("queue backend is closed")

// Inflight tracks sends so Close can wait for them. Once Close has started no
// new send is admitted.
type Inflight struct {
	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// Begin admits one send. It returns a KindClosed *BackendError after Close.
func (f *Inflight) Begin(q Handle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return NewError(OpSend, q, KindClosed, SendAction(q), ErrClosed)
	}
	f.wg.Add(1)
	return nil
}

func (f *Inflight) Done() {
	f.wg.Done()
}

// Close rejects further sends and waits for the admitted ones.
func (f *Inflight) Close() {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	f.wg.Wait()
}
