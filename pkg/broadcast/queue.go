package broadcast

import (
	"sync"
	"sync/atomic"
)

// outboundQueue is the bounded FIFO shared by every transport.
// Payloads leave the queue in the order they were sent.
type outboundQueue struct {
	messages  chan []byte
	done      chan struct{}
	closeOnce sync.Once
	open      atomic.Bool
}

func newOutboundQueue(size int) *outboundQueue {
	if size <= 0 {
		size = 1
	}

	q := &outboundQueue{
		messages: make(chan []byte, size),
		done:     make(chan struct{}),
	}
	q.open.Store(true)

	return q
}

// Open reports whether the listener can still accept payloads
func (q *outboundQueue) Open() bool {
	return q.open.Load()
}

// Send enqueues payload without blocking
func (q *outboundQueue) Send(payload []byte) error {
	if !q.open.Load() {
		return ErrListenerClosed
	}

	select {
	case <-q.done:
		return ErrListenerClosed
	default:
	}

	select {
	case q.messages <- payload:
		return nil
	default:
		return ErrQueueFull
	}
}

// shutdown marks the queue closed and reports whether this call did it
func (q *outboundQueue) shutdown() bool {
	first := false
	q.closeOnce.Do(func() {
		first = true
		q.open.Store(false)
		close(q.done)
	})
	return first
}
