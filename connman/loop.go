package connman

import (
	"context"
	"sync"
)

// EventLoop is an unbounded FIFO of closures executed by a single goroutine.
// Post never blocks, so handlers running on the loop may post further work.
type EventLoop struct {
	mu      sync.Mutex
	queue   []func()
	wake    chan struct{}
	running bool
}

// NewEventLoop creates an idle event loop. Call Run to start processing.
func NewEventLoop() *EventLoop {
	return &EventLoop{wake: make(chan struct{}, 1)}
}

// Post enqueues fn. Safe for concurrent use.
func (l *EventLoop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Run processes queued closures until ctx is cancelled.
// Work still queued at cancellation is dropped.
func (l *EventLoop) Run(ctx context.Context) {
	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	for {
		for {
			fn := l.next()
			if fn == nil {
				break
			}
			if ctx.Err() != nil {
				return
			}
			fn()
		}

		select {
		case <-ctx.Done():
			return
		case <-l.wake:
		}
	}
}

// IsRunning returns whether Run is currently processing.
func (l *EventLoop) IsRunning() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

func (l *EventLoop) next() func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn
}
