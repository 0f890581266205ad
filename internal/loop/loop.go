// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package loop provides a serial callback queue. Callbacks posted to a Loop
// run one at a time, in the order they were posted, on a goroutine that exists
// only while there is work queued.
package loop

import (
	"context"
	"sync"

	"github.com/gammazero/deque"
)

// Loop runs posted callbacks serially in FIFO order. The zero value is ready
// to use.
type Loop struct {
	// OnPanic, if set, receives the value of any panic raised by a callback.
	// The loop then continues with the next callback. If nil, the panic is
	// propagated and terminates the program.
	OnPanic func(v any)

	mu      sync.Mutex
	queue   deque.Deque[func()]
	running bool
}

// Post enqueues fn. It never blocks and may be called from within a callback,
// in which case fn runs after every callback already queued.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue.PushBack(fn)
	if l.running {
		l.mu.Unlock()
		return
	}
	l.running = true
	l.mu.Unlock()
	go l.drain()
}

// Flush blocks until every callback posted before the call has run, or until
// ctx is done. It must not be called from within a callback.
func (l *Loop) Flush(ctx context.Context) error {
	done := make(chan struct{})
	l.Post(func() { close(done) })
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Len returns the number of callbacks waiting to run.
func (l *Loop) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.queue.Len()
}

func (l *Loop) drain() {
	for {
		l.mu.Lock()
		if l.queue.Len() == 0 {
			l.running = false
			l.mu.Unlock()
			return
		}
		fn := l.queue.PopFront()
		l.mu.Unlock()
		l.call(fn)
	}
}

func (l *Loop) call(fn func()) {
	if l.OnPanic != nil {
		defer func() {
			if v := recover(); v != nil {
				l.OnPanic(v)
			}
		}()
	}
	fn()
}
