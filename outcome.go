// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package overclock

import (
	"context"
	"sync"
)

// An Outcome is the deferred result of a stop request. All callers that
// request a stop while one is pending share the same Outcome.
type Outcome struct {
	once sync.Once
	done chan struct{}
	err  error
}

func newOutcome() *Outcome {
	return &Outcome{done: make(chan struct{})}
}

func settledOutcome(err error) *Outcome {
	o := newOutcome()
	o.settle(err)
	return o
}

// settle records err and releases waiters. Only the first call has any
// effect.
func (o *Outcome) settle(err error) {
	o.once.Do(func() {
		o.err = err
		close(o.done)
	})
}

// Done returns a channel that is closed once the outcome is known.
func (o *Outcome) Done() <-chan struct{} {
	return o.done
}

// Err returns nil if the task stopped, an error wrapping [ErrGraceTimeout] if
// it did not stop in time, or nil while the outcome is still pending.
func (o *Outcome) Err() error {
	select {
	case <-o.done:
		return o.err
	default:
		return nil
	}
}

// Wait blocks until the outcome is known or ctx is done.
func (o *Outcome) Wait(ctx context.Context) error {
	select {
	case <-o.done:
		return o.err
	case <-ctx.Done():
		return ctx.Err()
	}
}
