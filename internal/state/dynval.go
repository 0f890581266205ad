// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package state

import (
	"context"
	"sync/atomic"
)

// DynamicValue holds a value together with a channel that is closed the next
// time the value is replaced. The zero value holds the zero T.
type DynamicValue[T any] struct {
	state atomic.Pointer[dvState[T]]
}

// Load returns the current value and a channel that will be closed by the
// next Store.
func (dv *DynamicValue[T]) Load() (T, <-chan struct{}) {
	state := dv.state.Load()
	if state == nil {
		var zero T
		state = newDvState(zero)
		if !dv.state.CompareAndSwap(nil, state) {
			state = dv.state.Load()
		}
	}
	return state.value, state.changeChan
}

// Store replaces the value and wakes everyone watching the previous one.
func (dv *DynamicValue[T]) Store(v T) {
	oldState := dv.state.Swap(newDvState(v))
	if oldState != nil {
		close(oldState.changeChan)
	}
}

// Wait blocks until the value satisfies pred or ctx is done, returning the
// satisfying value.
func (dv *DynamicValue[T]) Wait(ctx context.Context, pred func(T) bool) (T, error) {
	for {
		v, changed := dv.Load()
		if pred(v) {
			return v, nil
		}
		select {
		case <-changed:
		case <-ctx.Done():
			return v, ctx.Err()
		}
	}
}

type dvState[T any] struct {
	value      T
	changeChan chan struct{}
}

func newDvState[T any](v T) *dvState[T] {
	return &dvState[T]{
		value:      v,
		changeChan: make(chan struct{}),
	}
}
