// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package overclock

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// An Executable is the unit of work a task runs on every tick. It returns a
// result of type R and an error value. The provided context is canceled, with
// [ErrRunTimeout] as its cause, when the task's run timeout elapses; honoring
// it is up to the executable, which keeps running otherwise.
//
// Each execution runs in its own goroutine, so an Executable must be safe for
// concurrent use. A panic is recovered and reported as an execution error
// wrapping [ErrExecutablePanic].
type Executable[R any] = func(ctx context.Context) (R, error)

// Result is the settled value of a [Future] executable.
type Result[R any] struct {
	Value R
	Err   error
}

// Sync adapts a function that ignores cancellation.
func Sync[R any](fn func() (R, error)) Executable[R] {
	return func(context.Context) (R, error) {
		return fn()
	}
}

// Callback adapts a function that reports completion by calling done, possibly
// from another goroutine. Only the first call to done counts. If done is never
// called, the execution settles only when its context is canceled.
func Callback[R any](fn func(ctx context.Context, done func(R, error))) Executable[R] {
	return func(ctx context.Context) (R, error) {
		ch := make(chan Result[R], 1)
		var once sync.Once
		fn(ctx, func(v R, err error) {
			once.Do(func() {
				ch <- Result[R]{Value: v, Err: err}
			})
		})
		select {
		case r := <-ch:
			return r.Value, r.Err
		case <-ctx.Done():
			var zero R
			return zero, context.Cause(ctx)
		}
	}
}

// Future adapts a function that returns a channel delivering its eventual
// result. A channel closed without a value settles with the zero R and no
// error.
func Future[R any](fn func(ctx context.Context) <-chan Result[R]) Executable[R] {
	return func(ctx context.Context) (R, error) {
		select {
		case r := <-fn(ctx):
			return r.Value, r.Err
		case <-ctx.Done():
			var zero R
			return zero, context.Cause(ctx)
		}
	}
}

// ExecutionInfo identifies the execution an executable was invoked for.
type ExecutionInfo struct {
	Task       string
	Kind       Kind
	ID         uuid.UUID
	Generation int64
	Seq        int64
}

type executionKey struct{}

// ContextWithExecution returns a copy of ctx carrying info. Tasks install it
// on the context passed to every executable.
func ContextWithExecution(ctx context.Context, info ExecutionInfo) context.Context {
	return context.WithValue(ctx, executionKey{}, info)
}

// ExecutionFromContext returns the execution ctx was created for, if any.
func ExecutionFromContext(ctx context.Context) (ExecutionInfo, bool) {
	info, ok := ctx.Value(executionKey{}).(ExecutionInfo)
	return info, ok
}
