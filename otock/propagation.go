// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package otock

import (
	"context"

	"github.com/petenewcomb/overclock-go"
	"go.opentelemetry.io/otel/trace"
)

// Propagate binds the trace context of parent to every invocation of exec.
// Executions are launched from the task's own goroutines and would otherwise
// start new traces; with Propagate, spans they create join the trace that was
// active in parent, typically the request that started the task.
func Propagate[R any](
	parent context.Context,
	exec overclock.Executable[R],
) overclock.Executable[R] {
	sc := trace.SpanContextFromContext(parent)
	if !sc.IsValid() {
		return exec
	}
	return func(ctx context.Context) (R, error) {
		if !trace.SpanContextFromContext(ctx).IsValid() {
			ctx = trace.ContextWithSpanContext(ctx, sc)
		}
		return exec(ctx)
	}
}
