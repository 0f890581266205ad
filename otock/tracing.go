// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package otock

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/petenewcomb/overclock-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Traced adds a span with the given operation name around each invocation of
// an executable. The executable runs with the span's context, so spans it
// creates are children of it.
func Traced[R any](
	operationName string,
	exec overclock.Executable[R],
) overclock.Executable[R] {
	return func(ctx context.Context) (R, error) {
		tracer := otel.Tracer(instrumentationName)
		ctx, span := tracer.Start(ctx, operationName)
		defer span.End()
		if info, ok := overclock.ExecutionFromContext(ctx); ok {
			span.SetAttributes(
				attribute.String("overclock.task", info.Task),
				attribute.String("overclock.execution.id", info.ID.String()),
				attribute.Int64("overclock.execution.generation", info.Generation))
		}

		result, err := exec(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		return result, err
	}
}

// spans tracks the open span of each in-flight execution, from tick to tock.
type spans struct {
	tracer trace.Tracer
	mu     sync.Mutex
	open   map[uuid.UUID]trace.Span
}

func newSpans(tracer trace.Tracer) *spans {
	return &spans{
		tracer: tracer,
		open:   make(map[uuid.UUID]trace.Span),
	}
}

func trackSpan[R any](s *spans, e overclock.Event[R]) {
	switch e.Kind {
	case overclock.EventTick:
		_, span := s.tracer.Start(context.Background(), e.Task.Name()+" execution",
			trace.WithTimestamp(e.Execution.TickAt),
			trace.WithSpanKind(trace.SpanKindInternal),
			trace.WithAttributes(
				attribute.String("overclock.task", e.Task.Name()),
				attribute.String("overclock.kind", e.Task.Kind().String()),
				attribute.String("overclock.execution.id", e.Execution.ID.String()),
				attribute.Int64("overclock.execution.generation", e.Execution.Generation),
				attribute.Int64("overclock.execution.seq", e.Execution.Seq),
			))
		s.mu.Lock()
		s.open[e.Execution.ID] = span
		s.mu.Unlock()

	case overclock.EventTock:
		s.mu.Lock()
		span, ok := s.open[e.Execution.ID]
		delete(s.open, e.Execution.ID)
		s.mu.Unlock()
		if !ok {
			// The tick happened before the observer was attached.
			return
		}
		if err := e.Execution.Err; err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End(trace.WithTimestamp(e.Execution.TockAt))
	}
}

// inFlight returns the number of executions with open spans.
func (s *spans) inFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}
