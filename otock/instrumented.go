// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package otock provides logging and OpenTelemetry instrumentation for
// overclock tasks. It offers two complementary pieces: executable wrappers
// that instrument each invocation from the inside, and an [Observer] that
// turns a task's event stream into logs, metrics and execution spans without
// touching the executable.
package otock

import (
	"context"

	"github.com/petenewcomb/overclock-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Instrumented combines tracing, metrics and logging for an executable into a
// single wrapper.
func Instrumented[R any](
	operationName string,
	exec overclock.Executable[R],
) overclock.Executable[R] {
	// Logging innermost, tracing outermost, so the span covers the rest.
	return Traced(operationName, Metered(operationName, Logged(operationName, exec)))
}

// An Observer records the events of any number of tasks as zap log entries,
// OpenTelemetry metrics and one span per execution. It is safe to share
// between tasks and between result types.
type Observer struct {
	log   *zap.Logger
	ins   *instruments
	spans *spans
}

// An ObserverOption configures an [Observer].
type ObserverOption func(*observerSettings)

type observerSettings struct {
	logger         *zap.Logger
	meterProvider  metric.MeterProvider
	tracerProvider trace.TracerProvider
}

// WithLogger sets the logger events are written to. The default is the
// global zap logger named "otock".
func WithLogger(l *zap.Logger) ObserverOption {
	return func(s *observerSettings) { s.logger = l }
}

// WithMeterProvider sets the meter provider. The default is the global one.
func WithMeterProvider(mp metric.MeterProvider) ObserverOption {
	return func(s *observerSettings) { s.meterProvider = mp }
}

// WithTracerProvider sets the tracer provider. The default is the global one.
func WithTracerProvider(tp trace.TracerProvider) ObserverOption {
	return func(s *observerSettings) { s.tracerProvider = tp }
}

// NewObserver returns an Observer. It fails only if an instrument cannot be
// created.
func NewObserver(opts ...ObserverOption) (*Observer, error) {
	var s observerSettings
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = zap.L().Named("otock")
	}
	if s.meterProvider == nil {
		s.meterProvider = otel.GetMeterProvider()
	}
	if s.tracerProvider == nil {
		s.tracerProvider = otel.GetTracerProvider()
	}
	ins, err := newInstruments(s.meterProvider.Meter(instrumentationName))
	if err != nil {
		return nil, err
	}
	return &Observer{
		log:   s.logger,
		ins:   ins,
		spans: newSpans(s.tracerProvider.Tracer(instrumentationName)),
	}, nil
}

// Listener returns a listener that feeds events into o. Use it with
// [overclock.Manager.Listen] or when the task is not at hand.
func Listener[R any](o *Observer) overclock.Listener[R] {
	return func(e overclock.Event[R]) {
		logEvent(o.log, e)
		record(context.Background(), o.ins, e)
		trackSpan(o.spans, e)
	}
}

// Observe subscribes o to every event of task.
func Observe[R any](o *Observer, task *overclock.Task[R]) *overclock.Subscription {
	return task.Subscribe(Listener[R](o))
}

// InFlight returns the number of observed executions that have ticked but not
// yet tocked.
func (o *Observer) InFlight() int {
	return o.spans.inFlight()
}
