// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package otock

import (
	"context"
	"errors"
	"time"

	"github.com/petenewcomb/overclock-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/multierr"
)

const instrumentationName = "github.com/petenewcomb/overclock-go/otock"

// Metered adds metrics collection to an executable.
// The returned executable records count, duration and error metrics for each
// invocation using the global meter provider. Invocations made by a task are
// attributed to it, and errors are broken down by outcome.
func Metered[R any](
	metricName string,
	exec overclock.Executable[R],
) overclock.Executable[R] {
	return func(ctx context.Context) (R, error) {
		startTime := time.Now()
		meter := otel.GetMeterProvider().Meter(instrumentationName)

		var attrs []attribute.KeyValue
		if info, ok := overclock.ExecutionFromContext(ctx); ok {
			attrs = append(attrs,
				attribute.String("task", info.Task),
				attribute.String("kind", info.Kind.String()))
		}

		counter, _ := meter.Int64Counter(metricName + ".count")
		duration, _ := meter.Float64Histogram(metricName+".duration", metric.WithUnit("s"))

		counter.Add(ctx, 1, metric.WithAttributes(attrs...))

		result, err := exec(ctx)

		duration.Record(ctx, time.Since(startTime).Seconds(), metric.WithAttributes(attrs...))

		if err != nil {
			errorCounter, _ := meter.Int64Counter(metricName + ".errors")
			errorCounter.Add(ctx, 1, metric.WithAttributes(
				append(attrs, attribute.String("outcome", outcome(ctx, err)))...))
		}

		return result, err
	}
}

// instruments are the task-level metrics recorded by an [Observer].
type instruments struct {
	transitions metric.Int64Counter
	spawns      metric.Int64Counter
	ticks       metric.Int64Counter
	tocks       metric.Int64Counter
	population  metric.Int64UpDownCounter
	duration    metric.Float64Histogram
}

func newInstruments(meter metric.Meter) (*instruments, error) {
	var ins instruments
	var err, e error
	ins.transitions, e = meter.Int64Counter("overclock.transitions",
		metric.WithDescription("Lifecycle transitions by target state"))
	err = multierr.Append(err, e)
	ins.spawns, e = meter.Int64Counter("overclock.spawns",
		metric.WithDescription("Spawn attempts by outcome"))
	err = multierr.Append(err, e)
	ins.ticks, e = meter.Int64Counter("overclock.ticks",
		metric.WithDescription("Executions launched"))
	err = multierr.Append(err, e)
	ins.tocks, e = meter.Int64Counter("overclock.tocks",
		metric.WithDescription("Executions settled"))
	err = multierr.Append(err, e)
	ins.population, e = meter.Int64UpDownCounter("overclock.population",
		metric.WithDescription("Executions in flight"))
	err = multierr.Append(err, e)
	ins.duration, e = meter.Float64Histogram("overclock.execution.duration",
		metric.WithDescription("Execution duration"),
		metric.WithUnit("s"))
	err = multierr.Append(err, e)
	if err != nil {
		return nil, err
	}
	return &ins, nil
}

func record[R any](ctx context.Context, ins *instruments, e overclock.Event[R]) {
	task := attribute.String("task", e.Task.Name())
	attrs := metric.WithAttributes(task)
	switch e.Kind {
	case overclock.EventStarting, overclock.EventStarted, overclock.EventStopping, overclock.EventStopped:
		ins.transitions.Add(ctx, 1, metric.WithAttributes(task, attribute.String("state", e.Kind.String())))
	case overclock.EventSpawned:
		outcome := "launched"
		switch {
		case errors.Is(e.Err, overclock.ErrInhibited):
			outcome = "inhibited"
		case errors.Is(e.Err, overclock.ErrDelayed):
			outcome = "delayed"
		}
		ins.spawns.Add(ctx, 1, metric.WithAttributes(task, attribute.String("outcome", outcome)))
	case overclock.EventTick:
		ins.ticks.Add(ctx, 1, attrs)
		ins.population.Add(ctx, 1, attrs)
	case overclock.EventTock:
		ins.tocks.Add(ctx, 1, metric.WithAttributes(task, attribute.Bool("error", e.Execution.Err != nil)))
		ins.population.Add(ctx, -1, attrs)
		ins.duration.Record(ctx, e.Execution.Duration().Seconds(), attrs)
	}
}
