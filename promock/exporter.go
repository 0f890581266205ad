// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package promock

import (
	"errors"

	"github.com/petenewcomb/overclock-go"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// Exporter records execution outcomes from task events. Feed it events with
// [Listener].
type Exporter struct {
	executionDurationSeconds *prom.HistogramVec
	executionErrorsTotal     *prom.CounterVec
	spawnsTotal              *prom.CounterVec
}

// NewExporter creates and registers the exporter's collectors. A nil
// registerer means [prom.DefaultRegisterer]. Creating a second exporter with
// the same namespace on the same registerer shares the first one's
// collectors.
func NewExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*Exporter, error) {
	if namespace == "" {
		namespace = "overclock"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "execution_duration_seconds",
		Help:      "Execution duration in seconds, from tick to tock.",
		Buckets:   buckets,
	}, []string{"task"})
	errorsVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "execution_errors_total",
		Help:      "Executions that settled with an error.",
	}, []string{"task", "reason"})
	spawnsVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "spawns_total",
		Help:      "Spawn attempts by outcome.",
	}, []string{"task", "outcome"})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if errorsVec, err = registerCollector(reg, errorsVec); err != nil {
		return nil, err
	}
	if spawnsVec, err = registerCollector(reg, spawnsVec); err != nil {
		return nil, err
	}

	return &Exporter{
		executionDurationSeconds: durationVec,
		executionErrorsTotal:     errorsVec,
		spawnsTotal:              spawnsVec,
	}, nil
}

// Register creates a [Collector] over snapshot and registers it on reg.
func Register(namespace string, reg prom.Registerer, snapshot SnapshotFunc) (*Collector, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	return registerCollector(reg, NewCollector(namespace, snapshot))
}

// Listener returns a listener that records events into e.
func Listener[R any](e *Exporter) overclock.Listener[R] {
	return func(ev overclock.Event[R]) {
		if e == nil {
			return
		}
		name := ev.Task.Name()
		switch ev.Kind {
		case overclock.EventSpawned:
			e.spawnsTotal.WithLabelValues(name, spawnOutcome(ev.Err)).Inc()
		case overclock.EventTock:
			e.executionDurationSeconds.WithLabelValues(name).Observe(ev.Execution.Duration().Seconds())
			if err := ev.Execution.Err; err != nil {
				e.executionErrorsTotal.WithLabelValues(name, errorReason(err)).Inc()
			}
		}
	}
}

func spawnOutcome(err error) string {
	switch {
	case err == nil:
		return "launched"
	case errors.Is(err, overclock.ErrInhibited):
		return "inhibited"
	case errors.Is(err, overclock.ErrDelayed):
		return "delayed"
	default:
		return "unknown"
	}
}

func errorReason(err error) string {
	switch {
	case errors.Is(err, overclock.ErrRunTimeout):
		return "timeout"
	case errors.Is(err, overclock.ErrExecutablePanic):
		return "panic"
	default:
		return "error"
	}
}
