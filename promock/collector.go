// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package promock exports overclock task counters and execution outcomes to
// Prometheus.
package promock

import (
	"errors"
	"fmt"

	"github.com/petenewcomb/overclock-go"
	prom "github.com/prometheus/client_golang/prometheus"
)

// A SnapshotFunc returns the current stats of a set of tasks, such as
// [overclock.Manager.Snapshot].
type SnapshotFunc func() []overclock.Stats

// Collector reports task stats at scrape time. Every scrape calls the
// snapshot function once.
type Collector struct {
	snapshot SnapshotFunc

	state       *prom.Desc
	population  *prom.Desc
	generations *prom.Desc
	ticks       *prom.Desc
	tocks       *prom.Desc
}

var _ prom.Collector = (*Collector)(nil)

var states = []overclock.State{
	overclock.Idle,
	overclock.Starting,
	overclock.Started,
	overclock.Stopping,
	overclock.Stopped,
}

// NewCollector returns a Collector reading from snapshot. An empty namespace
// defaults to "overclock".
func NewCollector(namespace string, snapshot SnapshotFunc) *Collector {
	if namespace == "" {
		namespace = "overclock"
	}
	labels := []string{"task", "kind"}
	return &Collector{
		snapshot: snapshot,
		state: prom.NewDesc(prom.BuildFQName(namespace, "task", "state"),
			"Task lifecycle state (1 for the current state, 0 otherwise).",
			append(labels, "state"), nil),
		population: prom.NewDesc(prom.BuildFQName(namespace, "task", "population"),
			"Executions currently in flight.", labels, nil),
		generations: prom.NewDesc(prom.BuildFQName(namespace, "task", "generations_total"),
			"Generations spawned.", labels, nil),
		ticks: prom.NewDesc(prom.BuildFQName(namespace, "task", "ticks_total"),
			"Executions launched.", labels, nil),
		tocks: prom.NewDesc(prom.BuildFQName(namespace, "task", "tocks_total"),
			"Executions settled.", labels, nil),
	}
}

// Describe implements [prom.Collector].
func (c *Collector) Describe(ch chan<- *prom.Desc) {
	ch <- c.state
	ch <- c.population
	ch <- c.generations
	ch <- c.ticks
	ch <- c.tocks
}

// Collect implements [prom.Collector].
func (c *Collector) Collect(ch chan<- prom.Metric) {
	for _, s := range c.snapshot() {
		kind := s.Kind.String()
		for _, state := range states {
			v := 0.0
			if s.State == state {
				v = 1
			}
			ch <- prom.MustNewConstMetric(c.state, prom.GaugeValue, v, s.Name, kind, state.String())
		}
		ch <- prom.MustNewConstMetric(c.population, prom.GaugeValue, float64(s.Population), s.Name, kind)
		ch <- prom.MustNewConstMetric(c.generations, prom.CounterValue, float64(s.Generations), s.Name, kind)
		ch <- prom.MustNewConstMetric(c.ticks, prom.CounterValue, float64(s.Ticks), s.Name, kind)
		ch <- prom.MustNewConstMetric(c.tocks, prom.CounterValue, float64(s.Tocks), s.Name, kind)
	}
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}
	return collector, err
}
