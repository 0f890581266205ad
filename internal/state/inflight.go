// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package state

import (
	"sync/atomic"
)

// InFlightCounter tracks the executions of a task. Ticks count executions
// started, tocks count executions settled, and generations count spawn
// decisions that launched work. All three only ever increase; the number of
// executions in flight (the population) is derived from the difference, so it
// can never be observed negative.
//
// Mutations are expected to come from a single goroutine at a time, but every
// method may be called concurrently with reads.
type InFlightCounter struct {
	ticks       atomic.Int64
	tocks       atomic.Int64
	generations atomic.Int64
}

// Tick records the start of an execution and returns the new tick count.
func (c *InFlightCounter) Tick() int64 {
	return c.ticks.Add(1)
}

// Tock records the completion of an execution and returns the resulting
// population. Panics if there was nothing in flight.
func (c *InFlightCounter) Tock() int64 {
	tocks := c.tocks.Add(1)
	ticks := c.ticks.Load()
	if tocks > ticks {
		c.tocks.Add(-1)
		panic("there were no executions in flight")
	}
	return ticks - tocks
}

// Generation records a spawn that launched work and returns the new
// generation count.
func (c *InFlightCounter) Generation() int64 {
	return c.generations.Add(1)
}

// Population returns the number of executions ticked but not yet tocked.
func (c *InFlightCounter) Population() int64 {
	// Tocks are loaded first: any tock counted here was preceded by its tick,
	// so the difference is never negative.
	tocks := c.tocks.Load()
	return c.ticks.Load() - tocks
}

// IsZero reports whether nothing is in flight.
func (c *InFlightCounter) IsZero() bool {
	return c.Population() == 0
}

func (c *InFlightCounter) Ticks() int64 {
	return c.ticks.Load()
}

func (c *InFlightCounter) Tocks() int64 {
	return c.tocks.Load()
}

func (c *InFlightCounter) Generations() int64 {
	return c.generations.Load()
}
