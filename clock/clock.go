// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package clock provides the timer facility used by overclock tasks: a Clock
// that reports the current time and schedules cancellable callbacks.
//
// [Real] returns the wall clock. [Manual] is a virtual-time clock whose timers
// fire only when [Manual.Advance] moves time forward, which makes interval and
// timeout behavior reproducible in tests.
package clock

import (
	"time"
)

// A Clock reports the current time and schedules delayed callbacks.
//
// Implementations must be safe for concurrent use.
type Clock interface {
	// Now returns the current time according to the clock.
	Now() time.Time

	// AfterFunc arranges for f to be called in its own goroutine (or, for
	// virtual clocks, on the goroutine advancing time) once d has elapsed. A
	// non-positive d schedules f as soon as possible.
	AfterFunc(d time.Duration, f func()) Timer
}

// A Timer is a pending callback created by [Clock.AfterFunc].
type Timer interface {
	// Stop prevents the timer from firing. It returns true if the call stops
	// the timer and false if the timer has already fired or been stopped.
	Stop() bool
}

// Real returns a Clock backed by the time package.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
