// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package clock

import (
	"sync"
	"time"
)

// Repeat calls f every d until the returned Timer is stopped. The next firing
// is armed before f runs, so a slow f does not stretch the period and a
// [Manual] clock advanced across several periods fires once per period.
//
// Panics if d is not positive.
func Repeat(c Clock, d time.Duration, f func()) Timer {
	if d <= 0 {
		panic("repeat period must be positive")
	}
	r := &repeater{c: c, d: d, f: f}
	r.mu.Lock()
	r.next = c.AfterFunc(d, r.fire)
	r.mu.Unlock()
	return r
}

type repeater struct {
	c Clock
	d time.Duration
	f func()

	mu      sync.Mutex
	next    Timer
	stopped bool
}

func (r *repeater) fire() {
	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return
	}
	r.next = r.c.AfterFunc(r.d, r.fire)
	r.mu.Unlock()
	r.f()
}

func (r *repeater) Stop() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return false
	}
	r.stopped = true
	r.next.Stop()
	return true
}
