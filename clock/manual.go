// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package clock

import (
	"cmp"
	"sync"
	"time"

	"github.com/addrummond/heap"
)

// Manual is a virtual-time [Clock]. Time stands still until [Manual.Advance]
// is called, at which point every timer that falls due is fired in deadline
// order on the calling goroutine. Timers with equal deadlines fire in the order
// they were created.
//
// A Manual must be created with [NewManual]. It is safe for concurrent use, but
// Advance should be called from one goroutine at a time.
type Manual struct {
	mu      sync.Mutex
	now     time.Time
	seq     uint64
	pending int
	timers  heap.Heap[manualEntry, heap.Min]
}

// NewManual returns a Manual clock whose current time is now.
func NewManual(now time.Time) *Manual {
	return &Manual{now: now}
}

// Now returns the clock's current virtual time.
func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// AfterFunc schedules f to run when the virtual time reaches Now()+d. Unlike
// [time.AfterFunc], f runs on the goroutine that calls [Manual.Advance].
func (m *Manual) AfterFunc(d time.Duration, f func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d < 0 {
		d = 0
	}
	t := &manualTimer{m: m, f: f}
	m.seq++
	m.pending++
	heap.PushOrderable(&m.timers, manualEntry{
		at:    m.now.Add(d),
		seq:   m.seq,
		timer: t,
	})
	return t
}

// Advance moves the virtual time forward by d, firing every timer that falls
// due along the way, including timers scheduled by the callbacks themselves.
// Callbacks run without the clock's lock held and observe Now() equal to
// their own deadline.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	for {
		e, ok := heap.Peek(&m.timers)
		if !ok || e.at.After(target) {
			break
		}
		_, _ = heap.PopOrderable(&m.timers)
		if e.timer.stopped {
			continue
		}
		e.timer.stopped = true
		m.pending--
		if e.at.After(m.now) {
			m.now = e.at
		}
		m.mu.Unlock()
		e.timer.f()
		m.mu.Lock()
	}
	m.now = target
	m.mu.Unlock()
}

// Pending returns the number of timers that have neither fired nor been
// stopped.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pending
}

type manualTimer struct {
	m       *Manual
	f       func()
	stopped bool // guarded by m.mu
}

func (t *manualTimer) Stop() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	t.m.pending--
	return true
}

type manualEntry struct {
	at    time.Time
	seq   uint64
	timer *manualTimer
}

func (a *manualEntry) Cmp(b *manualEntry) int {
	if c := a.at.Compare(b.at); c != 0 {
		return c
	}
	return cmp.Compare(a.seq, b.seq)
}
