// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package overclock

import (
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventKind identifies a point in a task's lifecycle.
type EventKind int

const (
	EventStarting EventKind = iota
	EventStarted
	EventSpawning
	EventSpawned
	EventTick
	EventTock
	EventStopping
	EventStopped
)

// EventKinds lists every EventKind in lifecycle order.
var EventKinds = []EventKind{
	EventStarting,
	EventStarted,
	EventSpawning,
	EventSpawned,
	EventTick,
	EventTock,
	EventStopping,
	EventStopped,
}

func (k EventKind) String() string {
	switch k {
	case EventStarting:
		return "starting"
	case EventStarted:
		return "started"
	case EventSpawning:
		return "spawning"
	case EventSpawned:
		return "spawned"
	case EventTick:
		return "tick"
	case EventTock:
		return "tock"
	case EventStopping:
		return "stopping"
	case EventStopped:
		return "stopped"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Execution records one run of a task's executable. It is delivered with
// [EventTick] when the run begins and again, completed, with [EventTock].
type Execution[R any] struct {
	ID uuid.UUID
	// Generation is the number of generations the task had spawned before
	// the one this execution belongs to, so the first generation is 0.
	Generation int64
	// Seq is the task's tick count including this execution.
	Seq    int64
	TickAt time.Time
	TockAt time.Time // zero until tock
	Result R
	Err    error
}

// Duration returns how long the execution ran, or zero if it has not yet
// settled.
func (e Execution[R]) Duration() time.Duration {
	if e.TockAt.IsZero() {
		return 0
	}
	return e.TockAt.Sub(e.TickAt)
}

// Event is delivered to listeners registered with [Task.Subscribe].
//
// Count and Err are set only for [EventSpawned]: Count is the number of
// executions launched and Err, when non-nil, explains why none were.
// Execution is set only for [EventTick] and [EventTock].
type Event[R any] struct {
	Kind      EventKind
	Task      *Task[R]
	At        time.Time
	Count     int
	Err       error
	Execution Execution[R]
}

// A Listener receives events. Listeners of one task are called serially, in
// subscription order, on the task's own goroutine; they must not block for
// long, and must not call [Task.Stop] (which waits) on the same task. Calling
// [Task.Start] or [Task.StopAsync] is fine.
type Listener[R any] func(Event[R])

// A Subscription is returned by Subscribe and detaches its listener when
// unsubscribed.
type Subscription struct {
	once   sync.Once
	cancel func()
}

// Unsubscribe detaches the listener. Events already being delivered may still
// reach it. Calling Unsubscribe more than once is harmless.
func (s *Subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

type eventMask uint16

func (k EventKind) valid() bool {
	return k >= EventStarting && k <= EventStopped
}

func maskOf(kinds []EventKind) eventMask {
	if len(kinds) == 0 {
		return ^eventMask(0)
	}
	var m eventMask
	for _, k := range kinds {
		if k.valid() {
			m |= 1 << k
		}
	}
	return m
}

func (m eventMask) has(k EventKind) bool {
	return k.valid() && m&(1<<k) != 0
}

type subscriber[R any] struct {
	mask eventMask
	fn   Listener[R]
}

// subscribers is a copy-on-write list of listeners. A listener that panics
// is reported to onPanic, if set, and the remaining listeners still run.
type subscribers[R any] struct {
	onPanic func(e Event[R], v any)

	mu   sync.Mutex
	list []*subscriber[R]
}

func (ss *subscribers[R]) add(fn Listener[R], kinds []EventKind) *Subscription {
	s := &subscriber[R]{mask: maskOf(kinds), fn: fn}
	ss.mu.Lock()
	ss.list = append(slices.Clip(ss.list), s)
	ss.mu.Unlock()
	return &Subscription{cancel: func() {
		ss.mu.Lock()
		defer ss.mu.Unlock()
		ss.list = slices.DeleteFunc(slices.Clone(ss.list), func(x *subscriber[R]) bool { return x == s })
	}}
}

func (ss *subscribers[R]) emit(e Event[R]) {
	ss.mu.Lock()
	list := ss.list
	ss.mu.Unlock()
	for _, s := range list {
		if s.mask.has(e.Kind) {
			ss.deliver(s.fn, e)
		}
	}
}

func (ss *subscribers[R]) deliver(fn Listener[R], e Event[R]) {
	if ss.onPanic != nil {
		defer func() {
			if v := recover(); v != nil {
				ss.onPanic(e, v)
			}
		}()
	}
	fn(e)
}
