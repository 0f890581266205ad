// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package overclock

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// A Manager is a registry of named tasks that share a result type. It can
// start and stop them by name and relay their events onto a single stream.
type Manager[R any] struct {
	log      *zap.Logger
	defaults []Option

	mu     sync.RWMutex
	tasks  map[string]*Task[R]
	relays map[relayKey]*Subscription

	listeners subscribers[R]
}

type relayKey struct {
	name string
	kind EventKind
}

// A ManagerOption configures a [Manager].
type ManagerOption func(*managerSettings)

type managerSettings struct {
	logger   *zap.Logger
	defaults []Option
}

// WithManagerLogger sets the logger used by the manager. It is also the
// default logger of tasks created with [Manager.Add].
func WithManagerLogger(l *zap.Logger) ManagerOption {
	return func(s *managerSettings) { s.logger = l }
}

// WithDefaults sets options applied to every task created with [Manager.Add]
// before the task's own options.
func WithDefaults(opts ...Option) ManagerOption {
	return func(s *managerSettings) { s.defaults = append(s.defaults, opts...) }
}

// NewManager returns an empty Manager.
func NewManager[R any](opts ...ManagerOption) *Manager[R] {
	var s managerSettings
	for _, opt := range opts {
		opt(&s)
	}
	if s.logger == nil {
		s.logger = zap.L().Named("overclock")
	}
	m := &Manager[R]{
		log:      s.logger,
		defaults: append([]Option{WithLogger(s.logger)}, s.defaults...),
		tasks:    make(map[string]*Task[R]),
		relays:   make(map[relayKey]*Subscription),
	}
	m.listeners.onPanic = func(e Event[R], v any) {
		m.log.Error("manager listener panicked",
			zap.String("task", e.Task.Name()),
			zap.Stringer("event", e.Kind),
			zap.Any("panic", v),
			zap.Stack("stack"))
	}
	return m
}

// Add constructs a task and registers it.
func (m *Manager[R]) Add(kind Kind, name string, exec Executable[R], opts ...Option) (*Task[R], error) {
	t, err := New(kind, name, exec, append(slices.Clip(m.defaults), opts...)...)
	if err != nil {
		return nil, err
	}
	if err := m.Register(t); err != nil {
		return nil, err
	}
	return t, nil
}

// Register adds an existing task. It fails with [ErrDuplicateName] if a task
// with the same name is already registered.
func (m *Manager[R]) Register(t *Task[R]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[t.Name()]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateName, t.Name())
	}
	m.tasks[t.Name()] = t
	m.log.Debug("task registered", zap.String("task", t.Name()), zap.Stringer("kind", t.Kind()))
	return nil
}

// Get returns the named task, or nil.
func (m *Manager[R]) Get(name string) *Task[R] {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.tasks[name]
}

// Has reports whether a task is registered under name.
func (m *Manager[R]) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.tasks[name]
	return ok
}

// Delete unregisters the named task and detaches its relays. The task itself
// is left running if it was. Delete reports whether the task was registered.
func (m *Manager[R]) Delete(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[name]; !ok {
		return false
	}
	for key, sub := range m.relays {
		if key.name == name {
			sub.Unsubscribe()
			delete(m.relays, key)
		}
	}
	delete(m.tasks, name)
	m.log.Debug("task deleted", zap.String("task", name))
	return true
}

// Names returns the names of all registered tasks in sorted order.
func (m *Manager[R]) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return slices.Sorted(maps.Keys(m.tasks))
}

// Subscribe relays the named task's events of the given kinds, or of every
// kind if none are given, onto the manager's stream. Relaying an event kind
// that is already relayed has no effect.
func (m *Manager[R]) Subscribe(name string, kinds ...EventKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTask, name)
	}
	if len(kinds) == 0 {
		kinds = EventKinds
	}
	for _, kind := range kinds {
		key := relayKey{name: name, kind: kind}
		if _, ok := m.relays[key]; ok {
			continue
		}
		m.relays[key] = t.Subscribe(m.listeners.emit, kind)
	}
	return nil
}

// Unsubscribe stops relaying the named task's events of the given kinds, or
// of every kind if none are given. Unsubscribing a kind that is not relayed
// has no effect.
func (m *Manager[R]) Unsubscribe(name string, kinds ...EventKind) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[name]; !ok {
		return fmt.Errorf("%w: %q", ErrUnknownTask, name)
	}
	if len(kinds) == 0 {
		kinds = EventKinds
	}
	for _, kind := range kinds {
		key := relayKey{name: name, kind: kind}
		if sub, ok := m.relays[key]; ok {
			sub.Unsubscribe()
			delete(m.relays, key)
		}
	}
	return nil
}

// Listen registers fn to receive relayed events of the given kinds, or of
// every kind if none are given. Events from different tasks may be delivered
// concurrently.
func (m *Manager[R]) Listen(fn Listener[R], kinds ...EventKind) *Subscription {
	return m.listeners.add(fn, kinds)
}

// Start starts the named tasks, or every registered task if no names are
// given. It attempts every task and returns the combined errors.
func (m *Manager[R]) Start(names ...string) error {
	tasks, err := m.lookup(names)
	for _, t := range tasks {
		if startErr := t.Start(); startErr != nil {
			err = multierr.Append(err, fmt.Errorf("task %q: %w", t.Name(), startErr))
		}
	}
	return err
}

// Stop stops the named tasks, or every registered task if no names are given,
// and waits until every stop outcome has settled or ctx is done. It returns
// the combined errors of all outcomes.
func (m *Manager[R]) Stop(ctx context.Context, names ...string) error {
	tasks, err := m.lookup(names)
	outcomes := make([]*Outcome, len(tasks))
	for i, t := range tasks {
		outcomes[i] = t.StopAsync()
	}
	for i, o := range outcomes {
		if stopErr := o.Wait(ctx); stopErr != nil {
			err = multierr.Append(err, fmt.Errorf("task %q: %w", tasks[i].Name(), stopErr))
		}
	}
	return err
}

// Snapshot returns the stats of every registered task, sorted by name.
func (m *Manager[R]) Snapshot() []Stats {
	tasks, _ := m.lookup(nil)
	stats := make([]Stats, len(tasks))
	for i, t := range tasks {
		stats[i] = t.Stats()
	}
	return stats
}

// lookup resolves names to tasks, defaulting to all tasks sorted by name. An
// error is returned for each unknown name; the known tasks are still
// returned.
func (m *Manager[R]) lookup(names []string) ([]*Task[R], error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(names) == 0 {
		names = slices.Sorted(maps.Keys(m.tasks))
	}
	var err error
	tasks := make([]*Task[R], 0, len(names))
	for _, name := range names {
		t, ok := m.tasks[name]
		if !ok {
			err = multierr.Append(err, fmt.Errorf("%w: %q", ErrUnknownTask, name))
			continue
		}
		tasks = append(tasks, t)
	}
	return tasks, err
}
