// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package overclock

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/petenewcomb/overclock-go/clock"
	"github.com/petenewcomb/overclock-go/internal/loop"
	"github.com/petenewcomb/overclock-go/internal/state"
	"go.uber.org/zap"
)

// A Task repeatedly runs an [Executable] in generations of concurrent
// executions, as decided by its [Kind] and limits, between calls to
// [Task.Start] and [Task.Stop].
//
// Scheduling decisions and event delivery for a task happen serially on a
// goroutine owned by the task. Executions each run in their own goroutine.
// All methods are safe for concurrent use.
type Task[R any] struct {
	name     string
	kind     Kind
	exec     Executable[R]
	settings settings
	limits   limits
	clock    clock.Clock
	log      *zap.Logger
	strategy strategy

	loop   loop.Loop
	counts state.InFlightCounter
	status state.DynamicValue[State]
	subs   subscribers[R]

	mu         sync.Mutex
	state      State
	startingAt time.Time
	startedAt  time.Time
	stoppingAt time.Time
	stoppedAt  time.Time
	startCall  *pendingCall
	stopCall   *pendingCall
	graceCall  *pendingCall
	draining   bool
	outcome    *Outcome
}

// New returns an idle task of the given kind. The name must not be blank.
func New[R any](kind Kind, name string, exec Executable[R], opts ...Option) (*Task[R], error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, ErrInvalidName)
	}
	if exec == nil {
		return nil, fmt.Errorf("%w: task %q: %w", ErrInvalidConfig, name, ErrNilExecutable)
	}
	s := defaultSettings()
	if err := s.apply(opts); err != nil {
		return nil, fmt.Errorf("task %q: %w", name, err)
	}

	t := &Task[R]{
		name:     name,
		kind:     kind,
		exec:     exec,
		settings: s,
		limits: limits{
			concurrency: s.concurrencyLimit,
			liveness:    s.livenessThreshold,
			initial:     s.initialCapacity,
			factory:     s.factoryCapacity,
			generations: s.generationLimit,
			branching:   -1,
		},
		clock: s.clock,
		log:   s.logger.With(zap.String("task", name), zap.Stringer("kind", kind)),
	}
	switch kind {
	case Heartbeat:
		t.strategy = newHeartbeat(t, s.heartbeatInterval)
	case Reactor:
		t.limits.branching = s.branchingLimit
		t.strategy = newReactor(t, s.reactorTimeout, s.branchingLimit)
	default:
		return nil, fmt.Errorf("%w: task %q: %w: %v", ErrInvalidConfig, name, ErrUnknownKind, kind)
	}
	t.subs.onPanic = func(e Event[R], v any) {
		t.log.Error("event listener panicked",
			zap.Stringer("event", e.Kind),
			zap.Any("panic", v),
			zap.Stack("stack"))
	}
	t.loop.OnPanic = func(v any) {
		t.log.Error("task loop callback panicked", zap.Any("panic", v), zap.Stack("stack"))
	}
	return t, nil
}

// NewHeartbeat returns an idle [Heartbeat] task.
func NewHeartbeat[R any](name string, exec Executable[R], opts ...Option) (*Task[R], error) {
	return New(Heartbeat, name, exec, opts...)
}

// NewReactor returns an idle [Reactor] task.
func NewReactor[R any](name string, exec Executable[R], opts ...Option) (*Task[R], error) {
	return New(Reactor, name, exec, opts...)
}

// Start moves an idle or stopped task to [Starting] and, once the start
// timeout has elapsed, to [Started], at which point it begins spawning.
//
// Start returns [ErrAlreadyStarting], [ErrAlreadyStarted] or [ErrStopping] if
// the task is not idle or stopped, and leaves it unchanged.
func (t *Task[R]) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case Starting:
		return ErrAlreadyStarting
	case Started:
		return ErrAlreadyStarted
	case Stopping:
		return ErrStopping
	}

	now := t.clock.Now()
	t.setState(Starting)
	t.startingAt = now
	t.startedAt = time.Time{}
	t.stoppingAt = time.Time{}
	t.stoppedAt = time.Time{}
	t.log.Debug("task starting", zap.Duration("start_timeout", t.settings.startTimeout))
	t.post(Event[R]{Kind: EventStarting, At: now})
	t.startCall = t.schedule(t.settings.startTimeout, t.started)
	return nil
}

func (t *Task[R]) started() {
	t.mu.Lock()
	if t.state != Starting {
		t.mu.Unlock()
		return
	}
	now := t.clock.Now()
	t.setState(Started)
	t.startedAt = now
	t.startCall = nil
	t.mu.Unlock()

	t.log.Debug("task started")
	t.emit(Event[R]{Kind: EventStarted, At: now})
	t.strategy.onStart()
}

// Stop requests a stop and waits for its outcome or for ctx to be done. It is
// StopAsync followed by [Outcome.Wait].
//
// Stop must not be called from a [Listener] of the same task, since the stop
// cannot make progress while the listener blocks.
func (t *Task[R]) Stop(ctx context.Context) error {
	return t.StopAsync().Wait(ctx)
}

// StopAsync requests that the task stop and returns the outcome of the
// request. The task moves to [Stopping] at once, stops spawning after the
// stop timeout, and reaches [Stopped] once every in-flight execution has
// settled. Executions are never canceled by a stop.
//
// While a stop is pending every call returns the same Outcome. On a task that
// is already stopped the returned Outcome is already settled.
func (t *Task[R]) StopAsync() *Outcome {
	return t.requestStop(t.settings.stopTimeout)
}

func (t *Task[R]) requestStop(delay time.Duration) *Outcome {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.state {
	case Stopping:
		return t.outcome
	case Stopped:
		return settledOutcome(nil)
	case Starting:
		t.startCall.cancel()
		t.startCall = nil
	}

	now := t.clock.Now()
	t.setState(Stopping)
	t.stoppingAt = now
	t.outcome = newOutcome()
	t.log.Debug("task stopping", zap.Duration("stop_timeout", delay))
	t.post(Event[R]{Kind: EventStopping, At: now})
	t.stopCall = t.schedule(delay, t.drain)
	return t.outcome
}

// drain stops all further spawning and completes the stop once the
// population reaches zero.
func (t *Task[R]) drain() {
	t.strategy.onDrainStart()

	t.mu.Lock()
	if t.state != Stopping || t.draining {
		t.mu.Unlock()
		return
	}
	t.stopCall = nil
	if t.counts.IsZero() {
		t.stopLocked()
		return
	}
	t.draining = true
	if grace := t.settings.graceTimeout; grace >= 0 {
		t.graceCall = t.schedule(grace, t.graceExpired)
	}
	population := t.counts.Population()
	t.mu.Unlock()

	t.log.Debug("draining executions", zap.Int64("population", population))
}

// stopLocked completes a stop. It must be called with t.mu held, and releases
// it.
func (t *Task[R]) stopLocked() {
	now := t.clock.Now()
	t.setState(Stopped)
	t.stoppedAt = now
	t.draining = false
	t.graceCall.cancel()
	t.graceCall = nil
	outcome := t.outcome
	t.mu.Unlock()

	t.log.Debug("task stopped")
	t.emit(Event[R]{Kind: EventStopped, At: now})
	outcome.settle(nil)
}

func (t *Task[R]) graceExpired() {
	t.mu.Lock()
	if t.state != Stopping || !t.draining {
		t.mu.Unlock()
		return
	}
	t.graceCall = nil
	outcome := t.outcome
	population := t.counts.Population()
	t.mu.Unlock()

	grace := t.settings.graceTimeout
	t.log.Warn("grace timeout elapsed with executions in flight",
		zap.Duration("grace_timeout", grace),
		zap.Int64("population", population))
	outcome.settle(fmt.Errorf("%w: %d executions still in flight after %v", ErrGraceTimeout, population, grace))
}

// spawn asks the spawn planner for the next generation and launches it.
// Spawns are ignored unless the task is started.
func (t *Task[R]) spawn() {
	if !t.running() {
		return
	}
	t.emit(Event[R]{Kind: EventSpawning, At: t.clock.Now()})

	generation := t.counts.Generations()
	count, err := plan(t.limits, t.counts.Population(), generation)
	if err != nil {
		t.spawnFailed(err)
		return
	}
	for range count {
		t.tick(generation)
	}
	t.counts.Generation()
	t.log.Debug("spawned generation", zap.Int64("generation", generation), zap.Int("count", count))
	t.emit(Event[R]{Kind: EventSpawned, At: t.clock.Now(), Count: count})
}

// spawnDelayed reports a spawn that a strategy declined on its own.
func (t *Task[R]) spawnDelayed(cause error) {
	t.emit(Event[R]{Kind: EventSpawning, At: t.clock.Now()})
	t.spawnFailed(delayed(cause))
}

func (t *Task[R]) spawnFailed(err error) {
	t.emit(Event[R]{Kind: EventSpawned, At: t.clock.Now(), Err: err})
	if errors.Is(err, ErrInhibited) {
		t.log.Info("spawning inhibited, stopping task", zap.Error(err))
		t.requestStop(0)
		return
	}
	t.log.Debug("spawn delayed", zap.Error(err))
}

func (t *Task[R]) tick(generation int64) {
	ex := Execution[R]{
		ID:         uuid.New(),
		Generation: generation,
		TickAt:     t.clock.Now(),
	}
	ex.Seq = t.counts.Tick()
	t.emit(Event[R]{Kind: EventTick, At: ex.TickAt, Execution: ex})
	go t.run(ex)
}

// run executes one tick in its own goroutine and posts the tock. The first of
// the executable's return and the run timeout settles the execution.
func (t *Task[R]) run(ex Execution[R]) {
	ctx, cancel := context.WithCancelCause(ContextWithExecution(context.Background(), ExecutionInfo{
		Task:       t.name,
		Kind:       t.kind,
		ID:         ex.ID,
		Generation: ex.Generation,
		Seq:        ex.Seq,
	}))
	defer cancel(nil)

	var settled atomic.Bool
	settle := func(result R, err error) bool {
		if !settled.CompareAndSwap(false, true) {
			return false
		}
		done := ex
		done.TockAt = t.clock.Now()
		done.Result = result
		done.Err = err
		t.loop.Post(func() { t.tock(done) })
		return true
	}

	if d := t.settings.runTimeout; d >= 0 {
		timer := t.clock.AfterFunc(d, func() {
			cancel(ErrRunTimeout)
			var zero R
			if settle(zero, fmt.Errorf("%w after %v", ErrRunTimeout, d)) {
				t.log.Debug("execution timed out", zap.Stringer("execution", ex.ID), zap.Duration("run_timeout", d))
			}
		})
		defer timer.Stop()
	}

	result, err := t.call(ctx, ex)
	if !settle(result, err) {
		t.log.Debug("execution completed after its run timeout", zap.Stringer("execution", ex.ID))
	}
}

func (t *Task[R]) call(ctx context.Context, ex Execution[R]) (result R, err error) {
	defer func() {
		if v := recover(); v != nil {
			t.log.Error("executable panicked",
				zap.Stringer("execution", ex.ID),
				zap.Any("panic", v),
				zap.Stack("stack"))
			err = fmt.Errorf("%w: %v", ErrExecutablePanic, v)
		}
	}()
	return t.exec(ctx)
}

func (t *Task[R]) tock(ex Execution[R]) {
	t.counts.Tock()
	t.emit(Event[R]{Kind: EventTock, At: ex.TockAt, Execution: ex})
	t.strategy.onTock()

	t.mu.Lock()
	if t.state == Stopping && t.draining && t.counts.IsZero() {
		t.stopLocked()
		return
	}
	t.mu.Unlock()
}

func (t *Task[R]) setState(s State) {
	t.state = s
	t.status.Store(s)
}

func (t *Task[R]) emit(e Event[R]) {
	e.Task = t
	t.subs.emit(e)
}

// post emits e from the task's loop, after everything already queued.
func (t *Task[R]) post(e Event[R]) {
	t.loop.Post(func() { t.emit(e) })
}

func (t *Task[R]) running() bool {
	return t.State() == Started
}

func (t *Task[R]) repeat(d time.Duration, fn func()) clock.Timer {
	return clock.Repeat(t.clock, d, func() { t.loop.Post(fn) })
}

// schedule runs fn on the task's loop once d has elapsed, unless the returned
// call is canceled first. A non-positive d posts fn immediately.
func (t *Task[R]) schedule(d time.Duration, fn func()) *pendingCall {
	p := &pendingCall{}
	run := func() {
		if !p.canceled.Load() {
			fn()
		}
	}
	if d <= 0 {
		t.loop.Post(run)
		return p
	}
	p.mu.Lock()
	p.timer = t.clock.AfterFunc(d, func() { t.loop.Post(run) })
	p.mu.Unlock()
	return p
}

type pendingCall struct {
	canceled atomic.Bool
	mu       sync.Mutex
	timer    clock.Timer
}

// cancel is safe to call on a nil call.
func (p *pendingCall) cancel() {
	if p == nil {
		return
	}
	p.canceled.Store(true)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.timer != nil {
		p.timer.Stop()
	}
}

// Subscribe registers fn to receive the task's events of the given kinds, or
// of every kind if none are given.
func (t *Task[R]) Subscribe(fn Listener[R], kinds ...EventKind) *Subscription {
	return t.subs.add(fn, kinds)
}

// Await blocks until the task is in one of the given states, or ctx is done,
// and returns the state observed.
func (t *Task[R]) Await(ctx context.Context, states ...State) (State, error) {
	return t.status.Wait(ctx, func(s State) bool {
		return slices.Contains(states, s)
	})
}

func (t *Task[R]) Name() string { return t.name }
func (t *Task[R]) Kind() Kind   { return t.kind }

func (t *Task[R]) ConcurrencyLimit() int      { return t.settings.concurrencyLimit }
func (t *Task[R]) LivenessThreshold() int     { return t.settings.livenessThreshold }
func (t *Task[R]) InitialCapacity() int       { return t.settings.initialCapacity }
func (t *Task[R]) FactoryCapacity() int       { return t.settings.factoryCapacity }
func (t *Task[R]) GenerationLimit() int       { return t.settings.generationLimit }
func (t *Task[R]) ReactorBranchingLimit() int { return t.settings.branchingLimit }

func (t *Task[R]) StartTimeout() time.Duration      { return t.settings.startTimeout }
func (t *Task[R]) RunTimeout() time.Duration        { return t.settings.runTimeout }
func (t *Task[R]) StopTimeout() time.Duration       { return t.settings.stopTimeout }
func (t *Task[R]) GraceTimeout() time.Duration      { return t.settings.graceTimeout }
func (t *Task[R]) HeartbeatInterval() time.Duration { return t.settings.heartbeatInterval }
func (t *Task[R]) ReactorTimeout() time.Duration    { return t.settings.reactorTimeout }

// State returns the task's current lifecycle state.
func (t *Task[R]) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Task[R]) IsStarting() bool { return t.State() == Starting }
func (t *Task[R]) IsStarted() bool  { return t.State() == Started }
func (t *Task[R]) IsStopping() bool { return t.State() == Stopping }
func (t *Task[R]) IsStopped() bool  { return t.State() == Stopped }

// StartingAt returns when the task last entered [Starting]. The lifecycle
// timestamps are reset by each Start and are zero until reached.
func (t *Task[R]) StartingAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startingAt
}

func (t *Task[R]) StartedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.startedAt
}

func (t *Task[R]) StoppingAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stoppingAt
}

func (t *Task[R]) StoppedAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stoppedAt
}

// Population returns the number of executions in flight.
func (t *Task[R]) Population() int64 { return t.counts.Population() }

// Generations returns the number of generations spawned so far.
func (t *Task[R]) Generations() int64 { return t.counts.Generations() }

// Ticks returns the number of executions started so far.
func (t *Task[R]) Ticks() int64 { return t.counts.Ticks() }

// Tocks returns the number of executions settled so far.
func (t *Task[R]) Tocks() int64 { return t.counts.Tocks() }

// Stats is a point-in-time snapshot of a task.
type Stats struct {
	Name        string
	Kind        Kind
	State       State
	StartingAt  time.Time
	StartedAt   time.Time
	StoppingAt  time.Time
	StoppedAt   time.Time
	Population  int64
	Generations int64
	Ticks       int64
	Tocks       int64
}

// Stats returns a snapshot of the task's state and counters.
func (t *Task[R]) Stats() Stats {
	t.mu.Lock()
	s := Stats{
		Name:       t.name,
		Kind:       t.kind,
		State:      t.state,
		StartingAt: t.startingAt,
		StartedAt:  t.startedAt,
		StoppingAt: t.stoppingAt,
		StoppedAt:  t.stoppedAt,
	}
	t.mu.Unlock()
	s.Tocks = t.counts.Tocks()
	s.Ticks = t.counts.Ticks()
	s.Population = s.Ticks - s.Tocks
	s.Generations = t.counts.Generations()
	return s
}
