// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package overclock_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/petenewcomb/overclock-go"
	"github.com/stretchr/testify/require"
)

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		task string
		exec overclock.Executable[int]
		kind overclock.Kind
		opts []overclock.Option
		want error
	}{
		{"blank name", "  ", instant, overclock.Heartbeat, nil, overclock.ErrInvalidName},
		{"nil executable", "t", nil, overclock.Heartbeat, nil, overclock.ErrNilExecutable},
		{"unknown kind", "t", instant, overclock.Kind(7), nil, overclock.ErrUnknownKind},
		{"negative start timeout", "t", instant, overclock.Heartbeat, []overclock.Option{overclock.WithStartTimeout(-1)}, nil},
		{"negative stop timeout", "t", instant, overclock.Heartbeat, []overclock.Option{overclock.WithStopTimeout(-1)}, nil},
		{"negative heartbeat interval", "t", instant, overclock.Heartbeat, []overclock.Option{overclock.WithHeartbeatInterval(-time.Second)}, nil},
		{"negative reactor timeout", "t", instant, overclock.Reactor, []overclock.Option{overclock.WithReactorTimeout(-time.Second)}, nil},
		{"nil clock", "t", instant, overclock.Heartbeat, []overclock.Option{overclock.WithClock(nil)}, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			chk := require.New(t)
			task, err := overclock.New(tc.kind, tc.task, tc.exec, tc.opts...)
			chk.Nil(task)
			chk.ErrorIs(err, overclock.ErrInvalidConfig)
			if tc.want != nil {
				chk.ErrorIs(err, tc.want)
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	chk := require.New(t)
	task, err := overclock.NewReactor("defaults", instant)
	chk.NoError(err)

	chk.Equal("defaults", task.Name())
	chk.Equal(overclock.Reactor, task.Kind())
	chk.Equal(1, task.ConcurrencyLimit())
	chk.Equal(-1, task.LivenessThreshold())
	chk.Equal(-1, task.InitialCapacity())
	chk.Equal(-1, task.FactoryCapacity())
	chk.Equal(-1, task.GenerationLimit())
	chk.Equal(-1, task.ReactorBranchingLimit())
	chk.Equal(time.Duration(0), task.StartTimeout())
	chk.Equal(time.Duration(-1), task.RunTimeout())
	chk.Equal(time.Duration(0), task.StopTimeout())
	chk.Equal(time.Duration(-1), task.GraceTimeout())
	chk.Equal(time.Second, task.HeartbeatInterval())
	chk.Equal(time.Second, task.ReactorTimeout())

	chk.Equal(overclock.Idle, task.State())
	chk.False(task.IsStarting())
	chk.False(task.IsStarted())
	chk.False(task.IsStopping())
	chk.False(task.IsStopped())
	chk.True(task.StartingAt().IsZero())
	chk.Zero(task.Population())
	chk.Zero(task.Generations())
	chk.Zero(task.Ticks())
	chk.Zero(task.Tocks())
}

func TestInitialCapacityDefaultsToFactoryCapacity(t *testing.T) {
	chk := require.New(t)

	task, err := overclock.NewHeartbeat("t", instant, overclock.WithFactoryCapacity(3))
	chk.NoError(err)
	chk.Equal(3, task.InitialCapacity())

	task, err = overclock.NewHeartbeat("t", instant, overclock.WithFactoryCapacity(3), overclock.WithInitialCapacity(0))
	chk.NoError(err)
	chk.Equal(0, task.InitialCapacity())
}

func TestStartWhileStartingOrStarted(t *testing.T) {
	chk := require.New(t)
	m, opts := testOptions(t, overclock.WithStartTimeout(time.Minute))
	task, err := overclock.NewHeartbeat("t", newGate().run, opts...)
	chk.NoError(err)

	chk.NoError(task.Start())
	chk.Equal(overclock.Starting, task.State())
	chk.Equal(epoch, task.StartingAt())
	chk.ErrorIs(task.Start(), overclock.ErrAlreadyStarting)

	m.Advance(time.Minute)
	await(t, task, overclock.Started)
	chk.Equal(epoch.Add(time.Minute), task.StartedAt())
	chk.ErrorIs(task.Start(), overclock.ErrAlreadyStarted)

	task.StopAsync()
	chk.ErrorIs(task.Start(), overclock.ErrStopping)
}

func TestLifecycleEventOrder(t *testing.T) {
	chk := require.New(t)
	_, opts := testOptions(t, overclock.WithGenerationLimit(1), overclock.WithReactorTimeout(0))
	task, err := overclock.NewReactor("t", instant, opts...)
	chk.NoError(err)
	rec := record(task)

	chk.NoError(task.Start())
	await(t, task, overclock.Stopped)
	chk.Eventually(func() bool { return rec.count(overclock.EventStopped) == 1 }, waitFor, pollEvery)

	chk.Equal([]overclock.EventKind{
		overclock.EventStarting,
		overclock.EventStarted,
		overclock.EventSpawning,
		overclock.EventTick,
		overclock.EventSpawned,
		overclock.EventTock,
		overclock.EventSpawning,
		overclock.EventSpawned,
		overclock.EventStopping,
		overclock.EventStopped,
	}, rec.kinds())

	for _, e := range rec.all() {
		chk.Same(task, e.Task)
	}
	spawned := rec.of(overclock.EventSpawned)
	chk.Equal(1, spawned[0].Count)
	chk.NoError(spawned[0].Err)
	chk.Zero(spawned[1].Count)
	chk.ErrorIs(spawned[1].Err, overclock.ErrGenerationLimitReached)
	chk.ErrorIs(spawned[1].Err, overclock.ErrInhibited)

	tick := rec.of(overclock.EventTick)[0].Execution
	tock := rec.of(overclock.EventTock)[0].Execution
	chk.Equal(tick.ID, tock.ID)
	chk.Equal(int64(0), tock.Generation)
	chk.Equal(int64(1), tock.Seq)
	chk.Equal(1, tock.Result)
	chk.NoError(tock.Err)
	chk.False(tock.TockAt.IsZero())
}

func TestZeroConcurrencyLimitStopsWithoutTicking(t *testing.T) {
	chk := require.New(t)
	_, opts := testOptions(t, overclock.WithConcurrencyLimit(0))
	task, err := overclock.NewHeartbeat("t", instant, opts...)
	chk.NoError(err)
	rec := record(task)

	chk.NoError(task.Start())
	await(t, task, overclock.Stopped)

	chk.Zero(task.Ticks())
	chk.Zero(task.Generations())
	chk.Eventually(func() bool { return rec.count(overclock.EventStopped) == 1 }, waitFor, pollEvery)
	spawned := rec.of(overclock.EventSpawned)
	chk.Len(spawned, 1)
	chk.Zero(spawned[0].Count)
	chk.ErrorIs(spawned[0].Err, overclock.ErrConcurrencyLimitZero)
	chk.ErrorIs(spawned[0].Err, overclock.ErrInhibited)
}

func TestHeartbeatSpawnsOnInterval(t *testing.T) {
	chk := require.New(t)
	m, opts := testOptions(t,
		overclock.WithHeartbeatInterval(100*time.Millisecond),
		overclock.WithConcurrencyLimit(2))
	g := newGate()
	task, err := overclock.NewHeartbeat("t", g.run, opts...)
	chk.NoError(err)
	rec := record(task)

	var maxPopulation atomic.Int64
	task.Subscribe(func(e overclock.Event[int]) {
		if p := task.Population(); p > maxPopulation.Load() {
			maxPopulation.Store(p)
		}
	}, overclock.EventTick)

	chk.NoError(task.Start())
	chk.Eventually(func() bool { return rec.count(overclock.EventSpawned) == 1 }, waitFor, pollEvery)
	first := rec.of(overclock.EventSpawned)[0]
	chk.Equal(2, first.Count, "first generation spawns immediately")
	chk.Equal(epoch, first.At)

	m.Advance(100 * time.Millisecond)
	chk.Eventually(func() bool { return rec.count(overclock.EventSpawned) == 2 }, waitFor, pollEvery)
	second := rec.of(overclock.EventSpawned)[1]
	chk.ErrorIs(second.Err, overclock.ErrConcurrencyLimitReached)
	chk.ErrorIs(second.Err, overclock.ErrDelayed)
	chk.Equal(epoch.Add(100*time.Millisecond), second.At)
	chk.Equal(overclock.Started, task.State(), "a delayed spawn keeps the task running")

	g.release(1)
	chk.Eventually(func() bool { return task.Tocks() == 1 }, waitFor, pollEvery)
	m.Advance(100 * time.Millisecond)
	chk.Eventually(func() bool { return rec.count(overclock.EventSpawned) == 3 }, waitFor, pollEvery)
	third := rec.of(overclock.EventSpawned)[2]
	chk.NoError(third.Err)
	chk.Equal(1, third.Count)
	chk.Equal(int64(2), task.Generations())
	chk.LessOrEqual(maxPopulation.Load(), int64(2))

	outcome := task.StopAsync()
	g.release(2)
	chk.NoError(outcome.Wait(context.Background()))
	chk.True(task.IsStopped())

	// No more spawns once stopped.
	spawns := rec.count(overclock.EventSpawning)
	m.Advance(time.Second)
	chk.Never(func() bool { return rec.count(overclock.EventSpawning) != spawns }, 20*time.Millisecond, pollEvery)
}

func TestReactorRespawnsAfterTimeout(t *testing.T) {
	chk := require.New(t)
	m, opts := testOptions(t, overclock.WithReactorTimeout(50*time.Millisecond))
	task, err := overclock.NewReactor("t", instant, opts...)
	chk.NoError(err)
	rec := record(task)

	chk.NoError(task.Start())
	for i := 1; i <= 3; i++ {
		// The re-spawn timer is armed right after the tock is delivered.
		chk.Eventually(func() bool { return task.Tocks() == int64(i) && m.Pending() == 1 }, waitFor, pollEvery)
		chk.Equal(int64(i), task.Ticks())
		m.Advance(49 * time.Millisecond)
		chk.Never(func() bool { return task.Ticks() > int64(i) }, 10*time.Millisecond, pollEvery)
		m.Advance(time.Millisecond)
	}

	ticks := rec.of(overclock.EventTick)
	chk.GreaterOrEqual(len(ticks), 3)
	for i := range 3 {
		chk.Equal(epoch.Add(time.Duration(i)*50*time.Millisecond), ticks[i].Execution.TickAt)
		chk.Equal(int64(i), ticks[i].Execution.Generation)
	}

	chk.NoError(task.Stop(context.Background()))
}

func TestReactorZeroTimeoutIsAsynchronous(t *testing.T) {
	chk := require.New(t)
	_, opts := testOptions(t, overclock.WithReactorTimeout(0), overclock.WithGenerationLimit(5))
	task, err := overclock.NewReactor("t", instant, opts...)
	chk.NoError(err)

	chk.NoError(task.Start())
	await(t, task, overclock.Stopped)
	chk.Equal(int64(5), task.Generations())
	chk.Equal(int64(5), task.Ticks())
	chk.Equal(int64(5), task.Tocks())
}

func TestReactorBranchingLimit(t *testing.T) {
	chk := require.New(t)
	m, opts := testOptions(t,
		overclock.WithReactorTimeout(time.Second),
		overclock.WithConcurrencyLimit(3),
		overclock.WithReactorBranchingLimit(2))
	task, err := overclock.NewReactor("t", instant, opts...)
	chk.NoError(err)
	rec := record(task)

	// Three tocks with a one second reactor timeout: the third finds two
	// re-spawns already pending.
	chk.NoError(task.Start())
	chk.Eventually(func() bool { return rec.count(overclock.EventTock) == 3 }, waitFor, pollEvery)
	chk.Eventually(func() bool { return rec.count(overclock.EventSpawned) == 2 }, waitFor, pollEvery)
	delayed := rec.of(overclock.EventSpawned)[1]
	chk.ErrorIs(delayed.Err, overclock.ErrBranchingLimitReached)
	chk.ErrorIs(delayed.Err, overclock.ErrDelayed)
	chk.Equal(overclock.Started, task.State())

	m.Advance(time.Second)
	chk.Eventually(func() bool { return task.Generations() >= 2 }, waitFor, pollEvery)
	chk.NoError(task.Stop(context.Background()))
}

func TestReactorBranchingLimitZeroInhibits(t *testing.T) {
	chk := require.New(t)
	_, opts := testOptions(t, overclock.WithReactorBranchingLimit(0))
	task, err := overclock.NewReactor("t", instant, opts...)
	chk.NoError(err)
	rec := record(task)

	chk.NoError(task.Start())
	await(t, task, overclock.Stopped)
	chk.Zero(task.Ticks())
	chk.Eventually(func() bool { return rec.count(overclock.EventSpawned) == 1 }, waitFor, pollEvery)
	chk.ErrorIs(rec.of(overclock.EventSpawned)[0].Err, overclock.ErrBranchingLimitZero)
}

func TestStopDrainsInFlightWork(t *testing.T) {
	chk := require.New(t)
	_, opts := testOptions(t, overclock.WithConcurrencyLimit(1))
	g := newGate()
	task, err := overclock.NewHeartbeat("t", g.run, opts...)
	chk.NoError(err)

	chk.NoError(task.Start())
	chk.Eventually(func() bool { return task.Population() == 1 }, waitFor, pollEvery)

	outcome := task.StopAsync()
	chk.Never(func() bool {
		select {
		case <-outcome.Done():
			return true
		default:
			return false
		}
	}, 20*time.Millisecond, pollEvery)
	chk.Equal(overclock.Stopping, task.State())
	chk.NoError(outcome.Err(), "pending outcome has no error")

	g.release(1)
	chk.NoError(outcome.Wait(context.Background()))
	chk.Zero(task.Population())
	chk.True(task.IsStopped())
	chk.False(task.StoppedAt().Before(task.StoppingAt()))
}

func TestStopIsIdempotent(t *testing.T) {
	chk := require.New(t)
	_, opts := testOptions(t)
	g := newGate()
	task, err := overclock.NewHeartbeat("t", g.run, opts...)
	chk.NoError(err)
	rec := record(task)

	chk.NoError(task.Start())
	chk.Eventually(func() bool { return task.Population() == 1 }, waitFor, pollEvery)

	first := task.StopAsync()
	second := task.StopAsync()
	chk.Same(first, second)

	g.release(1)
	chk.NoError(first.Wait(context.Background()))
	chk.NoError(task.Stop(context.Background()))
	chk.Eventually(func() bool { return rec.count(overclock.EventStopped) == 1 }, waitFor, pollEvery)
	chk.Never(func() bool { return rec.count(overclock.EventStopped) > 1 }, 20*time.Millisecond, pollEvery)
	chk.Equal(1, rec.count(overclock.EventStopping))
	chk.Equal(int64(1), task.Tocks())
}

func TestGraceTimeout(t *testing.T) {
	chk := require.New(t)
	m, opts := testOptions(t, overclock.WithGraceTimeout(100*time.Millisecond))
	g := newGate()
	task, err := overclock.NewReactor("t", g.run, opts...)
	chk.NoError(err)

	chk.NoError(task.Start())
	chk.Eventually(func() bool { return task.Population() == 1 }, waitFor, pollEvery)
	chk.Zero(m.Pending())

	outcome := task.StopAsync()
	// The grace timer is armed once the drain begins.
	chk.Eventually(func() bool { return m.Pending() == 1 }, waitFor, pollEvery)
	m.Advance(100 * time.Millisecond)

	err = outcome.Wait(context.Background())
	chk.ErrorIs(err, overclock.ErrGraceTimeout)
	chk.ErrorIs(outcome.Err(), overclock.ErrGraceTimeout)
	chk.Equal(overclock.Stopping, task.State(), "task keeps draining after the grace timeout")
	chk.Same(outcome, task.StopAsync())

	g.release(1)
	await(t, task, overclock.Stopped)
	chk.Zero(task.Population())
}

func TestStopTimeoutDelaysDrain(t *testing.T) {
	chk := require.New(t)
	m, opts := testOptions(t,
		overclock.WithStopTimeout(time.Second),
		overclock.WithHeartbeatInterval(100*time.Millisecond),
		overclock.WithConcurrencyLimit(-1))
	task, err := overclock.NewHeartbeat("t", instant, opts...)
	chk.NoError(err)
	rec := record(task)

	chk.NoError(task.Start())
	chk.Eventually(func() bool { return rec.count(overclock.EventSpawned) == 1 }, waitFor, pollEvery)

	outcome := task.StopAsync()
	chk.Equal(epoch, task.StoppingAt())

	// Spawns are ignored once stopping, even before the drain.
	m.Advance(500 * time.Millisecond)
	chk.Never(func() bool { return rec.count(overclock.EventSpawning) > 1 }, 20*time.Millisecond, pollEvery)
	chk.Equal(overclock.Stopping, task.State())

	m.Advance(500 * time.Millisecond)
	chk.NoError(outcome.Wait(context.Background()))
	chk.Equal(epoch.Add(time.Second), task.StoppedAt())
}

func TestStopWhileStartingCancelsStart(t *testing.T) {
	chk := require.New(t)
	m, opts := testOptions(t, overclock.WithStartTimeout(time.Minute))
	task, err := overclock.NewHeartbeat("t", instant, opts...)
	chk.NoError(err)
	rec := record(task)

	chk.NoError(task.Start())
	chk.NoError(task.Stop(context.Background()))
	m.Advance(time.Hour)

	chk.Eventually(func() bool { return rec.count(overclock.EventStopped) == 1 }, waitFor, pollEvery)
	chk.Equal([]overclock.EventKind{
		overclock.EventStarting,
		overclock.EventStopping,
		overclock.EventStopped,
	}, rec.kinds())
	chk.True(task.StartedAt().IsZero())
	chk.Zero(task.Ticks())
}

func TestStopFromIdleAndStopped(t *testing.T) {
	chk := require.New(t)
	_, opts := testOptions(t)
	task, err := overclock.NewHeartbeat("t", instant, opts...)
	chk.NoError(err)

	chk.NoError(task.Stop(context.Background()))
	chk.True(task.IsStopped())

	outcome := task.StopAsync()
	select {
	case <-outcome.Done():
	default:
		chk.Fail("stop of a stopped task must settle immediately")
	}
	chk.NoError(outcome.Err())
}

func TestRestartAfterStop(t *testing.T) {
	chk := require.New(t)
	_, opts := testOptions(t, overclock.WithGenerationLimit(1), overclock.WithReactorTimeout(0))
	task, err := overclock.NewReactor("t", instant, opts...)
	chk.NoError(err)

	chk.NoError(task.Start())
	await(t, task, overclock.Stopped)
	chk.Equal(int64(1), task.Ticks())

	// Generations are counted over the task's lifetime, so the limit is
	// already reached on restart.
	chk.NoError(task.Start())
	await(t, task, overclock.Stopped)
	chk.Equal(int64(1), task.Ticks())
	chk.Equal(int64(1), task.Generations())
}

func TestRunTimeout(t *testing.T) {
	chk := require.New(t)
	m, opts := testOptions(t, overclock.WithRunTimeout(10*time.Millisecond))

	causes := make(chan error, 1)
	release := make(chan struct{})
	exec := func(ctx context.Context) (int, error) {
		<-ctx.Done()
		causes <- context.Cause(ctx)
		<-release
		return 42, nil
	}
	task, err := overclock.NewHeartbeat("t", exec, opts...)
	chk.NoError(err)
	rec := record(task)

	chk.NoError(task.Start())
	// Heartbeat timer plus the execution's run timer.
	chk.Eventually(func() bool { return m.Pending() == 2 }, waitFor, pollEvery)
	m.Advance(10 * time.Millisecond)

	chk.Eventually(func() bool { return rec.count(overclock.EventTock) == 1 }, waitFor, pollEvery)
	tock := rec.of(overclock.EventTock)[0].Execution
	chk.ErrorIs(tock.Err, overclock.ErrRunTimeout)
	chk.Zero(tock.Result)
	chk.Equal(10*time.Millisecond, tock.Duration())
	chk.ErrorIs(<-causes, overclock.ErrRunTimeout)

	// The late completion is not counted again.
	close(release)
	chk.NoError(task.Stop(context.Background()))
	chk.Never(func() bool { return rec.count(overclock.EventTock) > 1 }, 20*time.Millisecond, pollEvery)
	chk.Equal(int64(1), task.Tocks())
}

func TestExecutablePanicIsCaptured(t *testing.T) {
	chk := require.New(t)
	_, opts := testOptions(t, overclock.WithGenerationLimit(1), overclock.WithReactorTimeout(0))
	task, err := overclock.NewReactor("t", func(context.Context) (int, error) {
		panic("kaboom")
	}, opts...)
	chk.NoError(err)
	rec := record(task)

	chk.NoError(task.Start())
	await(t, task, overclock.Stopped)
	chk.Eventually(func() bool { return rec.count(overclock.EventTock) == 1 }, waitFor, pollEvery)
	tockErr := rec.of(overclock.EventTock)[0].Execution.Err
	chk.ErrorIs(tockErr, overclock.ErrExecutablePanic)
	chk.ErrorContains(tockErr, "kaboom")
}

func TestExecutionErrorsDoNotAffectLifecycle(t *testing.T) {
	chk := require.New(t)
	_, opts := testOptions(t, overclock.WithGenerationLimit(3), overclock.WithReactorTimeout(0))
	boom := errors.New("boom")
	task, err := overclock.NewReactor("t", func(context.Context) (int, error) {
		return 0, boom
	}, opts...)
	chk.NoError(err)
	rec := record(task)

	chk.NoError(task.Start())
	chk.NoError(task.Stop(context.Background()))
	for _, e := range rec.of(overclock.EventTock) {
		chk.ErrorIs(e.Execution.Err, boom)
	}
}

func TestListenerMayControlTask(t *testing.T) {
	chk := require.New(t)
	_, opts := testOptions(t, overclock.WithConcurrencyLimit(-1))
	task, err := overclock.NewHeartbeat("t", instant, opts...)
	chk.NoError(err)

	var outcome atomic.Pointer[overclock.Outcome]
	task.Subscribe(func(e overclock.Event[int]) {
		outcome.Store(e.Task.StopAsync())
	}, overclock.EventTock)

	chk.NoError(task.Start())
	await(t, task, overclock.Stopped)
	chk.NotNil(outcome.Load())
	chk.NoError(outcome.Load().Wait(context.Background()))
}

func TestListenerPanicIsContained(t *testing.T) {
	chk := require.New(t)
	_, opts := testOptions(t, overclock.WithGenerationLimit(1), overclock.WithReactorTimeout(0))
	task, err := overclock.NewReactor("t", instant, opts...)
	chk.NoError(err)
	task.Subscribe(func(overclock.Event[int]) { panic("listener bug") }, overclock.EventTick)
	rec := record(task)

	chk.NoError(task.Start())
	await(t, task, overclock.Stopped)
	chk.Eventually(func() bool { return rec.count(overclock.EventStopped) == 1 }, waitFor, pollEvery)
}

func TestUnsubscribe(t *testing.T) {
	chk := require.New(t)
	_, opts := testOptions(t, overclock.WithGenerationLimit(1), overclock.WithReactorTimeout(0))
	task, err := overclock.NewReactor("t", instant, opts...)
	chk.NoError(err)

	var calls atomic.Int32
	sub := task.Subscribe(func(overclock.Event[int]) { calls.Add(1) })
	sub.Unsubscribe()
	sub.Unsubscribe()
	rec := record(task)

	chk.NoError(task.Start())
	await(t, task, overclock.Stopped)
	chk.Eventually(func() bool { return rec.count(overclock.EventStopped) == 1 }, waitFor, pollEvery)
	chk.Zero(calls.Load())
}

func TestSubscribeIgnoresUnknownEventKinds(t *testing.T) {
	chk := require.New(t)
	_, opts := testOptions(t, overclock.WithGenerationLimit(1), overclock.WithReactorTimeout(0))
	task, err := overclock.NewReactor("t", instant, opts...)
	chk.NoError(err)

	var unknown, ticks atomic.Int32
	task.Subscribe(func(overclock.Event[int]) { unknown.Add(1) }, overclock.EventKind(-1), overclock.EventKind(64))
	task.Subscribe(func(overclock.Event[int]) { ticks.Add(1) }, overclock.EventKind(-3), overclock.EventTick)
	rec := record(task)

	chk.NoError(task.Start())
	await(t, task, overclock.Stopped)
	chk.Eventually(func() bool { return rec.count(overclock.EventStopped) == 1 }, waitFor, pollEvery)
	chk.Zero(unknown.Load())
	chk.EqualValues(1, ticks.Load())
}

func TestStats(t *testing.T) {
	chk := require.New(t)
	_, opts := testOptions(t, overclock.WithGenerationLimit(2), overclock.WithReactorTimeout(0))
	task, err := overclock.NewReactor("stats", instant, opts...)
	chk.NoError(err)

	chk.NoError(task.Start())
	await(t, task, overclock.Stopped)

	s := task.Stats()
	chk.Equal("stats", s.Name)
	chk.Equal(overclock.Reactor, s.Kind)
	chk.Equal(overclock.Stopped, s.State)
	chk.Equal(epoch, s.StartingAt)
	chk.Equal(epoch, s.StoppedAt)
	chk.Equal(int64(2), s.Generations)
	chk.Equal(int64(2), s.Ticks)
	chk.Equal(int64(2), s.Tocks)
	chk.Zero(s.Population)
}

func TestStateStrings(t *testing.T) {
	chk := require.New(t)
	chk.Equal("idle", overclock.Idle.String())
	chk.Equal("stopping", overclock.Stopping.String())
	chk.Equal("State(9)", overclock.State(9).String())
	chk.Equal("tock", overclock.EventTock.String())
	chk.Equal("reactor", overclock.Reactor.String())

	k, err := overclock.ParseKind("Reactor")
	chk.NoError(err)
	chk.Equal(overclock.Reactor, k)
	k, err = overclock.ParseKind("")
	chk.NoError(err)
	chk.Equal(overclock.Heartbeat, k)
	_, err = overclock.ParseKind("cron")
	chk.ErrorIs(err, overclock.ErrUnknownKind)
}
