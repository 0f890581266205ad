// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package overclock

import (
	"fmt"
	"time"

	"github.com/petenewcomb/overclock-go/clock"
	"go.uber.org/zap"
)

// Default limits and timeouts applied to options that are not set.
const (
	DefaultConcurrencyLimit  = 1
	DefaultHeartbeatInterval = time.Second
	DefaultReactorTimeout    = time.Second
)

// An Option configures a task at construction. Integer limits share one
// convention: zero inhibits spawning entirely, a negative value means
// unlimited, and a positive value is a cap.
type Option func(*settings)

type settings struct {
	concurrencyLimit  int
	livenessThreshold int
	initialCapacity   int
	initialSet        bool
	factoryCapacity   int
	generationLimit   int
	branchingLimit    int

	startTimeout      time.Duration
	runTimeout        time.Duration
	stopTimeout       time.Duration
	graceTimeout      time.Duration
	heartbeatInterval time.Duration
	reactorTimeout    time.Duration

	clock  clock.Clock
	logger *zap.Logger
}

func defaultSettings() settings {
	return settings{
		concurrencyLimit:  DefaultConcurrencyLimit,
		livenessThreshold: -1,
		initialCapacity:   -1,
		factoryCapacity:   -1,
		generationLimit:   -1,
		branchingLimit:    -1,
		runTimeout:        -1,
		graceTimeout:      -1,
		heartbeatInterval: DefaultHeartbeatInterval,
		reactorTimeout:    DefaultReactorTimeout,
		clock:             clock.Real(),
	}
}

func (s *settings) apply(opts []Option) error {
	for _, opt := range opts {
		opt(s)
	}
	if !s.initialSet {
		s.initialCapacity = s.factoryCapacity
	}
	switch {
	case s.startTimeout < 0:
		return fmt.Errorf("%w: negative start timeout %v", ErrInvalidConfig, s.startTimeout)
	case s.stopTimeout < 0:
		return fmt.Errorf("%w: negative stop timeout %v", ErrInvalidConfig, s.stopTimeout)
	case s.heartbeatInterval < 0:
		return fmt.Errorf("%w: negative heartbeat interval %v", ErrInvalidConfig, s.heartbeatInterval)
	case s.reactorTimeout < 0:
		return fmt.Errorf("%w: negative reactor timeout %v", ErrInvalidConfig, s.reactorTimeout)
	case s.clock == nil:
		return fmt.Errorf("%w: nil clock", ErrInvalidConfig)
	}
	if s.logger == nil {
		s.logger = zap.L().Named("overclock")
	}
	return nil
}

// WithConcurrencyLimit caps the number of executions in flight at once. The
// default is 1.
func WithConcurrencyLimit(n int) Option {
	return func(s *settings) { s.concurrencyLimit = n }
}

// WithLivenessThreshold sets a soft cap: while the population is at or above
// n, spawns are delayed. The default is unlimited.
func WithLivenessThreshold(n int) Option {
	return func(s *settings) { s.livenessThreshold = n }
}

// WithInitialCapacity caps the size of the first generation. It defaults to
// the factory capacity.
func WithInitialCapacity(n int) Option {
	return func(s *settings) {
		s.initialCapacity = n
		s.initialSet = true
	}
}

// WithFactoryCapacity caps the size of every generation after the first. A
// negative value, the default, defers to the concurrency limit.
func WithFactoryCapacity(n int) Option {
	return func(s *settings) { s.factoryCapacity = n }
}

// WithGenerationLimit caps the number of generations the task will ever
// spawn. The task stops itself once the limit has been reached.
func WithGenerationLimit(n int) Option {
	return func(s *settings) { s.generationLimit = n }
}

// WithStartTimeout delays the transition from [Starting] to [Started].
func WithStartTimeout(d time.Duration) Option {
	return func(s *settings) { s.startTimeout = d }
}

// WithRunTimeout bounds how long each execution is counted as running. Once
// it elapses the execution's context is canceled and the execution settles
// with [ErrRunTimeout]. Negative, the default, means no limit.
func WithRunTimeout(d time.Duration) Option {
	return func(s *settings) { s.runTimeout = d }
}

// WithStopTimeout delays the drain that follows a stop request.
func WithStopTimeout(d time.Duration) Option {
	return func(s *settings) { s.stopTimeout = d }
}

// WithGraceTimeout bounds how long a stop waits for in-flight executions
// before its outcome fails with [ErrGraceTimeout]. Negative, the default,
// waits forever.
func WithGraceTimeout(d time.Duration) Option {
	return func(s *settings) { s.graceTimeout = d }
}

// WithHeartbeatInterval sets the spawn period of [Heartbeat] tasks.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(s *settings) { s.heartbeatInterval = d }
}

// WithReactorTimeout sets how long a [Reactor] task waits after each
// completed execution before spawning again.
func WithReactorTimeout(d time.Duration) Option {
	return func(s *settings) { s.reactorTimeout = d }
}

// WithReactorBranchingLimit caps the number of re-spawns a [Reactor] task
// may have pending at once.
func WithReactorBranchingLimit(n int) Option {
	return func(s *settings) { s.branchingLimit = n }
}

// WithClock replaces the wall clock used for timestamps and timers.
func WithClock(c clock.Clock) Option {
	return func(s *settings) { s.clock = c }
}

// WithLogger sets the logger used by the task. The default is the global zap
// logger named "overclock", as of construction.
func WithLogger(l *zap.Logger) Option {
	return func(s *settings) { s.logger = l }
}
