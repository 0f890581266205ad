// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package overclock

type constError string

func (e constError) Error() string {
	return string(e)
}

// Every error returned by [New] wraps ErrInvalidConfig, plus one of the more
// specific errors below where one applies.
const (
	ErrInvalidConfig = constError("invalid task configuration")
	ErrInvalidName   = constError("task name must not be empty")
	ErrNilExecutable = constError("task executable must not be nil")
	ErrUnknownKind   = constError("unknown task kind")
)

// Lifecycle errors are returned by [Task.Start] when the task is not idle or
// stopped.
const (
	ErrAlreadyStarting = constError("task is already starting")
	ErrAlreadyStarted  = constError("task is already started")
	ErrStopping        = constError("task is stopping")
)

// Registry errors are returned by [Manager] operations.
const (
	ErrDuplicateName = constError("a task with this name is already registered")
	ErrUnknownTask   = constError("no task registered under this name")
)

// Spawn outcomes are reported in the Err field of [EventSpawned] events. Each
// one also matches either ErrInhibited, meaning the task will never spawn
// again and is being stopped, or ErrDelayed, meaning nothing could be spawned
// right now.
const (
	ErrInhibited = constError("spawn inhibited")
	ErrDelayed   = constError("spawn delayed")

	ErrGenerationLimitZero    = constError("generation limit is zero")
	ErrConcurrencyLimitZero   = constError("concurrency limit is zero")
	ErrLivenessThresholdZero  = constError("liveness threshold is zero")
	ErrTotalCapacityZero      = constError("initial and factory capacities are both zero")
	ErrFactoryCapacityZero    = constError("factory capacity is zero")
	ErrGenerationLimitReached = constError("generation limit reached")
	ErrBranchingLimitZero     = constError("reactor branching limit is zero")

	ErrConcurrencyLimitReached  = constError("concurrency limit reached")
	ErrLivenessThresholdReached = constError("liveness threshold reached")
	ErrBranchingLimitReached    = constError("reactor branching limit reached")
)

// Execution errors are carried by [Execution.Err] in [EventTock] events.
const (
	ErrRunTimeout      = constError("execution run timeout")
	ErrExecutablePanic = constError("executable panicked")
)

// ErrGraceTimeout is reported by a stop [Outcome] when executions are still in
// flight once the grace timeout elapses. The task keeps draining and still
// reaches [Stopped] when they finish.
const ErrGraceTimeout = constError("stop grace timeout")

// spawnError pairs a specific guard error with its class, ErrInhibited or
// ErrDelayed, so that errors.Is matches both.
type spawnError struct {
	class error
	cause error
}

func inhibited(cause error) error {
	return &spawnError{class: ErrInhibited, cause: cause}
}

func delayed(cause error) error {
	return &spawnError{class: ErrDelayed, cause: cause}
}

func (e *spawnError) Error() string {
	return e.class.Error() + ": " + e.cause.Error()
}

func (e *spawnError) Unwrap() []error {
	return []error{e.cause, e.class}
}
