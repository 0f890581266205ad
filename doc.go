// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package overclock runs units of work (executables) over and over inside a
// single process, in bounded generations of concurrent executions, with
// well-defined start and stop semantics. It is meant for periodic jobs, worker
// pools and polling loops.
//
// A [Task] decides when to spawn a new generation according to its [Kind]. A
// [Heartbeat] task spawns on a fixed interval; a [Reactor] task spawns again a
// fixed delay after each execution completes. How many executions a
// generation launches is governed by a handful of integer limits that share
// one convention: zero inhibits spawning, negative means unlimited, and a
// positive value is a cap. An inhibited spawn stops the task; a delayed one
// simply launches nothing this time around.
//
// Stopping never cancels executions. A stop waits for in-flight executions to
// settle, and the grace timeout only bounds how long the caller waits for
// that; the task still reaches [Stopped] in the background. The run timeout
// similarly only bounds how long an execution is counted as running: its
// context is canceled and it settles with [ErrRunTimeout], but the goroutine
// running it is left to finish on its own.
//
// Lifecycle changes, spawn decisions and executions are reported as [Event]
// values to listeners registered with [Task.Subscribe]. A [Manager] holds
// many named tasks, relays their events and starts or stops them together.
package overclock
