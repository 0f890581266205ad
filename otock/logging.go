// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package otock

import (
	"context"
	"errors"
	"time"

	"github.com/petenewcomb/overclock-go"
	"go.uber.org/zap"
)

// Logged adds structured logging to an executable.
// The returned executable logs the start and completion of each invocation,
// including its duration and any error it returns, to the global zap logger.
// Invocations made by a task also carry the task and execution identity. A
// run timeout is logged as a warning.
func Logged[R any](
	operationName string,
	exec overclock.Executable[R],
) overclock.Executable[R] {
	return func(ctx context.Context) (R, error) {
		logger := zap.L().With(
			zap.String("operation", operationName),
			zap.String("component", "otock"))
		if info, ok := overclock.ExecutionFromContext(ctx); ok {
			logger = logger.With(
				zap.String("task", info.Task),
				zap.Stringer("kind", info.Kind),
				zap.Stringer("execution", info.ID),
				zap.Int64("generation", info.Generation),
				zap.Int64("seq", info.Seq))
		}

		logger.Debug("Starting execution")

		startTime := time.Now()
		result, err := exec(ctx)
		duration := time.Since(startTime)

		switch {
		case err == nil:
			logger.Debug("Execution completed", zap.Duration("duration", duration))
		case errors.Is(context.Cause(ctx), overclock.ErrRunTimeout):
			logger.Warn("Execution timed out", zap.Duration("duration", duration), zap.Error(err))
		default:
			logger.Error("Execution failed",
				zap.Duration("duration", duration),
				zap.String("outcome", outcome(ctx, err)),
				zap.Error(err))
		}

		return result, err
	}
}

// outcome classifies how an invocation ended.
func outcome(ctx context.Context, err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(context.Cause(ctx), overclock.ErrRunTimeout), errors.Is(err, overclock.ErrRunTimeout):
		return "timeout"
	case errors.Is(err, overclock.ErrExecutablePanic):
		return "panic"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}

// logEvent writes one task event to logger at a level chosen by its kind and
// outcome.
func logEvent[R any](logger *zap.Logger, e overclock.Event[R]) {
	fields := []zap.Field{
		zap.String("task", e.Task.Name()),
		zap.Stringer("kind", e.Task.Kind()),
		zap.Stringer("event", e.Kind),
		zap.Time("at", e.At),
	}
	switch e.Kind {
	case overclock.EventSpawned:
		fields = append(fields, zap.Int("count", e.Count))
		switch {
		case e.Err == nil:
			logger.Debug("Spawned", fields...)
		case errors.Is(e.Err, overclock.ErrInhibited):
			logger.Info("Spawn inhibited", append(fields, zap.Error(e.Err))...)
		default:
			logger.Debug("Spawn delayed", append(fields, zap.Error(e.Err))...)
		}
	case overclock.EventTick:
		logger.Debug("Tick", append(fields,
			zap.Stringer("execution", e.Execution.ID),
			zap.Int64("generation", e.Execution.Generation))...)
	case overclock.EventTock:
		fields = append(fields,
			zap.Stringer("execution", e.Execution.ID),
			zap.Int64("generation", e.Execution.Generation),
			zap.Duration("duration", e.Execution.Duration()))
		if e.Execution.Err != nil {
			logger.Warn("Execution failed", append(fields, zap.Error(e.Execution.Err))...)
		} else {
			logger.Debug("Tock", fields...)
		}
	case overclock.EventStarted, overclock.EventStopped:
		logger.Info("Task "+e.Kind.String(), fields...)
	default:
		logger.Debug("Task "+e.Kind.String(), fields...)
	}
}
