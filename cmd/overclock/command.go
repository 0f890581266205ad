// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"slices"
	"time"

	"github.com/petenewcomb/overclock-go"
	"github.com/petenewcomb/overclock-go/config"
)

const (
	// maxOutput caps the combined output kept per execution.
	maxOutput = 64 << 10
	// killDelay is how long a canceled command may take to exit after its
	// context is done before its pipes are closed.
	killDelay = 5 * time.Second
)

// commandExecutable runs the task's command once per execution. The result is
// the command's combined stdout and stderr. Canceling the context, for
// example through the task's run timeout, kills the process.
func commandExecutable(tc config.TaskConfig) overclock.Executable[[]byte] {
	argv := slices.Clone(tc.Command)
	env := slices.Clone(tc.Env)
	dir := tc.Dir
	return func(ctx context.Context) ([]byte, error) {
		cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
		cmd.Dir = dir
		if len(env) > 0 {
			cmd.Env = append(os.Environ(), env...)
		}
		cmd.WaitDelay = killDelay
		out := &cappedBuffer{limit: maxOutput}
		cmd.Stdout = out
		cmd.Stderr = out

		err := cmd.Run()
		if err != nil {
			if ctx.Err() != nil {
				err = fmt.Errorf("%w: %w", context.Cause(ctx), err)
			}
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) {
				return out.Bytes(), fmt.Errorf("%s exited with status %d: %w", argv[0], exitErr.ExitCode(), err)
			}
			return out.Bytes(), fmt.Errorf("%s: %w", argv[0], err)
		}
		return out.Bytes(), nil
	}
}

// cappedBuffer keeps the first limit bytes written to it and silently drops
// the rest, so a chatty command never fails on a short write.
type cappedBuffer struct {
	bytes.Buffer
	limit int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if room := b.limit - b.Len(); room < len(p) {
		if room > 0 {
			b.Buffer.Write(p[:room])
		}
		return len(p), nil
	}
	return b.Buffer.Write(p)
}
