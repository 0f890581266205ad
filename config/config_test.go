// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/petenewcomb/overclock-go"
	"github.com/petenewcomb/overclock-go/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"pgregory.net/rapid"
)

const sample = `
[defaults]
concurrency_limit = 2
run_timeout = "30s"
env = ["LANG=C"]

[[task]]
name = "sync"
command = ["rsync", "-a", "src/", "dst/"]
heartbeat_interval = "5m"
grace_timeout = "never"

[[task]]
name = "poll"
type = "Reactor"
command = ["curl", "-fsS", "http://localhost/health"]
concurrency_limit = 1
reactor_timeout = "0s"
branching_limit = 3
generation_limit = 10
env = ["DEBUG=1"]
`

func TestParse(t *testing.T) {
	chk := require.New(t)
	f, err := config.Parse([]byte(sample))
	chk.NoError(err)
	chk.Len(f.Tasks, 2)

	sync, ok := f.Task("sync")
	chk.True(ok)
	kind, err := sync.Kind()
	chk.NoError(err)
	chk.Equal(overclock.Heartbeat, kind)
	chk.Equal([]string{"rsync", "-a", "src/", "dst/"}, sync.Command)
	chk.Equal(2, *sync.ConcurrencyLimit)
	chk.Equal(config.Duration(30*time.Second), *sync.RunTimeout)
	chk.Equal(config.Unlimited, *sync.GraceTimeout)
	chk.Nil(sync.GenerationLimit)

	poll, ok := f.Task("poll")
	chk.True(ok)
	kind, err = poll.Kind()
	chk.NoError(err)
	chk.Equal(overclock.Reactor, kind)
	chk.Equal(1, *poll.ConcurrencyLimit)
	chk.Equal([]string{"LANG=C", "DEBUG=1"}, poll.Env)

	_, ok = f.Task("missing")
	chk.False(ok)
}

func TestOptionsConfigureTask(t *testing.T) {
	chk := require.New(t)
	f, err := config.Parse([]byte(sample))
	chk.NoError(err)
	poll, _ := f.Task("poll")

	task, err := overclock.New(overclock.Reactor, poll.Name,
		overclock.Sync(func() (int, error) { return 0, nil }), poll.Options()...)
	chk.NoError(err)
	chk.Equal(1, task.ConcurrencyLimit())
	chk.Equal(10, task.GenerationLimit())
	chk.Equal(3, task.ReactorBranchingLimit())
	chk.Equal(time.Duration(0), task.ReactorTimeout())
	chk.Equal(30*time.Second, task.RunTimeout())
	chk.Equal(time.Duration(-1), task.GraceTimeout())
	chk.Equal(-1, task.LivenessThreshold())
}

func TestParseReportsEveryProblem(t *testing.T) {
	chk := require.New(t)
	_, err := config.Parse([]byte(`
[[task]]
name = " "
command = ["true"]

[[task]]
name = "a"
type = "cron"
command = ["true"]

[[task]]
name = "b"

[[task]]
name = "c"
command = ["true"]
start_timeout = "-1s"

[[task]]
name = "c"
command = ["true"]
`))
	chk.Error(err)
	chk.Len(multierr.Errors(err), 5)
	chk.ErrorIs(err, config.ErrInvalid)
	chk.ErrorIs(err, overclock.ErrInvalidName)
	chk.ErrorIs(err, overclock.ErrUnknownKind)
	chk.ErrorIs(err, config.ErrMissingCommand)
	chk.ErrorIs(err, config.ErrDuplicateTask)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	chk := require.New(t)
	_, err := config.Parse([]byte(`
[[task]]
name = "a"
command = ["true"]
concurrency = 3
`))
	chk.ErrorIs(err, config.ErrUndecodedKey)
	chk.ErrorContains(err, "task.concurrency")

	_, err = config.Parse([]byte(`[[task]]
name = "a"
command = ["true"]
run_timeout = "soon"
`))
	chk.Error(err)

	_, err = config.Parse([]byte(`[defaults]
name = "a"
`))
	chk.ErrorIs(err, config.ErrDefaultsHasName)
}

func TestLoad(t *testing.T) {
	chk := require.New(t)
	path := filepath.Join(t.TempDir(), "tasks.toml")
	chk.NoError(os.WriteFile(path, []byte(sample), 0o600))

	f, err := config.Load(path)
	chk.NoError(err)
	chk.Len(f.Tasks, 2)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.toml"))
	chk.ErrorIs(err, os.ErrNotExist)

	chk.NoError(os.WriteFile(path, []byte("[[task]]\nname = 1\n"), 0o600))
	_, err = config.Load(path)
	chk.ErrorContains(err, path)
}

func TestEncodeRoundTrip(t *testing.T) {
	chk := require.New(t)
	f, err := config.Parse([]byte(sample))
	chk.NoError(err)

	var buf bytes.Buffer
	chk.NoError(f.Encode(&buf))
	again, err := config.Parse(buf.Bytes())
	chk.NoError(err, buf.String())
	chk.Equal(f.Tasks, again.Tasks)
}

func TestDuration(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		d := config.Duration(rapid.Int64Range(-1, int64(100*time.Hour)).Draw(t, "d"))
		text, err := d.MarshalText()
		require.NoError(t, err)
		var back config.Duration
		require.NoError(t, back.UnmarshalText(text))
		require.Equal(t, d, back)
	})

	var d config.Duration
	require.NoError(t, d.UnmarshalText([]byte(" None ")))
	require.Equal(t, config.Unlimited, d)
	require.ErrorIs(t, d.UnmarshalText([]byte("1 fortnight")), config.ErrInvalid)
	require.Equal(t, "1m30s", config.Duration(90*time.Second).String())
}
