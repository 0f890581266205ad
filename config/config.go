// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

// Package config reads overclock task definitions from TOML.
//
// A file holds an optional [defaults] table and any number of [[task]]
// tables:
//
//	[defaults]
//	concurrency_limit = 2
//	run_timeout = "30s"
//
//	[[task]]
//	name = "sync"
//	type = "heartbeat"
//	command = ["rsync", "-a", "src/", "dst/"]
//	heartbeat_interval = "5m"
//
// Every limit and timeout is optional. Unset values fall back to the
// [defaults] table and then to overclock's own defaults.
package config

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/petenewcomb/overclock-go"
	"go.uber.org/multierr"
)

type constError string

func (e constError) Error() string {
	return string(e)
}

const (
	ErrInvalid         = constError("invalid task configuration")
	ErrMissingCommand  = constError("task has no command")
	ErrUndecodedKey    = constError("unknown configuration key")
	ErrDuplicateTask   = constError("duplicate task name")
	ErrDefaultsHasName = constError("defaults cannot name a task or command")
)

// File is the decoded form of a configuration file.
type File struct {
	Defaults TaskConfig   `toml:"defaults"`
	Tasks    []TaskConfig `toml:"task"`
}

// TaskConfig describes one task. Pointer fields are nil when unset.
type TaskConfig struct {
	Name    string   `toml:"name,omitempty"`
	Type    string   `toml:"type,omitempty"`
	Command []string `toml:"command,omitempty"`
	Dir     string   `toml:"dir,omitempty"`
	Env     []string `toml:"env,omitempty"`

	ConcurrencyLimit      *int `toml:"concurrency_limit"`
	LivenessThreshold     *int `toml:"liveness_threshold"`
	InitialCapacity       *int `toml:"initial_capacity"`
	FactoryCapacity       *int `toml:"factory_capacity"`
	GenerationLimit       *int `toml:"generation_limit"`
	ReactorBranchingLimit *int `toml:"branching_limit"`

	StartTimeout      *Duration `toml:"start_timeout"`
	RunTimeout        *Duration `toml:"run_timeout"`
	StopTimeout       *Duration `toml:"stop_timeout"`
	GraceTimeout      *Duration `toml:"grace_timeout"`
	HeartbeatInterval *Duration `toml:"heartbeat_interval"`
	ReactorTimeout    *Duration `toml:"reactor_timeout"`
}

// Load reads and validates the file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a configuration. Keys it does not recognize are
// errors. The tasks of the returned File already have the defaults merged in.
func Parse(data []byte) (*File, error) {
	var f File
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode TOML: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("%w: %s", ErrUndecodedKey, strings.Join(keys, ", "))
	}
	for i := range f.Tasks {
		f.Tasks[i] = f.Tasks[i].Merge(f.Defaults)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks every task and reports all problems at once.
func (f *File) Validate() error {
	var err error
	if f.Defaults.Name != "" || len(f.Defaults.Command) > 0 {
		err = multierr.Append(err, ErrDefaultsHasName)
	}
	seen := make(map[string]int, len(f.Tasks))
	for i, tc := range f.Tasks {
		name := strings.TrimSpace(tc.Name)
		if j, ok := seen[name]; ok && name != "" {
			err = multierr.Append(err, fmt.Errorf("task %d: %w: %q also defined by task %d", i, ErrDuplicateTask, name, j))
			continue
		}
		seen[name] = i
		if taskErr := tc.Validate(); taskErr != nil {
			err = multierr.Append(err, fmt.Errorf("task %d: %w", i, taskErr))
		}
	}
	return err
}

// Task returns the named task's configuration.
func (f *File) Task(name string) (TaskConfig, bool) {
	i := slices.IndexFunc(f.Tasks, func(tc TaskConfig) bool { return tc.Name == name })
	if i < 0 {
		return TaskConfig{}, false
	}
	return f.Tasks[i], true
}

// Kind returns the task's strategy. An empty type means heartbeat.
func (tc TaskConfig) Kind() (overclock.Kind, error) {
	return overclock.ParseKind(tc.Type)
}

// Validate checks the task the same way [overclock.New] would, plus the
// presence of a command.
func (tc TaskConfig) Validate() error {
	var err error
	if len(tc.Command) == 0 || strings.TrimSpace(tc.Command[0]) == "" {
		err = multierr.Append(err, fmt.Errorf("%w: %q", ErrMissingCommand, tc.Name))
	}
	kind, kindErr := tc.Kind()
	if kindErr != nil {
		return multierr.Append(err, fmt.Errorf("%w: %w", ErrInvalid, kindErr))
	}
	probe := overclock.Sync(func() (struct{}, error) { return struct{}{}, nil })
	if _, newErr := overclock.New(kind, tc.Name, probe, tc.Options()...); newErr != nil {
		err = multierr.Append(err, fmt.Errorf("%w: %w", ErrInvalid, newErr))
	}
	return err
}

// Options converts the set fields to overclock options.
func (tc TaskConfig) Options() []overclock.Option {
	var opts []overclock.Option
	addInt := func(p *int, with func(int) overclock.Option) {
		if p != nil {
			opts = append(opts, with(*p))
		}
	}
	addDuration := func(p *Duration, with func(time.Duration) overclock.Option) {
		if p != nil {
			opts = append(opts, with(time.Duration(*p)))
		}
	}
	addInt(tc.ConcurrencyLimit, overclock.WithConcurrencyLimit)
	addInt(tc.LivenessThreshold, overclock.WithLivenessThreshold)
	addInt(tc.InitialCapacity, overclock.WithInitialCapacity)
	addInt(tc.FactoryCapacity, overclock.WithFactoryCapacity)
	addInt(tc.GenerationLimit, overclock.WithGenerationLimit)
	addInt(tc.ReactorBranchingLimit, overclock.WithReactorBranchingLimit)
	addDuration(tc.StartTimeout, overclock.WithStartTimeout)
	addDuration(tc.RunTimeout, overclock.WithRunTimeout)
	addDuration(tc.StopTimeout, overclock.WithStopTimeout)
	addDuration(tc.GraceTimeout, overclock.WithGraceTimeout)
	addDuration(tc.HeartbeatInterval, overclock.WithHeartbeatInterval)
	addDuration(tc.ReactorTimeout, overclock.WithReactorTimeout)
	return opts
}

// Merge returns tc with its unset fields taken from defaults.
func (tc TaskConfig) Merge(defaults TaskConfig) TaskConfig {
	if tc.Type == "" {
		tc.Type = defaults.Type
	}
	if tc.Dir == "" {
		tc.Dir = defaults.Dir
	}
	if len(defaults.Env) > 0 {
		tc.Env = append(slices.Clip(defaults.Env), tc.Env...)
	}
	mergeInt(&tc.ConcurrencyLimit, defaults.ConcurrencyLimit)
	mergeInt(&tc.LivenessThreshold, defaults.LivenessThreshold)
	mergeInt(&tc.InitialCapacity, defaults.InitialCapacity)
	mergeInt(&tc.FactoryCapacity, defaults.FactoryCapacity)
	mergeInt(&tc.GenerationLimit, defaults.GenerationLimit)
	mergeInt(&tc.ReactorBranchingLimit, defaults.ReactorBranchingLimit)
	mergeDuration(&tc.StartTimeout, defaults.StartTimeout)
	mergeDuration(&tc.RunTimeout, defaults.RunTimeout)
	mergeDuration(&tc.StopTimeout, defaults.StopTimeout)
	mergeDuration(&tc.GraceTimeout, defaults.GraceTimeout)
	mergeDuration(&tc.HeartbeatInterval, defaults.HeartbeatInterval)
	mergeDuration(&tc.ReactorTimeout, defaults.ReactorTimeout)
	return tc
}

func mergeInt(dst **int, src *int) {
	if *dst == nil && src != nil {
		v := *src
		*dst = &v
	}
}

func mergeDuration(dst **Duration, src *Duration) {
	if *dst == nil && src != nil {
		v := *src
		*dst = &v
	}
}

// Encode writes the tasks of f as TOML. Tasks already carry the merged
// defaults, so no defaults table is written.
func (f *File) Encode(w io.Writer) error {
	return toml.NewEncoder(w).Encode(struct {
		Tasks []TaskConfig `toml:"task"`
	}{f.Tasks})
}
