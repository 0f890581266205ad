// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package main

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/petenewcomb/overclock-go"
	"github.com/petenewcomb/overclock-go/config"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// A runner keeps the manager's tasks in line with the latest configuration.
type runner struct {
	log         *zap.Logger
	manager     *overclock.Manager[[]byte]
	stopTimeout time.Duration

	mu      sync.Mutex
	configs map[string]config.TaskConfig
}

func newRunner(log *zap.Logger, m *overclock.Manager[[]byte], stopTimeout time.Duration) *runner {
	return &runner{
		log:         log,
		manager:     m,
		stopTimeout: stopTimeout,
		configs:     make(map[string]config.TaskConfig),
	}
}

// apply stops and removes tasks that are gone or changed, then adds and starts
// tasks that are new or changed. Unchanged tasks keep running untouched.
func (r *runner) apply(f *config.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	for name, old := range r.configs {
		tc, ok := f.Task(name)
		if ok && reflect.DeepEqual(old, tc) {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), r.stopTimeout)
		if stopErr := r.manager.Stop(ctx, name); stopErr != nil {
			err = multierr.Append(err, stopErr)
		}
		cancel()
		r.manager.Delete(name)
		delete(r.configs, name)
		if ok {
			r.log.Info("task changed", zap.String("task", name))
		} else {
			r.log.Info("task removed", zap.String("task", name))
		}
	}

	for _, tc := range f.Tasks {
		if _, ok := r.configs[tc.Name]; ok {
			continue
		}
		kind, kindErr := tc.Kind()
		if kindErr != nil {
			err = multierr.Append(err, kindErr)
			continue
		}
		if _, addErr := r.manager.Add(kind, tc.Name, commandExecutable(tc), tc.Options()...); addErr != nil {
			err = multierr.Append(err, addErr)
			continue
		}
		r.configs[tc.Name] = tc
		if subErr := r.manager.Subscribe(tc.Name); subErr != nil {
			err = multierr.Append(err, subErr)
		}
		if startErr := r.manager.Start(tc.Name); startErr != nil {
			err = multierr.Append(err, startErr)
			continue
		}
		r.log.Info("task started",
			zap.String("task", tc.Name),
			zap.Stringer("kind", kind),
			zap.Strings("command", tc.Command))
	}
	return err
}

// stopAll stops every task and waits for them until ctx is done.
func (r *runner) stopAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.manager.Stop(ctx)
}
