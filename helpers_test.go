// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package overclock_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/petenewcomb/overclock-go"
	"github.com/petenewcomb/overclock-go/clock"
	"go.uber.org/zap/zaptest"
)

const waitFor = 5 * time.Second
const pollEvery = time.Millisecond

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// recorder collects every event a task emits.
type recorder[R any] struct {
	mu     sync.Mutex
	events []overclock.Event[R]
}

func record[R any](t *overclock.Task[R]) *recorder[R] {
	r := &recorder[R]{}
	t.Subscribe(func(e overclock.Event[R]) {
		r.mu.Lock()
		r.events = append(r.events, e)
		r.mu.Unlock()
	})
	return r
}

func (r *recorder[R]) all() []overclock.Event[R] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]overclock.Event[R](nil), r.events...)
}

func (r *recorder[R]) kinds() []overclock.EventKind {
	var kinds []overclock.EventKind
	for _, e := range r.all() {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func (r *recorder[R]) of(kind overclock.EventKind) []overclock.Event[R] {
	var out []overclock.Event[R]
	for _, e := range r.all() {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (r *recorder[R]) count(kind overclock.EventKind) int {
	return len(r.of(kind))
}

// gate is an executable whose executions block until released, one per
// token.
type gate struct {
	tokens chan struct{}
}

func newGate() *gate {
	return &gate{tokens: make(chan struct{}, 1024)}
}

func (g *gate) release(n int) {
	for range n {
		g.tokens <- struct{}{}
	}
}

func (g *gate) run(ctx context.Context) (int, error) {
	select {
	case <-g.tokens:
		return 1, nil
	case <-ctx.Done():
		return 0, context.Cause(ctx)
	}
}

func instant(context.Context) (int, error) {
	return 1, nil
}

// testOptions returns options giving a task a manual clock and a test
// logger.
func testOptions(t *testing.T, opts ...overclock.Option) (*clock.Manual, []overclock.Option) {
	m := clock.NewManual(epoch)
	return m, append([]overclock.Option{
		overclock.WithClock(m),
		overclock.WithLogger(zaptest.NewLogger(t)),
	}, opts...)
}

func await[R any](t *testing.T, task *overclock.Task[R], states ...overclock.State) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()
	if _, err := task.Await(ctx, states...); err != nil {
		t.Fatalf("task %s never reached %v, still %v", task.Name(), states, task.State())
	}
}
