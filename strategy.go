// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package overclock

import (
	"time"

	"github.com/petenewcomb/overclock-go/clock"
)

// A strategy decides when a task spawns. Its hooks are called on the task's
// loop, so strategy state needs no locking.
type strategy interface {
	// onStart is called once the task has become started.
	onStart()
	// onTock is called after each execution settles.
	onTock()
	// onDrainStart is called when a stop begins draining; no spawn may be
	// scheduled afterwards.
	onDrainStart()
}

// host is the part of a task a strategy drives.
type host interface {
	spawn()
	spawnDelayed(cause error)
	running() bool
	schedule(d time.Duration, fn func()) *pendingCall
	repeat(d time.Duration, fn func()) clock.Timer
}

// minHeartbeatInterval stands in for a zero heartbeat interval.
const minHeartbeatInterval = time.Millisecond

type heartbeat struct {
	host     host
	interval time.Duration
	ticker   clock.Timer
	beat     uint64
}

func newHeartbeat(h host, interval time.Duration) *heartbeat {
	if interval <= 0 {
		interval = minHeartbeatInterval
	}
	return &heartbeat{host: h, interval: interval}
}

func (s *heartbeat) onStart() {
	s.beat++
	beat := s.beat
	s.ticker = s.host.repeat(s.interval, func() {
		// A beat queued before the last drain belongs to a previous run.
		if s.beat == beat {
			s.host.spawn()
		}
	})
	s.host.spawn()
}

func (s *heartbeat) onTock() {}

func (s *heartbeat) onDrainStart() {
	s.beat++
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
}

type reactor struct {
	host      host
	timeout   time.Duration
	branching int
	pending   map[*pendingCall]struct{}
}

func newReactor(h host, timeout time.Duration, branching int) *reactor {
	return &reactor{
		host:      h,
		timeout:   timeout,
		branching: branching,
		pending:   make(map[*pendingCall]struct{}),
	}
}

func (s *reactor) onStart() {
	s.host.spawn()
}

func (s *reactor) onTock() {
	if !s.host.running() {
		return
	}
	if s.branching > 0 && len(s.pending) >= s.branching {
		s.host.spawnDelayed(ErrBranchingLimitReached)
		return
	}
	var p *pendingCall
	p = s.host.schedule(s.timeout, func() {
		delete(s.pending, p)
		s.host.spawn()
	})
	s.pending[p] = struct{}{}
}

func (s *reactor) onDrainStart() {
	for p := range s.pending {
		p.cancel()
	}
	clear(s.pending)
}
