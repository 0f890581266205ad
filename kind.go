// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package overclock

import (
	"fmt"
	"strings"
)

// Kind selects the strategy that decides when a task spawns.
type Kind int

const (
	// Heartbeat tasks spawn once on start and then on a fixed interval.
	Heartbeat Kind = iota
	// Reactor tasks spawn once on start and then again a fixed delay after
	// each execution completes.
	Reactor
)

func (k Kind) String() string {
	switch k {
	case Heartbeat:
		return "heartbeat"
	case Reactor:
		return "reactor"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ParseKind returns the Kind named by s, ignoring case. An empty string
// selects [Heartbeat].
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "heartbeat":
		return Heartbeat, nil
	case "reactor":
		return Reactor, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

// MarshalText implements [encoding.TextMarshaler].
func (k Kind) MarshalText() ([]byte, error) {
	if k != Heartbeat && k != Reactor {
		return nil, fmt.Errorf("%w: %v", ErrUnknownKind, k)
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (k *Kind) UnmarshalText(text []byte) error {
	v, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = v
	return nil
}

// State is a task's position in its lifecycle. Tasks begin Idle and may be
// restarted once Stopped.
type State int32

const (
	Idle State = iota
	Starting
	Started
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Started:
		return "started"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}
