// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package config

import (
	"fmt"
	"strings"
	"time"
)

// Duration is a [time.Duration] read from a TOML string such as "250ms" or
// "1m30s". The words "unlimited", "never" and "none" stand for a negative
// duration, which overclock treats as no limit.
type Duration time.Duration

// Unlimited is the Duration written as "unlimited".
const Unlimited = Duration(-1)

func (d *Duration) UnmarshalText(text []byte) error {
	s := strings.TrimSpace(string(text))
	switch strings.ToLower(s) {
	case "unlimited", "never", "none":
		*d = Unlimited
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%w: %q is not a duration", ErrInvalid, s)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	if d < 0 {
		return []byte("unlimited"), nil
	}
	return []byte(time.Duration(d).String()), nil
}

func (d Duration) String() string {
	b, _ := d.MarshalText()
	return string(b)
}
