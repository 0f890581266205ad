// Copyright (c) Peter Newcomb. All rights reserved.
// Licensed under the MIT License.

package overclock

// limits holds the integer limits consulted by plan. Negative means
// unlimited; zero inhibits.
type limits struct {
	concurrency int
	liveness    int
	initial     int
	factory     int
	generations int
	branching   int
}

// plan decides how many executions the next generation should launch given
// the current population and the number of generations spawned so far. It
// returns a zero count together with an error matching [ErrInhibited] or
// [ErrDelayed] when nothing can be launched.
func plan(l limits, population, generations int64) (int, error) {
	switch {
	case l.generations == 0:
		return 0, inhibited(ErrGenerationLimitZero)
	case l.concurrency == 0:
		return 0, inhibited(ErrConcurrencyLimitZero)
	case l.liveness == 0:
		return 0, inhibited(ErrLivenessThresholdZero)
	case l.initial == 0 && l.factory == 0:
		return 0, inhibited(ErrTotalCapacityZero)
	case generations > 0 && l.factory == 0:
		return 0, inhibited(ErrFactoryCapacityZero)
	case l.generations > 0 && generations >= int64(l.generations):
		return 0, inhibited(ErrGenerationLimitReached)
	case l.branching == 0:
		return 0, inhibited(ErrBranchingLimitZero)
	case l.concurrency > 0 && population >= int64(l.concurrency):
		return 0, delayed(ErrConcurrencyLimitReached)
	case l.liveness > 0 && population >= int64(l.liveness):
		return 0, delayed(ErrLivenessThresholdReached)
	}

	// A capacity of zero that got past the guards only applies to the other
	// generation kind, so it bounds nothing here.
	capacity := int64(l.factory)
	if generations == 0 {
		capacity = int64(l.initial)
	}
	room := int64(-1)
	if l.concurrency > 0 {
		room = int64(l.concurrency) - population
	}

	switch {
	case capacity <= 0 && room < 0:
		return 1, nil
	case capacity <= 0:
		return int(room), nil
	case room < 0:
		return int(capacity), nil
	default:
		return int(min(room, capacity)), nil
	}
}
