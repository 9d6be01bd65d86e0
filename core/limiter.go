package core

import (
	"fmt"
	"sync/atomic"
)

// ModelLimiter caps the model calls of one run, tool loops of every stage
// included. A zero max disables the cap.
type ModelLimiter struct {
	max   int64
	calls atomic.Int64
}

// NewModelLimiter returns a limiter allowing max calls.
func NewModelLimiter(max int) *ModelLimiter {
	return &ModelLimiter{max: int64(max)}
}

// Increment records a call. It fails with ErrModelLimitExceeded once the
// count passes max; the failed call is still counted.
func (ml *ModelLimiter) Increment() error {
	n := ml.calls.Add(1)
	if ml.max > 0 && n > ml.max {
		return fmt.Errorf("%w: call %d of %d", ErrModelLimitExceeded, n, ml.max)
	}

	return nil
}

// Count returns the calls recorded so far.
func (ml *ModelLimiter) Count() int { return int(ml.calls.Load()) }

// Remaining returns the calls left before the cap, or -1 when unlimited.
func (ml *ModelLimiter) Remaining() int {
	if ml.max == 0 {
		return -1
	}

	return int(max(ml.max-ml.calls.Load(), 0))
}
