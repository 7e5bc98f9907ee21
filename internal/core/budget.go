package core

import "time"

// DefaultBuildTimeout is the time budget of one build run.
const DefaultBuildTimeout = 5 * time.Hour

// Budget is a deadline shared by every build phase of one run.
type Budget struct {
	deadline time.Time
	now      func() time.Time
}

// NewBudget starts a budget of total from the clock's current time. A nil
// clock uses time.Now.
func NewBudget(total time.Duration, clock func() time.Time) Budget {
	if clock == nil {
		clock = time.Now
	}
	return Budget{deadline: clock().Add(total), now: clock}
}

// Remaining is the time left, never negative.
func (b Budget) Remaining() time.Duration {
	now := b.now
	if now == nil {
		now = time.Now
	}
	left := b.deadline.Sub(now())
	if left < 0 {
		return 0
	}
	return left
}

func (b Budget) Expired() bool {
	return b.Remaining() == 0
}

func (b Budget) Deadline() time.Time {
	return b.deadline
}
