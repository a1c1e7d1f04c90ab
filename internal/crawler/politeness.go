package crawler

import (
	"context"
	"math/rand/v2"
	"time"
)

type timerSleeper struct{}

// NewTimerSleeper returns a Sleeper backed by time.Timer.
func NewTimerSleeper() Sleeper {
	return timerSleeper{}
}

// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case.
func (timerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// uniformDelay picks a duration uniformly in [lo, hi].
func uniformDelay(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int64N(int64(hi-lo)+1))
}
