package crawler

import (
	"math"
	"time"
)

// RetryPolicy decides whether a failed attempt is retried and how long to wait.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// ExponentialRetryPolicy retries transport failures with a base*2^attempt schedule.
type ExponentialRetryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// Default retry knobs.
const (
	DefaultMaxRetries     = 3
	DefaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMaxDelay  = time.Minute
)

// NewExponentialRetryPolicy builds a policy allowing maxRetries re-attempts
// after the first one. Non-positive inputs fall back to the defaults.
func NewExponentialRetryPolicy(maxRetries int, baseDelay time.Duration) *ExponentialRetryPolicy {
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	if baseDelay <= 0 {
		baseDelay = DefaultRetryBaseDelay
	}
	return &ExponentialRetryPolicy{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   defaultRetryMaxDelay,
	}
}

// MaxRetries returns the number of re-attempts allowed after the first one.
func (p *ExponentialRetryPolicy) MaxRetries() int {
	return p.maxRetries
}

// ShouldRetry reports whether the attempt (0-based) that produced err may be
// retried. Per-request timeouts count as transport failures; callers check
// their own context before asking.
func (p *ExponentialRetryPolicy) ShouldRetry(err error, attempt int) bool {
	return err != nil && attempt < p.maxRetries
}

// Backoff returns the wait after failed attempt k: base * 2^k, capped.
func (p *ExponentialRetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		return p.maxDelay
	}
	return time.Duration(delay)
}
