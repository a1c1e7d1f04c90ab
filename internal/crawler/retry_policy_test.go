package crawler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExponentialRetryPolicyBackoff(t *testing.T) {
	t.Parallel()

	base := 500 * time.Millisecond
	p := NewExponentialRetryPolicy(3, base)
	for k := 0; k < 5; k++ {
		require.Equal(t, base*time.Duration(1<<k), p.Backoff(k), "attempt %d", k)
	}
	require.Equal(t, defaultRetryMaxDelay, p.Backoff(30))
}

func TestExponentialRetryPolicyShouldRetry(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(2, time.Millisecond)
	transient := errors.New("connection reset")

	require.False(t, p.ShouldRetry(nil, 0))
	require.True(t, p.ShouldRetry(transient, 0))
	require.True(t, p.ShouldRetry(transient, 1))
	require.False(t, p.ShouldRetry(transient, 2))
	require.True(t, p.ShouldRetry(fmt.Errorf("client timeout: %w", context.DeadlineExceeded), 0))
	require.False(t, p.ShouldRetry(context.DeadlineExceeded, 2))
}

func TestNewExponentialRetryPolicyDefaults(t *testing.T) {
	t.Parallel()

	p := NewExponentialRetryPolicy(-1, 0)
	require.Equal(t, DefaultMaxRetries, p.MaxRetries())
	require.Equal(t, DefaultRetryBaseDelay, p.Backoff(0))
}
