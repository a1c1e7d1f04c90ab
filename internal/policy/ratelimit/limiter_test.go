package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/listing-crawler/internal/crawler"
)

func TestLimiterWaitDelaysSecondRequest(t *testing.T) {
	l := New(Config{RequestsPerSecond: 10, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://forum.example.com/forum-1670/"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://forum.example.com/forum-1670/page/2/"))
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestLimiterHostsAreIndependent(t *testing.T) {
	l := New(Config{RequestsPerSecond: 1, Burst: 1})
	ctx := context.Background()

	require.NoError(t, l.Wait(ctx, "https://forum.example.com/1"))

	start := time.Now()
	require.NoError(t, l.Wait(ctx, "https://files.example.com/1"))
	assert.Less(t, time.Since(start), 50*time.Millisecond, "files host blocked by forum host")
}

func TestLimiterDisabled(t *testing.T) {
	l := New(Config{})
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 20; i++ {
		require.NoError(t, l.Wait(ctx, "https://forum.example.com/"))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestLimiterWaitCanceled(t *testing.T) {
	l := New(Config{RequestsPerSecond: 0.1, Burst: 1})
	require.NoError(t, l.Wait(context.Background(), "https://forum.example.com/"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx, "https://forum.example.com/")
	require.Error(t, err)
}

type stubFetcher struct {
	calls int
	err   error
}

func (s *stubFetcher) Fetch(_ context.Context, req crawler.FetchRequest) (crawler.FetchResponse, error) {
	s.calls++
	if s.err != nil {
		return crawler.FetchResponse{}, s.err
	}
	return crawler.FetchResponse{URL: req.URL, StatusCode: 200, Body: []byte("ok")}, nil
}

func TestWrap(t *testing.T) {
	next := &stubFetcher{}
	assert.Same(t, crawler.Fetcher(next), Wrap(next, nil))

	wrapped := Wrap(next, New(Config{RequestsPerSecond: 100, Burst: 5}))
	resp, err := wrapped.Fetch(context.Background(), crawler.FetchRequest{URL: "https://forum.example.com/"})
	require.NoError(t, err)
	assert.Equal(t, "ok", string(resp.Body))
	assert.Equal(t, 1, next.calls)

	next.err = errors.New("reset by peer")
	_, err = wrapped.Fetch(context.Background(), crawler.FetchRequest{URL: "https://forum.example.com/"})
	require.ErrorIs(t, err, next.err)
}
