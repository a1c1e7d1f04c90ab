package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/listing-crawler/internal/progress"
	"github.com/JakeFAU/listing-crawler/internal/progress/sinks"
)

func serve(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(sinks.NewStatusSink(), nil), "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReadyzFollowsRunState(t *testing.T) {
	t.Parallel()

	status := sinks.NewStatusSink()
	s := NewServer(status, nil)
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, s, "/readyz").Code)

	require.NoError(t, status.Consume(context.Background(), []progress.Event{
		{RunID: "run-1", TS: time.Now(), Stage: progress.StageRunStart, Pages: 5},
	}))
	assert.Equal(t, http.StatusOK, serve(t, s, "/readyz").Code)
}

func TestStatusReturnsSnapshot(t *testing.T) {
	t.Parallel()

	status := sinks.NewStatusSink()
	ts := time.Unix(1700000000, 0).UTC()
	require.NoError(t, status.Consume(context.Background(), []progress.Event{
		{RunID: "run-1", TS: ts, Stage: progress.StageRunStart, Pages: 5},
		{RunID: "run-1", TS: ts, Stage: progress.StagePageDone, Page: 5, Records: 50},
	}))

	rec := serve(t, NewServer(status, nil), "/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var snap sinks.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "run-1", snap.RunID)
	assert.Equal(t, sinks.StateRunning, snap.State)
	assert.Equal(t, 50, snap.Records)
	assert.Equal(t, 5, snap.LastPage)
}

func TestStatusWithoutProvider(t *testing.T) {
	t.Parallel()

	s := NewServer(nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, s, "/v1/status").Code)
	assert.Equal(t, http.StatusServiceUnavailable, serve(t, s, "/readyz").Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(nil, nil), "/metrics")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(sinks.NewStatusSink(), nil).ListenAndServe(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
