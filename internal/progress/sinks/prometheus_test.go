package sinks

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/listing-crawler/internal/progress"
)

func runEvents() []progress.Event {
	ts := time.Unix(1700000000, 0).UTC()
	return []progress.Event{
		{RunID: "run-1", TS: ts, Stage: progress.StageRunStart, Pages: 3},
		{RunID: "run-1", TS: ts.Add(time.Second), Stage: progress.StagePageDone, Page: 3, Records: 50, Attempts: 1, Dur: time.Second},
		{RunID: "run-1", TS: ts.Add(2 * time.Second), Stage: progress.StagePageFailed, Page: 2, Attempts: 4, Dur: 5 * time.Second, Note: "gave up"},
		{RunID: "run-1", TS: ts.Add(3 * time.Second), Stage: progress.StagePageDone, Page: 1, Records: 20, Attempts: 2, Dur: time.Second},
		{RunID: "run-1", TS: ts.Add(4 * time.Second), Stage: progress.StageCheckpoint, Page: 1, Records: 70, Note: "Final update for remaining 70 records"},
		{RunID: "run-1", TS: ts.Add(5 * time.Second), Stage: progress.StageRunDone, Records: 70, Dur: 5 * time.Second},
	}
}

// TestPrometheusSinkRecordsMetrics ensures counters and histograms are incremented from events.
func TestPrometheusSinkRecordsMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	sink, err := NewPrometheusSink(reg)
	require.NoError(t, err)

	require.NoError(t, sink.Consume(context.Background(), runEvents()))

	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsStarted))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.runsCompleted.WithLabelValues("success")))
	require.Equal(t, 0.0, testutil.ToFloat64(sink.runsActive))
	require.Equal(t, 3.0, testutil.ToFloat64(sink.pagesExpected))
	require.Equal(t, 2.0, testutil.ToFloat64(sink.pagesTotal.WithLabelValues("ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(sink.pagesTotal.WithLabelValues("failed")))
	require.InDelta(t, 70.0, testutil.ToFloat64(sink.recordsTotal), 1e-9)
	require.Equal(t, 1.0, testutil.ToFloat64(sink.checkpoints.WithLabelValues("success")))
	require.Equal(t, 1, testutil.CollectAndCount(sink.pageDuration, "listing_page_duration_seconds"))
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	_, err := NewPrometheusSink(reg)
	require.NoError(t, err)
	_, err = NewPrometheusSink(reg)
	require.Error(t, err)
}
