package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JakeFAU/listing-crawler/internal/progress"
)

// PrometheusSink exports crawl progress as Prometheus collectors.
type PrometheusSink struct {
	runsStarted   prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runsActive    prometheus.Gauge
	runDuration   *prometheus.HistogramVec

	pagesTotal    *prometheus.CounterVec
	pageDuration  prometheus.Histogram
	pageAttempts  prometheus.Histogram
	recordsTotal  prometheus.Counter
	checkpoints   *prometheus.CounterVec
	pagesExpected prometheus.Gauge
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		runsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "listing_runs_started_total",
			Help: "Total crawl runs started.",
		}),
		runsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "listing_runs_completed_total",
			Help: "Total crawl runs finished, partitioned by result.",
		}, []string{"result"}),
		runsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "listing_runs_active",
			Help: "Crawl runs currently in progress.",
		}),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "listing_run_duration_seconds",
			Help:    "Wall time per finished run.",
			Buckets: []float64{10, 60, 300, 900, 1800, 3600, 7200},
		}, []string{"result"}),
		pagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "listing_pages_total",
			Help: "Listing pages consumed, partitioned by result.",
		}, []string{"result"}),
		pageDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "listing_page_duration_seconds",
			Help:    "Fetch plus extract latency per page, including retries and resolutions.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		pageAttempts: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "listing_page_attempts",
			Help:    "Fetch attempts needed per page.",
			Buckets: []float64{1, 2, 3, 4, 5},
		}),
		recordsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "listing_records_persisted_total",
			Help: "Records appended to the store.",
		}),
		checkpoints: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "listing_checkpoints_total",
			Help: "Checkpoint publishes, partitioned by result.",
		}, []string{"result"}),
		pagesExpected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "listing_run_pages",
			Help: "Pages in the most recently started run.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.runsStarted,
		s.runsCompleted,
		s.runsActive,
		s.runDuration,
		s.pagesTotal,
		s.pageDuration,
		s.pageAttempts,
		s.recordsTotal,
		s.checkpoints,
		s.pagesExpected,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register progress collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the collectors from the batch.
func (s *PrometheusSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.runsStarted.Inc()
		s.runsActive.Inc()
		s.pagesExpected.Set(float64(evt.Pages))
	case progress.StagePageDone:
		s.pagesTotal.WithLabelValues("ok").Inc()
		s.recordsTotal.Add(float64(evt.Records))
		s.observePage(evt)
	case progress.StagePageFailed:
		s.pagesTotal.WithLabelValues("failed").Inc()
		s.observePage(evt)
	case progress.StageCheckpoint:
		s.checkpoints.WithLabelValues(result(evt.Failed)).Inc()
	case progress.StageRunDone:
		label := "success"
		if evt.Failed {
			label = "interrupted"
		}
		s.runsCompleted.WithLabelValues(label).Inc()
		s.runsActive.Dec()
		if evt.Dur > 0 {
			s.runDuration.WithLabelValues(label).Observe(evt.Dur.Seconds())
		}
	}
}

func (s *PrometheusSink) observePage(evt progress.Event) {
	if evt.Dur > 0 {
		s.pageDuration.Observe(evt.Dur.Seconds())
	}
	if evt.Attempts > 0 {
		s.pageAttempts.Observe(float64(evt.Attempts))
	}
}

func result(failed bool) string {
	if failed {
		return "failure"
	}
	return "success"
}

// Close implements the Sink interface; it performs no action.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
