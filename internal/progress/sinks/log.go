package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/listing-crawler/internal/progress"
)

// LogSink reports crawl progress as log lines, one per page plus a running
// percentage, in place of an interactive progress bar.
type LogSink struct {
	logger *zap.Logger
	total  int
	done   int
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs each event. The hub calls it from a single goroutine.
func (s *LogSink) Consume(_ context.Context, batch []progress.Event) error {
	for _, evt := range batch {
		s.consume(evt)
	}
	return nil
}

func (s *LogSink) consume(evt progress.Event) {
	switch evt.Stage {
	case progress.StageRunStart:
		s.total, s.done = evt.Pages, 0
		s.logger.Info("crawling pages", zap.String("run_id", evt.RunID), zap.Int("pages", evt.Pages), zap.String("range", evt.Note))
	case progress.StagePageDone, progress.StagePageFailed:
		s.done++
		s.logger.Info("crawl progress",
			zap.Int("page", evt.Page),
			zap.Int("done", s.done),
			zap.Int("total", s.total),
			zap.Float64("percent", percent(s.done, s.total)),
			zap.Int("records", evt.Records),
			zap.Bool("failed", evt.Stage == progress.StagePageFailed),
		)
	case progress.StageCheckpoint:
		if evt.Failed {
			s.logger.Warn("checkpoint failed", zap.Int("records", evt.Records), zap.String("error", evt.Note))
			return
		}
		s.logger.Info("checkpoint", zap.Int("records", evt.Records), zap.Int("last_page", evt.Page))
	case progress.StageRunDone:
		s.logger.Info("run summary",
			zap.String("run_id", evt.RunID),
			zap.Int("records", evt.Records),
			zap.Duration("elapsed", evt.Dur),
			zap.Bool("interrupted", evt.Failed),
		)
	}
}

// Close implements the Sink interface; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}

func percent(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(done*1000/total) / 10
}
