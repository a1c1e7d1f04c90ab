package crawler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-crawler/internal/telemetry"
)

// Reporter observes run progress. Implementations must not block.
type Reporter interface {
	RunStarted(runID string, r CrawlRange)
	PageCompleted(runID string, result PageResult, persisted int)
	RunFinished(runID string, total int, dur time.Duration, err error)
}

// EngineConfig tunes the orchestrator.
type EngineConfig struct {
	Concurrency  int
	MinPageDelay time.Duration
	MaxPageDelay time.Duration
	FlushTimeout time.Duration
}

const (
	defaultConcurrency  = 5
	defaultFlushTimeout = 2 * time.Minute
)

// Engine drives a bounded worker pool across a page range and persists
// results strictly in traversal order.
type Engine struct {
	cfg      EngineConfig
	pages    PageRunner
	sink     RecordSink
	sleeper  Sleeper
	ids      IDGenerator
	reporter Reporter
	logger   *zap.Logger
	delay    func(lo, hi time.Duration) time.Duration
}

// NewEngine wires the orchestrator. ids and reporter are optional.
func NewEngine(
	cfg EngineConfig,
	pages PageRunner,
	sink RecordSink,
	sleeper Sleeper,
	ids IDGenerator,
	reporter Reporter,
	logger *zap.Logger,
) *Engine {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.MaxPageDelay < cfg.MinPageDelay {
		cfg.MaxPageDelay = cfg.MinPageDelay
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = defaultFlushTimeout
	}
	if sleeper == nil {
		sleeper = NewTimerSleeper()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		cfg:      cfg,
		pages:    pages,
		sink:     sink,
		sleeper:  sleeper,
		ids:      ids,
		reporter: reporter,
		logger:   logger,
		delay:    uniformDelay,
	}
}

// Run crawls every page in r and returns the number of records persisted.
// Per-page failures are logged and count as zero records. The returned
// error is non-nil only for an invalid range or when ctx ends early; the
// final checkpoint is attempted in both the normal and interrupted case.
func (e *Engine) Run(ctx context.Context, r CrawlRange) (int, error) {
	pages, err := r.Pages()
	if err != nil {
		return 0, err
	}
	if e.pages == nil || e.sink == nil {
		return 0, errors.New("engine requires a page runner and a record sink")
	}

	runID := e.newRunID()
	ctx, span := telemetry.Tracer().Start(ctx, "crawler.run", trace.WithAttributes(
		attribute.String("run_id", runID),
		attribute.String("range", r.String()),
	))
	defer span.End()
	logger := e.logger.With(zap.String("run_id", runID))
	start := time.Now()
	logger.Info("crawl started",
		zap.Stringer("range", r),
		zap.Int("pages", len(pages)),
		zap.Int("concurrency", e.cfg.Concurrency),
	)
	if ra, ok := e.sink.(RunAware); ok {
		ra.StartRun(runID)
	}
	if e.reporter != nil {
		e.reporter.RunStarted(runID, r)
	}

	workCtx, cancel := context.WithCancel(ctx)
	futures, wait := e.dispatch(workCtx, pages)

	total, runErr := e.consume(ctx, runID, pages, futures, logger)

	cancel()
	wait()

	flushCtx, flushCancel := context.WithTimeout(context.WithoutCancel(ctx), e.cfg.FlushTimeout)
	defer flushCancel()
	if err := e.sink.Flush(flushCtx); err != nil {
		logger.Warn("final checkpoint failed", zap.Error(err))
	}

	dur := time.Since(start)
	span.SetAttributes(attribute.Int("records", total))
	if e.reporter != nil {
		e.reporter.RunFinished(runID, total, dur, runErr)
	}
	if runErr != nil {
		logger.Warn("crawl interrupted", zap.Int("records", total), zap.Duration("elapsed", dur), zap.Error(runErr))
		return total, runErr
	}
	logger.Info("crawl finished", zap.Int("records", total), zap.Duration("elapsed", dur))
	return total, nil
}

// dispatch starts the worker pool. Every page gets a single-slot future up
// front; workers fill them in whatever order they finish.
func (e *Engine) dispatch(ctx context.Context, pages []int) (map[int]chan PageResult, func()) {
	futures := make(map[int]chan PageResult, len(pages))
	for _, p := range pages {
		futures[p] = make(chan PageResult, 1)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for page := range jobs {
				futures[page] <- e.runPage(ctx, page)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, p := range pages {
			select {
			case jobs <- p:
			case <-ctx.Done():
				return
			}
		}
	}()

	return futures, wg.Wait
}

func (e *Engine) runPage(ctx context.Context, page int) (res PageResult) {
	defer func() {
		if rec := recover(); rec != nil {
			res = PageResult{Page: page, Err: fmt.Errorf("page %d panicked: %v", page, rec)}
		}
	}()
	return e.pages.Process(ctx, page)
}

// consume awaits futures in traversal order and owns every store mutation.
func (e *Engine) consume(
	ctx context.Context,
	runID string,
	pages []int,
	futures map[int]chan PageResult,
	logger *zap.Logger,
) (int, error) {
	total := 0
	for i, page := range pages {
		var res PageResult
		select {
		case res = <-futures[page]:
		case <-ctx.Done():
			return total, ctx.Err()
		}

		persisted := e.persist(ctx, res, logger)
		total += persisted
		if e.reporter != nil {
			e.reporter.PageCompleted(runID, res, persisted)
		}

		if i == len(pages)-1 {
			break
		}
		if err := e.sleeper.Sleep(ctx, e.delay(e.cfg.MinPageDelay, e.cfg.MaxPageDelay)); err != nil {
			return total, err
		}
	}
	return total, nil
}

func (e *Engine) persist(ctx context.Context, res PageResult, logger *zap.Logger) int {
	if res.Err != nil {
		logger.Error("page failed", zap.Int("page", res.Page), zap.Int("attempts", res.Attempts), zap.Error(res.Err))
		return 0
	}
	if len(res.Records) == 0 {
		return 0
	}
	if err := e.sink.Append(ctx, res.Records); err != nil {
		logger.Error("persist page failed", zap.Int("page", res.Page), zap.Int("records", len(res.Records)), zap.Error(err))
		return 0
	}
	return len(res.Records)
}

func (e *Engine) newRunID() string {
	if e.ids == nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	id, err := e.ids.NewID()
	if err != nil {
		e.logger.Warn("run id generation failed", zap.Error(err))
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return id
}
