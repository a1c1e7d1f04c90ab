package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-crawler/internal/metrics"
	"github.com/JakeFAU/listing-crawler/internal/telemetry"
)

// PageRunner executes the fetch+extract unit for one page.
type PageRunner interface {
	Process(ctx context.Context, page int) PageResult
}

// PageProcessor fetches listing pages with bounded retries and hands the
// HTML to an Extractor.
type PageProcessor struct {
	baseURL   string
	profile   Profile
	fetcher   Fetcher
	extractor Extractor
	retry     RetryPolicy
	sleeper   Sleeper
	logger    *zap.Logger
}

// NewPageProcessor wires a PageProcessor. baseURL is normalized here so
// PageURL can append suffixes directly.
func NewPageProcessor(
	baseURL string,
	profile Profile,
	fetcher Fetcher,
	extractor Extractor,
	retry RetryPolicy,
	sleeper Sleeper,
	logger *zap.Logger,
) (*PageProcessor, error) {
	base, err := NormalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	if fetcher == nil {
		return nil, errors.New("page processor requires a fetcher")
	}
	if extractor == nil {
		return nil, errors.New("page processor requires an extractor")
	}
	if retry == nil {
		retry = NewExponentialRetryPolicy(DefaultMaxRetries, DefaultRetryBaseDelay)
	}
	if sleeper == nil {
		sleeper = NewTimerSleeper()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageProcessor{
		baseURL:   base,
		profile:   profile.Clone(),
		fetcher:   fetcher,
		extractor: extractor,
		retry:     retry,
		sleeper:   sleeper,
		logger:    logger,
	}, nil
}

// BaseURL returns the normalized listing base URL.
func (p *PageProcessor) BaseURL() string {
	return p.baseURL
}

// Process fetches and extracts one page. Failures degrade to an empty
// result carrying the error; they never panic or abort the caller.
func (p *PageProcessor) Process(ctx context.Context, page int) PageResult {
	ctx, span := telemetry.Tracer().Start(ctx, "crawler.page", trace.WithAttributes(attribute.Int("page", page)))
	defer span.End()

	start := time.Now()
	body, attempts, err := p.FetchPage(ctx, page)
	span.SetAttributes(attribute.Int("attempts", attempts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return PageResult{Page: page, Attempts: attempts, Duration: time.Since(start), Err: err}
	}
	records, err := p.extractor.Extract(ctx, page, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "extract failed")
		return PageResult{Page: page, Attempts: attempts, Duration: time.Since(start), Err: fmt.Errorf("extract page %d: %w", page, err)}
	}
	span.SetAttributes(attribute.Int("records", len(records)))
	p.logger.Info("page scraped",
		zap.Int("page", page),
		zap.Int("records", len(records)),
		zap.Int("attempts", attempts),
	)
	return PageResult{Page: page, Records: records, Attempts: attempts, Duration: time.Since(start)}
}

// FetchPage GETs the page with the page profile, retrying transport failures
// including per-request timeouts. Cancellation of ctx stops it immediately.
// It returns the body, the number of attempts made, and the last error once
// the retry policy gives up.
func (p *PageProcessor) FetchPage(ctx context.Context, page int) ([]byte, int, error) {
	url := PageURL(p.baseURL, page)
	task := CrawlTask{Page: page}
	for {
		p.logger.Debug("fetching page", zap.Int("page", page), zap.String("url", url), zap.Int("attempt", task.Attempt))
		resp, err := p.fetcher.Fetch(ctx, FetchRequest{URL: url, Profile: p.profile})
		if err == nil && len(resp.Body) == 0 {
			err = ErrEmptyPage
		}
		if err == nil {
			return resp.Body, task.Attempt + 1, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, task.Attempt + 1, fmt.Errorf("fetch page %d: %w", page, ctxErr)
		}
		if !p.retry.ShouldRetry(err, task.Attempt) {
			p.logger.Error("page fetch failed, giving up",
				zap.Int("page", page),
				zap.String("url", url),
				zap.Int("attempts", task.Attempt+1),
				zap.Error(err),
			)
			return nil, task.Attempt + 1, fmt.Errorf("fetch page %d: %w: %w", page, ErrRetriesExhausted, err)
		}
		delay := p.retry.Backoff(task.Attempt)
		p.logger.Warn("page fetch failed, retrying",
			zap.Int("page", page),
			zap.Int("retry", task.Attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		metrics.ObserveRetry()
		if err := p.sleeper.Sleep(ctx, delay); err != nil {
			return nil, task.Attempt + 1, fmt.Errorf("fetch page %d: %w", page, err)
		}
		task.Attempt++
	}
}
