// Package extractor parses listing pages into crawler.PageRecord values.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-crawler/internal/crawler"
)

// Default selectors for the listing markup.
const (
	DefaultRowSelector       = `tr[id^="tr-"]`
	DefaultTitleSelector     = "a.torTopic.bold.tt-text"
	DefaultPublisherSelector = "div.topicAuthor a.topicAuthor"
)

var topicIDPattern = regexp.MustCompile(`/(\d+)-t\.html$`)

// Config selects the listing markup and the URL bases records are built on.
type Config struct {
	BaseURL           string
	ResourceBaseURL   string
	RowSelector       string
	TitleSelector     string
	PublisherSelector string
}

// Extractor implements crawler.Extractor with goquery.
type Extractor struct {
	cfg      Config
	base     *url.URL
	resolver crawler.Resolver
	logger   *zap.Logger
}

// New validates cfg and fills default selectors.
func New(cfg Config, resolver crawler.Resolver, logger *zap.Logger) (*Extractor, error) {
	if resolver == nil {
		return nil, errors.New("extractor requires a resolver")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid listing base url %q", cfg.BaseURL)
	}
	if cfg.ResourceBaseURL != "" && !strings.HasSuffix(cfg.ResourceBaseURL, "/") {
		cfg.ResourceBaseURL += "/"
	}
	if cfg.RowSelector == "" {
		cfg.RowSelector = DefaultRowSelector
	}
	if cfg.TitleSelector == "" {
		cfg.TitleSelector = DefaultTitleSelector
	}
	if cfg.PublisherSelector == "" {
		cfg.PublisherSelector = DefaultPublisherSelector
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{cfg: cfg, base: base, resolver: resolver, logger: logger}, nil
}

// Extract returns one record per well-formed row, in markup order.
func (e *Extractor) Extract(ctx context.Context, page int, html []byte) ([]crawler.PageRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	rows := doc.Find(e.cfg.RowSelector)
	if rows.Length() == 0 {
		e.logger.Warn("no listing rows found", zap.Int("page", page))
		return []crawler.PageRecord{}, nil
	}

	records := make([]crawler.PageRecord, 0, rows.Length())
	var ctxErr error
	rows.EachWithBreak(func(i int, row *goquery.Selection) bool {
		if ctxErr = ctx.Err(); ctxErr != nil {
			return false
		}
		rec, ok, err := e.extractRow(ctx, page, row)
		if err != nil {
			e.logger.Warn("skipping malformed row", zap.Int("page", page), zap.Int("row", i), zap.Error(err))
			return true
		}
		if ok {
			records = append(records, rec)
		}
		return true
	})
	if ctxErr != nil {
		return nil, fmt.Errorf("extract page %d: %w", page, ctxErr)
	}
	return records, nil
}

// extractRow reports ok=false for rows without a title; those are not errors.
func (e *Extractor) extractRow(ctx context.Context, page int, row *goquery.Selection) (crawler.PageRecord, bool, error) {
	titleSel := row.Find(e.cfg.TitleSelector).First()
	if titleSel.Length() == 0 {
		return crawler.PageRecord{}, false, nil
	}
	title := strings.TrimSpace(titleSel.Text())

	href, ok := titleSel.Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return crawler.PageRecord{}, false, errors.New("title link has no href")
	}
	ref, err := url.Parse(href)
	if err != nil {
		return crawler.PageRecord{}, false, fmt.Errorf("parse href %q: %w", href, err)
	}
	detailURL := e.base.ResolveReference(ref).String()

	publisher := strings.TrimSpace(row.Find(e.cfg.PublisherSelector).First().Text())
	if publisher == "" {
		publisher = crawler.DefaultPublisher
	}

	res := e.resolver.Resolve(ctx, e.DownloadURL(detailURL))
	return crawler.PageRecord{
		Page:       page,
		Title:      title,
		URL:        detailURL,
		Publisher:  publisher,
		Link:       res.Link,
		LinkStatus: res.Status,
	}, true, nil
}

// DownloadURL maps a detail URL to its resource URL, or "" when the URL
// carries no topic id.
func (e *Extractor) DownloadURL(detailURL string) string {
	id := TopicID(detailURL)
	if id == "" {
		return ""
	}
	return e.cfg.ResourceBaseURL + id + ".torrent"
}

// TopicID returns the numeric topic id of a detail URL such as
// ".../12345-t.html", or "" when it does not match.
func TopicID(detailURL string) string {
	m := topicIDPattern.FindStringSubmatch(detailURL)
	if m == nil {
		return ""
	}
	return m[1]
}
