// Package resolver turns torrent download references into magnet URIs.
package resolver

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-crawler/internal/crawler"
	"github.com/JakeFAU/listing-crawler/internal/metrics"
	"github.com/JakeFAU/listing-crawler/internal/telemetry"
)

const magnetPrefix = "magnet:?xt=urn:btih:"

// Resolver fetches the referenced resource with the resource profile and
// hashes its bytes. It implements crawler.Resolver.
type Resolver struct {
	fetcher crawler.Fetcher
	hasher  crawler.Hasher
	profile crawler.Profile
	logger  *zap.Logger
}

// New builds a Resolver.
func New(fetcher crawler.Fetcher, hasher crawler.Hasher, profile crawler.Profile, logger *zap.Logger) (*Resolver, error) {
	if fetcher == nil {
		return nil, errors.New("resolver requires a fetcher")
	}
	if hasher == nil {
		return nil, errors.New("resolver requires a hasher")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		fetcher: fetcher,
		hasher:  hasher,
		profile: profile.Clone(),
		logger:  logger,
	}, nil
}

// Resolve never fails: any error yields the input URL with LinkUnresolved.
func (r *Resolver) Resolve(ctx context.Context, downloadURL string) crawler.Resolution {
	if downloadURL == "" {
		metrics.ObserveResolution(string(crawler.LinkNone))
		return crawler.Resolution{Status: crawler.LinkNone}
	}
	ctx, span := telemetry.Tracer().Start(ctx, "resolver.resolve", trace.WithAttributes(attribute.String("url", downloadURL)))
	defer span.End()

	link, err := r.magnet(ctx, downloadURL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unresolved")
		r.logger.Warn("resource resolution failed, keeping download url",
			zap.String("url", downloadURL),
			zap.Error(err),
		)
		metrics.ObserveResolution(string(crawler.LinkUnresolved))
		return crawler.Resolution{Link: downloadURL, Status: crawler.LinkUnresolved}
	}
	metrics.ObserveResolution(string(crawler.LinkResolved))
	return crawler.Resolution{Link: link, Status: crawler.LinkResolved}
}

func (r *Resolver) magnet(ctx context.Context, downloadURL string) (string, error) {
	resp, err := r.fetcher.Fetch(ctx, crawler.FetchRequest{URL: downloadURL, Profile: r.profile})
	if err != nil {
		return "", err
	}
	if len(resp.Body) == 0 {
		return "", crawler.ErrEmptyPage
	}
	sum, err := r.hasher.Hash(resp.Body)
	if err != nil {
		return "", err
	}
	return MagnetURI(sum), nil
}

// MagnetURI formats an info-hash digest as a magnet URI.
func MagnetURI(hexDigest string) string {
	return magnetPrefix + hexDigest
}
