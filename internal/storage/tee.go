// Package storage combines the primary record store with best-effort mirrors.
package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/listing-crawler/internal/checkpoint"
	"github.com/JakeFAU/listing-crawler/internal/crawler"
)

// Tee writes to the primary store first; mirror failures are logged and do
// not fail the write, since only the primary store is checkpointed.
type Tee struct {
	primary checkpoint.Store
	mirrors []checkpoint.Store
	logger  *zap.Logger
}

// NewTee builds a Tee. A Tee without mirrors behaves like primary.
func NewTee(primary checkpoint.Store, logger *zap.Logger, mirrors ...checkpoint.Store) *Tee {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tee{primary: primary, mirrors: mirrors, logger: logger}
}

// Write implements checkpoint.Store.
func (t *Tee) Write(ctx context.Context, records []crawler.PageRecord) error {
	if err := t.primary.Write(ctx, records); err != nil {
		return err
	}
	for _, m := range t.mirrors {
		if err := m.Write(ctx, records); err != nil {
			t.logger.Warn("mirror write failed",
				zap.String("mirror", m.Path()),
				zap.Int("records", len(records)),
				zap.Error(err),
			)
		}
	}
	return nil
}

// Path returns the primary store's path.
func (t *Tee) Path() string {
	return t.primary.Path()
}

// StartRun forwards the run ID to stores that track it.
func (t *Tee) StartRun(runID string) {
	for _, s := range append([]checkpoint.Store{t.primary}, t.mirrors...) {
		if ra, ok := s.(crawler.RunAware); ok {
			ra.StartRun(runID)
		}
	}
}
