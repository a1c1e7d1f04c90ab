// Package checkpoint appends crawl results to the record store and publishes
// a durable checkpoint each time enough records have accumulated.
package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/listing-crawler/internal/crawler"
	"github.com/JakeFAU/listing-crawler/internal/metrics"
)

// DefaultThreshold is the number of appended records that triggers a commit.
const DefaultThreshold = 1000

// ErrPersist marks a record store write failure.
var ErrPersist = errors.New("persist records")

// Store is the durable, append-only record store.
type Store interface {
	Write(ctx context.Context, records []crawler.PageRecord) error
	Path() string
}

// Publisher makes the store's current state durable somewhere else. It must
// be idempotent: a failed checkpoint is published again at the next trigger.
type Publisher interface {
	Publish(ctx context.Context, cp Checkpoint) error
}

// Observer is told about every publish attempt.
type Observer interface {
	CheckpointPublished(cp Checkpoint, err error)
}

// Checkpoint is the payload handed to a Publisher.
type Checkpoint struct {
	RunID     string    `json:"run_id"`
	Sequence  int       `json:"sequence"`
	Records   int       `json:"records"`
	LastPage  int       `json:"last_page"`
	Final     bool      `json:"final"`
	StorePath string    `json:"store_path"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// State is a snapshot of the checkpointer's counters.
type State struct {
	Pending         int
	Committed       int
	Commits         int
	LastCommittedAt time.Time
}

// Config tunes the checkpointer.
type Config struct {
	Threshold int
}

// Checkpointer implements crawler.RecordSink.
type Checkpointer struct {
	mu        sync.Mutex
	threshold int
	store     Store
	publisher Publisher
	clock     crawler.Clock
	observer  Observer
	logger    *zap.Logger

	runID    string
	lastPage int
	state    State
}

type wallClock struct{}

func (wallClock) Now() time.Time { return time.Now().UTC() }

// New wires a Checkpointer. clock and observer are optional.
func New(cfg Config, store Store, publisher Publisher, clock crawler.Clock, observer Observer, logger *zap.Logger) (*Checkpointer, error) {
	if store == nil {
		return nil, errors.New("checkpointer requires a store")
	}
	if publisher == nil {
		return nil, errors.New("checkpointer requires a publisher")
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if clock == nil {
		clock = wallClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checkpointer{
		threshold: cfg.Threshold,
		store:     store,
		publisher: publisher,
		clock:     clock,
		observer:  observer,
		logger:    logger,
	}, nil
}

// StartRun tags subsequent checkpoints with runID and forwards it to the
// store when the store tracks runs.
func (c *Checkpointer) StartRun(runID string) {
	c.mu.Lock()
	c.runID = runID
	c.mu.Unlock()
	if ra, ok := c.store.(crawler.RunAware); ok {
		ra.StartRun(runID)
	}
}

// Append writes records to the store and commits once the pending count
// reaches the threshold. Only store failures are returned; a failed publish
// keeps the records pending.
func (c *Checkpointer) Append(ctx context.Context, records []crawler.PageRecord) error {
	if len(records) == 0 {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.store.Write(ctx, records); err != nil {
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	c.state.Pending += len(records)
	c.lastPage = records[len(records)-1].Page

	if c.state.Pending >= c.threshold {
		msg := fmt.Sprintf("Update data for %d records up to page %d", c.state.Pending, c.lastPage)
		_ = c.commitLocked(ctx, msg, false)
	}
	return nil
}

// Flush publishes a final checkpoint when records are pending.
func (c *Checkpointer) Flush(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Pending == 0 {
		return nil
	}
	msg := fmt.Sprintf("Final update for remaining %d records", c.state.Pending)
	return c.commitLocked(ctx, msg, true)
}

// State returns a copy of the current counters.
func (c *Checkpointer) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Checkpointer) commitLocked(ctx context.Context, msg string, final bool) error {
	cp := Checkpoint{
		RunID:     c.runID,
		Sequence:  c.state.Commits + 1,
		Records:   c.state.Pending,
		LastPage:  c.lastPage,
		Final:     final,
		StorePath: c.store.Path(),
		Message:   msg,
		CreatedAt: c.clock.Now(),
	}
	err := c.publisher.Publish(ctx, cp)
	metrics.ObserveCommit(err == nil)
	if c.observer != nil {
		c.observer.CheckpointPublished(cp, err)
	}
	if err != nil {
		c.logger.Warn("checkpoint publish failed, records stay pending",
			zap.Int("pending", c.state.Pending),
			zap.Int("sequence", cp.Sequence),
			zap.Error(err),
		)
		return fmt.Errorf("publish checkpoint %d: %w", cp.Sequence, err)
	}

	c.state.Committed += c.state.Pending
	c.state.Pending = 0
	c.state.Commits++
	c.state.LastCommittedAt = cp.CreatedAt
	c.logger.Info("checkpoint committed",
		zap.Int("sequence", cp.Sequence),
		zap.Int("records", cp.Records),
		zap.Int("last_page", cp.LastPage),
		zap.Bool("final", final),
	)
	return nil
}
