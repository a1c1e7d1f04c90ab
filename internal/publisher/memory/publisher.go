// Package memory keeps published checkpoints in process memory.
package memory

import (
	"context"
	"sync"

	"github.com/JakeFAU/listing-crawler/internal/checkpoint"
)

// Publisher records checkpoints for inspection.
type Publisher struct {
	mu          sync.RWMutex
	checkpoints []checkpoint.Checkpoint
}

// New returns a memory Publisher.
func New() *Publisher {
	return &Publisher{}
}

// Publish implements checkpoint.Publisher.
func (p *Publisher) Publish(_ context.Context, cp checkpoint.Checkpoint) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.checkpoints = append(p.checkpoints, cp)
	return nil
}

// Checkpoints returns the recorded publishes.
func (p *Publisher) Checkpoints() []checkpoint.Checkpoint {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]checkpoint.Checkpoint, len(p.checkpoints))
	copy(out, p.checkpoints)
	return out
}
