package sinks

import (
	"context"
	"sync"
	"time"

	"github.com/JakeFAU/listing-crawler/internal/progress"
)

// Snapshot is the JSON body of the status endpoint.
type Snapshot struct {
	RunID            string    `json:"run_id,omitempty"`
	State            string    `json:"state"`
	StartedAt        time.Time `json:"started_at,omitempty"`
	UpdatedAt        time.Time `json:"updated_at,omitempty"`
	Pages            int       `json:"pages"`
	PagesDone        int       `json:"pages_done"`
	PagesFailed      int       `json:"pages_failed"`
	LastPage         int       `json:"last_page,omitempty"`
	Records          int       `json:"records"`
	Checkpoints      int       `json:"checkpoints"`
	CheckpointErrors int       `json:"checkpoint_errors"`
	LastCheckpoint   string    `json:"last_checkpoint,omitempty"`
}

// Run states reported in Snapshot.State.
const (
	StateIdle        = "idle"
	StateRunning     = "running"
	StateDone        = "done"
	StateInterrupted = "interrupted"
)

// StatusSink folds events into the latest Snapshot.
type StatusSink struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewStatusSink starts in the idle state.
func NewStatusSink() *StatusSink {
	return &StatusSink{snap: Snapshot{State: StateIdle}}
}

// Consume implements progress.Sink.
func (s *StatusSink) Consume(_ context.Context, batch []progress.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, evt := range batch {
		s.apply(evt)
	}
	return nil
}

func (s *StatusSink) apply(evt progress.Event) {
	if evt.Stage == progress.StageRunStart {
		s.snap = Snapshot{RunID: evt.RunID, State: StateRunning, StartedAt: evt.TS, Pages: evt.Pages}
	}
	s.snap.UpdatedAt = evt.TS
	switch evt.Stage {
	case progress.StagePageDone:
		s.snap.PagesDone++
		s.snap.LastPage = evt.Page
		s.snap.Records += evt.Records
	case progress.StagePageFailed:
		s.snap.PagesFailed++
		s.snap.LastPage = evt.Page
	case progress.StageCheckpoint:
		if evt.Failed {
			s.snap.CheckpointErrors++
			return
		}
		s.snap.Checkpoints++
		s.snap.LastCheckpoint = evt.Note
	case progress.StageRunDone:
		s.snap.State = StateDone
		if evt.Failed {
			s.snap.State = StateInterrupted
		}
		s.snap.Records = evt.Records
	}
}

// Snapshot returns the current state.
func (s *StatusSink) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Ready reports whether a run has started.
func (s *StatusSink) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap.State != StateIdle
}

// Close implements progress.Sink.
func (s *StatusSink) Close(context.Context) error {
	return nil
}
