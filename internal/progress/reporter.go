package progress

import (
	"sync"
	"time"

	"github.com/JakeFAU/listing-crawler/internal/checkpoint"
	"github.com/JakeFAU/listing-crawler/internal/crawler"
)

// Reporter turns orchestrator and checkpointer callbacks into events. It
// implements crawler.Reporter and checkpoint.Observer.
type Reporter struct {
	emitter Emitter

	mu    sync.RWMutex
	runID string
}

// NewReporter wraps an Emitter such as a Hub.
func NewReporter(emitter Emitter) *Reporter {
	return &Reporter{emitter: emitter}
}

// RunStarted implements crawler.Reporter.
func (r *Reporter) RunStarted(runID string, rng crawler.CrawlRange) {
	r.mu.Lock()
	r.runID = runID
	r.mu.Unlock()
	r.emitter.Emit(Event{RunID: runID, Stage: StageRunStart, Pages: rng.Len(), Note: rng.String()})
}

// PageCompleted implements crawler.Reporter.
func (r *Reporter) PageCompleted(runID string, res crawler.PageResult, persisted int) {
	evt := Event{
		RunID:    runID,
		Stage:    StagePageDone,
		Page:     res.Page,
		Records:  persisted,
		Attempts: res.Attempts,
		Dur:      res.Duration,
	}
	if res.Err != nil {
		evt.Stage = StagePageFailed
		evt.Note = res.Err.Error()
	}
	r.emitter.Emit(evt)
}

// RunFinished implements crawler.Reporter.
func (r *Reporter) RunFinished(runID string, total int, dur time.Duration, err error) {
	evt := Event{RunID: runID, Stage: StageRunDone, Records: total, Dur: dur}
	if err != nil {
		evt.Failed = true
		evt.Note = err.Error()
	}
	r.emitter.Emit(evt)
}

// CheckpointPublished implements checkpoint.Observer.
func (r *Reporter) CheckpointPublished(cp checkpoint.Checkpoint, err error) {
	runID := cp.RunID
	if runID == "" {
		r.mu.RLock()
		runID = r.runID
		r.mu.RUnlock()
	}
	evt := Event{
		RunID:   runID,
		TS:      cp.CreatedAt,
		Stage:   StageCheckpoint,
		Page:    cp.LastPage,
		Records: cp.Records,
		Note:    cp.Message,
	}
	if err != nil {
		evt.Failed = true
		evt.Note = err.Error()
	}
	r.emitter.Emit(evt)
}
