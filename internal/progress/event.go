package progress

import (
	"errors"
	"fmt"
	"time"
)

// Stage denotes the milestone an Event represents.
type Stage string

// Supported progress stages.
const (
	StageRunStart   Stage = "RUN_START"
	StagePageDone   Stage = "PAGE_DONE"
	StagePageFailed Stage = "PAGE_FAILED"
	StageCheckpoint Stage = "CHECKPOINT"
	StageRunDone    Stage = "RUN_DONE"
)

// Event captures one crawl milestone.
type Event struct {
	// RunID identifies the crawl run.
	RunID string
	// TS is the UTC time the event was emitted.
	TS time.Time
	// Stage is the milestone kind.
	Stage Stage
	// Page is the listing page for page events and the last page for checkpoints.
	Page int
	// Pages is the total page count, set on RUN_START.
	Pages int
	// Records is the number of records persisted by the page, committed by
	// the checkpoint, or persisted by the whole run.
	Records int
	// Attempts is the number of fetch attempts a page needed.
	Attempts int
	// Dur is page latency or run wall time.
	Dur time.Duration
	// Failed marks an unsuccessful checkpoint or an interrupted run.
	Failed bool
	// Note carries low-volume context such as error text.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == "" {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone, StageCheckpoint:
	case StagePageDone, StagePageFailed:
		if e.Page < 1 {
			return errors.New("page events require a page >= 1")
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}
