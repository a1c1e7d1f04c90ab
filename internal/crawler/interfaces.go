package crawler

import (
	"context"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Extractor turns one page of listing HTML into records.
type Extractor interface {
	Extract(ctx context.Context, page int, html []byte) ([]PageRecord, error)
}

// Resolver converts a download URL into a content-derived resource link.
type Resolver interface {
	Resolve(ctx context.Context, downloadURL string) Resolution
}

// RecordSink receives ordered record batches from the orchestrator.
type RecordSink interface {
	Append(ctx context.Context, records []PageRecord) error
	Flush(ctx context.Context) error
}

// RunAware sinks are told the run ID before the first Append.
type RunAware interface {
	StartRun(runID string)
}

// Hasher computes digests over raw resource bytes.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}

// Sleeper waits for a duration or until ctx ends.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}
