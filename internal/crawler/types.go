// Package crawler defines core types shared across subsystems.
package crawler

import (
	"net/http"
	"time"
)

// LinkStatus records how a record's Link field was produced.
type LinkStatus string

// Link status values attached to every PageRecord.
const (
	// LinkResolved means Link is a magnet URI derived from the resource content.
	LinkResolved LinkStatus = "resolved"
	// LinkUnresolved means the resource fetch failed and Link holds the raw download URL.
	LinkUnresolved LinkStatus = "unresolved"
	// LinkNone means the row carried no topic id, so there was nothing to resolve.
	LinkNone LinkStatus = "none"
)

// DefaultPublisher is stored when a listing row has no publisher element.
const DefaultPublisher = "Unknown"

// PageRecord is one structured row extracted from a listing page.
type PageRecord struct {
	Page       int        `json:"page"`
	Title      string     `json:"title"`
	URL        string     `json:"url"`
	Publisher  string     `json:"publisher"`
	Link       string     `json:"link"`
	LinkStatus LinkStatus `json:"link_status"`
}

// CrawlTask is a single fetch attempt for a listing page.
type CrawlTask struct {
	Page    int
	Attempt int
}

// Resolution is the outcome of turning a download URL into a resource link.
type Resolution struct {
	Link   string
	Status LinkStatus
}

// Profile is an immutable request identity: the header set sent with a GET.
type Profile struct {
	Name    string
	Headers http.Header
}

// Clone returns a deep copy so callers can't mutate a shared profile.
func (p Profile) Clone() Profile {
	return Profile{Name: p.Name, Headers: p.Headers.Clone()}
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL     string
	Profile Profile
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// PageResult is what a worker hands back to the orchestrator for one page.
type PageResult struct {
	Page     int
	Records  []PageRecord
	Attempts int
	Duration time.Duration
	Err      error
}
