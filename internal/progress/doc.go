// Package progress carries crawl milestones from the orchestrator to
// pluggable sinks. Events are batched on a background goroutine so emitting
// never blocks the ordered consumer loop.
package progress
