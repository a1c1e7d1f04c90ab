// Package crawler implements the listing crawl pipeline: page URL mapping,
// bounded retrying page fetches, and the orchestrator that runs pages on a
// fixed worker pool while persisting their records in traversal order.
//
// Concurrency model: the Engine creates one single-slot future per page,
// feeds page numbers to Concurrency workers, then awaits the futures in the
// order the range was enumerated. Workers never touch the RecordSink; all
// appends and commits happen on the goroutine that called Run.
package crawler
