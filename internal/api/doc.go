// Package api serves health, metrics, and crawl status over HTTP while a run
// is in progress.
package api
