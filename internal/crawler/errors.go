package crawler

import "errors"

var (
	// ErrInvalidRange is returned when a page range has a bound below 1.
	ErrInvalidRange = errors.New("invalid page range")
	// ErrEmptyPage is returned when a page fetch succeeded but carried no body.
	ErrEmptyPage = errors.New("empty page body")
	// ErrRetriesExhausted wraps the last transport error once every attempt has failed.
	ErrRetriesExhausted = errors.New("retries exhausted")
)
