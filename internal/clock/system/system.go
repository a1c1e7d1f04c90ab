// Package system provides the wall clock used for checkpoint timestamps.
package system

import "time"

// Clock implements crawler.Clock.
type Clock struct{}

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC, truncated to the second so commit
// messages and journal rows agree.
func (Clock) Now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
