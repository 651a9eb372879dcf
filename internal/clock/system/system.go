// Package system provides the wall clock used to stamp crawl runs.
package system

import "time"

// Clock implements crawler.Clock. Times are UTC so run ledger rows and
// projected dates never depend on the host zone.
type Clock struct{}

// New creates a Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}
