// Package market provides the NYSE session clock used to gate polling and
// trade evaluation.
package market

import (
	"time"

	"github.com/scmhub/calendar"
)

const (
	openHour    = 9
	openMinute  = 30
	closeHour   = 16
	closeMinute = 0

	// DefaultOpenSkip excludes the first minutes after the open, which are
	// too noisy for 0DTE entries.
	DefaultOpenSkip = 15 * time.Minute
)

// Clock answers market-day and session-window questions in exchange time.
type Clock struct {
	location *time.Location
	nyse     *calendar.Calendar
	openSkip time.Duration
}

// NewClock builds a Clock for the given timezone (typically
// America/New_York). Falls back to UTC if the zone cannot be loaded.
func NewClock(timezone string, openSkip time.Duration) *Clock {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	if openSkip < 0 {
		openSkip = DefaultOpenSkip
	}
	return &Clock{
		location: loc,
		nyse:     calendar.XNYS(),
		openSkip: openSkip,
	}
}

// IsMarketDay reports whether t falls on a trading day (not a weekend or
// exchange holiday).
func (c *Clock) IsMarketDay(t time.Time) bool {
	return c.nyse.IsBusinessDay(t.In(c.location))
}

// IsRegularSession reports whether t is within the regular 9:30-16:00
// session on a trading day.
func (c *Clock) IsRegularSession(t time.Time) bool {
	if !c.IsMarketDay(t) {
		return false
	}
	local := t.In(c.location)
	open := time.Date(local.Year(), local.Month(), local.Day(), openHour, openMinute, 0, 0, c.location)
	close := time.Date(local.Year(), local.Month(), local.Day(), closeHour, closeMinute, 0, 0, c.location)
	return !local.Before(open) && local.Before(close)
}

// IsTradableWindow reports whether t is within the regular session with the
// post-open skip already elapsed.
func (c *Clock) IsTradableWindow(t time.Time) bool {
	if !c.IsRegularSession(t) {
		return false
	}
	local := t.In(c.location)
	open := time.Date(local.Year(), local.Month(), local.Day(), openHour, openMinute, 0, 0, c.location)
	return !local.Before(open.Add(c.openSkip))
}

// SessionOpen returns the session open time for t's trading day.
func (c *Clock) SessionOpen(t time.Time) time.Time {
	local := t.In(c.location)
	return time.Date(local.Year(), local.Month(), local.Day(), openHour, openMinute, 0, 0, c.location)
}

// Location returns the clock's timezone.
func (c *Clock) Location() *time.Location {
	return c.location
}
