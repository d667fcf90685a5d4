package market

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClock_SessionWindows(t *testing.T) {
	clock := NewClock("America/New_York", 15*time.Minute)
	loc := clock.Location()

	monday := func(hour, min int) time.Time {
		return time.Date(2026, 8, 31, hour, min, 0, 0, loc)
	}

	assert.True(t, clock.IsMarketDay(monday(12, 0)))
	assert.False(t, clock.IsMarketDay(time.Date(2026, 8, 30, 12, 0, 0, 0, loc))) // Sunday

	assert.False(t, clock.IsRegularSession(monday(9, 29)))
	assert.True(t, clock.IsRegularSession(monday(9, 30)))
	assert.True(t, clock.IsRegularSession(monday(15, 59)))
	assert.False(t, clock.IsRegularSession(monday(16, 0)))

	// The tradable window excludes the first 15 minutes.
	assert.False(t, clock.IsTradableWindow(monday(9, 40)))
	assert.True(t, clock.IsTradableWindow(monday(9, 45)))
	assert.True(t, clock.IsTradableWindow(monday(14, 30)))
}

func TestClock_Holiday(t *testing.T) {
	clock := NewClock("America/New_York", 15*time.Minute)
	loc := clock.Location()

	// Independence Day (observed) 2026: July 3rd is the observed holiday.
	july3 := time.Date(2026, 7, 3, 12, 0, 0, 0, loc)
	assert.False(t, clock.IsMarketDay(july3))
	assert.False(t, clock.IsTradableWindow(july3))
}

func TestClock_ConvertsFromOtherZones(t *testing.T) {
	clock := NewClock("America/New_York", 15*time.Minute)

	// 18:30 UTC on a market day is 14:30 in New York (EDT).
	utc := time.Date(2026, 8, 31, 18, 30, 0, 0, time.UTC)
	assert.True(t, clock.IsTradableWindow(utc))
}

func TestClock_SessionOpen(t *testing.T) {
	clock := NewClock("America/New_York", 15*time.Minute)
	loc := clock.Location()

	open := clock.SessionOpen(time.Date(2026, 8, 31, 18, 30, 0, 0, time.UTC))
	assert.Equal(t, time.Date(2026, 8, 31, 9, 30, 0, 0, loc), open)
}
