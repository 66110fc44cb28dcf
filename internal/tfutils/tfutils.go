package tfutils

import (
	"fmt"
	"time"
)

// Month is the calendar-month timeframe. Its bars open on the first of each
// month at 00:00 UTC and their length varies.
const Month = "1M"

var timeframes = []struct {
	name     string
	duration time.Duration
}{
	{"1m", time.Minute},
	{"5m", 5 * time.Minute},
	{"15m", 15 * time.Minute},
	{"30m", 30 * time.Minute},
	{"1h", time.Hour},
	{"4h", 4 * time.Hour},
	{"1d", 24 * time.Hour},
	{"1w", 7 * 24 * time.Hour},
	{Month, 30 * 24 * time.Hour},
}

// ParseTimeframe parses timeframe string (e.g., "5m", "1h") to time.Duration.
// For "1M" the duration is a nominal 30 days; use Align and Next for bar
// boundaries.
func ParseTimeframe(timeframe string) (time.Duration, error) {
	if d := GetTimeframeDuration(timeframe); d > 0 {
		return d, nil
	}
	return 0, fmt.Errorf("unsupported timeframe: %q", timeframe)
}

// GetTimeframeDuration returns the duration for a given timeframe, or 0 if it is unknown.
func GetTimeframeDuration(timeframe string) time.Duration {
	for _, tf := range timeframes {
		if tf.name == timeframe {
			return tf.duration
		}
	}
	return 0
}

// GetSupportedTimeframes returns all supported timeframes, shortest first.
func GetSupportedTimeframes() []string {
	out := make([]string, len(timeframes))
	for i, tf := range timeframes {
		out[i] = tf.name
	}
	return out
}

// IsValidTimeframe checks if a timeframe is supported
func IsValidTimeframe(timeframe string) bool {
	return GetTimeframeDuration(timeframe) > 0
}

// Align returns the open time of the bar containing t, in UTC. Weekly bars
// open on Monday.
func Align(timeframe string, t time.Time) time.Time {
	t = t.UTC()
	if timeframe == Month {
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	if d := GetTimeframeDuration(timeframe); d > 0 {
		return t.Truncate(d)
	}
	return t
}

// Next returns the open time of the bar after the one opening at t.
func Next(timeframe string, t time.Time) time.Time {
	if timeframe == Month {
		return t.AddDate(0, 1, 0)
	}
	return t.Add(GetTimeframeDuration(timeframe))
}

// BarsBetween returns how many bars of the given timeframe fit in [start, end).
func BarsBetween(timeframe string, start, end time.Time) int {
	d := GetTimeframeDuration(timeframe)
	if d == 0 || !end.After(start) {
		return 0
	}
	if timeframe != Month {
		return int(end.Sub(start) / d)
	}
	n := 0
	for t := Align(timeframe, start); t.Before(end); t = Next(timeframe, t) {
		if !t.Before(start) {
			n++
		}
	}
	return n
}
