package util

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// TimeRange bounds a sample query. A zero bound is open.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls in [Start, End).
func (r TimeRange) Contains(t time.Time) bool {
	if !r.Start.IsZero() && t.Before(r.Start) {
		return false
	}
	if !r.End.IsZero() && !t.Before(r.End) {
		return false
	}
	return true
}

func (r TimeRange) IsOpen() bool {
	return r.Start.IsZero() && r.End.IsZero()
}

// ParseTimeFlexible accepts RFC 3339 or epoch milliseconds.
func ParseTimeFlexible(timeStr string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, timeStr)
	if err == nil {
		return t.UTC(), nil
	}

	ms, err := strconv.ParseInt(timeStr, 10, 64)
	if err == nil {
		return time.UnixMilli(ms).UTC(), nil
	}

	return time.Time{}, fmt.Errorf("invalid time format: %s", timeStr)
}

// ParseTimeRange parses optional start and end bounds. Empty strings leave
// the matching side open.
func ParseTimeRange(startStr, endStr string) (TimeRange, error) {
	var r TimeRange
	var err error
	if startStr != "" {
		if r.Start, err = ParseTimeFlexible(startStr); err != nil {
			return TimeRange{}, errors.New("invalid startTime format. Use ISO 8601 or epoch milliseconds")
		}
	}
	if endStr != "" {
		if r.End, err = ParseTimeFlexible(endStr); err != nil {
			return TimeRange{}, errors.New("invalid endTime format. Use ISO 8601 or epoch milliseconds")
		}
	}
	if !r.Start.IsZero() && !r.End.IsZero() && r.End.Before(r.Start) {
		return TimeRange{}, errors.New("endTime cannot be before startTime")
	}
	return r, nil
}

// SecondsToTime converts fractional epoch seconds, the unit samples carry.
func SecondsToTime(seconds float64) time.Time {
	return time.UnixMilli(int64(seconds*1000 + 0.5)).UTC()
}
