// Package period resolves raw start/end inputs into a validated, clamped
// UTC date window. Resolution never fails: absent, malformed, or reversed
// inputs degrade to a safe default range relative to the caller-supplied
// reference time.
package period

import "time"

const day = 24 * time.Hour

// Policy selects the default window applied when neither a start nor an end
// input is supplied.
type Policy uint8

const (
	// TrailingWindow defaults to the FallbackDays-long window ending at the
	// reference day.
	TrailingWindow Policy = iota
	// MonthToDate defaults to the current UTC calendar month, capped at the
	// reference day.
	MonthToDate
)

// Range is an inclusive date window. Start is at 00:00:00.000 UTC, End at
// 23:59:59.999 UTC, and Days is the inclusive calendar-day count.
type Range struct {
	Start time.Time
	End   time.Time
	Days  int
}

// Contains reports whether t falls within the range, inclusive on both ends.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Resolver turns raw date inputs into a Range.
type Resolver struct {
	// FallbackDays is the default window length when the start input is
	// unusable. Values below 1 are treated as 1.
	FallbackDays int
	// MaxRangeDays caps the window length. Never less than FallbackDays.
	MaxRangeDays int
	// Policy picks the default window when both inputs are empty.
	Policy Policy
}

// Resolve parses startInput and endInput (RFC 3339 or YYYY-MM-DD) and clamps
// them into a valid range relative to now. It is pure: identical inputs,
// including now, produce identical ranges.
func (rv Resolver) Resolve(startInput, endInput string, now time.Time) Range {
	if rv.Policy == MonthToDate && startInput == "" && endInput == "" {
		return rv.monthToDate(now)
	}

	fallbackDays := rv.FallbackDays
	if fallbackDays < 1 {
		fallbackDays = 1
	}
	maxRangeDays := rv.MaxRangeDays
	if maxRangeDays < fallbackDays {
		maxRangeDays = fallbackDays
	}

	nowEnd := endOfDay(now)
	end := nowEnd
	if t, ok := parseInput(endInput); ok {
		end = endOfDay(t)
	}
	if end.After(nowEnd) {
		end = nowEnd
	}

	minStart := startOfDay(end.Add(-time.Duration(maxRangeDays-1) * day))

	start, ok := parseInput(startInput)
	if ok {
		start = startOfDay(start)
	}
	if !ok || start.After(end) {
		start = startOfDay(end.Add(-time.Duration(fallbackDays-1) * day))
	}
	if start.Before(minStart) {
		start = minStart
	}

	return Range{Start: start, End: end, Days: daysBetween(start, end)}
}

// monthToDate returns the first day of now's UTC month through the last day
// of the month, capped at now.
func (rv Resolver) monthToDate(now time.Time) Range {
	now = now.UTC()
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := endOfDay(start.AddDate(0, 1, -1))
	if nowEnd := endOfDay(now); end.After(nowEnd) {
		end = nowEnd
	}
	return Range{Start: start, End: end, Days: daysBetween(start, end)}
}

// parseInput accepts RFC 3339 timestamps or plain YYYY-MM-DD dates.
func parseInput(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).Add(day - time.Millisecond)
}

// daysBetween counts calendar days from start to end inclusive, at least 1.
func daysBetween(start, end time.Time) int {
	d := int(startOfDay(end).Sub(startOfDay(start))/day) + 1
	if d < 1 {
		return 1
	}
	return d
}
