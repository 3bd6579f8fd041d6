package domain

import "time"

// StartOfLocalDay returns local midnight of t's calendar day in t's location.
// Where a DST jump skips midnight, the first existing instant of the day is returned.
func StartOfLocalDay(t time.Time) time.Time {
	y, m, d := t.Date()
	start := time.Date(y, m, d, 0, 0, 0, 0, t.Location())
	for start.Day() != d {
		start = start.Add(15 * time.Minute)
	}
	return start
}

// NextLocalMidnight returns the start of the calendar day after t's day.
// The result is 23h, 24h or 25h after StartOfLocalDay(t) depending on DST.
func NextLocalMidnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return StartOfLocalDay(time.Date(y, m, d+1, 12, 0, 0, 0, t.Location()))
}

// IsFreshDay reports whether last belongs to a local day before localNow's,
// i.e. whether the per-day state derived from it has implicitly reset.
// A nil instant is always fresh.
func IsFreshDay(last *time.Time, localNow time.Time) bool {
	if last == nil {
		return true
	}
	return last.Before(StartOfLocalDay(localNow))
}

// WithinLocalDay reports whether t falls inside localNow's calendar day.
func WithinLocalDay(t *time.Time, localNow time.Time) bool {
	if t == nil {
		return false
	}
	return !t.Before(StartOfLocalDay(localNow)) && t.Before(NextLocalMidnight(localNow))
}

// WallClock builds the instant at mins past midnight on localDay's date.
// A wall clock skipped by a DST jump resolves to the first existing instant
// after it, i.e. the moment the clocks jump.
func WallClock(localDay time.Time, mins int) time.Time {
	y, m, d := localDay.Date()
	h, mi := mins/60, mins%60
	t := time.Date(y, m, d, h, mi, 0, 0, localDay.Location())
	if t.Hour() == h && t.Minute() == mi {
		return t
	}

	want := time.Date(y, m, d, h, mi, 0, 0, time.UTC)
	start, end := t.ZoneBounds()
	if wallOf(t).Before(want) {
		if !end.IsZero() {
			return end
		}
	} else if !start.IsZero() {
		return start
	}
	return t
}

// wallOf reinterprets t's wall clock in UTC so wall clocks compare directly.
func wallOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// RandomTimeInWindow draws a uniform whole minute in [fromM, toM] on localNow's day.
// A minute skipped by DST yields the instant the clocks jump, never an earlier one.
// intn must return a value in [0, n).
func RandomTimeInWindow(localNow time.Time, fromM, toM int, intn func(int) int) time.Time {
	mins := fromM + intn(toM-fromM+1)
	return WallClock(localNow, mins)
}
