package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseClock parses "HH:mm" into minutes since midnight (0..1439).
func ParseClock(s string) (int, error) {
	s = strings.TrimSpace(s)
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, errors.New("expected HH:mm")
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, errors.New("invalid hour")
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, errors.New("invalid minute")
	}
	return h*60 + m, nil
}

// ParseWindow parses the inclusive daily window [lower, upper].
// An inverted window is rejected; it does not wrap past midnight.
func ParseWindow(lower, upper string) (fromM, toM int, err error) {
	fromM, err = ParseClock(lower)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: lower %q: %v", ErrInvalidWindow, lower, err)
	}
	toM, err = ParseClock(upper)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: upper %q: %v", ErrInvalidWindow, upper, err)
	}
	if toM < fromM {
		return 0, 0, fmt.Errorf("%w: %s is before %s", ErrInvalidWindow, FormatMinutes(toM), FormatMinutes(fromM))
	}
	return fromM, toM, nil
}

// ValidateTZ checks that the tz is a valid IANA location.
func ValidateTZ(tz string) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", invalidTimezone(tz, err)
	}
	return loc.String(), nil
}

// FormatMinutes returns HH:mm for minutes since midnight (00:00..23:59).
func FormatMinutes(mins int) string {
	if mins < 0 {
		mins = 0
	}
	return fmt.Sprintf("%02d:%02d", mins/60, mins%60)
}

// LocalizeTime formats t in the given timezone as HH:mm.
func LocalizeTime(t time.Time, tz string) (string, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", invalidTimezone(tz, err)
	}
	return t.In(loc).Format("15:04"), nil
}
