package domain

import (
	"errors"
	"fmt"
)

// Configuration errors. A user hitting one of these is skipped for the tick.
var (
	ErrInvalidWindow   = errors.New("invalid reminder window")
	ErrInvalidTimezone = errors.New("invalid timezone")
	ErrNoPushToken     = errors.New("no push token")
	ErrNoReminders     = errors.New("no reminders")
)

// IsConfigError reports whether err stems from a user's configuration
// rather than from storage or transport.
func IsConfigError(err error) bool {
	return errors.Is(err, ErrInvalidWindow) ||
		errors.Is(err, ErrInvalidTimezone) ||
		errors.Is(err, ErrNoPushToken) ||
		errors.Is(err, ErrNoReminders)
}

func invalidTimezone(tz string, cause error) error {
	return fmt.Errorf("%w %q: %v", ErrInvalidTimezone, tz, cause)
}
