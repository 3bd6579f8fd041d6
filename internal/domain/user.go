package domain

import "time"

// Defaults applied when a user record leaves a field empty.
const (
	DefaultTimezone  = "UTC"
	DefaultTimeLower = "09:00"
	DefaultTimeUpper = "21:00"
)

// User represents per-account reminder settings and daily delivery state.
type User struct {
	ID                    string
	Timezone              string     // IANA name, e.g. "Asia/Tokyo"
	TimeLower             string     // HH:mm, inclusive
	TimeUpper             string     // HH:mm, inclusive
	FCMToken              string     // empty when the device never registered
	SelectedCategories    []string   // empty means no category filter
	LastNotificationDate  *time.Time // start of the local day of the last delivery, nullable
	ScheduledReminderTime *time.Time // today's randomized target, nullable
}

// UserUpdate carries a partial update; nil fields are left untouched.
type UserUpdate struct {
	LastNotificationDate  *time.Time
	ScheduledReminderTime *time.Time
}

// WithDefaults fills empty timezone and window bounds.
func (u User) WithDefaults(tz, lower, upper string) User {
	if u.Timezone == "" {
		u.Timezone = tz
	}
	if u.TimeLower == "" {
		u.TimeLower = lower
	}
	if u.TimeUpper == "" {
		u.TimeUpper = upper
	}
	return u
}

// Location resolves the user's timezone.
func (u *User) Location() (*time.Location, error) {
	tz := u.Timezone
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, invalidTimezone(tz, err)
	}
	return loc, nil
}
