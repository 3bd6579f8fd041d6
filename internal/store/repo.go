package store

import (
	"context"
	"errors"

	"github.com/benfogiel/Sparkpad/internal/domain"
)

// ErrNotFound is returned when a user record does not exist.
var ErrNotFound = errors.New("not found")

// UserDirectory reads accounts and applies partial updates to delivery state.
type UserDirectory interface {
	ListUserIDs(ctx context.Context) ([]string, error)
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	UpdateUser(ctx context.Context, userID string, upd domain.UserUpdate) error
}

// QuoteStore holds each user's reminders.
type QuoteStore interface {
	ListReminders(ctx context.Context, userID string) ([]domain.Reminder, error)
	AddReminder(ctx context.Context, userID string, r domain.Reminder) error
	// DeleteReminder is a no-op for unknown ids.
	DeleteReminder(ctx context.Context, userID, reminderID string) error
}

// RecentStore is the raw per-user recency storage; policy lives in recency.Tracker.
type RecentStore interface {
	ListRecent(ctx context.Context, userID string) ([]domain.RecentReminder, error)
	// PutRecent replaces any entry with the same reminder id.
	PutRecent(ctx context.Context, userID string, rr domain.RecentReminder) error
	DeleteRecent(ctx context.Context, userID, reminderID string) error
}

// Preferences is a per-user string key/value store.
type Preferences interface {
	GetPreference(ctx context.Context, userID, key string) (string, bool, error)
	SetPreference(ctx context.Context, userID, key, value string) error
}

// Repo is the full storage surface used by the service.
type Repo interface {
	UserDirectory
	QuoteStore
	RecentStore
	Close() error
}
