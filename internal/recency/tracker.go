// Package recency keeps a bounded per-user history of delivered reminders.
package recency

import (
	"context"
	"fmt"
	"time"

	"github.com/benfogiel/Sparkpad/internal/domain"
	"github.com/benfogiel/Sparkpad/internal/store"
)

// Tracker enforces the one-entry-per-reminder and max-size rules over a RecentStore.
// Eviction always removes the entries with the smallest RemindedAt.
type Tracker struct {
	store store.RecentStore
	max   int
}

// New creates a Tracker holding at most max entries per user.
func New(s store.RecentStore, max int) *Tracker {
	if max < 1 {
		max = domain.DefaultMaxRecent
	}
	return &Tracker{store: s, max: max}
}

// Max returns the configured bound.
func (t *Tracker) Max() int { return t.max }

// Record upserts the entry for reminder at the given instant, then trims.
func (t *Tracker) Record(ctx context.Context, userID string, reminder domain.Reminder, at time.Time) error {
	if err := t.store.DeleteRecent(ctx, userID, reminder.ID); err != nil {
		return fmt.Errorf("delete recent %s: %w", reminder.ID, err)
	}
	rr := domain.RecentReminder{Reminder: reminder, RemindedAt: at}
	if err := t.store.PutRecent(ctx, userID, rr); err != nil {
		return fmt.Errorf("put recent %s: %w", reminder.ID, err)
	}
	_, err := t.Trim(ctx, userID)
	return err
}

// Trim evicts the oldest entries until the user is within bound and returns the survivors.
func (t *Tracker) Trim(ctx context.Context, userID string) ([]domain.RecentReminder, error) {
	entries, err := t.store.ListRecent(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}
	evict, keep := domain.SplitOverflow(entries, t.max)
	for _, e := range evict {
		if err := t.store.DeleteRecent(ctx, userID, e.Reminder.ID); err != nil {
			return nil, fmt.Errorf("evict recent %s: %w", e.Reminder.ID, err)
		}
	}
	return keep, nil
}

// List returns the trimmed history ordered by RemindedAt ascending.
func (t *Tracker) List(ctx context.Context, userID string) ([]domain.RecentReminder, error) {
	return t.Trim(ctx, userID)
}

// Remove drops the entry for a deleted reminder.
func (t *Tracker) Remove(ctx context.Context, userID, reminderID string) error {
	return t.store.DeleteRecent(ctx, userID, reminderID)
}
