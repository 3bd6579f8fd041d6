// Package quotes manages a user's reminder collection.
package quotes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/benfogiel/Sparkpad/internal/domain"
	"github.com/benfogiel/Sparkpad/internal/store"
)

// ErrEmptyQuote is returned when adding a reminder without text.
var ErrEmptyQuote = errors.New("empty quote")

// Remover drops recency entries of deleted reminders.
type Remover interface {
	Remove(ctx context.Context, userID, reminderID string) error
}

// Service wraps a QuoteStore and keeps the recency history consistent with it.
type Service struct {
	store  store.QuoteStore
	recent Remover
}

// New creates a Service.
func New(s store.QuoteStore, recent Remover) *Service {
	return &Service{store: s, recent: recent}
}

// List returns all of a user's reminders.
func (s *Service) List(ctx context.Context, userID string) ([]domain.Reminder, error) {
	return s.store.ListReminders(ctx, userID)
}

// Add stores a reminder, assigning a UUID when it has no id.
func (s *Service) Add(ctx context.Context, userID string, r domain.Reminder) (domain.Reminder, error) {
	r.Quote = strings.TrimSpace(r.Quote)
	r.Category = strings.TrimSpace(r.Category)
	if r.Quote == "" {
		return domain.Reminder{}, ErrEmptyQuote
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if err := s.store.AddReminder(ctx, userID, r); err != nil {
		return domain.Reminder{}, fmt.Errorf("add reminder: %w", err)
	}
	return r, nil
}

// Delete removes a reminder and its recency entry.
func (s *Service) Delete(ctx context.Context, userID, reminderID string) error {
	if err := s.store.DeleteReminder(ctx, userID, reminderID); err != nil {
		return fmt.Errorf("delete reminder %s: %w", reminderID, err)
	}
	if err := s.recent.Remove(ctx, userID, reminderID); err != nil {
		return fmt.Errorf("delete recent %s: %w", reminderID, err)
	}
	return nil
}
