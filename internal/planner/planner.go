// Package planner picks and persists each user's randomized delivery time for the day.
package planner

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/benfogiel/Sparkpad/internal/domain"
	"github.com/benfogiel/Sparkpad/internal/store"
)

// Planner implements the once-per-local-day scheduled time.
type Planner struct {
	users store.UserDirectory
	intn  func(int) int
}

// Option configures a Planner.
type Option func(*Planner)

// WithRand overrides the random source; intn must return a value in [0, n).
func WithRand(intn func(int) int) Option {
	return func(p *Planner) { p.intn = intn }
}

// New creates a Planner persisting through users.
func New(users store.UserDirectory, opts ...Option) *Planner {
	p := &Planner{users: users, intn: rand.IntN}
	for _, o := range opts {
		o(p)
	}
	return p
}

// EnsureScheduledTime returns the user's delivery target for userNow's local day.
// A target already stored for that day is returned unchanged; otherwise a uniform
// minute inside [TimeLower, TimeUpper] is drawn, persisted and written back to u.
// userNow must be expressed in the user's location.
func (p *Planner) EnsureScheduledTime(ctx context.Context, u *domain.User, userNow time.Time) (time.Time, error) {
	if domain.WithinLocalDay(u.ScheduledReminderTime, userNow) {
		return u.ScheduledReminderTime.In(userNow.Location()), nil
	}

	fromM, toM, err := domain.ParseWindow(u.TimeLower, u.TimeUpper)
	if err != nil {
		return time.Time{}, err
	}
	at := domain.RandomTimeInWindow(userNow, fromM, toM, p.intn)

	if err := p.users.UpdateUser(ctx, u.ID, domain.UserUpdate{ScheduledReminderTime: &at}); err != nil {
		return time.Time{}, fmt.Errorf("persist scheduled time: %w", err)
	}
	u.ScheduledReminderTime = &at
	return at, nil
}
