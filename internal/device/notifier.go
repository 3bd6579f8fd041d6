// Package device schedules reminders as local notifications on a user's device.
package device

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/benfogiel/Sparkpad/internal/domain"
	"github.com/benfogiel/Sparkpad/internal/push"
	"github.com/benfogiel/Sparkpad/internal/recency"
	"github.com/benfogiel/Sparkpad/internal/store"
)

// Title of locally scheduled notifications.
const Title = "Reemind"

// PrefFirstReminderSent marks that the welcome notification went out.
const PrefFirstReminderSent = "firstReminderSent"

// immediateDelay is how far ahead an unscheduled notification is placed.
const immediateDelay = 100 * time.Millisecond

// Notification is a one-shot local notification.
type Notification struct {
	ID    int64
	Title string
	Body  string
	At    time.Time
	Extra map[string]string
}

// LocalScheduler is the device's notification facility.
type LocalScheduler interface {
	ScheduleAt(ctx context.Context, n Notification) error
	ListPending(ctx context.Context) ([]Notification, error)
	CancelAll(ctx context.Context) error
}

// Scheduled describes a notification handed to the LocalScheduler.
type Scheduled struct {
	NotificationID int64
	Reminder       domain.Reminder
	At             time.Time
}

// Deps are the collaborators of a Notifier.
type Deps struct {
	Local   LocalScheduler
	Prefs   store.Preferences
	Users   store.UserDirectory
	Quotes  store.QuoteStore
	Tracker *recency.Tracker
	Log     *zap.Logger
}

// Notifier picks reminders and schedules them locally.
type Notifier struct {
	deps Deps
	intn func(int) int
	now  func() time.Time
}

// New creates a Notifier.
func New(deps Deps) *Notifier {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	return &Notifier{deps: deps, intn: rand.IntN, now: time.Now}
}

// Schedule picks a reminder that is neither pending on the device nor recent
// and schedules it at at, or right away when at is nil.
func (n *Notifier) Schedule(ctx context.Context, userID string, at *time.Time) (*Scheduled, error) {
	pending, err := n.deps.Local.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	recent, err := n.deps.Tracker.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}
	exclude := make(map[string]struct{}, len(pending)+len(recent))
	for _, p := range pending {
		if id := p.Extra[push.DataReminderID]; id != "" {
			exclude[id] = struct{}{}
		}
	}
	for _, r := range recent {
		exclude[r.Reminder.ID] = struct{}{}
	}

	user, err := n.deps.Users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	all, err := n.deps.Quotes.ListReminders(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	reminder, err := domain.SelectExcluding(all, user.SelectedCategories, exclude, n.intn)
	if err != nil {
		return nil, err
	}

	now := n.now()
	when := now.Add(immediateDelay)
	if at != nil {
		when = *at
	}
	id := now.UnixMilli()*1000 + int64(n.intn(1000))
	err = n.deps.Local.ScheduleAt(ctx, Notification{
		ID:    id,
		Title: Title,
		Body:  reminder.Quote,
		At:    when,
		Extra: map[string]string{push.DataReminderID: reminder.ID},
	})
	if err != nil {
		return nil, fmt.Errorf("schedule local notification: %w", err)
	}
	return &Scheduled{NotificationID: id, Reminder: reminder, At: when}, nil
}

// SendWelcome delivers the first reminder immediately, once per user.
// It returns nil when the welcome was already sent or there is nothing to send.
func (n *Notifier) SendWelcome(ctx context.Context, userID string) (*Scheduled, error) {
	v, ok, err := n.deps.Prefs.GetPreference(ctx, userID, PrefFirstReminderSent)
	if err != nil {
		return nil, fmt.Errorf("get preference: %w", err)
	}
	if ok && v == "true" {
		return nil, nil
	}
	recent, err := n.deps.Tracker.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}
	if len(recent) > 0 {
		return nil, nil
	}

	s, err := n.Schedule(ctx, userID, nil)
	if errors.Is(err, domain.ErrNoReminders) {
		n.deps.Log.Info("welcome skipped: no reminders", zap.String("user_id", userID))
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := n.deps.Tracker.Record(ctx, userID, s.Reminder, n.now()); err != nil {
		return s, fmt.Errorf("record recent: %w", err)
	}
	if err := n.deps.Prefs.SetPreference(ctx, userID, PrefFirstReminderSent, "true"); err != nil {
		return s, fmt.Errorf("set preference: %w", err)
	}
	n.deps.Log.Info("welcome reminder scheduled",
		zap.String("user_id", userID),
		zap.String("reminder_id", s.Reminder.ID),
	)
	return s, nil
}

// CancelAll cancels every pending local notification.
func (n *Notifier) CancelAll(ctx context.Context) error {
	return n.deps.Local.CancelAll(ctx)
}
