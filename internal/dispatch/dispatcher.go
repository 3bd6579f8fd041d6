// Package dispatch delivers each user's daily reminder.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/benfogiel/Sparkpad/internal/domain"
	"github.com/benfogiel/Sparkpad/internal/metrics"
	"github.com/benfogiel/Sparkpad/internal/planner"
	"github.com/benfogiel/Sparkpad/internal/push"
	"github.com/benfogiel/Sparkpad/internal/recency"
	"github.com/benfogiel/Sparkpad/internal/store"
)

// DefaultConcurrency bounds the number of users processed at once.
const DefaultConcurrency = 16

// Config holds dispatcher settings.
type Config struct {
	Title        string
	DefaultTZ    string
	DefaultLower string
	DefaultUpper string
	Concurrency  int
}

func (c Config) withDefaults() Config {
	if c.Title == "" {
		c.Title = push.DefaultTitle
	}
	if c.DefaultTZ == "" {
		c.DefaultTZ = domain.DefaultTimezone
	}
	if c.DefaultLower == "" {
		c.DefaultLower = domain.DefaultTimeLower
	}
	if c.DefaultUpper == "" {
		c.DefaultUpper = domain.DefaultTimeUpper
	}
	if c.Concurrency < 1 {
		c.Concurrency = DefaultConcurrency
	}
	return c
}

// Deps are the collaborators of a Dispatcher. Metrics may be nil.
type Deps struct {
	Users     store.UserDirectory
	Quotes    store.QuoteStore
	Tracker   *recency.Tracker
	Planner   *planner.Planner
	Transport push.Transport
	Log       *zap.Logger
	Metrics   *metrics.Collector
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithRand overrides the random source used for reminder selection.
func WithRand(intn func(int) int) Option {
	return func(d *Dispatcher) { d.intn = intn }
}

// Dispatcher runs the per-user delivery procedure and fans it out over all users.
type Dispatcher struct {
	deps Deps
	cfg  Config
	intn func(int) int

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// New creates a Dispatcher.
func New(deps Deps, cfg Config, opts ...Option) *Dispatcher {
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	d := &Dispatcher{
		deps:     deps,
		cfg:      cfg.withDefaults(),
		intn:     rand.IntN,
		inFlight: make(map[string]struct{}),
	}
	for _, o := range opts {
		o(d)
	}
	return d
}

// DispatchUser runs one delivery attempt for userID at instant now.
//
// The user is skipped when already notified on the current local day or when
// the day's scheduled time has not arrived. On a successful send the day is
// marked as notified and the reminder is recorded as recent; a failed send
// leaves all state untouched so the next invocation retries.
//
// The returned error explains non-success outcomes; it is nil for the plain
// skips (already_notified, not_due, in_flight).
func (d *Dispatcher) DispatchUser(ctx context.Context, userID string, now time.Time) (Outcome, error) {
	if !d.acquire(userID) {
		return OutcomeInFlight, nil
	}
	defer d.release(userID)

	stored, err := d.deps.Users.GetUser(ctx, userID)
	if err != nil {
		return OutcomeError, fmt.Errorf("get user: %w", err)
	}
	user := stored.WithDefaults(d.cfg.DefaultTZ, d.cfg.DefaultLower, d.cfg.DefaultUpper)

	loc, err := user.Location()
	if err != nil {
		return OutcomeInvalidConfig, err
	}
	userNow := now.In(loc)

	if !domain.IsFreshDay(user.LastNotificationDate, userNow) {
		return OutcomeAlreadyNotified, nil
	}

	scheduled, err := d.deps.Planner.EnsureScheduledTime(ctx, &user, userNow)
	if err != nil {
		if domain.IsConfigError(err) {
			return OutcomeInvalidConfig, err
		}
		return OutcomeError, err
	}
	scheduledLocal, _ := domain.LocalizeTime(scheduled, user.Timezone)
	if userNow.Before(scheduled) {
		d.deps.Log.Debug("not due yet",
			zap.String("user_id", user.ID),
			zap.String("scheduled_local", scheduledLocal),
		)
		return OutcomeNotDue, nil
	}

	if user.FCMToken == "" {
		return OutcomeNoToken, domain.ErrNoPushToken
	}

	all, err := d.deps.Quotes.ListReminders(ctx, user.ID)
	if err != nil {
		return OutcomeError, fmt.Errorf("list reminders: %w", err)
	}
	recent, err := d.deps.Tracker.List(ctx, user.ID)
	if err != nil {
		return OutcomeError, fmt.Errorf("list recent: %w", err)
	}
	reminder, err := domain.SelectReminder(all, user.SelectedCategories, recent, d.intn)
	if errors.Is(err, domain.ErrNoReminders) {
		return OutcomeNoReminders, err
	}
	if err != nil {
		return OutcomeError, err
	}

	msg := push.NewReminderMessage(d.cfg.Title, reminder.ID, reminder.Quote, now)
	if err := d.deps.Transport.Send(ctx, user.FCMToken, msg); err != nil {
		return OutcomeSendFailed, fmt.Errorf("send reminder %s: %w", reminder.ID, err)
	}

	day := domain.StartOfLocalDay(userNow)
	if err := d.deps.Users.UpdateUser(ctx, user.ID, domain.UserUpdate{LastNotificationDate: &day}); err != nil {
		return OutcomeSent, fmt.Errorf("mark notified: %w", err)
	}
	if err := d.deps.Tracker.Record(ctx, user.ID, reminder, day); err != nil {
		return OutcomeSent, fmt.Errorf("record recent: %w", err)
	}
	d.deps.Log.Debug("delivery recorded",
		zap.String("user_id", user.ID),
		zap.String("reminder_id", reminder.ID),
		zap.String("scheduled_local", scheduledLocal),
	)
	return OutcomeSent, nil
}

// RunBatch dispatches every known user at instant now.
// Per-user failures are logged and counted; only a failure to enumerate users,
// or cancellation of ctx, is returned.
func (d *Dispatcher) RunBatch(ctx context.Context, now time.Time) (Summary, error) {
	start := time.Now()
	sum := Summary{RunID: uuid.NewString(), Counts: make(map[Outcome]int)}
	log := d.deps.Log.With(zap.String("run_id", sum.RunID))

	ids, err := d.deps.Users.ListUserIDs(ctx)
	if err != nil {
		err = fmt.Errorf("list users: %w", err)
		d.deps.Metrics.RecordBatch(time.Since(start), err)
		return sum, err
	}
	sum.Users = len(ids)
	log.Info("batch started", zap.Int("users", len(ids)), zap.Time("now", now))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(d.cfg.Concurrency)
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			outcome := d.process(ctx, log, id, now)
			mu.Lock()
			sum.Counts[outcome]++
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	sum.Duration = time.Since(start)
	if err := ctx.Err(); err != nil {
		err = fmt.Errorf("batch interrupted: %w", err)
		d.deps.Metrics.RecordBatch(sum.Duration, err)
		return sum, err
	}
	d.deps.Metrics.RecordBatch(sum.Duration, nil)
	log.Info("batch finished",
		zap.Duration("took", sum.Duration),
		zap.String("outcomes", sum.String()),
	)
	return sum, nil
}

// process is the isolated error boundary around one user.
func (d *Dispatcher) process(ctx context.Context, log *zap.Logger, userID string, now time.Time) (outcome Outcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = OutcomeError
			log.Error("dispatch panicked",
				zap.String("user_id", userID),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
		}
		d.deps.Metrics.RecordOutcome(string(outcome))
	}()

	o, err := d.DispatchUser(ctx, userID, now)
	logOutcome(log, userID, o, err)
	return o
}

func logOutcome(log *zap.Logger, userID string, o Outcome, err error) {
	fields := []zap.Field{zap.String("user_id", userID), zap.String("outcome", string(o))}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	switch o {
	case OutcomeSent:
		if err != nil {
			log.Error("reminder sent but state not saved", fields...)
			return
		}
		log.Info("reminder sent", fields...)
	case OutcomeNoToken, OutcomeNoReminders, OutcomeInvalidConfig:
		log.Warn("user skipped", fields...)
	case OutcomeSendFailed:
		log.Error("send failed, will retry next tick", fields...)
	case OutcomeError:
		log.Error("dispatch failed", fields...)
	default:
		log.Debug("user skipped", fields...)
	}
}

func (d *Dispatcher) acquire(userID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, busy := d.inFlight[userID]; busy {
		return false
	}
	d.inFlight[userID] = struct{}{}
	return true
}

func (d *Dispatcher) release(userID string) {
	d.mu.Lock()
	delete(d.inFlight, userID)
	d.mu.Unlock()
}
