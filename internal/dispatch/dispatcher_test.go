package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/benfogiel/Sparkpad/internal/domain"
	"github.com/benfogiel/Sparkpad/internal/metrics"
	"github.com/benfogiel/Sparkpad/internal/planner"
	"github.com/benfogiel/Sparkpad/internal/push"
	"github.com/benfogiel/Sparkpad/internal/recency"
	"github.com/benfogiel/Sparkpad/internal/store"
)

type sent struct {
	token string
	msg   push.Message
}

type fakeTransport struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (f *fakeTransport) Send(_ context.Context, token string, msg push.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if token == "panic" {
		panic("transport exploded")
	}
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sent{token: token, msg: msg})
	return nil
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type env struct {
	repo      *store.MemoryRepo
	tracker   *recency.Tracker
	transport *fakeTransport
	d         *Dispatcher
}

// newEnv builds a dispatcher over a MemoryRepo; wrap, when set, decorates
// the user directory.
func newEnv(t *testing.T, wrap func(*store.MemoryRepo) store.UserDirectory) *env {
	t.Helper()
	repo := store.NewMemoryRepo()
	var users store.UserDirectory = repo
	if wrap != nil {
		users = wrap(repo)
	}
	tr := recency.New(repo, 10)
	ft := &fakeTransport{}
	first := func(int) int { return 0 }
	d := New(Deps{
		Users:     users,
		Quotes:    repo,
		Tracker:   tr,
		Planner:   planner.New(users, planner.WithRand(first)),
		Transport: ft,
		Log:       zap.NewNop(),
		Metrics:   metrics.New(),
	}, Config{}, WithRand(first))
	return &env{repo: repo, tracker: tr, transport: ft, d: d}
}

// nineAM puts the user on a fixed 09:00 UTC schedule.
func nineAM(id, token string) domain.User {
	return domain.User{ID: id, Timezone: "UTC", TimeLower: "09:00", TimeUpper: "09:00", FCMToken: token}
}

func (e *env) addReminders(t *testing.T, userID string, rs ...domain.Reminder) {
	t.Helper()
	for _, r := range rs {
		require.NoError(t, e.repo.AddReminder(context.Background(), userID, r))
	}
}

var may5 = time.Date(2025, 5, 5, 0, 0, 0, 0, time.UTC)

func TestDispatchUser_Sends(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)
	e.repo.PutUser(nineAM("u1", "tok"))
	e.addReminders(t, "u1", domain.Reminder{ID: "r1", Quote: "Keep going."})

	now := may5.Add(10 * time.Hour)
	out, err := e.d.DispatchUser(ctx, "u1", now)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, out)

	require.Equal(t, 1, e.transport.count())
	msg := e.transport.sent[0].msg
	assert.Equal(t, "tok", e.transport.sent[0].token)
	assert.Equal(t, push.DefaultTitle, msg.Title)
	assert.Equal(t, "Keep going.", msg.Body)
	assert.Equal(t, "r1", msg.Data[push.DataReminderID])

	u, err := e.repo.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, u.LastNotificationDate)
	assert.True(t, u.LastNotificationDate.Equal(may5))

	recent, err := e.tracker.List(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "r1", recent[0].Reminder.ID)
	assert.True(t, recent[0].RemindedAt.Equal(may5))
}

func TestDispatchUser_AlreadyNotified(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)
	u := nineAM("u1", "tok")
	u.LastNotificationDate = &may5
	e.repo.PutUser(u)
	e.addReminders(t, "u1", domain.Reminder{ID: "r1", Quote: "q"})

	out, err := e.d.DispatchUser(ctx, "u1", may5.Add(23*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyNotified, out)
	assert.Zero(t, e.transport.count())

	stored, err := e.repo.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, stored.ScheduledReminderTime, "no mutation when already notified")
	assert.True(t, stored.LastNotificationDate.Equal(may5))
}

func TestDispatchUser_SendFailureRetriesNextTick(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)
	e.repo.PutUser(nineAM("u1", "tok"))
	e.addReminders(t, "u1", domain.Reminder{ID: "r1", Quote: "q"})
	e.transport.err = errors.New("fcm unavailable")

	out, err := e.d.DispatchUser(ctx, "u1", may5.Add(9*time.Hour+5*time.Minute))
	require.Error(t, err)
	assert.Equal(t, OutcomeSendFailed, out)

	u, err := e.repo.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, u.LastNotificationDate)
	recent, err := e.tracker.List(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, recent)

	e.transport.err = nil
	out, err = e.d.DispatchUser(ctx, "u1", may5.Add(9*time.Hour+20*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, out)
	assert.Equal(t, 1, e.transport.count())
}

func TestDispatchUser_NotDue(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)
	e.repo.PutUser(nineAM("u1", "tok"))
	e.addReminders(t, "u1", domain.Reminder{ID: "r1", Quote: "q"})

	out, err := e.d.DispatchUser(ctx, "u1", may5.Add(8*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotDue, out)
	assert.Zero(t, e.transport.count())

	u, err := e.repo.GetUser(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, u.ScheduledReminderTime)
	assert.True(t, u.ScheduledReminderTime.Equal(may5.Add(9*time.Hour)))
}

func TestDispatchUser_Skips(t *testing.T) {
	now := may5.Add(12 * time.Hour)
	cases := []struct {
		name string
		user domain.User
		rem  bool
		want Outcome
		err  error
	}{
		{"no token", nineAM("u1", ""), true, OutcomeNoToken, domain.ErrNoPushToken},
		{"no reminders", nineAM("u1", "tok"), false, OutcomeNoReminders, domain.ErrNoReminders},
		{"inverted window", domain.User{ID: "u1", Timezone: "UTC", TimeLower: "21:00", TimeUpper: "09:00", FCMToken: "tok"}, true, OutcomeInvalidConfig, domain.ErrInvalidWindow},
		{"bad timezone", domain.User{ID: "u1", Timezone: "Mars/Olympus", FCMToken: "tok"}, true, OutcomeInvalidConfig, domain.ErrInvalidTimezone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e := newEnv(t, nil)
			e.repo.PutUser(tc.user)
			if tc.rem {
				e.addReminders(t, "u1", domain.Reminder{ID: "r1", Quote: "q"})
			}
			out, err := e.d.DispatchUser(context.Background(), "u1", now)
			assert.Equal(t, tc.want, out)
			assert.ErrorIs(t, err, tc.err)
			assert.Zero(t, e.transport.count())
		})
	}
}

func TestDispatchUser_DefaultsFillEmptySettings(t *testing.T) {
	e := newEnv(t, nil)
	e.repo.PutUser(domain.User{ID: "u1", FCMToken: "tok"})
	e.addReminders(t, "u1", domain.Reminder{ID: "r1", Quote: "q"})

	// Default window opens at 09:00 UTC; intn=0 picks its first minute.
	out, err := e.d.DispatchUser(context.Background(), "u1", may5.Add(8*time.Hour+59*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotDue, out)

	out, err = e.d.DispatchUser(context.Background(), "u1", may5.Add(9*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, out)
}

func TestDispatchUser_AvoidsYesterdaysReminder(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)
	e.repo.PutUser(nineAM("u1", "tok"))
	e.addReminders(t, "u1",
		domain.Reminder{ID: "r1", Quote: "first"},
		domain.Reminder{ID: "r2", Quote: "second"},
	)

	_, err := e.d.DispatchUser(ctx, "u1", may5.Add(10*time.Hour))
	require.NoError(t, err)
	_, err = e.d.DispatchUser(ctx, "u1", may5.Add(34*time.Hour))
	require.NoError(t, err)

	require.Equal(t, 2, e.transport.count())
	assert.Equal(t, "first", e.transport.sent[0].msg.Body)
	assert.Equal(t, "second", e.transport.sent[1].msg.Body)
}

func TestDispatchUser_LocalMidnightResets(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, nil)
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)
	notified := time.Date(2025, 5, 5, 0, 0, 0, 0, tokyo)
	e.repo.PutUser(domain.User{
		ID: "u1", Timezone: "Asia/Tokyo", TimeLower: "06:00", TimeUpper: "06:00",
		FCMToken: "tok", LastNotificationDate: &notified,
	})
	e.addReminders(t, "u1", domain.Reminder{ID: "r1", Quote: "q"})

	// 2025-05-05 20:00 UTC is 05:00 on May 6 in Tokyo: new day, not yet due.
	out, err := e.d.DispatchUser(ctx, "u1", may5.Add(20*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotDue, out)

	out, err = e.d.DispatchUser(ctx, "u1", may5.Add(21*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, out)

	u, err := e.repo.GetUser(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, u.LastNotificationDate.Equal(time.Date(2025, 5, 6, 0, 0, 0, 0, tokyo)))
}

func TestDispatchUser_InFlight(t *testing.T) {
	e := newEnv(t, nil)
	e.repo.PutUser(nineAM("u1", "tok"))
	e.addReminders(t, "u1", domain.Reminder{ID: "r1", Quote: "q"})

	require.True(t, e.d.acquire("u1"))
	out, err := e.d.DispatchUser(context.Background(), "u1", may5.Add(10*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, OutcomeInFlight, out)
	assert.Zero(t, e.transport.count())

	e.d.release("u1")
	out, err = e.d.DispatchUser(context.Background(), "u1", may5.Add(10*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSent, out)
}

// brokenUser fails reads for one user id.
type brokenUser struct {
	*store.MemoryRepo
	id string
}

func (b brokenUser) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	if userID == b.id {
		return nil, errors.New("connection reset")
	}
	return b.MemoryRepo.GetUser(ctx, userID)
}

func TestRunBatch_IsolatesFailures(t *testing.T) {
	e := newEnv(t, func(r *store.MemoryRepo) store.UserDirectory {
		return brokenUser{MemoryRepo: r, id: "u3"}
	})
	repo := e.repo

	for _, u := range []domain.User{nineAM("u1", "tok1"), nineAM("u2", "panic"), nineAM("u3", "tok3"), nineAM("u4", "")} {
		repo.PutUser(u)
		e.addReminders(t, u.ID, domain.Reminder{ID: "r-" + u.ID, Quote: "q"})
	}

	sum, err := e.d.RunBatch(context.Background(), may5.Add(10*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 4, sum.Users)
	assert.Equal(t, 1, sum.Count(OutcomeSent))
	assert.Equal(t, 2, sum.Count(OutcomeError))
	assert.Equal(t, 1, sum.Count(OutcomeNoToken))
	assert.NotEmpty(t, sum.RunID)

	u1, err := repo.GetUser(context.Background(), "u1")
	require.NoError(t, err)
	assert.NotNil(t, u1.LastNotificationDate)

	// The panic must not leave u2 locked.
	assert.True(t, e.d.acquire("u2"))
}

type failingList struct{ *store.MemoryRepo }

func (failingList) ListUserIDs(context.Context) ([]string, error) {
	return nil, errors.New("store down")
}

func TestRunBatch_ListFailure(t *testing.T) {
	e := newEnv(t, func(r *store.MemoryRepo) store.UserDirectory { return failingList{r} })
	_, err := e.d.RunBatch(context.Background(), may5)
	assert.Error(t, err)
}

func TestRunBatch_IdempotentWithinTick(t *testing.T) {
	e := newEnv(t, nil)
	for _, id := range []string{"a", "b", "c"} {
		e.repo.PutUser(nineAM(id, "tok-"+id))
		e.addReminders(t, id, domain.Reminder{ID: "r", Quote: "q"})
	}
	now := may5.Add(10 * time.Hour)

	first, err := e.d.RunBatch(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Count(OutcomeSent))

	second, err := e.d.RunBatch(context.Background(), now.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 3, second.Count(OutcomeAlreadyNotified))
	assert.Equal(t, 3, e.transport.count())
	assert.Equal(t, "already_notified=3", second.String())
}

func TestDispatchUser_LogsScheduledLocalTime(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	e := newEnv(t, nil)
	e.d.deps.Log = zap.New(core)
	e.repo.PutUser(domain.User{ID: "u1", Timezone: "Asia/Tokyo", TimeLower: "09:00", TimeUpper: "09:00", FCMToken: "tok"})
	e.addReminders(t, "u1", domain.Reminder{ID: "r1", Quote: "q"})

	// 2025-05-04 23:00 UTC is 08:00 in Tokyo.
	out, err := e.d.DispatchUser(context.Background(), "u1", may5.Add(-time.Hour))
	require.NoError(t, err)
	require.Equal(t, OutcomeNotDue, out)

	entries := logs.FilterMessage("not due yet").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "09:00", entries[0].ContextMap()["scheduled_local"])
}
