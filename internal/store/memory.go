package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/benfogiel/Sparkpad/internal/domain"
)

// MemoryRepo is a process-local Repo used for dry runs and tests.
type MemoryRepo struct {
	mu        sync.RWMutex
	users     map[string]domain.User
	reminders map[string][]domain.Reminder
	recent    map[string]map[string]domain.RecentReminder
	prefs     map[string]map[string]string
}

var (
	_ Repo        = (*MemoryRepo)(nil)
	_ Preferences = (*MemoryRepo)(nil)
)

// NewMemoryRepo returns an empty in-memory repository.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		users:     make(map[string]domain.User),
		reminders: make(map[string][]domain.Reminder),
		recent:    make(map[string]map[string]domain.RecentReminder),
		prefs:     make(map[string]map[string]string),
	}
}

// PutUser stores a copy of u.
func (m *MemoryRepo) PutUser(u domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u.SelectedCategories = append([]string(nil), u.SelectedCategories...)
	m.users[u.ID] = u
}

func (m *MemoryRepo) Close() error { return nil }

func (m *MemoryRepo) ListUserIDs(context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.users))
	for id := range m.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryRepo) GetUser(_ context.Context, userID string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	u.SelectedCategories = append([]string(nil), u.SelectedCategories...)
	return &u, nil
}

func (m *MemoryRepo) UpdateUser(_ context.Context, userID string, upd domain.UserUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if upd.LastNotificationDate != nil {
		t := *upd.LastNotificationDate
		u.LastNotificationDate = &t
	}
	if upd.ScheduledReminderTime != nil {
		t := *upd.ScheduledReminderTime
		u.ScheduledReminderTime = &t
	}
	m.users[userID] = u
	return nil
}

func (m *MemoryRepo) ListReminders(_ context.Context, userID string) ([]domain.Reminder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.Reminder(nil), m.reminders[userID]...), nil
}

func (m *MemoryRepo) AddReminder(_ context.Context, userID string, r domain.Reminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.reminders[userID]
	for i := range list {
		if list[i].ID == r.ID {
			list[i] = r
			return nil
		}
	}
	m.reminders[userID] = append(list, r)
	return nil
}

func (m *MemoryRepo) DeleteReminder(_ context.Context, userID, reminderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.reminders[userID]
	for i := range list {
		if list[i].ID == reminderID {
			m.reminders[userID] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryRepo) ListRecent(_ context.Context, userID string) ([]domain.RecentReminder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.RecentReminder, 0, len(m.recent[userID]))
	for _, rr := range m.recent[userID] {
		out = append(out, rr)
	}
	domain.SortRecent(out)
	return out, nil
}

func (m *MemoryRepo) PutRecent(_ context.Context, userID string, rr domain.RecentReminder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recent[userID] == nil {
		m.recent[userID] = make(map[string]domain.RecentReminder)
	}
	m.recent[userID][rr.Reminder.ID] = rr
	return nil
}

func (m *MemoryRepo) DeleteRecent(_ context.Context, userID, reminderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.recent[userID], reminderID)
	return nil
}

func (m *MemoryRepo) GetPreference(_ context.Context, userID, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.prefs[userID][key]
	return v, ok, nil
}

func (m *MemoryRepo) SetPreference(_ context.Context, userID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.prefs[userID] == nil {
		m.prefs[userID] = make(map[string]string)
	}
	m.prefs[userID][key] = value
	return nil
}
