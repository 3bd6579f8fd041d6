package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	// Registers the "sqlite" driver (pure Go).
	_ "modernc.org/sqlite"

	"github.com/benfogiel/Sparkpad/internal/domain"
)

// SQLiteRepo implements Repo and Preferences using an embedded SQLite database.
type SQLiteRepo struct{ db *sql.DB }

var (
	_ Repo        = (*SQLiteRepo)(nil)
	_ Preferences = (*SQLiteRepo)(nil)
)

// OpenSQLite opens (or creates) the SQLite database at the given path,
// applies recommended PRAGMAs, runs SQL migrations, and returns a repository.
func OpenSQLite(ctx context.Context, path string) (*SQLiteRepo, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// Reasonable pooling for SQLite; it's a single-writer engine.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}
	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrations: %w", err)
	}

	return &SQLiteRepo{db: db}, nil
}

// applyPragmas configures the SQLite connection for durability and concurrency.
func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the underlying database resources.
func (r *SQLiteRepo) Close() error {
	return r.db.Close()
}

// UpsertUser inserts or replaces a user's settings and delivery state.
func (r *SQLiteRepo) UpsertUser(ctx context.Context, u *domain.User) error {
	if u == nil {
		return errors.New("nil user")
	}
	if u.ID == "" {
		return errors.New("empty user id")
	}
	cats, err := encodeCategories(u.SelectedCategories)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO users (
			id, created_at, timezone, time_lower, time_upper, fcm_token,
			selected_categories, last_notification_date, scheduled_reminder_time
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			timezone                = excluded.timezone,
			time_lower              = excluded.time_lower,
			time_upper              = excluded.time_upper,
			fcm_token               = excluded.fcm_token,
			selected_categories     = excluded.selected_categories,
			last_notification_date  = excluded.last_notification_date,
			scheduled_reminder_time = excluded.scheduled_reminder_time`,
		u.ID, time.Now().UTC().Unix(), u.Timezone, u.TimeLower, u.TimeUpper, u.FCMToken,
		cats, toNullInt64(u.LastNotificationDate), toNullInt64(u.ScheduledReminderTime),
	)
	return err
}

// ListUserIDs returns every user id in ascending order.
func (r *SQLiteRepo) ListUserIDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM users ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetUser returns a user by id or ErrNotFound.
func (r *SQLiteRepo) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, timezone, time_lower, time_upper, fcm_token,
		       selected_categories, last_notification_date, scheduled_reminder_time
		FROM users
		WHERE id = ?`,
		userID,
	)

	var (
		u         domain.User
		cats      string
		lastNS    sql.NullInt64
		scheduled sql.NullInt64
	)
	if err := row.Scan(
		&u.ID, &u.Timezone, &u.TimeLower, &u.TimeUpper, &u.FCMToken,
		&cats, &lastNS, &scheduled,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
		return nil, err
	}

	var err error
	if u.SelectedCategories, err = decodeCategories(cats); err != nil {
		return nil, fmt.Errorf("user %s categories: %w", userID, err)
	}
	u.LastNotificationDate = fromNullInt64(lastNS)
	u.ScheduledReminderTime = fromNullInt64(scheduled)
	return &u, nil
}

// UpdateUser writes the non-nil fields of upd.
func (r *SQLiteRepo) UpdateUser(ctx context.Context, userID string, upd domain.UserUpdate) error {
	var (
		sets []string
		args []any
	)
	if upd.LastNotificationDate != nil {
		sets = append(sets, "last_notification_date = ?")
		args = append(args, toNullInt64(upd.LastNotificationDate))
	}
	if upd.ScheduledReminderTime != nil {
		sets = append(sets, "scheduled_reminder_time = ?")
		args = append(args, toNullInt64(upd.ScheduledReminderTime))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, userID)

	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}

// ListReminders returns a user's reminders in insertion order.
func (r *SQLiteRepo) ListReminders(ctx context.Context, userID string) ([]domain.Reminder, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, quote, category
		FROM reminders
		WHERE user_id = ?
		ORDER BY created_at ASC, id ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.Reminder
	for rows.Next() {
		var rm domain.Reminder
		if err := rows.Scan(&rm.ID, &rm.Quote, &rm.Category); err != nil {
			return nil, err
		}
		res = append(res, rm)
	}
	return res, rows.Err()
}

// AddReminder inserts a reminder or overwrites the one with the same id.
func (r *SQLiteRepo) AddReminder(ctx context.Context, userID string, rm domain.Reminder) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reminders (user_id, id, quote, category, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, id) DO UPDATE SET
			quote    = excluded.quote,
			category = excluded.category`,
		userID, rm.ID, rm.Quote, rm.Category, time.Now().UTC().UnixNano(),
	)
	return err
}

// DeleteReminder removes a reminder; unknown ids are ignored.
func (r *SQLiteRepo) DeleteReminder(ctx context.Context, userID, reminderID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM reminders WHERE user_id = ? AND id = ?`, userID, reminderID)
	return err
}

// ListRecent returns a user's recency entries, oldest first.
func (r *SQLiteRepo) ListRecent(ctx context.Context, userID string) ([]domain.RecentReminder, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT reminder_id, quote, category, reminded_at
		FROM recent_reminders
		WHERE user_id = ?
		ORDER BY reminded_at ASC, reminder_id ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []domain.RecentReminder
	for rows.Next() {
		var (
			rr domain.RecentReminder
			at int64
		)
		if err := rows.Scan(&rr.Reminder.ID, &rr.Reminder.Quote, &rr.Reminder.Category, &at); err != nil {
			return nil, err
		}
		rr.RemindedAt = time.Unix(at, 0).UTC()
		res = append(res, rr)
	}
	return res, rows.Err()
}

// PutRecent upserts the entry keyed by its reminder id.
func (r *SQLiteRepo) PutRecent(ctx context.Context, userID string, rr domain.RecentReminder) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO recent_reminders (user_id, reminder_id, quote, category, reminded_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, reminder_id) DO UPDATE SET
			quote       = excluded.quote,
			category    = excluded.category,
			reminded_at = excluded.reminded_at`,
		userID, rr.Reminder.ID, rr.Reminder.Quote, rr.Reminder.Category, rr.RemindedAt.UTC().Unix(),
	)
	return err
}

// DeleteRecent removes one recency entry; missing entries are ignored.
func (r *SQLiteRepo) DeleteRecent(ctx context.Context, userID, reminderID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM recent_reminders WHERE user_id = ? AND reminder_id = ?`, userID, reminderID)
	return err
}

// GetPreference reads a preference; ok is false when the key was never set.
func (r *SQLiteRepo) GetPreference(ctx context.Context, userID, key string) (string, bool, error) {
	var v string
	err := r.db.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE user_id = ? AND key = ?`, userID, key,
	).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

// SetPreference stores a preference value.
func (r *SQLiteRepo) SetPreference(ctx context.Context, userID, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO preferences (user_id, key, value) VALUES (?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value`,
		userID, key, value,
	)
	return err
}
