package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/benfogiel/Sparkpad/internal/domain"
)

// Collection layout shared with the mobile app.
const (
	usersCollection    = "users"
	remindersSub       = "reminders"
	recentRemindersSub = "recentReminders"
)

// FirestoreRepo implements Repo on top of Cloud Firestore.
type FirestoreRepo struct {
	client *firestore.Client
}

var _ Repo = (*FirestoreRepo)(nil)

// NewFirestoreRepo wraps an initialized Firestore client.
func NewFirestoreRepo(client *firestore.Client) *FirestoreRepo {
	return &FirestoreRepo{client: client}
}

// userDoc mirrors users/{uid}.
type userDoc struct {
	FirstName             string     `firestore:"firstName,omitempty"`
	Timezone              string     `firestore:"timezone,omitempty"`
	TimeLower             string     `firestore:"timeLower,omitempty"`
	TimeUpper             string     `firestore:"timeUpper,omitempty"`
	FCMToken              string     `firestore:"fcmToken,omitempty"`
	SelectedCategories    []string   `firestore:"selectedCategories,omitempty"`
	LastNotificationDate  *time.Time `firestore:"lastNotificationDate,omitempty"`
	ScheduledReminderTime *time.Time `firestore:"scheduledReminderTime,omitempty"`
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

// Close closes the Firestore client.
func (r *FirestoreRepo) Close() error {
	return r.client.Close()
}

// ListUserIDs returns the ids of all user documents.
func (r *FirestoreRepo) ListUserIDs(ctx context.Context) ([]string, error) {
	iter := r.client.Collection(usersCollection).DocumentRefs(ctx)
	var ids []string
	for {
		ref, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		ids = append(ids, ref.ID)
	}
	return ids, nil
}

// GetUser retrieves a user document by id.
func (r *FirestoreRepo) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	doc, err := r.client.Collection(usersCollection).Doc(userID).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
		}
		return nil, err
	}

	var d userDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", userID, err)
	}
	return &domain.User{
		ID:                    doc.Ref.ID,
		Timezone:              d.Timezone,
		TimeLower:             d.TimeLower,
		TimeUpper:             d.TimeUpper,
		FCMToken:              d.FCMToken,
		SelectedCategories:    d.SelectedCategories,
		LastNotificationDate:  d.LastNotificationDate,
		ScheduledReminderTime: d.ScheduledReminderTime,
	}, nil
}

// UpdateUser updates the non-nil fields of upd.
func (r *FirestoreRepo) UpdateUser(ctx context.Context, userID string, upd domain.UserUpdate) error {
	var updates []firestore.Update
	if upd.LastNotificationDate != nil {
		updates = append(updates, firestore.Update{Path: "lastNotificationDate", Value: *upd.LastNotificationDate})
	}
	if upd.ScheduledReminderTime != nil {
		updates = append(updates, firestore.Update{Path: "scheduledReminderTime", Value: *upd.ScheduledReminderTime})
	}
	if len(updates) == 0 {
		return nil
	}
	_, err := r.client.Collection(usersCollection).Doc(userID).Update(ctx, updates)
	if isNotFound(err) {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return err
}

func (r *FirestoreRepo) sub(userID, name string) *firestore.CollectionRef {
	return r.client.Collection(usersCollection).Doc(userID).Collection(name)
}

// ListReminders returns all documents of users/{uid}/reminders.
func (r *FirestoreRepo) ListReminders(ctx context.Context, userID string) ([]domain.Reminder, error) {
	iter := r.sub(userID, remindersSub).Documents(ctx)
	defer iter.Stop()

	var res []domain.Reminder
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		var rm domain.Reminder
		if err := doc.DataTo(&rm); err != nil {
			return nil, fmt.Errorf("decode reminder %s: %w", doc.Ref.ID, err)
		}
		if rm.ID == "" {
			rm.ID = doc.Ref.ID
		}
		res = append(res, rm)
	}
	return res, nil
}

// AddReminder writes users/{uid}/reminders/{id}.
func (r *FirestoreRepo) AddReminder(ctx context.Context, userID string, rm domain.Reminder) error {
	_, err := r.sub(userID, remindersSub).Doc(rm.ID).Set(ctx, rm)
	return err
}

// DeleteReminder deletes users/{uid}/reminders/{id}.
func (r *FirestoreRepo) DeleteReminder(ctx context.Context, userID, reminderID string) error {
	_, err := r.sub(userID, remindersSub).Doc(reminderID).Delete(ctx)
	return err
}

// ListRecent returns users/{uid}/recentReminders ordered by remindedAt.
func (r *FirestoreRepo) ListRecent(ctx context.Context, userID string) ([]domain.RecentReminder, error) {
	iter := r.sub(userID, recentRemindersSub).OrderBy("remindedAt", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var res []domain.RecentReminder
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		var rr domain.RecentReminder
		if err := doc.DataTo(&rr); err != nil {
			return nil, fmt.Errorf("decode recent reminder %s: %w", doc.Ref.ID, err)
		}
		res = append(res, rr)
	}
	return res, nil
}

// PutRecent writes users/{uid}/recentReminders/{reminderId}, replacing any previous entry.
func (r *FirestoreRepo) PutRecent(ctx context.Context, userID string, rr domain.RecentReminder) error {
	_, err := r.sub(userID, recentRemindersSub).Doc(rr.Reminder.ID).Set(ctx, rr)
	return err
}

// DeleteRecent deletes users/{uid}/recentReminders/{reminderId}.
func (r *FirestoreRepo) DeleteRecent(ctx context.Context, userID, reminderID string) error {
	_, err := r.sub(userID, recentRemindersSub).Doc(reminderID).Delete(ctx)
	return err
}
