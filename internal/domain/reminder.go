package domain

import "time"

// Reminder is a user-authored quote that can be delivered as a notification.
type Reminder struct {
	ID       string `firestore:"id" json:"id"`
	Quote    string `firestore:"quote" json:"quote"`
	Category string `firestore:"category" json:"category"`
}

// RecentReminder is a snapshot of a delivered reminder and when it was delivered.
type RecentReminder struct {
	Reminder   Reminder  `firestore:"reminder" json:"reminder"`
	RemindedAt time.Time `firestore:"remindedAt" json:"remindedAt"`
}
