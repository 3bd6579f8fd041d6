package domain

import "sort"

// DefaultMaxRecent bounds the recency history per user.
const DefaultMaxRecent = 10

// SortRecent orders entries by RemindedAt ascending, ties by reminder id.
func SortRecent(entries []RecentReminder) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if !a.RemindedAt.Equal(b.RemindedAt) {
			return a.RemindedAt.Before(b.RemindedAt)
		}
		return a.Reminder.ID < b.Reminder.ID
	})
}

// SplitOverflow sorts entries and splits them into the oldest ones exceeding
// max (to evict) and the ones to keep.
func SplitOverflow(entries []RecentReminder, max int) (evict, keep []RecentReminder) {
	SortRecent(entries)
	if max < 0 {
		max = 0
	}
	if len(entries) <= max {
		return nil, entries
	}
	n := len(entries) - max
	return entries[:n], entries[n:]
}
