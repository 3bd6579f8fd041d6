package domain

// SelectReminder picks one reminder for delivery.
//
// Candidates are narrowed first to the selected categories, then to reminders
// not in recent. A narrowing step that would leave nothing is skipped, so
// ErrNoReminders is returned only when all is empty.
func SelectReminder(all []Reminder, categories []string, recent []RecentReminder, intn func(int) int) (Reminder, error) {
	exclude := make(map[string]struct{}, len(recent))
	for _, r := range recent {
		exclude[r.Reminder.ID] = struct{}{}
	}
	return SelectExcluding(all, categories, exclude, intn)
}

// SelectExcluding is SelectReminder with an arbitrary set of ids to avoid.
func SelectExcluding(all []Reminder, categories []string, exclude map[string]struct{}, intn func(int) int) (Reminder, error) {
	if len(all) == 0 {
		return Reminder{}, ErrNoReminders
	}

	candidates := all
	if len(categories) > 0 {
		selected := make(map[string]struct{}, len(categories))
		for _, c := range categories {
			selected[c] = struct{}{}
		}
		candidates = narrow(candidates, func(r Reminder) bool {
			_, ok := selected[r.Category]
			return ok
		})
	}

	if len(exclude) > 0 {
		candidates = narrow(candidates, func(r Reminder) bool {
			_, seen := exclude[r.ID]
			return !seen
		})
	}

	return candidates[intn(len(candidates))], nil
}

// narrow keeps the reminders matching keep, or returns in unchanged if none match.
func narrow(in []Reminder, keep func(Reminder) bool) []Reminder {
	out := make([]Reminder, 0, len(in))
	for _, r := range in {
		if keep(r) {
			out = append(out, r)
		}
	}
	if len(out) == 0 {
		return in
	}
	return out
}
