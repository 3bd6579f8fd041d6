package dispatch

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Outcome classifies what happened to one user in one invocation.
type Outcome string

const (
	OutcomeSent            Outcome = "sent"
	OutcomeAlreadyNotified Outcome = "already_notified"
	OutcomeNotDue          Outcome = "not_due"
	OutcomeNoToken         Outcome = "no_token"
	OutcomeNoReminders     Outcome = "no_reminders"
	OutcomeInvalidConfig   Outcome = "invalid_config"
	OutcomeSendFailed      Outcome = "send_failed"
	OutcomeError           Outcome = "error"
	OutcomeInFlight        Outcome = "in_flight"
)

// Summary aggregates one batch.
type Summary struct {
	RunID    string
	Users    int
	Counts   map[Outcome]int
	Duration time.Duration
}

// Count returns the number of users that ended with o.
func (s Summary) Count(o Outcome) int {
	return s.Counts[o]
}

// String renders counts in a stable order, e.g. "not_due=3 sent=1".
func (s Summary) String() string {
	keys := make([]string, 0, len(s.Counts))
	for o := range s.Counts {
		keys = append(keys, string(o))
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strconv.Itoa(s.Counts[Outcome(k)]))
	}
	return b.String()
}
