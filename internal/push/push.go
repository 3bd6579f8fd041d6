// Package push delivers reminder notifications to user devices.
package push

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// DefaultTitle is the notification title of every daily reminder.
const DefaultTitle = "Daily Reminder"

// Data keys carried with every reminder notification.
const (
	DataReminderID = "reminderId"
	DataTimestamp  = "timestamp"
)

// ErrEmptyToken is returned by transports asked to send without a device token.
var ErrEmptyToken = errors.New("empty push token")

// Message is a transport-neutral notification.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

// Transport sends a Message to a device token. Send returns after the
// transport accepted or rejected the message.
type Transport interface {
	Send(ctx context.Context, token string, msg Message) error
}

// NewReminderMessage builds the notification for a reminder sent at now.
func NewReminderMessage(title, reminderID, quote string, now time.Time) Message {
	if title == "" {
		title = DefaultTitle
	}
	return Message{
		Title: title,
		Body:  quote,
		Data: map[string]string{
			DataReminderID: reminderID,
			DataTimestamp:  strconv.FormatInt(now.UnixMilli(), 10),
		},
	}
}
