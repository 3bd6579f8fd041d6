package push

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
)

// FCM sends through Firebase Cloud Messaging.
type FCM struct {
	client *messaging.Client
}

// NewFCM creates the messaging client from an initialized Firebase app.
func NewFCM(ctx context.Context, app *firebase.App) (*FCM, error) {
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("messaging client: %w", err)
	}
	return &FCM{client: client}, nil
}

func (f *FCM) Send(ctx context.Context, token string, msg Message) error {
	if token == "" {
		return ErrEmptyToken
	}
	if _, err := f.client.Send(ctx, fcmMessage(token, msg)); err != nil {
		return fmt.Errorf("fcm send: %w", err)
	}
	return nil
}

func fcmMessage(token string, msg Message) *messaging.Message {
	return &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
		Android: &messaging.AndroidConfig{
			Priority: "high",
			Notification: &messaging.AndroidNotification{
				Sound: "default",
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Sound: "default",
				},
			},
		},
	}
}
