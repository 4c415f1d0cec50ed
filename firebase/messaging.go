package firebase

import (
	"context"
	"fmt"

	"firebase.google.com/go/messaging"
)

// PushClient abstracts FCM delivery for dependency injection and testing.
type PushClient interface {
	SendToToken(ctx context.Context, token, title, body string, data map[string]string) error
}

// FCMClient is the real implementation backed by the Firebase app.
type FCMClient struct{}

func NewPushClient() PushClient {
	return &FCMClient{}
}

func (f *FCMClient) SendToToken(ctx context.Context, token, title, body string, data map[string]string) error {
	if App == nil {
		return fmt.Errorf("firebase app not initialized")
	}
	client, err := App.Messaging(ctx)
	if err != nil {
		return err
	}
	_, err = client.Send(ctx, &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	})
	return err
}
