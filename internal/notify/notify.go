package notify

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/option"
)

// BroadcastTopic is the topic every installed client subscribes to.
const BroadcastTopic = "attendance_notifications"

// Sender dispatches one notification. An empty token means broadcast to the
// topic. Transport failures propagate to the caller — the orchestration
// layer decides how to present them, nothing here retries or swallows.
type Sender interface {
	Send(ctx context.Context, title, body, token string) error
}

// FCM sends through Firebase Cloud Messaging.
type FCM struct {
	client *messaging.Client
	topic  string
}

// NewFCM initializes an FCM sender from a service-account credentials file.
func NewFCM(ctx context.Context, credentialsFile, topic string) (*FCM, error) {
	if topic == "" {
		topic = BroadcastTopic
	}
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("initialize firebase: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialize messaging: %w", err)
	}
	return &FCM{client: client, topic: topic}, nil
}

// Send dispatches to the given device token, or to the broadcast topic when
// token is empty.
func (f *FCM) Send(ctx context.Context, title, body, token string) error {
	msg := &messaging.Message{
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
	}
	if token != "" {
		msg.Token = token
	} else {
		msg.Topic = f.topic
	}
	if _, err := f.client.Send(ctx, msg); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

// LogSender logs notifications instead of delivering them. Used when no
// Firebase credentials are configured, so a machine without a service
// account still runs the full pipeline.
type LogSender struct {
	Log *logrus.Logger
}

// Send logs the would-be notification.
func (s *LogSender) Send(_ context.Context, title, body, token string) error {
	target := "topic:" + BroadcastTopic
	if token != "" {
		target = "token:" + token
	}
	s.Log.WithFields(logrus.Fields{
		"title":  title,
		"body":   body,
		"target": target,
	}).Info("notification (dry run, no FCM credentials)")
	return nil
}
