package services

import (
	"context"
	"fmt"
	"sync"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	appConfig "github.com/cabby-rentals/cabby-api/config"
	"google.golang.org/api/option"
)

// PushSender delivers one push notification to a device
type PushSender interface {
	Send(ctx context.Context, deviceToken, title, body string, data map[string]string) error
}

// FCMPushSender sends push notifications through Firebase Cloud Messaging
type FCMPushSender struct {
	client *messaging.Client
}

var pushSenderInstance PushSender

// InitPushSender initializes the FCM-backed push sender using the Firebase
// Admin SDK. If credentialsFile is empty, application-default credentials
// are used.
func InitPushSender(ctx context.Context) (PushSender, error) {
	cfg := appConfig.GetConfig()

	opts := []option.ClientOption{}
	if cfg.FirebaseCredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.FirebaseCredentialsFile))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.FirebaseProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firebase.NewApp: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase app.Messaging: %w", err)
	}

	pushSenderInstance = &FCMPushSender{client: client}
	return pushSenderInstance, nil
}

// GetPushSender returns the push sender instance
func GetPushSender() PushSender {
	return pushSenderInstance
}

// SetPushSender sets the push sender instance (primarily for testing)
func SetPushSender(sender PushSender) {
	pushSenderInstance = sender
}

// Send delivers one push message to a device token
func (s *FCMPushSender) Send(ctx context.Context, deviceToken, title, body string, data map[string]string) error {
	_, err := s.client.Send(ctx, &messaging.Message{
		Token: deviceToken,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	})
	if err != nil {
		return fmt.Errorf("fcm send failed: %w", err)
	}
	return nil
}

// PushedMessage records one push delivery in the mock
type PushedMessage struct {
	DeviceToken string
	Title       string
	Body        string
	Data        map[string]string
}

// MockPushSender records push messages for test assertions
type MockPushSender struct {
	messages []PushedMessage
	mu       sync.Mutex
}

// NewMockPushSender creates a new mock push sender
func NewMockPushSender() *MockPushSender {
	return &MockPushSender{}
}

// SetAsMockForTesting sets this mock as the global push sender instance
func (m *MockPushSender) SetAsMockForTesting() {
	SetPushSender(m)
}

// Send records the message instead of delivering it
func (m *MockPushSender) Send(ctx context.Context, deviceToken, title, body string, data map[string]string) error {
	m.mu.Lock()
	m.messages = append(m.messages, PushedMessage{DeviceToken: deviceToken, Title: title, Body: body, Data: data})
	m.mu.Unlock()
	return nil
}

// Pushed returns a copy of the recorded messages
func (m *MockPushSender) Pushed() []PushedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]PushedMessage, len(m.messages))
	copy(out, m.messages)
	return out
}
