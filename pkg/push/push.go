// Package push delivers best-effort notifications to a user's registered
// devices. Failures are reported per attempt and never block the caller's
// control flow.
package push

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Message is one notification payload.
type Message struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Notifier sends a message to every device registered by the user.
// Zero registered devices is a successful delivery.
type Notifier interface {
	Send(ctx context.Context, userID int64, msg Message) error
}

// TokenSource resolves a user's active device tokens.
type TokenSource interface {
	GetActiveTokens(ctx context.Context, userID int64) ([]string, error)
}

// LogNotifier writes messages to the log instead of delivering them.
// Used when push is disabled in config.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(_ context.Context, userID int64, msg Message) error {
	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"title":   msg.Title,
	}).Info("Push disabled, logging notification instead")
	return nil
}
