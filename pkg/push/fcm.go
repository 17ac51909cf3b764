package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// FCMNotifier fans a message out to the user's device tokens over the FCM
// HTTP API, one request per token. Partial failures are logged and folded
// into a single error so the caller can record the attempt.
type FCMNotifier struct {
	endpoint   string
	serverKey  string
	tokens     TokenSource
	httpClient *http.Client
}

func NewFCMNotifier(endpoint, serverKey string, tokens TokenSource, timeout time.Duration) *FCMNotifier {
	return &FCMNotifier{
		endpoint:   endpoint,
		serverKey:  serverKey,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type fcmPayload struct {
	To           string            `json:"to"`
	Notification fcmNotification   `json:"notification"`
	Data         map[string]string `json:"data,omitempty"`
}

type fcmNotification struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (n *FCMNotifier) Send(ctx context.Context, userID int64, msg Message) error {
	tokens, err := n.tokens.GetActiveTokens(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to resolve device tokens: %w", err)
	}

	if len(tokens) == 0 {
		logrus.WithField("user_id", userID).Debug("User has no registered devices")
		return nil
	}

	failed := 0
	for _, token := range tokens {
		if err := n.sendToToken(ctx, token, msg); err != nil {
			logrus.WithFields(logrus.Fields{
				"user_id": userID,
			}).Warnf("Push delivery to device failed: %v", err)
			failed++
		}
	}

	if failed == len(tokens) {
		return fmt.Errorf("push delivery failed for all %d devices", failed)
	}
	return nil
}

func (n *FCMNotifier) sendToToken(ctx context.Context, token string, msg Message) error {
	payload := fcmPayload{
		To: token,
		Notification: fcmNotification{
			Title: msg.Title,
			Body:  msg.Body,
		},
		Data: msg.Data,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "key="+n.serverKey)

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("FCM API error: %s", resp.Status)
	}

	return nil
}
