// Package notify delivers trade event messages to the operator.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// DefaultLINEEndpoint is the LINE Messaging API push endpoint.
const DefaultLINEEndpoint = "https://api.line.me/v2/bot/message/push"

// Notifier pushes a human-readable message. Delivery is best-effort:
// the trading cycle logs and swallows notifier errors.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// LINEClient pushes messages to a single LINE user.
type LINEClient struct {
	endpoint     string
	channelToken string
	userID       string
	client       *http.Client
}

// NewLINEClient creates a LINE push notifier. An empty endpoint uses the
// public API.
func NewLINEClient(channelToken, userID, endpoint string) *LINEClient {
	if endpoint == "" {
		endpoint = DefaultLINEEndpoint
	}
	return &LINEClient{
		endpoint:     endpoint,
		channelToken: channelToken,
		userID:       userID,
		client:       &http.Client{Timeout: 10 * time.Second},
	}
}

type linePushRequest struct {
	To       string        `json:"to"`
	Messages []lineMessage `json:"messages"`
}

type lineMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Notify pushes one text message.
func (c *LINEClient) Notify(ctx context.Context, message string) error {
	body, err := json.Marshal(linePushRequest{
		To:       c.userID,
		Messages: []lineMessage{{Type: "text", Text: message}},
	})
	if err != nil {
		return fmt.Errorf("marshal push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.channelToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("push message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("push rejected with status %d: %s", resp.StatusCode, respBody)
	}
	return nil
}

// LogNotifier writes messages to the process log. Used when LINE
// credentials are not configured.
type LogNotifier struct {
	log *log.Logger
}

// NewLogNotifier creates a log-only notifier.
func NewLogNotifier(logger *log.Logger) *LogNotifier {
	return &LogNotifier{log: logger}
}

// Notify logs the message.
func (n *LogNotifier) Notify(ctx context.Context, message string) error {
	n.log.Printf("notification: %s", message)
	return nil
}
