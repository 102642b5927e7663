package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// Subjects for the Nuance message flow.
const (
	// SubjectProcessRequest carries inbound messages to route.
	SubjectProcessRequest = "nuance.process.request"
	// SubjectProcessResult carries the routed response envelope back out.
	SubjectProcessResult = "nuance.process.result"
	// SubjectCaptureCreated announces persisted captures.
	SubjectCaptureCreated = "nuance.capture.created"
	// SubjectIntentClassified is the classification audit trail.
	SubjectIntentClassified = "nuance.intent.classified"
)

// IntentClassified is emitted for every routed message, recording how it was
// classified before dispatch.
type IntentClassified struct {
	RequestID  string  `json:"request_id"`
	UserID     string  `json:"user_id"`
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// CaptureCreated is emitted after captured actions are persisted.
type CaptureCreated struct {
	RequestID       string   `json:"request_id"`
	UserID          string   `json:"user_id"`
	ActionIDs       []string `json:"action_ids"`
	ActionCount     int      `json:"action_count"`
	NeedsValidation bool     `json:"needs_validation"`
}

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}
