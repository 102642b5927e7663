package ingest

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/nuance/internal/extraction"
	"github.com/MikeSquared-Agency/nuance/internal/hermes"
	"github.com/MikeSquared-Agency/nuance/internal/intent"
	"github.com/MikeSquared-Agency/nuance/internal/router"
)

// Router dispatches one message through the intent pipeline.
type Router interface {
	Route(ctx context.Context, text, userID, taskID, taskTitle string) (router.Response, error)
	RouteWithIntent(ctx context.Context, text string, in intent.Intent, userID, taskID, taskTitle string) (router.Response, error)
}

// Publisher emits events onto the message bus.
type Publisher interface {
	Publish(subject string, data any) error
}

// ActionStore persists captured actions.
type ActionStore interface {
	SaveActions(ctx context.Context, userID string, actions []extraction.EnrichedAction) ([]uuid.UUID, error)
}

// ProcessRequest is the payload carried on nuance.process.request.
type ProcessRequest struct {
	RequestID string `json:"request_id,omitempty"`
	Text      string `json:"text"`
	UserID    string `json:"user_id"`
	TaskID    string `json:"task_id,omitempty"`
	TaskTitle string `json:"task_title,omitempty"`
	Intent    string `json:"intent,omitempty"`
}

// ProcessResult is the envelope published to nuance.process.result. Error is
// set instead of Response when routing failed.
type ProcessResult struct {
	RequestID string           `json:"request_id"`
	UserID    string           `json:"user_id"`
	Response  *router.Response `json:"response,omitempty"`
	Error     string           `json:"error,omitempty"`
}

// Consumer handles inbound bus messages and routes them through the same
// pipeline the HTTP surface uses.
type Consumer struct {
	router Router
	store  ActionStore
	bus    Publisher
	logger *slog.Logger
}

func New(r Router, store ActionStore, bus Publisher, logger *slog.Logger) *Consumer {
	return &Consumer{
		router: r,
		store:  store,
		bus:    bus,
		logger: logger,
	}
}

// HandleProcessRequest is the NATS handler for nuance.process.request.
// Malformed payloads are logged and dropped; there is no requester to answer
// with a validation error.
func (c *Consumer) HandleProcessRequest(subject string, data []byte) {
	ctx := context.Background()

	var req ProcessRequest
	if err := json.Unmarshal(data, &req); err != nil {
		c.logger.Error("failed to parse process request", "error", err)
		return
	}

	if req.UserID == "" {
		c.logger.Error("process request missing user_id", "request_id", req.RequestID)
		return
	}

	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}

	c.logger.Info("processing bus request",
		"request_id", req.RequestID,
		"user_id", req.UserID,
		"preclassified", req.Intent != "",
	)

	resp, err := c.route(ctx, req)
	if err != nil {
		c.logger.Error("routing failed", "request_id", req.RequestID, "error", err)
		c.publish(hermes.SubjectProcessResult, ProcessResult{
			RequestID: req.RequestID,
			UserID:    req.UserID,
			Error:     err.Error(),
		})
		return
	}

	c.persistCapture(ctx, req, resp)

	c.publish(hermes.SubjectProcessResult, ProcessResult{
		RequestID: req.RequestID,
		UserID:    req.UserID,
		Response:  &resp,
	})

	c.logger.Info("bus request processed",
		"request_id", req.RequestID,
		"intent", resp.Intent,
		"response_type", resp.ResponseType,
	)
}

func (c *Consumer) route(ctx context.Context, req ProcessRequest) (router.Response, error) {
	if in, ok := intent.ParseIntent(req.Intent); ok {
		return c.router.RouteWithIntent(ctx, req.Text, in, req.UserID, req.TaskID, req.TaskTitle)
	}
	if req.Intent != "" {
		c.logger.Warn("unrecognized pre-classified intent, classifying instead",
			"request_id", req.RequestID,
			"intent", req.Intent,
		)
	}
	return c.router.Route(ctx, req.Text, req.UserID, req.TaskID, req.TaskTitle)
}

// persistCapture stores extracted actions and announces them. Persistence
// failures are logged, not fatal; the result envelope still goes out.
func (c *Consumer) persistCapture(ctx context.Context, req ProcessRequest, resp router.Response) {
	if resp.Extraction == nil || len(resp.Extraction.Actions) == 0 {
		return
	}

	if c.store == nil {
		return
	}

	ids, err := c.store.SaveActions(ctx, req.UserID, resp.Extraction.Actions)
	if err != nil {
		c.logger.Error("failed to persist actions", "request_id", req.RequestID, "error", err)
		return
	}
	if len(ids) == 0 {
		return
	}

	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}

	c.publish(hermes.SubjectCaptureCreated, hermes.CaptureCreated{
		RequestID:       req.RequestID,
		UserID:          req.UserID,
		ActionIDs:       strIDs,
		ActionCount:     len(strIDs),
		NeedsValidation: resp.Extraction.NeedsValidation,
	})
}

func (c *Consumer) publish(subject string, payload any) {
	if c.bus == nil {
		return
	}
	if err := c.bus.Publish(subject, payload); err != nil {
		c.logger.Error("failed to publish", "subject", subject, "error", err)
	}
}
