package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/nuance/internal/extraction"
	"github.com/MikeSquared-Agency/nuance/internal/hermes"
	"github.com/MikeSquared-Agency/nuance/internal/router"
	"github.com/MikeSquared-Agency/nuance/internal/store"
)

// IntentLog appends routed outcomes to the audit log.
type IntentLog interface {
	LogIntent(ctx context.Context, entry store.IntentLogEntry) (uuid.UUID, error)
}

// ActionStore persists captured actions.
type ActionStore interface {
	SaveActions(ctx context.Context, userID string, actions []extraction.EnrichedAction) ([]uuid.UUID, error)
}

// Publisher emits events onto the message bus.
type Publisher interface {
	Publish(subject string, data any) error
}

// Recorder runs the after-response bookkeeping for routed messages: the
// intent audit log, action persistence, and bus announcements. Every step
// is best-effort; failures are logged and never surface to the caller.
// Any nil dependency is skipped.
type Recorder struct {
	intents IntentLog
	actions ActionStore
	bus     Publisher
	logger  *slog.Logger
}

func NewRecorder(intents IntentLog, actions ActionStore, bus Publisher, logger *slog.Logger) *Recorder {
	return &Recorder{
		intents: intents,
		actions: actions,
		bus:     bus,
		logger:  logger,
	}
}

// Record logs, persists, and announces one routed response.
func (rec *Recorder) Record(ctx context.Context, requestID, userID, rawInput string, resp router.Response, elapsed time.Duration) {
	entry := store.IntentLogEntry{
		UserID:           userID,
		RawInput:         rawInput,
		Intent:           string(resp.Intent),
		Confidence:       resp.IntentConfidence,
		ResponseType:     resp.ResponseType,
		ProcessingTimeMS: elapsed.Milliseconds(),
	}
	if resp.Extraction != nil {
		entry.ActionCount = len(resp.Extraction.Actions)
		entry.OverallConfidence = resp.Extraction.OverallConfidence
		entry.NeedsValidation = resp.Extraction.NeedsValidation
	}

	if rec.intents != nil {
		if _, err := rec.intents.LogIntent(ctx, entry); err != nil {
			rec.logger.Error("failed to log intent", "request_id", requestID, "error", err)
		}
	}

	rec.publish(hermes.SubjectIntentClassified, hermes.IntentClassified{
		RequestID:  requestID,
		UserID:     userID,
		Intent:     string(resp.Intent),
		Confidence: resp.IntentConfidence,
		Source:     "api",
	})

	rec.persistCapture(ctx, requestID, userID, resp)
}

func (rec *Recorder) persistCapture(ctx context.Context, requestID, userID string, resp router.Response) {
	if resp.Extraction == nil || len(resp.Extraction.Actions) == 0 {
		return
	}
	if rec.actions == nil {
		return
	}

	ids, err := rec.actions.SaveActions(ctx, userID, resp.Extraction.Actions)
	if err != nil {
		rec.logger.Error("failed to persist actions", "request_id", requestID, "error", err)
		return
	}
	if len(ids) == 0 {
		return
	}

	strIDs := make([]string, len(ids))
	for i, id := range ids {
		strIDs[i] = id.String()
	}

	rec.publish(hermes.SubjectCaptureCreated, hermes.CaptureCreated{
		RequestID:       requestID,
		UserID:          userID,
		ActionIDs:       strIDs,
		ActionCount:     len(strIDs),
		NeedsValidation: resp.Extraction.NeedsValidation,
	})
}

func (rec *Recorder) publish(subject string, payload any) {
	if rec.bus == nil {
		return
	}
	if err := rec.bus.Publish(subject, payload); err != nil {
		rec.logger.Error("failed to publish", "subject", subject, "error", err)
	}
}
