package router

import (
	"context"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/nuance/internal/command"
	"github.com/MikeSquared-Agency/nuance/internal/extraction"
	"github.com/MikeSquared-Agency/nuance/internal/intent"
)

// Classifier decides which handler a message belongs to.
type Classifier interface {
	Classify(ctx context.Context, text string) intent.Result
}

// Extractor runs the capture pipeline.
type Extractor interface {
	Extract(ctx context.Context, text string) (extraction.OrchestrationResult, error)
}

// Coach produces supportive conversational replies.
type Coach interface {
	Process(ctx context.Context, message, userID, taskID, taskTitle string) string
	Stream(ctx context.Context, message, userID, taskID, taskTitle string, onDelta func(string)) string
}

// Commander executes slash commands.
type Commander interface {
	Process(text, userID string) command.Response
}

// Response is the unified reply for one routed message. Exactly one payload
// field is populated, agreeing with ResponseType.
type Response struct {
	Intent           intent.Intent                   `json:"intent"`
	IntentConfidence float64                         `json:"intent_confidence"`
	ResponseType     string                          `json:"response_type"`
	Extraction       *extraction.OrchestrationResult `json:"extraction,omitempty"`
	CoachingResponse string                          `json:"coaching_response,omitempty"`
	CommandResponse  *command.Response               `json:"command_response,omitempty"`
}

// Router classifies each message and dispatches it to extraction, coaching,
// or the command handler.
type Router struct {
	classifier Classifier
	extractor  Extractor
	coach      Coach
	commands   Commander
	logger     *slog.Logger
}

func New(classifier Classifier, extractor Extractor, coach Coach, commands Commander, logger *slog.Logger) *Router {
	return &Router{
		classifier: classifier,
		extractor:  extractor,
		coach:      coach,
		commands:   commands,
		logger:     logger,
	}
}

// Route classifies the message and hands it to the matching handler. Empty
// input short-circuits to an empty capture result that needs validation.
func (r *Router) Route(ctx context.Context, text, userID, taskID, taskTitle string) (Response, error) {
	if strings.TrimSpace(text) == "" {
		r.logger.Warn("empty message received", "user_id", userID)
		return Response{
			Intent:           intent.Capture,
			IntentConfidence: 0,
			ResponseType:     "capture",
			Extraction: &extraction.OrchestrationResult{
				Actions:         []extraction.EnrichedAction{},
				RawInput:        "",
				NeedsValidation: true,
			},
		}, nil
	}

	result := r.classifier.Classify(ctx, text)
	r.logger.Info("intent classified",
		"intent", result.Intent,
		"confidence", result.Confidence,
		"user_id", userID,
	)

	return r.dispatch(ctx, text, userID, taskID, taskTitle, result)
}

// RouteWithIntent skips classification and dispatches with the given intent.
func (r *Router) RouteWithIntent(ctx context.Context, text string, in intent.Intent, userID, taskID, taskTitle string) (Response, error) {
	result := intent.Result{Intent: in, Confidence: 1.0, Reasoning: "Pre-classified intent"}
	return r.dispatch(ctx, text, userID, taskID, taskTitle, result)
}

// RouteClassified dispatches a message that was already classified,
// preserving the classifier's confidence on the response.
func (r *Router) RouteClassified(ctx context.Context, text, userID, taskID, taskTitle string, result intent.Result) (Response, error) {
	return r.dispatch(ctx, text, userID, taskID, taskTitle, result)
}

// StreamCoaching streams a coaching reply chunk by chunk, for the SSE
// endpoint. The conversation is recorded the same way Route's coaching arm
// records it.
func (r *Router) StreamCoaching(ctx context.Context, text, userID, taskID, taskTitle string, onDelta func(string)) string {
	return r.coach.Stream(ctx, text, userID, taskID, taskTitle, onDelta)
}

func (r *Router) dispatch(ctx context.Context, text, userID, taskID, taskTitle string, result intent.Result) (Response, error) {
	switch result.Intent {
	case intent.Capture:
		return r.handleCapture(ctx, text, userID, result)
	case intent.Coaching:
		return r.handleCoaching(ctx, text, userID, taskID, taskTitle, result)
	case intent.Command:
		return r.handleCommand(text, userID, result), nil
	default:
		// Clarify and anything unexpected take the capture path.
		r.logger.Warn("unknown intent, defaulting to capture", "intent", result.Intent)
		return r.handleCapture(ctx, text, userID, result)
	}
}

func (r *Router) handleCapture(ctx context.Context, text, userID string, result intent.Result) (Response, error) {
	r.logger.Debug("routing to extraction", "user_id", userID)

	extracted, err := r.extractor.Extract(ctx, text)
	if err != nil {
		return Response{}, err
	}

	r.logger.Info("capture complete",
		"user_id", userID,
		"action_count", len(extracted.Actions),
		"confidence", extracted.OverallConfidence,
	)

	return Response{
		Intent:           intent.Capture,
		IntentConfidence: result.Confidence,
		ResponseType:     "capture",
		Extraction:       &extracted,
	}, nil
}

func (r *Router) handleCoaching(ctx context.Context, text, userID, taskID, taskTitle string, result intent.Result) (Response, error) {
	r.logger.Debug("routing to coaching", "user_id", userID, "task_id", taskID)

	reply := r.coach.Process(ctx, text, userID, taskID, taskTitle)

	r.logger.Info("coaching complete", "user_id", userID, "response_length", len(reply))

	return Response{
		Intent:           intent.Coaching,
		IntentConfidence: result.Confidence,
		ResponseType:     "coaching",
		CoachingResponse: reply,
	}, nil
}

func (r *Router) handleCommand(text, userID string, result intent.Result) Response {
	r.logger.Debug("routing to command handler", "user_id", userID)

	resp := r.commands.Process(text, userID)

	r.logger.Info("command processed", "user_id", userID, "command", resp.Command)

	return Response{
		Intent:           intent.Command,
		IntentConfidence: result.Confidence,
		ResponseType:     "command",
		CommandResponse:  &resp,
	}
}
