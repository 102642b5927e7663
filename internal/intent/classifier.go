package intent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/nuance/internal/anthropic"
	"github.com/MikeSquared-Agency/nuance/internal/prompts"
)

const aiMaxTokens = 20

// AI is the completion capability the classifier needs for ambiguous input.
type AI interface {
	Complete(ctx context.Context, system string, messages []anthropic.Message, maxTokens int) (anthropic.Completion, error)
}

// Action verbs that strongly indicate capture intent.
var actionStarters = map[string]bool{
	"buy": true, "call": true, "send": true, "email": true, "write": true,
	"do": true, "finish": true, "complete": true, "submit": true,
	"schedule": true, "book": true, "order": true, "pick": true, "get": true,
	"make": true, "create": true, "fix": true, "update": true, "review": true,
	"prepare": true, "clean": true, "organize": true, "pay": true,
	"cancel": true, "renew": true, "return": true, "check": true,
	"reply": true, "respond": true, "follow": true,
}

// Emotional/stuck indicators for coaching intent.
var coachingSignals = []string{
	"can't", "cannot", "stuck", "overwhelmed", "anxious", "scared",
	"don't know", "frustrated", "confused", "lost", "paralyzed",
	"procrastinating", "avoiding", "dreading", "hate", "impossible",
	"too much", "too hard", "help me", "what do i do", "why can't i",
}

var capturePrefixes = []string{"add:", "add ", "todo:", "task:"}

// Classifier decides how a user message should be routed. Obvious cases are
// matched by heuristics without an API call; only ambiguous input reaches
// the model.
type Classifier struct {
	ai       AI
	registry *prompts.Registry
	logger   *slog.Logger
}

func NewClassifier(ai AI, registry *prompts.Registry, logger *slog.Logger) *Classifier {
	return &Classifier{ai: ai, registry: registry, logger: logger}
}

// Classify returns the intent of a user message. It never fails: when the AI
// path errors the result falls back to capture at low confidence, since
// attempting extraction is safer than dropping the message.
func (c *Classifier) Classify(ctx context.Context, text string) Result {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)

	if strings.HasPrefix(trimmed, "/") {
		c.logger.Debug("intent: command prefix", "text", truncate(trimmed, 50))
		return Result{Intent: Command, Confidence: 1.0, Reasoning: "Message starts with /"}
	}

	if first := firstWord(lower); first != "" && actionStarters[first] {
		c.logger.Debug("intent: capture action verb", "text", truncate(trimmed, 50))
		return Result{Intent: Capture, Confidence: 0.95, Reasoning: "Starts with action verb: " + first}
	}

	for _, p := range capturePrefixes {
		if strings.HasPrefix(lower, p) {
			c.logger.Debug("intent: capture add prefix", "text", truncate(trimmed, 50))
			return Result{Intent: Capture, Confidence: 0.98, Reasoning: "Explicit add/todo prefix"}
		}
	}

	for _, signal := range coachingSignals {
		if strings.Contains(lower, signal) {
			c.logger.Debug("intent: coaching signals", "text", truncate(trimmed, 50))
			return Result{Intent: Coaching, Confidence: 0.90, Reasoning: "Emotional/stuck signals detected"}
		}
	}

	return c.aiClassify(ctx, text)
}

func (c *Classifier) aiClassify(ctx context.Context, text string) Result {
	prompt, err := c.registry.Get("intent")
	if err != nil {
		return Result{
			Intent:     Capture,
			Confidence: 0.5,
			Reasoning:  fmt.Sprintf("Classification failed, defaulting to capture: %v", err),
		}
	}

	c.logger.Debug("ai classifying intent", "text", truncate(text, 100), "prompt_version", prompt.Version)

	comp, err := c.ai.Complete(ctx, prompt.Content, []anthropic.Message{{Role: "user", Content: text}}, aiMaxTokens)
	if err != nil {
		c.logger.Error("ai intent classification failed", "error", err)
		return Result{
			Intent:     Capture,
			Confidence: 0.5,
			Reasoning:  fmt.Sprintf("Classification failed, defaulting to capture: %v", err),
		}
	}

	parsed, ok := ParseIntent(comp.Content)
	if !ok {
		c.logger.Warn("unexpected intent response", "response", truncate(comp.Content, 50))
		return Result{
			Intent:     Capture,
			Confidence: 0.5,
			Reasoning:  "Unexpected intent response, defaulting to capture",
		}
	}

	c.logger.Info("ai classified intent", "text", truncate(text, 50), "intent", string(parsed))
	return Result{
		Intent:     parsed,
		Confidence: 0.85,
		Reasoning:  "AI classified as " + string(parsed),
	}
}

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
