package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/MikeSquared-Agency/nuance/internal/anthropic"
	"github.com/MikeSquared-Agency/nuance/internal/prompts"
)

// Extractor turns free-form input into structured actions.
type Extractor struct {
	ai       AI
	registry *prompts.Registry
	logger   *slog.Logger
}

func NewExtractor(ai AI, registry *prompts.Registry, logger *slog.Logger) *Extractor {
	return &Extractor{ai: ai, registry: registry, logger: logger}
}

// Extract identifies distinct actions in the text. Empty input and model
// responses that fail to parse both produce an empty result with a named
// ambiguity; only provider failures return an error.
func (e *Extractor) Extract(ctx context.Context, text string) (Result, error) {
	if strings.TrimSpace(text) == "" {
		e.logger.Warn("empty text provided for extraction")
		return Result{Actions: []Action{}, Ambiguities: []string{"No input provided"}}, nil
	}

	prompt, err := e.registry.Get("extraction")
	if err != nil {
		return Result{}, fmt.Errorf("extraction prompt: %w", err)
	}

	e.logger.Debug("extracting actions", "text_length", len(text), "prompt_version", prompt.Version)

	var result Result
	if err := e.ai.ExtractInto(ctx, prompt.Content, text, &result); err != nil {
		var extErr *anthropic.ExtractionError
		if !errors.As(err, &extErr) {
			return Result{}, err
		}
		e.logger.Error("action extraction failed", "error", err, "text", truncate(text, 100))
		return Result{
			Actions:     []Action{},
			Ambiguities: []string{fmt.Sprintf("Failed to parse response: %v", extErr.Err)},
		}, nil
	}

	if err := result.validate(); err != nil {
		e.logger.Error("action extraction failed", "error", err, "text", truncate(text, 100))
		return Result{
			Actions:     []Action{},
			Ambiguities: []string{fmt.Sprintf("Failed to parse response: %v", err)},
		}, nil
	}

	e.logger.Info("actions extracted", "action_count", len(result.Actions), "confidence", result.Confidence)
	return result, nil
}
