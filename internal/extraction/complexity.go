package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MikeSquared-Agency/nuance/internal/anthropic"
	"github.com/MikeSquared-Agency/nuance/internal/prompts"
)

// fastPathMinutes is the estimate at or under which a task is atomic without
// consulting the model.
const fastPathMinutes = 20

// ComplexityClassifier decides whether a task is doable in one sitting or
// should be offered a breakdown first.
type ComplexityClassifier struct {
	ai       AI
	registry *prompts.Registry
	logger   *slog.Logger
}

func NewComplexityClassifier(ai AI, registry *prompts.Registry, logger *slog.Logger) *ComplexityClassifier {
	return &ComplexityClassifier{ai: ai, registry: registry, logger: logger}
}

// Classify determines task complexity. Short tasks skip the AI call; on
// unparseable model output the classification defaults by time, composite
// past the hour mark. Non-atomic results always set needs_breakdown.
func (c *ComplexityClassifier) Classify(ctx context.Context, title string, estimatedMinutes int) (ComplexityAnalysis, error) {
	if estimatedMinutes <= fastPathMinutes {
		c.logger.Debug("fast-path atomic classification", "title", title, "estimated_minutes", estimatedMinutes)
		return ComplexityAnalysis{
			Complexity:     ComplexityAtomic,
			SuggestedSteps: 1,
			NeedsBreakdown: false,
			Reasoning:      fmt.Sprintf("Short task (%d min) - atomic by default", estimatedMinutes),
		}, nil
	}

	prompt, err := c.registry.Get("complexity")
	if err != nil {
		return ComplexityAnalysis{}, fmt.Errorf("complexity prompt: %w", err)
	}

	text := fmt.Sprintf("Task: %s (estimated %d minutes)", title, estimatedMinutes)

	c.logger.Debug("classifying complexity", "title", title, "estimated_minutes", estimatedMinutes, "prompt_version", prompt.Version)

	var result ComplexityAnalysis
	if err := c.ai.ExtractInto(ctx, prompt.Content, text, &result); err != nil {
		var extErr *anthropic.ExtractionError
		if !errors.As(err, &extErr) {
			return ComplexityAnalysis{}, err
		}
		c.logger.Error("complexity classification failed", "error", err, "title", title)
		return timeDefault(estimatedMinutes, extErr.Err), nil
	}

	if err := result.validate(); err != nil {
		c.logger.Error("complexity classification failed", "error", err, "title", title)
		return timeDefault(estimatedMinutes, err), nil
	}

	if result.Complexity != ComplexityAtomic && !result.NeedsBreakdown {
		result.NeedsBreakdown = true
	}

	c.logger.Info("complexity classified", "title", title, "complexity", string(result.Complexity), "needs_breakdown", result.NeedsBreakdown)
	return result, nil
}

func timeDefault(estimatedMinutes int, cause error) ComplexityAnalysis {
	a := ComplexityAnalysis{
		Complexity:     ComplexityAtomic,
		SuggestedSteps: 1,
		Reasoning:      fmt.Sprintf("Classification failed, defaulting based on time: %v", cause),
	}
	if estimatedMinutes > 60 {
		a.Complexity = ComplexityComposite
		a.SuggestedSteps = 3
		a.NeedsBreakdown = true
	}
	return a
}
