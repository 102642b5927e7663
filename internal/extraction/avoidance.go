package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MikeSquared-Agency/nuance/internal/anthropic"
	"github.com/MikeSquared-Agency/nuance/internal/prompts"
)

// AvoidanceDetector scores the emotional resistance a task carries, so
// downstream support can prioritize what the user is dreading.
type AvoidanceDetector struct {
	ai       AI
	registry *prompts.Registry
	logger   *slog.Logger
}

func NewAvoidanceDetector(ai AI, registry *prompts.Registry, logger *slog.Logger) *AvoidanceDetector {
	return &AvoidanceDetector{ai: ai, registry: registry, logger: logger}
}

// Detect analyzes a task for avoidance signals. rawSegment adds the user's
// original wording when available. Unparseable model output defaults to a
// neutral weight of 1; only provider failures return an error.
func (d *AvoidanceDetector) Detect(ctx context.Context, title, rawSegment string) (AvoidanceAnalysis, error) {
	text := "Task: " + title
	if rawSegment != "" {
		text += "\nOriginal input: " + rawSegment
	}

	prompt, err := d.registry.Get("avoidance")
	if err != nil {
		return AvoidanceAnalysis{}, fmt.Errorf("avoidance prompt: %w", err)
	}

	d.logger.Debug("analyzing avoidance", "title", title, "prompt_version", prompt.Version)

	var result AvoidanceAnalysis
	if err := d.ai.ExtractInto(ctx, prompt.Content, text, &result); err != nil {
		var extErr *anthropic.ExtractionError
		if !errors.As(err, &extErr) {
			return AvoidanceAnalysis{}, err
		}
		d.logger.Error("avoidance detection failed", "error", err, "title", title)
		return neutralAvoidance(extErr.Err), nil
	}

	if err := result.validate(); err != nil {
		d.logger.Error("avoidance detection failed", "error", err, "title", title)
		return neutralAvoidance(err), nil
	}

	d.logger.Info("avoidance analyzed", "title", title, "weight", result.Weight, "signal_count", len(result.Signals))
	return result, nil
}

func neutralAvoidance(cause error) AvoidanceAnalysis {
	return AvoidanceAnalysis{
		Weight:    1,
		Signals:   []string{},
		Reasoning: fmt.Sprintf("Analysis failed: %v", cause),
	}
}
