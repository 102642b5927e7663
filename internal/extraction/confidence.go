package extraction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/MikeSquared-Agency/nuance/internal/anthropic"
	"github.com/MikeSquared-Agency/nuance/internal/prompts"
)

// Action verbs whose presence at the start of a title raises confidence.
var strongActionVerbs = map[string]bool{
	"buy": true, "call": true, "send": true, "email": true, "write": true,
	"submit": true, "schedule": true, "book": true, "order": true,
	"pay": true, "cancel": true, "return": true, "pick": true, "get": true,
	"create": true, "fix": true, "update": true, "review": true,
	"clean": true, "organize": true,
}

// Vague language patterns that reduce confidence.
var vaguePatterns = []string{
	"that thing", "stuff", "whatever", "something", "somehow",
	"the thing", "that project", "those things", "misc",
}

// Weights are the tunable components of the heuristic confidence score.
// Deductions are stored positive and subtracted.
type Weights struct {
	Base         float64
	ActionVerb   float64
	VaguePattern float64
	ShortTitle   float64
	Question     float64
	OddTime      float64
}

func DefaultWeights() Weights {
	return Weights{
		Base:         0.8,
		ActionVerb:   0.1,
		VaguePattern: 0.3,
		ShortTitle:   0.1,
		Question:     0.15,
		OddTime:      0.1,
	}
}

// ConfidenceScorer rates how reliably an action was extracted. A cheap
// heuristic pass handles most cases; the AI pass is reserved for low scores
// the heuristics cannot already explain.
type ConfidenceScorer struct {
	ai         AI
	registry   *prompts.Registry
	weights    Weights
	escalation float64
	logger     *slog.Logger
}

func NewConfidenceScorer(ai AI, registry *prompts.Registry, weights Weights, escalationThreshold float64, logger *slog.Logger) *ConfidenceScorer {
	return &ConfidenceScorer{
		ai:         ai,
		registry:   registry,
		weights:    weights,
		escalation: escalationThreshold,
		logger:     logger,
	}
}

// Score computes a confidence score for one extracted action against the raw
// input it came from. Each deduction appends a named ambiguity. Scores below
// the escalation threshold go to the AI pass, unless a vague pattern already
// explains the low score.
func (s *ConfidenceScorer) Score(ctx context.Context, action Action, rawInput string) (ConfidenceAnalysis, error) {
	titleLower := strings.ToLower(action.Title)
	inputLower := strings.ToLower(rawInput)
	ambiguities := []string{}

	hasActionVerb := strongActionVerbs[firstWord(titleLower)]

	hasVaguePattern := false
	for _, p := range vaguePatterns {
		if strings.Contains(inputLower, p) {
			hasVaguePattern = true
			break
		}
	}
	if hasVaguePattern {
		ambiguities = append(ambiguities, "Input contains vague language")
	}

	shortTitle := len(action.Title) < 5
	if shortTitle {
		ambiguities = append(ambiguities, "Task title is very short")
	}

	hasQuestion := strings.Contains(rawInput, "?")
	if hasQuestion {
		ambiguities = append(ambiguities, "Input contains question - may not be a task")
	}

	confidence := s.weights.Base
	if hasActionVerb {
		confidence += s.weights.ActionVerb
	}
	if hasVaguePattern {
		confidence -= s.weights.VaguePattern
	}
	if shortTitle {
		confidence -= s.weights.ShortTitle
	}
	if hasQuestion {
		confidence -= s.weights.Question
	}

	if action.EstimatedMinutes < 5 || action.EstimatedMinutes > 240 {
		confidence -= s.weights.OddTime
		ambiguities = append(ambiguities, "Time estimate may need adjustment")
	}

	confidence = math.Max(0, math.Min(1, confidence))

	if confidence < s.escalation && !hasVaguePattern {
		return s.aiScore(ctx, action, rawInput, ambiguities)
	}

	s.logger.Info("confidence scored",
		"title", truncate(action.Title, 50),
		"confidence", confidence,
		"ambiguity_count", len(ambiguities),
	)

	return ConfidenceAnalysis{
		Confidence:  round2(confidence),
		Ambiguities: ambiguities,
		Reasoning:   buildReasoning(hasActionVerb, hasVaguePattern, len(ambiguities)),
	}, nil
}

func (s *ConfidenceScorer) aiScore(ctx context.Context, action Action, rawInput string, existing []string) (ConfidenceAnalysis, error) {
	prompt, err := s.registry.Get("confidence")
	if err != nil {
		return ConfidenceAnalysis{}, fmt.Errorf("confidence prompt: %w", err)
	}

	text := fmt.Sprintf("Action: %s\nOriginal input: %s", action.Title, rawInput)

	var result ConfidenceAnalysis
	if err := s.ai.ExtractInto(ctx, prompt.Content, text, &result); err != nil {
		var extErr *anthropic.ExtractionError
		if !errors.As(err, &extErr) {
			return ConfidenceAnalysis{}, err
		}
		s.logger.Error("ai confidence scoring failed", "error", err)
		return heuristicFallback(existing, extErr.Err), nil
	}

	if result.Confidence < 0 || result.Confidence > 1 {
		err := fmt.Errorf("confidence %v outside [0,1]", result.Confidence)
		s.logger.Error("ai confidence scoring failed", "error", err)
		return heuristicFallback(existing, err), nil
	}

	s.logger.Info("ai confidence scored", "title", truncate(action.Title, 50), "confidence", result.Confidence)

	return ConfidenceAnalysis{
		Confidence:  result.Confidence,
		Ambiguities: mergeAmbiguities(existing, result.Ambiguities),
		Reasoning:   result.Reasoning,
	}, nil
}

func heuristicFallback(existing []string, cause error) ConfidenceAnalysis {
	ambiguities := make([]string, 0, len(existing)+1)
	ambiguities = append(ambiguities, existing...)
	ambiguities = append(ambiguities, "AI analysis unavailable")
	return ConfidenceAnalysis{
		Confidence:  0.5,
		Ambiguities: ambiguities,
		Reasoning:   fmt.Sprintf("Heuristic fallback: %v", cause),
	}
}

// mergeAmbiguities deduplicates while keeping first-seen order.
func mergeAmbiguities(existing, fresh []string) []string {
	seen := make(map[string]bool, len(existing)+len(fresh))
	merged := make([]string, 0, len(existing)+len(fresh))
	for _, list := range [][]string{existing, fresh} {
		for _, a := range list {
			if !seen[a] {
				seen[a] = true
				merged = append(merged, a)
			}
		}
	}
	return merged
}

func buildReasoning(hasActionVerb, hasVaguePattern bool, ambiguityCount int) string {
	var reasons []string

	if hasActionVerb {
		reasons = append(reasons, "Clear action verb detected")
	} else {
		reasons = append(reasons, "No clear action verb")
	}

	if hasVaguePattern {
		reasons = append(reasons, "Contains vague language")
	}

	if ambiguityCount == 0 {
		reasons = append(reasons, "No ambiguities found")
	} else {
		reasons = append(reasons, fmt.Sprintf("%d potential ambiguities", ambiguityCount))
	}

	return strings.Join(reasons, "; ")
}
