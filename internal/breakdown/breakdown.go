package breakdown

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/MikeSquared-Agency/nuance/internal/anthropic"
	"github.com/MikeSquared-Agency/nuance/internal/prompts"
)

// AI is the provider surface the breakdown service needs.
type AI interface {
	ExtractInto(ctx context.Context, instructions, text string, out any) error
}

// Step is a single micro-step. Fields absent from the response default to a
// five minute physical step.
type Step struct {
	Title            string `json:"title"`
	EstimatedMinutes int    `json:"estimated_minutes"`
	IsPhysical       bool   `json:"is_physical"`
}

func (s *Step) UnmarshalJSON(data []byte) error {
	type alias Step
	aux := alias{EstimatedMinutes: 5, IsPhysical: true}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*s = Step(aux)
	return nil
}

// Result is a complete task breakdown.
type Result struct {
	Steps                 []Step `json:"steps"`
	FirstStepEmphasis     string `json:"first_step_emphasis"`
	TotalEstimatedMinutes int    `json:"total_estimated_minutes"`
}

func (r *Result) validate() error {
	if len(r.Steps) < 3 || len(r.Steps) > 5 {
		return fmt.Errorf("steps: got %d, want 3 to 5", len(r.Steps))
	}
	for i := range r.Steps {
		s := r.Steps[i]
		if len(s.Title) > 100 {
			return fmt.Errorf("step %d: title longer than 100 characters", i)
		}
		if s.EstimatedMinutes < 1 || s.EstimatedMinutes > 15 {
			return fmt.Errorf("step %d: estimated_minutes %d out of range [1, 15]", i, s.EstimatedMinutes)
		}
	}
	return nil
}

// Service breaks overwhelming tasks into tiny physical starter steps.
type Service struct {
	ai       AI
	registry *prompts.Registry
	logger   *slog.Logger
}

func NewService(ai AI, registry *prompts.Registry, logger *slog.Logger) *Service {
	return &Service{ai: ai, registry: registry, logger: logger}
}

// Breakdown generates 3 to 5 micro-steps for the task. Responses that fail
// to parse or validate fall back to a minimal generic breakdown; provider
// errors propagate. The total is always recomputed from the steps.
func (s *Service) Breakdown(ctx context.Context, taskTitle string) (Result, error) {
	prompt, err := s.registry.Get("breakdown")
	if err != nil {
		return Result{}, fmt.Errorf("breakdown prompt: %w", err)
	}

	var result Result
	err = s.ai.ExtractInto(ctx, prompt.Content, "Break down: "+taskTitle, &result)
	if err != nil {
		var extErr *anthropic.ExtractionError
		if errors.As(err, &extErr) {
			s.logger.Error("breakdown failed", "error", err, "task_title", taskTitle)
			return fallbackResult(taskTitle), nil
		}
		return Result{}, err
	}
	if err := result.validate(); err != nil {
		s.logger.Error("breakdown failed", "error", err, "task_title", taskTitle)
		return fallbackResult(taskTitle), nil
	}

	total := 0
	for _, step := range result.Steps {
		total += step.EstimatedMinutes
	}
	result.TotalEstimatedMinutes = total

	s.logger.Info("task broken down",
		"task_title", taskTitle,
		"step_count", len(result.Steps),
		"total_minutes", total,
	)
	return result, nil
}

func fallbackResult(taskTitle string) Result {
	return Result{
		Steps: []Step{
			{Title: "Open/prepare for: " + truncate(taskTitle, 50), EstimatedMinutes: 2, IsPhysical: true},
			{Title: "Do the first small part", EstimatedMinutes: 5, IsPhysical: true},
			{Title: "Review what you did", EstimatedMinutes: 2, IsPhysical: true},
		},
		FirstStepEmphasis:     "Just starting is the hardest part - focus only on step 1",
		TotalEstimatedMinutes: 9,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
