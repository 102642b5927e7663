package breakdown

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/nuance/internal/anthropic"
	"github.com/MikeSquared-Agency/nuance/internal/prompts"
)

type fakeAI struct {
	calls            int
	lastInstructions string
	lastText         string
	reply            string
	err              error
}

func (f *fakeAI) ExtractInto(ctx context.Context, instructions, text string, out any) error {
	f.calls++
	f.lastInstructions = instructions
	f.lastText = text
	if f.err != nil {
		return f.err
	}
	return json.Unmarshal([]byte(f.reply), out)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(ai AI) *Service {
	return NewService(ai, prompts.Default(), discardLogger())
}

func assertFallback(t *testing.T, result Result, taskTitle string) {
	t.Helper()
	if len(result.Steps) != 3 {
		t.Fatalf("fallback steps = %d, want 3", len(result.Steps))
	}
	wantFirst := "Open/prepare for: " + truncate(taskTitle, 50)
	if result.Steps[0].Title != wantFirst {
		t.Errorf("steps[0].Title = %q, want %q", result.Steps[0].Title, wantFirst)
	}
	if result.Steps[1].Title != "Do the first small part" || result.Steps[2].Title != "Review what you did" {
		t.Errorf("fallback step titles = %q, %q", result.Steps[1].Title, result.Steps[2].Title)
	}
	if result.TotalEstimatedMinutes != 9 {
		t.Errorf("total = %d, want 9", result.TotalEstimatedMinutes)
	}
	if result.FirstStepEmphasis != "Just starting is the hardest part - focus only on step 1" {
		t.Errorf("emphasis = %q", result.FirstStepEmphasis)
	}
	for i, step := range result.Steps {
		if !step.IsPhysical {
			t.Errorf("steps[%d].IsPhysical = false, want true", i)
		}
	}
}

func TestBreakdown_Success(t *testing.T) {
	ai := &fakeAI{reply: `{
		"steps": [
			{"title": "Walk to the garage", "estimated_minutes": 2, "is_physical": true},
			{"title": "Open the door and look around", "estimated_minutes": 3, "is_physical": true},
			{"title": "Pick up five things", "estimated_minutes": 10, "is_physical": true},
			{"title": "Decide where the boxes go", "estimated_minutes": 5, "is_physical": false}
		],
		"first_step_emphasis": "Walking over is the whole battle",
		"total_estimated_minutes": 99
	}`}
	svc := newTestService(ai)

	result, err := svc.Breakdown(context.Background(), "Clean the garage")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(result.Steps) != 4 {
		t.Fatalf("steps = %d, want 4", len(result.Steps))
	}
	// The model's own total is never trusted.
	if result.TotalEstimatedMinutes != 20 {
		t.Errorf("total = %d, want recomputed 20", result.TotalEstimatedMinutes)
	}
	if result.Steps[3].IsPhysical {
		t.Error("explicit is_physical=false was overridden")
	}
	if result.FirstStepEmphasis != "Walking over is the whole battle" {
		t.Errorf("emphasis = %q", result.FirstStepEmphasis)
	}

	if ai.lastText != "Break down: Clean the garage" {
		t.Errorf("text = %q", ai.lastText)
	}
	if !strings.Contains(ai.lastInstructions, "paralyzed by a task") {
		t.Errorf("instructions = %q, want breakdown prompt", ai.lastInstructions)
	}
}

func TestBreakdown_DefaultsAbsentFields(t *testing.T) {
	ai := &fakeAI{reply: `{
		"steps": [
			{"title": "Open laptop"},
			{"title": "Create new document"},
			{"title": "Write one sentence"}
		],
		"first_step_emphasis": "Start small"
	}`}
	svc := newTestService(ai)

	result, err := svc.Breakdown(context.Background(), "Write report")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i, step := range result.Steps {
		if step.EstimatedMinutes != 5 {
			t.Errorf("steps[%d].EstimatedMinutes = %d, want default 5", i, step.EstimatedMinutes)
		}
		if !step.IsPhysical {
			t.Errorf("steps[%d].IsPhysical = false, want default true", i)
		}
	}
	if result.TotalEstimatedMinutes != 15 {
		t.Errorf("total = %d, want 15", result.TotalEstimatedMinutes)
	}
}

func TestBreakdown_StepCountValidation(t *testing.T) {
	twoSteps := `{"steps": [{"title": "a", "estimated_minutes": 2}, {"title": "b", "estimated_minutes": 2}], "first_step_emphasis": ""}`
	sixSteps := `{"steps": [
		{"title": "a", "estimated_minutes": 2}, {"title": "b", "estimated_minutes": 2},
		{"title": "c", "estimated_minutes": 2}, {"title": "d", "estimated_minutes": 2},
		{"title": "e", "estimated_minutes": 2}, {"title": "f", "estimated_minutes": 2}
	], "first_step_emphasis": ""}`

	tests := []struct {
		name  string
		reply string
	}{
		{"too few steps", twoSteps},
		{"too many steps", sixSteps},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ai := &fakeAI{reply: tt.reply}
			svc := newTestService(ai)

			result, err := svc.Breakdown(context.Background(), "Do taxes")
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			assertFallback(t, result, "Do taxes")
		})
	}
}

func TestBreakdown_OutOfRangeMinutes(t *testing.T) {
	ai := &fakeAI{reply: `{
		"steps": [
			{"title": "a", "estimated_minutes": 2},
			{"title": "b", "estimated_minutes": 30},
			{"title": "c", "estimated_minutes": 2}
		],
		"first_step_emphasis": ""
	}`}
	svc := newTestService(ai)

	result, err := svc.Breakdown(context.Background(), "Do taxes")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertFallback(t, result, "Do taxes")
}

func TestBreakdown_ParseFailureFallsBack(t *testing.T) {
	longTitle := strings.Repeat("organize the entire basement ", 4)
	ai := &fakeAI{err: &anthropic.ExtractionError{Raw: "not json", Err: errors.New("unmarshal: bad")}}
	svc := newTestService(ai)

	result, err := svc.Breakdown(context.Background(), longTitle)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	assertFallback(t, result, longTitle)
	if got := result.Steps[0].Title; len(got) != len("Open/prepare for: ")+50 {
		t.Errorf("fallback title not truncated to 50 chars: %q", got)
	}
}

func TestBreakdown_ProviderErrorPropagates(t *testing.T) {
	ai := &fakeAI{err: &anthropic.ProviderError{StatusCode: 529, Message: "overloaded"}}
	svc := newTestService(ai)

	_, err := svc.Breakdown(context.Background(), "Do taxes")
	if err == nil {
		t.Fatal("expected provider error")
	}
	var provErr *anthropic.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("error = %v, want *ProviderError", err)
	}
}
