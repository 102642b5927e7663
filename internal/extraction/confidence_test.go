package extraction

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/nuance/internal/anthropic"
	"github.com/MikeSquared-Agency/nuance/internal/prompts"
)

func newTestScorer(ai AI) *ConfidenceScorer {
	return NewConfidenceScorer(ai, prompts.Default(), DefaultWeights(), 0.6, discardLogger())
}

func TestScore_Heuristics(t *testing.T) {
	tests := []struct {
		name            string
		action          Action
		rawInput        string
		wantConfidence  float64
		wantAmbiguities []string
		wantReasoning   string
	}{
		{
			name:            "clear action verb",
			action:          Action{Title: "Call mom", EstimatedMinutes: 15},
			rawInput:        "call mom",
			wantConfidence:  0.9,
			wantAmbiguities: []string{},
			wantReasoning:   "Clear action verb detected; No ambiguities found",
		},
		{
			name:            "vague language",
			action:          Action{Title: "Work on that project", EstimatedMinutes: 30},
			rawInput:        "that project thing i mentioned",
			wantConfidence:  0.5,
			wantAmbiguities: []string{"Input contains vague language"},
			wantReasoning:   "No clear action verb; Contains vague language; 1 potential ambiguities",
		},
		{
			name:            "short title",
			action:          Action{Title: "Gym", EstimatedMinutes: 30},
			rawInput:        "gym sometime",
			wantConfidence:  0.7,
			wantAmbiguities: []string{"Task title is very short"},
			wantReasoning:   "No clear action verb; 1 potential ambiguities",
		},
		{
			name:            "question mark",
			action:          Action{Title: "Call the dentist", EstimatedMinutes: 15},
			rawInput:        "should i call the dentist?",
			wantConfidence:  0.75,
			wantAmbiguities: []string{"Input contains question - may not be a task"},
			wantReasoning:   "Clear action verb detected; 1 potential ambiguities",
		},
		{
			name:            "implausible time estimate",
			action:          Action{Title: "Clean garage", EstimatedMinutes: 300},
			rawInput:        "clean the garage",
			wantConfidence:  0.8,
			wantAmbiguities: []string{"Time estimate may need adjustment"},
			wantReasoning:   "Clear action verb detected; 1 potential ambiguities",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ai := newFakeAI()
			s := newTestScorer(ai)

			got, err := s.Score(context.Background(), tt.action, tt.rawInput)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if math.Abs(got.Confidence-tt.wantConfidence) > 0.001 {
				t.Errorf("confidence = %v, want %v", got.Confidence, tt.wantConfidence)
			}
			if len(got.Ambiguities) != len(tt.wantAmbiguities) {
				t.Fatalf("ambiguities = %v, want %v", got.Ambiguities, tt.wantAmbiguities)
			}
			for i := range tt.wantAmbiguities {
				if got.Ambiguities[i] != tt.wantAmbiguities[i] {
					t.Errorf("ambiguities[%d] = %q, want %q", i, got.Ambiguities[i], tt.wantAmbiguities[i])
				}
			}
			if got.Reasoning != tt.wantReasoning {
				t.Errorf("reasoning = %q, want %q", got.Reasoning, tt.wantReasoning)
			}
			if ai.callCount("confidence") != 0 {
				t.Errorf("heuristic path made %d AI calls, want 0", ai.callCount("confidence"))
			}
		})
	}
}

func TestScore_EscalatesToAI(t *testing.T) {
	ai := newFakeAI()
	ai.reply["confidence"] = `{
		"confidence": 0.65,
		"ambiguities": ["Unclear referent"],
		"reasoning": "Implied action"
	}`
	s := newTestScorer(ai)

	got, err := s.Score(context.Background(), Action{Title: "Do", EstimatedMinutes: 3}, "do it now? or maybe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ai.callCount("confidence") != 1 {
		t.Fatalf("expected AI escalation, got %d calls", ai.callCount("confidence"))
	}
	if math.Abs(got.Confidence-0.65) > 0.001 {
		t.Errorf("confidence = %v, want 0.65", got.Confidence)
	}
	want := []string{
		"Task title is very short",
		"Input contains question - may not be a task",
		"Time estimate may need adjustment",
		"Unclear referent",
	}
	if len(got.Ambiguities) != len(want) {
		t.Fatalf("ambiguities = %v, want %v", got.Ambiguities, want)
	}
	for i := range want {
		if got.Ambiguities[i] != want[i] {
			t.Errorf("ambiguities[%d] = %q, want %q", i, got.Ambiguities[i], want[i])
		}
	}
	if got.Reasoning != "Implied action" {
		t.Errorf("reasoning = %q", got.Reasoning)
	}
	if !strings.Contains(ai.textFor("confidence"), "Action: Do\nOriginal input: do it now? or maybe") {
		t.Errorf("ai text = %q", ai.textFor("confidence"))
	}
}

func TestScore_VagueLowScoreDoesNotEscalate(t *testing.T) {
	ai := newFakeAI()
	s := newTestScorer(ai)

	got, err := s.Score(context.Background(), Action{Title: "Misc", EstimatedMinutes: 3}, "misc stuff whatever?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ai.callCount("confidence") != 0 {
		t.Errorf("vague input escalated to AI: %d calls", ai.callCount("confidence"))
	}
	if math.Abs(got.Confidence-0.15) > 0.001 {
		t.Errorf("confidence = %v, want 0.15", got.Confidence)
	}
	if got.Ambiguities[0] != "Input contains vague language" {
		t.Errorf("ambiguities = %v", got.Ambiguities)
	}
}

func TestScore_AIFallback(t *testing.T) {
	ai := newFakeAI()
	ai.errs["confidence"] = &anthropic.ExtractionError{Err: errors.New("unmarshal: not json")}
	s := newTestScorer(ai)

	got, err := s.Score(context.Background(), Action{Title: "Do", EstimatedMinutes: 3}, "do it now? or maybe")
	if err != nil {
		t.Fatalf("AI parse failure must not surface an error, got %v", err)
	}

	if math.Abs(got.Confidence-0.5) > 0.001 {
		t.Errorf("confidence = %v, want 0.5", got.Confidence)
	}
	last := got.Ambiguities[len(got.Ambiguities)-1]
	if last != "AI analysis unavailable" {
		t.Errorf("ambiguities = %v", got.Ambiguities)
	}
	if !strings.HasPrefix(got.Reasoning, "Heuristic fallback:") {
		t.Errorf("reasoning = %q", got.Reasoning)
	}
}

func TestScore_MergeDeduplicates(t *testing.T) {
	ai := newFakeAI()
	ai.reply["confidence"] = `{
		"confidence": 0.55,
		"ambiguities": ["Task title is very short", "Could be several tasks"],
		"reasoning": "Terse input"
	}`
	s := newTestScorer(ai)

	got, err := s.Score(context.Background(), Action{Title: "Do", EstimatedMinutes: 3}, "do it now? or maybe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	counts := map[string]int{}
	for _, a := range got.Ambiguities {
		counts[a]++
	}
	if counts["Task title is very short"] != 1 {
		t.Errorf("duplicate ambiguity survived merge: %v", got.Ambiguities)
	}
	if counts["Could be several tasks"] != 1 {
		t.Errorf("AI ambiguity lost in merge: %v", got.Ambiguities)
	}
}

func TestScore_OutOfRangeAIConfidence(t *testing.T) {
	ai := newFakeAI()
	ai.reply["confidence"] = `{"confidence": 1.8, "ambiguities": [], "reasoning": "sure"}`
	s := newTestScorer(ai)

	got, err := s.Score(context.Background(), Action{Title: "Do", EstimatedMinutes: 3}, "do it now? or maybe")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(got.Confidence-0.5) > 0.001 {
		t.Errorf("confidence = %v, want fallback 0.5", got.Confidence)
	}
}

func TestScore_CustomWeightsClamp(t *testing.T) {
	ai := newFakeAI()
	weights := Weights{Base: 0.3, ActionVerb: 0.1, VaguePattern: 0.9, ShortTitle: 0.1, Question: 0.15, OddTime: 0.1}
	s := NewConfidenceScorer(ai, prompts.Default(), weights, 0.6, discardLogger())

	got, err := s.Score(context.Background(), Action{Title: "Sort out stuff", EstimatedMinutes: 30}, "sort out the stuff")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Confidence != 0 {
		t.Errorf("confidence = %v, want clamped 0", got.Confidence)
	}
	if ai.callCount("confidence") != 0 {
		t.Errorf("vague input escalated to AI: %d calls", ai.callCount("confidence"))
	}
}

func TestScore_ProviderErrorPropagates(t *testing.T) {
	ai := newFakeAI()
	ai.errs["confidence"] = &anthropic.ProviderError{StatusCode: 500, Message: "boom"}
	s := newTestScorer(ai)

	_, err := s.Score(context.Background(), Action{Title: "Do", EstimatedMinutes: 3}, "do it now? or maybe")
	var provErr *anthropic.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("error = %v, want *ProviderError", err)
	}
}
