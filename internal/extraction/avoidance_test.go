package extraction

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MikeSquared-Agency/nuance/internal/anthropic"
	"github.com/MikeSquared-Agency/nuance/internal/prompts"
)

func newTestAvoidance(ai AI) *AvoidanceDetector {
	return NewAvoidanceDetector(ai, prompts.Default(), discardLogger())
}

func TestDetect_Success(t *testing.T) {
	ai := newFakeAI()
	ai.reply["avoidance"] = `{
		"weight": 4,
		"signals": ["been putting off", "dreading"],
		"reasoning": "Strong dread language"
	}`
	d := newTestAvoidance(ai)

	result, err := d.Detect(context.Background(), "File taxes", "ugh, been putting off the taxes forever")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Weight != 4 {
		t.Errorf("weight = %d, want 4", result.Weight)
	}
	if len(result.Signals) != 2 {
		t.Errorf("signals = %v", result.Signals)
	}
}

func TestDetect_TextIncludesSegment(t *testing.T) {
	ai := newFakeAI()
	ai.reply["avoidance"] = `{"weight": 1, "signals": [], "reasoning": "neutral"}`
	d := newTestAvoidance(ai)

	if _, err := d.Detect(context.Background(), "Call mom", "call mom today"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := ai.textFor("avoidance")
	want := "Task: Call mom\nOriginal input: call mom today"
	if got != want {
		t.Errorf("analyzed text = %q, want %q", got, want)
	}

	if _, err := d.Detect(context.Background(), "Call mom", ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := ai.textFor("avoidance"); got != "Task: Call mom" {
		t.Errorf("analyzed text without segment = %q", got)
	}
}

func TestDetect_ParseFailureDefaultsNeutral(t *testing.T) {
	ai := newFakeAI()
	ai.errs["avoidance"] = &anthropic.ExtractionError{Err: errors.New("unmarshal: unexpected end of JSON input")}
	d := newTestAvoidance(ai)

	result, err := d.Detect(context.Background(), "Call mom", "")
	if err != nil {
		t.Fatalf("parse failure must not surface an error, got %v", err)
	}
	if result.Weight != 1 {
		t.Errorf("weight = %d, want neutral 1", result.Weight)
	}
	if len(result.Signals) != 0 {
		t.Errorf("signals = %v, want empty", result.Signals)
	}
	if !strings.HasPrefix(result.Reasoning, "Analysis failed:") {
		t.Errorf("reasoning = %q", result.Reasoning)
	}
}

func TestDetect_OutOfRangeWeight(t *testing.T) {
	ai := newFakeAI()
	ai.reply["avoidance"] = `{"weight": 9, "signals": [], "reasoning": "off the scale"}`
	d := newTestAvoidance(ai)

	result, err := d.Detect(context.Background(), "Call mom", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Weight != 1 {
		t.Errorf("weight = %d, want neutral 1", result.Weight)
	}
	if !strings.HasPrefix(result.Reasoning, "Analysis failed:") {
		t.Errorf("reasoning = %q", result.Reasoning)
	}
}

func TestDetect_ProviderErrorPropagates(t *testing.T) {
	ai := newFakeAI()
	ai.errs["avoidance"] = &anthropic.ProviderError{StatusCode: 429, Message: "rate limited"}
	d := newTestAvoidance(ai)

	_, err := d.Detect(context.Background(), "Call mom", "")
	var provErr *anthropic.ProviderError
	if !errors.As(err, &provErr) {
		t.Fatalf("error = %v, want *ProviderError", err)
	}
}
