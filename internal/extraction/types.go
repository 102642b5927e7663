package extraction

import (
	"context"
	"fmt"
	"math"
	"strings"
)

// AI is the structured-extraction capability the pipeline services share.
type AI interface {
	ExtractInto(ctx context.Context, instructions, text string, out any) error
}

// Complexity classifies how much structure a task needs before starting.
type Complexity string

const (
	// ComplexityAtomic tasks fit one focused session without decisions.
	ComplexityAtomic Complexity = "atomic"
	// ComplexityComposite tasks have clear sub-steps but remain one task.
	ComplexityComposite Complexity = "composite"
	// ComplexityProject tasks need planning or multiple sessions.
	ComplexityProject Complexity = "project"
)

// Action is a single task pulled out of free-form input.
type Action struct {
	Title            string `json:"title"`
	EstimatedMinutes int    `json:"estimated_minutes"`
	RawSegment       string `json:"raw_segment"`
}

// Result is the outcome of initial action extraction.
type Result struct {
	Actions     []Action `json:"actions"`
	Confidence  float64  `json:"confidence"`
	Ambiguities []string `json:"ambiguities"`
}

// validate applies defaults for absent fields and checks ranges. Title is
// capped at 500 chars and estimates at [5,480] minutes; a violation discards
// the whole extraction, mirroring schema validation on the model output.
func (r *Result) validate() error {
	if r.Actions == nil {
		r.Actions = []Action{}
	}
	if r.Ambiguities == nil {
		r.Ambiguities = []string{}
	}
	for i := range r.Actions {
		a := &r.Actions[i]
		if a.Title == "" || len(a.Title) > 500 {
			return fmt.Errorf("action %d: title length %d outside [1,500]", i, len(a.Title))
		}
		if a.EstimatedMinutes == 0 {
			a.EstimatedMinutes = 15
		}
		if a.EstimatedMinutes < 5 || a.EstimatedMinutes > 480 {
			return fmt.Errorf("action %d: estimated_minutes %d outside [5,480]", i, a.EstimatedMinutes)
		}
	}
	if r.Confidence < 0 || r.Confidence > 1 {
		return fmt.Errorf("confidence %v outside [0,1]", r.Confidence)
	}
	return nil
}

// AvoidanceAnalysis scores emotional resistance from 1 (neutral) to 5 (high).
type AvoidanceAnalysis struct {
	Weight    int      `json:"weight"`
	Signals   []string `json:"signals"`
	Reasoning string   `json:"reasoning"`
}

func (a *AvoidanceAnalysis) validate() error {
	if a.Signals == nil {
		a.Signals = []string{}
	}
	if a.Weight == 0 {
		a.Weight = 1
	}
	if a.Weight < 1 || a.Weight > 5 {
		return fmt.Errorf("weight %d outside [1,5]", a.Weight)
	}
	return nil
}

// ComplexityAnalysis is a complexity classification with a breakdown
// recommendation.
type ComplexityAnalysis struct {
	Complexity     Complexity `json:"complexity"`
	SuggestedSteps int        `json:"suggested_steps"`
	NeedsBreakdown bool       `json:"needs_breakdown"`
	Reasoning      string     `json:"reasoning"`
}

func (a *ComplexityAnalysis) validate() error {
	if a.Complexity == "" {
		a.Complexity = ComplexityAtomic
	}
	switch a.Complexity {
	case ComplexityAtomic, ComplexityComposite, ComplexityProject:
	default:
		return fmt.Errorf("unknown complexity %q", a.Complexity)
	}
	if a.SuggestedSteps == 0 {
		a.SuggestedSteps = 1
	}
	if a.SuggestedSteps < 1 || a.SuggestedSteps > 20 {
		return fmt.Errorf("suggested_steps %d outside [1,20]", a.SuggestedSteps)
	}
	return nil
}

// ConfidenceAnalysis scores how reliably an action was extracted.
type ConfidenceAnalysis struct {
	Confidence  float64  `json:"confidence"`
	Ambiguities []string `json:"ambiguities"`
	Reasoning   string   `json:"reasoning"`
}

// EnrichedAction is an extracted action joined with its enrichment metadata.
type EnrichedAction struct {
	Title            string     `json:"title"`
	EstimatedMinutes int        `json:"estimated_minutes"`
	RawSegment       string     `json:"raw_segment"`
	AvoidanceWeight  int        `json:"avoidance_weight"`
	Complexity       Complexity `json:"complexity"`
	NeedsBreakdown   bool       `json:"needs_breakdown"`
	Confidence       float64    `json:"confidence"`
	Ambiguities      []string   `json:"ambiguities"`
}

// OrchestrationResult is the full pipeline output for one input text.
type OrchestrationResult struct {
	Actions           []EnrichedAction `json:"actions"`
	RawInput          string           `json:"raw_input"`
	OverallConfidence float64          `json:"overall_confidence"`
	NeedsValidation   bool             `json:"needs_validation"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
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
