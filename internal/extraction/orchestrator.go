package extraction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Orchestrator runs the full capture pipeline: initial extraction, then
// per-action enrichment fanned out concurrently with results collected
// positionally so output order always matches extraction order.
type Orchestrator struct {
	extractor  *Extractor
	avoidance  *AvoidanceDetector
	complexity *ComplexityClassifier
	confidence *ConfidenceScorer
	threshold  float64
	logger     *slog.Logger
}

// NewOrchestrator wires the pipeline. validationThreshold is the overall
// confidence below which results are flagged for user validation.
func NewOrchestrator(
	extractor *Extractor,
	avoidance *AvoidanceDetector,
	complexity *ComplexityClassifier,
	confidence *ConfidenceScorer,
	validationThreshold float64,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		extractor:  extractor,
		avoidance:  avoidance,
		complexity: complexity,
		confidence: confidence,
		threshold:  validationThreshold,
		logger:     logger,
	}
}

// Extract runs extraction and enrichment on the input text. A single
// action's enrichment failure never fails the batch: that action gets a
// synthesized minimal enrichment so count and order are preserved. The
// returned error is reserved for provider failure of the initial extraction.
func (o *Orchestrator) Extract(ctx context.Context, text string) (OrchestrationResult, error) {
	if strings.TrimSpace(text) == "" {
		o.logger.Warn("empty input for extraction orchestration")
		return OrchestrationResult{
			Actions:         []EnrichedAction{},
			RawInput:        text,
			NeedsValidation: true,
		}, nil
	}

	o.logger.Info("starting extraction orchestration", "input_length", len(text))

	extracted, err := o.extractor.Extract(ctx, text)
	if err != nil {
		return OrchestrationResult{}, fmt.Errorf("extract actions: %w", err)
	}

	if len(extracted.Actions) == 0 {
		o.logger.Info("no actions extracted from input")
		return OrchestrationResult{
			Actions:           []EnrichedAction{},
			RawInput:          text,
			OverallConfidence: extracted.Confidence,
			NeedsValidation:   extracted.Confidence < o.threshold,
		}, nil
	}

	enriched := o.enrichAll(ctx, extracted.Actions, text)

	var sum float64
	anyAmbiguities := false
	for _, a := range enriched {
		sum += a.Confidence
		if len(a.Ambiguities) > 0 {
			anyAmbiguities = true
		}
	}
	overall := sum / float64(len(enriched))
	needsValidation := overall < o.threshold || anyAmbiguities

	o.logger.Info("extraction orchestration complete",
		"action_count", len(enriched),
		"overall_confidence", overall,
		"needs_validation", needsValidation,
	)

	return OrchestrationResult{
		Actions:           enriched,
		RawInput:          text,
		OverallConfidence: round2(overall),
		NeedsValidation:   needsValidation,
	}, nil
}

// enrichAll fans out one goroutine per action, writing into positional slots.
func (o *Orchestrator) enrichAll(ctx context.Context, actions []Action, rawInput string) []EnrichedAction {
	enriched := make([]EnrichedAction, len(actions))

	var wg sync.WaitGroup
	for i, action := range actions {
		wg.Add(1)
		go func(i int, action Action) {
			defer wg.Done()

			ea, err := o.enrichOne(ctx, action, rawInput)
			if err != nil {
				o.logger.Error("action enrichment failed", "action_index", i, "error", err)
				ea = EnrichedAction{
					Title:            action.Title,
					EstimatedMinutes: action.EstimatedMinutes,
					RawSegment:       action.RawSegment,
					AvoidanceWeight:  1,
					Complexity:       ComplexityAtomic,
					NeedsBreakdown:   false,
					Confidence:       0.5,
					Ambiguities:      []string{"Enrichment failed"},
				}
			}
			enriched[i] = ea
		}(i, action)
	}
	wg.Wait()

	return enriched
}

// enrichOne runs avoidance and complexity concurrently, then confidence.
func (o *Orchestrator) enrichOne(ctx context.Context, action Action, rawInput string) (EnrichedAction, error) {
	var (
		avoidance  AvoidanceAnalysis
		complexity ComplexityAnalysis
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		avoidance, err = o.avoidance.Detect(gctx, action.Title, action.RawSegment)
		return err
	})
	g.Go(func() error {
		var err error
		complexity, err = o.complexity.Classify(gctx, action.Title, action.EstimatedMinutes)
		return err
	})
	if err := g.Wait(); err != nil {
		return EnrichedAction{}, err
	}

	confidence, err := o.confidence.Score(ctx, action, rawInput)
	if err != nil {
		return EnrichedAction{}, err
	}

	return EnrichedAction{
		Title:            action.Title,
		EstimatedMinutes: action.EstimatedMinutes,
		RawSegment:       action.RawSegment,
		AvoidanceWeight:  avoidance.Weight,
		Complexity:       complexity.Complexity,
		NeedsBreakdown:   complexity.NeedsBreakdown,
		Confidence:       confidence.Confidence,
		Ambiguities:      confidence.Ambiguities,
	}, nil
}
