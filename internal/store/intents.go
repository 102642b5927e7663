package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// IntentLogEntry records one routed message and its outcome.
// Table: intent_log(id, user_id, raw_input, intent, confidence, reasoning,
// response_type, action_count, overall_confidence, needs_validation,
// processing_time_ms, created_at).
type IntentLogEntry struct {
	UserID            string
	RawInput          string
	Intent            string
	Confidence        float64
	Reasoning         string
	ResponseType      string
	ActionCount       int
	OverallConfidence float64
	NeedsValidation   bool
	ProcessingTimeMS  int64
}

// LogIntent appends one row to the intent log.
func (s *Store) LogIntent(ctx context.Context, entry IntentLogEntry) (uuid.UUID, error) {
	id := uuid.New()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO intent_log (id, user_id, raw_input, intent, confidence, reasoning,
			response_type, action_count, overall_confidence, needs_validation,
			processing_time_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())`,
		id, entry.UserID, entry.RawInput, entry.Intent, entry.Confidence, entry.Reasoning,
		entry.ResponseType, entry.ActionCount, entry.OverallConfidence, entry.NeedsValidation,
		entry.ProcessingTimeMS,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert intent log: %w", err)
	}
	return id, nil
}

// IntentStats counts a user's routed messages by intent over the last N days.
func (s *Store) IntentStats(ctx context.Context, userID string, days int) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT intent, count(*) FROM intent_log
		WHERE user_id = $1 AND created_at > now() - make_interval(days => $2)
		GROUP BY intent`,
		userID, days,
	)
	if err != nil {
		return nil, fmt.Errorf("query intent stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[string]int)
	for rows.Next() {
		var intent string
		var count int
		if err := rows.Scan(&intent, &count); err != nil {
			return nil, fmt.Errorf("scan intent stats: %w", err)
		}
		stats[intent] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read intent stats: %w", err)
	}
	return stats, nil
}
