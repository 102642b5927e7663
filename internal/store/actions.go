package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/nuance/internal/extraction"
)

// ActionRow is a captured action as stored.
// Table: actions(id, user_id, natural_key, title, estimated_minutes,
// raw_segment, avoidance_weight, complexity, needs_breakdown, confidence,
// ambiguities, created_at) with a unique index on
// (user_id, natural_key, capture_day) where capture_day defaults to the
// insert date.
type ActionRow struct {
	ID               uuid.UUID
	UserID           string
	Title            string
	EstimatedMinutes int
	RawSegment       string
	AvoidanceWeight  int
	Complexity       string
	NeedsBreakdown   bool
	Confidence       float64
	Ambiguities      []string
	CreatedAt        time.Time
}

// NaturalKey hashes a normalized title so re-capturing the same task on the
// same day inserts only once.
func NaturalKey(title string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(title)), " ")
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}

// SaveActions writes enriched actions in one transaction and returns the ids
// of the rows actually inserted. Conflicting captures are silently skipped.
func (s *Store) SaveActions(ctx context.Context, userID string, actions []extraction.EnrichedAction) ([]uuid.UUID, error) {
	if len(actions) == 0 {
		return nil, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, len(actions))
	for _, action := range actions {
		id := uuid.New()
		tag, err := tx.Exec(ctx, `
			INSERT INTO actions (id, user_id, natural_key, title, estimated_minutes,
				raw_segment, avoidance_weight, complexity, needs_breakdown, confidence,
				ambiguities, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
			ON CONFLICT (user_id, natural_key, capture_day) DO NOTHING`,
			id, userID, NaturalKey(action.Title), action.Title, action.EstimatedMinutes,
			action.RawSegment, action.AvoidanceWeight, string(action.Complexity),
			action.NeedsBreakdown, action.Confidence, action.Ambiguities,
		)
		if err != nil {
			return nil, fmt.Errorf("insert action: %w", err)
		}
		if tag.RowsAffected() > 0 {
			ids = append(ids, id)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return ids, nil
}

// RecentActions returns the user's newest captured actions, newest first.
func (s *Store) RecentActions(ctx context.Context, userID string, limit int) ([]ActionRow, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, title, estimated_minutes, raw_segment, avoidance_weight,
			complexity, needs_breakdown, confidence, ambiguities, created_at
		FROM actions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	var out []ActionRow
	for rows.Next() {
		var row ActionRow
		if err := rows.Scan(&row.ID, &row.UserID, &row.Title, &row.EstimatedMinutes,
			&row.RawSegment, &row.AvoidanceWeight, &row.Complexity, &row.NeedsBreakdown,
			&row.Confidence, &row.Ambiguities, &row.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read actions: %w", err)
	}
	return out, nil
}
