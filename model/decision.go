package model

import (
	"time"

	"github.com/google/uuid"
)

// MergeDecision is one append-only audit record of an accept, review or
// reject decision made during a resolution run. Decisions are never updated
// or deleted.
type MergeDecision struct {
	DecisionID     uuid.UUID `json:"decision_id"`
	RunID          uuid.UUID `json:"run_id"`
	MentionA       uuid.UUID `json:"mention_id_a"`
	MentionB       uuid.UUID `json:"mention_id_b"`
	CompositeScore float64   `json:"composite_score"`
	Signals        Signals   `json:"signals"`
	Outcome        PairClass `json:"outcome"`
	CrossBlock     bool      `json:"cross_block"`
	DecidedAt      time.Time `json:"decided_at"`
}
