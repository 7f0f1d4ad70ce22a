package model

import (
	"time"

	"github.com/google/uuid"
)

// ResolvedEntity is a disjoint cluster of mentions believed to denote one
// real-world subject. Every mention belongs to exactly one entity, including
// singleton entities for unresolved mentions.
type ResolvedEntity struct {
	EntityID           uuid.UUID   `json:"entity_id"`
	CanonicalName      string      `json:"canonical_name"`
	EntityType         ParseType   `json:"entity_type"`
	MemberMentionIDs   []uuid.UUID `json:"member_mention_ids"`
	IsVerified         bool        `json:"is_verified"`
	SuppressFromPublic bool        `json:"suppress_from_public"`
	CreatedAt          time.Time   `json:"created_at"`
}

// Membership maps one mention into its entity together with the composite
// score it carried at clustering time, for traceability back to source.
type Membership struct {
	EntityID  uuid.UUID `json:"entity_id"`
	MentionID uuid.UUID `json:"mention_id"`
	Score     float64   `json:"score"`
}
