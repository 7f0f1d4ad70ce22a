package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"github.com/siherrmann/resolver/helper"
)

// PairClass is the three-state classification of a scored candidate pair.
// Review is a first-class expected state, not an error path.
type PairClass string

const (
	PairClassMerge   PairClass = "merge"
	PairClassReview  PairClass = "review"
	PairClassDiscard PairClass = "discard"
)

// Signals is the per-component breakdown behind a composite score.
type Signals struct {
	PhoneticMatch   float64 `json:"phonetic_match"`
	EditSimilarity  float64 `json:"edit_similarity"`
	EmbeddingCosine float64 `json:"embedding_cosine"`
	TypeAgreement   bool    `json:"type_agreement"`
	CapApplied      bool    `json:"cap_applied"`
}

// Value implements the driver.Valuer interface for database storage
func (s Signals) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements the sql.Scanner interface for database retrieval
func (s *Signals) Scan(value interface{}) error {
	if value == nil {
		*s = Signals{}
		return nil
	}

	b, ok := value.([]byte)
	if !ok {
		return helper.NewError("byte assertion", errors.New("type assertion to []byte failed"))
	}

	return json.Unmarshal(b, s)
}

// CandidatePair is a scored comparison between two mentions, canonically
// ordered so that A sorts before B. Pairs are ephemeral per resolution run;
// only the decisions they produce are persisted.
type CandidatePair struct {
	A              uuid.UUID `json:"mention_id_a"`
	B              uuid.UUID `json:"mention_id_b"`
	CompositeScore float64   `json:"composite_score"`
	Signals        Signals   `json:"signals"`
	CrossBlock     bool      `json:"cross_block"`
}

// NewCandidatePair returns a pair with the two mention IDs in canonical order.
func NewCandidatePair(a, b uuid.UUID) CandidatePair {
	if b.String() < a.String() {
		a, b = b, a
	}
	return CandidatePair{A: a, B: b}
}
