package model

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ParseType classifies what kind of subject a parsed name denotes.
type ParseType string

const (
	ParseTypePerson       ParseType = "Person"
	ParseTypeOrganization ParseType = "Organization"
	ParseTypeHousehold    ParseType = "Household"
	ParseTypeUnknown      ParseType = "Unknown"
)

// typePrecedence orders entity types for majority-vote tie breaking.
// Organization wins over Household wins over Person wins over Unknown.
var typePrecedence = map[ParseType]int{
	ParseTypeOrganization: 3,
	ParseTypeHousehold:    2,
	ParseTypePerson:       1,
	ParseTypeUnknown:      0,
}

// Precedence returns the tie-break rank of the type.
func (t ParseType) Precedence() int {
	return typePrecedence[t]
}

// ParsedName holds the structured components of a raw name string.
// All fields are empty when the parse failed.
type ParsedName struct {
	Prefix   string `json:"prefix,omitempty"`
	Given    string `json:"given,omitempty"`
	Middle   string `json:"middle,omitempty"`
	Family   string `json:"family,omitempty"`
	Suffix   string `json:"suffix,omitempty"`
	Nickname string `json:"nickname,omitempty"`
}

// FullName joins the given, middle and family components with spaces.
func (p ParsedName) FullName() string {
	parts := make([]string, 0, 3)
	for _, part := range []string{p.Given, p.Middle, p.Family} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " ")
}

// IsEmpty reports whether no component was parsed at all.
func (p ParsedName) IsEmpty() bool {
	return p == ParsedName{}
}

// IdentityMention is one occurrence of a name string in a source record.
// Mentions are immutable after insert; a correction is a new mention, never
// an in-place update, so decisions stay auditable. The embedding is the only
// column written later, because vectors arrive from an external model.
type IdentityMention struct {
	MentionID       uuid.UUID  `json:"mention_id"`
	SourceReference string     `json:"source_reference"`
	RawName         string     `json:"raw_name"`
	Parsed          ParsedName `json:"parsed"`
	ParseType       ParseType  `json:"parse_type"`
	ParseConfidence float64    `json:"parse_confidence"`
	BlockingKey     string     `json:"blocking_key"`
	Embedding       []float32  `json:"embedding,omitempty"`
	Protected       bool       `json:"protected"`
	Metadata        Metadata   `json:"metadata,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`

	// Similarity is only populated by nearest-neighbor queries.
	Similarity float64 `json:"similarity,omitempty"`
}
