package model

import (
	"fmt"
)

// SignalWeights are the relative weights of the independent scoring signals.
// The embedding weight only participates when both mentions carry a vector;
// the remaining weights are renormalized otherwise.
type SignalWeights struct {
	Phonetic  float64 `json:"phonetic"`
	Edit      float64 `json:"edit"`
	Embedding float64 `json:"embedding"`
}

// ResolutionConfig is the full tuning surface of a resolution run.
// Weights and thresholds are configuration, not code, so runs can be tuned
// without rebuilding.
type ResolutionConfig struct {
	// Blocking
	BlockingKeyVersion int `json:"blocking_key_version"`

	// Embeddings. The model identifier is opaque to this library: vectors
	// are consumed, never generated here.
	EmbeddingModel string `json:"embedding_model"`
	EmbeddingDim   int    `json:"embedding_dim"`

	// Thresholds. Pairs scoring >= THigh merge automatically, pairs in
	// [TLow, THigh) go to manual review, pairs below TLow are discarded.
	TLow  float64 `json:"t_low"`
	THigh float64 `json:"t_high"`

	// TypeConflictCap caps the composite score of a pair whose parse types
	// disagree, regardless of the other signals.
	TypeConflictCap float64 `json:"type_conflict_cap"`

	// Candidate generation
	MaxBlockSize            int     `json:"max_block_size"`
	SampleWindow            int     `json:"sample_window"`
	CrossBlockTopK          int     `json:"cross_block_top_k"`
	CrossBlockMinConfidence float64 `json:"cross_block_min_confidence"`
	// CrossBlockMargin raises both thresholds for cross-block pairs, which
	// carry weaker prior evidence of similarity.
	CrossBlockMargin float64 `json:"cross_block_margin"`

	// Scoring
	Weights SignalWeights `json:"weights"`

	// Public projection
	DisclosureFloor float64 `json:"disclosure_floor"`

	// Workers bounds the number of blocks scored concurrently.
	Workers int `json:"workers"`
}

// DefaultResolutionConfig returns a sensible default configuration
func DefaultResolutionConfig() ResolutionConfig {
	return ResolutionConfig{
		BlockingKeyVersion:      1,
		EmbeddingModel:          "sentence-transformers/all-MiniLM-L6-v2",
		EmbeddingDim:            384,
		TLow:                    0.75,
		THigh:                   0.92,
		TypeConflictCap:         0.3,
		MaxBlockSize:            200,
		SampleWindow:            10,
		CrossBlockTopK:          5,
		CrossBlockMinConfidence: 0.7,
		CrossBlockMargin:        0.03,
		Weights: SignalWeights{
			Phonetic:  0.4,
			Edit:      0.4,
			Embedding: 0.2,
		},
		DisclosureFloor: 0.3,
		Workers:         4,
	}
}

// Validate checks the configuration before any mention is processed.
// A broken configuration is fatal at pipeline start, never partially applied.
func (c *ResolutionConfig) Validate() error {
	if c.BlockingKeyVersion < 1 || c.BlockingKeyVersion > 2 {
		return fmt.Errorf("unknown blocking key version %d", c.BlockingKeyVersion)
	}
	if c.EmbeddingDim <= 0 {
		return fmt.Errorf("embedding dimension must be positive, got %d", c.EmbeddingDim)
	}
	if c.TLow < 0 || c.TLow > 1 || c.THigh < 0 || c.THigh > 1 {
		return fmt.Errorf("thresholds must be in [0,1], got t_low=%v t_high=%v", c.TLow, c.THigh)
	}
	if c.TLow > c.THigh {
		return fmt.Errorf("t_low (%v) must not exceed t_high (%v)", c.TLow, c.THigh)
	}
	if c.TypeConflictCap < 0 || c.TypeConflictCap > 1 {
		return fmt.Errorf("type conflict cap must be in [0,1], got %v", c.TypeConflictCap)
	}
	if c.MaxBlockSize < 2 {
		return fmt.Errorf("max block size must be at least 2, got %d", c.MaxBlockSize)
	}
	if c.SampleWindow < 1 {
		return fmt.Errorf("sample window must be at least 1, got %d", c.SampleWindow)
	}
	if c.CrossBlockTopK < 0 {
		return fmt.Errorf("cross block top k must not be negative, got %d", c.CrossBlockTopK)
	}
	if c.CrossBlockMinConfidence < 0 || c.CrossBlockMinConfidence > 1 {
		return fmt.Errorf("cross block min confidence must be in [0,1], got %v", c.CrossBlockMinConfidence)
	}
	if c.CrossBlockMargin < 0 {
		return fmt.Errorf("cross block margin must not be negative, got %v", c.CrossBlockMargin)
	}
	if c.Weights.Phonetic < 0 || c.Weights.Edit < 0 || c.Weights.Embedding < 0 {
		return fmt.Errorf("signal weights must not be negative, got %+v", c.Weights)
	}
	if c.Weights.Phonetic+c.Weights.Edit <= 0 {
		return fmt.Errorf("phonetic and edit weights must not both be zero")
	}
	if c.DisclosureFloor < 0 || c.DisclosureFloor > 1 {
		return fmt.Errorf("disclosure floor must be in [0,1], got %v", c.DisclosureFloor)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	return nil
}
