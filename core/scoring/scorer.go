package scoring

import (
	"math"

	"github.com/agnivade/levenshtein"
	"github.com/siherrmann/resolver/core/blocking"
	"github.com/siherrmann/resolver/model"
)

// Scorer computes composite match scores for candidate mention pairs.
// It is pure and side-effect free: recomputation with identical inputs and
// configuration yields identical scores, which makes resolution runs
// reproducible.
type Scorer struct {
	config model.ResolutionConfig
}

// NewScorer creates a scorer for the given configuration.
func NewScorer(config model.ResolutionConfig) *Scorer {
	return &Scorer{config: config}
}

// Score computes the composite score and its signal breakdown for one pair.
// Signals: exact phonetic-key match (binary), normalized edit similarity
// over the full parsed name, and embedding cosine when both mentions carry
// a vector (the embedding weight is renormalized away otherwise).
//
// A parse-type conflict between two known types caps the composite score
// regardless of the other signals; that is a hard business rule, not a
// weighted term.
func (s *Scorer) Score(a, b *model.IdentityMention) (float64, model.Signals) {
	signals := model.Signals{}

	if a.BlockingKey != blocking.LowConfidenceKey && a.BlockingKey == b.BlockingKey {
		signals.PhoneticMatch = 1
	}

	signals.EditSimilarity = editSimilarity(comparableName(a), comparableName(b))

	weights := s.config.Weights
	total := weights.Phonetic + weights.Edit
	composite := weights.Phonetic*signals.PhoneticMatch + weights.Edit*signals.EditSimilarity

	if len(a.Embedding) > 0 && len(a.Embedding) == len(b.Embedding) {
		signals.EmbeddingCosine = cosine(a.Embedding, b.Embedding)
		composite += weights.Embedding * signals.EmbeddingCosine
		total += weights.Embedding
	}

	composite /= total

	signals.TypeAgreement = !typeConflict(a.ParseType, b.ParseType)
	if !signals.TypeAgreement && composite > s.config.TypeConflictCap {
		composite = s.config.TypeConflictCap
		signals.CapApplied = true
	}

	return clamp01(composite), signals
}

// Classify maps a scored pair onto the three-state edge classification.
// Cross-block pairs carry weaker prior evidence, so both thresholds are
// raised by the configured margin for them.
func (s *Scorer) Classify(pair model.CandidatePair) model.PairClass {
	tLow, tHigh := s.config.TLow, s.config.THigh
	if pair.CrossBlock {
		tLow = math.Min(tLow+s.config.CrossBlockMargin, 1)
		tHigh = math.Min(tHigh+s.config.CrossBlockMargin, 1)
	}

	switch {
	case pair.CompositeScore >= tHigh:
		return model.PairClassMerge
	case pair.CompositeScore >= tLow:
		return model.PairClassReview
	default:
		return model.PairClassDiscard
	}
}

// comparableName prefers the parsed full name and falls back to the raw
// string for failed parses, so even confidence-zero mentions score.
func comparableName(m *model.IdentityMention) string {
	if full := m.Parsed.FullName(); full != "" {
		return blocking.NormalizeName(full)
	}
	return blocking.NormalizeName(m.RawName)
}

func editSimilarity(a, b string) float64 {
	if a == "" && b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	distance := levenshtein.ComputeDistance(a, b)
	longest := len([]rune(a))
	if l := len([]rune(b)); l > longest {
		longest = l
	}

	return 1 - float64(distance)/float64(longest)
}

func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return clamp01(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

func typeConflict(a, b model.ParseType) bool {
	if a == model.ParseTypeUnknown || b == model.ParseTypeUnknown {
		return false
	}
	return a != b
}

func clamp01(f float64) float64 {
	return math.Max(0, math.Min(1, f))
}
