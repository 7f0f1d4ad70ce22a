package candidate

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/siherrmann/resolver/core/blocking"
	"github.com/siherrmann/resolver/model"
)

// Pair is an unscored candidate comparison between two mentions, canonically
// ordered so that A sorts before B.
type Pair struct {
	A          uuid.UUID
	B          uuid.UUID
	CrossBlock bool
}

func newPair(a, b uuid.UUID, crossBlock bool) Pair {
	if b.String() < a.String() {
		a, b = b, a
	}
	return Pair{A: a, B: b, CrossBlock: crossBlock}
}

// NeighborSearcher finds the nearest mentions by embedding across all
// blocks. Implemented by the mentions database handler.
type NeighborSearcher interface {
	SelectMentionsBySimilarity(embedding []float32, limit int, exclude uuid.UUID) ([]*model.IdentityMention, error)
}

// Generator enumerates candidate pairs for one resolution run: all pairs
// within each block (sampled beyond the configured block size) plus optional
// cross-block pairs found via nearest-neighbor search over the embedding
// space.
type Generator struct {
	config   model.ResolutionConfig
	mentions map[uuid.UUID]*model.IdentityMention
	index    *blocking.Index
	searcher NeighborSearcher
}

// NewGenerator creates a generator over an immutable mention set and block
// index. The searcher may be nil to disable cross-block recall.
func NewGenerator(config model.ResolutionConfig, mentions []*model.IdentityMention, index *blocking.Index, searcher NeighborSearcher) *Generator {
	byID := make(map[uuid.UUID]*model.IdentityMention, len(mentions))
	for _, mention := range mentions {
		byID[mention.MentionID] = mention
	}
	return &Generator{
		config:   config,
		mentions: byID,
		index:    index,
		searcher: searcher,
	}
}

// WithinBlock emits the candidate pairs of one block. Blocks up to the
// configured maximum size are enumerated exhaustively; beyond that, each
// mention is only paired with its successors inside a sliding window over
// the sorted member IDs, which caps the worst case on pathologically common
// names while staying deterministic.
func (g *Generator) WithinBlock(key string) []Pair {
	members := g.index.Block(key)
	if len(members) < 2 {
		return nil
	}

	var pairs []Pair
	if len(members) <= g.config.MaxBlockSize {
		for i := 0; i < len(members); i++ {
			for j := i + 1; j < len(members); j++ {
				pairs = append(pairs, newPair(members[i], members[j], false))
			}
		}
		return pairs
	}

	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members) && j <= i+g.config.SampleWindow; j++ {
			pairs = append(pairs, newPair(members[i], members[j], false))
		}
	}
	return pairs
}

// CrossBlock emits cross-block pairs for high-value mentions: those at or
// above the parse-confidence floor that carry an embedding get a top-k
// nearest-neighbor lookup across all blocks. Pairs that would also surface
// within the mention's own block are skipped here.
func (g *Generator) CrossBlock(ctx context.Context) ([]Pair, error) {
	if g.searcher == nil || g.config.CrossBlockTopK == 0 {
		return nil, nil
	}

	ids := make([]uuid.UUID, 0, len(g.mentions))
	for id := range g.mentions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	var pairs []Pair
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		mention := g.mentions[id]
		if mention.ParseConfidence < g.config.CrossBlockMinConfidence || len(mention.Embedding) == 0 {
			continue
		}

		neighbors, err := g.searcher.SelectMentionsBySimilarity(mention.Embedding, g.config.CrossBlockTopK, mention.MentionID)
		if err != nil {
			return nil, err
		}

		for _, neighbor := range neighbors {
			if neighbor.MentionID == mention.MentionID {
				continue
			}
			if neighbor.BlockingKey == mention.BlockingKey {
				continue
			}
			pairs = append(pairs, newPair(mention.MentionID, neighbor.MentionID, true))
		}
	}

	return pairs, nil
}

// Dedupe sorts pairs canonically and removes duplicates. A pair surfacing
// both within a block and via embedding search keeps its within-block form,
// which faces the milder thresholds.
func Dedupe(pairs []Pair) []Pair {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].A != pairs[j].A {
			return pairs[i].A.String() < pairs[j].A.String()
		}
		if pairs[i].B != pairs[j].B {
			return pairs[i].B.String() < pairs[j].B.String()
		}
		return !pairs[i].CrossBlock && pairs[j].CrossBlock
	})

	deduped := pairs[:0]
	for _, pair := range pairs {
		if len(deduped) > 0 {
			last := deduped[len(deduped)-1]
			if last.A == pair.A && last.B == pair.B {
				continue
			}
		}
		deduped = append(deduped, pair)
	}
	return deduped
}

// Mention returns the mention behind an ID, for scoring.
func (g *Generator) Mention(id uuid.UUID) *model.IdentityMention {
	return g.mentions[id]
}
