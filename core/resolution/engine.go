package resolution

import (
	"log/slog"
	"sort"

	"github.com/google/uuid"
	"github.com/siherrmann/resolver/core/scoring"
	"github.com/siherrmann/resolver/model"
)

// entityNamespace seeds the content-derived entity IDs. Re-running
// resolution over unchanged inputs reproduces not only the partition but
// the entity IDs themselves.
var entityNamespace = uuid.MustParse("b8f66f35-7d51-4b3a-9ef1-3f8d2a4c6e90")

// Engine turns scored candidate pairs into a disjoint partition of resolved
// entities. The merge pass is single-writer: pairs from all blocks are
// funneled into one deterministically ordered pass, which is what makes
// re-runs reproduce identical clusters.
type Engine struct {
	config model.ResolutionConfig
	scorer *scoring.Scorer
	log    *slog.Logger
}

// NewEngine creates a resolution engine.
func NewEngine(config model.ResolutionConfig, logger *slog.Logger) *Engine {
	return &Engine{
		config: config,
		scorer: scoring.NewScorer(config),
		log:    logger,
	}
}

// Input is one resolution pass over an immutable mention set.
type Input struct {
	Mentions []*model.IdentityMention
	Pairs    []model.CandidatePair
	// Suppressed is the sticky set of mention IDs that were ever members of
	// a suppressed entity. Suppression is monotonic: membership here can
	// only grow through the pipeline's normal input path.
	Suppressed map[uuid.UUID]bool
}

// Output is the complete result of one resolution pass, committed
// atomically by the caller.
type Output struct {
	Entities    []*model.ResolvedEntity
	Memberships []*model.Membership
	Decisions   []*model.MergeDecision
}

// Resolve classifies every pair, unions the merge-class edges, and shapes
// the resulting components into entities. Review-class pairs never merge;
// they are logged for the manual-review queue. Any sub-merge edge that ends
// up internal to a cluster keeps that cluster unverified.
func (e *Engine) Resolve(runID uuid.UUID, in Input) *Output {
	pairs := make([]model.CandidatePair, len(in.Pairs))
	copy(pairs, in.Pairs)
	sortPairs(pairs)

	ids := make([]uuid.UUID, len(in.Mentions))
	byID := make(map[uuid.UUID]*model.IdentityMention, len(in.Mentions))
	for i, mention := range in.Mentions {
		ids[i] = mention.MentionID
		byID[mention.MentionID] = mention
	}

	uf := NewUnionFind(ids)
	decisions := make([]*model.MergeDecision, 0, len(pairs))
	var review []model.CandidatePair
	var belowMerge []model.CandidatePair
	merged := make(map[uuid.UUID][]model.CandidatePair)

	for _, pair := range pairs {
		class := e.scorer.Classify(pair)
		switch class {
		case model.PairClassMerge:
			uf.Union(pair.A, pair.B)
			// Remember merge edges per endpoint for membership scores.
			merged[pair.A] = append(merged[pair.A], pair)
			merged[pair.B] = append(merged[pair.B], pair)
		case model.PairClassReview:
			review = append(review, pair)
			belowMerge = append(belowMerge, pair)
		case model.PairClassDiscard:
			belowMerge = append(belowMerge, pair)
		}
		decisions = append(decisions, &model.MergeDecision{
			DecisionID:     uuid.NewSHA1(entityNamespace, decisionSeed(runID, pair)),
			RunID:          runID,
			MentionA:       pair.A,
			MentionB:       pair.B,
			CompositeScore: pair.CompositeScore,
			Signals:        pair.Signals,
			Outcome:        class,
			CrossBlock:     pair.CrossBlock,
		})
	}

	// Verification demands that every candidate edge inside the final
	// cluster was merge-class. Any review or discard edge between two
	// members merged transitively is a weak bridge and keeps the whole
	// cluster unverified, even when every merge edge is strong.
	weakInternal := make(map[uuid.UUID]bool)
	for _, pair := range belowMerge {
		if uf.Connected(pair.A, pair.B) {
			weakInternal[uf.Find(pair.A)] = true
		}
	}

	components := uf.Components()
	roots := make([]uuid.UUID, 0, len(components))
	for root := range components {
		roots = append(roots, root)
	}
	sort.Slice(roots, func(i, j int) bool { return roots[i].String() < roots[j].String() })

	output := &Output{}
	for _, root := range roots {
		members := components[root]
		sort.Slice(members, func(i, j int) bool { return members[i].String() < members[j].String() })

		entity := e.buildEntity(members, byID, in.Suppressed, weakInternal[root])
		output.Entities = append(output.Entities, entity)

		for _, memberID := range members {
			output.Memberships = append(output.Memberships, &model.Membership{
				EntityID:  entity.EntityID,
				MentionID: memberID,
				Score:     membershipScore(memberID, byID[memberID], merged, uf),
			})
		}
	}
	output.Decisions = decisions

	if e.log != nil {
		e.log.Info("Resolved mention partition",
			slog.String("run_id", runID.String()),
			slog.Int("mentions", len(in.Mentions)),
			slog.Int("entities", len(output.Entities)),
			slog.Int("review", len(review)),
		)
	}

	return output
}

func (e *Engine) buildEntity(members []uuid.UUID, byID map[uuid.UUID]*model.IdentityMention, suppressed map[uuid.UUID]bool, weakInternal bool) *model.ResolvedEntity {
	canonical := byID[members[0]]
	suppress := false
	for _, memberID := range members {
		mention := byID[memberID]
		if mention.Protected || suppressed[memberID] {
			suppress = true
		}
		// Highest parse confidence wins, ties break on the earliest
		// mention ID. Members are pre-sorted, so the first max wins.
		if mention.ParseConfidence > canonical.ParseConfidence {
			canonical = mention
		}
	}

	return &model.ResolvedEntity{
		EntityID:           entityID(members),
		CanonicalName:      canonical.RawName,
		EntityType:         voteEntityType(members, byID),
		MemberMentionIDs:   members,
		IsVerified:         len(members) > 1 && !weakInternal,
		SuppressFromPublic: suppress,
	}
}

// voteEntityType takes the majority member type; ties break on type
// precedence (Organization over Household over Person over Unknown).
func voteEntityType(members []uuid.UUID, byID map[uuid.UUID]*model.IdentityMention) model.ParseType {
	counts := make(map[model.ParseType]int)
	for _, memberID := range members {
		counts[byID[memberID].ParseType]++
	}

	winner := model.ParseTypeUnknown
	winnerCount := 0
	for candidate, count := range counts {
		if count > winnerCount || (count == winnerCount && candidate.Precedence() > winner.Precedence()) {
			winner = candidate
			winnerCount = count
		}
	}
	return winner
}

// membershipScore is the strongest merge edge that binds the member into
// its cluster, or the parse confidence for singletons, recorded in the
// entity-mention map for traceability.
func membershipScore(memberID uuid.UUID, mention *model.IdentityMention, merged map[uuid.UUID][]model.CandidatePair, uf *UnionFind) float64 {
	best := 0.0
	found := false
	for _, pair := range merged[memberID] {
		if uf.Connected(pair.A, pair.B) {
			found = true
			if pair.CompositeScore > best {
				best = pair.CompositeScore
			}
		}
	}
	if !found {
		return mention.ParseConfidence
	}
	return best
}

// entityID derives a reproducible entity ID from the sorted member set.
func entityID(members []uuid.UUID) uuid.UUID {
	seed := make([]byte, 0, len(members)*16)
	for _, memberID := range members {
		seed = append(seed, memberID[:]...)
	}
	return uuid.NewSHA1(entityNamespace, seed)
}

func decisionSeed(runID uuid.UUID, pair model.CandidatePair) []byte {
	seed := make([]byte, 0, 48)
	seed = append(seed, runID[:]...)
	seed = append(seed, pair.A[:]...)
	seed = append(seed, pair.B[:]...)
	return seed
}

// sortPairs orders pairs for the single-writer merge pass: score
// descending, then canonical ID order. The order is total, so every run
// over the same pair set walks them identically.
func sortPairs(pairs []model.CandidatePair) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].CompositeScore != pairs[j].CompositeScore {
			return pairs[i].CompositeScore > pairs[j].CompositeScore
		}
		if pairs[i].A != pairs[j].A {
			return pairs[i].A.String() < pairs[j].A.String()
		}
		return pairs[i].B.String() < pairs[j].B.String()
	})
}
