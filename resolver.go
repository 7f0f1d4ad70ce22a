package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/siherrmann/resolver/core/blocking"
	"github.com/siherrmann/resolver/core/candidate"
	"github.com/siherrmann/resolver/core/parser"
	"github.com/siherrmann/resolver/core/resolution"
	"github.com/siherrmann/resolver/core/scoring"
	"github.com/siherrmann/resolver/database"
	"github.com/siherrmann/resolver/helper"
	"github.com/siherrmann/resolver/model"
	loadSql "github.com/siherrmann/resolver/sql"
	"golang.org/x/sync/errgroup"
)

// Resolver provides a unified interface to the full identity resolution
// pipeline: ingest, embedding attachment, batch resolution and the
// public-safe projections.
type Resolver struct {
	DB        *helper.Database
	Mentions  *database.MentionsDBHandler
	Entities  *database.EntitiesDBHandler
	Decisions *database.DecisionsDBHandler
	Config    model.ResolutionConfig
	// Logging
	log *slog.Logger
}

// MentionInput is one raw name occurrence handed to ingestion.
type MentionInput struct {
	RawName         string
	SourceReference string
	Protected       bool
	// TypeHint overrides the parser's type tag when the source already knows
	// what kind of subject the name denotes. Unknown or empty means no hint.
	TypeHint  model.ParseType
	Embedding []float32
	Metadata  model.Metadata
}

// NewResolver creates a new Resolver instance with all handlers initialized.
// A broken resolution configuration is fatal here, before any processing.
func NewResolver(dbConfig *helper.DatabaseConfiguration, config model.ResolutionConfig) (*Resolver, error) {
	err := config.Validate()
	if err != nil {
		return nil, helper.NewError("validate resolution configuration", err)
	}

	// Logger
	opts := helper.PrettyHandlerOptions{
		SlogOpts: slog.HandlerOptions{
			Level: slog.LevelInfo,
		},
	}
	logger := slog.New(helper.NewPrettyHandler(os.Stdout, opts))

	// Initialize database
	db := helper.NewDatabase("resolver", dbConfig, logger)
	err = loadSql.Init(db.Instance)
	if err != nil {
		return nil, helper.NewError("initialize database extensions", err)
	}

	// Create all handlers, force=false to not reload existing functions
	mentions, err := database.NewMentionsDBHandler(db, config.EmbeddingDim, false)
	if err != nil {
		return nil, helper.NewError("create mentions handler", err)
	}

	entities, err := database.NewEntitiesDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create entities handler", err)
	}

	decisions, err := database.NewDecisionsDBHandler(db, false)
	if err != nil {
		return nil, helper.NewError("create decisions handler", err)
	}

	return &Resolver{
		DB:        db,
		Mentions:  mentions,
		Entities:  entities,
		Decisions: decisions,
		Config:    config,
		log:       logger,
	}, nil
}

// Close closes the database connection
func (r *Resolver) Close() error {
	if r.DB != nil && r.DB.Instance != nil {
		return r.DB.Instance.Close()
	}
	return nil
}

// IngestMention parses and stores one raw name occurrence. A failed parse is
// stored anyway with confidence zero so the mention stays visible in its
// singleton entity; only inputs missing the raw name or source reference are
// rejected. A type hint from the source wins over the parser's type tag, the
// parse confidence stays the parser's own.
func (r *Resolver) IngestMention(input MentionInput) (*model.IdentityMention, error) {
	if strings.TrimSpace(input.RawName) == "" {
		return nil, helper.NewError("ingest mention", fmt.Errorf("raw name is empty"))
	}
	if strings.TrimSpace(input.SourceReference) == "" {
		return nil, helper.NewError("ingest mention", fmt.Errorf("source reference is empty"))
	}
	if len(input.Embedding) > 0 && len(input.Embedding) != r.Config.EmbeddingDim {
		return nil, helper.NewError("ingest mention",
			fmt.Errorf("embedding has %d dimensions, expected %d", len(input.Embedding), r.Config.EmbeddingDim))
	}

	result := parser.Parse(input.RawName)

	parseType := result.Type
	switch input.TypeHint {
	case "", model.ParseTypeUnknown:
	case model.ParseTypePerson, model.ParseTypeOrganization, model.ParseTypeHousehold:
		parseType = input.TypeHint
	default:
		return nil, helper.NewError("ingest mention",
			fmt.Errorf("unknown type hint %q", input.TypeHint))
	}

	mention := &model.IdentityMention{
		MentionID:       uuid.New(),
		SourceReference: input.SourceReference,
		RawName:         input.RawName,
		Parsed:          result.Parsed,
		ParseType:       parseType,
		ParseConfidence: result.Confidence,
		BlockingKey:     blocking.Key(r.Config.BlockingKeyVersion, result.Parsed),
		Embedding:       input.Embedding,
		Protected:       input.Protected,
		Metadata:        input.Metadata,
	}

	err := r.Mentions.InsertMention(mention)
	if err != nil {
		return nil, helper.NewError("insert mention", err)
	}

	return mention, nil
}

// IngestBatch ingests a batch of inputs. Invalid inputs are skipped with a
// log line and counted in the report instead of failing the batch; database
// errors still abort.
func (r *Resolver) IngestBatch(inputs []MentionInput) (*model.RunReport, error) {
	report := model.NewRunReport(uuid.Nil)

	for i, input := range inputs {
		if strings.TrimSpace(input.RawName) == "" || strings.TrimSpace(input.SourceReference) == "" {
			report.SkippedInvalid++
			report.AddExample("input %d: missing raw name or source reference", i)
			r.log.Warn("Skipped invalid input", slog.Int("index", i))
			continue
		}

		mention, err := r.IngestMention(input)
		if err != nil {
			return report, helper.NewError(fmt.Sprintf("ingest input %d", i), err)
		}

		report.MentionsLoaded++
		if mention.ParseConfidence == 0 {
			report.ParseFailures++
			report.AddExample("input %d: parse failed for %q", i, input.RawName)
		}
	}

	r.log.Info("Ingested batch",
		slog.Int("loaded", report.MentionsLoaded),
		slog.Int("skipped", report.SkippedInvalid),
		slog.Int("parse_failures", report.ParseFailures),
	)

	return report, nil
}

// AttachEmbedding stores the vector for a mention. Vectors come from an
// external embedding model; this library only consumes them.
func (r *Resolver) AttachEmbedding(mentionID uuid.UUID, embedding []float32) error {
	if len(embedding) != r.Config.EmbeddingDim {
		return helper.NewError("attach embedding",
			fmt.Errorf("embedding has %d dimensions, expected %d", len(embedding), r.Config.EmbeddingDim))
	}
	return r.Mentions.UpdateMentionEmbedding(mentionID, embedding)
}

// Resolve runs one full resolution pass over all stored mentions: blocking,
// candidate generation, scoring, clustering and the atomic commit of the new
// partition plus its decision log. Re-running over unchanged mentions and
// configuration reproduces the identical partition.
func (r *Resolver) Resolve(ctx context.Context) (*model.RunReport, error) {
	runID := uuid.New()
	report := model.NewRunReport(runID)

	orphans, err := r.Entities.CheckMembershipIntegrity()
	if err != nil {
		return nil, helper.NewError("check membership integrity", err)
	}
	if len(orphans) > 0 {
		for _, orphan := range orphans {
			report.AddExample("orphaned membership: entity %s, mention %s", orphan.EntityID, orphan.MentionID)
		}
		return report, helper.NewError("check membership integrity",
			fmt.Errorf("%d memberships reference missing mentions", len(orphans)))
	}

	mentions, err := r.Mentions.SelectAllMentions()
	if err != nil {
		return nil, helper.NewError("load mentions", err)
	}
	report.MentionsLoaded = len(mentions)
	for _, mention := range mentions {
		if mention.ParseConfidence == 0 {
			report.ParseFailures++
		}
	}

	suppressedIDs, err := r.Entities.SelectSuppressedMentions()
	if err != nil {
		return nil, helper.NewError("load suppressed mentions", err)
	}
	suppressed := make(map[uuid.UUID]bool, len(suppressedIDs))
	for _, id := range suppressedIDs {
		suppressed[id] = true
	}

	index := blocking.BuildIndex(mentions)
	report.Blocks = index.Len()

	pairs, err := r.scorePairs(ctx, mentions, index)
	if err != nil {
		return nil, err
	}
	report.Pairs = len(pairs)

	engine := resolution.NewEngine(r.Config, r.log)
	output := engine.Resolve(runID, resolution.Input{
		Mentions:   mentions,
		Pairs:      pairs,
		Suppressed: suppressed,
	})

	for _, decision := range output.Decisions {
		switch decision.Outcome {
		case model.PairClassMerge:
			report.Merged++
		case model.PairClassReview:
			report.Review++
		case model.PairClassDiscard:
			report.Discarded++
		}
	}
	report.Entities = len(output.Entities)
	for _, entity := range output.Entities {
		if entity.SuppressFromPublic {
			report.Suppressed++
		}
	}

	err = r.Entities.CommitRun(output.Entities, output.Memberships, output.Decisions)
	if err != nil {
		return nil, helper.NewError("commit run", err)
	}

	r.log.Info("Completed resolution run",
		slog.String("run_id", runID.String()),
		slog.Int("mentions", report.MentionsLoaded),
		slog.Int("blocks", report.Blocks),
		slog.Int("pairs", report.Pairs),
		slog.Int("entities", report.Entities),
		slog.Int("review", report.Review),
		slog.Int("suppressed", report.Suppressed),
	)

	return report, nil
}

// scorePairs enumerates and scores all candidate pairs. Within-block scoring
// fans out one worker per block; the embedding-based cross-block pass runs
// after it, deduplicated canonically.
func (r *Resolver) scorePairs(ctx context.Context, mentions []*model.IdentityMention, index *blocking.Index) ([]model.CandidatePair, error) {
	generator := candidate.NewGenerator(r.Config, mentions, index, r.Mentions)
	scorer := scoring.NewScorer(r.Config)

	keys := index.Keys()
	scoredPerBlock := make([][]model.CandidatePair, len(keys))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.Config.Workers)

	for i, key := range keys {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			blockPairs := generator.WithinBlock(key)
			scored := make([]model.CandidatePair, 0, len(blockPairs))
			for _, pair := range blockPairs {
				scored = append(scored, r.scorePair(scorer, generator, pair))
			}
			scoredPerBlock[i] = scored
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, helper.NewError("score blocks", err)
	}

	var pairs []model.CandidatePair
	for _, scored := range scoredPerBlock {
		pairs = append(pairs, scored...)
	}

	// Cross-block recall skips same-block neighbors, so the only duplicates
	// left are mirrored lookups finding each other.
	crossPairs, err := generator.CrossBlock(ctx)
	if err != nil {
		return nil, helper.NewError("generate cross-block pairs", err)
	}
	for _, pair := range candidate.Dedupe(crossPairs) {
		pairs = append(pairs, r.scorePair(scorer, generator, pair))
	}

	return pairs, nil
}

func (r *Resolver) scorePair(scorer *scoring.Scorer, generator *candidate.Generator, pair candidate.Pair) model.CandidatePair {
	a := generator.Mention(pair.A)
	b := generator.Mention(pair.B)

	score, signals := scorer.Score(a, b)
	scored := model.NewCandidatePair(pair.A, pair.B)
	scored.CompositeScore = score
	scored.Signals = signals
	scored.CrossBlock = pair.CrossBlock
	return scored
}

// PublicEntities returns the public-safe projection: suppressed entities are
// excluded, as are singleton entities below the disclosure floor.
func (r *Resolver) PublicEntities() ([]*model.ResolvedEntity, error) {
	return r.Entities.SelectPublicEntities(r.Config.DisclosureFloor)
}

// ReviewQueue returns the manual-review pairs of the most recent run,
// strongest first.
func (r *Resolver) ReviewQueue() ([]*model.MergeDecision, error) {
	runID, err := r.Decisions.SelectLatestRunID()
	if err != nil {
		return nil, err
	}
	if runID == uuid.Nil {
		return nil, nil
	}
	return r.Decisions.SelectReviewQueue(runID)
}

// ChangeIndexType changes the vector index type between HNSW and IVFFlat
func (r *Resolver) ChangeIndexType(ctx context.Context, indexType string, params map[string]interface{}) error {
	return r.Mentions.ChangeIndexType(ctx, indexType, params)
}
