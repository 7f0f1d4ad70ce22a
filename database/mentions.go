package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/siherrmann/resolver/helper"
	"github.com/siherrmann/resolver/model"
	loadSql "github.com/siherrmann/resolver/sql"
)

// MentionsDBHandlerFunctions defines the interface for mention database operations.
type MentionsDBHandlerFunctions interface {
	InsertMention(mention *model.IdentityMention) error
	SelectMention(id uuid.UUID) (*model.IdentityMention, error)
	SelectAllMentions() ([]*model.IdentityMention, error)
	SelectMentionsByBlockingKey(key string) ([]*model.IdentityMention, error)
	UpdateMentionEmbedding(id uuid.UUID, embedding []float32) error
	SelectMentionsBySimilarity(embedding []float32, limit int, exclude uuid.UUID) ([]*model.IdentityMention, error)
}

// MentionsDBHandler handles mention-related database operations
type MentionsDBHandler struct {
	db *helper.Database
}

// NewMentionsDBHandler creates a new mentions database handler.
// It initializes the database connection and loads mention-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewMentionsDBHandler(db *helper.Database, embeddingDim int, force bool) (*MentionsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	mentionsDbHandler := &MentionsDBHandler{
		db: db,
	}

	err := loadSql.LoadMentionsSql(mentionsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load mentions sql", err)
	}

	err = mentionsDbHandler.CreateTable(embeddingDim)
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized MentionsDBHandler")

	return mentionsDbHandler, nil
}

// CreateTable creates the 'mentions' table in the database.
// If the table already exists, it does not create it again.
// It also creates all necessary indexes.
func (h *MentionsDBHandler) CreateTable(embeddingDim int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_mentions($1);`, embeddingDim)
	if err != nil {
		log.Panicf("error initializing mentions table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table mentions")

	return nil
}

// InsertMention inserts a new mention
func (h *MentionsDBHandler) InsertMention(mention *model.IdentityMention) error {
	var embeddingParam interface{}
	if len(mention.Embedding) > 0 {
		embeddingParam = pq.Array(mention.Embedding)
	}

	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_mention($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		mention.MentionID,
		mention.SourceReference,
		mention.RawName,
		mention.Parsed.Prefix,
		mention.Parsed.Given,
		mention.Parsed.Middle,
		mention.Parsed.Family,
		mention.Parsed.Suffix,
		mention.Parsed.Nickname,
		mention.ParseType,
		mention.ParseConfidence,
		mention.BlockingKey,
		embeddingParam,
		mention.Protected,
		mention.Metadata,
	)

	return scanMention(row, mention)
}

// SelectMention retrieves a mention by ID
func (h *MentionsDBHandler) SelectMention(id uuid.UUID) (*model.IdentityMention, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_mention($1)`,
		id,
	)

	mention := &model.IdentityMention{}
	err := scanMention(row, mention)
	if err != nil {
		return nil, err
	}

	return mention, nil
}

// SelectAllMentions retrieves all mentions ordered by ID
func (h *MentionsDBHandler) SelectAllMentions() ([]*model.IdentityMention, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_all_mentions()`,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return scanMentions(rows)
}

// SelectMentionsByBlockingKey retrieves all mentions sharing a blocking key
func (h *MentionsDBHandler) SelectMentionsByBlockingKey(key string) ([]*model.IdentityMention, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_mentions_by_blocking_key($1)`,
		key,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return scanMentions(rows)
}

// UpdateMentionEmbedding sets the embedding of a mention.
// The embedding is the only mention column written after insert.
func (h *MentionsDBHandler) UpdateMentionEmbedding(id uuid.UUID, embedding []float32) error {
	embeddingVector := pgvector.NewVector(embedding)
	_, err := h.db.Instance.Exec(
		`SELECT update_mention_embedding($1, $2)`,
		id,
		embeddingVector,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectMentionsBySimilarity performs vector similarity search across all
// blocks, excluding the given mention ID.
func (h *MentionsDBHandler) SelectMentionsBySimilarity(embedding []float32, limit int, exclude uuid.UUID) ([]*model.IdentityMention, error) {
	embeddingVector := pgvector.NewVector(embedding)

	var excludeParam interface{}
	if exclude != uuid.Nil {
		excludeParam = exclude
	}

	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_mentions_by_similarity($1, $2, $3)`,
		embeddingVector,
		limit,
		excludeParam,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var results []*model.IdentityMention
	for rows.Next() {
		mention := &model.IdentityMention{}
		err := rows.Scan(
			&mention.MentionID,
			&mention.SourceReference,
			&mention.RawName,
			&mention.Parsed.Prefix,
			&mention.Parsed.Given,
			&mention.Parsed.Middle,
			&mention.Parsed.Family,
			&mention.Parsed.Suffix,
			&mention.Parsed.Nickname,
			&mention.ParseType,
			&mention.ParseConfidence,
			&mention.BlockingKey,
			pq.Array(&mention.Embedding),
			&mention.Protected,
			&mention.Metadata,
			&mention.CreatedAt,
			&mention.Similarity,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		results = append(results, mention)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return results, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMention(row rowScanner, mention *model.IdentityMention) error {
	err := row.Scan(
		&mention.MentionID,
		&mention.SourceReference,
		&mention.RawName,
		&mention.Parsed.Prefix,
		&mention.Parsed.Given,
		&mention.Parsed.Middle,
		&mention.Parsed.Family,
		&mention.Parsed.Suffix,
		&mention.Parsed.Nickname,
		&mention.ParseType,
		&mention.ParseConfidence,
		&mention.BlockingKey,
		pq.Array(&mention.Embedding),
		&mention.Protected,
		&mention.Metadata,
		&mention.CreatedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}
	return nil
}

func scanMentions(rows *sql.Rows) ([]*model.IdentityMention, error) {
	var mentions []*model.IdentityMention
	for rows.Next() {
		mention := &model.IdentityMention{}
		if err := scanMention(rows, mention); err != nil {
			return nil, err
		}
		mentions = append(mentions, mention)
	}

	err := rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return mentions, nil
}
