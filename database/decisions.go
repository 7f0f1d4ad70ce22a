package database

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/resolver/helper"
	"github.com/siherrmann/resolver/model"
	loadSql "github.com/siherrmann/resolver/sql"
)

// DecisionsDBHandlerFunctions defines the interface for decision log operations.
// The log is append-only; there are no update or delete operations.
type DecisionsDBHandlerFunctions interface {
	InsertDecision(decision *model.MergeDecision) error
	SelectDecisionsByRun(runID uuid.UUID) ([]*model.MergeDecision, error)
	SelectLatestRunID() (uuid.UUID, error)
	SelectReviewQueue(runID uuid.UUID) ([]*model.MergeDecision, error)
}

// DecisionsDBHandler handles merge decision log operations
type DecisionsDBHandler struct {
	db *helper.Database
}

// NewDecisionsDBHandler creates a new decisions database handler.
// It initializes the database connection and loads decision-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewDecisionsDBHandler(db *helper.Database, force bool) (*DecisionsDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	decisionsDbHandler := &DecisionsDBHandler{
		db: db,
	}

	err := loadSql.LoadDecisionsSql(decisionsDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load decisions sql", err)
	}

	err = decisionsDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized DecisionsDBHandler")

	return decisionsDbHandler, nil
}

// CreateTable creates the 'merge_decisions' table in the database.
// If the table already exists, it does not create it again.
func (h *DecisionsDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_decisions();`)
	if err != nil {
		log.Panicf("error initializing merge_decisions table: %#v", err)
	}

	h.db.Logger.Info("Checked/created table merge_decisions")

	return nil
}

// InsertDecision appends a decision to the log
func (h *DecisionsDBHandler) InsertDecision(decision *model.MergeDecision) error {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM insert_decision($1, $2, $3, $4, $5, $6, $7, $8)`,
		decision.DecisionID,
		decision.RunID,
		decision.MentionA,
		decision.MentionB,
		decision.CompositeScore,
		decision.Signals,
		decision.Outcome,
		decision.CrossBlock,
	)

	err := row.Scan(
		&decision.DecisionID,
		&decision.RunID,
		&decision.MentionA,
		&decision.MentionB,
		&decision.CompositeScore,
		&decision.Signals,
		&decision.Outcome,
		&decision.CrossBlock,
		&decision.DecidedAt,
	)
	if err != nil {
		return helper.NewError("scan", err)
	}

	return nil
}

// SelectDecisionsByRun retrieves all decisions of one run, strongest first
func (h *DecisionsDBHandler) SelectDecisionsByRun(runID uuid.UUID) ([]*model.MergeDecision, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_decisions_by_run($1)`,
		runID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return scanDecisions(rows)
}

// SelectLatestRunID returns the run ID of the most recent decision, or
// uuid.Nil when no run has been recorded yet.
func (h *DecisionsDBHandler) SelectLatestRunID() (uuid.UUID, error) {
	row := h.db.Instance.QueryRow(`SELECT select_latest_run_id()`)

	var runID sql.NullString
	err := row.Scan(&runID)
	if err != nil {
		return uuid.Nil, helper.NewError("scan", err)
	}

	if !runID.Valid {
		return uuid.Nil, nil
	}

	parsed, err := uuid.Parse(runID.String)
	if err != nil {
		return uuid.Nil, helper.NewError("parse run id", err)
	}

	return parsed, nil
}

// SelectReviewQueue retrieves the review-class decisions of one run,
// strongest first, for manual adjudication.
func (h *DecisionsDBHandler) SelectReviewQueue(runID uuid.UUID) ([]*model.MergeDecision, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_review_queue($1)`,
		runID,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	return scanDecisions(rows)
}

func scanDecisions(rows *sql.Rows) ([]*model.MergeDecision, error) {
	var decisions []*model.MergeDecision
	for rows.Next() {
		decision := &model.MergeDecision{}
		err := rows.Scan(
			&decision.DecisionID,
			&decision.RunID,
			&decision.MentionA,
			&decision.MentionB,
			&decision.CompositeScore,
			&decision.Signals,
			&decision.Outcome,
			&decision.CrossBlock,
			&decision.DecidedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		decisions = append(decisions, decision)
	}

	err := rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return decisions, nil
}
