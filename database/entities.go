package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/resolver/helper"
	"github.com/siherrmann/resolver/model"
	loadSql "github.com/siherrmann/resolver/sql"
)

// EntitiesDBHandlerFunctions defines the interface for entity database operations.
type EntitiesDBHandlerFunctions interface {
	CommitRun(entities []*model.ResolvedEntity, memberships []*model.Membership, decisions []*model.MergeDecision) error
	SelectEntity(id uuid.UUID) (*model.ResolvedEntity, error)
	SelectAllEntities() ([]*model.ResolvedEntity, error)
	SelectPublicEntities(disclosureFloor float64) ([]*model.ResolvedEntity, error)
	SelectMemberships() ([]*model.Membership, error)
	MarkMentionSuppressed(id uuid.UUID) error
	SelectSuppressedMentions() ([]uuid.UUID, error)
	CheckMembershipIntegrity() ([]*model.Membership, error)
}

// EntitiesDBHandler handles entity-related database operations
type EntitiesDBHandler struct {
	db *helper.Database
}

// NewEntitiesDBHandler creates a new entities database handler.
// It initializes the database connection and loads entity-related SQL functions.
// If force is true, it will reload the SQL functions even if they already exist.
func NewEntitiesDBHandler(db *helper.Database, force bool) (*EntitiesDBHandler, error) {
	if db == nil {
		return nil, helper.NewError("database connection validation", fmt.Errorf("database connection is nil"))
	}

	entitiesDbHandler := &EntitiesDBHandler{
		db: db,
	}

	err := loadSql.LoadEntitiesSql(entitiesDbHandler.db.Instance, force)
	if err != nil {
		return nil, helper.NewError("load entities sql", err)
	}

	err = entitiesDbHandler.CreateTable()
	if err != nil {
		return nil, helper.NewError("create table", err)
	}

	db.Logger.Info("Initialized EntitiesDBHandler")

	return entitiesDbHandler, nil
}

// CreateTable creates the 'entities', 'entity_mention_map' and
// 'suppressed_mentions' tables in the database.
// If the tables already exist, it does not create them again.
func (h *EntitiesDBHandler) CreateTable() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := h.db.Instance.ExecContext(ctx, `SELECT init_entities();`)
	if err != nil {
		log.Panicf("error initializing entities tables: %#v", err)
	}

	h.db.Logger.Info("Checked/created tables entities, entity_mention_map, suppressed_mentions")

	return nil
}

// CommitRun replaces the entire resolved partition and appends the run's
// decision log in one transaction. Suppressed entities additionally record
// their members in the sticky suppression set. A failed commit leaves the
// previous partition untouched.
func (h *EntitiesDBHandler) CommitRun(entities []*model.ResolvedEntity, memberships []*model.Membership, decisions []*model.MergeDecision) error {
	tx, err := h.db.Instance.Begin()
	if err != nil {
		return helper.NewError("begin transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`SELECT delete_all_entities()`)
	if err != nil {
		return helper.NewError("delete previous partition", err)
	}

	for _, entity := range entities {
		_, err = tx.Exec(
			`SELECT insert_entity($1, $2, $3, $4, $5)`,
			entity.EntityID,
			entity.CanonicalName,
			entity.EntityType,
			entity.IsVerified,
			entity.SuppressFromPublic,
		)
		if err != nil {
			return helper.NewError("insert entity", err)
		}

		if entity.SuppressFromPublic {
			for _, memberID := range entity.MemberMentionIDs {
				_, err = tx.Exec(`SELECT mark_mention_suppressed($1)`, memberID)
				if err != nil {
					return helper.NewError("mark mention suppressed", err)
				}
			}
		}
	}

	for _, membership := range memberships {
		_, err = tx.Exec(
			`SELECT insert_membership($1, $2, $3)`,
			membership.EntityID,
			membership.MentionID,
			membership.Score,
		)
		if err != nil {
			return helper.NewError("insert membership", err)
		}
	}

	for _, decision := range decisions {
		_, err = tx.Exec(
			`SELECT insert_decision($1, $2, $3, $4, $5, $6, $7, $8)`,
			decision.DecisionID,
			decision.RunID,
			decision.MentionA,
			decision.MentionB,
			decision.CompositeScore,
			decision.Signals,
			decision.Outcome,
			decision.CrossBlock,
		)
		if err != nil {
			return helper.NewError("insert decision", err)
		}
	}

	err = tx.Commit()
	if err != nil {
		return helper.NewError("commit transaction", err)
	}

	return nil
}

// SelectEntity retrieves an entity by ID with its member mention IDs.
func (h *EntitiesDBHandler) SelectEntity(id uuid.UUID) (*model.ResolvedEntity, error) {
	row := h.db.Instance.QueryRow(
		`SELECT * FROM select_entity($1)`,
		id,
	)

	entity := &model.ResolvedEntity{}
	err := row.Scan(
		&entity.EntityID,
		&entity.CanonicalName,
		&entity.EntityType,
		&entity.IsVerified,
		&entity.SuppressFromPublic,
		&entity.CreatedAt,
	)
	if err != nil {
		return nil, helper.NewError("scan", err)
	}

	err = h.attachMembers([]*model.ResolvedEntity{entity})
	if err != nil {
		return nil, err
	}

	return entity, nil
}

// SelectAllEntities retrieves all entities with their member mention IDs.
func (h *EntitiesDBHandler) SelectAllEntities() ([]*model.ResolvedEntity, error) {
	return h.selectEntities(`SELECT * FROM select_all_entities()`)
}

// SelectPublicEntities retrieves the public-safe projection: suppressed
// entities are excluded, as are singleton entities below the disclosure floor.
func (h *EntitiesDBHandler) SelectPublicEntities(disclosureFloor float64) ([]*model.ResolvedEntity, error) {
	return h.selectEntities(`SELECT * FROM select_public_entities($1)`, disclosureFloor)
}

func (h *EntitiesDBHandler) selectEntities(query string, args ...interface{}) ([]*model.ResolvedEntity, error) {
	rows, err := h.db.Instance.Query(query, args...)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var entities []*model.ResolvedEntity
	for rows.Next() {
		entity := &model.ResolvedEntity{}
		err := rows.Scan(
			&entity.EntityID,
			&entity.CanonicalName,
			&entity.EntityType,
			&entity.IsVerified,
			&entity.SuppressFromPublic,
			&entity.CreatedAt,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		entities = append(entities, entity)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	err = h.attachMembers(entities)
	if err != nil {
		return nil, err
	}

	return entities, nil
}

func (h *EntitiesDBHandler) attachMembers(entities []*model.ResolvedEntity) error {
	if len(entities) == 0 {
		return nil
	}

	memberships, err := h.SelectMemberships()
	if err != nil {
		return err
	}

	membersByEntity := make(map[uuid.UUID][]uuid.UUID)
	for _, membership := range memberships {
		membersByEntity[membership.EntityID] = append(membersByEntity[membership.EntityID], membership.MentionID)
	}

	for _, entity := range entities {
		entity.MemberMentionIDs = membersByEntity[entity.EntityID]
	}

	return nil
}

// SelectMemberships retrieves the full entity-mention map.
func (h *EntitiesDBHandler) SelectMemberships() ([]*model.Membership, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_memberships()`,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var memberships []*model.Membership
	for rows.Next() {
		membership := &model.Membership{}
		err := rows.Scan(
			&membership.EntityID,
			&membership.MentionID,
			&membership.Score,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		memberships = append(memberships, membership)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return memberships, nil
}

// MarkMentionSuppressed adds a mention to the sticky suppression set.
// Already suppressed mentions are left unchanged.
func (h *EntitiesDBHandler) MarkMentionSuppressed(id uuid.UUID) error {
	_, err := h.db.Instance.Exec(
		`SELECT mark_mention_suppressed($1)`,
		id,
	)
	if err != nil {
		return helper.NewError("exec", err)
	}
	return nil
}

// SelectSuppressedMentions retrieves the sticky suppression set.
func (h *EntitiesDBHandler) SelectSuppressedMentions() ([]uuid.UUID, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM select_suppressed_mentions()`,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		err := rows.Scan(&id)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		ids = append(ids, id)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return ids, nil
}

// CheckMembershipIntegrity returns memberships whose mention no longer
// exists. A non-empty result means the store drifted out of band and the
// caller must abort instead of resolving over inconsistent data.
func (h *EntitiesDBHandler) CheckMembershipIntegrity() ([]*model.Membership, error) {
	rows, err := h.db.Instance.Query(
		`SELECT * FROM check_membership_integrity()`,
	)
	if err != nil {
		return nil, helper.NewError("query", err)
	}
	defer rows.Close()

	var orphans []*model.Membership
	for rows.Next() {
		membership := &model.Membership{}
		err := rows.Scan(
			&membership.EntityID,
			&membership.MentionID,
		)
		if err != nil {
			return nil, helper.NewError("scan", err)
		}

		orphans = append(orphans, membership)
	}

	err = rows.Err()
	if err != nil {
		return nil, helper.NewError("rows error", err)
	}

	return orphans, nil
}
