package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed mentions.sql
var mentionsSQL string

//go:embed entities.sql
var entitiesSQL string

//go:embed decisions.sql
var decisionsSQL string

// Function lists for verification
var MentionsFunctions = []string{
	"init_mentions",
	"insert_mention",
	"select_mention",
	"select_all_mentions",
	"select_mentions_by_blocking_key",
	"select_mentions_by_similarity",
	"update_mention_embedding",
}

var EntitiesFunctions = []string{
	"init_entities",
	"insert_entity",
	"insert_membership",
	"delete_all_entities",
	"select_entity",
	"select_all_entities",
	"select_memberships",
	"select_public_entities",
	"mark_mention_suppressed",
	"select_suppressed_mentions",
	"check_membership_integrity",
}

var DecisionsFunctions = []string{
	"init_decisions",
	"insert_decision",
	"select_decisions_by_run",
	"select_latest_run_id",
	"select_review_queue",
}

// Init intializes db extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadMentionsSql loads mention-related SQL functions
func LoadMentionsSql(db *sql.DB, force bool) error {
	return loadFunctions(db, "mentions", mentionsSQL, MentionsFunctions, force)
}

// LoadEntitiesSql loads entity-related SQL functions
func LoadEntitiesSql(db *sql.DB, force bool) error {
	return loadFunctions(db, "entities", entitiesSQL, EntitiesFunctions, force)
}

// LoadDecisionsSql loads decision-log SQL functions
func LoadDecisionsSql(db *sql.DB, force bool) error {
	return loadFunctions(db, "decisions", decisionsSQL, DecisionsFunctions, force)
}

func loadFunctions(db *sql.DB, name string, functionsSQL string, functions []string, force bool) error {
	if !force {
		exist, err := checkFunctions(db, functions)
		if err != nil {
			return fmt.Errorf("error checking existing %s functions: %w", name, err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(functionsSQL)
	if err != nil {
		return fmt.Errorf("error executing %s SQL: %w", name, err)
	}

	exist, err := checkFunctions(db, functions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Printf("SQL %s functions loaded successfully", name)
	return nil
}

func checkFunctions(db *sql.DB, functions []string) (bool, error) {
	for _, function := range functions {
		var exists bool
		err := db.QueryRow(
			`SELECT EXISTS (SELECT 1 FROM pg_proc WHERE proname = $1)`,
			function,
		).Scan(&exists)
		if err != nil {
			return false, fmt.Errorf("error checking function %s: %w", function, err)
		}
		if !exists {
			return false, nil
		}
	}
	return true, nil
}
