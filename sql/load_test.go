package sql

import (
	"testing"

	"github.com/siherrmann/resolver/helper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initDB(t *testing.T) *helper.Database {
	helper.SetTestDatabaseConfigEnvs(t, dbPort)
	dbConfig, err := helper.NewDatabaseConfiguration()
	require.NoError(t, err, "failed to create database configuration")
	return helper.NewTestDatabase(dbConfig)
}

func TestInit(t *testing.T) {
	db := initDB(t)

	t.Run("Init creates the vector extension", func(t *testing.T) {
		err := Init(db.Instance)
		require.NoError(t, err, "Expected Init to not return an error")

		var exists bool
		err = db.Instance.QueryRow(
			`SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')`,
		).Scan(&exists)
		require.NoError(t, err)
		assert.True(t, exists, "Expected vector extension to be installed")
	})
}

func TestLoadFunctions(t *testing.T) {
	db := initDB(t)

	err := Init(db.Instance)
	require.NoError(t, err)

	t.Run("LoadMentionsSql creates all mention functions", func(t *testing.T) {
		err := LoadMentionsSql(db.Instance, true)
		require.NoError(t, err, "Expected LoadMentionsSql to not return an error")

		exist, err := checkFunctions(db.Instance, MentionsFunctions)
		require.NoError(t, err)
		assert.True(t, exist, "Expected all mention functions to exist")
	})

	t.Run("LoadEntitiesSql creates all entity functions", func(t *testing.T) {
		err := LoadEntitiesSql(db.Instance, true)
		require.NoError(t, err, "Expected LoadEntitiesSql to not return an error")

		exist, err := checkFunctions(db.Instance, EntitiesFunctions)
		require.NoError(t, err)
		assert.True(t, exist, "Expected all entity functions to exist")
	})

	t.Run("LoadDecisionsSql creates all decision functions", func(t *testing.T) {
		err := LoadDecisionsSql(db.Instance, true)
		require.NoError(t, err, "Expected LoadDecisionsSql to not return an error")

		exist, err := checkFunctions(db.Instance, DecisionsFunctions)
		require.NoError(t, err)
		assert.True(t, exist, "Expected all decision functions to exist")
	})

	t.Run("Loading twice without force is a no-op", func(t *testing.T) {
		err := LoadMentionsSql(db.Instance, false)
		assert.NoError(t, err, "Expected repeated load to not return an error")
	})

	t.Run("checkFunctions reports missing functions", func(t *testing.T) {
		exist, err := checkFunctions(db.Instance, []string{"definitely_not_a_function"})
		require.NoError(t, err)
		assert.False(t, exist, "Expected missing function to report false")
	})
}
