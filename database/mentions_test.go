package database

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/siherrmann/resolver/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEmbeddingDim = 3

func newTestMention(raw string, key string) *model.IdentityMention {
	return &model.IdentityMention{
		MentionID:       uuid.New(),
		SourceReference: "source-1",
		RawName:         raw,
		Parsed: model.ParsedName{
			Given:  "Jeffrey",
			Family: "Epstein",
		},
		ParseType:       model.ParseTypePerson,
		ParseConfidence: 0.9,
		BlockingKey:     key,
		Metadata:        model.Metadata{"row": 1},
	}
}

func TestMentionsNewMentionsDBHandler(t *testing.T) {
	database := initDB(t)

	t.Run("Valid call NewMentionsDBHandler", func(t *testing.T) {
		mentionsDbHandler, err := NewMentionsDBHandler(database, testEmbeddingDim, true)
		assert.NoError(t, err, "Expected NewMentionsDBHandler to not return an error")
		require.NotNil(t, mentionsDbHandler, "Expected NewMentionsDBHandler to return a non-nil instance")
		require.NotNil(t, mentionsDbHandler.db, "Expected NewMentionsDBHandler to have a non-nil database instance")
		require.NotNil(t, mentionsDbHandler.db.Instance, "Expected NewMentionsDBHandler to have a non-nil database connection instance")
	})

	t.Run("Invalid call NewMentionsDBHandler with nil database", func(t *testing.T) {
		_, err := NewMentionsDBHandler(nil, testEmbeddingDim, false)
		assert.Error(t, err, "Expected error when creating MentionsDBHandler with nil database")
		assert.Contains(t, err.Error(), "database connection is nil", "Expected specific error message for nil database connection")
	})
}

func TestMentionsInsert(t *testing.T) {
	database := initDB(t)

	mentionsDbHandler, err := NewMentionsDBHandler(database, testEmbeddingDim, true)
	require.NoError(t, err, "Expected NewMentionsDBHandler to not return an error")

	t.Run("Insert mention without embedding", func(t *testing.T) {
		mention := newTestMention("Jeffrey Epstein", "E123_j")

		err := mentionsDbHandler.InsertMention(mention)
		assert.NoError(t, err, "Expected Insert to not return an error")
		assert.WithinDuration(t, mention.CreatedAt, time.Now(), 2*time.Second, "Expected CreatedAt to be set")
		assert.Empty(t, mention.Embedding, "Expected no embedding to round-trip as empty")
	})

	t.Run("Insert mention with embedding", func(t *testing.T) {
		mention := newTestMention("Ghislaine Maxwell", "M240_g")
		mention.Embedding = []float32{0.1, 0.2, 0.3}

		err := mentionsDbHandler.InsertMention(mention)
		assert.NoError(t, err, "Expected Insert to not return an error")
		assert.Len(t, mention.Embedding, testEmbeddingDim, "Expected the embedding to round-trip")
	})

	t.Run("Insert duplicate mention ID fails", func(t *testing.T) {
		mention := newTestMention("Jeffrey Epstein", "E123_j")

		err := mentionsDbHandler.InsertMention(mention)
		require.NoError(t, err)

		duplicate := newTestMention("Jeffrey Epstein", "E123_j")
		duplicate.MentionID = mention.MentionID
		err = mentionsDbHandler.InsertMention(duplicate)
		assert.Error(t, err, "Expected duplicate primary key to fail, mentions are immutable")
	})
}

func TestMentionsSelect(t *testing.T) {
	database := initDB(t)

	mentionsDbHandler, err := NewMentionsDBHandler(database, testEmbeddingDim, true)
	require.NoError(t, err)

	mention := newTestMention("Robert Maxwell", "M240_r")
	mention.Parsed = model.ParsedName{Given: "Robert", Family: "Maxwell"}
	err = mentionsDbHandler.InsertMention(mention)
	require.NoError(t, err)

	t.Run("Select mention by ID", func(t *testing.T) {
		retrieved, err := mentionsDbHandler.SelectMention(mention.MentionID)
		assert.NoError(t, err, "Expected Select to not return an error")
		require.NotNil(t, retrieved)
		assert.Equal(t, mention.MentionID, retrieved.MentionID, "Expected mention IDs to match")
		assert.Equal(t, mention.RawName, retrieved.RawName, "Expected raw names to match")
		assert.Equal(t, mention.Parsed, retrieved.Parsed, "Expected parsed components to match")
		assert.Equal(t, model.ParseTypePerson, retrieved.ParseType, "Expected parse type to match")
	})

	t.Run("Select missing mention returns an error", func(t *testing.T) {
		_, err := mentionsDbHandler.SelectMention(uuid.New())
		assert.Error(t, err, "Expected Select of an unknown ID to return an error")
	})

	t.Run("Select mentions by blocking key", func(t *testing.T) {
		retrieved, err := mentionsDbHandler.SelectMentionsByBlockingKey("M240_r")
		assert.NoError(t, err, "Expected Select to not return an error")
		require.NotEmpty(t, retrieved)
		for _, m := range retrieved {
			assert.Equal(t, "M240_r", m.BlockingKey, "Expected only mentions of the requested block")
		}
	})

	t.Run("Select all mentions is ordered by ID", func(t *testing.T) {
		second := newTestMention("Robert Maxwel", "M240_r")
		err := mentionsDbHandler.InsertMention(second)
		require.NoError(t, err)

		all, err := mentionsDbHandler.SelectAllMentions()
		assert.NoError(t, err)
		require.GreaterOrEqual(t, len(all), 2)
		for i := 1; i < len(all); i++ {
			assert.Less(t, all[i-1].MentionID.String(), all[i].MentionID.String(),
				"Expected mentions ordered by ID")
		}
	})
}

func TestMentionsUpdateEmbedding(t *testing.T) {
	database := initDB(t)

	mentionsDbHandler, err := NewMentionsDBHandler(database, testEmbeddingDim, true)
	require.NoError(t, err)

	t.Run("Update embedding of an existing mention", func(t *testing.T) {
		mention := newTestMention("Jean-Luc Brunel", "B654_j")
		err := mentionsDbHandler.InsertMention(mention)
		require.NoError(t, err)

		err = mentionsDbHandler.UpdateMentionEmbedding(mention.MentionID, []float32{1, 0, 0})
		assert.NoError(t, err, "Expected UpdateMentionEmbedding to not return an error")

		retrieved, err := mentionsDbHandler.SelectMention(mention.MentionID)
		require.NoError(t, err)
		assert.Equal(t, []float32{1, 0, 0}, retrieved.Embedding, "Expected the embedding to be stored")
	})

	t.Run("Update embedding of a missing mention fails", func(t *testing.T) {
		err := mentionsDbHandler.UpdateMentionEmbedding(uuid.New(), []float32{1, 0, 0})
		assert.Error(t, err, "Expected update of an unknown mention to return an error")
	})
}

func TestMentionsSelectBySimilarity(t *testing.T) {
	database := initDB(t)

	mentionsDbHandler, err := NewMentionsDBHandler(database, testEmbeddingDim, true)
	require.NoError(t, err)

	near := newTestMention("Similar One", "S536_s")
	near.Embedding = []float32{0.6, 0.8, 0}
	far := newTestMention("Different One", "D136_d")
	far.Embedding = []float32{0, 0, 1}
	unembedded := newTestMention("No Vector", "N123_n")

	require.NoError(t, mentionsDbHandler.InsertMention(near))
	require.NoError(t, mentionsDbHandler.InsertMention(far))
	require.NoError(t, mentionsDbHandler.InsertMention(unembedded))

	t.Run("Nearest neighbors are ordered by similarity", func(t *testing.T) {
		results, err := mentionsDbHandler.SelectMentionsBySimilarity([]float32{0.6, 0.8, 0}, 10, uuid.Nil)
		assert.NoError(t, err, "Expected similarity search to not return an error")
		require.NotEmpty(t, results)
		assert.Equal(t, near.MentionID, results[0].MentionID, "Expected the closest vector first")
		assert.InDelta(t, 1.0, results[0].Similarity, 0.001, "Expected an identical vector to score similarity 1")
		for _, result := range results {
			assert.NotEmpty(t, result.Embedding, "Expected unembedded mentions to be excluded")
		}
	})

	t.Run("Excluded mention is filtered out", func(t *testing.T) {
		results, err := mentionsDbHandler.SelectMentionsBySimilarity([]float32{0.6, 0.8, 0}, 10, near.MentionID)
		assert.NoError(t, err)
		for _, result := range results {
			assert.NotEqual(t, near.MentionID, result.MentionID, "Expected the excluded mention to be absent")
		}
	})

	t.Run("Limit caps the result count", func(t *testing.T) {
		results, err := mentionsDbHandler.SelectMentionsBySimilarity([]float32{0.6, 0.8, 0}, 1, uuid.Nil)
		assert.NoError(t, err)
		assert.Len(t, results, 1, "Expected the limit to cap the result count")
	})
}

func TestMentionsChangeIndexType(t *testing.T) {
	database := initDB(t)

	mentionsDbHandler, err := NewMentionsDBHandler(database, testEmbeddingDim, true)
	require.NoError(t, err)

	t.Run("Change to HNSW index", func(t *testing.T) {
		err := mentionsDbHandler.ChangeIndexType(context.Background(), "hnsw", map[string]interface{}{"m": 8})
		assert.NoError(t, err, "Expected HNSW index creation to not return an error")
	})

	t.Run("Change to IVFFlat index", func(t *testing.T) {
		err := mentionsDbHandler.ChangeIndexType(context.Background(), "ivfflat", map[string]interface{}{"lists": 10})
		assert.NoError(t, err, "Expected IVFFlat index creation to not return an error")
	})

	t.Run("Unsupported index type fails", func(t *testing.T) {
		err := mentionsDbHandler.ChangeIndexType(context.Background(), "btree", nil)
		assert.Error(t, err, "Expected unsupported index type to return an error")
		assert.Contains(t, err.Error(), "unsupported index type")
	})
}
