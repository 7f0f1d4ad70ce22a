package blocking

import (
	"testing"

	"github.com/google/uuid"
	"github.com/siherrmann/resolver/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	t.Run("Lowercases and strips punctuation", func(t *testing.T) {
		assert.Equal(t, "o brien sean", NormalizeName("O'Brien, Sean"))
	})

	t.Run("Folds diacritics", func(t *testing.T) {
		assert.Equal(t, "jose garcia", NormalizeName("José García"))
		assert.Equal(t, "francois", NormalizeName("François"))
	})

	t.Run("Collapses whitespace", func(t *testing.T) {
		assert.Equal(t, "jane doe", NormalizeName("  Jane   Doe  "))
	})

	t.Run("Symbols-only input is empty", func(t *testing.T) {
		assert.Equal(t, "", NormalizeName("???!"))
	})
}

func TestSoundex(t *testing.T) {
	t.Run("Classic codes", func(t *testing.T) {
		assert.Equal(t, "S530", Soundex("Smith"))
		assert.Equal(t, "S530", Soundex("Smyth"))
		assert.Equal(t, "R163", Soundex("Robert"))
		assert.Equal(t, "E123", Soundex("Epstein"))
	})

	t.Run("Spelling variants collide", func(t *testing.T) {
		assert.Equal(t, Soundex("Jon"), Soundex("John"))
		assert.Equal(t, Soundex("Maxwell"), Soundex("Maxwel"))
	})

	t.Run("Case and punctuation are ignored", func(t *testing.T) {
		assert.Equal(t, Soundex("o'brien"), Soundex("OBrien"))
	})

	t.Run("No letters yields empty code", func(t *testing.T) {
		assert.Equal(t, "", Soundex("123"))
		assert.Equal(t, "", Soundex("?"))
	})
}

func TestKey(t *testing.T) {
	t.Run("Version 1 uses family code plus given initial", func(t *testing.T) {
		key := Key(1, model.ParsedName{Given: "Jeffrey", Family: "Epstein"})
		assert.Equal(t, "E123_j", key)
	})

	t.Run("Version 2 uses both phonetic codes", func(t *testing.T) {
		key := Key(2, model.ParsedName{Given: "Jeffrey", Family: "Epstein"})
		assert.Equal(t, "E123_J160", key)
	})

	t.Run("Spelling variants share a key", func(t *testing.T) {
		a := Key(1, model.ParsedName{Given: "Jon", Family: "Smith"})
		b := Key(1, model.ParsedName{Given: "John", Family: "Smyth"})
		assert.Equal(t, a, b, "Expected phonetic variants to block together")
	})

	t.Run("Missing given name keys on family alone", func(t *testing.T) {
		key := Key(1, model.ParsedName{Family: "Maxwell"})
		assert.Equal(t, "M240", key)
	})

	t.Run("Degenerate components key into the low-confidence block", func(t *testing.T) {
		assert.Equal(t, LowConfidenceKey, Key(1, model.ParsedName{}))
		assert.Equal(t, LowConfidenceKey, Key(1, model.ParsedName{Family: "Unknown"}))
		assert.Equal(t, LowConfidenceKey, Key(1, model.ParsedName{Given: "J", Family: "E"}))
		assert.Equal(t, LowConfidenceKey, Key(1, model.ParsedName{Family: "?"}))
	})

	t.Run("Key is insensitive to case and diacritics", func(t *testing.T) {
		a := Key(2, model.ParsedName{Given: "José", Family: "García"})
		b := Key(2, model.ParsedName{Given: "jose", Family: "garcia"})
		assert.Equal(t, a, b)
	})
}

func TestBuildIndex(t *testing.T) {
	mention := func(key string) *model.IdentityMention {
		return &model.IdentityMention{MentionID: uuid.New(), BlockingKey: key}
	}

	t.Run("Every mention lands in exactly one block", func(t *testing.T) {
		mentions := []*model.IdentityMention{
			mention("S530_j"), mention("S530_j"), mention("E123_j"), mention(LowConfidenceKey),
		}

		index := BuildIndex(mentions)

		assert.Equal(t, 3, index.Len(), "Expected three distinct blocks")
		assert.Equal(t, len(mentions), index.Size(), "Expected no mention to be excluded from all blocks")
		assert.Len(t, index.Block("S530_j"), 2)
		assert.Len(t, index.Block(LowConfidenceKey), 1)
	})

	t.Run("Block members are sorted for deterministic iteration", func(t *testing.T) {
		mentions := []*model.IdentityMention{
			mention("S530_j"), mention("S530_j"), mention("S530_j"),
		}

		index := BuildIndex(mentions)

		block := index.Block("S530_j")
		require.Len(t, block, 3)
		for i := 1; i < len(block); i++ {
			assert.Less(t, block[i-1].String(), block[i].String(), "Expected sorted member IDs")
		}
	})

	t.Run("Keys are returned in sorted order", func(t *testing.T) {
		index := BuildIndex([]*model.IdentityMention{
			mention("Z100"), mention("A100"), mention("M100"),
		})

		assert.Equal(t, []string{"A100", "M100", "Z100"}, index.Keys())
	})
}
