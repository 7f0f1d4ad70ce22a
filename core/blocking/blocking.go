package blocking

import (
	"sort"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/siherrmann/resolver/model"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// LowConfidenceKey is the designated block for mentions whose parsed
// components are too degenerate to key (parse failures, initials-only,
// placeholder tokens). Such mentions are never dropped; they stay queryable
// and fall out as singleton entities.
const LowConfidenceKey = ""

var placeholderTokens = map[string]bool{
	"unknown": true,
	"n/a":     true,
	"na":      true,
	"none":    true,
	"tbd":     true,
	"same":    true,
	"various": true,
}

var diacriticFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName lowercases, folds diacritics and collapses everything but
// letters and digits into single spaces. The result is deterministic and
// insensitive to case, punctuation and diacritics.
func NormalizeName(s string) string {
	folded, _, err := transform.String(diacriticFold, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(folded) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case !lastSpace:
			b.WriteRune(' ')
			lastSpace = true
		}
	}

	return strings.TrimSpace(b.String())
}

var soundexCodes = map[rune]rune{
	'b': '1', 'f': '1', 'p': '1', 'v': '1',
	'c': '2', 'g': '2', 'j': '2', 'k': '2', 'q': '2', 's': '2', 'x': '2', 'z': '2',
	'd': '3', 't': '3',
	'l': '4',
	'm': '5', 'n': '5',
	'r': '6',
}

// Soundex returns the 4-character American Soundex code over the input's
// letters, or "" when the input contains no letters. Word boundaries are
// ignored, so "O'Brien" and "OBrien" code identically.
func Soundex(s string) string {
	var letters []rune
	for _, r := range NormalizeName(s) {
		if unicode.IsLetter(r) {
			letters = append(letters, r)
		}
	}
	if len(letters) == 0 {
		return ""
	}

	result := []rune{unicode.ToUpper(letters[0])}
	var prev rune
	for _, r := range letters[1:] {
		if code, exists := soundexCodes[r]; exists {
			if code != prev {
				result = append(result, code)
				prev = code
			}
		} else {
			prev = 0
		}

		if len(result) >= 4 {
			break
		}
	}

	for len(result) < 4 {
		result = append(result, '0')
	}

	return string(result[:4])
}

// Key derives the deterministic blocking key for the parsed components.
// Version 1 combines the family name's phonetic code with the given name's
// first letter, version 2 with the given name's phonetic code (the original
// surname+given soundex pair). Degenerate components key into the
// low-confidence block.
func Key(version int, parsed model.ParsedName) string {
	family := NormalizeName(parsed.Family)
	given := NormalizeName(parsed.Given)

	if degenerate(family) {
		return LowConfidenceKey
	}

	key := Soundex(family)
	if key == "" {
		return LowConfidenceKey
	}

	switch version {
	case 1:
		if given != "" {
			key += "_" + string([]rune(given)[0])
		}
		return key
	case 2:
		if code := Soundex(given); code != "" {
			key += "_" + code
		}
		return key
	default:
		return LowConfidenceKey
	}
}

func degenerate(family string) bool {
	if family == "" || placeholderTokens[family] {
		return true
	}
	// Initials-only family names land in the low-confidence block.
	return len([]rune(family)) < 2
}

// Index groups mention IDs by blocking key. It is built once per run from
// the input mention set and read-only afterwards, so parallel workers share
// it without coordination.
type Index struct {
	blocks map[string][]uuid.UUID
}

// BuildIndex builds the immutable block index over the given mentions.
// Every mention lands in exactly one block, including the low-confidence
// block for unblockable mentions.
func BuildIndex(mentions []*model.IdentityMention) *Index {
	blocks := make(map[string][]uuid.UUID)
	for _, mention := range mentions {
		blocks[mention.BlockingKey] = append(blocks[mention.BlockingKey], mention.MentionID)
	}

	for _, ids := range blocks {
		sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	}

	return &Index{blocks: blocks}
}

// Keys returns all blocking keys in sorted order.
func (i *Index) Keys() []string {
	keys := make([]string, 0, len(i.blocks))
	for key := range i.blocks {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Block returns the sorted mention IDs of one block.
func (i *Index) Block(key string) []uuid.UUID {
	return i.blocks[key]
}

// Len returns the number of blocks.
func (i *Index) Len() int {
	return len(i.blocks)
}

// Size returns the total number of indexed mentions.
func (i *Index) Size() int {
	total := 0
	for _, ids := range i.blocks {
		total += len(ids)
	}
	return total
}
