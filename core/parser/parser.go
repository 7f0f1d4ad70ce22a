package parser

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/siherrmann/resolver/model"
)

// Parse confidence tiers. Clean structured parses score high, degraded
// fallback shapes score progressively lower, an unparseable string scores
// zero but is still returned (silent data loss is worse than a
// low-confidence mention).
const (
	ConfidenceClean       = 0.9
	ConfidenceInitials    = 0.6
	ConfidenceOrg         = 0.5
	ConfidenceHousehold   = 0.4
	ConfidenceMessy       = 0.3
	ConfidenceSingleToken = 0.1
	ConfidenceFailed      = 0.0
)

var prefixTokens = map[string]bool{
	"mr": true, "mrs": true, "ms": true, "miss": true, "mme": true,
	"dr": true, "prof": true, "rev": true, "hon": true, "sir": true,
	"lady": true, "capt": true, "col": true, "gen": true, "lt": true,
	"sgt": true, "maj": true,
}

var suffixTokens = map[string]bool{
	"jr": true, "sr": true, "ii": true, "iii": true, "iv": true, "v": true,
	"md": true, "phd": true, "esq": true, "dds": true, "do": true,
}

var orgTokens = map[string]bool{
	"inc": true, "llc": true, "llp": true, "ltd": true, "co": true,
	"corp": true, "corporation": true, "company": true, "group": true,
	"foundation": true, "trust": true, "bank": true, "fund": true,
	"holdings": true, "enterprises": true, "associates": true,
	"partners": true, "airlines": true, "aviation": true, "airways": true,
	"institute": true, "university": true, "college": true, "school": true,
	"church": true, "club": true, "agency": true, "services": true,
	"international": true, "hotel": true, "restaurant": true, "salon": true,
	"gallery": true, "studio": true, "office": true,
}

var placeholderTokens = map[string]bool{
	"unknown": true, "n/a": true, "na": true, "none": true, "tbd": true,
	"same": true, "various": true, "female": true, "male": true,
}

var (
	quotedNickname = regexp.MustCompile(`"([^"]+)"|“([^”]+)”`)
	parenNickname  = regexp.MustCompile(`\(([^)]+)\)`)
	conjunction    = regexp.MustCompile(`(?i)(\s&\s|\band\b)`)
)

// Result is the adapter's fixed-shape output, isolating the rest of the
// pipeline from any particular parser representation.
type Result struct {
	Parsed     model.ParsedName
	Type       model.ParseType
	Confidence float64
}

func failed() Result {
	return Result{Type: model.ParseTypeUnknown, Confidence: ConfidenceFailed}
}

// Parse segments a raw name string into structured components with a type
// tag and a parse confidence. It is a pure function: same input, same
// output, no side effects.
//
// Multi-person strings are the upstream extractor's responsibility; when a
// joined string still arrives here it is tagged Household as a whole and
// never best-effort split.
func Parse(raw string) Result {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" || !containsLetter(trimmed) {
		return failed()
	}
	if placeholderTokens[strings.ToLower(trimmed)] {
		return failed()
	}

	trimmed, nickname := extractNickname(trimmed)
	if strings.TrimSpace(trimmed) == "" {
		return failed()
	}

	if isOrganization(trimmed) {
		return Result{
			Parsed:     model.ParsedName{Family: collapseSpaces(trimmed)},
			Type:       model.ParseTypeOrganization,
			Confidence: ConfidenceOrg,
		}
	}

	if isHousehold(trimmed) {
		return parseHousehold(trimmed, nickname)
	}

	if strings.Contains(trimmed, ",") {
		return parseCommaFormat(trimmed, nickname)
	}

	return parseSpaceFormat(trimmed, nickname)
}

func containsLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// extractNickname pulls a quoted or parenthesized nickname out of the
// string, e.g. `John "Johnny" Smith` or `John (Johnny) Smith`.
func extractNickname(s string) (string, string) {
	for _, re := range []*regexp.Regexp{quotedNickname, parenNickname} {
		if match := re.FindStringSubmatch(s); match != nil {
			nickname := match[1]
			if nickname == "" && len(match) > 2 {
				nickname = match[2]
			}
			return collapseSpaces(re.ReplaceAllString(s, " ")), strings.TrimSpace(nickname)
		}
	}
	return s, ""
}

func isOrganization(s string) bool {
	for _, token := range strings.Fields(strings.ToLower(s)) {
		if orgTokens[strings.Trim(token, ".,")] {
			return true
		}
	}
	return false
}

func isHousehold(s string) bool {
	return conjunction.MatchString(s)
}

// parseHousehold tags a joined multi-person string as one Household without
// splitting it. The family name is recovered from a leading "Family," part
// when present, so the mention still blocks with its relatives.
func parseHousehold(s, nickname string) Result {
	parsed := model.ParsedName{Nickname: nickname}
	if before, _, found := strings.Cut(s, ","); found {
		parsed.Family = collapseSpaces(before)
	}
	return Result{
		Parsed:     parsed,
		Type:       model.ParseTypeHousehold,
		Confidence: ConfidenceHousehold,
	}
}

// parseCommaFormat handles "Family, Given [Middle]" entries, the dominant
// shape of directory-style sources.
func parseCommaFormat(s, nickname string) Result {
	family, rest, _ := strings.Cut(s, ",")
	parsed := model.ParsedName{
		Family:   collapseSpaces(family),
		Nickname: nickname,
	}

	tokens := strings.Fields(rest)
	tokens = takePrefix(tokens, &parsed)
	tokens = takeSuffix(tokens, &parsed)

	if len(tokens) == 0 {
		// Family name only, e.g. "Epstein,". Still a usable person parse.
		return Result{Parsed: parsed, Type: model.ParseTypePerson, Confidence: ConfidenceMessy}
	}

	parsed.Given = tokens[0]
	if len(tokens) > 1 {
		parsed.Middle = strings.Join(tokens[1:], " ")
	}

	confidence := ConfidenceClean
	if isInitial(parsed.Given) {
		confidence = ConfidenceInitials
	} else if !cleanTokens(tokens) || !cleanToken(parsed.Family) {
		confidence = ConfidenceMessy
	}

	return Result{Parsed: parsed, Type: model.ParseTypePerson, Confidence: confidence}
}

// parseSpaceFormat handles "Given [Middle...] Family" entries.
func parseSpaceFormat(s, nickname string) Result {
	parsed := model.ParsedName{Nickname: nickname}

	tokens := strings.Fields(s)
	tokens = takePrefix(tokens, &parsed)
	tokens = takeSuffix(tokens, &parsed)

	switch len(tokens) {
	case 0:
		return failed()
	case 1:
		// A single token could be either a bare surname or a bare given
		// name; assume surname so the mention still blocks.
		parsed.Family = tokens[0]
		return Result{Parsed: parsed, Type: model.ParseTypeUnknown, Confidence: ConfidenceSingleToken}
	}

	parsed.Given = tokens[0]
	parsed.Family = tokens[len(tokens)-1]
	if len(tokens) > 2 {
		parsed.Middle = strings.Join(tokens[1:len(tokens)-1], " ")
	}

	confidence := ConfidenceClean
	if isInitial(parsed.Given) {
		confidence = ConfidenceInitials
	} else if len(tokens) > 4 || !cleanTokens(tokens) {
		confidence = ConfidenceMessy
	}

	return Result{Parsed: parsed, Type: model.ParseTypePerson, Confidence: confidence}
}

func takePrefix(tokens []string, parsed *model.ParsedName) []string {
	if len(tokens) > 1 && prefixTokens[strings.ToLower(strings.TrimSuffix(tokens[0], "."))] {
		parsed.Prefix = tokens[0]
		return tokens[1:]
	}
	return tokens
}

func takeSuffix(tokens []string, parsed *model.ParsedName) []string {
	if len(tokens) > 1 && suffixTokens[strings.ToLower(strings.Trim(tokens[len(tokens)-1], ".,"))] {
		parsed.Suffix = tokens[len(tokens)-1]
		return tokens[:len(tokens)-1]
	}
	return tokens
}

// isInitial reports whether a token is a bare initial like "J" or "J.".
func isInitial(token string) bool {
	token = strings.TrimSuffix(token, ".")
	return len([]rune(token)) == 1
}

func cleanTokens(tokens []string) bool {
	for _, token := range tokens {
		if !cleanToken(token) {
			return false
		}
	}
	return true
}

func cleanToken(token string) bool {
	for _, r := range token {
		if !unicode.IsLetter(r) && r != '-' && r != '\'' && r != '.' {
			return false
		}
	}
	return token != ""
}
