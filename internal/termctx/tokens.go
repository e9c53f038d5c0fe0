package termctx

import (
	"fmt"
	"regexp"
	"sort"
)

// ordinalTokens maps each known convocation token to its ordinal. The
// table is fixed: new convocations are appended here when they begin.
var ordinalTokens = map[string]int{
	"I": 1, "II": 2, "III": 3, "IV": 4, "V": 5,
	"VI": 6, "VII": 7, "VIII": 8, "IX": 9, "X": 10,
	"XI": 11, "XII": 12, "XIII": 13, "XIV": 14, "XV": 15,
	"XVI": 16, "XVII": 17, "XVIII": 18, "XIX": 19, "XX": 20,
}

// tokensByLength holds the known tokens longest-first, so that "VIII" is
// tried before "III" and "I" when scanning names for an embedded token.
var tokensByLength = func() []string {
	tokens := make([]string, 0, len(ordinalTokens))
	for token := range ordinalTokens {
		tokens = append(tokens, token)
	}
	sort.Slice(tokens, func(i, j int) bool {
		if len(tokens[i]) != len(tokens[j]) {
			return len(tokens[i]) > len(tokens[j])
		}
		return tokens[i] < tokens[j]
	})
	return tokens
}()

// tokenExprs anchors each token at word boundaries so a short token never
// matches inside an unrelated longer word. Letters are the word class
// here: filenames separate tokens with underscores and digits, which
// regexp's \b would treat as part of the word.
var tokenExprs = func() map[string]*regexp.Regexp {
	exprs := make(map[string]*regexp.Regexp, len(ordinalTokens))
	for token := range ordinalTokens {
		exprs[token] = regexp.MustCompile(`(?:^|[^A-Za-z])` + token + `(?:[^A-Za-z]|$)`)
	}
	return exprs
}()

// TokenForOrdinal returns the convocation token for an ordinal.
func TokenForOrdinal(ordinal int) (string, bool) {
	for token, ord := range ordinalTokens {
		if ord == ordinal {
			return token, true
		}
	}
	return "", false
}

// OrdinalForToken returns the ordinal for a literal convocation token.
func OrdinalForToken(token string) (int, bool) {
	ordinal, ok := ordinalTokens[token]
	return ordinal, ok
}

// ScanForToken looks for an embedded convocation token in a name,
// longest token first. Returns 0 when none matches.
func ScanForToken(name string) int {
	if name == "" {
		return 0
	}
	for _, token := range tokensByLength {
		if tokenExprs[token].MatchString(name) {
			return ordinalTokens[token]
		}
	}
	return 0
}

// Designation renders the traditional display designation for an ordinal.
func Designation(ordinal int) string {
	token, ok := TokenForOrdinal(ordinal)
	if !ok {
		return fmt.Sprintf("Convocation %d", ordinal)
	}
	return fmt.Sprintf("Convocation %s", token)
}
