package matching

import "strings"

// minSubstringLen is the minimum length a configured identifier token
// must have to match as a substring of the advertised name; raised to
// 7 when the token begins with a leading "b" that field experience
// showed some controllers' advertised names strip (so a 6-char token
// starting with "b" is too weak a signal on its own).
const (
	minSubstringLen        = 6
	minSubstringLenLeadingB = 7
)

// Matches reports whether token (already normalized by Normalize)
// matches an advertisement's normalized name and MAC, per spec.md
// §4.3's matching predicate:
//   - exact match on mac or lowercased name;
//   - 12-hex form of either;
//   - either starts-with or ends-with the other;
//   - token is a substring of the advertised name and is long enough.
func Matches(token, advName, advMAC string) bool {
	token = strings.ToLower(strings.TrimSpace(token))
	advName = strings.ToLower(strings.TrimSpace(advName))
	advMAC = strings.ToLower(strings.TrimSpace(advMAC))

	if token == "" {
		return false
	}
	if token == advMAC || token == advName {
		return true
	}

	tokenHex := stripNonHex(token)
	nameHex := stripNonHex(advName)
	macHex := stripNonHex(advMAC)
	if len(tokenHex) == 12 && (tokenHex == nameHex || tokenHex == macHex) {
		return true
	}

	if advName != "" {
		if strings.HasPrefix(advName, token) || strings.HasSuffix(advName, token) ||
			strings.HasPrefix(token, advName) || strings.HasSuffix(token, advName) {
			return true
		}

		minLen := minSubstringLen
		if strings.HasPrefix(token, "b") {
			minLen = minSubstringLenLeadingB
		}
		if len(token) >= minLen && strings.Contains(advName, token) {
			return true
		}
	}

	return false
}

// MatchedIdentifiers returns the subset of identifiers (already
// Normalize-expanded) satisfied by the given advertisement. Per
// spec.md §4.3, every identifier an advertisement satisfies must be
// consumed in one pass — not just the first — or completion never
// fires despite discovery being logically done.
func MatchedIdentifiers(identifiers []string, advName, advMAC string) []string {
	var matched []string
	for _, id := range identifiers {
		if Matches(id, advName, advMAC) {
			matched = append(matched, id)
		}
	}
	return matched
}
