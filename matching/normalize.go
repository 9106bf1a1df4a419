package matching

import "strings"

// Normalize expands one raw identifier token into every form it should
// be matched against: the lowercased/trimmed token itself, its pure
// 12-hex form if it is (after stripping non-hex characters) exactly 12
// hex characters, and the first 12-hex substring found anywhere within
// it, if any.
func Normalize(token string) []string {
	trimmed := strings.ToLower(strings.TrimSpace(token))
	if trimmed == "" {
		return nil
	}

	out := []string{trimmed}

	if hex := stripNonHex(trimmed); len(hex) == 12 {
		out = appendUnique(out, hex)
	}

	if first := firstHex12(trimmed); first != "" {
		out = appendUnique(out, first)
	}

	return out
}

// NormalizeAll expands every token in tokens via Normalize, flattening
// and deduplicating the result.
func NormalizeAll(tokens []string) []string {
	var out []string
	for _, t := range tokens {
		out = appendUniqueAll(out, Normalize(t))
	}
	return out
}

func stripNonHex(s string) string {
	var b strings.Builder
	for _, r := range s {
		if isHexDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func isHexDigit(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// firstHex12 scans s for the first run of exactly-or-more than 12
// contiguous hex digits and returns its first 12 characters; it
// returns "" if no 12-digit hex run exists anywhere in s.
func firstHex12(s string) string {
	runStart := -1
	for i := 0; i <= len(s); i++ {
		var c byte
		if i < len(s) {
			c = s[i]
		}
		if i < len(s) && isHexDigit(rune(c)) {
			if runStart < 0 {
				runStart = i
			}
			if i-runStart+1 >= 12 {
				return s[runStart : runStart+12]
			}
			continue
		}
		runStart = -1
	}
	return ""
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func appendUniqueAll(list []string, values []string) []string {
	for _, v := range values {
		list = appendUnique(list, v)
	}
	return list
}
