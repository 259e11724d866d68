package inference

import (
	"fmt"
	"strings"
	"unicode"
)

// NormalizeName converts a header to lowercase snake case: camelCase is split,
// runs of non-alphanumeric characters collapse to a single underscore.
func NormalizeName(s string) string {
	rs := []rune(strings.TrimSpace(s))
	var b strings.Builder
	pendingSep := false
	for i, r := range rs {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			pendingSep = b.Len() > 0
			continue
		}
		if unicode.IsUpper(r) && i > 0 && b.Len() > 0 {
			prev := rs[i-1]
			nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				pendingSep = true
			}
		}
		if pendingSep {
			b.WriteByte('_')
			pendingSep = false
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// NormalizeNames normalizes every header and resolves collisions with numeric
// suffixes. Empty results become column_<position>.
func NormalizeNames(names []string) []string {
	out := make([]string, len(names))
	used := make(map[string]bool, len(names))
	for i, n := range names {
		base := NormalizeName(n)
		if base == "" {
			base = fmt.Sprintf("column_%d", i+1)
		}
		name := base
		for k := 2; used[name]; k++ {
			name = fmt.Sprintf("%s_%d", base, k)
		}
		used[name] = true
		out[i] = name
	}
	return out
}

var identifierTokens = map[string]bool{
	"id": true, "no": true, "num": true, "number": true, "key": true,
	"code": true, "serial": true, "uuid": true, "guid": true,
}

// HasIdentifierHint reports whether a snake-case name contains an identifier token.
func HasIdentifierHint(name string) bool {
	for _, tok := range strings.Split(NormalizeName(name), "_") {
		if identifierTokens[tok] {
			return true
		}
	}
	return false
}
