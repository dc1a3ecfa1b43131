package email

import "strings"

// Normalize canonicalizes a raw email address: every rune that is not an ASCII
// letter, digit, '.' or '@' is removed and the result is lowercased.
// Emails must be normalized before any store lookup or comparison.
func Normalize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '@':
			b.WriteRune(r)
		}
	}
	return strings.ToLower(strings.TrimSpace(b.String()))
}

// NormalizeAll normalizes every address and drops the ones that end up empty.
func NormalizeAll(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		if n := Normalize(r); n != "" {
			out = append(out, n)
		}
	}
	return out
}
