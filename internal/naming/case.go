package naming

import (
	"strings"
	"unicode"
)

// ToSnake converts s to snake_case using ASCII-aware rules. Punctuation,
// dashes and spaces collapse into a single underscore so the result is safe
// to use as a SQL column name or a cache key segment.
func ToSnake(s string) string {
	if s == "" {
		return ""
	}

	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(runes) + len(runes)/2)

	lastUnderscore := false
	sep := func() {
		if !lastUnderscore && b.Len() > 0 {
			b.WriteByte('_')
			lastUnderscore = true
		}
	}

	for i, r := range runes {
		switch {
		case unicode.IsUpper(r):
			if b.Len() > 0 {
				prev := runes[i-1]
				nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (nextLower && unicode.IsUpper(prev)) {
					sep()
				}
			}
			b.WriteRune(unicode.ToLower(r))
			lastUnderscore = false

		case unicode.IsLower(r):
			b.WriteRune(r)
			lastUnderscore = false

		case unicode.IsDigit(r):
			if b.Len() > 0 && !unicode.IsDigit(runes[i-1]) {
				sep()
			}
			b.WriteRune(r)
			lastUnderscore = false

		default:
			sep()
		}
	}

	return strings.Trim(b.String(), "_")
}

// ToUpperSnake converts s to UPPER_SNAKE_CASE.
func ToUpperSnake(s string) string {
	return strings.ToUpper(ToSnake(s))
}

// AliasCode derives the upper snake resource code used in error messages
// from a service alias: "UserAclService" becomes "USER_ACL".
func AliasCode(alias string) string {
	return ToUpperSnake(strings.TrimSuffix(alias, "Service"))
}
