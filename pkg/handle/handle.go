// Package handle defines the identity of a social handle. Every handle that
// is stored or compared goes through Normalize (Go side) or SQLExpr (SQL side)
// and both produce the same "@lowercase" form.
package handle

import (
	"fmt"
	"regexp"
	"strings"
)

const Prefix = "@"

var mentionPattern = regexp.MustCompile(`@([A-Za-z0-9_]+)`)

// Normalize trims, strips any leading "@", lower-cases and re-prefixes the
// handle. Empty or whitespace-only input reports ok=false.
func Normalize(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	trimmed = strings.TrimLeft(trimmed, Prefix)
	trimmed = strings.TrimSpace(trimmed)
	if trimmed == "" {
		return "", false
	}
	return Prefix + strings.ToLower(trimmed), true
}

// MustNormalize is Normalize for values already known to be non-empty.
func MustNormalize(raw string) string {
	normalized, _ := Normalize(raw)
	return normalized
}

// Ptr normalizes an optional handle; absent or blank input yields nil.
func Ptr(raw *string) *string {
	if raw == nil {
		return nil
	}
	normalized, ok := Normalize(*raw)
	if !ok {
		return nil
	}
	return &normalized
}

// Username returns the handle without its prefix, as the social API expects it.
func Username(h string) string {
	return strings.TrimPrefix(MustNormalize(h), Prefix)
}

// Equal compares two handles by identity.
func Equal(a, b string) bool {
	na, okA := Normalize(a)
	nb, okB := Normalize(b)
	return okA && okB && na == nb
}

// SQLExpr renders the SQL-side equivalent of Normalize for a column. It is
// portable across Postgres and SQLite.
func SQLExpr(column string) string {
	return fmt.Sprintf("'%s' || LOWER(TRIM(LTRIM(TRIM(%s), '%s')))", Prefix, column, Prefix)
}

// Extract returns every @handle token in text, normalized, in order of
// appearance. Duplicates are kept.
func Extract(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	handles := make([]string, 0, len(matches))
	for _, m := range matches {
		handles = append(handles, Prefix+strings.ToLower(m[1]))
	}
	return handles
}
