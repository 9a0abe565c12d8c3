package dbx

import (
	"strings"
	"unicode"
)

// QuoteIdent always quotes s, doubling embedded quotes.
func QuoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// Ident renders a column name: mixed-case names are quoted to keep their
// case, plain lowercase identifiers are left bare, and anything else is
// quoted so it cannot break out of the statement.
func Ident(s string) string {
	if isLowerCamel(s) || !isPlainIdent(s) {
		return QuoteIdent(s)
	}
	return s
}

// TableIdent renders a possibly schema-qualified table name.
func TableIdent(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = Ident(p)
	}
	return strings.Join(parts, ".")
}

// isLowerCamel reports whether s starts lowercase and contains an
// uppercase letter. Such names only survive a case-folding store when quoted.
func isLowerCamel(s string) bool {
	if s == "" {
		return false
	}
	first := []rune(s)[0]
	if !unicode.IsLower(first) {
		return false
	}
	return strings.IndexFunc(s, unicode.IsUpper) >= 0
}

// isPlainIdent reports whether s is an unquoted-safe lowercase identifier.
func isPlainIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r == '_':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
