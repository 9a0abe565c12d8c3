package upsert

import (
	"strings"
	"unicode"

	"github.com/dmitrijs2005/pgkit/internal/dbx"
)

// NamingFunc maps a record field name to a column name.
type NamingFunc func(string) string

// Identity keeps field names as they are.
func Identity(s string) string { return s }

// SnakeCase maps lowerCamel / UpperCamel names to snake_case:
// "firstName" → "first_name", "userID" → "user_id".
func SnakeCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && (unicode.IsLower(runes[i-1]) || unicode.IsDigit(runes[i-1]))
			nextLower := i > 0 && i+1 < len(runes) && unicode.IsLower(runes[i+1]) && unicode.IsUpper(runes[i-1])
			if prevLower || nextLower {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NamingByName resolves a configured transform name.
func NamingByName(name string) (NamingFunc, bool) {
	switch strings.ToLower(name) {
	case "", "identity", "none":
		return Identity, true
	case "snake", "snake_case":
		return SnakeCase, true
	}
	return nil, false
}

// Column and table rendering is shared with the other SQL packages.
var (
	quoteIdent = dbx.QuoteIdent
	ident      = dbx.Ident
	tableIdent = dbx.TableIdent
)
