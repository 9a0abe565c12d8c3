package dbx

import (
	"strconv"
	"strings"
)

// Dialect captures the SQL differences between the supported drivers that
// matter to hand-written statements: parameter placeholders.
type Dialect struct {
	Name        string
	placeholder func(n int) string
}

var (
	// Postgres uses $1, $2, ...
	Postgres = Dialect{Name: "postgres", placeholder: func(n int) string { return "$" + strconv.Itoa(n) }}
	// SQLite uses numbered ?1, ?2, ... parameters.
	SQLite = Dialect{Name: "sqlite", placeholder: func(n int) string { return "?" + strconv.Itoa(n) }}
)

// DialectForDriver maps a database/sql driver name to its dialect.
func DialectForDriver(driver string) (Dialect, bool) {
	switch strings.ToLower(driver) {
	case "pgx", "postgres", "postgresql":
		return Postgres, true
	case "sqlite", "sqlite3":
		return SQLite, true
	}
	return Dialect{}, false
}

// Placeholder returns the n-th (1-based) parameter marker.
func (d Dialect) Placeholder(n int) string {
	if d.placeholder == nil {
		return Postgres.placeholder(n)
	}
	return d.placeholder(n)
}

// Placeholders renders count comma-separated markers starting at from.
func (d Dialect) Placeholders(from, count int) string {
	var b strings.Builder
	for i := 0; i < count; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(d.Placeholder(from + i))
	}
	return b.String()
}
