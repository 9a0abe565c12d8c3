// Package upsert writes batches of records with INSERT ... ON CONFLICT DO
// UPDATE, one statement per chunk, and optionally reports whether each row
// was inserted or updated.
package upsert

import (
	"strings"

	"github.com/dmitrijs2005/pgkit/internal/common"
	"github.com/dmitrijs2005/pgkit/internal/record"
)

// DefaultUpdatedAtColumn is refreshed on every conflict update.
const DefaultUpdatedAtColumn = "updatedAt"

// DeriveKeys returns the fields of sample that should be written, in the
// sample's order, minus exclusions.
func DeriveKeys(sample *record.Record, exclusions record.ExclusionSet) ([]string, error) {
	var keys []string
	sample.Range(func(k string, _ any) bool {
		if !exclusions.Contains(k) {
			keys = append(keys, k)
		}
		return true
	})
	if len(keys) == 0 {
		return nil, common.ErrEmptySample
	}
	return keys, nil
}

// BuildSetterClause renders the DO UPDATE SET list for keys, e.g.
//
//	id=EXCLUDED.id , "firstName"=EXCLUDED."firstName" , "updatedAt"=CURRENT_TIMESTAMP
//
// Both sides use the transformed column name, since EXCLUDED carries the
// table's columns: SnakeCase gives first_name=EXCLUDED.first_name, not
// first_name=EXCLUDED."firstName".
func BuildSetterClause(keys []string, transform NamingFunc) string {
	return buildSetterClause(keys, transform, DefaultUpdatedAtColumn)
}

func buildSetterClause(keys []string, transform NamingFunc, updatedAt string) string {
	if transform == nil {
		transform = Identity
	}
	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		col := transform(k)
		if col == updatedAt {
			continue
		}
		c := ident(col)
		parts = append(parts, c+"=EXCLUDED."+c)
	}
	parts = append(parts, quoteIdent(updatedAt)+"=CURRENT_TIMESTAMP")
	return strings.Join(parts, " , ")
}
