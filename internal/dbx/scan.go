package dbx

import (
	"database/sql"

	"github.com/dmitrijs2005/pgkit/internal/record"
)

// ScanRecords reads every remaining row into a record keyed by column name,
// in select order. It does not close rows.
func ScanRecords(rows *sql.Rows) ([]*record.Record, error) {
	names, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []*record.Record
	for rows.Next() {
		vals := make([]any, len(names))
		ptrs := make([]any, len(names))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := record.New()
		for i, n := range names {
			rec.Set(n, vals[i])
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
