package upsert

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/pgkit/internal/dbx"
	"github.com/dmitrijs2005/pgkit/internal/record"
)

// Store is the persistence contract the upserter needs.
type Store interface {
	// ExistingKeys returns which of values are already present in column.
	ExistingKeys(ctx context.Context, table, column string, values []any) ([]any, error)
	// InsertOnConflict writes rows in one statement with the given
	// ON CONFLICT fragment and returns the written rows.
	InsertOnConflict(ctx context.Context, table string, columns []string, rows [][]any, onConflict string) ([]*record.Record, error)
}

// SQLStore implements Store over database/sql for stores that understand
// INSERT ... ON CONFLICT ... RETURNING (PostgreSQL, SQLite 3.35+).
type SQLStore struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

// NewSQLStore binds a store to db using the dialect's placeholders.
func NewSQLStore(db dbx.DBTX, dialect dbx.Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// ExistingKeys runs one SELECT ... WHERE column IN (...) query.
func (s *SQLStore) ExistingKeys(ctx context.Context, table, column string, values []any) ([]any, error) {
	if len(values) == 0 {
		return nil, nil
	}
	col := ident(column)
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s)",
		col, tableIdent(table), col, s.dialect.Placeholders(1, len(values)))

	rows, err := s.db.QueryContext(ctx, query, values...)
	if err != nil {
		return nil, fmt.Errorf("existence query: %w", err)
	}
	defer rows.Close()

	var found []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		found = append(found, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return found, nil
}

// FetchByKeys returns the full rows whose column matches one of values, in
// no particular order.
func (s *SQLStore) FetchByKeys(ctx context.Context, table, column string, values []any) ([]*record.Record, error) {
	if len(values) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s IN (%s)",
		tableIdent(table), ident(column), s.dialect.Placeholders(1, len(values)))

	rows, err := s.db.QueryContext(ctx, query, values...)
	if err != nil {
		return nil, fmt.Errorf("fetch query: %w", err)
	}
	defer rows.Close()

	return dbx.ScanRecords(rows)
}

// InsertOnConflict runs
//
//	INSERT INTO table (cols) VALUES (...), (...) ON CONFLICT <onConflict> RETURNING *
func (s *SQLStore) InsertOnConflict(ctx context.Context, table string, columns []string, rows [][]any, onConflict string) ([]*record.Record, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = ident(c)
	}

	args := make([]any, 0, len(rows)*len(columns))
	groups := make([]string, len(rows))
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("row %d has %d values, want %d", i, len(row), len(columns))
		}
		groups[i] = "(" + s.dialect.Placeholders(len(args)+1, len(row)) + ")"
		for _, v := range row {
			sv, err := sqlValue(v)
			if err != nil {
				return nil, fmt.Errorf("row %d: %w", i, err)
			}
			args = append(args, sv)
		}
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES %s ON CONFLICT %s RETURNING *",
		tableIdent(table), strings.Join(cols, ", "), strings.Join(groups, ", "), onConflict)

	rs, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("insert: %w", err)
	}
	defer rs.Close()

	return dbx.ScanRecords(rs)
}

// sqlValue encodes nested values as JSON so they can land in json/jsonb
// columns; everything else is passed to the driver unchanged.
func sqlValue(v any) (any, error) {
	switch v.(type) {
	case *record.Record, map[string]any, []any:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
	return v, nil
}
