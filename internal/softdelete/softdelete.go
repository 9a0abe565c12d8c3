// Package softdelete marks rows as deleted through a timestamp column instead
// of removing them, and restores them again.
package softdelete

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/pgkit/internal/common"
	"github.com/dmitrijs2005/pgkit/internal/dbx"
	"github.com/dmitrijs2005/pgkit/internal/record"
)

// DefaultColumn holds the deletion timestamp; NULL means live.
const DefaultColumn = "deletedAt"

// Options tunes a single call.
type Options struct {
	// ValidateExists checks that the row exists first and fails with
	// common.ErrNotFound otherwise. Check and write share one transaction.
	ValidateExists bool
}

// Repository runs soft-delete statements for any table.
type Repository struct {
	db      *sql.DB
	dialect dbx.Dialect
	column  string
}

// NewRepository binds a repository to db. An empty column selects
// DefaultColumn.
func NewRepository(db *sql.DB, dialect dbx.Dialect, column string) *Repository {
	if column == "" {
		column = DefaultColumn
	}
	return &Repository{db: db, dialect: dialect, column: column}
}

// SoftDelete stamps the row identified by keyColumn = id. Rows already
// deleted are left untouched. It returns the number of rows affected.
func (r *Repository) SoftDelete(ctx context.Context, table, keyColumn string, id any, opts Options) (int64, error) {
	col := dbx.QuoteIdent(r.column)
	query := fmt.Sprintf("UPDATE %s SET %s = CURRENT_TIMESTAMP WHERE %s = %s AND %s IS NULL",
		dbx.TableIdent(table), col, dbx.Ident(keyColumn), r.dialect.Placeholder(1), col)
	return r.exec(ctx, table, keyColumn, id, query, opts)
}

// Restore clears the deletion mark.
func (r *Repository) Restore(ctx context.Context, table, keyColumn string, id any, opts Options) (int64, error) {
	col := dbx.QuoteIdent(r.column)
	query := fmt.Sprintf("UPDATE %s SET %s = NULL WHERE %s = %s AND %s IS NOT NULL",
		dbx.TableIdent(table), col, dbx.Ident(keyColumn), r.dialect.Placeholder(1), col)
	return r.exec(ctx, table, keyColumn, id, query, opts)
}

// HardDelete removes the row for good.
func (r *Repository) HardDelete(ctx context.Context, table, keyColumn string, id any, opts Options) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE %s = %s",
		dbx.TableIdent(table), dbx.Ident(keyColumn), r.dialect.Placeholder(1))
	return r.exec(ctx, table, keyColumn, id, query, opts)
}

// Find returns the row with keyColumn = id, deleted or not, or
// common.ErrNotFound.
func (r *Repository) Find(ctx context.Context, table, keyColumn string, id any) (*record.Record, error) {
	query := fmt.Sprintf("SELECT * FROM %s WHERE %s = %s",
		dbx.TableIdent(table), dbx.Ident(keyColumn), r.dialect.Placeholder(1))
	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	recs, err := dbx.ScanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("%w: %s %s=%v", common.ErrNotFound, table, keyColumn, id)
	}
	return recs[0], nil
}

// IsDeleted reports whether rec carries a deletion mark.
func (r *Repository) IsDeleted(rec *record.Record) bool {
	v, ok := rec.Get(r.column)
	return ok && v != nil
}

func (r *Repository) exec(ctx context.Context, table, keyColumn string, id any, query string, opts Options) (int64, error) {
	if !opts.ValidateExists {
		return execAffected(ctx, r.db, query, id)
	}

	var n int64
	err := dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		exists := fmt.Sprintf("SELECT 1 FROM %s WHERE %s = %s",
			dbx.TableIdent(table), dbx.Ident(keyColumn), r.dialect.Placeholder(1))
		var one int
		if err := tx.QueryRowContext(ctx, exists, id).Scan(&one); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("%w: %s %s=%v", common.ErrNotFound, table, keyColumn, id)
			}
			return fmt.Errorf("existence check: %w", err)
		}
		var err error
		n, err = execAffected(ctx, tx, query, id)
		return err
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

func execAffected(ctx context.Context, db dbx.DBTX, query string, id any) (int64, error) {
	res, err := db.ExecContext(ctx, query, id)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
