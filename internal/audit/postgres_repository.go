package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrijs2005/pgkit/internal/dbx"
	"github.com/dmitrijs2005/pgkit/internal/record"
)

// PostgresRepository stores entries in the audit_logs table over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db      dbx.DBTX
	dialect dbx.Dialect
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db, dialect: dbx.Postgres}
}

// WithDialect switches placeholders, e.g. to run the same schema on SQLite.
func (r *PostgresRepository) WithDialect(d dbx.Dialect) *PostgresRepository {
	r.dialect = d
	return r
}

// Insert writes e. Changes and snapshots are stored as JSON, NULL when empty.
func (r *PostgresRepository) Insert(ctx context.Context, e *Entry) error {
	query := `
		INSERT INTO audit_logs (id, entity, entity_id, action, actor, changes, old_values, new_values, created_at)
		VALUES (` + r.dialect.Placeholders(1, 9) + `)
	`
	changes, err := jsonColumn(e.Changes, len(e.Changes) == 0)
	if err != nil {
		return fmt.Errorf("encode changes: %w", err)
	}
	oldValues, err := jsonColumn(e.OldValues, e.OldValues == nil)
	if err != nil {
		return fmt.Errorf("encode old values: %w", err)
	}
	newValues, err := jsonColumn(e.NewValues, e.NewValues == nil)
	if err != nil {
		return fmt.Errorf("encode new values: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query,
		e.ID.String(), e.Entity, e.EntityID, string(e.Action),
		sql.NullString{String: e.Actor, Valid: e.Actor != ""},
		changes, oldValues, newValues, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// List returns entries newest first.
func (r *PostgresRepository) List(ctx context.Context, f ListFilter) ([]*Entry, int, error) {
	where := ""
	args := []any{}
	if f.Entity != "" {
		where = " WHERE entity = " + r.dialect.Placeholder(1)
		args = append(args, f.Entity)
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_logs"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count audit logs: %w", err)
	}

	query := fmt.Sprintf(
		"SELECT id, entity, entity_id, action, actor, changes, old_values, new_values, created_at FROM audit_logs%s ORDER BY created_at DESC, id LIMIT %s OFFSET %s",
		where, r.dialect.Placeholder(len(args)+1), r.dialect.Placeholder(len(args)+2))
	args = append(args, f.Limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to select audit logs: %w", err)
	}
	defer rows.Close()

	var result []*Entry
	for rows.Next() {
		var (
			e                         Entry
			id, action                string
			actor                     sql.NullString
			changes, oldVals, newVals []byte
			createdAt                 any
		)
		if err := rows.Scan(&id, &e.Entity, &e.EntityID, &action, &actor,
			&changes, &oldVals, &newVals, &createdAt); err != nil {
			return nil, 0, err
		}
		if e.CreatedAt, err = asTimestamp(createdAt); err != nil {
			return nil, 0, err
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, 0, fmt.Errorf("bad audit log id %q: %w", id, err)
		}
		e.Action = Action(action)
		e.Actor = actor.String
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &e.Changes); err != nil {
				return nil, 0, fmt.Errorf("decode changes: %w", err)
			}
		}
		if e.OldValues, err = decodeSnapshot(oldVals); err != nil {
			return nil, 0, err
		}
		if e.NewValues, err = decodeSnapshot(newVals); err != nil {
			return nil, 0, err
		}
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return result, total, nil
}

// timestampLayouts covers drivers that hand timestamps back as text.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999 -0700 MST",
	"2006-01-02 15:04:05",
}

func asTimestamp(v any) (time.Time, error) {
	var s string
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		s = t
	case []byte:
		s = string(t)
	default:
		return time.Time{}, fmt.Errorf("unexpected created_at type %T", v)
	}
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable created_at %q", s)
}

func jsonColumn(v any, null bool) (any, error) {
	if null {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func decodeSnapshot(b []byte) (*record.Record, error) {
	if len(b) == 0 {
		return nil, nil
	}
	r := record.New()
	if err := json.Unmarshal(b, r); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return r, nil
}
