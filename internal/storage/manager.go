// Package storage opens the configured database and vends the SQL-backed
// stores of pgkit bound to it, together with the schema migrations (goose).
package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/dmitrijs2005/pgkit/internal/audit"
	"github.com/dmitrijs2005/pgkit/internal/dbx"
	"github.com/dmitrijs2005/pgkit/internal/logging"
	"github.com/dmitrijs2005/pgkit/internal/migrations"
	"github.com/dmitrijs2005/pgkit/internal/softdelete"
	"github.com/dmitrijs2005/pgkit/internal/upsert"
)

// Manager owns the connection pool.
type Manager struct {
	db      *sql.DB
	dialect dbx.Dialect
	logger  logging.Logger
}

// Open connects with a database/sql driver ("pgx" or "sqlite") and pings.
func Open(ctx context.Context, driver, dsn string) (*Manager, error) {
	dialect, ok := dbx.DialectForDriver(driver)
	if !ok {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	// registered names of the pgx stdlib and modernc drivers
	driver = "pgx"
	if dialect.Name == dbx.SQLite.Name {
		driver = "sqlite"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if dialect.Name == dbx.SQLite.Name {
		// one writer at a time, and in-memory databases live per connection
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	return New(db, dialect), nil
}

// New wraps an already opened pool.
func New(db *sql.DB, dialect dbx.Dialect) *Manager {
	return &Manager{db: db, dialect: dialect, logger: logging.Nop{}}
}

// WithLogger sets the logger migrations report to and returns m.
func (m *Manager) WithLogger(l logging.Logger) *Manager {
	m.logger = logging.OrNop(l).With("module", "migrations")
	return m
}

func (m *Manager) DB() *sql.DB          { return m.db }
func (m *Manager) Dialect() dbx.Dialect { return m.dialect }
func (m *Manager) Close() error         { return m.db.Close() }

// Upserts returns an upsert store bound to db, which may be m.DB() or a
// transaction.
func (m *Manager) Upserts(db dbx.DBTX) *upsert.SQLStore {
	return upsert.NewSQLStore(db, m.dialect)
}

// AuditLogs returns the audit repository bound to db.
func (m *Manager) AuditLogs(db dbx.DBTX) *audit.PostgresRepository {
	return audit.NewPostgresRepository(db).WithDialect(m.dialect)
}

// SoftDeletes returns a soft-delete repository using column.
func (m *Manager) SoftDeletes(column string) *softdelete.Repository {
	return softdelete.NewRepository(m.db, m.dialect, column)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the managed database.
func (m *Manager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetLogger(gooseLogger{ctx: ctx, l: m.logger})
	if err := goose.SetDialect(gooseDialect(m.dialect)); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, m.db, "."); err != nil {
		return err
	}
	return nil
}

func gooseDialect(d dbx.Dialect) string {
	if d.Name == dbx.SQLite.Name {
		return "sqlite3"
	}
	return "pgx"
}
