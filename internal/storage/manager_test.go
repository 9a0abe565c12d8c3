package storage

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/dmitrijs2005/pgkit/internal/audit"
	"github.com/dmitrijs2005/pgkit/internal/dbx"
	"github.com/dmitrijs2005/pgkit/internal/logging"
	"github.com/dmitrijs2005/pgkit/internal/record"
	"github.com/dmitrijs2005/pgkit/internal/softdelete"
	"github.com/dmitrijs2005/pgkit/internal/upsert"
)

func newMock(t *testing.T) *sql.DB {
	t.Helper()
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunMigrations_Success(t *testing.T) {
	m := New(newMock(t), dbx.Postgres)

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		if dir != "." {
			return errors.New("unexpected dir")
		}
		if len(opts) != 0 {
			return errors.New("unexpected opts")
		}
		return nil
	}
	defer func() { gooseUpContext = orig }()

	if err := m.RunMigrations(context.Background()); err != nil {
		t.Fatalf("RunMigrations error: %v", err)
	}
}

func TestRunMigrations_Error(t *testing.T) {
	m := New(newMock(t), dbx.Postgres)

	orig := gooseUpContext
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	defer func() { gooseUpContext = orig }()

	if err := m.RunMigrations(context.Background()); err == nil || err.Error() != "boom" {
		t.Fatalf("expected boom, got %v", err)
	}
}

func TestRunMigrations_LogsThroughLogger(t *testing.T) {
	ctx := context.Background()
	m, err := Open(ctx, "sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	core, logs := observer.New(zapcore.InfoLevel)
	require.NoError(t, m.WithLogger(logging.NewZapLogger(zap.New(core))).RunMigrations(ctx))

	applied := logs.FilterMessageSnippet("00001_create_audit_logs.sql").All()
	require.Len(t, applied, 1, "one line per applied migration")
	assert.Equal(t, zapcore.InfoLevel, applied[0].Level)
	assert.Equal(t, "migrations", applied[0].ContextMap()["module"])
	assert.NotEmpty(t, logs.FilterMessageSnippet("00002_create_records.sql").All())
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "x")
	assert.ErrorContains(t, err, "unsupported")
}

func TestGooseDialect(t *testing.T) {
	assert.Equal(t, "pgx", gooseDialect(dbx.Postgres))
	assert.Equal(t, "sqlite3", gooseDialect(dbx.SQLite))
}

func TestSQLite_EndToEnd(t *testing.T) {
	ctx := context.Background()
	m, err := Open(ctx, "sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })

	require.NoError(t, m.RunMigrations(ctx))

	u := upsert.New(m.Upserts(m.DB()), nil, upsert.Options{ReturnStatus: upsert.Bool(true)})
	res, err := u.Upsert(ctx, "records", []*record.Record{
		record.FromPairs("id", "r1", "name", "first"),
	}, "id", upsert.Options{})
	require.NoError(t, err)
	require.NoError(t, res.Err())
	assert.Equal(t, 1, res.Count(upsert.StatusInserted))

	res, err = u.Upsert(ctx, "records", []*record.Record{
		record.FromPairs("id", "r1", "name", "second"),
	}, "id", upsert.Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Count(upsert.StatusUpdated))

	sd := m.SoftDeletes("")
	n, err := sd.SoftDelete(ctx, "records", "id", "r1", softdelete.Options{ValidateExists: true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	repo := m.AuditLogs(m.DB())
	sub := audit.NewSubscriber(repo, audit.Config{}, nil)
	sub.AfterUpdate(audit.WithActor(ctx, "alice"), "records", "r1",
		record.FromPairs("id", "r1", "name", "first"),
		record.FromPairs("id", "r1", "name", "second"))

	entries, total, err := repo.List(ctx, audit.ListFilter{Entity: "records", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, entries, 1)
	assert.Equal(t, "alice", entries[0].Actor)
	require.Len(t, entries[0].Changes, 1)
	assert.Equal(t, "name", entries[0].Changes[0].Path)
	assert.False(t, entries[0].CreatedAt.IsZero())
}
