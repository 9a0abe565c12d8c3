package dbx_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/pgkit/internal/common"
	"github.com/dmitrijs2005/pgkit/internal/dbx"
	"github.com/dmitrijs2005/pgkit/internal/softdelete"
	"github.com/dmitrijs2005/pgkit/internal/storage"
	"github.com/dmitrijs2005/pgkit/internal/upsert"
)

func openRecords(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	m, err := storage.Open(ctx, "sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	require.NoError(t, m.RunMigrations(ctx))
	return m.DB()
}

func countRecords(t *testing.T, db *sql.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM records`).Scan(&n))
	return n
}

func writeRecord(ctx context.Context, tx dbx.DBTX, id, name string) error {
	keys := []string{"id", "name"}
	onConflict := `("id") DO UPDATE SET ` + upsert.BuildSetterClause(keys, upsert.Identity)
	_, err := upsert.NewSQLStore(tx, dbx.SQLite).InsertOnConflict(ctx, "records", keys, [][]any{{id, name}}, onConflict)
	return err
}

func TestWithTx_SoftDeleteCommitsCheckAndUpdate(t *testing.T) {
	db := openRecords(t)
	ctx := context.Background()
	require.NoError(t, dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return writeRecord(ctx, tx, "r1", "first")
	}))

	repo := softdelete.NewRepository(db, dbx.SQLite, "deletedAt")
	n, err := repo.SoftDelete(ctx, "records", "id", "r1", softdelete.Options{ValidateExists: true})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	rec, err := repo.Find(ctx, "records", "id", "r1")
	require.NoError(t, err)
	assert.True(t, repo.IsDeleted(rec), "update inside the transaction is committed")
}

func TestWithTx_SoftDeleteMissingRowRollsBack(t *testing.T) {
	db := openRecords(t)
	ctx := context.Background()
	require.NoError(t, dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		return writeRecord(ctx, tx, "r1", "first")
	}))

	repo := softdelete.NewRepository(db, dbx.SQLite, "deletedAt")
	n, err := repo.SoftDelete(ctx, "records", "id", "missing", softdelete.Options{ValidateExists: true})
	require.ErrorIs(t, err, common.ErrNotFound)
	assert.Zero(t, n)

	rec, err := repo.Find(ctx, "records", "id", "r1")
	require.NoError(t, err)
	assert.False(t, repo.IsDeleted(rec), "other rows untouched")
}

func TestWithTx_RollsBackUpsertOnError(t *testing.T) {
	db := openRecords(t)

	err := dbx.WithTx(context.Background(), db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		require.NoError(t, writeRecord(ctx, tx, "r1", "first"))
		return common.ErrNotFound
	})
	require.ErrorIs(t, err, common.ErrNotFound)
	assert.Equal(t, 0, countRecords(t, db), "write inside the failed transaction is gone")
}

func TestWithTx_RollsBackUpsertOnPanic(t *testing.T) {
	db := openRecords(t)

	defer func() {
		require.NotNil(t, recover(), "panic must propagate")
		assert.Equal(t, 0, countRecords(t, db))
	}()

	_ = dbx.WithTx(context.Background(), db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		require.NoError(t, writeRecord(ctx, tx, "r1", "first"))
		panic("chunk writer crashed")
	})
}

func TestWithTx_BeginError(t *testing.T) {
	db := openRecords(t)
	require.NoError(t, db.Close())

	err := dbx.WithTx(context.Background(), db, nil, func(context.Context, dbx.DBTX) error {
		return nil
	})
	assert.Error(t, err)
}
