package upsert

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/pgkit/internal/dbx"
	"github.com/dmitrijs2005/pgkit/internal/record"
)

func newStoreWithMock(t *testing.T) (*SQLStore, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewSQLStore(db, dbx.Postgres), mock, db
}

func TestSQLStore_ExistingKeys(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT id FROM public.users WHERE id IN ($1, $2, $3)`).
		WithArgs(int64(1), int64(2), int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(3)))

	got, err := s.ExistingKeys(context.Background(), "public.users", "id", []any{int64(1), int64(2), int64(3)})
	require.NoError(t, err)
	assert.Equal(t, []any{int64(1), int64(3)}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_ExistingKeys_EmptyDoesNoIO(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	got, err := s.ExistingKeys(context.Background(), "users", "id", nil)
	require.NoError(t, err)
	assert.Nil(t, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_ExistingKeys_QueryError(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT "userId" FROM users WHERE "userId" IN ($1)`).
		WithArgs("u1").
		WillReturnError(errors.New("db down"))

	_, err := s.ExistingKeys(context.Background(), "users", "userId", []any{"u1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "existence query: db down")
}

func TestSQLStore_InsertOnConflict(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	const q = `INSERT INTO users (id, "firstName", address) VALUES ($1, $2, $3), ($4, $5, $6) ` +
		`ON CONFLICT ("id") DO UPDATE SET id=EXCLUDED.id , "updatedAt"=CURRENT_TIMESTAMP RETURNING *`

	mock.ExpectQuery(q).
		WithArgs(int64(1), "Ann", `{"city":"NYC"}`, int64(2), "Bob", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id", "firstName", "address", "updatedAt"}).
			AddRow(int64(1), "Ann", `{"city":"NYC"}`, nil).
			AddRow(int64(2), "Bob", nil, nil))

	rows := [][]any{
		{int64(1), "Ann", record.FromPairs("city", "NYC")},
		{int64(2), "Bob", nil},
	}
	got, err := s.InsertOnConflict(context.Background(), "users", []string{"id", "firstName", "address"}, rows,
		`("id") DO UPDATE SET id=EXCLUDED.id , "updatedAt"=CURRENT_TIMESTAMP`)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, []string{"id", "firstName", "address", "updatedAt"}, got[0].Keys())
	name, _ := got[1].Get("firstName")
	assert.Equal(t, "Bob", name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLStore_InsertOnConflict_RowWidthMismatch(t *testing.T) {
	s, _, db := newStoreWithMock(t)
	defer db.Close()

	_, err := s.InsertOnConflict(context.Background(), "users", []string{"id", "name"}, [][]any{{1}}, "")
	assert.Error(t, err)
}

func TestSQLStore_InsertOnConflict_DBError(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO users (id) VALUES ($1) ON CONFLICT ("id") DO NOTHING RETURNING *`).
		WithArgs(int64(7)).
		WillReturnError(errors.New("constraint"))

	_, err := s.InsertOnConflict(context.Background(), "users", []string{"id"}, [][]any{{int64(7)}}, `("id") DO NOTHING`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert: constraint")
}

func TestSQLStore_SQLitePlaceholders(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()
	s := NewSQLStore(db, dbx.SQLite)

	mock.ExpectQuery(`SELECT id FROM users WHERE id IN (?1, ?2)`).
		WithArgs(int64(1), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	got, err := s.ExistingKeys(context.Background(), "users", "id", []any{int64(1), int64(2)})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSQLStore_FetchByKeys(t *testing.T) {
	s, mock, db := newStoreWithMock(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT * FROM users WHERE "userId" IN ($1, $2)`).
		WithArgs("a", "b").
		WillReturnRows(sqlmock.NewRows([]string{"userId", "name"}).AddRow("a", "Ann"))

	got, err := s.FetchByKeys(context.Background(), "users", "userId", []any{"a", "b"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []string{"userId", "name"}, got[0].Keys())
	require.NoError(t, mock.ExpectationsWereMet())

	got, err = s.FetchByKeys(context.Background(), "users", "userId", nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}
