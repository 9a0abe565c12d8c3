package logging_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/pgkit/internal/logging"
	"github.com/dmitrijs2005/pgkit/internal/record"
	"github.com/dmitrijs2005/pgkit/internal/upsert"
)

// brokenStore rejects writes of records whose first column is "bad".
type brokenStore struct{}

func (brokenStore) ExistingKeys(context.Context, string, string, []any) ([]any, error) {
	return nil, nil
}

func (brokenStore) InsertOnConflict(_ context.Context, _ string, columns []string, rows [][]any, _ string) ([]*record.Record, error) {
	out := make([]*record.Record, len(rows))
	for i, row := range rows {
		if row[0] == "bad" {
			return nil, errors.New("boom")
		}
		rec := record.New()
		for j, c := range columns {
			rec.Set(c, row[j])
		}
		out[i] = rec
	}
	return out, nil
}

func textLogger(t *testing.T, level string) (logging.Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	l, err := logging.New(logging.Options{Backend: logging.BackendSlog, Level: level, Format: "text", Output: &buf})
	require.NoError(t, err)
	return l, &buf
}

func upsertWithOneBadChunk(t *testing.T, l logging.Logger) {
	t.Helper()
	u := upsert.New(brokenStore{}, l, upsert.Options{ChunkSize: 1, Concurrency: 1})
	recs := []*record.Record{
		record.FromPairs("id", "ok", "name", "a"),
		record.FromPairs("id", "bad", "name", "b"),
	}
	res, err := u.Upsert(context.Background(), "users", recs, "id", upsert.Options{})
	require.NoError(t, err)
	require.Equal(t, 1, res.Failed)
}

func lineWith(out, msg string) string {
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, msg) {
			return line
		}
	}
	return ""
}

func TestSlogLogger_UpsertChunkFailureAttributes(t *testing.T) {
	l, buf := textLogger(t, "info")
	upsertWithOneBadChunk(t, l)

	line := lineWith(buf.String(), `msg="upsert chunk failed"`)
	require.NotEmpty(t, line, buf.String())
	for _, want := range []string{"level=ERROR", "module=upsert", "table=users", "chunk=1", "rows=1", "op=write", "error=boom"} {
		assert.Contains(t, line, want)
	}
	assert.Empty(t, lineWith(buf.String(), "upsert finished"), "summary is debug only")
}

func TestSlogLogger_UpsertSummaryAtDebug(t *testing.T) {
	l, buf := textLogger(t, "debug")
	upsertWithOneBadChunk(t, l)

	line := lineWith(buf.String(), `msg="upsert finished"`)
	require.NotEmpty(t, line, buf.String())
	for _, want := range []string{"level=DEBUG", "module=upsert", "records=2", "chunks=2", "written=1", "failed_chunks=1"} {
		assert.Contains(t, line, want)
	}
}

func TestSlogLogger_WithKeepsParentClean(t *testing.T) {
	l, buf := textLogger(t, "info")
	l.With("module", "audit").Info(context.Background(), "audit stored", "entity", "records")
	l.Info(context.TODO(), "plain")

	assert.Contains(t, lineWith(buf.String(), "audit stored"), "module=audit")
	assert.Contains(t, lineWith(buf.String(), "audit stored"), "entity=records")
	assert.NotContains(t, lineWith(buf.String(), "msg=plain"), "module=")
}
