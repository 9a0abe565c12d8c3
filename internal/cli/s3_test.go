package cli

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/pgkit/internal/audit"
	"github.com/dmitrijs2005/pgkit/internal/record"
	"github.com/dmitrijs2005/pgkit/internal/storage"
)

// memS3 answers path-style GET and PUT object requests.
type memS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch r.Method {
	case http.MethodPut:
		b, _ := io.ReadAll(r.Body)
		m.objects[r.URL.Path] = b
	case http.MethodGet:
		b, ok := m.objects[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write(b)
	}
}

func s3Flags(t *testing.T) (*memS3, []string) {
	t.Helper()
	m := &memS3{objects: map[string][]byte{}}
	srv := httptest.NewServer(m)
	t.Cleanup(srv.Close)
	return m, []string{
		"--s3-endpoint", srv.URL, "--s3-path-style",
		"--s3-access-key", "admin", "--s3-secret-key", "secretpassword",
	}
}

func TestMaskCmd_ReadsFromS3(t *testing.T) {
	m, flags := s3Flags(t)
	m.objects["/vault/in.json"] = []byte(`{"name":"John","token":"abcdefghij"}`)

	args := append([]string{"mask", "--file", "s3://vault/in.json"}, flags...)
	out, err := execute(t, "", args...)
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"John","token":"ab***ij"}`, out)
}

func TestAuditExportCmd(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "pgkit.db")
	db := []string{"--driver", "sqlite", "--dsn", dsn, "--log-level", "error"}

	_, err := execute(t, "", append([]string{"migrate"}, db...)...)
	require.NoError(t, err)

	ctx := context.Background()
	store, err := storage.Open(ctx, "sqlite", dsn)
	require.NoError(t, err)
	repo := store.AuditLogs(store.DB())
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	for i, entity := range []string{"records", "records", "users"} {
		require.NoError(t, repo.Insert(ctx, &audit.Entry{
			ID:        uuid.New(),
			Entity:    entity,
			EntityID:  "1",
			Action:    audit.ActionInsert,
			NewValues: record.FromPairs("n", i),
			CreatedAt: at.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, store.Close())

	out, err := execute(t, "", append([]string{"audit-export", "--entity", "records"}, db...)...)
	require.NoError(t, err)
	var entries []audit.Entry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	assert.Len(t, entries, 2)

	m, flags := s3Flags(t)
	args := append([]string{"audit-export", "--out", "s3://vault/audit.json"}, db...)
	out, err = execute(t, "", append(args, flags...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "exported 3 audit entries to s3://vault/audit.json")

	require.NoError(t, json.Unmarshal(m.objects["/vault/audit.json"], &entries))
	require.Len(t, entries, 3)
	assert.Equal(t, "users", entries[0].Entity, "newest first")
}
