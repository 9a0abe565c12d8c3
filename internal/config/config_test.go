package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func parse(t *testing.T, args ...string) (*Config, error) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	bound := &Config{}
	BindFlags(fs, bound)
	require.NoError(t, fs.Parse(args))
	return Load(fs, bound)
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "pgx", c.DatabaseDriver)
	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, ":50051", c.GRPCAddr)
	assert.Equal(t, "id", c.ConflictKey)
	assert.Equal(t, 1000, c.ChunkSize)
	assert.Equal(t, time.Hour, c.TokenTTL)
	assert.Equal(t, "deletedAt", c.SoftDeleteColumn)
	assert.Equal(t, []string{"updatedAt"}, c.AuditExclude)
	require.NoError(t, c.Validate())
}

func TestLoad_DefaultsWithoutFileOrFlags(t *testing.T) {
	c, err := parse(t)
	require.NoError(t, err)

	var want Config
	want.LoadDefaults()
	assert.Equal(t, &want, c)
}

func TestLoad_JSONFile(t *testing.T) {
	b, err := json.Marshal(map[string]any{
		"database_driver": "sqlite",
		"database_dsn":    "file:pgkit.db",
		"chunk_size":      250,
		"return_status":   true,
		"do_not_upsert":   []string{"createdAt"},
		"token_ttl":       "15m",
	})
	require.NoError(t, err)
	path := writeTemp(t, "cfg.json", string(b))

	c, err := parse(t, "-c", path)
	require.NoError(t, err)

	assert.Equal(t, "sqlite", c.DatabaseDriver)
	assert.Equal(t, "file:pgkit.db", c.DatabaseDSN)
	assert.Equal(t, 250, c.ChunkSize)
	assert.True(t, c.ReturnStatus)
	assert.Equal(t, []string{"createdAt"}, c.DoNotUpsert)
	assert.Equal(t, 15*time.Minute, c.TokenTTL)
	assert.Equal(t, ":8080", c.HTTPAddr, "fields missing from the file keep defaults")
}

func TestLoad_YAMLFile(t *testing.T) {
	path := writeTemp(t, "cfg.yaml", `
table: users
conflict_key: email
key_naming: snake
token_ttl: 30s
audit_mask: [email]
s3_endpoint: http://127.0.0.1:9000
s3_path_style: true
`)
	c, err := parse(t, "--config", path)
	require.NoError(t, err)

	assert.Equal(t, "users", c.Table)
	assert.Equal(t, "email", c.ConflictKey)
	assert.Equal(t, "snake", c.KeyNaming)
	assert.Equal(t, 30*time.Second, c.TokenTTL)
	assert.Equal(t, []string{"email"}, c.AuditMask)
	assert.Equal(t, "http://127.0.0.1:9000", c.S3BaseEndpoint)
	assert.True(t, c.S3PathStyle)
	assert.Equal(t, "us-east-1", c.S3Region)
}

func TestLoad_FlagsWinOverFile(t *testing.T) {
	path := writeTemp(t, "cfg.json", `{"table":"from_file","chunk_size":10}`)

	c, err := parse(t, "-c", path, "-t", "from_flag", "--concurrency", "4")
	require.NoError(t, err)

	assert.Equal(t, "from_flag", c.Table)
	assert.Equal(t, 10, c.ChunkSize, "unset flags must not reset file values")
	assert.Equal(t, 4, c.Concurrency)
}

func TestLoad_Errors(t *testing.T) {
	_, err := parse(t, "-c", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	bad := writeTemp(t, "bad.json", `{"chunk_size": "x"}`)
	_, err = parse(t, "-c", bad)
	assert.Error(t, err)

	_, err = parse(t, "--chunk-size=-1")
	assert.Error(t, err)
}

func TestDuration_Forms(t *testing.T) {
	var d Duration
	require.NoError(t, json.Unmarshal([]byte(`"2m"`), &d))
	assert.Equal(t, Duration(2*time.Minute), d)

	require.NoError(t, json.Unmarshal([]byte(`1000000000`), &d))
	assert.Equal(t, Duration(time.Second), d)

	assert.Error(t, json.Unmarshal([]byte(`"soon"`), &d))
	assert.Error(t, json.Unmarshal([]byte(`true`), &d))
}
