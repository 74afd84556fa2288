package config

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syssam/grimoire/dialect"
)

func TestLoad(t *testing.T) {
	t.Setenv("GRIMOIRE_TEST_DB", "blog")
	cfg, err := Load(filepath.Join("testdata", "grimoire.yaml"))
	require.NoError(t, err)
	assert.Equal(t, dialect.Postgres, cfg.Dialect)
	assert.Equal(t, "postgres://app@localhost/blog?sslmode=disable", cfg.DSN)
	assert.Equal(t, "models.yaml", cfg.Schema)
	assert.Equal(t, Pool{MaxOpenConns: 20, MaxIdleConns: 5, ConnMaxLifetime: 5 * time.Minute}, cfg.Pool)
	assert.Equal(t, Log{Level: "debug", Format: "json", SlowThreshold: 250 * time.Millisecond}, cfg.Log)
	assert.Equal(t, Cache{Enabled: true, TTL: time.Minute}, cfg.Cache)

	_, err = Load(filepath.Join("testdata", "missing.yaml"))
	require.Error(t, err)
}

func TestDefaults(t *testing.T) {
	cfg, err := Parse([]byte("dialect: sqlite3\ndsn: \"file::memory:\"\n"))
	require.NoError(t, err)
	assert.Equal(t, dialect.SQLite, cfg.Dialect)
	assert.Equal(t, DefaultMaxOpenConns, cfg.Pool.MaxOpenConns)
	assert.Equal(t, DefaultMaxIdleConns, cfg.Pool.MaxIdleConns)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, DefaultSlowThreshold, cfg.Log.SlowThreshold)
	assert.False(t, cfg.Cache.Enabled)

	cfg, err = Parse([]byte("dialect: mysql\ndsn: root@/test\npool:\n  maxOpenConns: 1\n"))
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Pool.MaxIdleConns)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want []string
	}{
		{
			name: "empty",
			doc:  "",
			want: []string{"empty document"},
		},
		{
			name: "unknown key",
			doc:  "dialect: mysql\ndsn: x\ndatabase: blog\n",
			want: []string{"database"},
		},
		{
			name: "missing values",
			doc:  "pool:\n  maxOpenConns: 3\n",
			want: []string{"dialect is required", "dsn is required"},
		},
		{
			name: "unsupported dialect",
			doc:  "dialect: oracle\ndsn: x\n",
			want: []string{`unsupported dialect "oracle"`},
		},
		{
			name: "pool",
			doc:  "dialect: mysql\ndsn: x\npool:\n  maxOpenConns: 2\n  maxIdleConns: 4\n",
			want: []string{"maxIdleConns 4 exceeds maxOpenConns 2"},
		},
		{
			name: "log",
			doc:  "dialect: mysql\ndsn: x\nlog:\n  level: verbose\n  format: xml\n",
			want: []string{`unknown log level "verbose"`, `unknown log format "xml"`},
		},
		{
			name: "duration",
			doc:  "dialect: mysql\ndsn: x\ncache:\n  ttl: soon\n",
			want: []string{"soon"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			for _, want := range tt.want {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := Log{Level: "warn", Format: "json"}.Logger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "sql", "SELECT 1")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"sql":"SELECT 1"`)

	buf.Reset()
	logger = Log{Level: "debug", Format: "text"}.Logger(&buf)
	logger.Debug("query", "sql", "SELECT 1")
	assert.Contains(t, buf.String(), "level=DEBUG")
	assert.Contains(t, buf.String(), `sql="SELECT 1"`)
}
