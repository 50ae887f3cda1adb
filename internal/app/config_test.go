package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yungbote/obe-backend/internal/data/db"
	"github.com/yungbote/obe-backend/internal/pkg/logger"
	"github.com/yungbote/obe-backend/internal/services"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

var configKeys = []string{
	ConfigFileEnv, "HTTP_ADDR", "PORT", "RECALC_MODE", "CASCADE_PARALLELISM", "CASCADE_TIMEOUT",
	"DB_DRIVER", "SQLITE_PATH", "REDIS_ADDR", "TEMPORAL_ADDRESS", "WORKER_CONCURRENCY",
	"JOB_RETRY_DELAY", "CORS_ORIGINS", "OTEL_SAMPLE_RATIO",
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t, configKeys...)

	cfg, err := LoadConfig(logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, services.RecalcModeAsync, cfg.Recalc.Mode)
	assert.Equal(t, 8, cfg.Recalc.Parallelism)
	assert.Equal(t, db.DriverPostgres, cfg.DB.Driver)
	assert.False(t, cfg.Temporal.Enabled())
	assert.Equal(t, "obe", cfg.Temporal.TaskQueue)
	assert.Empty(t, cfg.CORSOrigins)
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	clearEnv(t, configKeys...)

	path := filepath.Join(t.TempDir(), "obe.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http_addr: ":9090"
recalc:
  mode: sync
  parallelism: 2
  timeout: 45s
db:
  driver: sqlite
  sqlite_path: /tmp/obe.db
worker:
  concurrency: 3
  retry_delay: 10s
cors_origins:
  - https://a.example
`), 0o600))
	t.Setenv(ConfigFileEnv, path)
	t.Setenv("CASCADE_PARALLELISM", "6")
	t.Setenv("PORT", "7000")

	cfg, err := LoadConfig(logger.Nop())
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.HTTPAddr)
	assert.Equal(t, services.RecalcModeSync, cfg.Recalc.Mode)
	assert.Equal(t, 6, cfg.Recalc.Parallelism)
	assert.Equal(t, 45*time.Second, cfg.Recalc.Timeout)
	assert.Equal(t, db.DriverSQLite, cfg.DB.Driver)
	assert.Equal(t, "/tmp/obe.db", cfg.DB.SQLitePath)
	assert.Equal(t, 3, cfg.Worker.Concurrency)
	assert.Equal(t, 10*time.Second, cfg.Worker.RetryDelay)
	assert.Equal(t, []string{"https://a.example"}, cfg.CORSOrigins)
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"unknown recalc mode", map[string]string{"RECALC_MODE": "eventually"}},
		{"parallelism too high", map[string]string{"CASCADE_PARALLELISM": "500"}},
		{"unknown driver", map[string]string{"DB_DRIVER": "mysql"}},
		{"sample ratio above one", map[string]string{"OTEL_SAMPLE_RATIO": "1.5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t, configKeys...)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := LoadConfig(logger.Nop())
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	clearEnv(t, configKeys...)
	t.Setenv(ConfigFileEnv, filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := LoadConfig(logger.Nop())
	assert.Error(t, err)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b ,"))
	assert.Nil(t, splitList(""))
}
