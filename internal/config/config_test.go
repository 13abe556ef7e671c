package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rentcore/internal/core"
)

var managedKeys = []string{
	"RENTCORE_HTTP_ADDR", "RENTCORE_ENV", "RENTCORE_SHUTDOWN_TIMEOUT",
	"RENTCORE_STORAGE_DRIVER", "RENTCORE_SQLITE_PATH", "RENTCORE_POSTGRES_DSN",
	"RENTCORE_RELATIONAL_DIALECT", "RENTCORE_RELATIONAL_DSN",
	"RENTCORE_BLOB_DRIVER", "RENTCORE_BLOB_S3_BUCKET", "RENTCORE_BLOB_S3_REGION",
	"RENTCORE_BLOB_S3_ENDPOINT", "RENTCORE_BLOB_S3_PATH_STYLE",
	"RENTCORE_FANOUT", "RENTCORE_LOG_LEVEL", "RENTCORE_METRICS_PREFIX",
}

// clearEnv unsets the managed keys for the duration of the test and moves
// into an empty directory so no implicit .env is picked up.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range managedKeys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
	t.Chdir(t.TempDir())
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "development", cfg.Server.Env)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, core.StorageSQLite, cfg.Storage.Driver)
	assert.Equal(t, "rentcore.db", cfg.Storage.SQLitePath)
	assert.Equal(t, "memory", cfg.Blob.Driver)
	assert.Equal(t, core.DefaultMaxConcurrency, cfg.Engine.MaxConcurrency)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "rentcore", cfg.Metrics.Prefix)
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("RENTCORE_ENV", "production")
	t.Setenv("RENTCORE_STORAGE_DRIVER", "relational")
	t.Setenv("RENTCORE_RELATIONAL_DIALECT", "sqlite")
	t.Setenv("RENTCORE_RELATIONAL_DSN", "file:portfolio.db")
	t.Setenv("RENTCORE_BLOB_DRIVER", "s3")
	t.Setenv("RENTCORE_BLOB_S3_BUCKET", "docs")
	t.Setenv("RENTCORE_BLOB_S3_PATH_STYLE", "true")
	t.Setenv("RENTCORE_FANOUT", "3")
	t.Setenv("RENTCORE_SHUTDOWN_TIMEOUT", "2s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, core.StorageRelational, cfg.Storage.Driver)
	assert.Equal(t, "sqlite", cfg.Storage.RelationalDialect)
	assert.Equal(t, "file:portfolio.db", cfg.Storage.RelationalDSN)
	assert.Equal(t, "s3", cfg.Blob.Driver)
	assert.Equal(t, "docs", cfg.Blob.S3.Bucket)
	assert.True(t, cfg.Blob.S3.PathStyle)
	assert.Equal(t, 3, cfg.Engine.MaxConcurrency)
	assert.Equal(t, 2*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoadReadsEnvFileWithoutOverridingEnvironment(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("RENTCORE_HTTP_ADDR=:9090\nRENTCORE_LOG_LEVEL=debug\n"), 0o600))
	t.Setenv("RENTCORE_LOG_LEVEL", "warn")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("RENTCORE_FANOUT", "many")
	t.Setenv("RENTCORE_BLOB_S3_PATH_STYLE", "sometimes")
	t.Setenv("RENTCORE_SHUTDOWN_TIMEOUT", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, core.DefaultMaxConcurrency, cfg.Engine.MaxConcurrency)
	assert.False(t, cfg.Blob.S3.PathStyle)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoadReadsImplicitDotEnv(t *testing.T) {
	clearEnv(t)
	require.NoError(t, os.WriteFile(".env", []byte("RENTCORE_METRICS_PREFIX=portfolio\n"), 0o600))

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "portfolio", cfg.Metrics.Prefix)
}

func TestLoadRejectsNamedEnvFiles(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	malformed := filepath.Join(dir, "broken.env")
	require.NoError(t, os.WriteFile(malformed, []byte("RENTCORE_ENV=\"production\n"), 0o600))

	cases := map[string]struct {
		path    string
		missing bool
	}{
		"missing":   {path: filepath.Join(dir, "absent.env"), missing: true},
		"malformed": {path: malformed},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg, err := Load(tc.path)
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), tc.path)
			assert.Equal(t, tc.missing, errors.Is(err, os.ErrNotExist))
		})
	}
}
