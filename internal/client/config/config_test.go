package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "http://127.0.0.1:8080", c.ServerURL)
	assert.Equal(t, 3*time.Second, c.OnlineCheckInterval)
	assert.Equal(t, 3*time.Second, c.StaleAfter)
	assert.Equal(t, "OfflineActionSync", c.SyncTaskName)
	assert.Equal(t, "sqlite", c.AssetStore)
	require.NoError(t, c.Validate())
}

func TestLoadConfig_NoSources(t *testing.T) {
	cfg, err := LoadConfig(newFlagSet(t))
	require.NoError(t, err)

	var want Config
	want.LoadDefaults()
	if diff := cmp.Diff(&want, cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadConfig_Precedence(t *testing.T) {
	path := writeTempJSON(t, map[string]any{
		"server_url":            "http://json:1",
		"database_dsn":          "json.db",
		"online_check_interval": "10s",
		"stale_after":           int64(5 * time.Second),
		"sync_max_retries":      0,
		"log_level":             "debug",
	})

	cfg, err := LoadConfig(newFlagSet(t, "-c", path, "--server", "http://flag:2", "--stale-after", "7s"))
	require.NoError(t, err)

	assert.Equal(t, "http://flag:2", cfg.ServerURL, "flag beats json")
	assert.Equal(t, 7*time.Second, cfg.StaleAfter, "flag beats json")
	assert.Equal(t, "json.db", cfg.DatabaseDSN, "json beats default")
	assert.Equal(t, 10*time.Second, cfg.OnlineCheckInterval)
	assert.Equal(t, 0, cfg.SyncMaxRetries, "explicit zero in json is kept")
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.RequestTimeout, "untouched default")
}

func TestLoadConfig_UnchangedFlagDoesNotOverrideJSON(t *testing.T) {
	path := writeTempJSON(t, map[string]any{"server_url": "http://json:1"})

	cfg, err := LoadConfig(newFlagSet(t, "--config="+path, "--db", "x.db"))
	require.NoError(t, err)
	assert.Equal(t, "http://json:1", cfg.ServerURL)
	assert.Equal(t, "x.db", cfg.DatabaseDSN)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(newFlagSet(t, "-c", filepath.Join(t.TempDir(), "missing.json")))
	require.Error(t, err)

	bad := filepath.Join(t.TempDir(), "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"stale_after": "soon"}`), 0o600))
	_, err = LoadConfig(newFlagSet(t, "-c", bad))
	require.Error(t, err)

	_, err = LoadConfig(newFlagSet(t, "--asset-store", "s3"))
	require.ErrorContains(t, err, "bucket")

	_, err = LoadConfig(newFlagSet(t, "--asset-store", "ftp"))
	require.Error(t, err)

	_, err = LoadConfig(newFlagSet(t, "--stale-after", "0s"))
	require.Error(t, err)
}

func TestRegisterFlags_BadValue(t *testing.T) {
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	RegisterFlags(fs)
	require.Error(t, fs.Parse([]string{"--check-interval", "abc"}))
}
