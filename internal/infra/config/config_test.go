package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "./mirror", cfg.Download.OutDir)
	assert.Equal(t, 10, cfg.Download.QueueCapacity)
	assert.Equal(t, "pool", cfg.Download.Discipline)
	assert.Equal(t, 20, cfg.Download.Concurrency)

	assert.Equal(t, 3000, cfg.Fetch.ConnectTimeoutMS)
	assert.Equal(t, 5000, cfg.Fetch.ChunkTimeoutMS)
	assert.Equal(t, 20, cfg.Fetch.StallWarnEvery)
	assert.Equal(t, 60, cfg.Fetch.StallAbandonAt)
	assert.Equal(t, 10, cfg.Fetch.MaxConnectAttempts)
	assert.Equal(t, 5, cfg.Fetch.MaxRedirectHops)

	assert.Empty(t, cfg.Ledger.Path)
	assert.Empty(t, cfg.Status.Addr)
	assert.Equal(t, "mediamirror.log", cfg.Log.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.True(t, cfg.Log.IncludeStdout)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
download:
  out_dir: /data/mirror
  discipline: eager
  concurrency: 4
fetch:
  connect_timeout_ms: 1500
ledger:
  path: /data/ledger.db
status:
  addr: "127.0.0.1:9901"
log:
  level: debug
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/data/mirror", cfg.Download.OutDir)
	assert.Equal(t, "eager", cfg.Download.Discipline)
	assert.Equal(t, 4, cfg.Download.Concurrency)
	assert.Equal(t, 1500, cfg.Fetch.ConnectTimeoutMS)
	assert.Equal(t, "/data/ledger.db", cfg.Ledger.Path)
	assert.Equal(t, "127.0.0.1:9901", cfg.Status.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)

	// Untouched keys keep their defaults.
	assert.Equal(t, 10, cfg.Download.QueueCapacity)
	assert.Equal(t, 5000, cfg.Fetch.ChunkTimeoutMS)
}

func TestLoadRejectsUnknownDiscipline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("download:\n  discipline: chaotic\n"), 0644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "discipline")
}

func TestLoadRejectsOutOfRangeStallThresholds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("fetch:\n  stall_abandon_at: 300\n"), 0644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "stall_abandon_at")
}

func TestLoadRejectsNonPositiveConcurrency(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("download:\n  concurrency: 0\n"), 0644))

	_, err := Load(path)
	assert.ErrorContains(t, err, "concurrency")
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("download: [broken\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("MEDIAMIRROR_DOWNLOAD_CONCURRENCY", "7")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Download.Concurrency)
}
