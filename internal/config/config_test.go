package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "json", cfg.Storage)
	assert.Equal(t, filepath.Join("data", "users.json"), cfg.UsersFile)
	assert.Equal(t, filepath.Join("data", "uploads"), cfg.UploadDir)
	assert.Equal(t, int64(32<<20), cfg.MaxUploadBytes())
}

func TestLoadYAMLThenEnv(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "taskdesk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
addr: ":9000"
data_dir: /srv/taskdesk
storage: sqlite
session_ttl: 12h
chat_rate_per_minute: 5
`), 0644))
	t.Setenv("TASKDESK_ADDR", ":9100")
	t.Setenv("TASKDESK_LOG_FORMAT", "json")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9100", cfg.Addr)
	assert.Equal(t, "sqlite", cfg.Storage)
	assert.Equal(t, 12*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 5, cfg.ChatRatePerMinute)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, filepath.Join("/srv/taskdesk", "taskdesk.db"), cfg.SQLitePath)
}

func TestLoadJSONConfig(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"addr": ":7000", "users_file": "/tmp/u.json"}`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Addr)
	assert.Equal(t, "/tmp/u.json", cfg.UsersFile)
}

func TestLoadIgnoresRetiredKeys(t *testing.T) {
	t.Chdir(t.TempDir())
	path := filepath.Join(t.TempDir(), "taskdesk.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_url: https://tasks.example.com\naddr: \":7100\"\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":7100", cfg.Addr)
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TASKDESK_STORAGE=SQLITE\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("TASKDESK_STORAGE") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Storage)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("TASKDESK_SESSION_TTL", "forever")
	_, err := Load("")
	assert.Error(t, err)
}
