package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaults(t *testing.T) {
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	require.Equal(t, DefaultServerURL, cfg.ServerURL)
	require.Equal(t, DefaultPollInterval, cfg.PollInterval)
	require.True(t, cfg.MemoryDB)
	require.Equal(t, DefaultAlias, cfg.Alias)
	require.Equal(t, filepath.Join(dir, KeystoreFile), cfg.KeystorePath())

	_, err = os.Stat(filepath.Join(dir, ConfigName+".toml"))
	require.NoError(t, err)
}

func TestLoadReadsExistingFile(t *testing.T) {
	dir := t.TempDir()
	content := "server_url = \"http://10.0.0.2:9000\"\npoll_interval = \"250ms\"\nmin_confirmation = 0\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigName+".toml"), []byte(content), 0600))

	cfg, err := Load(dir)
	require.NoError(t, err)

	require.Equal(t, "http://10.0.0.2:9000", cfg.ServerURL)
	require.Equal(t, 250*time.Millisecond, cfg.PollInterval)
	// clamped to one confirmation
	require.Equal(t, 1, cfg.MinConfirmation)
}

func TestExplorerLink(t *testing.T) {
	cfg := &Config{ExplorerURL: "https://explorer.example/tx/%s"}
	require.Equal(t, "https://explorer.example/tx/abc", cfg.ExplorerLink("abc"))
}
