package sandbox

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8547, cfg.Port)
	assert.Equal(t, 10*time.Second, cfg.BlockInterval)
	assert.Equal(t, "1", cfg.FaucetETH)
	assert.True(t, cfg.MDNS)
	assert.Empty(t, cfg.DataDir)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("ZKSANDBOX_PORT", "9000")
	t.Setenv("ZKSANDBOX_BLOCK_INTERVAL", "2s")
	t.Setenv("ZKSANDBOX_FAUCET_ETH", "5")
	t.Setenv("ZKSANDBOX_MDNS", "false")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 2*time.Second, cfg.BlockInterval)
	assert.Equal(t, "5", cfg.FaucetETH)
	assert.False(t, cfg.MDNS)
}

func TestLoadConfigRejectsPort(t *testing.T) {
	t.Setenv("ZKSANDBOX_PORT", "70000")

	_, err := LoadConfig()
	assert.Error(t, err)
}
