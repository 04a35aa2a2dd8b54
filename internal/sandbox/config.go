package sandbox

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/setavenger/zkwizard/internal/configs"
)

// Config of the sandbox, read from ZKSANDBOX_* environment variables.
type Config struct {
	Port int `envconfig:"PORT" default:"8547"`
	// DataDir of the ledger db. Empty keeps the ledger in memory.
	DataDir       string        `envconfig:"DATADIR"`
	BlockInterval time.Duration `envconfig:"BLOCK_INTERVAL" default:"10s"`
	FaucetETH     string        `envconfig:"FAUCET_ETH" default:"1"`
	MDNS          bool          `envconfig:"MDNS" default:"true"`
}

const envPrefix = "ZKSANDBOX"

// LoadConfig reads the sandbox config from the environment.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(envPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	if cfg.BlockInterval <= 0 {
		cfg.BlockInterval = 10 * time.Second
	}
	if cfg.FaucetETH == "" {
		cfg.FaucetETH = configs.SandboxFaucetETH
	}
	if cfg.DataDir != "" {
		cfg.DataDir = configs.ResolvePath(cfg.DataDir)
	}
	return &cfg, nil
}
