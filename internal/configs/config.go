package configs

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/setavenger/zkwizard/internal/logging"
)

// Config is the wizard configuration loaded from zkwizard.toml in the data dir.
type Config struct {
	DataDir         string
	ServerURL       string
	PollInterval    time.Duration
	MemoryDB        bool
	MinConfirmation int
	ExplorerURL     string
	Alias           string
	DepositETH      string
}

// KeystorePath is where the local wallet keeps its encrypted seed.
func (c *Config) KeystorePath() string {
	return filepath.Join(c.DataDir, KeystoreFile)
}

// SDKDataDir is used by the sdk when the user db is not kept in memory.
func (c *Config) SDKDataDir() string {
	return filepath.Join(c.DataDir, SDKDataDirName)
}

// ExplorerLink returns the explorer url for a transaction id.
func (c *Config) ExplorerLink(txID string) string {
	return fmt.Sprintf(c.ExplorerURL, txID)
}

func setDefaultConfig(config *viper.Viper) {
	config.SetDefault("server_url", DefaultServerURL)
	config.SetDefault("poll_interval", DefaultPollInterval)
	config.SetDefault("memory_db", DefaultMemoryDB)
	config.SetDefault("min_confirmation", DefaultMinConfirmation)
	config.SetDefault("explorer_url", DefaultExplorerURL)
	config.SetDefault("alias", DefaultAlias)
	config.SetDefault("deposit_eth", DefaultDepositETH)
}

// initializeConfig sets defaults, loads an existing config file or writes
// the default one when none exists yet.
func initializeConfig(dataDir string) (*viper.Viper, error) {
	config := viper.New()
	config.SetConfigName(ConfigName)
	config.SetConfigType("toml")
	config.AddConfigPath(dataDir)
	config.SetEnvPrefix("ZKWIZARD")
	config.AutomaticEnv()

	setDefaultConfig(config)

	if err := config.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := config.WriteConfigAs(filepath.Join(dataDir, ConfigName+".toml")); err != nil {
			return nil, fmt.Errorf("failed to write default config: %w", err)
		}
		logging.L.Info().Str("data_dir", dataDir).Msg("default config file created")
	} else {
		logging.L.Debug().Str("file", config.ConfigFileUsed()).Msg("existing config loaded")
	}

	return config, nil
}

// Load resolves the data dir, makes sure it exists and reads the config.
// An empty dataDir falls back to DefaultDataDir.
func Load(dataDir string) (*Config, error) {
	if dataDir == "" {
		dataDir = DefaultDataDir()
	} else {
		dataDir = ResolvePath(dataDir)
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	v, err := initializeConfig(dataDir)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:         dataDir,
		ServerURL:       v.GetString("server_url"),
		PollInterval:    v.GetDuration("poll_interval"),
		MemoryDB:        v.GetBool("memory_db"),
		MinConfirmation: v.GetInt("min_confirmation"),
		ExplorerURL:     v.GetString("explorer_url"),
		Alias:           v.GetString("alias"),
		DepositETH:      v.GetString("deposit_eth"),
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MinConfirmation < 1 {
		cfg.MinConfirmation = DefaultMinConfirmation
	}

	return cfg, nil
}
