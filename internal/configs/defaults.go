package configs

import (
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"

	"github.com/setavenger/zkwizard/internal/logging"
)

// DefaultDataDir returns the default data dir "~/.zkwizard/"
// if homedir is not found falls back to current directory "."
func DefaultDataDir() string {
	homeDir, err := homedir.Dir()
	if err != nil {
		logging.L.Err(err).Msg("error getting home directory")
		logging.L.Info().Msg("falling back to current directory")
		homeDir = "."
	}
	dataDir := filepath.Join(homeDir, ".zkwizard")
	logging.L.Trace().Str("data_dir", dataDir).Msg("data directory")
	return dataDir
}

// ResolvePath expands a leading "~" and cleans the path.
func ResolvePath(path string) string {
	expanded, err := homedir.Expand(path)
	if err != nil {
		logging.L.Warn().Err(err).Str("path", path).Msg("could not expand path")
		return filepath.Clean(path)
	}
	return filepath.Clean(expanded)
}

const (
	// DiscoveryServerURL makes the wizard look for a sandbox on the local
	// network instead of dialing a fixed endpoint.
	DiscoveryServerURL = "mdns"

	DefaultServerURL       = "http://localhost:8547"
	DefaultPollInterval    = time.Second
	DefaultMemoryDB        = true
	DefaultMinConfirmation = 1
	DefaultExplorerURL     = "http://localhost:8547/api/txs/%s"

	// DefaultAlias is the hardcoded tutorial alias. Aliases are at most 20
	// lowercase alphanumeric characters.
	DefaultAlias      = "test232"
	DefaultDepositETH = "0.01"

	ConfigName       = "zkwizard"
	KeystoreFile     = "keystore.json"
	SDKDataDirName   = "sdk"
	SandboxPort      = 8547
	SandboxFaucetETH = "1"
)
