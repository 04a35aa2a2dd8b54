package main

import (
	"context"
	"errors"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/theme"
	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/setavenger/zkwizard/internal/configs"
	"github.com/setavenger/zkwizard/internal/controller"
	"github.com/setavenger/zkwizard/internal/discovery"
	"github.com/setavenger/zkwizard/internal/gui"
	"github.com/setavenger/zkwizard/internal/logging"
	"github.com/setavenger/zkwizard/internal/wallet"
)

const browseTimeout = 3 * time.Second

var (
	dataDir   string
	serverURL string
)

func init() {
	var debug bool
	pflag.BoolVar(&debug, "debug", false, "enable debug logging")
	pflag.StringVar(&dataDir, "datadir", "", "path to data directory for zkwizard")
	pflag.StringVar(&serverURL, "server", "", `rollup endpoint, "mdns" looks for a sandbox on the local network`)
	pflag.Parse()

	if debug {
		logging.SetLogLevel(zerolog.DebugLevel)
	} else {
		logging.SetLogLevel(zerolog.InfoLevel)
	}
}

func main() {
	cfg, err := configs.Load(dataDir)
	if err != nil {
		logging.L.Fatal().Err(err).Msg("failed to load config")
	}
	if serverURL != "" {
		cfg.ServerURL = serverURL
	}
	if cfg.ServerURL == configs.DiscoveryServerURL {
		cfg.ServerURL = discoverServer()
	}
	logging.L.Info().Str("datadir", cfg.DataDir).Str("server", cfg.ServerURL).Msg("starting zkwizard")

	myApp := app.New()
	myApp.SetIcon(theme.AccountIcon())

	mainWindow := myApp.NewWindow("zkwizard")
	mainWindow.Resize(fyne.NewSize(820, 720))
	mainWindow.CenterOnScreen()

	// a missing keystore leaves the wizard on the install wallet screen
	var provider wallet.Provider
	local, err := wallet.NewLocalProvider(cfg.KeystorePath(), gui.NewDialogApprover(mainWindow))
	switch {
	case err == nil:
		provider = local
	case errors.Is(err, wallet.ErrNoProvider):
		logging.L.Info().Str("path", cfg.KeystorePath()).Msg("no wallet found")
	default:
		logging.L.Err(err).Str("path", cfg.KeystorePath()).Msg("failed to open wallet")
	}

	manager := controller.NewManager(cfg, provider, controller.NewSDK)
	if provider != nil {
		provider.OnAccountsChanged(func([]wallet.EthAddress) { manager.Reset() })
	}
	defer func() {
		if err := manager.Close(); err != nil {
			logging.L.Warn().Err(err).Msg("failed to close wizard")
		}
	}()

	mainGUI := gui.NewMainGUI(myApp, mainWindow, manager, cfg)
	defer mainGUI.Cleanup()
	gui.NewTrayManager(myApp, mainWindow, manager)

	mainWindow.SetContent(mainGUI.GetContent())
	mainWindow.ShowAndRun()
}

// discoverServer returns the first sandbox announced on the local network,
// or the default endpoint when none answers in time.
func discoverServer() string {
	url, err := discovery.Browse(context.Background(), browseTimeout)
	if err != nil {
		logging.L.Warn().Err(err).Str("fallback", configs.DefaultServerURL).Msg("sandbox discovery failed")
		return configs.DefaultServerURL
	}
	logging.L.Info().Str("url", url).Msg("found sandbox")
	return url
}
