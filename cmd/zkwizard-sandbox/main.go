package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/setavenger/zkwizard/internal/discovery"
	"github.com/setavenger/zkwizard/internal/logging"
	"github.com/setavenger/zkwizard/internal/sandbox"
	"github.com/setavenger/zkwizard/internal/storage"
	"github.com/setavenger/zkwizard/internal/units"
)

func init() {
	var debug bool
	pflag.BoolVar(&debug, "debug", false, "enable debug logging")
	pflag.Parse()

	if debug {
		logging.SetLogLevel(zerolog.DebugLevel)
	} else {
		logging.SetLogLevel(zerolog.InfoLevel)
	}
}

func main() {
	if err := run(); err != nil {
		logging.L.Err(err).Msg("sandbox stopped")
		os.Exit(1)
	}
}

func run() error {
	cfg, err := sandbox.LoadConfig()
	if err != nil {
		return err
	}

	faucet, err := units.ParseEther(cfg.FaucetETH)
	if err != nil {
		return fmt.Errorf("invalid faucet amount: %w", err)
	}

	db, err := storage.Open(cfg.DataDir, cfg.DataDir == "")
	if err != nil {
		return err
	}
	defer db.Close()

	ledger, err := sandbox.NewLedger(db, faucet)
	if err != nil {
		return err
	}

	l, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	if cfg.MDNS {
		hostname, _ := os.Hostname()
		advertiser, err := discovery.Advertise("zkwizard-sandbox-"+hostname, cfg.Port)
		if err != nil {
			logging.L.Warn().Err(err).Msg("mdns disabled")
		} else {
			defer advertiser.Shutdown()
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logging.L.Info().
		Int("port", cfg.Port).
		Str("datadir", cfg.DataDir).
		Dur("block_interval", cfg.BlockInterval).
		Str("faucet_eth", cfg.FaucetETH).
		Msg("starting sandbox")
	return sandbox.NewServer(ledger, cfg.BlockInterval).Serve(ctx, l)
}
