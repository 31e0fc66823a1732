package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"arb-sim-bot/internal/bridge"
	"arb-sim-bot/internal/config"
	"arb-sim-bot/internal/logging"

	"go.uber.org/zap"
)

// The bridge reads the journal the bot appends to, so it can run on the
// same config file as the bot or stand alone with just the flags below.
func main() {
	configPath := flag.String("config", "", "optional config path for bridge settings")
	listen := flag.String("listen", "", "listen address override, e.g. :8080")
	csvPath := flag.String("journal", "", "journal CSV path override")
	poll := flag.Duration("poll", 0, "journal poll interval override")
	flag.Parse()

	if err := config.LoadEnv(".env"); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
	}

	logCfg := config.LoggingConfig{Level: "info"}
	bridgeCfg := config.BridgeConfig{
		Listen:       ":8080",
		CSVPath:      "arbitrage_opportunities.csv",
		PollInterval: 500 * time.Millisecond,
	}
	if *configPath != "" {
		cfg, err := config.Load(*configPath)
		if err != nil {
			panic(err)
		}
		logCfg = cfg.Log
		bridgeCfg = cfg.Bridge
	}
	if *listen != "" {
		bridgeCfg.Listen = *listen
	}
	if *csvPath != "" {
		bridgeCfg.CSVPath = *csvPath
	}
	if *poll > 0 {
		bridgeCfg.PollInterval = *poll
	}

	log := logging.New(logCfg)
	defer func() { _ = log.Sync() }()

	srv := bridge.NewServer(bridgeCfg, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil && err != context.Canceled {
		log.Error("bridge terminated", zap.Error(err))
		os.Exit(1)
	}
}
