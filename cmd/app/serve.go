package main

import (
	"context"
	"fmt"

	"QuantData/internal/di"
	"QuantData/pkg/config"
	"QuantData/pkg/server"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, plus the stream and kafka sink when enabled",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runApp(cmd, nil, (*server.App).Serve)
	},
}

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume the redis job queue",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runApp(cmd, func(cfg *config.Config) { cfg.Queue.Enabled = true }, (*server.App).Worker)
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch [symbols...]",
	Short: "Stream closed klines into the configured backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		tf, _ := cmd.Flags().GetString("timeframe")
		return runApp(cmd, func(cfg *config.Config) {
			cfg.Stream.Enabled = true
			if tf != "" {
				cfg.Stream.Timeframe = tf
			}
			if len(args) > 0 {
				cfg.Exchange.Symbols = normalizeSymbols(args)
			}
		}, (*server.App).Watch)
	},
}

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Sink the candles topic into ClickHouse",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runApp(cmd, func(cfg *config.Config) { cfg.Kafka.Consumer.Enabled = true }, (*server.App).Consume)
	},
}

func init() {
	watchCmd.Flags().String("timeframe", "", "kline interval, defaults to stream.timeframe")
}

func runApp(cmd *cobra.Command, adjust func(*config.Config), run func(*server.App, context.Context) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if adjust != nil {
		adjust(cfg)
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
	}

	app, cleanup, err := di.InitializeApp(cfg)
	if err != nil {
		return fmt.Errorf("app initialization failed: %w", err)
	}
	defer cleanup()
	return run(app, cmd.Context())
}
