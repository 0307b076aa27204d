package main

import (
	"fmt"
	"os"

	"QuantData/internal/di"
	"QuantData/pkg/config"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "quantdata",
	Short:         "Crypto OHLCV ingestion, validation and serving",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "config/config.yaml", "config file path")

	rootCmd.AddCommand(fetchCmd, fetch1mCmd, updateLatestCmd)
	rootCmd.AddCommand(validateCmd, summaryCmd, onePagerCmd)
	rootCmd.AddCommand(downloadBundlesCmd, importBundlesCmd, partitionCmd)
	rootCmd.AddCommand(serveCmd, workerCmd, watchCmd, consumeCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return nil, fmt.Errorf("config load failed: %w", err)
	}
	return cfg, nil
}

// withToolkit wires the batch dependencies, runs fn and releases them.
func withToolkit(cfg *config.Config, fn func(tk *di.Toolkit) error) error {
	tk, cleanup, err := di.InitializeToolkit(cfg)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	defer cleanup()
	return fn(tk)
}
