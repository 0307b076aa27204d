package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"QuantData/internal/di"
	"QuantData/internal/domain/models"
	drepo "QuantData/internal/domain/repository"
	"QuantData/internal/usecase"
	applogger "QuantData/pkg/logger"
	"QuantData/pkg/util"

	"github.com/spf13/cobra"
)

const defaultPairCount = 5

var fetchCmd = &cobra.Command{
	Use:   "fetch [symbols...]",
	Short: "Fetch historical candles and save them to the canonical files",
	RunE:  runFetch,
}

var fetch1mCmd = &cobra.Command{
	Use:   "fetch-1m [symbols...]",
	Short: "Fetch the last day of 1m candles",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = cmd.Flags().Set("timeframe", "1m")
		if !cmd.Flags().Changed("days-back") {
			_ = cmd.Flags().Set("days-back", "1")
		}
		return runFetch(cmd, args)
	},
}

var updateLatestCmd = &cobra.Command{
	Use:   "update-latest [symbols...]",
	Short: "Bring canonical files up to date",
	RunE:  runUpdateLatest,
}

func init() {
	for _, c := range []*cobra.Command{fetchCmd, fetch1mCmd} {
		c.Flags().String("timeframe", "", "timeframe, defaults to fetch.timeframe")
		c.Flags().Int("days-back", 0, "days of history, defaults to fetch.days_back")
		c.Flags().Int("limit", 0, "fetch only the latest N bars per symbol")
		c.Flags().Bool("publish", false, "forward fetched candles to the configured backend")
	}

	updateLatestCmd.Flags().String("timeframe", "1d", "timeframe")
	updateLatestCmd.Flags().Int("overlap", 1, "bars to re-fetch before the last stored bar")
	updateLatestCmd.Flags().Bool("include-today", false, "include the current, unfinished day")
	updateLatestCmd.Flags().Int("days-back", 365, "history for symbols without a file")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	tfFlag, _ := cmd.Flags().GetString("timeframe")
	if tfFlag == "" {
		tfFlag = cfg.Fetch.Timeframe
	}
	tf, err := drepo.ParseTimeframe(tfFlag)
	if err != nil {
		return err
	}
	daysBack, _ := cmd.Flags().GetInt("days-back")
	if daysBack <= 0 {
		daysBack = cfg.Fetch.DaysBack
	}
	limit, _ := cmd.Flags().GetInt("limit")
	if publish, _ := cmd.Flags().GetBool("publish"); !publish {
		cfg.Backend.Type = usecase.BackendNone
	}

	return withToolkit(cfg, func(tk *di.Toolkit) error {
		defer tk.Processor.Close()
		ctx := cmd.Context()

		symbols, err := resolveSymbols(cmd, tk, args, cfg.Exchange.Symbols)
		if err != nil {
			return err
		}
		tk.Logger.Info("fetch started",
			applogger.Strings("symbols", symbols),
			applogger.String("timeframe", tf.String()),
			applogger.Int("days_back", daysBack))

		var data map[string]models.Series
		if limit > 0 {
			data, err = tk.Fetcher.FetchLatest(ctx, symbols, tf, limit)
		} else {
			data, err = tk.Fetcher.FetchHistorical(ctx, symbols, tf, daysBack, time.Time{})
		}
		if err != nil {
			return err
		}
		manifest, err := tk.Fetcher.Save(ctx, data, tf)
		tk.Logger.Info("fetch complete",
			applogger.Int("symbols", manifest.TotalSymbols),
			applogger.Int("rows", manifest.TotalRows))
		return err
	})
}

// resolveSymbols prefers explicit args, then configured symbols, then the first major pairs.
func resolveSymbols(cmd *cobra.Command, tk *di.Toolkit, args, configured []string) ([]string, error) {
	if len(args) > 0 {
		return normalizeSymbols(args), nil
	}
	if len(configured) > 0 {
		return normalizeSymbols(configured), nil
	}
	pairs, err := tk.Fetcher.MajorPairs(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("resolve major pairs: %w", err)
	}
	if len(pairs) > defaultPairCount {
		pairs = pairs[:defaultPairCount]
	}
	return pairs, nil
}

func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range util.UpperUnique(in) {
		out = append(out, models.NormalizeSymbol(s))
	}
	return out
}

func runUpdateLatest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	tfFlag, _ := cmd.Flags().GetString("timeframe")
	tf, err := drepo.ParseTimeframe(tfFlag)
	if err != nil {
		return err
	}
	opts := usecase.UpdateOptions{}
	opts.Overlap, _ = cmd.Flags().GetInt("overlap")
	opts.IncludeNow, _ = cmd.Flags().GetBool("include-today")
	opts.DaysBack, _ = cmd.Flags().GetInt("days-back")

	return withToolkit(cfg, func(tk *di.Toolkit) error {
		defer tk.Processor.Close()
		symbols, err := resolveSymbols(cmd, tk, args, cfg.Exchange.Symbols)
		if err != nil {
			return err
		}
		results, err := tk.Updater.UpdateToNow(cmd.Context(), symbols, tf, opts)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if eerr := enc.Encode(results); eerr != nil {
			return eerr
		}
		return err
	})
}
