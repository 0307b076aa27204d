package main

import (
	"fmt"
	"os"
	"strings"

	"QuantData/internal/di"
	"QuantData/internal/service/bundles"
	"QuantData/internal/usecase"
	applogger "QuantData/pkg/logger"
	"QuantData/pkg/util"

	"github.com/spf13/cobra"
)

var downloadBundlesCmd = &cobra.Command{
	Use:   "download-bundles",
	Short: "Download daily or monthly kline bundles",
	RunE:  runDownloadBundles,
}

var importBundlesCmd = &cobra.Command{
	Use:   "import-bundles",
	Short: "Import downloaded bundles into month partitions",
	RunE:  runImportBundles,
}

var partitionCmd = &cobra.Command{
	Use:   "partition",
	Short: "Split canonical files into year/month partitions",
	RunE:  runPartition,
}

func init() {
	f := downloadBundlesCmd.Flags()
	f.String("bundle-dir", "", "bundle directory, defaults to data.bundle_dir")
	f.String("timeframe", "1m", "kline interval")
	f.String("period", "", "daily or monthly, defaults to bundles.period")
	f.StringSlice("symbols", nil, "exchange symbols such as BTCUSDT, defaults to bundles.symbols")
	f.Int("days-back", 0, "days to download when no start date is given")
	f.String("start-date", "", "first day, YYYY-MM-DD")
	f.String("end-date", "", "last day, YYYY-MM-DD")
	f.Bool("dry-run", false, "only print the plan")
	f.Bool("force", false, "re-download existing files")
	f.Duration("pause", 0, "pause between downloads, defaults to bundles.pause")

	f = importBundlesCmd.Flags()
	f.String("bundle-dir", "", "bundle directory, defaults to data.bundle_dir")
	f.String("timeframe", "1m", "kline interval")
	f.StringSlice("symbols", nil, "limit to these symbols")
	f.Bool("dry-run", false, "only report what would be written")
	f.Bool("force", false, "replace existing month partitions")

	f = partitionCmd.Flags()
	f.String("timeframe", "1m", "timeframe")
	f.String("symbol", "", "limit to one base")
	f.Bool("dry-run", false, "only report what would be written")
}

func runDownloadBundles(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	f := cmd.Flags()
	req := bundles.DownloadRequest{BundleDir: cfg.Data.BundleDir, Period: cfg.Bundles.Period, Symbols: cfg.Bundles.Symbols, DaysBack: cfg.Bundles.DaysBack, Pause: cfg.Bundles.Pause}
	if v, _ := f.GetString("bundle-dir"); v != "" {
		req.BundleDir = v
	}
	req.Timeframe, _ = f.GetString("timeframe")
	if v, _ := f.GetString("period"); v != "" {
		req.Period = v
	}
	if req.Period != "daily" && req.Period != "monthly" {
		return fmt.Errorf("invalid period %q", req.Period)
	}
	if v, _ := f.GetStringSlice("symbols"); len(v) > 0 {
		req.Symbols = util.UpperUnique(v)
	}
	if v, _ := f.GetInt("days-back"); v > 0 {
		req.DaysBack = v
	}
	if v, _ := f.GetString("start-date"); v != "" {
		if req.Start, err = util.ParseDate(v); err != nil {
			return fmt.Errorf("invalid start-date: %w", err)
		}
	}
	if v, _ := f.GetString("end-date"); v != "" {
		if req.End, err = util.ParseDate(v); err != nil {
			return fmt.Errorf("invalid end-date: %w", err)
		}
	}
	req.DryRun, _ = f.GetBool("dry-run")
	req.Force, _ = f.GetBool("force")
	if f.Changed("pause") {
		req.Pause, _ = f.GetDuration("pause")
	}
	cfg.Backend.Type = usecase.BackendNone

	return withToolkit(cfg, func(tk *di.Toolkit) error {
		if req.DryRun {
			for _, item := range tk.Downloader.Plan(req) {
				fmt.Fprintf(os.Stdout, "%s -> %s\n", item.URL, item.Dest)
			}
		}
		res, err := tk.Downloader.Run(cmd.Context(), req)
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, res.String())
		if len(res.Failed) > 0 {
			return fmt.Errorf("%d downloads failed: %s", len(res.Failed), strings.Join(res.Failed, ", "))
		}
		return nil
	})
}

func runImportBundles(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	f := cmd.Flags()
	req := bundles.ImportRequest{BundleDir: cfg.Data.BundleDir}
	if v, _ := f.GetString("bundle-dir"); v != "" {
		req.BundleDir = v
	}
	req.Timeframe, _ = f.GetString("timeframe")
	if v, _ := f.GetStringSlice("symbols"); len(v) > 0 {
		req.Symbols = util.UpperUnique(v)
	}
	req.DryRun, _ = f.GetBool("dry-run")
	req.Force, _ = f.GetBool("force")
	cfg.Backend.Type = usecase.BackendNone

	return withToolkit(cfg, func(tk *di.Toolkit) error {
		results, err := tk.Importer.Import(cmd.Context(), req)
		for _, r := range results {
			fmt.Fprintln(os.Stdout, r.String())
		}
		tk.Logger.Info("import complete", applogger.Int("partitions", len(results)), applogger.Bool("dry_run", req.DryRun))
		return err
	})
}

func runPartition(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	f := cmd.Flags()
	req := bundles.PartitionRequest{}
	req.Timeframe, _ = f.GetString("timeframe")
	req.Symbol, _ = f.GetString("symbol")
	req.DryRun, _ = f.GetBool("dry-run")
	cfg.Backend.Type = usecase.BackendNone

	return withToolkit(cfg, func(tk *di.Toolkit) error {
		results, err := tk.Partitioner.Partition(cmd.Context(), req)
		if err != nil {
			return err
		}
		rows := 0
		for _, r := range results {
			rows += r.Rows
		}
		tk.Logger.Info("partition complete",
			applogger.Int("partitions", len(results)),
			applogger.Int("rows", rows),
			applogger.Bool("dry_run", req.DryRun))
		return nil
	})
}
