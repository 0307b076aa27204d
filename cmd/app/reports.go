package main

import (
	"errors"
	"os"

	"QuantData/internal/di"
	drepo "QuantData/internal/domain/repository"
	"QuantData/internal/usecase"
	applogger "QuantData/pkg/logger"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate canonical files and write the report and summary stats",
	RunE:  runValidate,
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print an overview of the stored data",
	RunE:  runSummary,
}

var onePagerCmd = &cobra.Command{
	Use:   "generate-onepager",
	Short: "Write the markdown data one-pager",
	RunE:  runOnePager,
}

func init() {
	validateCmd.Flags().StringSlice("timeframe", nil, "timeframes to validate, defaults to validation.timeframes")
	summaryCmd.Flags().Bool("combine", false, "also write the combined dataset per timeframe")
	onePagerCmd.Flags().String("out", "", "output path, defaults to <results_dir>/data_onepager.md")
}

func parseTimeframes(in []string) ([]drepo.Timeframe, error) {
	out := make([]drepo.Timeframe, 0, len(in))
	for _, s := range in {
		tf, err := drepo.ParseTimeframe(s)
		if err != nil {
			return nil, err
		}
		out = append(out, tf)
	}
	return out, nil
}

func runValidate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	names, _ := cmd.Flags().GetStringSlice("timeframe")
	if len(names) == 0 {
		names = cfg.Validation.Timeframes
	}
	tfs, err := parseTimeframes(names)
	if err != nil {
		return err
	}
	cfg.Backend.Type = usecase.BackendNone

	return withToolkit(cfg, func(tk *di.Toolkit) error {
		failed := 0
		for _, tf := range tfs {
			run, err := tk.Validator.Run(cmd.Context(), tf)
			if errors.Is(err, drepo.ErrNoData) {
				tk.Logger.Warn("no data to validate", applogger.String("timeframe", tf.String()))
				continue
			}
			if err != nil {
				return err
			}
			issues := run.Report.IssueCount()
			if issues > 0 {
				failed++
			}
			tk.Logger.Info("validation complete",
				applogger.String("timeframe", tf.String()),
				applogger.Int("symbols", run.Report.TotalSymbols),
				applogger.Int("issues", issues),
				applogger.String("report", run.ReportPath),
				applogger.String("summary", run.SummaryPath))
		}
		if failed > 0 {
			return errors.New("validation found issues")
		}
		return nil
	})
}

func runSummary(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	combine, _ := cmd.Flags().GetBool("combine")
	tfs, err := parseTimeframes(cfg.Validation.Timeframes)
	if err != nil {
		return err
	}
	cfg.Backend.Type = usecase.BackendNone

	return withToolkit(cfg, func(tk *di.Toolkit) error {
		overviews, err := tk.Summarizer.Overview(cmd.Context(), tfs)
		if err != nil {
			return err
		}
		if err := usecase.RenderOverview(os.Stdout, overviews); err != nil {
			return err
		}
		if !combine {
			return nil
		}
		for _, tf := range tfs {
			res, err := tk.Summarizer.Combine(cmd.Context(), tf)
			if errors.Is(err, drepo.ErrNoData) {
				continue
			}
			if err != nil {
				return err
			}
			tk.Logger.Info("combined dataset written",
				applogger.String("timeframe", res.Timeframe),
				applogger.Int("rows", res.Rows),
				applogger.String("path", res.Path))
		}
		return nil
	})
}

func runOnePager(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	out, _ := cmd.Flags().GetString("out")
	if out == "" {
		out = di.OnePagerPath(cfg)
	}
	cfg.Backend.Type = usecase.BackendNone

	return withToolkit(cfg, func(tk *di.Toolkit) error {
		path, err := tk.OnePager.Generate(cmd.Context(), out)
		if err != nil {
			return err
		}
		tk.Logger.Info("one-pager written", applogger.String("path", path))
		return nil
	})
}
