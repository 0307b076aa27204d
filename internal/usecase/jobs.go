package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"QuantData/internal/domain/models"
	drepo "QuantData/internal/domain/repository"
	"QuantData/internal/service/bundles"
	pkgkafka "QuantData/pkg/kafka"
	"QuantData/pkg/queue"

	"github.com/creasty/defaults"
)

// Job types understood by the worker.
const (
	JobUpdateSymbols    = "update_symbols"
	JobImportBundles    = "import_bundles"
	JobGenerateOnePager = "generate_onepager"
)

// jobTrace makes candles published by a job carry the job id as trace id.
func jobTrace(ctx context.Context) context.Context {
	if id := queue.JobID(ctx); id != "" {
		return pkgkafka.WithTraceID(ctx, id)
	}
	return ctx
}

// UpdateSymbolsJob runs the updater for a models.UpdateJobRequest payload.
func UpdateSymbolsJob(u *Updater) queue.Job {
	return queue.JobFunc{
		JobName: "update symbols",
		JobType: JobUpdateSymbols,
		Fn: func(ctx context.Context, payload json.RawMessage) error {
			ctx = jobTrace(ctx)
			req, err := queue.ParsePayload[models.UpdateJobRequest](payload)
			if err != nil {
				return err
			}
			if err := defaults.Set(req); err != nil {
				return fmt.Errorf("payload defaults: %w", err)
			}
			if len(req.Symbols) == 0 {
				return errors.New("update job without symbols")
			}
			tf, err := drepo.ParseTimeframe(req.Timeframe)
			if err != nil {
				return err
			}
			_, err = u.UpdateToNow(ctx, req.Symbols, tf, UpdateOptions{
				DaysBack:   req.DaysBack,
				Overlap:    req.Overlap,
				IncludeNow: req.IncludeNow,
			})
			return err
		},
	}
}

// ImportBundlesJob runs the importer for a bundles.ImportRequest payload.
// Empty bundle_dir and timeframe fall back to bundleDir and 1m.
func ImportBundlesJob(imp *bundles.Importer, bundleDir string) queue.Job {
	return queue.JobFunc{
		JobName: "import bundles",
		JobType: JobImportBundles,
		Fn: func(ctx context.Context, payload json.RawMessage) error {
			req, err := queue.ParsePayload[bundles.ImportRequest](payload)
			if err != nil {
				return err
			}
			if req.BundleDir == "" {
				req.BundleDir = bundleDir
			}
			if req.Timeframe == "" {
				req.Timeframe = drepo.TF1m.String()
			}
			_, err = imp.Import(ctx, *req)
			return err
		},
	}
}

// GenerateOnePagerJob rewrites the one-pager at out. The payload is ignored.
func GenerateOnePagerJob(p *OnePager, out string) queue.Job {
	return queue.JobFunc{
		JobName: "generate one-pager",
		JobType: JobGenerateOnePager,
		Fn: func(ctx context.Context, _ json.RawMessage) error {
			_, err := p.Generate(ctx, out)
			return err
		},
	}
}
