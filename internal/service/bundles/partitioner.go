package bundles

import (
	"context"
	"errors"
	"strings"
	"time"

	"QuantData/internal/domain/models"
	drepo "QuantData/internal/domain/repository"
	applogger "QuantData/pkg/logger"
	"QuantData/pkg/util"
)

type PartitionRequest struct {
	Timeframe string
	// Symbol limits the run to one base, case-insensitive.
	Symbol string
	DryRun bool
}

type PartitionResult struct {
	Base  string
	Month string
	Rows  int
	Path  string
}

// Partitioner splits canonical per-symbol files into year/month partitions.
type Partitioner struct {
	store Store
	log   *applogger.Logger
}

func NewPartitioner(store Store, l *applogger.Logger) *Partitioner {
	if l == nil {
		l = applogger.Nop()
	}
	return &Partitioner{store: store, log: l}
}

// Partition returns one result per month written, or planned under DryRun.
func (p *Partitioner) Partition(ctx context.Context, req PartitionRequest) ([]PartitionResult, error) {
	tfName := req.Timeframe
	if tfName == "" {
		tfName = "1m"
	}
	tf, err := drepo.ParseTimeframe(tfName)
	if err != nil {
		return nil, err
	}
	bases, err := p.store.Bases()
	if err != nil {
		return nil, err
	}

	var out []PartitionResult
	for _, base := range bases {
		if req.Symbol != "" && !strings.EqualFold(base, req.Symbol) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return out, err
		}
		f, err := p.store.Read(base, tf)
		if errors.Is(err, drepo.ErrNoData) {
			continue
		}
		if err != nil {
			return out, err
		}

		written := 0
		for _, g := range groupByMonth(f.Series) {
			r, err := p.writeMonth(base, tf, g, req.DryRun)
			if err != nil {
				return out, err
			}
			written += r.Rows
			out = append(out, r)
		}
		p.log.Info("partitioned symbol",
			applogger.String("base", base),
			applogger.String("timeframe", tf.String()),
			applogger.Int("rows", written),
			applogger.Bool("dry_run", req.DryRun))
	}
	if len(out) == 0 {
		p.log.Info("no canonical files found to partition", applogger.String("timeframe", tf.String()))
	}
	return out, nil
}

func (p *Partitioner) writeMonth(base string, tf drepo.Timeframe, g monthGroup, dryRun bool) (PartitionResult, error) {
	path := p.store.PartitionPath(base, tf, g.month)
	r := PartitionResult{Base: base, Month: util.MonthKey(g.month), Rows: len(g.series), Path: path}
	if dryRun {
		p.log.Info("dry run: would write", applogger.Int("rows", r.Rows), applogger.String("path", path))
		return r, nil
	}

	merged := g.series
	existing, err := p.store.ReadFile(path)
	switch {
	case err == nil:
		merged = existing.Series.Merge(g.series)
	case !errors.Is(err, drepo.ErrNoData):
		return r, err
	default:
		merged = merged.Dedup()
	}
	if err := p.store.WriteFile(path, merged.WithSymbol(pair(base))); err != nil {
		return r, err
	}
	return r, nil
}

type monthGroup struct {
	month  time.Time
	series models.Series
}

// groupByMonth keeps months in order of first appearance after sorting by bucket.
func groupByMonth(s models.Series) []monthGroup {
	sorted := append(models.Series(nil), s...)
	sorted.Sort()
	var out []monthGroup
	for _, c := range sorted {
		b := c.Bucket.UTC()
		m := time.Date(b.Year(), b.Month(), 1, 0, 0, 0, 0, time.UTC)
		if n := len(out); n == 0 || !out[n-1].month.Equal(m) {
			out = append(out, monthGroup{month: m})
		}
		out[len(out)-1].series = append(out[len(out)-1].series, c)
	}
	return out
}
