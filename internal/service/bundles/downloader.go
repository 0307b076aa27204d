package bundles

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"QuantData/internal/service/ratelimit"
	xhttp "QuantData/pkg/http"
	applogger "QuantData/pkg/logger"
	"QuantData/pkg/util"
)

// Bundle periods published by data.binance.vision.
const (
	PeriodDaily   = "daily"
	PeriodMonthly = "monthly"
)

// DefaultSymbols are downloaded when none are given.
var DefaultSymbols = []string{"BTCUSDT", "ETHUSDT", "BNBUSDT", "XRPUSDT", "ADAUSDT"}

// DownloadRequest selects which bundles to fetch. Zero Start and End fall back to DaysBack.
type DownloadRequest struct {
	BundleDir string
	Timeframe string
	Period    string
	Symbols   []string
	DaysBack  int
	Start     time.Time
	End       time.Time
	DryRun    bool
	Force     bool
	Pause     time.Duration
}

// PlanItem is one bundle file to download.
type PlanItem struct {
	Symbol string
	URL    string
	Dest   string
}

type DownloadResult struct {
	Planned   int
	Succeeded int
	Skipped   int
	Failed    []string
}

func (r *DownloadResult) String() string {
	return fmt.Sprintf("Planned: %d, succeeded: %d", r.Planned, r.Succeeded)
}

// Downloader fetches kline bundle zips from the public dataset.
type Downloader struct {
	client    *xhttp.Client
	visionURL string
	log       *applogger.Logger
	now       func() time.Time
}

func NewDownloader(client *xhttp.Client, visionURL string, l *applogger.Logger) *Downloader {
	if l == nil {
		l = applogger.Nop()
	}
	return &Downloader{
		client:    client,
		visionURL: strings.TrimRight(visionURL, "/"),
		log:       l,
		now:       time.Now,
	}
}

// Range resolves the inclusive date range of req.
func (d *Downloader) Range(req DownloadRequest) (time.Time, time.Time) {
	now := d.now().UTC()
	switch {
	case !req.Start.IsZero() && !req.End.IsZero():
		return req.Start, req.End
	case !req.Start.IsZero():
		return req.Start, now
	}
	days := req.DaysBack
	if days <= 0 {
		days = 30
	}
	return now.AddDate(0, 0, -days), now
}

// Plan lists every file req covers, per symbol in date order.
func (d *Downloader) Plan(req DownloadRequest) []PlanItem {
	symbols := util.UpperUnique(req.Symbols)
	if len(symbols) == 0 {
		symbols = DefaultSymbols
	}
	tf := req.Timeframe
	if tf == "" {
		tf = "1m"
	}
	start, end := d.Range(req)

	var plan []PlanItem
	for _, sym := range symbols {
		if req.Period == PeriodMonthly {
			for _, m := range util.Months(start, end) {
				name := fmt.Sprintf("%s-%s-%s.zip", sym, tf, m.Format(util.MonthLayout))
				plan = append(plan, PlanItem{
					Symbol: sym,
					URL:    fmt.Sprintf("%s/monthly/klines/%s/%s/%s", d.visionURL, sym, tf, name),
					Dest:   filepath.Join(req.BundleDir, "monthly_"+tf, name),
				})
			}
			continue
		}
		for _, day := range util.Days(start, end) {
			name := fmt.Sprintf("%s-%s-%s.zip", sym, tf, day.Format(util.DateLayout))
			plan = append(plan, PlanItem{
				Symbol: sym,
				URL:    fmt.Sprintf("%s/daily/klines/%s/%s/%s", d.visionURL, sym, tf, name),
				Dest:   filepath.Join(req.BundleDir, tf, name),
			})
		}
	}
	return plan
}

// Run downloads the plan of req one file at a time, pausing between files.
// Failed files are reported in the result; only context cancellation aborts the run.
func (d *Downloader) Run(ctx context.Context, req DownloadRequest) (*DownloadResult, error) {
	plan := d.Plan(req)
	res := &DownloadResult{Planned: len(plan)}
	pause := ratelimit.NewMinGap(req.Pause)

	for _, item := range plan {
		if err := pause.Wait(ctx, "bundles"); err != nil {
			return res, err
		}
		ok, skipped, err := d.fetch(ctx, item, req)
		if err != nil && ctx.Err() != nil {
			return res, ctx.Err()
		}
		if skipped {
			res.Skipped++
		}
		if ok {
			res.Succeeded++
			continue
		}
		res.Failed = append(res.Failed, item.URL)
		d.log.Warn("bundle download failed", applogger.String("url", item.URL), applogger.Error(err))
	}

	d.log.Info(res.String(),
		applogger.Int("skipped", res.Skipped),
		applogger.Int("failed", len(res.Failed)),
		applogger.Bool("dry_run", req.DryRun))
	return res, nil
}

func (d *Downloader) fetch(ctx context.Context, item PlanItem, req DownloadRequest) (ok, skipped bool, err error) {
	if req.DryRun {
		d.log.Info("dry run: would download", applogger.String("url", item.URL), applogger.String("dest", item.Dest))
		return true, false, nil
	}
	if _, statErr := os.Stat(item.Dest); statErr == nil {
		if !req.Force {
			d.log.Debug("skipping existing bundle", applogger.String("dest", item.Dest))
			return true, true, nil
		}
		d.log.Info("overwriting existing bundle", applogger.String("dest", item.Dest))
	}

	n, err := d.client.Download(ctx, item.URL, item.Dest)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) {
			return false, false, fmt.Errorf("status %d", se.StatusCode)
		}
		return false, false, err
	}
	d.log.Info("downloaded bundle", applogger.String("dest", item.Dest), applogger.Int64("bytes", n))
	return true, false, nil
}
