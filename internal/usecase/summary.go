package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"QuantData/internal/domain/models"
	drepo "QuantData/internal/domain/repository"
	"QuantData/internal/services/analytics"
	"QuantData/internal/services/features"
	applogger "QuantData/pkg/logger"
	"QuantData/pkg/util"

	"github.com/dustin/go-humanize"
)

const combinedDir = "combined"

// SampleOverview describes the first symbol of a timeframe in detail.
type SampleOverview struct {
	Symbol        string
	Start, End    string
	Rows          int
	Columns       []string
	CloseMin      float64
	CloseMax      float64
	AvgVolume     float64
	MissingValues int
	TotalReturn   float64
	Volatility    float64
	Issues        []string
}

type TimeframeOverview struct {
	Timeframe string
	Manifest  *models.FetchManifest
	Sample    *SampleOverview
}

// Summarizer reports what is on disk and builds combined datasets.
type Summarizer struct {
	store    drepo.CandleStore
	exchange string
	log      *applogger.Logger
	now      func() time.Time
}

func NewSummarizer(store drepo.CandleStore, exchange string, l *applogger.Logger) *Summarizer {
	if l == nil {
		l = applogger.Nop()
	}
	return &Summarizer{store: store, exchange: exchange, log: l, now: time.Now}
}

// Overview scans the per-symbol files of each timeframe. Timeframes without files are left out.
func (s *Summarizer) Overview(ctx context.Context, tfs []drepo.Timeframe) ([]TimeframeOverview, error) {
	bases, err := s.store.Bases()
	if err != nil {
		return nil, err
	}

	var out []TimeframeOverview
	for _, tf := range tfs {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		m := &models.FetchManifest{
			Exchange:       s.exchange,
			Timeframe:      tf.String(),
			FetchTimestamp: s.now().UTC().Format(util.StampLayout),
			Symbols:        map[string]models.FetchEntry{},
		}
		var sample *SampleOverview
		for _, base := range bases {
			f, err := s.store.Read(base, tf)
			if errors.Is(err, drepo.ErrNoData) {
				continue
			}
			if err != nil {
				return out, err
			}
			if len(f.Series) == 0 {
				continue
			}
			sum, err := s.store.Hash(f.Path, drepo.HashMD5)
			if err != nil {
				return out, err
			}
			symbol := base + "/" + models.DefaultQuote
			first, _ := f.Series.First()
			last, _ := f.Series.Last()
			m.Symbols[symbol] = models.FetchEntry{
				Filename:  filepath.Base(f.Path),
				Rows:      len(f.Series),
				StartDate: first.Bucket.Format(util.DateTimeLayout),
				EndDate:   last.Bucket.Format(util.DateTimeLayout),
				Hash:      sum,
				Subfolder: base,
			}
			m.TotalSymbols++
			m.TotalRows += len(f.Series)
			if sample == nil {
				sample = describeSample(symbol, f)
			}
		}
		if m.TotalSymbols > 0 {
			out = append(out, TimeframeOverview{Timeframe: tf.String(), Manifest: m, Sample: sample})
		}
	}
	return out, nil
}

func describeSample(symbol string, f *drepo.CandleFile) *SampleOverview {
	s := f.Series
	first, _ := s.First()
	last, _ := s.Last()
	closes := s.Closes()
	so := &SampleOverview{
		Symbol:        symbol,
		Start:         first.Bucket.Format(util.DateTimeLayout),
		End:           last.Bucket.Format(util.DateTimeLayout),
		Rows:          len(s),
		Columns:       f.Columns,
		AvgVolume:     analytics.Mean(analytics.Clean(s.Column(models.ColVolume))),
		MissingValues: nullCount(s),
		Issues:        integrityIssues(s),
	}
	so.CloseMin, so.CloseMax, _ = analytics.MinMax(closes)
	so.TotalReturn, _ = features.TotalReturnPct(closes)
	if std, ok := analytics.StdDev(features.SimpleReturns(closes)); ok {
		so.Volatility = std * 100
	}
	return so
}

func integrityIssues(s models.Series) []string {
	var issues []string
	if duplicateBuckets(s) > 0 {
		issues = append(issues, "Duplicate timestamps")
	}
	var hiLo, hiOC, loOC, negVol bool
	for _, c := range s {
		hiLo = hiLo || c.High < c.Low
		hiOC = hiOC || c.High < c.Open || c.High < c.Close
		loOC = loOC || c.Low > c.Open || c.Low > c.Close
		negVol = negVol || c.Volume < 0
	}
	if hiLo {
		issues = append(issues, "High < Low")
	}
	if hiOC {
		issues = append(issues, "High < Open/Close")
	}
	if loOC {
		issues = append(issues, "Low > Open/Close")
	}
	if negVol {
		issues = append(issues, "Negative volume")
	}
	return issues
}

// RenderOverview writes the human readable report.
func RenderOverview(w io.Writer, overviews []TimeframeOverview) error {
	var b strings.Builder
	b.WriteString("Crypto Data Summary\n")
	b.WriteString(strings.Repeat("=", 40) + "\n")
	if len(overviews) == 0 {
		b.WriteString("\nNo data found.\n")
	}
	for _, o := range overviews {
		m := o.Manifest
		fmt.Fprintf(&b, "\n%s Data (%s)\n", strings.ToUpper(o.Timeframe), m.Exchange)
		fmt.Fprintf(&b, "   Fetched: %s\n", m.FetchTimestamp)
		fmt.Fprintf(&b, "   Symbols: %d\n", m.TotalSymbols)
		fmt.Fprintf(&b, "   Total rows: %s\n", humanize.Comma(int64(m.TotalRows)))

		s := o.Sample
		if s == nil {
			continue
		}
		fmt.Fprintf(&b, "\n   Sample (%s):\n", s.Symbol)
		fmt.Fprintf(&b, "   - Date range: %s to %s\n", s.Start, s.End)
		fmt.Fprintf(&b, "   - Rows: %s\n", humanize.Comma(int64(s.Rows)))
		fmt.Fprintf(&b, "   - Columns: [%s]\n", strings.Join(s.Columns, ", "))
		fmt.Fprintf(&b, "   - Price range: $%.2f - $%.2f\n", s.CloseMin, s.CloseMax)
		fmt.Fprintf(&b, "   - Avg volume: %s\n", humanize.CommafWithDigits(s.AvgVolume, 0))
		fmt.Fprintf(&b, "   - Missing values: %d\n", s.MissingValues)
		fmt.Fprintf(&b, "   - Total return: %.1f%%\n", s.TotalReturn)
		fmt.Fprintf(&b, "   - Volatility per bar: %.2f%%\n", s.Volatility)
		if len(s.Issues) > 0 {
			fmt.Fprintf(&b, "   Issues: %s\n", strings.Join(s.Issues, ", "))
		} else {
			b.WriteString("   Data integrity: PASS\n")
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// CombineResult locates a combined dataset.
type CombineResult struct {
	Timeframe string
	Rows      int
	Path      string
}

// Combine concatenates every symbol of tf, tagged with its pair, into combined/crypto_combined_<tf>.csv.
func (s *Summarizer) Combine(ctx context.Context, tf drepo.Timeframe) (*CombineResult, error) {
	bases, err := s.store.Bases()
	if err != nil {
		return nil, err
	}
	var all models.Series
	for _, base := range bases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, err := s.store.Read(base, tf)
		if errors.Is(err, drepo.ErrNoData) {
			continue
		}
		if err != nil {
			return nil, err
		}
		all = append(all, f.Series.WithSymbol(base+"/"+models.DefaultQuote)...)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("combine %s: %w", tf, drepo.ErrNoData)
	}

	path := filepath.Join(s.store.Root(), combinedDir, fmt.Sprintf("crypto_combined_%s.csv", tf))
	if err := s.store.WriteFile(path, all); err != nil {
		return nil, err
	}
	s.log.Info("combined dataset written",
		applogger.String("timeframe", tf.String()),
		applogger.Int("rows", len(all)),
		applogger.String("path", path))
	return &CombineResult{Timeframe: tf.String(), Rows: len(all), Path: path}, nil
}
