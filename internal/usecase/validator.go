package usecase

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"QuantData/internal/domain/models"
	drepo "QuantData/internal/domain/repository"
	"QuantData/internal/services/analytics"
	"QuantData/internal/services/features"
	applogger "QuantData/pkg/logger"
	"QuantData/pkg/metrics"
	"QuantData/pkg/util"

	"golang.org/x/sync/errgroup"
)

// ExpectedColumns must all be present in a canonical candle file.
var ExpectedColumns = []string{models.ColOpen, models.ColHigh, models.ColLow, models.ColClose, models.ColVolume, models.ColSymbol}

// Validator checks the canonical files of one timeframe and writes a report.
type Validator struct {
	store        drepo.CandleStore
	manifests    drepo.ManifestStore
	riskFreeRate float64
	metrics      drepo.Metrics
	log          *applogger.Logger
	now          func() time.Time
}

func NewValidator(store drepo.CandleStore, manifests drepo.ManifestStore, riskFreeRate float64, m drepo.Metrics, l *applogger.Logger) *Validator {
	if m == nil {
		m = metrics.Nop{}
	}
	if l == nil {
		l = applogger.Nop()
	}
	return &Validator{store: store, manifests: manifests, riskFreeRate: riskFreeRate, metrics: m, log: l, now: time.Now}
}

// ValidationRun is the outcome of Run.
type ValidationRun struct {
	Report      *models.ValidationReport
	Stats       []models.SummaryStats
	ReportPath  string
	SummaryPath string
}

// Run loads, validates, summarises and persists one timeframe, then rewrites the per-symbol manifests.
func (v *Validator) Run(ctx context.Context, tf drepo.Timeframe) (*ValidationRun, error) {
	files, err := v.Load(ctx, tf)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no %s data under %s: %w", tf, v.store.Root(), drepo.ErrNoData)
	}

	stamp := v.now().UTC().Format(util.StampLayout)
	report := v.Validate(files, tf)
	report.Timestamp = stamp
	stats := v.Summary(files, tf)

	run := &ValidationRun{Report: report, Stats: stats}
	if run.ReportPath, run.SummaryPath, err = v.save(report, stats, tf, stamp); err != nil {
		return run, err
	}

	for symbol, f := range files {
		base := models.BaseOf(symbol)
		if err := v.manifests.WriteSymbol(base, tf, features.BuildManifest(symbol, tf.String(), f.Series.Dedup())); err != nil {
			v.log.Warn("write manifest", applogger.String("symbol", symbol), applogger.Error(err))
		}
	}

	v.metrics.RecordValidationIssues("schema", len(report.SchemaIssues))
	v.metrics.RecordValidationIssues("data", len(report.DataIssues))
	v.metrics.RecordValidationIssues("date", len(report.DateIssues))
	v.log.Info("validation finished",
		applogger.String("timeframe", tf.String()),
		applogger.Int("symbols", report.TotalSymbols),
		applogger.Int("schema_issues", len(report.SchemaIssues)),
		applogger.Int("data_issues", len(report.DataIssues)),
		applogger.Int("date_issues", len(report.DateIssues)),
		applogger.String("report", run.ReportPath))
	return run, nil
}

// Load reads every symbol's file for tf, keyed by "<BASE>/USDT". Symbols without a file are skipped.
func (v *Validator) Load(ctx context.Context, tf drepo.Timeframe) (map[string]*drepo.CandleFile, error) {
	bases, err := v.store.Bases()
	if err != nil {
		return nil, err
	}

	var mu sync.Mutex
	out := make(map[string]*drepo.CandleFile, len(bases))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, base := range bases {
		base := base
		g.Go(func() error {
			f, err := v.store.Read(base, tf)
			if errors.Is(err, drepo.ErrNoData) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("load %s: %w", base, err)
			}
			if len(f.Series) == 0 {
				return nil
			}
			mu.Lock()
			out[base+"/"+models.DefaultQuote] = f
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Validate checks schema, OHLC consistency, volumes and bar spacing.
func (v *Validator) Validate(files map[string]*drepo.CandleFile, tf drepo.Timeframe) *models.ValidationReport {
	r := &models.ValidationReport{
		Timeframe:    tf.String(),
		TotalSymbols: len(files),
		SchemaIssues: []string{},
		DataIssues:   []string{},
		DateIssues:   []string{},
		Symbols:      make(map[string]models.SymbolValidation, len(files)),
	}

	for _, symbol := range sortedKeys(files) {
		f := files[symbol]
		s := f.Series
		first, _ := s.First()
		last, _ := s.Last()
		sv := models.SymbolValidation{
			Rows:           len(s),
			StartDate:      first.Bucket.Format(util.DateTimeLayout),
			EndDate:        last.Bucket.Format(util.DateTimeLayout),
			NullCount:      nullCount(s),
			DuplicateDates: duplicateBuckets(s),
			SchemaValid:    true,
			OHLCValid:      true,
			VolumeValid:    true,
		}

		var missing []string
		for _, col := range ExpectedColumns {
			if !f.HasColumn(col) {
				missing = append(missing, col)
			}
		}
		if len(missing) > 0 {
			r.SchemaIssues = append(r.SchemaIssues, fmt.Sprintf("%s: Missing columns %s", symbol, quotedList(missing)))
			sv.SchemaValid = false
		}

		for _, issue := range ohlcIssues(s) {
			r.DataIssues = append(r.DataIssues, symbol+": "+issue)
			sv.OHLCValid = false
		}
		if anyNegativeVolume(s) {
			r.DataIssues = append(r.DataIssues, symbol+": Negative volumes")
			sv.VolumeValid = false
		}

		if !monotonic(s) {
			r.DateIssues = append(r.DateIssues, symbol+": Non-monotonic dates")
		}
		if n := irregularIntervals(s, tf.Duration()); n > 0 {
			r.DateIssues = append(r.DateIssues, fmt.Sprintf("%s: %d irregular time intervals", symbol, n))
		}
		r.Symbols[symbol] = sv
	}
	return r
}

// quotedList renders names as ['a', 'b'].
func quotedList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = "'" + n + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// Summary computes per-symbol performance figures annualised for tf.
func (v *Validator) Summary(files map[string]*drepo.CandleFile, tf drepo.Timeframe) []models.SummaryStats {
	periods := tf.PeriodsPerYear()
	out := make([]models.SummaryStats, 0, len(files))
	for _, symbol := range sortedKeys(files) {
		s := files[symbol].Series
		closes := s.Closes()
		returns := features.SimpleReturns(closes)
		first, _ := s.First()
		last, _ := s.Last()

		st := models.SummaryStats{
			Symbol:               symbol,
			StartDate:            first.Bucket.Format(util.DateTimeLayout),
			EndDate:              last.Bucket.Format(util.DateTimeLayout),
			Observations:         len(s),
			AvgPrice:             analytics.Mean(analytics.Clean(closes)),
			AvgVolume:            analytics.Mean(analytics.Clean(s.Column(models.ColVolume))),
			VolatilityAnnualized: features.AnnualizedVolatility(returns, periods),
			MaxDrawdown:          features.MaxDrawdownPct(closes),
			SharpeRatio:          features.SharpeRatio(returns, v.riskFreeRate, periods),
			NullValues:           nullCount(s),
		}
		if std, ok := analytics.StdDev(analytics.Clean(closes)); ok {
			st.PriceStd = std
		} else {
			st.PriceStd = math.NaN()
		}
		if tr, ok := features.TotalReturnPct(closes); ok {
			st.TotalReturn = tr
		} else {
			st.TotalReturn = math.NaN()
		}
		out = append(out, st)
	}
	return out
}

func (v *Validator) save(r *models.ValidationReport, stats []models.SummaryStats, tf drepo.Timeframe, stamp string) (string, string, error) {
	root := v.store.Root()
	reportPath := filepath.Join(root, fmt.Sprintf("validation_report_%s_%s.json", tf, stamp))
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("encode report: %w", err)
	}
	if err := util.WriteFileAtomic(reportPath, b); err != nil {
		return "", "", err
	}

	summaryPath := filepath.Join(root, fmt.Sprintf("summary_stats_%s_%s.csv", tf, stamp))
	csvBytes, err := encodeSummaryCSV(stats)
	if err != nil {
		return reportPath, "", err
	}
	return reportPath, summaryPath, util.WriteFileAtomic(summaryPath, csvBytes)
}

var summaryHeader = []string{
	"symbol", "start_date", "end_date", "observations", "avg_price", "price_std", "avg_volume",
	"total_return", "volatility_annualized", "max_drawdown", "sharpe_ratio", "null_values",
}

func encodeSummaryCSV(stats []models.SummaryStats) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(summaryHeader); err != nil {
		return nil, err
	}
	num := func(f float64) string {
		if math.IsNaN(f) {
			return ""
		}
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	for _, s := range stats {
		rec := []string{
			s.Symbol, s.StartDate, s.EndDate, strconv.Itoa(s.Observations),
			num(s.AvgPrice), num(s.PriceStd), num(s.AvgVolume), num(s.TotalReturn),
			num(s.VolatilityAnnualized), num(s.MaxDrawdown), num(s.SharpeRatio), strconv.Itoa(s.NullValues),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func nullCount(s models.Series) int {
	n := 0
	for _, col := range models.PriceColumns {
		n += analytics.CountNaN(s.Column(col))
	}
	return n
}

// duplicateBuckets counts rows whose bucket already appeared earlier.
func duplicateBuckets(s models.Series) int {
	seen := make(map[int64]struct{}, len(s))
	n := 0
	for _, c := range s {
		k := c.Bucket.UnixNano()
		if _, ok := seen[k]; ok {
			n++
			continue
		}
		seen[k] = struct{}{}
	}
	return n
}

func ohlcIssues(s models.Series) []string {
	var hiOpen, hiClose, loOpen, loClose bool
	for _, c := range s {
		hiOpen = hiOpen || c.High < c.Open
		hiClose = hiClose || c.High < c.Close
		loOpen = loOpen || c.Low > c.Open
		loClose = loClose || c.Low > c.Close
	}
	var out []string
	if hiOpen {
		out = append(out, "High < Open")
	}
	if hiClose {
		out = append(out, "High < Close")
	}
	if loOpen {
		out = append(out, "Low > Open")
	}
	if loClose {
		out = append(out, "Low > Close")
	}
	return out
}

func anyNegativeVolume(s models.Series) bool {
	for _, c := range s {
		if c.Volume < 0 {
			return true
		}
	}
	return false
}

func monotonic(s models.Series) bool {
	for i := 1; i < len(s); i++ {
		if s[i].Bucket.Before(s[i-1].Bucket) {
			return false
		}
	}
	return true
}

func irregularIntervals(s models.Series, step time.Duration) int {
	n := 0
	for i := 1; i < len(s); i++ {
		if s[i].Bucket.Sub(s[i-1].Bucket) != step {
			n++
		}
	}
	return n
}
