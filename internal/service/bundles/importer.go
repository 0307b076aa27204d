package bundles

import (
	"archive/zip"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"QuantData/internal/domain/models"
	drepo "QuantData/internal/domain/repository"
	"QuantData/internal/services/features"
	applogger "QuantData/pkg/logger"
	"QuantData/pkg/util"
)

var monthInName = regexp.MustCompile(`(\d{4}-\d{2})(?:-\d{2})?`)

type ImportRequest struct {
	BundleDir string   `json:"bundle_dir"`
	Timeframe string   `json:"timeframe"`
	Symbols   []string `json:"symbols,omitempty"`
	DryRun    bool     `json:"dry_run"`
	// Force replaces existing month partitions instead of merging into them.
	Force bool `json:"force"`
}

// MonthResult describes one written (or planned) month partition.
type MonthResult struct {
	Symbol string
	Base   string
	Month  string
	Rows   int
	Path   string
	Start  string
	End    string
	SHA256 string
	Source string
}

func (r MonthResult) String() string {
	return fmt.Sprintf("%s %s: wrote %d rows -> %s (start=%s end=%s)",
		r.Symbol, r.Month, r.Rows, filepath.Base(r.Path), r.Start, r.End)
}

// Importer turns downloaded kline bundles into month partitions with manifests.
type Importer struct {
	store     Store
	manifests Manifests
	log       *applogger.Logger
	now       func() time.Time
}

func NewImporter(store Store, manifests Manifests, l *applogger.Logger) *Importer {
	if l == nil {
		l = applogger.Nop()
	}
	return &Importer{store: store, manifests: manifests, log: l, now: time.Now}
}

// Import processes every symbol of req. A symbol without bundle files is logged and skipped.
func (im *Importer) Import(ctx context.Context, req ImportRequest) ([]MonthResult, error) {
	tf, err := drepo.ParseTimeframe(req.Timeframe)
	if err != nil {
		return nil, err
	}
	symbols := util.UpperUnique(req.Symbols)
	if len(symbols) == 0 {
		if symbols, err = InferSymbols(req.BundleDir, tf); err != nil {
			return nil, err
		}
	}

	var (
		out  []MonthResult
		errs []error
	)
	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		res, err := im.importSymbol(ctx, req, sym, tf)
		out = append(out, res...)
		if err != nil {
			im.log.Error("failed to import symbol", applogger.String("symbol", sym), applogger.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", sym, err))
		}
	}
	for _, r := range out {
		im.log.Info(r.String())
	}
	return out, errors.Join(errs...)
}

func (im *Importer) importSymbol(ctx context.Context, req ImportRequest, sym string, tf drepo.Timeframe) ([]MonthResult, error) {
	base := models.BaseFromPair(sym, models.DefaultQuote)
	files, err := FindBundleFiles(req.BundleDir, tf, sym)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		im.log.Warn("no bundle files found", applogger.String("symbol", sym), applogger.String("dir", req.BundleDir))
		return nil, nil
	}

	months := make(map[string][]string)
	for _, f := range files {
		mon := monthFromName(filepath.Base(f))
		if mon == "" {
			im.log.Warn("skipping unknown filename pattern", applogger.String("file", f))
			continue
		}
		months[mon] = append(months[mon], f)
	}

	var (
		results []MonthResult
		errs    []error
	)
	for _, mon := range sortedMonths(months) {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		series, source, err := im.readMonth(mon, months[mon])
		if err != nil {
			im.log.Error("failed to import month",
				applogger.String("symbol", sym),
				applogger.String("month", mon),
				applogger.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", mon, err))
			continue
		}
		if len(series) == 0 {
			continue
		}
		r, err := im.writeMonth(series, sym, base, tf, mon, source, req)
		if err != nil {
			im.log.Error("failed to write month",
				applogger.String("symbol", sym),
				applogger.String("month", mon),
				applogger.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", mon, err))
			continue
		}
		results = append(results, r)
	}

	if !req.DryRun && len(results) > 0 {
		if err := im.writeYears(base, tf, results); err != nil {
			errs = append(errs, err)
		}
	}
	return results, errors.Join(errs...)
}

// readMonth prefers a monthly bundle over the daily files of the same month.
func (im *Importer) readMonth(mon string, files []string) (models.Series, string, error) {
	for _, f := range files {
		if strings.HasSuffix(stem(f), mon) {
			s, err := ReadBundle(f)
			return s, f, err
		}
	}

	sort.Strings(files)
	var all models.Series
	for _, f := range files {
		s, err := ReadBundle(f)
		if err != nil {
			im.log.Warn("failed to read bundle", applogger.String("file", f), applogger.Error(err))
			continue
		}
		all = append(all, s...)
	}
	return all.Dedup(), files[0], nil
}

func (im *Importer) writeMonth(series models.Series, sym, base string, tf drepo.Timeframe, mon, source string, req ImportRequest) (MonthResult, error) {
	month, err := time.ParseInLocation(util.MonthLayout, mon, time.UTC)
	if err != nil {
		return MonthResult{}, err
	}
	path := im.store.PartitionPath(base, tf, month)

	combined := series.WithSymbol(pair(base))
	if !req.DryRun && !req.Force {
		existing, err := im.store.ReadFile(path)
		switch {
		case err == nil:
			combined = existing.Series.WithSymbol(pair(base)).Merge(combined)
		case !errors.Is(err, drepo.ErrNoData):
			return MonthResult{}, err
		}
	}
	combined = combined.Dedup()

	r := MonthResult{Symbol: sym, Base: base, Month: mon, Rows: len(combined), Path: path, Source: source}
	if first, ok := combined.First(); ok {
		r.Start = first.Bucket.Format(util.DateTimeLayout)
	}
	if last, ok := combined.Last(); ok {
		r.End = last.Bucket.Format(util.DateTimeLayout)
	}
	if req.DryRun {
		return r, nil
	}

	if err := im.store.WriteFile(path, combined); err != nil {
		return r, err
	}
	if r.SHA256, err = im.store.Hash(path, drepo.HashSHA256); err != nil {
		return r, err
	}

	m := features.BuildManifest(pair(base), tf.String(), combined)
	m.SHA256 = r.SHA256
	m.Updated = im.now().UTC().Format(time.RFC3339)
	m.BundleSource = source
	if err := im.manifests.WriteMonth(base, tf, month, m); err != nil {
		return r, err
	}
	return r, nil
}

// writeYears folds month results into their year manifests, keeping months imported earlier.
func (im *Importer) writeYears(base string, tf drepo.Timeframe, results []MonthResult) error {
	byYear := make(map[int][]MonthResult)
	for _, r := range results {
		y, _ := strconv.Atoi(r.Month[:4])
		byYear[y] = append(byYear[y], r)
	}
	for year, rs := range byYear {
		ym, err := im.manifests.ReadYear(base, tf, year)
		if err != nil {
			if !errors.Is(err, drepo.ErrNoData) {
				return err
			}
			ym = &models.YearManifest{}
		}
		ym.Symbol = pair(base)
		ym.Timeframe = tf.String()
		ym.Year = year
		if ym.Months == nil {
			ym.Months = make(map[string]models.MonthEntry)
		}
		for _, r := range rs {
			ym.Months[r.Month] = models.MonthEntry{Rows: r.Rows, Start: r.Start, End: r.End, SHA256: r.SHA256}
		}
		ym.Rows = 0
		for _, e := range ym.Months {
			ym.Rows += e.Rows
		}
		ym.Updated = im.now().UTC().Format(time.RFC3339)
		if err := im.manifests.WriteYear(base, tf, ym); err != nil {
			return err
		}
	}
	return nil
}

// InferSymbols lists the symbol prefixes of files in <dir>/<tf>/.
func InferSymbols(dir string, tf drepo.Timeframe) ([]string, error) {
	tfDir := filepath.Join(dir, tf.String())
	entries, err := os.ReadDir(tfDir)
	if err != nil {
		return nil, fmt.Errorf("bundle timeframe dir not found: %w", err)
	}
	var names []string
	for _, e := range entries {
		if sym, _, ok := strings.Cut(e.Name(), "-"); ok {
			names = append(names, sym)
		}
	}
	return util.UpperUnique(names), nil
}

// FindBundleFiles walks dir for *<SYM>-<tf>-*.csv and .zip files, sorted by path.
func FindBundleFiles(dir string, tf drepo.Timeframe, sym string) ([]string, error) {
	sym = strings.ReplaceAll(sym, "/", "")
	patterns := []string{
		fmt.Sprintf("*%s-%s-*.csv", sym, tf),
		fmt.Sprintf("*%s-%s-*.zip", sym, tf),
	}
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		for _, p := range patterns {
			if ok, _ := filepath.Match(p, d.Name()); ok {
				files = append(files, path)
				break
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(files)
	return files, nil
}

// ReadBundle reads a headerless kline CSV, or every CSV inside a zip.
func ReadBundle(path string) (models.Series, error) {
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		rows, err := readRows(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		return toSeries(rows), nil
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	var rows []klineRow
	found := false
	for _, zf := range zr.File {
		if !strings.HasSuffix(strings.ToLower(zf.Name), ".csv") {
			continue
		}
		found = true
		rc, err := zf.Open()
		if err != nil {
			return nil, err
		}
		rs, err := readRows(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%s/%s: %w", path, zf.Name, err)
		}
		rows = append(rows, rs...)
	}
	if !found {
		return nil, fmt.Errorf("no CSV found inside %s", path)
	}
	return toSeries(rows), nil
}

type klineRow struct {
	openTime int64
	values   [5]float64
}

func readRows(r io.Reader) ([]klineRow, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	var rows []klineRow
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(rec) < 6 {
			return nil, fmt.Errorf("unexpected CSV format: %d columns", len(rec))
		}
		ot, ok := parseOpenTime(rec[0])
		if !ok {
			continue
		}
		row := klineRow{openTime: ot}
		for i := range row.values {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[i+1]), 64)
			if err != nil {
				v = math.NaN()
			}
			row.values[i] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseOpenTime(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		return v, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int64(f), true
}

// toSeries picks one epoch unit for the whole file from the largest open time.
func toSeries(rows []klineRow) models.Series {
	var maxAbs int64
	for _, r := range rows {
		v := r.openTime
		if v < 0 {
			v = -v
		}
		if v > maxAbs {
			maxAbs = v
		}
	}
	unit := util.EpochUnit(maxAbs)

	out := make(models.Series, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Candle{
			Bucket: util.EpochToTime(r.openTime, unit),
			Open:   r.values[0],
			High:   r.values[1],
			Low:    r.values[2],
			Close:  r.values[3],
			Volume: r.values[4],
		})
	}
	return out
}

func monthFromName(name string) string {
	m := monthInName.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return m[1]
}

func stem(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func sortedMonths(m map[string][]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
