package repository

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"QuantData/internal/domain/models"
	drepo "QuantData/internal/domain/repository"
	"QuantData/pkg/util"
)

// CombinedDir holds cross-symbol datasets and is never treated as a symbol.
const CombinedDir = "combined"

// CSVHeader is the column layout of every candle file written here.
var CSVHeader = []string{"datetime", models.ColOpen, models.ColHigh, models.ColLow, models.ColClose, models.ColVolume, models.ColSymbol}

// CSVStore keeps one canonical CSV per symbol and timeframe under root:
//
//	<root>/<BASE>/crypto_<BASE>_USDT_<tf>.csv
//	<root>/<BASE>/<tf>/<YYYY>/<MM>/crypto_<BASE>_USDT_<tf>.csv
type CSVStore struct {
	root string
}

func NewCSVStore(root string) *CSVStore {
	return &CSVStore{root: root}
}

func (s *CSVStore) Root() string { return s.root }

func (s *CSVStore) Hash(path, algo string) (string, error) { return HashFile(path, algo) }

// FileName is the canonical file name for a base asset and timeframe.
func FileName(base string, tf drepo.Timeframe) string {
	return fmt.Sprintf("crypto_%s_%s_%s.csv", strings.ToUpper(base), models.DefaultQuote, tf)
}

func (s *CSVStore) Dir(base string) string {
	return filepath.Join(s.root, strings.ToUpper(base))
}

func (s *CSVStore) Path(base string, tf drepo.Timeframe) string {
	return filepath.Join(s.Dir(base), FileName(base, tf))
}

// PartitionDir is the directory of the month partition containing month.
func (s *CSVStore) PartitionDir(base string, tf drepo.Timeframe, month time.Time) string {
	return filepath.Join(s.Dir(base), string(tf), month.Format("2006"), month.Format("01"))
}

func (s *CSVStore) PartitionPath(base string, tf drepo.Timeframe, month time.Time) string {
	return filepath.Join(s.PartitionDir(base, tf, month), FileName(base, tf))
}

func (s *CSVStore) Exists(base string, tf drepo.Timeframe) bool {
	_, err := os.Stat(s.Path(base, tf))
	return err == nil
}

func (s *CSVStore) Read(base string, tf drepo.Timeframe) (*drepo.CandleFile, error) {
	return s.ReadFile(s.Path(base, tf))
}

func (s *CSVStore) Write(base string, tf drepo.Timeframe, series models.Series) error {
	return s.WriteFile(s.Path(base, tf), series)
}

// Bases lists symbol directories under root, sorted. Missing root yields none.
func (s *CSVStore) Bases() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", s.root, err)
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() || name == CombinedDir || strings.HasPrefix(name, ".") {
			continue
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// Timeframes lists the timeframes that have a canonical file for base, shortest first.
func (s *CSVStore) Timeframes(base string) ([]drepo.Timeframe, error) {
	entries, err := os.ReadDir(s.Dir(base))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list %s: %w", s.Dir(base), err)
	}
	prefix := fmt.Sprintf("crypto_%s_%s_", strings.ToUpper(base), models.DefaultQuote)
	var out []drepo.Timeframe
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".csv") {
			continue
		}
		tf := drepo.Timeframe(strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".csv"))
		if drepo.IsValidTimeframe(tf) {
			out = append(out, tf)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Duration() < out[j].Duration() })
	return out, nil
}

// ReadFile parses a candle CSV. Rows keep file order. Missing numeric columns and
// empty cells become NaN. A missing file yields drepo.ErrNoData.
func (s *CSVStore) ReadFile(path string) (*drepo.CandleFile, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, drepo.ErrNoData)
		}
		return nil, err
	}
	defer f.Close()

	file, err := DecodeCSV(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	file.Path = path
	return file, nil
}

// DecodeCSV reads candles with a header row that contains a datetime column.
func DecodeCSV(r io.Reader) (*drepo.CandleFile, error) {
	cr := csv.NewReader(r)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty file: %w", drepo.ErrNoData)
		}
		return nil, fmt.Errorf("read header: %w", err)
	}

	idx := make(map[string]int, len(header))
	columns := make([]string, 0, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		idx[name] = i
		columns = append(columns, name)
	}
	tsCol, ok := idx["datetime"]
	if !ok {
		if tsCol, ok = idx["timestamp"]; !ok {
			return nil, fmt.Errorf("missing datetime column")
		}
	}

	out := &drepo.CandleFile{Columns: columns}
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		ts, ok := util.ParseTime(rec[tsCol])
		if !ok {
			return nil, fmt.Errorf("line %d: bad datetime %q", line, rec[tsCol])
		}
		c := models.Candle{Bucket: ts}
		for _, col := range models.PriceColumns {
			v := cell(rec, idx, col)
			switch col {
			case models.ColOpen:
				c.Open = v
			case models.ColHigh:
				c.High = v
			case models.ColLow:
				c.Low = v
			case models.ColClose:
				c.Close = v
			case models.ColVolume:
				c.Volume = v
			}
		}
		if i, ok := idx[models.ColSymbol]; ok && i < len(rec) {
			c.Symbol = rec[i]
		}
		out.Series = append(out.Series, c)
	}
	return out, nil
}

// cell reads a numeric column. Missing or unparseable values are NaN and count as nulls.
func cell(rec []string, idx map[string]int, col string) float64 {
	i, ok := idx[col]
	if !ok || i >= len(rec) {
		return math.NaN()
	}
	raw := strings.TrimSpace(rec[i])
	switch strings.ToLower(raw) {
	case "", "nan", "null", "none":
		return math.NaN()
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// EncodeCSV renders a series with CSVHeader. NaN becomes an empty cell.
func EncodeCSV(series models.Series) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(CSVHeader); err != nil {
		return nil, err
	}
	rec := make([]string, len(CSVHeader))
	for _, c := range series {
		rec[0] = c.Bucket.UTC().Format(util.DateTimeLayout)
		rec[1] = formatFloat(c.Open)
		rec[2] = formatFloat(c.High)
		rec[3] = formatFloat(c.Low)
		rec[4] = formatFloat(c.Close)
		rec[5] = formatFloat(c.Volume)
		rec[6] = c.Symbol
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// WriteFile replaces path with the encoded series.
func (s *CSVStore) WriteFile(path string, series models.Series) error {
	data, err := EncodeCSV(series)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return writeFileAtomic(path, data)
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

var _ drepo.CandleStore = (*CSVStore)(nil)
