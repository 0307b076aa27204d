package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"QuantData/internal/domain/models"
	drepo "QuantData/internal/domain/repository"
	"QuantData/internal/services/analytics"
	applogger "QuantData/pkg/logger"
	"QuantData/pkg/util"

	"github.com/dustin/go-humanize"
)

const missingCell = "—"

// OnePagerTimeframes are rendered in this order.
var OnePagerTimeframes = []drepo.Timeframe{"1h", "1d"}

// TimeframeStats is one table row of the one-pager. Nil fields render as missing.
type TimeframeStats struct {
	Rows    *int
	Start   string
	End     string
	Last    *float64
	Min     *float64
	Max     *float64
	MeanVol *float64
}

func (s *TimeframeStats) complete() bool {
	return s.Rows != nil && s.Start != "" && s.End != "" &&
		s.Last != nil && s.Min != nil && s.Max != nil && s.MeanVol != nil
}

type SymbolSummary struct {
	Base       string
	Symbol     string
	Timeframes map[drepo.Timeframe]*TimeframeStats
}

type OnePager struct {
	store     drepo.CandleStore
	manifests drepo.ManifestStore
	log       *applogger.Logger
	now       func() time.Time
}

func NewOnePager(store drepo.CandleStore, manifests drepo.ManifestStore, l *applogger.Logger) *OnePager {
	if l == nil {
		l = applogger.Nop()
	}
	return &OnePager{store: store, manifests: manifests, log: l, now: time.Now}
}

// Gather reads manifests for every symbol directory and fills gaps from the canonical CSV.
func (p *OnePager) Gather(ctx context.Context) ([]SymbolSummary, error) {
	bases, err := p.store.Bases()
	if err != nil {
		return nil, err
	}
	out := make([]SymbolSummary, 0, len(bases))
	for _, base := range bases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sum := SymbolSummary{
			Base:       base,
			Symbol:     base + "/" + models.DefaultQuote,
			Timeframes: make(map[drepo.Timeframe]*TimeframeStats, len(OnePagerTimeframes)),
		}
		for _, tf := range OnePagerTimeframes {
			sum.Timeframes[tf] = p.gatherTimeframe(base, tf)
		}
		out = append(out, sum)
	}
	return out, nil
}

func (p *OnePager) gatherTimeframe(base string, tf drepo.Timeframe) *TimeframeStats {
	m, err := p.manifests.ReadSymbol(base, tf)
	if err != nil && !errors.Is(err, drepo.ErrNoData) {
		p.log.Warn("unreadable manifest",
			applogger.String("base", base),
			applogger.String("timeframe", tf.String()),
			applogger.Error(err))
	}

	st := &TimeframeStats{}
	if m != nil {
		st = manifestStats(m)
		if st.complete() {
			return st
		}
	}

	csvStats := p.csvStats(base, tf)
	if csvStats == nil {
		if m == nil {
			return nil
		}
		return st
	}
	fillMissing(st, csvStats)
	return st
}

func manifestStats(m *models.SymbolManifest) *TimeframeStats {
	st := &TimeframeStats{
		Start:   m.StartDate,
		End:     m.EndDate,
		Last:    m.LastClose,
		Min:     m.Fields.Low.Min,
		Max:     m.Fields.High.Max,
		MeanVol: m.Insights.AvgVolume,
	}
	if m.Rows > 0 {
		rows := m.Rows
		st.Rows = &rows
	}
	return st
}

func (p *OnePager) csvStats(base string, tf drepo.Timeframe) *TimeframeStats {
	f, err := p.store.Read(base, tf)
	if err != nil {
		if !errors.Is(err, drepo.ErrNoData) {
			p.log.Warn("unreadable candle file", applogger.String("base", base), applogger.Error(err))
		}
		return nil
	}
	s := f.Series
	if len(s) == 0 {
		return nil
	}
	s.Sort()
	first, _ := s.First()
	last, _ := s.Last()
	rows := len(s)
	st := &TimeframeStats{
		Rows:  &rows,
		Start: first.Bucket.Format(util.DateTimeLayout),
		End:   last.Bucket.Format(util.DateTimeLayout),
	}
	if f.HasColumn(models.ColClose) && !math.IsNaN(last.Close) {
		st.Last = floatPtr(last.Close)
	}
	if f.HasColumn(models.ColLow) {
		if lo, _, ok := analytics.MinMax(s.Column(models.ColLow)); ok {
			st.Min = floatPtr(lo)
		}
	}
	if f.HasColumn(models.ColHigh) {
		if _, hi, ok := analytics.MinMax(s.Column(models.ColHigh)); ok {
			st.Max = floatPtr(hi)
		}
	}
	if f.HasColumn(models.ColVolume) {
		if vols := analytics.Clean(s.Column(models.ColVolume)); len(vols) > 0 {
			st.MeanVol = floatPtr(analytics.Mean(vols))
		}
	}
	return st
}

func fillMissing(dst, src *TimeframeStats) {
	if dst.Rows == nil {
		dst.Rows = src.Rows
	}
	if dst.Start == "" {
		dst.Start = src.Start
	}
	if dst.End == "" {
		dst.End = src.End
	}
	if dst.Last == nil {
		dst.Last = src.Last
	}
	if dst.Min == nil {
		dst.Min = src.Min
	}
	if dst.Max == nil {
		dst.Max = src.Max
	}
	if dst.MeanVol == nil {
		dst.MeanVol = src.MeanVol
	}
}

// Render produces the markdown document.
func (p *OnePager) Render(summaries []SymbolSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Data one-pager — crypto dataset 📊\n\nGenerated: %s\n\n", p.now().UTC().Format("2006-01-02 15:04 UTC"))
	fmt.Fprintf(&b, "- Symbols scanned: %d 🔎\n", len(summaries))
	fmt.Fprintf(&b, "- Data root: `%s`\n\n", p.store.Root())

	for _, tf := range OnePagerTimeframes {
		fmt.Fprintf(&b, "## %s summary ✨\n", tf)
		b.WriteString("| ticker | rows | start | end | last | min | max | mean_vol |\n")
		b.WriteString("|:---|---:|:---|:---|---:|---:|---:|---:|\n")
		for _, s := range summaries {
			st := s.Timeframes[tf]
			if st == nil {
				fmt.Fprintf(&b, "| %s | — | — | — | — | — | — | — |\n", s.Symbol)
				continue
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s | %s |\n",
				s.Symbol, formatCount(st.Rows), orMissing(st.Start), orMissing(st.End),
				formatPrice(st.Last), formatPrice(st.Min), formatPrice(st.Max), formatVolume(st.MeanVol))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n---\nNotes:\n")
	b.WriteString("- This report reads `manifest_<timeframe>.yaml` when present, otherwise falls back to the canonical CSV.\n")
	b.WriteString("- Run `summary --combine` to build the combined CSVs.\n")
	return b.String()
}

// Generate gathers, renders and writes the report to out, creating its directory.
func (p *OnePager) Generate(ctx context.Context, out string) (string, error) {
	summaries, err := p.Gather(ctx)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", filepath.Dir(out), err)
	}
	if err := util.WriteFileAtomic(out, []byte(p.Render(summaries))); err != nil {
		return "", err
	}
	p.log.Info("one-pager written", applogger.String("path", out), applogger.Int("symbols", len(summaries)))
	return out, nil
}

func orMissing(s string) string {
	if s == "" {
		return missingCell
	}
	return s
}

func formatCount(n *int) string {
	if n == nil {
		return missingCell
	}
	return humanize.Comma(int64(*n))
}

// formatPrice rounds to 4 decimals, strips trailing zeros and groups thousands.
func formatPrice(v *float64) string {
	if v == nil || math.IsNaN(*v) {
		return missingCell
	}
	r := analytics.Round(*v, 4)
	if math.Abs(r) >= 1000 {
		return humanize.Commaf(r)
	}
	s := strconv.FormatFloat(r, 'f', 4, 64)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

func formatVolume(v *float64) string {
	if v == nil || math.IsNaN(*v) {
		return missingCell
	}
	x := *v
	switch abs := math.Abs(x); {
	case abs >= 1e9:
		return fmt.Sprintf("%.2fB", x/1e9)
	case abs >= 1e6:
		return fmt.Sprintf("%.2fM", x/1e6)
	case abs >= 1e3:
		return fmt.Sprintf("%.2fK", x/1e3)
	}
	return fmt.Sprintf("%.2f", x)
}

func floatPtr(v float64) *float64 { return &v }
