package usecase

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"QuantData/internal/domain/models"
	drepo "QuantData/internal/domain/repository"
	"QuantData/internal/services/features"
	"QuantData/pkg/cache"
	applogger "QuantData/pkg/logger"
	"QuantData/pkg/metrics"
	"QuantData/pkg/util"

	"golang.org/x/sync/errgroup"
)

// DefaultBases are tried, in order, when no symbols are given.
var DefaultBases = []string{"BTC", "ETH", "BNB", "XRP", "ADA", "SOL", "DOT", "AVAX", "MATIC", "LINK"}

// CandleSink receives candles that were fetched or streamed.
type CandleSink interface {
	ProcessBatch(ctx context.Context, tf drepo.Timeframe, candles []*models.Candle) error
}

type FetcherConfig struct {
	PageLimit  int
	Workers    int
	Quotes     []string
	MarketsTTL time.Duration
}

// Fetcher pulls historical candles from an exchange and saves them to the canonical store.
type Fetcher struct {
	source    drepo.OHLCVSource
	store     drepo.CandleStore
	manifests drepo.ManifestStore
	cache     cache.Service
	sink      CandleSink
	metrics   drepo.Metrics
	log       *applogger.Logger
	cfg       FetcherConfig
	now       func() time.Time
}

type FetcherOption func(*Fetcher)

func WithFetcherCache(c cache.Service) FetcherOption { return func(f *Fetcher) { f.cache = c } }

// WithSink forwards every saved series to the configured backend.
func WithSink(s CandleSink) FetcherOption { return func(f *Fetcher) { f.sink = s } }

func WithFetcherMetrics(m drepo.Metrics) FetcherOption {
	return func(f *Fetcher) {
		if m != nil {
			f.metrics = m
		}
	}
}

func WithFetcherLogger(l *applogger.Logger) FetcherOption {
	return func(f *Fetcher) {
		if l != nil {
			f.log = l
		}
	}
}

func WithFetcherClock(now func() time.Time) FetcherOption { return func(f *Fetcher) { f.now = now } }

func NewFetcher(source drepo.OHLCVSource, store drepo.CandleStore, manifests drepo.ManifestStore, cfg FetcherConfig, opts ...FetcherOption) *Fetcher {
	if cfg.PageLimit <= 0 {
		cfg.PageLimit = 1000
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if len(cfg.Quotes) == 0 {
		cfg.Quotes = []string{"USDT", "USDC", "USD"}
	}
	if cfg.MarketsTTL <= 0 {
		cfg.MarketsTTL = time.Hour
	}
	f := &Fetcher{
		source:    source,
		store:     store,
		manifests: manifests,
		metrics:   metrics.Nop{},
		log:       applogger.Nop(),
		cfg:       cfg,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// MajorPairs picks, for each default base, the first quote the exchange lists.
func (f *Fetcher) MajorPairs(ctx context.Context) ([]string, error) {
	markets, err := f.markets(ctx)
	if err != nil {
		return nil, err
	}
	listed := make(map[string]struct{}, len(markets))
	for _, m := range markets {
		listed[m] = struct{}{}
	}

	var out []string
	for _, base := range DefaultBases {
		for _, q := range f.cfg.Quotes {
			pair := base + "/" + q
			if _, ok := listed[pair]; ok {
				out = append(out, pair)
				break
			}
		}
	}
	return out, nil
}

func (f *Fetcher) markets(ctx context.Context) ([]string, error) {
	key := cache.MarketsKey(f.source.Name())
	var markets []string
	if f.cache != nil {
		if err := f.cache.Get(ctx, key, &markets); err == nil && len(markets) > 0 {
			return markets, nil
		}
	}
	markets, err := f.source.Markets(ctx)
	if err != nil {
		return nil, fmt.Errorf("load markets: %w", err)
	}
	if f.cache != nil {
		if err := f.cache.Set(ctx, key, markets, f.cfg.MarketsTTL); err != nil {
			f.log.Warn("cache markets", applogger.Error(err))
		}
	}
	return markets, nil
}

// FetchRange pages forward from since until end. A failing page ends the
// walk; the pages gathered so far are returned together with the error.
func (f *Fetcher) FetchRange(ctx context.Context, symbol string, tf drepo.Timeframe, since, end time.Time) (models.Series, error) {
	var all models.Series
	var pageErr error
	for {
		if err := ctx.Err(); err != nil {
			pageErr = err
			break
		}
		page, err := f.source.FetchOHLCV(ctx, symbol, tf, since, f.cfg.PageLimit)
		if err != nil {
			f.log.Error("fetch page failed",
				applogger.String("symbol", symbol),
				applogger.String("since", since.UTC().Format(util.DateTimeLayout)),
				applogger.Error(err))
			pageErr = err
			break
		}
		if len(page) == 0 {
			break
		}
		last := page[len(page)-1].Bucket
		if !end.IsZero() && !last.Before(end) {
			all = append(all, page.Until(end)...)
			break
		}
		all = append(all, page...)
		if len(page) < f.cfg.PageLimit {
			break
		}
		since = last.Add(time.Millisecond)
	}

	all = all.WithSymbol(symbol).Dedup()
	f.metrics.RecordCandlesFetched(symbol, tf, len(all))
	return all, pageErr
}

// FetchHistorical fetches daysBack days up to end for every symbol. A zero end
// means the end of yesterday in UTC. Symbols that fail keep their partial data.
func (f *Fetcher) FetchHistorical(ctx context.Context, symbols []string, tf drepo.Timeframe, daysBack int, end time.Time) (map[string]models.Series, error) {
	now := f.now().UTC()
	if end.IsZero() {
		end = util.EndOfYesterday(now)
	}
	since := now.AddDate(0, 0, -daysBack)

	var mu sync.Mutex
	out := make(map[string]models.Series, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Workers)
	for _, symbol := range symbols {
		symbol := models.NormalizeSymbol(symbol)
		g.Go(func() error {
			series, err := f.FetchRange(gctx, symbol, tf, since, end)
			if err != nil && errors.Is(err, context.Canceled) {
				return err
			}
			if len(series) == 0 {
				f.log.Warn("no candles fetched", applogger.String("symbol", symbol))
				return nil
			}
			mu.Lock()
			out[symbol] = series
			mu.Unlock()
			f.log.Info("fetched candles",
				applogger.String("symbol", symbol),
				applogger.String("timeframe", tf.String()),
				applogger.Int("rows", len(series)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return out, err
	}
	return out, nil
}

// FetchLatest fetches one page of the most recent candles per symbol.
func (f *Fetcher) FetchLatest(ctx context.Context, symbols []string, tf drepo.Timeframe, limit int) (map[string]models.Series, error) {
	if limit <= 0 || limit > f.cfg.PageLimit {
		limit = f.cfg.PageLimit
	}
	out := make(map[string]models.Series, len(symbols))
	for _, symbol := range symbols {
		symbol = models.NormalizeSymbol(symbol)
		page, err := f.source.FetchOHLCV(ctx, symbol, tf, time.Time{}, limit)
		if err != nil {
			f.log.Error("fetch latest failed", applogger.String("symbol", symbol), applogger.Error(err))
			continue
		}
		if len(page) > 0 {
			out[symbol] = page.WithSymbol(symbol).Dedup()
			f.metrics.RecordCandlesFetched(symbol, tf, len(page))
		}
	}
	return out, nil
}

// Save appends only rows newer than each file's last bucket, rewrites the
// per-symbol manifests and records the run in a fetch manifest. A symbol that
// fails to save is logged and joined into the returned error; the rest are still saved.
func (f *Fetcher) Save(ctx context.Context, data map[string]models.Series, tf drepo.Timeframe) (*models.FetchManifest, error) {
	manifest := &models.FetchManifest{
		Exchange:       f.source.Name(),
		Timeframe:      tf.String(),
		FetchTimestamp: f.now().UTC().Format(util.StampLayout),
		Symbols:        make(map[string]models.FetchEntry, len(data)),
	}

	symbols := make([]string, 0, len(data))
	for s := range data {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	var errs []error
	for _, symbol := range symbols {
		series := data[symbol]
		if len(series) == 0 {
			continue
		}
		entry, err := f.saveSymbol(symbol, tf, series)
		if err != nil {
			f.log.Error("save failed", applogger.String("symbol", symbol), applogger.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", symbol, err))
			continue
		}
		f.forget(ctx, cache.ManifestKey(models.BaseOf(symbol), tf.String()))
		manifest.Symbols[symbol] = *entry
		manifest.TotalSymbols++
		manifest.TotalRows += entry.Rows

		if f.sink != nil {
			if err := f.sink.ProcessBatch(ctx, tf, pointers(series)); err != nil {
				f.log.Warn("forward to backend failed", applogger.String("symbol", symbol), applogger.Error(err))
			}
		}
	}

	if manifest.TotalSymbols > 0 {
		f.forget(ctx, cache.OnePagerKey)
	}

	path, err := f.manifests.WriteFetch(manifest)
	if err != nil {
		errs = append(errs, fmt.Errorf("write fetch manifest: %w", err))
		return manifest, errors.Join(errs...)
	}
	f.log.Info("saved fetch",
		applogger.String("manifest", path),
		applogger.Int("symbols", manifest.TotalSymbols),
		applogger.Int("rows", manifest.TotalRows),
		applogger.Int("failed", len(errs)))
	return manifest, errors.Join(errs...)
}

// forget drops cached views of data Save just rewrote.
func (f *Fetcher) forget(ctx context.Context, key string) {
	if f.cache == nil {
		return
	}
	if err := f.cache.Delete(ctx, key); err != nil {
		f.log.Warn("cache invalidate", applogger.String("key", key), applogger.Error(err))
	}
}

func (f *Fetcher) saveSymbol(symbol string, tf drepo.Timeframe, series models.Series) (*models.FetchEntry, error) {
	base := models.BaseOf(symbol)
	final := series.Dedup()
	action := fmt.Sprintf("wrote %d rows", len(final))

	existing, err := f.store.Read(base, tf)
	switch {
	case err == nil && len(existing.Series) > 0:
		last := existing.Series[len(existing.Series)-1].Bucket
		fresh := final.After(last)
		if len(fresh) == 0 {
			final = existing.Series
			action = "no new rows"
			break
		}
		final = existing.Series.Merge(fresh)
		action = fmt.Sprintf("appended %d rows", len(fresh))
		if err := f.store.Write(base, tf, final); err != nil {
			return nil, err
		}
	case err == nil || errors.Is(err, drepo.ErrNoData):
		if err := f.store.Write(base, tf, final); err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	path := f.store.Path(base, tf)
	sum, err := f.store.Hash(path, drepo.HashMD5)
	if err != nil {
		return nil, err
	}
	if err := f.manifests.WriteSymbol(base, tf, features.BuildManifest(symbol, tf.String(), final)); err != nil {
		return nil, fmt.Errorf("write manifest %s: %w", symbol, err)
	}

	first, _ := final.First()
	lastC, _ := final.Last()
	f.log.Info(action, applogger.String("symbol", symbol), applogger.String("file", path), applogger.Int("rows", len(final)))
	return &models.FetchEntry{
		Filename:  filepath.Base(path),
		Rows:      len(final),
		StartDate: first.Bucket.UTC().Format(util.DateTimeLayout),
		EndDate:   lastC.Bucket.UTC().Format(util.DateTimeLayout),
		Hash:      sum,
		Subfolder: base,
	}, nil
}

func pointers(s models.Series) []*models.Candle {
	out := make([]*models.Candle, len(s))
	for i := range s {
		out[i] = &s[i]
	}
	return out
}
