package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"QuantData/internal/domain/models"
	drepo "QuantData/internal/domain/repository"
	"QuantData/internal/repository"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// hourly builds n clean hourly bars from start with closes 100, 101, ...
func hourly(start time.Time, n int) models.Series {
	out := make(models.Series, 0, n)
	for i := 0; i < n; i++ {
		c := 100 + float64(i)
		out = append(out, models.Candle{
			Bucket: start.Add(time.Duration(i) * time.Hour),
			Open:   c - 0.5,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 10 + float64(i),
		})
	}
	return out
}

type fakeSource struct {
	mu          sync.Mutex
	series      models.Series
	markets     []string
	calls       int
	marketCalls int
	failAt      int
}

func (f *fakeSource) Name() string { return "binance" }

func (f *fakeSource) FetchOHLCV(_ context.Context, _ string, _ drepo.Timeframe, since time.Time, limit int) (models.Series, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.failAt == f.calls {
		return nil, errors.New("exchange unavailable")
	}
	var out models.Series
	for _, c := range f.series {
		if since.IsZero() || !c.Bucket.Before(since) {
			out = append(out, c)
		}
	}
	if since.IsZero() && len(out) > limit {
		return out[len(out)-limit:], nil
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeSource) Markets(context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marketCalls++
	return f.markets, nil
}

type recordingSink struct {
	mu      sync.Mutex
	batches int
	candles int
}

func (s *recordingSink) ProcessBatch(_ context.Context, _ drepo.Timeframe, candles []*models.Candle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches++
	s.candles += len(candles)
	return nil
}

func newStores(t *testing.T) (*repository.CSVStore, *repository.ManifestStore) {
	t.Helper()
	root := t.TempDir()
	return repository.NewCSVStore(root), repository.NewManifestStore(root)
}

func clock(t time.Time) func() time.Time { return func() time.Time { return t } }
