package usecase

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	drepo "QuantData/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizerOverview(t *testing.T) {
	store, _ := newStores(t)
	require.NoError(t, store.Write("BTC", "1h", hourly(t0, 24).WithSymbol("BTC/USDT")))
	require.NoError(t, store.Write("ETH", "1h", hourly(t0, 10).WithSymbol("ETH/USDT")))

	s := NewSummarizer(store, "binance", nil)
	s.now = clock(t0.Add(48 * time.Hour))

	overviews, err := s.Overview(context.Background(), []drepo.Timeframe{"1h", "1d"})
	require.NoError(t, err)
	require.Len(t, overviews, 1)

	o := overviews[0]
	assert.Equal(t, "1h", o.Timeframe)
	assert.Equal(t, 2, o.Manifest.TotalSymbols)
	assert.Equal(t, 34, o.Manifest.TotalRows)
	assert.Equal(t, "20240103_000000", o.Manifest.FetchTimestamp)
	btc := o.Manifest.Symbols["BTC/USDT"]
	assert.Equal(t, "BTC", btc.Subfolder)
	assert.Len(t, btc.Hash, 32)

	require.NotNil(t, o.Sample)
	assert.Equal(t, "BTC/USDT", o.Sample.Symbol)
	assert.Equal(t, 24, o.Sample.Rows)
	assert.Equal(t, 100.0, o.Sample.CloseMin)
	assert.Equal(t, 123.0, o.Sample.CloseMax)
	assert.InDelta(t, 21.5, o.Sample.AvgVolume, 1e-9)
	assert.InDelta(t, 23.0, o.Sample.TotalReturn, 1e-9)
	assert.Empty(t, o.Sample.Issues)

	var buf bytes.Buffer
	require.NoError(t, RenderOverview(&buf, overviews))
	out := buf.String()
	assert.Contains(t, out, "1H Data (binance)")
	assert.Contains(t, out, "Total rows: 34")
	assert.Contains(t, out, "Price range: $100.00 - $123.00")
	assert.Contains(t, out, "Data integrity: PASS")
}

func TestRenderOverviewEmpty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderOverview(&buf, nil))
	assert.Contains(t, buf.String(), "No data found.")
}

func TestIntegrityIssues(t *testing.T) {
	s := hourly(t0, 3)
	s[1].High = s[1].Low - 1
	s[2].Volume = -1
	s = append(s, s[0])
	assert.Equal(t, []string{"Duplicate timestamps", "High < Low", "High < Open/Close", "Negative volume"}, integrityIssues(s))
}

func TestSummarizerCombine(t *testing.T) {
	store, _ := newStores(t)
	require.NoError(t, store.Write("BTC", "1h", hourly(t0, 24)))
	require.NoError(t, store.Write("ETH", "1h", hourly(t0, 10)))

	s := NewSummarizer(store, "binance", nil)
	res, err := s.Combine(context.Background(), "1h")
	require.NoError(t, err)
	assert.Equal(t, 34, res.Rows)
	assert.Equal(t, filepath.Join(store.Root(), "combined", "crypto_combined_1h.csv"), res.Path)

	f, err := store.ReadFile(res.Path)
	require.NoError(t, err)
	require.Len(t, f.Series, 34)
	assert.Equal(t, "BTC/USDT", f.Series[0].Symbol)
	assert.Equal(t, "ETH/USDT", f.Series[33].Symbol)

	// the combined directory is not a symbol
	bases, err := store.Bases()
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC", "ETH"}, bases)

	_, err = s.Combine(context.Background(), "1d")
	assert.ErrorIs(t, err, drepo.ErrNoData)
}
