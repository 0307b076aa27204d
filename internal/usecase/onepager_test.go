package usecase

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"QuantData/internal/services/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOnePagerFormatters(t *testing.T) {
	n := 1234567
	assert.Equal(t, "1,234,567", formatCount(&n))
	assert.Equal(t, "—", formatCount(nil))

	assert.Equal(t, "1,234.5679", formatPrice(floatPtr(1234.56789)))
	assert.Equal(t, "0.5", formatPrice(floatPtr(0.5)))
	assert.Equal(t, "42", formatPrice(floatPtr(42)))
	assert.Equal(t, "—", formatPrice(nil))

	assert.Equal(t, "3.20B", formatVolume(floatPtr(3.2e9)))
	assert.Equal(t, "1.50M", formatVolume(floatPtr(1.5e6)))
	assert.Equal(t, "2.50K", formatVolume(floatPtr(2500)))
	assert.Equal(t, "12.00", formatVolume(floatPtr(12)))
}

func TestOnePagerGather(t *testing.T) {
	store, manifests := newStores(t)

	btc := hourly(t0, 24).WithSymbol("BTC/USDT")
	require.NoError(t, store.Write("BTC", "1h", btc))
	m := features.BuildManifest("BTC/USDT", "1h", btc)
	m.LastClose = nil
	require.NoError(t, manifests.WriteSymbol("BTC", "1h", m))

	require.NoError(t, store.Write("ETH", "1d", hourly(t0, 3)))
	require.NoError(t, os.MkdirAll(filepath.Join(store.Root(), "SOL"), 0o755))

	p := NewOnePager(store, manifests, nil)
	summaries, err := p.Gather(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 3)

	b := summaries[0].Timeframes["1h"]
	require.NotNil(t, b)
	assert.Equal(t, 24, *b.Rows)
	assert.Equal(t, 99.0, *b.Min)
	assert.Equal(t, 124.0, *b.Max)
	assert.InDelta(t, 21.5, *b.MeanVol, 1e-9)
	// filled from the csv
	assert.Equal(t, 123.0, *b.Last)
	assert.Nil(t, summaries[0].Timeframes["1d"])

	e := summaries[1].Timeframes["1d"]
	require.NotNil(t, e)
	assert.Equal(t, 3, *e.Rows)
	assert.Equal(t, 102.0, *e.Last)
	assert.InDelta(t, 11.0, *e.MeanVol, 1e-9)

	assert.Nil(t, summaries[2].Timeframes["1h"])
	assert.Nil(t, summaries[2].Timeframes["1d"])
}

func TestOnePagerGenerate(t *testing.T) {
	store, manifests := newStores(t)
	require.NoError(t, store.Write("BTC", "1h", hourly(t0, 24)))

	p := NewOnePager(store, manifests, nil)
	p.now = clock(time.Date(2024, 2, 1, 8, 30, 0, 0, time.UTC))

	out := filepath.Join(t.TempDir(), "reports", "onepager.md")
	path, err := p.Generate(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, out, path)

	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	doc := string(raw)
	assert.True(t, strings.HasPrefix(doc, "# Data one-pager"))
	assert.Contains(t, doc, "Generated: 2024-02-01 08:30 UTC")
	assert.Contains(t, doc, "- Symbols scanned: 1")
	assert.Contains(t, doc, "| BTC/USDT | 24 | 2024-01-01 00:00:00 | 2024-01-01 23:00:00 | 123 | 99 | 124 | 21.50 |")
	assert.Contains(t, doc, "| BTC/USDT | — | — | — | — | — | — | — |")
	assert.Contains(t, doc, "## 1d summary")
}
