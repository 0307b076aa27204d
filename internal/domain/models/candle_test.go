package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bar(hour int, close float64) Candle {
	return Candle{
		Bucket: time.Date(2024, 1, 1, hour, 0, 0, 0, time.UTC),
		Symbol: "BTC/USDT",
		Open:   close, High: close, Low: close, Close: close, Volume: 1,
	}
}

func TestSeriesDedupKeepsLast(t *testing.T) {
	s := Series{bar(2, 20), bar(1, 10), bar(2, 21), bar(0, 5)}
	got := s.Dedup()

	require.Len(t, got, 3)
	assert.Equal(t, []float64{5, 10, 21}, got.Closes())
}

func TestSeriesMergePrefersIncoming(t *testing.T) {
	existing := Series{bar(0, 1), bar(1, 2), bar(2, 3)}
	incoming := Series{bar(2, 30), bar(3, 40)}

	merged := existing.Merge(incoming)
	assert.Equal(t, []float64{1, 2, 30, 40}, merged.Closes())
}

func TestSeriesWindows(t *testing.T) {
	s := Series{bar(0, 1), bar(1, 2), bar(2, 3), bar(3, 4)}
	cut := time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC)

	assert.Equal(t, []float64{3, 4}, s.After(cut).Closes())
	assert.Equal(t, []float64{1, 2}, s.Until(cut).Closes())
	assert.Equal(t, []float64{2, 3}, s.Between(cut, cut.Add(time.Hour)).Closes())

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, 4.0, last.Close)

	_, ok = Series{}.First()
	assert.False(t, ok)
}

func TestSymbolHelpers(t *testing.T) {
	assert.Equal(t, "BTC/USDT", NormalizeSymbol(" btc "))
	assert.Equal(t, "ETH/USDC", NormalizeSymbol("eth/usdc"))
	assert.Equal(t, "BTC", BaseOf("BTC/USDT"))
	assert.Equal(t, "BTCUSDT", ExchangeSymbol("BTC/USDT"))
	assert.Equal(t, "BTC", BaseFromPair("btcusdt", "USDT"))
	assert.Equal(t, "USDT", BaseFromPair("USDT", "USDT"))
}

func TestCandleEventRoundTrip(t *testing.T) {
	c := &Candle{Bucket: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), Symbol: "BTC/USDT", Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: 10}
	ev := NewCandleEvent("1m", c)
	assert.Equal(t, int64(1709294400000), ev.T)

	back, err := ev.Candle()
	require.NoError(t, err)
	assert.Equal(t, *c, *back)
}

func TestCandleEventAcceptsSeconds(t *testing.T) {
	got, err := CandleEvent{Symbol: "ETH/USDT", T: 1709294400}.Candle()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC), got.Bucket)

	_, err = CandleEvent{T: 1}.Candle()
	assert.Error(t, err)
	_, err = CandleEvent{Symbol: "X"}.Candle()
	assert.Error(t, err)
}
