package repository

import (
	"context"
	"math"
	"testing"
	"time"

	"QuantData/internal/domain/models"
	drepo "QuantData/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func hourly(n int) models.Series {
	out := make(models.Series, n)
	for i := range out {
		out[i] = models.Candle{
			Bucket: time.Date(2024, 1, 1, i, 0, 0, 0, time.UTC),
			Symbol: "BTC/USDT",
			Open:   float64(i), High: float64(i) + 1, Low: float64(i), Close: float64(i) + 0.5, Volume: 1,
		}
	}
	return out
}

func TestCSVStoreGetCandles(t *testing.T) {
	store := NewCSVStore(t.TempDir())
	require.NoError(t, store.Write("BTC", drepo.TF1h, hourly(10)))
	ctx := context.Background()

	latest, err := store.GetLatestNCandles(ctx, "btc", drepo.TF1h, 3)
	require.NoError(t, err)
	require.Len(t, latest, 3)
	assert.Equal(t, 7, latest[0].Bucket.Hour())
	assert.Equal(t, "BTC/USDT", latest[0].Symbol)

	from := time.Date(2024, 1, 1, 2, 0, 0, 0, time.UTC)
	head, err := store.GetCandles(ctx, "BTC/USDT", drepo.TF1h, from, time.Time{}, 2)
	require.NoError(t, err)
	require.Len(t, head, 2)
	assert.Equal(t, 2, head[0].Bucket.Hour())

	_, err = store.GetCandles(ctx, "ETH", drepo.TF1h, time.Time{}, time.Time{}, 10)
	assert.ErrorIs(t, err, drepo.ErrNoData)
}

func TestClickHouseInsertStatement(t *testing.T) {
	s := NewClickHouseStorage(nil, "quantdata", "")
	c := hourly(2)
	c[1].Volume = math.NaN()
	batch := []*models.Candle{&c[0], nil, {Symbol: ""}, &c[1]}

	q, args := s.insertStatement(drepo.TF1h, batch)
	assert.Contains(t, q, "INSERT INTO quantdata.candles (symbol, tf, ts, open, high, low, close, volume, source) VALUES")
	assert.Len(t, args, 18)
	assert.Equal(t, "1h", args[1])
	assert.Equal(t, "binance", args[8])
	assert.Equal(t, 0.0, args[16])

	q, args = s.insertStatement(drepo.TF1h, []*models.Candle{nil})
	assert.Empty(t, q)
	assert.Nil(t, args)
}

func TestCandleMessagesKeyedBySymbol(t *testing.T) {
	c := hourly(2)
	msgs := candleMessages(drepo.TF1h, []*models.Candle{&c[0], nil, &c[1]})
	require.Len(t, msgs, 2)
	assert.Equal(t, []byte("BTC/USDT"), msgs[0].Key)
	ev, ok := msgs[1].Value.(models.CandleEvent)
	require.True(t, ok)
	assert.Equal(t, "1h", ev.Timeframe)
	assert.Equal(t, c[1].Bucket.UnixMilli(), ev.T)
}
