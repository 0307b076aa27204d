package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	drepo "QuantData/internal/domain/repository"
	"QuantData/internal/service/ratelimit"
	xhttp "QuantData/pkg/http"
	"QuantData/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetchedMetrics struct {
	metrics.Nop
	fetched  int
	requests int
}

func (m *fetchedMetrics) RecordCandlesFetched(_ string, _ drepo.Timeframe, n int) { m.fetched += n }
func (m *fetchedMetrics) RecordExchangeRequest(string)                            { m.requests++ }

func TestFetchOHLCV(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, klinesPath, r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "BTCUSDT", q.Get("symbol"))
		assert.Equal(t, "1h", q.Get("interval"))
		assert.Equal(t, "2", q.Get("limit"))
		assert.Equal(t, "1704067200000", q.Get("startTime"))

		_, _ = w.Write([]byte(`[
			[1704067200000,"42000.1","42100.0","41900.5","42050.0","12.5",1704070799999,"0",10,"0","0","0"],
			[1704070800000,"42050.0","42200.0","42000.0","42150.0","8",1704074399999,"0",7,"0","0","0"]
		]`))
	}))
	defer srv.Close()

	m := &fetchedMetrics{}
	c := New(srv.URL, xhttp.NewClient(), ratelimit.NewMinGap(0), WithMetrics(m))
	since := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	got, err := c.FetchOHLCV(context.Background(), "btc", "1h", since, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// candle counts are recorded by the fetcher, once per range
	assert.Zero(t, m.fetched)
	assert.Equal(t, 1, m.requests)

	assert.Equal(t, "BTC/USDT", got[0].Symbol)
	assert.True(t, got[0].Bucket.Equal(since))
	assert.Equal(t, 42000.1, got[0].Open)
	assert.Equal(t, 41900.5, got[0].Low)
	assert.Equal(t, 12.5, got[0].Volume)
	assert.Equal(t, 42150.0, got[1].Close)
}

func TestFetchOHLCVSurfacesClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"code":-1121,"msg":"Invalid symbol."}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(srv.URL, xhttp.NewClient(xhttp.WithRetry(3, time.Millisecond)), nil)
	_, err := c.FetchOHLCV(context.Background(), "NOPE/USDT", "1d", time.Time{}, 10)
	require.Error(t, err)
	assert.True(t, xhttp.IsStatus(err, http.StatusBadRequest))
}

func TestMarketsKeepsTradingPairs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, exchangeInfoPath, r.URL.Path)
		_, _ = w.Write([]byte(`{"symbols":[
			{"symbol":"ETHUSDT","status":"TRADING","baseAsset":"ETH","quoteAsset":"USDT"},
			{"symbol":"LUNAUSDT","status":"BREAK","baseAsset":"LUNA","quoteAsset":"USDT"},
			{"symbol":"BTCUSDC","status":"TRADING","baseAsset":"BTC","quoteAsset":"USDC"}
		]}`))
	}))
	defer srv.Close()

	got, err := New(srv.URL, nil, nil).Markets(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC/USDC", "ETH/USDT"}, got)
}

func TestParseKlineRejectsShortRows(t *testing.T) {
	_, err := parseKline(nil)
	assert.Error(t, err)
}
