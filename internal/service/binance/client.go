package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"QuantData/internal/domain/models"
	drepo "QuantData/internal/domain/repository"
	"QuantData/internal/service/ratelimit"
	xhttp "QuantData/pkg/http"
	applogger "QuantData/pkg/logger"
	"QuantData/pkg/metrics"
)

const (
	klinesPath       = "/api/v3/klines"
	exchangeInfoPath = "/api/v3/exchangeInfo"
	limiterKey       = "binance"
)

// Client reads spot candles and markets from the Binance REST API.
type Client struct {
	baseURL string
	http    *xhttp.Client
	limiter *ratelimit.Limiter
	metrics drepo.Metrics
	logger  *applogger.Logger
}

// Option configures Client.
type Option func(*Client)

func WithMetrics(m drepo.Metrics) Option {
	return func(c *Client) {
		if m != nil {
			c.metrics = m
		}
	}
}

func WithLogger(l *applogger.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates a REST client. Every request first waits on limiter.
func New(baseURL string, httpClient *xhttp.Client, limiter *ratelimit.Limiter, opts ...Option) *Client {
	c := &Client{
		baseURL: baseURL,
		http:    httpClient,
		limiter: limiter,
		metrics: metrics.Nop{},
		logger:  applogger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = xhttp.NewClient()
	}
	if c.limiter == nil {
		c.limiter = ratelimit.NewMinGap(0)
	}
	return c
}

func (c *Client) Name() string { return "binance" }

// FetchOHLCV implements repository.OHLCVSource.
func (c *Client) FetchOHLCV(ctx context.Context, symbol string, tf drepo.Timeframe, since time.Time, limit int) (models.Series, error) {
	pair := models.NormalizeSymbol(symbol)
	query := map[string][]string{
		"symbol":   {models.ExchangeSymbol(pair)},
		"interval": {string(tf)},
	}
	if limit > 0 {
		query["limit"] = []string{strconv.Itoa(limit)}
	}
	if !since.IsZero() {
		query["startTime"] = []string{strconv.FormatInt(since.UnixMilli(), 10)}
	}

	var rows [][]json.RawMessage
	if err := c.get(ctx, klinesPath, query, &rows); err != nil {
		return nil, fmt.Errorf("klines %s %s: %w", pair, tf, err)
	}

	out := make(models.Series, 0, len(rows))
	for i, row := range rows {
		candle, err := parseKline(row)
		if err != nil {
			return nil, fmt.Errorf("klines %s row %d: %w", pair, i, err)
		}
		candle.Symbol = pair
		out = append(out, candle)
	}
	return out, nil
}

type exchangeInfo struct {
	Symbols []struct {
		Symbol     string `json:"symbol"`
		Status     string `json:"status"`
		BaseAsset  string `json:"baseAsset"`
		QuoteAsset string `json:"quoteAsset"`
	} `json:"symbols"`
}

// Markets lists BASE/QUOTE pairs currently trading.
func (c *Client) Markets(ctx context.Context) ([]string, error) {
	var info exchangeInfo
	if err := c.get(ctx, exchangeInfoPath, nil, &info); err != nil {
		return nil, fmt.Errorf("exchange info: %w", err)
	}
	out := make([]string, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.Status != "TRADING" {
			continue
		}
		out = append(out, s.BaseAsset+"/"+s.QuoteAsset)
	}
	sort.Strings(out)
	return out, nil
}

func (c *Client) get(ctx context.Context, path string, query map[string][]string, dest interface{}) error {
	if err := c.limiter.Wait(ctx, limiterKey); err != nil {
		return err
	}
	start := time.Now()
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         c.baseURL + path,
		QueryParams: query,
		Headers:     map[string]string{"Accept": "application/json"},
	}, dest)
	c.metrics.RecordLatency("binance"+path, time.Since(start).Seconds())

	code := 200
	var se *xhttp.StatusError
	switch {
	case errors.As(err, &se):
		code = se.StatusCode
	case err != nil:
		code = 0
	}
	c.metrics.RecordExchangeRequest(metrics.StatusLabel(code))
	if err != nil {
		c.logger.Warn("binance request failed", applogger.String("path", path), applogger.Error(err))
	}
	return err
}

// parseKline decodes [openTime, "open", "high", "low", "close", "volume", closeTime, ...].
func parseKline(row []json.RawMessage) (models.Candle, error) {
	if len(row) < 6 {
		return models.Candle{}, fmt.Errorf("expected at least 6 fields, got %d", len(row))
	}
	var openTime int64
	if err := json.Unmarshal(row[0], &openTime); err != nil {
		return models.Candle{}, fmt.Errorf("open time: %w", err)
	}
	vals := make([]float64, 5)
	for i := range vals {
		v, err := decimalField(row[i+1])
		if err != nil {
			return models.Candle{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		vals[i] = v
	}
	return models.Candle{
		Bucket: time.UnixMilli(openTime).UTC(),
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

// decimalField accepts both quoted ("123.4") and bare numbers.
func decimalField(raw json.RawMessage) (float64, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseFloat(s, 64)
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, err
	}
	return f, nil
}

var _ drepo.OHLCVSource = (*Client)(nil)
