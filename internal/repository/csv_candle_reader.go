package repository

import (
	"context"
	"time"

	"QuantData/internal/domain/models"
	drepo "QuantData/internal/domain/repository"
)

var _ drepo.CandleReader = (*CSVStore)(nil)

// GetCandles reads the canonical file of symbol ("BTC" or "BTC/USDT").
// With a from bound the earliest limit rows are returned, otherwise the latest.
func (s *CSVStore) GetCandles(_ context.Context, symbol string, tf drepo.Timeframe, from, to time.Time, limit int) (models.Series, error) {
	series, err := s.readSeries(symbol, tf)
	if err != nil {
		return nil, err
	}
	series = series.Between(from, to)
	if limit <= 0 || len(series) <= limit {
		return series, nil
	}
	if !from.IsZero() {
		return series[:limit], nil
	}
	return series[len(series)-limit:], nil
}

func (s *CSVStore) GetLatestNCandles(ctx context.Context, symbol string, tf drepo.Timeframe, n int) (models.Series, error) {
	return s.GetCandles(ctx, symbol, tf, time.Time{}, time.Time{}, n)
}

func (s *CSVStore) readSeries(symbol string, tf drepo.Timeframe) (models.Series, error) {
	pair := models.NormalizeSymbol(symbol)
	f, err := s.Read(models.BaseOf(pair), tf)
	if err != nil {
		return nil, err
	}
	return f.Series.Dedup().WithSymbol(pair), nil
}
