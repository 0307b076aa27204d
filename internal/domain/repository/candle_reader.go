package repository

import (
	"context"
	"time"

	"QuantData/internal/domain/models"
)

// CandleReader provides read-only access to candles for the HTTP API.
type CandleReader interface {
	GetCandles(ctx context.Context, symbol string, tf Timeframe, from, to time.Time, limit int) (models.Series, error)
	GetLatestNCandles(ctx context.Context, symbol string, tf Timeframe, n int) (models.Series, error)
}
