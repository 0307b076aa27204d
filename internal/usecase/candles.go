package usecase

import (
	"context"
	"fmt"
	"time"

	"QuantData/internal/domain/models"
	drepo "QuantData/internal/domain/repository"
)

const (
	DefaultCandleLimit = 1000
	MaxCandleLimit     = 50000
)

// CandlesUseCase serves candle ranges to the HTTP API.
type CandlesUseCase struct {
	store drepo.CandleReader
}

func NewCandlesUseCase(store drepo.CandleReader) *CandlesUseCase {
	return &CandlesUseCase{store: store}
}

type GetCandlesParams struct {
	Symbol    string
	From      time.Time
	To        time.Time
	Timeframe drepo.Timeframe
	Limit     int
}

type GetCandlesResult struct {
	Symbol    string          `json:"symbol"`
	Timeframe string          `json:"timeframe"`
	From      *time.Time      `json:"from,omitempty"`
	To        *time.Time      `json:"to,omitempty"`
	Count     int             `json:"count"`
	Candles   []models.Candle `json:"candles"`
}

// GetCandles returns candles of p.Symbol within [From, To]. Zero bounds are open.
func (uc *CandlesUseCase) GetCandles(ctx context.Context, p GetCandlesParams) (*GetCandlesResult, error) {
	if p.Symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if !p.From.IsZero() && !p.To.IsZero() && p.From.After(p.To) {
		return nil, fmt.Errorf("from must be <= to")
	}
	if p.Limit <= 0 {
		p.Limit = DefaultCandleLimit
	}
	if p.Limit > MaxCandleLimit {
		p.Limit = MaxCandleLimit
	}

	symbol := models.NormalizeSymbol(p.Symbol)
	candles, err := uc.store.GetCandles(ctx, symbol, p.Timeframe, p.From, p.To, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("get candles: %w", err)
	}
	if len(candles) > p.Limit {
		candles = candles[:p.Limit]
	}

	res := &GetCandlesResult{
		Symbol:    symbol,
		Timeframe: p.Timeframe.String(),
		Count:     len(candles),
		Candles:   candles,
	}
	if !p.From.IsZero() {
		res.From = &p.From
	}
	if !p.To.IsZero() {
		res.To = &p.To
	}
	return res, nil
}
