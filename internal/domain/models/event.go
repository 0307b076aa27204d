package models

import (
	"errors"
	"time"
)

// CandleEvent is the wire form of a candle on the candles topic.
// T is the bar open time in epoch milliseconds.
type CandleEvent struct {
	Symbol    string  `json:"symbol"`
	Timeframe string  `json:"tf"`
	T         int64   `json:"t"`
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
	Source    string  `json:"source,omitempty"`
}

func NewCandleEvent(tf string, c *Candle) CandleEvent {
	return CandleEvent{
		Symbol:    c.Symbol,
		Timeframe: tf,
		T:         c.Bucket.UnixMilli(),
		Open:      c.Open,
		High:      c.High,
		Low:       c.Low,
		Close:     c.Close,
		Volume:    c.Volume,
	}
}

// Candle converts the event back. Producers that still send epoch seconds
// are accepted: any t below 1e11 is read as seconds.
func (e CandleEvent) Candle() (*Candle, error) {
	if e.Symbol == "" {
		return nil, errors.New("event has no symbol")
	}
	if e.T <= 0 {
		return nil, errors.New("event has no timestamp")
	}
	ts := time.UnixMilli(e.T)
	if e.T < 1e11 {
		ts = time.Unix(e.T, 0)
	}
	return &Candle{
		Bucket: ts.UTC(),
		Symbol: e.Symbol,
		Open:   e.Open,
		High:   e.High,
		Low:    e.Low,
		Close:  e.Close,
		Volume: e.Volume,
	}, nil
}
