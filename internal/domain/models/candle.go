package models

import (
	"math"
	"sort"
	"strings"
	"time"
)

// DefaultQuote is the quote currency of the canonical on-disk layout.
const DefaultQuote = "USDT"

// Candle is one OHLCV bar. Bucket is the bar open time in UTC.
// A NaN field means the value was missing in the source.
type Candle struct {
	Bucket time.Time `json:"t"`
	Symbol string    `json:"symbol"`
	Open   float64   `json:"o"`
	High   float64   `json:"h"`
	Low    float64   `json:"l"`
	Close  float64   `json:"c"`
	Volume float64   `json:"v"`
}

// OHLCV column names in file order.
const (
	ColOpen   = "open"
	ColHigh   = "high"
	ColLow    = "low"
	ColClose  = "close"
	ColVolume = "volume"
	ColSymbol = "symbol"
)

// PriceColumns lists the numeric columns of a candle.
var PriceColumns = []string{ColOpen, ColHigh, ColLow, ColClose, ColVolume}

// Value returns the named numeric column.
func (c Candle) Value(col string) float64 {
	switch col {
	case ColOpen:
		return c.Open
	case ColHigh:
		return c.High
	case ColLow:
		return c.Low
	case ColClose:
		return c.Close
	case ColVolume:
		return c.Volume
	}
	return math.NaN()
}

// Series is an ordered run of candles for a single symbol and timeframe.
type Series []Candle

// Sort orders candles by bucket, keeping the input order of equal buckets.
func (s Series) Sort() {
	sort.SliceStable(s, func(i, j int) bool { return s[i].Bucket.Before(s[j].Bucket) })
}

// Dedup keeps the last occurrence of every bucket and returns the result sorted.
func (s Series) Dedup() Series {
	if len(s) == 0 {
		return s
	}
	idx := make(map[int64]int, len(s))
	out := make(Series, 0, len(s))
	for _, c := range s {
		key := c.Bucket.UnixNano()
		if i, ok := idx[key]; ok {
			out[i] = c
			continue
		}
		idx[key] = len(out)
		out = append(out, c)
	}
	out.Sort()
	return out
}

// Merge appends other after s and deduplicates, so other wins on equal buckets.
func (s Series) Merge(other Series) Series {
	all := make(Series, 0, len(s)+len(other))
	all = append(all, s...)
	all = append(all, other...)
	return all.Dedup()
}

// After returns candles with bucket strictly after t.
func (s Series) After(t time.Time) Series {
	out := make(Series, 0, len(s))
	for _, c := range s {
		if c.Bucket.After(t) {
			out = append(out, c)
		}
	}
	return out
}

// Until returns candles with bucket at or before t.
func (s Series) Until(t time.Time) Series {
	out := make(Series, 0, len(s))
	for _, c := range s {
		if !c.Bucket.After(t) {
			out = append(out, c)
		}
	}
	return out
}

// Between returns candles with from <= bucket <= to. Zero bounds are open.
func (s Series) Between(from, to time.Time) Series {
	out := make(Series, 0, len(s))
	for _, c := range s {
		if !from.IsZero() && c.Bucket.Before(from) {
			continue
		}
		if !to.IsZero() && c.Bucket.After(to) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func (s Series) First() (Candle, bool) {
	if len(s) == 0 {
		return Candle{}, false
	}
	return s[0], true
}

func (s Series) Last() (Candle, bool) {
	if len(s) == 0 {
		return Candle{}, false
	}
	return s[len(s)-1], true
}

// Column extracts one numeric column.
func (s Series) Column(col string) []float64 {
	out := make([]float64, len(s))
	for i, c := range s {
		out[i] = c.Value(col)
	}
	return out
}

func (s Series) Closes() []float64 { return s.Column(ColClose) }

// WithSymbol returns a copy tagged with symbol.
func (s Series) WithSymbol(symbol string) Series {
	out := make(Series, len(s))
	for i, c := range s {
		c.Symbol = symbol
		out[i] = c
	}
	return out
}

// NormalizeSymbol turns "btc" into "BTC/USDT". Pairs that already carry a quote keep it.
func NormalizeSymbol(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return s
	}
	if strings.Contains(s, "/") {
		return s
	}
	return s + "/" + DefaultQuote
}

// BaseOf returns the base asset of a "BASE/QUOTE" pair.
func BaseOf(symbol string) string {
	base, _, _ := strings.Cut(strings.ToUpper(symbol), "/")
	return base
}

// ExchangeSymbol renders "BTC/USDT" as "BTCUSDT".
func ExchangeSymbol(symbol string) string {
	return strings.ReplaceAll(strings.ToUpper(symbol), "/", "")
}

// BaseFromPair strips quote from a concatenated pair, e.g. BTCUSDT -> BTC.
func BaseFromPair(pair, quote string) string {
	pair = strings.ToUpper(pair)
	quote = strings.ToUpper(quote)
	if quote != "" && strings.HasSuffix(pair, quote) && len(pair) > len(quote) {
		return strings.TrimSuffix(pair, quote)
	}
	return pair
}
