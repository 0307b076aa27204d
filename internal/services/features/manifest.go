package features

import (
	"math"

	"QuantData/internal/domain/models"
	"QuantData/internal/services/analytics"
	"QuantData/pkg/util"
)

var fieldDescriptions = map[string]string{
	models.ColOpen:   "Open price for the interval",
	models.ColHigh:   "Highest trade price during the interval",
	models.ColLow:    "Lowest trade price during the interval",
	models.ColClose:  "Close price for the interval",
	models.ColVolume: "Traded volume during the interval",
}

// BuildManifest derives the provenance record of a series: row count, date range,
// per-column statistics and a few headline numbers.
func BuildManifest(symbol, timeframe string, s models.Series) *models.SymbolManifest {
	m := &models.SymbolManifest{
		Symbol:    symbol,
		Timeframe: timeframe,
		Rows:      len(s),
	}
	if first, ok := s.First(); ok {
		m.StartDate = first.Bucket.UTC().Format(util.DateTimeLayout)
	}
	if last, ok := s.Last(); ok {
		m.EndDate = last.Bucket.UTC().Format(util.DateTimeLayout)
	}

	for _, col := range models.PriceColumns {
		st := analytics.Describe(s.Column(col))
		*m.Fields.Get(col) = models.FieldStats{
			Name:        col,
			Description: fieldDescriptions[col],
			Min:         st.Min,
			Max:         st.Max,
			Mean:        st.Mean,
			Median:      st.Median,
			Std:         st.Std,
			Nulls:       st.Nulls,
		}
	}

	closes := s.Closes()
	m.Insights.PriceRange.MinClose = m.Fields.Close.Min
	m.Insights.PriceRange.MaxClose = m.Fields.Close.Max
	m.Insights.AvgVolume = m.Fields.Volume.Mean

	if tr, ok := TotalReturnPct(closes); ok {
		m.TotalReturnPct = &tr
	}
	for i := len(closes) - 1; i >= 0; i-- {
		if !math.IsNaN(closes[i]) {
			v := closes[i]
			m.LastClose = &v
			break
		}
	}
	return m
}
