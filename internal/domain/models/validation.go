package models

// SymbolValidation is the per-symbol section of a validation report.
type SymbolValidation struct {
	Rows           int    `json:"rows"`
	StartDate      string `json:"start_date"`
	EndDate        string `json:"end_date"`
	NullCount      int    `json:"null_count"`
	DuplicateDates int    `json:"duplicate_dates"`
	SchemaValid    bool   `json:"schema_valid"`
	OHLCValid      bool   `json:"ohlc_valid"`
	VolumeValid    bool   `json:"volume_valid"`
}

type ValidationReport struct {
	Timestamp    string                      `json:"timestamp"`
	Timeframe    string                      `json:"timeframe"`
	TotalSymbols int                         `json:"total_symbols"`
	SchemaIssues []string                    `json:"schema_issues"`
	DataIssues   []string                    `json:"data_issues"`
	DateIssues   []string                    `json:"date_issues"`
	Symbols      map[string]SymbolValidation `json:"symbols"`
}

// IssueCount sums all issue lists.
func (r *ValidationReport) IssueCount() int {
	return len(r.SchemaIssues) + len(r.DataIssues) + len(r.DateIssues)
}

// SummaryStats is one row of summary_stats_<tf>_<ts>.csv. Percentages are in percent.
type SummaryStats struct {
	Symbol               string  `json:"symbol"`
	StartDate            string  `json:"start_date"`
	EndDate              string  `json:"end_date"`
	Observations         int     `json:"observations"`
	AvgPrice             float64 `json:"avg_price"`
	PriceStd             float64 `json:"price_std"`
	AvgVolume            float64 `json:"avg_volume"`
	TotalReturn          float64 `json:"total_return"`
	VolatilityAnnualized float64 `json:"volatility_annualized"`
	MaxDrawdown          float64 `json:"max_drawdown"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	NullValues           int     `json:"null_values"`
}
