package models

// Requests for the HTTP API. Defined in domain for consistency and reuse.

type CandlesRequest struct {
	Symbol    string `query:"symbol" json:"symbol" validate:"required"`
	Timeframe string `query:"tf" json:"tf" default:"1h"`
	From      string `query:"from" json:"from"`
	To        string `query:"to" json:"to"`
	Limit     int    `query:"limit" json:"limit" default:"1000" validate:"gte=1,lte=50000"`
}

type UpdateJobRequest struct {
	Symbols    []string `json:"symbols" validate:"required,min=1,dive,required"`
	Timeframe  string   `json:"timeframe" default:"1d"`
	Overlap    int      `json:"overlap" default:"1" validate:"gte=0,lte=1000"`
	IncludeNow bool     `json:"include_now"`
	DaysBack   int      `json:"days_back" validate:"gte=0"`
}

type OnePagerRequest struct {
	Refresh bool `query:"refresh" json:"refresh"`
}
