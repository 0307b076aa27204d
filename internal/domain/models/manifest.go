package models

// FieldStats describes one numeric column of a candle file.
type FieldStats struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Min         *float64 `yaml:"min" json:"min"`
	Max         *float64 `yaml:"max" json:"max"`
	Mean        *float64 `yaml:"mean" json:"mean"`
	Median      *float64 `yaml:"median" json:"median"`
	Std         *float64 `yaml:"std" json:"std"`
	Nulls       int      `yaml:"nulls" json:"nulls"`
}

// Fields keeps the OHLCV stats in file column order when marshalled.
type Fields struct {
	Open   FieldStats `yaml:"open" json:"open"`
	High   FieldStats `yaml:"high" json:"high"`
	Low    FieldStats `yaml:"low" json:"low"`
	Close  FieldStats `yaml:"close" json:"close"`
	Volume FieldStats `yaml:"volume" json:"volume"`
}

// Get returns the stats for a column name.
func (f *Fields) Get(col string) *FieldStats {
	switch col {
	case ColOpen:
		return &f.Open
	case ColHigh:
		return &f.High
	case ColLow:
		return &f.Low
	case ColClose:
		return &f.Close
	case ColVolume:
		return &f.Volume
	}
	return nil
}

type PriceRange struct {
	MinClose *float64 `yaml:"min_close" json:"min_close"`
	MaxClose *float64 `yaml:"max_close" json:"max_close"`
}

type Insights struct {
	PriceRange PriceRange `yaml:"price_range" json:"price_range"`
	AvgVolume  *float64   `yaml:"avg_volume" json:"avg_volume"`
}

// SymbolManifest is the provenance record written next to a candle file.
// Month partitions fill the optional SHA256, Updated and BundleSource fields.
type SymbolManifest struct {
	Symbol         string   `yaml:"symbol" json:"symbol"`
	Timeframe      string   `yaml:"timeframe" json:"timeframe"`
	Rows           int      `yaml:"rows" json:"rows"`
	StartDate      string   `yaml:"start_date,omitempty" json:"start_date,omitempty"`
	EndDate        string   `yaml:"end_date,omitempty" json:"end_date,omitempty"`
	SHA256         string   `yaml:"sha256,omitempty" json:"sha256,omitempty"`
	Updated        string   `yaml:"updated,omitempty" json:"updated,omitempty"`
	BundleSource   string   `yaml:"bundle_source,omitempty" json:"bundle_source,omitempty"`
	TotalReturnPct *float64 `yaml:"total_return_pct" json:"total_return_pct"`
	LastClose      *float64 `yaml:"last_close" json:"last_close"`
	Fields         Fields   `yaml:"fields" json:"fields"`
	Insights       Insights `yaml:"insights" json:"insights"`
}

// MonthEntry summarises one month partition inside a year manifest.
type MonthEntry struct {
	Rows   int    `yaml:"rows" json:"rows"`
	Start  string `yaml:"start" json:"start"`
	End    string `yaml:"end" json:"end"`
	SHA256 string `yaml:"sha256" json:"sha256"`
}

type YearManifest struct {
	Symbol    string                `yaml:"symbol" json:"symbol"`
	Timeframe string                `yaml:"timeframe" json:"timeframe"`
	Year      int                   `yaml:"year" json:"year"`
	Months    map[string]MonthEntry `yaml:"months" json:"months"`
	Rows      int                   `yaml:"rows" json:"rows"`
	Updated   string                `yaml:"updated" json:"updated"`
}

// FetchEntry is the per-symbol part of a FetchManifest.
type FetchEntry struct {
	Filename  string `yaml:"filename" json:"filename"`
	Rows      int    `yaml:"rows" json:"rows"`
	StartDate string `yaml:"start_date" json:"start_date"`
	EndDate   string `yaml:"end_date" json:"end_date"`
	Hash      string `yaml:"hash" json:"hash"`
	Subfolder string `yaml:"subfolder" json:"subfolder"`
}

// FetchManifest records what a fetch or scan run left on disk.
type FetchManifest struct {
	Exchange       string                `yaml:"exchange" json:"exchange"`
	Timeframe      string                `yaml:"timeframe" json:"timeframe"`
	FetchTimestamp string                `yaml:"fetch_timestamp" json:"fetch_timestamp"`
	Symbols        map[string]FetchEntry `yaml:"symbols" json:"symbols"`
	TotalSymbols   int                   `yaml:"total_symbols" json:"total_symbols"`
	TotalRows      int                   `yaml:"total_rows" json:"total_rows"`
}
