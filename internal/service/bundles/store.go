package bundles

import (
	"time"

	"QuantData/internal/domain/models"
	drepo "QuantData/internal/domain/repository"
)

// Store is the canonical candle store plus the month partition layout.
type Store interface {
	drepo.CandleStore
	PartitionPath(base string, tf drepo.Timeframe, month time.Time) string
}

// Manifests persists month and year manifests of partitions.
type Manifests interface {
	WriteMonth(base string, tf drepo.Timeframe, month time.Time, m *models.SymbolManifest) error
	ReadYear(base string, tf drepo.Timeframe, year int) (*models.YearManifest, error)
	WriteYear(base string, tf drepo.Timeframe, m *models.YearManifest) error
}

func pair(base string) string { return base + "/" + models.DefaultQuote }
