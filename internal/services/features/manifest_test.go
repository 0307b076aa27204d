package features

import (
	"math"
	"testing"
	"time"

	"QuantData/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildManifest(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s := models.Series{
		{Bucket: t0, Open: 100, High: 110, Low: 95, Close: 105, Volume: 10},
		{Bucket: t0.Add(time.Hour), Open: 105, High: 120, Low: 100, Close: 115, Volume: 30},
		{Bucket: t0.Add(2 * time.Hour), Open: 115, High: 118, Low: 90, Close: math.NaN(), Volume: 20},
	}

	m := BuildManifest("BTC/USDT", "1h", s)

	assert.Equal(t, 3, m.Rows)
	assert.Equal(t, "2024-01-01 00:00:00", m.StartDate)
	assert.Equal(t, "2024-01-01 02:00:00", m.EndDate)
	assert.Equal(t, "Traded volume during the interval", m.Fields.Volume.Description)
	assert.Equal(t, 1, m.Fields.Close.Nulls)

	require.NotNil(t, m.Fields.Low.Min)
	assert.Equal(t, 90.0, *m.Fields.Low.Min)
	require.NotNil(t, m.Fields.High.Max)
	assert.Equal(t, 120.0, *m.Fields.High.Max)
	require.NotNil(t, m.Insights.AvgVolume)
	assert.Equal(t, 20.0, *m.Insights.AvgVolume)
	require.NotNil(t, m.Insights.PriceRange.MaxClose)
	assert.Equal(t, 115.0, *m.Insights.PriceRange.MaxClose)

	require.NotNil(t, m.LastClose)
	assert.Equal(t, 115.0, *m.LastClose)
	require.NotNil(t, m.TotalReturnPct)
	assert.InDelta(t, (115.0/105.0-1)*100, *m.TotalReturnPct, 1e-9)
}

func TestBuildManifestEmpty(t *testing.T) {
	m := BuildManifest("ETH/USDT", "1d", nil)
	assert.Equal(t, 0, m.Rows)
	assert.Empty(t, m.StartDate)
	assert.Nil(t, m.LastClose)
	assert.Nil(t, m.Fields.Close.Mean)
}
