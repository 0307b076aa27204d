package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimpleReturns(t *testing.T) {
	got := SimpleReturns([]float64{100, 110, math.NaN(), 99})
	require.Len(t, got, 2)
	assert.InDelta(t, 0.10, got[0], 1e-12)
	assert.InDelta(t, -0.10, got[1], 1e-12)

	assert.Nil(t, SimpleReturns([]float64{1}))
}

func TestTotalReturnPct(t *testing.T) {
	v, ok := TotalReturnPct([]float64{100, 120, 150})
	require.True(t, ok)
	assert.InDelta(t, 50.0, v, 1e-12)

	_, ok = TotalReturnPct([]float64{100})
	assert.False(t, ok)
	_, ok = TotalReturnPct([]float64{0, 10})
	assert.False(t, ok)
}

func TestMaxDrawdownPct(t *testing.T) {
	assert.InDelta(t, -50.0, MaxDrawdownPct([]float64{100, 200, 100, 150}), 1e-12)
	assert.Equal(t, 0.0, MaxDrawdownPct([]float64{1, 2, 3}))
	assert.InDelta(t, -20.0, MaxDrawdownPct([]float64{100, 80, 90}), 1e-12)
}

func TestSharpeAndVolatility(t *testing.T) {
	flat := []float64{0.01, 0.01, 0.01}
	assert.Equal(t, 0.0, SharpeRatio(flat, 0.02, 365))
	assert.Equal(t, 0.0, SharpeRatio([]float64{0.01}, 0.02, 365))

	r := []float64{0.01, -0.02, 0.03, 0.0}
	// mean 0.005, sample std 0.0208167
	want := (0.005 - 0.02/365) / 0.020816659994661 * math.Sqrt(365)
	assert.InDelta(t, want, SharpeRatio(r, 0.02, 365), 1e-9)
	assert.InDelta(t, 0.020816659994661*math.Sqrt(365)*100, AnnualizedVolatility(r, 365), 1e-9)
}
