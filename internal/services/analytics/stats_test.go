package analytics

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	st := Describe([]float64{4, math.NaN(), 1, 3, 2})

	assert.Equal(t, 4, st.Count)
	assert.Equal(t, 1, st.Nulls)
	require.NotNil(t, st.Min)
	assert.Equal(t, 1.0, *st.Min)
	assert.Equal(t, 4.0, *st.Max)
	assert.Equal(t, 2.5, *st.Mean)
	assert.Equal(t, 2.5, *st.Median)
	require.NotNil(t, st.Std)
	assert.InDelta(t, 1.2909944, *st.Std, 1e-6)
}

func TestDescribeDegenerate(t *testing.T) {
	empty := Describe([]float64{math.NaN()})
	assert.Nil(t, empty.Min)
	assert.Nil(t, empty.Mean)
	assert.Equal(t, 1, empty.Nulls)

	single := Describe([]float64{7})
	require.NotNil(t, single.Median)
	assert.Equal(t, 7.0, *single.Median)
	assert.Nil(t, single.Std)
}

func TestMinMaxAndRound(t *testing.T) {
	lo, hi, ok := MinMax([]float64{math.NaN(), 3, -1, 8})
	require.True(t, ok)
	assert.Equal(t, -1.0, lo)
	assert.Equal(t, 8.0, hi)

	_, _, ok = MinMax(nil)
	assert.False(t, ok)

	assert.Equal(t, 1.2346, Round(1.23456, 4))
}
