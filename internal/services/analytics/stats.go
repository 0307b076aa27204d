package analytics

import (
	"math"
	"sort"
)

// Stats summarises a numeric column. Pointer fields are nil when undefined.
type Stats struct {
	Count  int
	Nulls  int
	Min    *float64
	Max    *float64
	Mean   *float64
	Median *float64
	Std    *float64
}

// Describe computes min, max, mean, median and sample standard deviation, skipping NaN.
func Describe(values []float64) Stats {
	clean := Clean(values)
	st := Stats{Count: len(clean), Nulls: len(values) - len(clean)}
	if len(clean) == 0 {
		return st
	}

	sorted := append([]float64(nil), clean...)
	sort.Float64s(sorted)

	minV, maxV := sorted[0], sorted[len(sorted)-1]
	mean := Mean(clean)
	median := medianSorted(sorted)
	st.Min, st.Max, st.Mean, st.Median = &minV, &maxV, &mean, &median

	if std, ok := StdDev(clean); ok {
		st.Std = &std
	}
	return st
}

// Clean drops NaN and infinite values.
func Clean(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// CountNaN counts missing values.
func CountNaN(values []float64) int {
	n := 0
	for _, v := range values {
		if math.IsNaN(v) {
			n++
		}
	}
	return n
}

// Mean of values. Empty input yields NaN.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev is the sample standard deviation (n-1). It needs at least two values.
func StdDev(values []float64) (float64, bool) {
	n := len(values)
	if n < 2 {
		return 0, false
	}
	mean := Mean(values)
	ss := 0.0
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1)), true
}

// MinMax returns the extremes of the non-NaN values.
func MinMax(values []float64) (minV, maxV float64, ok bool) {
	clean := Clean(values)
	if len(clean) == 0 {
		return 0, 0, false
	}
	minV, maxV = clean[0], clean[0]
	for _, v := range clean[1:] {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
	}
	return minV, maxV, true
}

func medianSorted(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// Round rounds v to the given number of decimals.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
