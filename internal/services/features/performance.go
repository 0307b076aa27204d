package features

import (
	"math"

	"QuantData/internal/services/analytics"
)

// SimpleReturns computes r_t = C_t / C_{t-1} - 1. Pairs with a missing or zero
// previous close are skipped.
func SimpleReturns(closes []float64) []float64 {
	if len(closes) < 2 {
		return nil
	}
	out := make([]float64, 0, len(closes)-1)
	prev := math.NaN()
	for _, cur := range closes {
		if math.IsNaN(cur) {
			continue
		}
		if !math.IsNaN(prev) && prev != 0 {
			out = append(out, cur/prev-1)
		}
		prev = cur
	}
	return out
}

// TotalReturnPct is (last/first - 1) * 100 over the non-missing closes.
func TotalReturnPct(closes []float64) (float64, bool) {
	clean := analytics.Clean(closes)
	if len(clean) < 2 || clean[0] == 0 {
		return 0, false
	}
	return (clean[len(clean)-1]/clean[0] - 1) * 100, true
}

// AnnualizedVolatility scales the sample std of returns by sqrt(periodsPerYear), in percent.
func AnnualizedVolatility(returns []float64, periodsPerYear float64) float64 {
	std, ok := analytics.StdDev(returns)
	if !ok {
		return 0
	}
	return std * math.Sqrt(periodsPerYear) * 100
}

// MaxDrawdownPct is the deepest fall from a running peak, in percent (<= 0).
// The first price seeds the peak.
func MaxDrawdownPct(prices []float64) float64 {
	peak := math.NaN()
	worst := 0.0
	for _, p := range prices {
		if math.IsNaN(p) {
			continue
		}
		if math.IsNaN(peak) || p > peak {
			peak = p
		}
		if peak > 0 {
			worst = math.Min(worst, (p-peak)/peak*100)
		}
	}
	return worst
}

// SharpeRatio annualizes excess mean return over its volatility. riskFree is the yearly rate.
// A flat or too short return series yields 0.
func SharpeRatio(returns []float64, riskFree, periodsPerYear float64) float64 {
	if periodsPerYear <= 0 {
		return 0
	}
	std, ok := analytics.StdDev(returns)
	if !ok || std == 0 {
		return 0
	}
	excess := analytics.Mean(returns) - riskFree/periodsPerYear
	return excess / std * math.Sqrt(periodsPerYear)
}
