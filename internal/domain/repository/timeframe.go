package repository

import (
	"fmt"
	"strconv"
	"time"
)

// Timeframe is a candle resolution such as "1m", "4h" or "1d".
type Timeframe string

const (
	TF1m Timeframe = "1m"
	TF1h Timeframe = "1h"
	TF1d Timeframe = "1d"
)

const year = 365 * 24 * time.Hour

// ParseTimeframe accepts <n>m, <n>h, <n>d and <n>w with n >= 1.
func ParseTimeframe(s string) (Timeframe, error) {
	if _, err := parseDuration(s); err != nil {
		return "", err
	}
	return Timeframe(s), nil
}

func parseDuration(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("invalid timeframe %q", s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid timeframe %q", s)
	}
	var unit time.Duration
	switch s[len(s)-1] {
	case 'm':
		unit = time.Minute
	case 'h':
		unit = time.Hour
	case 'd':
		unit = 24 * time.Hour
	case 'w':
		unit = 7 * 24 * time.Hour
	default:
		return 0, fmt.Errorf("invalid timeframe unit in %q", s)
	}
	return time.Duration(n) * unit, nil
}

// Duration is the bar length. Invalid timeframes yield 0.
func (tf Timeframe) Duration() time.Duration {
	d, _ := parseDuration(string(tf))
	return d
}

// PeriodsPerYear is the number of bars in a 365-day year, used to annualize statistics.
func (tf Timeframe) PeriodsPerYear() float64 {
	d := tf.Duration()
	if d <= 0 {
		return 0
	}
	return float64(year) / float64(d)
}

func (tf Timeframe) String() string { return string(tf) }

// IsValidTimeframe returns true if tf parses.
func IsValidTimeframe(tf Timeframe) bool {
	_, err := parseDuration(string(tf))
	return err == nil
}

// DefaultTimeframe returns the default timeframe.
func DefaultTimeframe() Timeframe { return TF1h }

// NormalizeTimeframe converts raw string to a valid timeframe (or default).
func NormalizeTimeframe(s string) Timeframe {
	if s == "" {
		return DefaultTimeframe()
	}
	tf := Timeframe(s)
	if IsValidTimeframe(tf) {
		return tf
	}
	return DefaultTimeframe()
}
