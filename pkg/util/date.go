package util

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	// DateTimeLayout is the datetime format of every CSV this project writes.
	DateTimeLayout = "2006-01-02 15:04:05"
	DateLayout     = "2006-01-02"
	MonthLayout    = "2006-01"
	// StampLayout names report files, e.g. validation_report_1h_20240101_120000.json.
	StampLayout = "20060102_150405"
)

var textLayouts = []string{
	DateTimeLayout,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	DateLayout,
}

// ParseTime accepts the datetime layouts found in exported candle files plus epoch
// seconds, milliseconds or microseconds. Results are UTC.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range textLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil && ts > 0 {
		return EpochToTime(ts, EpochUnit(ts)), true
	}
	return time.Time{}, false
}

// ParseDate parses a YYYY-MM-DD flag value as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, strings.TrimSpace(s), time.UTC)
}

// Epoch units used by exchange dumps.
const (
	Seconds      = time.Second
	Milliseconds = time.Millisecond
	Microseconds = time.Microsecond
)

// EpochUnit guesses the unit of an epoch value from its magnitude.
func EpochUnit(v int64) time.Duration {
	a := math.Abs(float64(v))
	switch {
	case a > 1e14:
		return Microseconds
	case a > 1e11:
		return Milliseconds
	default:
		return Seconds
	}
}

// EpochToTime converts v in the given unit to UTC.
func EpochToTime(v int64, unit time.Duration) time.Time {
	switch unit {
	case Microseconds:
		return time.UnixMicro(v).UTC()
	case Milliseconds:
		return time.UnixMilli(v).UTC()
	default:
		return time.Unix(v, 0).UTC()
	}
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// EndOfYesterday is the last millisecond of the previous UTC day.
func EndOfYesterday(now time.Time) time.Time {
	return StartOfDay(now).Add(-time.Millisecond)
}

// MonthKey formats t as YYYY-MM.
func MonthKey(t time.Time) string {
	return t.UTC().Format(MonthLayout)
}

// Days lists each UTC day from start to end inclusive.
func Days(start, end time.Time) []time.Time {
	var out []time.Time
	for d, last := StartOfDay(start), StartOfDay(end); !d.After(last); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}

// Months lists the first day of each month from start to end inclusive.
func Months(start, end time.Time) []time.Time {
	var out []time.Time
	s, e := start.UTC(), end.UTC()
	cur := time.Date(s.Year(), s.Month(), 1, 0, 0, 0, 0, time.UTC)
	last := time.Date(e.Year(), e.Month(), 1, 0, 0, 0, 0, time.UTC)
	for ; !cur.After(last); cur = cur.AddDate(0, 1, 0) {
		out = append(out, cur)
	}
	return out
}

// AlignFromTo rounds a query range down to the bar boundary of d.
func AlignFromTo(from, to time.Time, d time.Duration) (time.Time, time.Time) {
	if d <= 0 {
		d = time.Minute
	}
	return from.Truncate(d), to.Truncate(d)
}
