package util

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimeLayouts(t *testing.T) {
	want := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	for _, s := range []string{
		"2024-10-10 10:10:10",
		"2024-10-10 10:10:10+00:00",
		"2024-10-10T10:10:10Z",
		"2024-10-10T10:10:10",
	} {
		t.Run(s, func(t *testing.T) {
			got, ok := ParseTime(s)
			require.True(t, ok)
			assert.True(t, got.Equal(want), "got %v", got)
		})
	}
}

func TestParseTimeEpochUnits(t *testing.T) {
	want := time.Date(2024, 10, 10, 10, 10, 10, 0, time.UTC)
	for _, v := range []int64{want.Unix(), want.UnixMilli(), want.UnixMicro()} {
		got, ok := ParseTime(strconv.FormatInt(v, 10))
		require.True(t, ok)
		assert.True(t, got.Equal(want), "value %d parsed as %v", v, got)
	}
}

func TestParseTimeRejectsGarbage(t *testing.T) {
	_, ok := ParseTime("")
	assert.False(t, ok)
	_, ok = ParseTime("not a time")
	assert.False(t, ok)
}

func TestEpochUnit(t *testing.T) {
	assert.Equal(t, Seconds, EpochUnit(1_700_000_000))
	assert.Equal(t, Milliseconds, EpochUnit(1_700_000_000_000))
	assert.Equal(t, Microseconds, EpochUnit(1_700_000_000_000_000))
}

func TestEndOfYesterday(t *testing.T) {
	now := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)
	got := EndOfYesterday(now)
	assert.Equal(t, time.Date(2024, 3, 4, 23, 59, 59, int(999*time.Millisecond), time.UTC), got)
}

func TestDaysAndMonths(t *testing.T) {
	start := time.Date(2024, 1, 30, 8, 0, 0, 0, time.UTC)
	end := time.Date(2024, 2, 2, 1, 0, 0, 0, time.UTC)

	days := Days(start, end)
	require.Len(t, days, 4)
	assert.Equal(t, "2024-01-30", days[0].Format(DateLayout))
	assert.Equal(t, "2024-02-02", days[3].Format(DateLayout))

	months := Months(start, time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC))
	require.Len(t, months, 4)
	assert.Equal(t, "2024-04", MonthKey(months[3]))
}

func TestUpperUnique(t *testing.T) {
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, UpperUnique([]string{"btcusdt", " ETHUSDT", "", "BTCUSDT"}))
}
