package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTimeframe(t *testing.T) {
	tests := []struct {
		in      string
		dur     time.Duration
		periods float64
		wantErr bool
	}{
		{"1m", time.Minute, 525600, false},
		{"15m", 15 * time.Minute, 35040, false},
		{"1h", time.Hour, 8760, false},
		{"4h", 4 * time.Hour, 2190, false},
		{"1d", 24 * time.Hour, 365, false},
		{"1w", 7 * 24 * time.Hour, 365.0 / 7, false},
		{"", 0, 0, true},
		{"h", 0, 0, true},
		{"0h", 0, 0, true},
		{"1y", 0, 0, true},
		{"1.5h", 0, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			tf, err := ParseTimeframe(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.dur, tf.Duration())
			assert.InDelta(t, tt.periods, tf.PeriodsPerYear(), 1e-9)
		})
	}
}

func TestNormalizeTimeframe(t *testing.T) {
	assert.Equal(t, TF1h, NormalizeTimeframe(""))
	assert.Equal(t, TF1h, NormalizeTimeframe("bogus"))
	assert.Equal(t, TF1d, NormalizeTimeframe("1d"))
}
