package usecase

import (
	"context"
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"QuantData/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const brokenETH = "datetime,open,high,low,close\n" +
	"2024-01-01 00:00:00,10,9,8,9.5\n" +
	"2024-01-01 02:00:00,10,11,9,10\n" +
	"2024-01-01 01:00:00,10,11,9,10\n"

func TestValidatorRun(t *testing.T) {
	store, manifests := newStores(t)
	require.NoError(t, store.Write("BTC", "1h", hourly(t0, 24).WithSymbol("BTC/USDT")))
	ethPath := store.Path("ETH", "1h")
	require.NoError(t, os.MkdirAll(filepath.Dir(ethPath), 0o755))
	require.NoError(t, os.WriteFile(ethPath, []byte(brokenETH), 0o644))

	v := NewValidator(store, manifests, 0.02, nil, nil)
	v.now = clock(time.Date(2024, 2, 1, 8, 30, 0, 0, time.UTC))

	run, err := v.Run(context.Background(), "1h")
	require.NoError(t, err)
	r := run.Report

	assert.Equal(t, 2, r.TotalSymbols)
	assert.Equal(t, []string{"ETH/USDT: Missing columns ['volume', 'symbol']"}, r.SchemaIssues)
	assert.Equal(t, []string{"ETH/USDT: High < Open", "ETH/USDT: High < Close"}, r.DataIssues)
	assert.Equal(t, []string{"ETH/USDT: Non-monotonic dates", "ETH/USDT: 2 irregular time intervals"}, r.DateIssues)
	assert.Equal(t, 5, r.IssueCount())

	btc := r.Symbols["BTC/USDT"]
	assert.True(t, btc.SchemaValid && btc.OHLCValid && btc.VolumeValid)
	assert.Equal(t, 24, btc.Rows)
	eth := r.Symbols["ETH/USDT"]
	assert.False(t, eth.OHLCValid)
	assert.Equal(t, 3, eth.NullCount)

	assert.Equal(t, filepath.Join(store.Root(), "validation_report_1h_20240201_083000.json"), run.ReportPath)
	raw, err := os.ReadFile(run.ReportPath)
	require.NoError(t, err)
	var decoded models.ValidationReport
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, r.DataIssues, decoded.DataIssues)

	summary, err := os.ReadFile(run.SummaryPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(summary)), "\n")
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "symbol,start_date,end_date,observations"))

	require.Len(t, run.Stats, 2)
	assert.Equal(t, "BTC/USDT", run.Stats[0].Symbol)
	assert.InDelta(t, 23.0, run.Stats[0].TotalReturn, 1e-9)
	assert.LessOrEqual(t, run.Stats[0].MaxDrawdown, 0.0)

	m, err := manifests.ReadSymbol("ETH", "1h")
	require.NoError(t, err)
	assert.Equal(t, 3, m.Rows)
}

func TestValidatorSummarySkipsMissingValues(t *testing.T) {
	store, manifests := newStores(t)
	path := store.Path("BTC", "1h")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	csv := "datetime,open,high,low,close,volume,symbol\n" +
		"2024-01-01 00:00:00,100,101,99,100,10,BTC/USDT\n" +
		"2024-01-01 01:00:00,100,101,99,,,BTC/USDT\n" +
		"2024-01-01 02:00:00,102,103,101,102,30,BTC/USDT\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	v := NewValidator(store, manifests, 0, nil, nil)
	files, err := v.Load(context.Background(), "1h")
	require.NoError(t, err)
	stats := v.Summary(files, "1h")
	require.Len(t, stats, 1)

	st := stats[0]
	assert.InDelta(t, 101.0, st.AvgPrice, 1e-9)
	assert.InDelta(t, 20.0, st.AvgVolume, 1e-9)
	assert.InDelta(t, math.Sqrt2, st.PriceStd, 1e-9)
	assert.Equal(t, 2, st.NullValues)
	assert.Equal(t, 3, st.Observations)
}

func TestValidatorRunWithoutData(t *testing.T) {
	store, manifests := newStores(t)
	_, err := NewValidator(store, manifests, 0, nil, nil).Run(context.Background(), "1d")
	assert.Error(t, err)
}
