package repository

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"QuantData/internal/domain/models"
	drepo "QuantData/internal/domain/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSeries() models.Series {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return models.Series{
		{Bucket: t0, Symbol: "BTC/USDT", Open: 42000.5, High: 42100, Low: 41950.25, Close: 42050, Volume: 12.5},
		{Bucket: t0.Add(time.Hour), Symbol: "BTC/USDT", Open: 42050, High: 42200, Low: 42000, Close: 42150, Volume: math.NaN()},
	}
}

func TestCSVStoreRoundTrip(t *testing.T) {
	store := NewCSVStore(t.TempDir())
	require.NoError(t, store.Write("btc", "1h", sampleSeries()))

	path := store.Path("BTC", "1h")
	assert.Equal(t, filepath.Join(store.Root(), "BTC", "crypto_BTC_USDT_1h.csv"), path)
	assert.True(t, store.Exists("BTC", "1h"))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Equal(t, "datetime,open,high,low,close,volume,symbol", lines[0])
	assert.Equal(t, "2024-01-01 00:00:00,42000.5,42100,41950.25,42050,12.5,BTC/USDT", lines[1])
	assert.Equal(t, "2024-01-01 01:00:00,42050,42200,42000,42150,,BTC/USDT", lines[2])

	file, err := store.Read("BTC", "1h")
	require.NoError(t, err)
	require.Len(t, file.Series, 2)
	assert.True(t, file.HasColumn("symbol"))
	assert.Equal(t, 41950.25, file.Series[0].Low)
	assert.True(t, math.IsNaN(file.Series[1].Volume))
	assert.Equal(t, "BTC/USDT", file.Series[1].Symbol)
}

func TestCSVStoreReadMissing(t *testing.T) {
	store := NewCSVStore(t.TempDir())
	_, err := store.Read("ETH", "1d")
	assert.True(t, errors.Is(err, drepo.ErrNoData))
}

func TestDecodeCSVToleratesLayouts(t *testing.T) {
	in := "datetime,open,high,low,close\n" +
		"2024-01-01 00:00:00+00:00,1,2,0.5,1.5\n" +
		"1704070800000,1.5,2,1,1.8\n"
	file, err := DecodeCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, file.Series, 2)
	assert.False(t, file.HasColumn("volume"))
	assert.True(t, math.IsNaN(file.Series[0].Volume))
	assert.Equal(t, time.Date(2024, 1, 1, 1, 0, 0, 0, time.UTC), file.Series[1].Bucket)
}

func TestDecodeCSVUnparseableNumbersAreNaN(t *testing.T) {
	in := "datetime,open,high,low,close,volume,symbol\n" +
		"2024-01-01 00:00:00,1,2,0.5,1.5,100,ETH/USDT\n" +
		"2024-01-01 01:00:00,1.5,2,1,abc,100,ETH/USDT\n"
	file, err := DecodeCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, file.Series, 2)
	assert.True(t, math.IsNaN(file.Series[1].Close))
	assert.Equal(t, 1.5, file.Series[1].Open)
	assert.Equal(t, "ETH/USDT", file.Series[1].Symbol)
}

func TestDecodeCSVRejectsMissingDatetime(t *testing.T) {
	_, err := DecodeCSV(strings.NewReader("open,close\n1,2\n"))
	assert.Error(t, err)
}

func TestBasesSkipsCombined(t *testing.T) {
	root := t.TempDir()
	for _, d := range []string{"ETH", "BTC", CombinedDir, ".cache"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, d), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(root, "validation_report_1h.json"), []byte("{}"), 0o644))

	bases, err := NewCSVStore(root).Bases()
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC", "ETH"}, bases)

	none, err := NewCSVStore(filepath.Join(root, "absent")).Bases()
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestPartitionPath(t *testing.T) {
	store := NewCSVStore("/data")
	month := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, filepath.Join("/data", "BTC", "1m", "2024", "03", "crypto_BTC_USDT_1m.csv"), store.PartitionPath("BTC", "1m", month))
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "x.txt")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	md5sum, err := HashFile(path, HashMD5)
	require.NoError(t, err)
	assert.Equal(t, "900150983cd24fb0d6963f7d28e17f72", md5sum)

	sha, err := HashFile(path, HashSHA256)
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", sha)

	_, err = HashFile(path, "crc32")
	assert.Error(t, err)
}

func TestCSVStoreTimeframes(t *testing.T) {
	store := NewCSVStore(t.TempDir())
	for _, tf := range []drepo.Timeframe{"1d", "1m", "4h"} {
		require.NoError(t, store.Write("BTC", tf, sampleSeries()))
	}
	// partitions and foreign files are ignored
	require.NoError(t, store.WriteFile(store.PartitionPath("BTC", "1m", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)), sampleSeries()))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir("BTC"), "notes.txt"), []byte("x"), 0o644))

	tfs, err := store.Timeframes("btc")
	require.NoError(t, err)
	assert.Equal(t, []drepo.Timeframe{"1m", "4h", "1d"}, tfs)

	tfs, err = store.Timeframes("ETH")
	require.NoError(t, err)
	assert.Empty(t, tfs)
}
