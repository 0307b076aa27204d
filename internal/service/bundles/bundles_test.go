package bundles

import (
	"archive/zip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"QuantData/internal/domain/models"
	"QuantData/internal/repository"
	xhttp "QuantData/pkg/http"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow(d *Downloader) {
	d.now = func() time.Time { return time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC) }
}

func TestDownloaderPlan(t *testing.T) {
	d := NewDownloader(xhttp.NewClient(), "https://data.example/data/spot/", nil)
	fixedNow(d)

	daily := d.Plan(DownloadRequest{
		BundleDir: "bundles",
		Timeframe: "1m",
		Symbols:   []string{"btcusdt"},
		Start:     time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	})
	require.Len(t, daily, 3)
	assert.Equal(t, "https://data.example/data/spot/daily/klines/BTCUSDT/1m/BTCUSDT-1m-2024-01-30.zip", daily[0].URL)
	assert.Equal(t, filepath.Join("bundles", "1m", "BTCUSDT-1m-2024-02-01.zip"), daily[2].Dest)

	monthly := d.Plan(DownloadRequest{
		BundleDir: "bundles",
		Timeframe: "1h",
		Period:    PeriodMonthly,
		Symbols:   []string{"ETHUSDT"},
		Start:     time.Date(2023, 12, 15, 0, 0, 0, 0, time.UTC),
	})
	require.Len(t, monthly, 4)
	assert.Equal(t, "https://data.example/data/spot/monthly/klines/ETHUSDT/1h/ETHUSDT-1h-2023-12.zip", monthly[0].URL)
	assert.Equal(t, filepath.Join("bundles", "monthly_1h", "ETHUSDT-1h-2024-03.zip"), monthly[3].Dest)

	defaults := d.Plan(DownloadRequest{BundleDir: "b", DaysBack: 1})
	assert.Len(t, defaults, len(DefaultSymbols)*2)
}

func TestDownloaderRun(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if strings.Contains(r.URL.Path, "2024-01-02") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("zip-bytes"))
	}))
	defer srv.Close()

	dir := t.TempDir()
	d := NewDownloader(xhttp.NewClient(), srv.URL, nil)
	fixedNow(d)

	existing := filepath.Join(dir, "1m", "BTCUSDT-1m-2024-01-03.zip")
	require.NoError(t, os.MkdirAll(filepath.Dir(existing), 0o755))
	require.NoError(t, os.WriteFile(existing, []byte("old"), 0o644))

	req := DownloadRequest{
		BundleDir: dir,
		Timeframe: "1m",
		Symbols:   []string{"BTCUSDT"},
		Start:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC),
	}
	res, err := d.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Planned)
	assert.Equal(t, 2, res.Succeeded)
	assert.Equal(t, 1, res.Skipped)
	assert.Len(t, res.Failed, 1)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
	assert.Equal(t, "Planned: 3, succeeded: 2", res.String())

	b, err := os.ReadFile(filepath.Join(dir, "1m", "BTCUSDT-1m-2024-01-01.zip"))
	require.NoError(t, err)
	assert.Equal(t, "zip-bytes", string(b))
	b, _ = os.ReadFile(existing)
	assert.Equal(t, "old", string(b))

	req.DryRun = true
	res, err = d.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Succeeded)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, body := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

func TestReadBundleDetectsEpochUnit(t *testing.T) {
	dir := t.TempDir()

	ms := filepath.Join(dir, "BTCUSDT-1m-2024-01-01.csv")
	require.NoError(t, os.WriteFile(ms, []byte(
		"open_time,open,high,low,close,volume\n"+
			"1704067200000,1,2,0.5,1.5,10,1704067259999\n"+
			"1704067260000,1.5,2.5,1,2,11,1704067319999\n"), 0o644))
	s, err := ReadBundle(ms)
	require.NoError(t, err)
	require.Len(t, s, 2)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), s[0].Bucket)
	assert.Equal(t, 11.0, s[1].Volume)

	us := filepath.Join(dir, "BTCUSDT-1m-2025-01.zip")
	writeZip(t, us, map[string]string{"BTCUSDT-1m-2025-01.csv": "1735689600000000,1,2,0.5,1.5,10\n"})
	s, err = ReadBundle(us)
	require.NoError(t, err)
	require.Len(t, s, 1)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), s[0].Bucket)

	empty := filepath.Join(dir, "empty.zip")
	writeZip(t, empty, map[string]string{"readme.txt": "x"})
	_, err = ReadBundle(empty)
	assert.Error(t, err)
}

func TestImporterWritesPartitionsAndManifests(t *testing.T) {
	bundleDir := t.TempDir()
	root := t.TempDir()
	store := repository.NewCSVStore(root)
	manifests := repository.NewManifestStore(root)
	im := NewImporter(store, manifests, nil)
	im.now = func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) }

	writeZip(t, filepath.Join(bundleDir, "1m", "BTCUSDT-1m-2024-01-01.zip"), map[string]string{
		"BTCUSDT-1m-2024-01-01.csv": "1704067200000,1,2,0.5,1.5,10\n1704067260000,1.5,2.5,1,2,11\n",
	})
	writeZip(t, filepath.Join(bundleDir, "1m", "BTCUSDT-1m-2024-01-02.zip"), map[string]string{
		"BTCUSDT-1m-2024-01-02.csv": "1704153600000,2,3,1.5,2.5,12\n",
	})
	// the monthly bundle wins over the daily files of February
	writeZip(t, filepath.Join(bundleDir, "monthly_1m", "BTCUSDT-1m-2024-02.zip"), map[string]string{
		"BTCUSDT-1m-2024-02.csv": "1706745600000,3,4,2.5,3.5,13\n",
	})
	writeZip(t, filepath.Join(bundleDir, "1m", "BTCUSDT-1m-2024-02-02.zip"), map[string]string{
		"BTCUSDT-1m-2024-02-02.csv": "1706832000000,9,9,9,9,9\n",
	})

	res, err := im.Import(context.Background(), ImportRequest{BundleDir: bundleDir, Timeframe: "1m"})
	require.NoError(t, err)
	require.Len(t, res, 2)

	jan, feb := res[0], res[1]
	assert.Equal(t, "BTCUSDT", jan.Symbol)
	assert.Equal(t, "2024-01", jan.Month)
	assert.Equal(t, 3, jan.Rows)
	assert.Equal(t, "2024-01-01 00:00:00", jan.Start)
	assert.Equal(t, "2024-01-02 00:00:00", jan.End)
	assert.Len(t, jan.SHA256, 64)
	assert.Equal(t, 1, feb.Rows)
	assert.True(t, strings.HasSuffix(feb.Source, "BTCUSDT-1m-2024-02.zip"))
	assert.Equal(t, "BTCUSDT 2024-01: wrote 3 rows -> crypto_BTC_USDT_1m.csv (start=2024-01-01 00:00:00 end=2024-01-02 00:00:00)", jan.String())

	month := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f, err := store.ReadFile(store.PartitionPath("BTC", "1m", month))
	require.NoError(t, err)
	assert.Len(t, f.Series, 3)
	assert.Equal(t, "BTC/USDT", f.Series[0].Symbol)

	mm, err := manifests.ReadMonth("BTC", "1m", month)
	require.NoError(t, err)
	assert.Equal(t, jan.SHA256, mm.SHA256)
	require.NotNil(t, mm.LastClose)
	assert.Equal(t, 2.5, *mm.LastClose)

	ym, err := manifests.ReadYear("BTC", "1m", 2024)
	require.NoError(t, err)
	assert.Equal(t, 4, ym.Rows)
	assert.Len(t, ym.Months, 2)

	// re-import merges into the existing partition
	res, err = im.Import(context.Background(), ImportRequest{BundleDir: bundleDir, Timeframe: "1m", Symbols: []string{"btcusdt"}})
	require.NoError(t, err)
	assert.Equal(t, 3, res[0].Rows)
}

func TestImporterDryRunWritesNothing(t *testing.T) {
	bundleDir := t.TempDir()
	root := t.TempDir()
	store := repository.NewCSVStore(root)
	im := NewImporter(store, repository.NewManifestStore(root), nil)

	writeZip(t, filepath.Join(bundleDir, "1h", "ETHUSDT-1h-2024-05-01.zip"), map[string]string{
		"a.csv": "1714521600000,1,2,0.5,1.5,10\n",
	})
	res, err := im.Import(context.Background(), ImportRequest{BundleDir: bundleDir, Timeframe: "1h", DryRun: true})
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "ETH", res[0].Base)
	assert.Empty(t, res[0].SHA256)

	_, err = os.Stat(filepath.Join(root, "ETH"))
	assert.True(t, os.IsNotExist(err))
}

func TestImporterContinuesPastFailedSymbol(t *testing.T) {
	bundleDir := t.TempDir()
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "ADA"), []byte("x"), 0o644))
	im := NewImporter(repository.NewCSVStore(root), repository.NewManifestStore(root), nil)

	writeZip(t, filepath.Join(bundleDir, "1h", "ADAUSDT-1h-2024-05-01.zip"), map[string]string{
		"a.csv": "1714521600000,1,2,0.5,1.5,10\n",
	})
	writeZip(t, filepath.Join(bundleDir, "1h", "BTCUSDT-1h-2024-05-01.zip"), map[string]string{
		"b.csv": "1714521600000,1,2,0.5,1.5,10\n",
	})

	res, err := im.Import(context.Background(), ImportRequest{BundleDir: bundleDir, Timeframe: "1h"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ADAUSDT")
	require.Len(t, res, 1)
	assert.Equal(t, "BTC", res[0].Base)

	_, err = os.Stat(filepath.Join(root, "BTC"))
	assert.NoError(t, err)
}

func TestImporterMissingTimeframeDir(t *testing.T) {
	im := NewImporter(repository.NewCSVStore(t.TempDir()), repository.NewManifestStore(t.TempDir()), nil)
	_, err := im.Import(context.Background(), ImportRequest{BundleDir: t.TempDir(), Timeframe: "1m"})
	assert.Error(t, err)
}

func TestPartitioner(t *testing.T) {
	root := t.TempDir()
	store := repository.NewCSVStore(root)
	t0 := time.Date(2024, 1, 31, 23, 58, 0, 0, time.UTC)
	var s models.Series
	for i := 0; i < 4; i++ {
		s = append(s, models.Candle{Bucket: t0.Add(time.Duration(i) * time.Minute), Open: 1, High: 2, Low: 0.5, Close: 1.5, Volume: float64(i)})
	}
	require.NoError(t, store.Write("BTC", "1m", s))
	require.NoError(t, store.Write("ETH", "1m", s[:1]))

	p := NewPartitioner(store, nil)
	res, err := p.Partition(context.Background(), PartitionRequest{Symbol: "btc", DryRun: true})
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "2024-01", res[0].Month)
	assert.Equal(t, 2, res[0].Rows)
	_, err = os.Stat(res[0].Path)
	assert.True(t, os.IsNotExist(err))

	res, err = p.Partition(context.Background(), PartitionRequest{Timeframe: "1m"})
	require.NoError(t, err)
	assert.Len(t, res, 3)

	// a second run merges instead of duplicating rows
	_, err = p.Partition(context.Background(), PartitionRequest{Symbol: "BTC"})
	require.NoError(t, err)
	f, err := store.ReadFile(store.PartitionPath("BTC", "1m", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	assert.Len(t, f.Series, 2)
	assert.Equal(t, "BTC/USDT", f.Series[0].Symbol)
}
