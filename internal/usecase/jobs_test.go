package usecase

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateSymbolsJob(t *testing.T) {
	src := &fakeSource{series: hourly(t0, 20)}
	u, _ := newUpdater(t, src, t0.Add(20*time.Hour+30*time.Minute))
	require.NoError(t, u.store.Write("BTC", "1h", hourly(t0, 10)))

	job := UpdateSymbolsJob(u)
	assert.Equal(t, JobUpdateSymbols, job.Type())

	err := job.Handle(context.Background(), json.RawMessage(`{"symbols":["BTC"],"timeframe":"1h","include_now":true}`))
	require.NoError(t, err)
	f, err := u.store.Read("BTC", "1h")
	require.NoError(t, err)
	assert.Len(t, f.Series, 20)

	assert.Error(t, job.Handle(context.Background(), json.RawMessage(`{"symbols":[]}`)))
	assert.Error(t, job.Handle(context.Background(), json.RawMessage(`{"symbols":["BTC"],"timeframe":"x"}`)))
	assert.Error(t, job.Handle(context.Background(), json.RawMessage(`not json`)))
}

func TestGenerateOnePagerJob(t *testing.T) {
	store, manifests := newStores(t)
	require.NoError(t, store.Write("BTC", "1h", hourly(t0, 5)))
	out := filepath.Join(t.TempDir(), "onepager.md")

	job := GenerateOnePagerJob(NewOnePager(store, manifests, nil), out)
	require.NoError(t, job.Handle(context.Background(), nil))
	raw, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "BTC/USDT")
}
