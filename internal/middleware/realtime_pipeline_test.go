package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"QuantData/internal/domain/models"
	"QuantData/pkg/metrics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyProc struct {
	mu    sync.Mutex
	fails int
	got   []*models.Candle
}

func (f *flakyProc) Process(_ context.Context, c *models.Candle) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fails > 0 {
		f.fails--
		return errors.New("downstream unavailable")
	}
	f.got = append(f.got, c)
	return nil
}

func (f *flakyProc) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got)
}

func candle(symbol string) *models.Candle {
	return &models.Candle{
		Bucket: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Symbol: symbol,
		Open:   10, High: 12, Low: 9, Close: 11, Volume: 3,
	}
}

func TestValidateCandle(t *testing.T) {
	assert.NoError(t, ValidateCandle(candle("BTC/USDT")))

	bad := []*models.Candle{nil, candle(""), {Symbol: "X"}}
	inverted := candle("BTC/USDT")
	inverted.High, inverted.Low = 1, 2
	negative := candle("BTC/USDT")
	negative.Volume = -1
	bad = append(bad, inverted, negative)
	for _, c := range bad {
		assert.ErrorIs(t, ValidateCandle(c), errInvalidCandle)
	}
}

func TestPipelineThrottlesPerSymbol(t *testing.T) {
	proc := &flakyProc{}
	p := NewRealtimePipeline(proc, metrics.Nop{}, WithMaxRate(1))

	ctx := context.Background()
	require.NoError(t, p.Process(ctx, candle("BTC/USDT")))
	require.NoError(t, p.Process(ctx, candle("BTC/USDT")))
	require.NoError(t, p.Process(ctx, candle("ETH/USDT")))
	assert.Equal(t, 2, proc.count())
}

func TestPipelineBuffersAndRetries(t *testing.T) {
	proc := &flakyProc{fails: 2}
	p := NewRealtimePipeline(proc, metrics.Nop{}, WithMaxRate(0), WithRetryBackoff(time.Millisecond, 5*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	err := p.Process(ctx, candle("BTC/USDT"))
	assert.Error(t, err)

	require.Eventually(t, func() bool { return proc.count() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 0, p.Buffered())
}

func TestPipelineRejectsInvalidWithoutForwarding(t *testing.T) {
	proc := &flakyProc{}
	p := NewRealtimePipeline(proc, metrics.Nop{})
	assert.Error(t, p.Process(context.Background(), candle("")))
	assert.Equal(t, 0, proc.count())
}
