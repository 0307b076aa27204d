package logger

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	digests []*LogDigest
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.digests = append(p.digests, payload.(*LogDigest))
	return nil
}

func (p *capturePublisher) entries() []AggregatedLogEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []AggregatedLogEntry
	for _, d := range p.digests {
		out = append(out, d.Entries...)
	}
	return out
}

func TestNewRejectsBadLevel(t *testing.T) {
	_, err := New(&Config{Level: "loud", Output: "stdout"})
	assert.Error(t, err)
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	l, err := New(&Config{Level: "info", Format: "json", Output: path})
	require.NoError(t, err)
	l.Info("hello", String("symbol", "BTC/USDT"), Float64("close", 42.5))
	assert.FileExists(t, path)
}

func TestCollectorAggregatesDuplicates(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{
		TimeInterval:   time.Hour,
		CountThreshold: 100,
		Topic:          "logs",
		Publisher:      pub,
	})

	for i := 0; i < 3; i++ {
		l.Error("fetch failed", String("symbol", "BTC/USDT"), Error(errors.New("boom")))
	}
	l.Warn("slow page", Int("rows", 10))
	l.RemoveCollector()

	require.Eventually(t, func() bool { return len(pub.entries()) == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, "logs", pub.topic)

	counts := map[string]int{}
	for _, e := range pub.entries() {
		counts[e.Message] = e.Count
		assert.Contains(t, e.Caller, "/pkg/logger/")
	}
	assert.Equal(t, 3, counts["fetch failed"])
	assert.Equal(t, 1, counts["slow page"])
}

func TestCollectorGroupsByStableFields(t *testing.T) {
	pub := &capturePublisher{}
	l := Nop()
	l.AddCollector(&CollectionConfig{TimeInterval: time.Hour, Topic: "logs", Publisher: pub})

	for _, since := range []string{"2024-01-01", "2024-01-02", "2024-01-03"} {
		l.Warn("page failed", String("symbol", "BTC/USDT"), String("since", since))
	}
	l.Warn("page failed", String("symbol", "ETH/USDT"), String("since", "2024-01-01"))
	l.RemoveCollector()

	require.Eventually(t, func() bool { return len(pub.entries()) == 2 }, time.Second, 10*time.Millisecond)
	entries := pub.entries()
	assert.Equal(t, 3, entries[0].Count)
	assert.Equal(t, "BTC/USDT", entries[0].Fields["symbol"])
	assert.Equal(t, "2024-01-01", entries[0].Fields["since"])
	assert.Equal(t, 1, entries[1].Count)
}

func TestCollectorFlushesAtThreshold(t *testing.T) {
	pub := &capturePublisher{}
	c := NewLogCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 2, Topic: "logs", Publisher: pub})
	defer c.Close()

	c.AddLog("error", "write failed", map[string]interface{}{"symbol": "BTC/USDT"}, "x.go:1")
	c.AddLog("error", "write failed", map[string]interface{}{"symbol": "ETH/USDT"}, "x.go:1")

	require.Eventually(t, func() bool { return len(pub.entries()) == 2 }, time.Second, 10*time.Millisecond)
	pub.mu.Lock()
	defer pub.mu.Unlock()
	require.Len(t, pub.digests, 1)
	assert.False(t, pub.digests[0].To.Before(pub.digests[0].From))
}

func TestFieldValues(t *testing.T) {
	assert.Equal(t, "BTC, ETH", Strings("symbols", []string{"BTC", "ETH"}).Value)
	assert.Equal(t, int64(1500), Duration("took_ms", 1500*time.Millisecond).Value)
	assert.Nil(t, Error(nil).Value)
	assert.Equal(t, "boom", Error(errors.New("boom")).Value)
}

func TestTrimSourcePath(t *testing.T) {
	assert.Equal(t, "/internal/usecase/fetcher.go", trimSourcePath("/home/dev/quantdata/internal/usecase/fetcher.go"))
	assert.Equal(t, "main.go", trimSourcePath("main.go"))
}
