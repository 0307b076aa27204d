package clickhouse

import (
	"strings"
	"testing"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"github.com/stretchr/testify/assert"
)

func TestOptionsNative(t *testing.T) {
	cfg := defaultClientConfig()
	for _, opt := range []ClientOption{
		WithAddr("db.local", 0, false),
		WithAuth("quantdata", "ingest", "secret"),
		WithMaxExecutionTime(90 * time.Second),
	} {
		opt(cfg)
	}

	o := options(cfg)
	assert.Equal(t, []string{"db.local:9000"}, o.Addr)
	assert.Equal(t, ch.Native, o.Protocol)
	assert.Equal(t, "quantdata", o.Auth.Database)
	assert.Equal(t, "ingest", o.Auth.Username)
	assert.Equal(t, 90, o.Settings["max_execution_time"])
	assert.NotContains(t, o.Settings, "async_insert")
}

func TestOptionsHTTPAndAsyncInsert(t *testing.T) {
	cfg := defaultClientConfig()
	WithAddr("db.local", 9000, true)(cfg)
	WithAsyncInsert(true, true)(cfg)

	o := options(cfg)
	assert.Equal(t, []string{"db.local:8123"}, o.Addr)
	assert.Equal(t, ch.HTTP, o.Protocol)
	assert.Equal(t, 1, o.Settings["async_insert"])
	assert.Equal(t, 1, o.Settings["wait_for_async_insert"])
}

func TestNewClientRequiresHost(t *testing.T) {
	_, err := NewClient(WithAddr("", 0, false))
	assert.Error(t, err)
}

func TestCandlesSchema(t *testing.T) {
	stmts := CandlesSchema("quantdata", "candles")
	assert.Len(t, stmts, 2)
	assert.Contains(t, stmts[0], "quantdata")
	assert.True(t, strings.Contains(stmts[1], "ReplacingMergeTree"))
	assert.Contains(t, stmts[1], "ORDER BY (symbol, tf, ts)")
}

func TestWithTimeoutsKeepsDefaultsForZero(t *testing.T) {
	cfg := defaultClientConfig()
	WithTimeouts(0, time.Minute, 0)(cfg)
	assert.Equal(t, 5*time.Second, cfg.DialTimeout)
	assert.Equal(t, time.Minute, cfg.ReadTimeout)
	assert.Equal(t, 30*time.Second, cfg.WriteTimeout)
}
