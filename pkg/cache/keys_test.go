package cache

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "manifest:BTC:1h", ManifestKey("btc", "1h"))
	assert.Equal(t, "manifest:BTC:*", ManifestPattern("Btc"))
	assert.Equal(t, "manifest:*", ManifestPattern(""))
	assert.Equal(t, "markets:binance", MarketsKey("Binance"))
	assert.Equal(t, "lock:update:ETH:1d", UpdateLockKey("eth", "1d"))
	assert.Equal(t, "jobs:42:done", Key("jobs", 42, "done"))
}
