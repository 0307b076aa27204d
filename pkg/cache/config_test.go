package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRedisOptions(t *testing.T) {
	cfg := defaultRedisConfig()
	for _, opt := range []RedisOption{
		WithRedisAddr("cache.internal", 0),
		WithRedisAuth("secret", 3),
		WithRedisPrefix("quantdata:test"),
	} {
		opt(cfg)
	}
	assert.Equal(t, "cache.internal:6379", cfg.Addr())
	assert.Equal(t, 3, cfg.DB)
	assert.Equal(t, "quantdata:test", cfg.Prefix)
}

func TestLayeredMemorySizeKeepsDefaultForZero(t *testing.T) {
	cfg := defaultMemoryConfig()
	WithLayeredMemorySize(0)(cfg)
	assert.Equal(t, 1000, cfg.MaxSize)
	WithLayeredMemorySize(50)(cfg)
	assert.Equal(t, 50, cfg.MaxSize)
}

func TestCapL1(t *testing.T) {
	assert.Equal(t, l1TTL, capL1(0))
	assert.Equal(t, l1TTL, capL1(time.Hour))
	assert.Equal(t, 10*time.Second, capL1(10*time.Second))
}
