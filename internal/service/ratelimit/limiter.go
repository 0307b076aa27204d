package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const sweepEvery = time.Minute

// Limiter holds one token bucket per key. Every bucket refills at the same pace.
// Buckets that have refilled completely are dropped on a periodic sweep, so
// keys such as client IPs do not accumulate.
type Limiter struct {
	mu        sync.Mutex
	m         map[string]*rate.Limiter
	interval  time.Duration
	limit     rate.Limit
	burst     int
	now       func() time.Time
	lastSweep time.Time
}

// New returns a limiter that allows one event per interval and key, with the given burst.
// A non-positive interval disables limiting.
func New(interval time.Duration, burst int) *Limiter {
	limit := rate.Inf
	if interval > 0 {
		limit = rate.Every(interval)
	}
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		m:         make(map[string]*rate.Limiter),
		interval:  max(interval, 0),
		limit:     limit,
		burst:     burst,
		now:       time.Now,
		lastSweep: time.Now(),
	}
}

// Interval is the time one token takes to refill; zero when unlimited.
func (l *Limiter) Interval() time.Duration { return l.interval }

// NewMinGap enforces a minimum gap between consecutive calls for a key.
func NewMinGap(gap time.Duration) *Limiter { return New(gap, 1) }

func (l *Limiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now := l.now(); now.Sub(l.lastSweep) >= sweepEvery {
		l.sweep(now)
	}
	b, ok := l.m[key]
	if !ok {
		b = rate.NewLimiter(l.limit, l.burst)
		l.m[key] = b
	}
	return b
}

// sweep drops buckets that are full again. A fresh bucket behaves the same.
func (l *Limiter) sweep(now time.Time) {
	for key, b := range l.m {
		if l.limit == rate.Inf || b.TokensAt(now) >= float64(l.burst) {
			delete(l.m, key)
		}
	}
	l.lastSweep = now
}

// Len reports how many keys currently hold a bucket.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

// Allow returns true if one token can be consumed for key right now.
func (l *Limiter) Allow(key string) bool {
	return l.get(key).Allow()
}

// Wait blocks until key may proceed or ctx is done.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	return l.get(key).Wait(ctx)
}
