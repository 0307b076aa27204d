package middleware

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"QuantData/internal/domain/models"
	drepo "QuantData/internal/domain/repository"
	"QuantData/internal/service/ratelimit"
	applogger "QuantData/pkg/logger"
)

// Proc is the downstream the pipeline forwards accepted candles to.
type Proc interface {
	Process(ctx context.Context, c *models.Candle) error
}

// RealtimePipeline sits between the live stream and the processor. It drops
// malformed candles, throttles each symbol and parks candles the processor
// rejected in a bounded buffer that is retried in the background.
type RealtimePipeline struct {
	proc     Proc
	metrics  drepo.Metrics
	log      *applogger.Logger
	throttle *ratelimit.Limiter

	maxRate    float64
	bufSize    int
	backoffMin time.Duration
	backoffMax time.Duration
	transform  func(*models.Candle) *models.Candle

	buf     chan *models.Candle
	mu      sync.Mutex
	started bool
	stop    chan struct{}
	done    chan struct{}
}

type PipelineOption func(*RealtimePipeline)

// WithMaxRate caps accepted candles per symbol per second. Zero disables throttling.
func WithMaxRate(perSecond float64) PipelineOption {
	return func(p *RealtimePipeline) {
		if perSecond >= 0 {
			p.maxRate = perSecond
		}
	}
}

func WithBufferSize(n int) PipelineOption {
	return func(p *RealtimePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

func WithRetryBackoff(min, max time.Duration) PipelineOption {
	return func(p *RealtimePipeline) {
		if min > 0 && max >= min {
			p.backoffMin, p.backoffMax = min, max
		}
	}
}

// WithTransform rewrites candles before validation of the result.
func WithTransform(fn func(*models.Candle) *models.Candle) PipelineOption {
	return func(p *RealtimePipeline) { p.transform = fn }
}

func WithPipelineLogger(l *applogger.Logger) PipelineOption {
	return func(p *RealtimePipeline) {
		if l != nil {
			p.log = l
		}
	}
}

func NewRealtimePipeline(proc Proc, metrics drepo.Metrics, opts ...PipelineOption) *RealtimePipeline {
	p := &RealtimePipeline{
		proc:       proc,
		metrics:    metrics,
		log:        applogger.Nop(),
		maxRate:    20,
		bufSize:    1000,
		backoffMin: 50 * time.Millisecond,
		backoffMax: 2 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.buf = make(chan *models.Candle, p.bufSize)
	if p.maxRate > 0 {
		p.throttle = ratelimit.New(time.Duration(float64(time.Second)/p.maxRate), 1)
	}
	return p
}

// Start launches the retry loop for buffered candles. Calling it twice is a no-op.
func (p *RealtimePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	p.stop = make(chan struct{})
	p.done = make(chan struct{})
	go p.drain(ctx, p.stop, p.done)
}

// Stop ends the retry loop. Candles still buffered are dropped and logged.
func (p *RealtimePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	close(p.stop)
	done := p.done
	p.mu.Unlock()

	<-done
	if n := len(p.buf); n > 0 {
		p.log.Warn("pipeline stopped with buffered candles", applogger.Int("dropped", n))
	}
}

func (p *RealtimePipeline) drain(ctx context.Context, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	backoff := p.backoffMin
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case c := <-p.buf:
			if err := p.proc.Process(ctx, c); err != nil {
				p.metrics.RecordError("pipeline_flush")
				p.requeue(c)
				select {
				case <-time.After(backoff):
				case <-stop:
					return
				case <-ctx.Done():
					return
				}
				backoff = min(backoff*2, p.backoffMax)
				continue
			}
			backoff = p.backoffMin
		}
	}
}

// Process validates, throttles and forwards c. A downstream failure buffers
// the candle for retry and is still reported to the caller.
func (p *RealtimePipeline) Process(ctx context.Context, c *models.Candle) error {
	start := time.Now()
	if err := ValidateCandle(c); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.transform != nil {
		c = p.transform(c)
		if err := ValidateCandle(c); err != nil {
			p.metrics.RecordError("pipeline_transform_invalid")
			return err
		}
	}
	if p.throttle != nil && !p.throttle.Allow(c.Symbol) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if err := p.proc.Process(ctx, c); err != nil {
		p.metrics.RecordError("pipeline_process")
		p.requeue(c)
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

// Buffered reports how many candles wait for retry.
func (p *RealtimePipeline) Buffered() int { return len(p.buf) }

func (p *RealtimePipeline) requeue(c *models.Candle) {
	select {
	case p.buf <- c:
	default:
		p.metrics.RecordError("pipeline_buffer_full")
	}
}

var errInvalidCandle = errors.New("invalid candle")

// ValidateCandle rejects candles that cannot be stored.
func ValidateCandle(c *models.Candle) error {
	switch {
	case c == nil:
		return fmt.Errorf("%w: nil", errInvalidCandle)
	case c.Symbol == "":
		return fmt.Errorf("%w: symbol empty", errInvalidCandle)
	case c.Bucket.IsZero():
		return fmt.Errorf("%w: bucket not set", errInvalidCandle)
	}
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close, c.Volume} {
		if math.IsNaN(v) || v < 0 {
			return fmt.Errorf("%w: negative or missing value", errInvalidCandle)
		}
	}
	if c.High < c.Low {
		return fmt.Errorf("%w: high below low", errInvalidCandle)
	}
	return nil
}
