package usecase

import (
	"context"
	"fmt"
	"time"

	"QuantData/internal/domain/models"
	drepo "QuantData/internal/domain/repository"
	"QuantData/pkg/metrics"
)

// Backends a CandleProcessor can route to.
const (
	BackendNone       = "none"
	BackendKafka      = "kafka"
	BackendClickHouse = "clickhouse"
)

// CandleProcessor routes candles to the configured backend.
type CandleProcessor struct {
	pub     drepo.Publisher
	store   drepo.Storage
	metrics drepo.Metrics
	backend string
	tf      drepo.Timeframe
}

// NewCandleProcessor creates a processor. tf labels candles handed to Process,
// which come from the live stream and carry no timeframe of their own.
func NewCandleProcessor(
	pub drepo.Publisher,
	store drepo.Storage,
	m drepo.Metrics,
	backend string,
	tf drepo.Timeframe,
) *CandleProcessor {
	if m == nil {
		m = metrics.Nop{}
	}
	if backend == "" {
		backend = BackendNone
	}
	return &CandleProcessor{
		pub:     pub,
		store:   store,
		metrics: m,
		backend: backend,
		tf:      tf,
	}
}

func (p *CandleProcessor) Backend() string { return p.backend }

// Process routes a single candle to the configured backend.
func (p *CandleProcessor) Process(ctx context.Context, c *models.Candle) error {
	if c == nil {
		return fmt.Errorf("candle is nil")
	}
	if p.backend == BackendNone {
		return nil
	}

	start := time.Now()
	var err error

	switch p.backend {
	case BackendKafka:
		err = p.pub.Publish(ctx, p.tf, c)
	case BackendClickHouse:
		err = p.store.Store(ctx, p.tf, c)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process")
		return fmt.Errorf("process candle: %w", err)
	}

	p.metrics.RecordMessageSent(p.backend, c.Symbol)
	p.metrics.RecordLatency("process", time.Since(start).Seconds())
	return nil
}

// ProcessBatch sends candles of one timeframe in a single call.
func (p *CandleProcessor) ProcessBatch(ctx context.Context, tf drepo.Timeframe, candles []*models.Candle) error {
	if len(candles) == 0 || p.backend == BackendNone {
		return nil
	}

	start := time.Now()
	var err error

	switch p.backend {
	case BackendKafka:
		err = p.pub.PublishBatch(ctx, tf, candles)
	case BackendClickHouse:
		err = p.store.StoreBatch(ctx, tf, candles)
	default:
		err = fmt.Errorf("unknown backend: %s", p.backend)
	}

	if err != nil {
		p.metrics.RecordError("process_batch")
		return fmt.Errorf("process batch: %w", err)
	}

	for _, c := range candles {
		p.metrics.RecordMessageSent(p.backend, c.Symbol)
	}
	p.metrics.RecordLatency("process_batch", time.Since(start).Seconds())
	return nil
}

// Close closes underlying resources if available.
func (p *CandleProcessor) Close() {
	if p.pub != nil {
		_ = p.pub.Close()
	}
	if p.store != nil {
		_ = p.store.Close()
	}
}

var _ CandleSink = (*CandleProcessor)(nil)
