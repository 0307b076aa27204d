package usecase

import (
	"context"

	"QuantData/internal/domain/models"
	drepo "QuantData/internal/domain/repository"
	mid "QuantData/internal/middleware"
	applogger "QuantData/pkg/logger"
)

// StreamCollector feeds closed candles from the market stream into the pipeline.
type StreamCollector struct {
	stream  drepo.MarketStream
	proc    *CandleProcessor
	metrics drepo.Metrics
	pipe    *mid.RealtimePipeline
	log     *applogger.Logger
}

func NewStreamCollector(stream drepo.MarketStream, proc *CandleProcessor, metrics drepo.Metrics, pipe *mid.RealtimePipeline, l *applogger.Logger) *StreamCollector {
	if l == nil {
		l = applogger.Nop()
	}
	return &StreamCollector{stream: stream, proc: proc, metrics: metrics, pipe: pipe, log: l}
}

// IsConnected returns true if the market stream is connected.
func (c *StreamCollector) IsConnected() bool {
	return c.stream.IsConnected()
}

func (c *StreamCollector) Start(ctx context.Context) error {
	if err := c.stream.Connect(ctx); err != nil {
		return err
	}
	if err := c.stream.Subscribe(ctx); err != nil {
		return err
	}
	if c.pipe != nil {
		c.pipe.Start(ctx)
	}
	candles, errs := c.stream.Read(ctx)
	go c.consume(ctx, candles, errs)
	return nil
}

func (c *StreamCollector) consume(ctx context.Context, candles <-chan *models.Candle, errs <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err == nil {
				continue
			}
			c.metrics.RecordError("stream")
			c.log.Warn("stream error, reconnecting", applogger.Error(err))
			if rerr := c.stream.Reconnect(ctx); rerr != nil {
				c.log.Error("reconnect failed", applogger.Error(rerr))
			}
		case candle, ok := <-candles:
			if !ok {
				return
			}
			if candle == nil {
				continue
			}
			c.handle(ctx, candle)
		}
	}
}

func (c *StreamCollector) handle(ctx context.Context, candle *models.Candle) {
	var err error
	if c.pipe != nil {
		err = c.pipe.Process(ctx, candle)
	} else {
		err = c.proc.Process(ctx, candle)
	}
	if err != nil {
		c.log.Debug("candle not processed", applogger.String("symbol", candle.Symbol), applogger.Error(err))
	}
	c.metrics.RecordLastPrice(candle.Symbol, candle.Close)
}

// Processor returns the underlying CandleProcessor for lifecycle management.
func (c *StreamCollector) Processor() *CandleProcessor { return c.proc }

// Shutdown stops the pipeline and closes the stream.
func (c *StreamCollector) Shutdown(ctx context.Context) error {
	if c.pipe != nil {
		c.pipe.Stop()
	}
	return c.stream.Close()
}
