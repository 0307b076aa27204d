package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"QuantData/internal/domain/models"
	drepo "QuantData/internal/domain/repository"
	pkgkafka "QuantData/pkg/kafka"
)

// KafkaCandlesHandler consumes candle events and writes them to storage.
type KafkaCandlesHandler struct {
	topic   string
	storage drepo.Storage
	metrics drepo.Metrics
	now     func() time.Time
}

func NewKafkaCandlesHandler(topic string, storage drepo.Storage, metrics drepo.Metrics) *KafkaCandlesHandler {
	return &KafkaCandlesHandler{topic: topic, storage: storage, metrics: metrics, now: time.Now}
}

func (h *KafkaCandlesHandler) Topic() string { return h.topic }

// Handle decodes {symbol, tf, t, o, h, l, c, v}. A t in epoch seconds is accepted.
func (h *KafkaCandlesHandler) Handle(ctx context.Context, b []byte) error {
	var ev models.CandleEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode candle event: %w", err)
	}
	c, err := ev.Candle()
	if err != nil {
		h.metrics.RecordError("consumer_invalid")
		return err
	}
	tf, err := drepo.ParseTimeframe(ev.Timeframe)
	if err != nil {
		h.metrics.RecordError("consumer_invalid")
		return err
	}

	// bar close is the earliest moment the event could exist
	closeAt := c.Bucket.Add(tf.Duration())
	h.metrics.RecordLatency("ingest_e2e_seconds", h.now().Sub(closeAt).Seconds())

	start := h.now()
	err = h.storage.Store(ctx, tf, c)
	h.metrics.RecordLatency("ch_insert_seconds", h.now().Sub(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	h.metrics.RecordMessageSent(BackendClickHouse, c.Symbol)
	return nil
}

var _ pkgkafka.MessageHandler = (*KafkaCandlesHandler)(nil)
