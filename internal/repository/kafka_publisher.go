package repository

import (
	"context"

	"QuantData/internal/domain/models"
	drepo "QuantData/internal/domain/repository"
	pkgkafka "QuantData/pkg/kafka"
)

// KafkaPublisher publishes candle events keyed by symbol so one symbol stays on one partition.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
}

var _ drepo.Publisher = (*KafkaPublisher)(nil)

func NewKafkaPublisher(producer *pkgkafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, tf drepo.Timeframe, c *models.Candle) error {
	return p.PublishBatch(ctx, tf, []*models.Candle{c})
}

func (p *KafkaPublisher) PublishBatch(ctx context.Context, tf drepo.Timeframe, candles []*models.Candle) error {
	if len(candles) == 0 {
		return nil
	}
	return p.producer.PublishBatch(ctx, p.topic, candleMessages(tf, candles))
}

// candleMessages keys events by symbol and labels them, so sinks can route
// by header without decoding the payload.
func candleMessages(tf drepo.Timeframe, candles []*models.Candle) []pkgkafka.Message {
	headers := map[string]string{"event": "candle", "timeframe": tf.String()}
	msgs := make([]pkgkafka.Message, 0, len(candles))
	for _, c := range candles {
		if c == nil {
			continue
		}
		msgs = append(msgs, pkgkafka.Message{
			Key:     []byte(c.Symbol),
			Value:   models.NewCandleEvent(tf.String(), c),
			Headers: headers,
		})
	}
	return msgs
}

func (p *KafkaPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}
