package kafka

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHandler struct {
	topic string
	fails int
	calls int
	seen  [][]byte
}

func (h *stubHandler) Topic() string { return h.topic }

func (h *stubHandler) Handle(_ context.Context, data []byte) error {
	h.calls++
	h.seen = append(h.seen, data)
	if h.calls <= h.fails {
		return errors.New("transient")
	}
	return nil
}

func TestBackoffWithJitterBounds(t *testing.T) {
	min, max := 100*time.Millisecond, time.Second
	for attempt := 1; attempt <= 40; attempt++ {
		d := backoffWithJitter(min, max, attempt)
		assert.LessOrEqual(t, d, max)
		assert.Greater(t, d, time.Duration(0))
	}
	d := backoffWithJitter(min, max, 1)
	assert.GreaterOrEqual(t, d, min/2)
	assert.LessOrEqual(t, d, min)
}

func TestEncodeValue(t *testing.T) {
	b, err := encodeValue("raw")
	require.NoError(t, err)
	assert.Equal(t, []byte("raw"), b)

	b, err = encodeValue(map[string]int{"n": 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":1}`, string(b))

	_, err = encodeValue(make(chan int))
	assert.Error(t, err)
}

func TestNewRequiresBrokers(t *testing.T) {
	_, err := NewProducer()
	assert.Error(t, err)
	_, err = NewConsumer()
	assert.Error(t, err)
}

func TestConsumerRetriesUntilSuccess(t *testing.T) {
	c, err := NewConsumer(
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(3, time.Millisecond, 2*time.Millisecond),
	)
	require.NoError(t, err)
	h := &stubHandler{topic: "candles", fails: 2}
	c.RegisterHandler(h)

	err = c.handleWithRetry(h, kafka.Message{Topic: "candles", Value: []byte("x")})
	assert.NoError(t, err)
	assert.Equal(t, 3, h.calls)
}

func TestConsumerGivesUpAfterRetryMax(t *testing.T) {
	c, err := NewConsumer(
		WithConsumerBrokers([]string{"localhost:9092"}),
		WithConsumerRetry(1, time.Millisecond, time.Millisecond),
	)
	require.NoError(t, err)
	h := &stubHandler{topic: "candles", fails: 10}

	err = c.handleWithRetry(h, kafka.Message{Topic: "candles"})
	assert.Error(t, err)
	assert.Equal(t, 2, h.calls)
}

func TestConsumerRecoversHandlerPanic(t *testing.T) {
	c, err := NewConsumer(WithConsumerBrokers([]string{"localhost:9092"}))
	require.NoError(t, err)
	c.SetHook(HookFuncs{Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
		panic("boom")
	}})
	err = c.handleOnce(&stubHandler{topic: "t"}, kafka.Message{Topic: "t"})
	assert.ErrorContains(t, err, "handler panic")
}

func TestHookChainThreadsPayloadAndRecovers(t *testing.T) {
	var order []string
	upper := HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			order = append(order, "a")
			return ctx, km, append(data, '!'), nil
		},
		After: func(context.Context, string, kafka.Message, []byte, error) { order = append(order, "after-a") },
	}
	second := HookFuncs{
		Before: func(ctx context.Context, _ string, km kafka.Message, data []byte) (context.Context, kafka.Message, []byte, error) {
			order = append(order, "b:"+string(data))
			return ctx, km, data, nil
		},
		After: func(context.Context, string, kafka.Message, []byte, error) { order = append(order, "after-b") },
	}
	chain := NewHookChain(upper, nil, second)

	ctx, _, data, err := chain.BeforeHandle(context.Background(), "t", kafka.Message{}, []byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, "hi!", string(data))
	chain.AfterHandle(ctx, "t", kafka.Message{}, data, nil)
	assert.Equal(t, []string{"a", "b:hi!", "after-b", "after-a"}, order)

	var errs int
	panicky := HookFuncs{
		Before: func(context.Context, string, kafka.Message, []byte) (context.Context, kafka.Message, []byte, error) {
			panic("bad hook")
		},
		Err: func(context.Context, string, kafka.Message, []byte, error) { errs++ },
	}
	_, _, _, err = NewHookChain(panicky).BeforeHandle(context.Background(), "t", kafka.Message{}, nil)
	var he *HookError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, "ERR_PANIC", he.Code)
	assert.Equal(t, 1, errs)
}

func TestExtractTraceID(t *testing.T) {
	msg := kafka.Message{Headers: []kafka.Header{{Key: "trace_id", Value: []byte("abc")}}}
	assert.Equal(t, "abc", ExtractTraceID(msg))
	assert.Empty(t, ExtractTraceID(kafka.Message{}))
}

func TestBuildMessagesStampsTraceAndHeaders(t *testing.T) {
	at := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	msgs, size, err := buildMessages("candles", "job-7", at, []Message{
		{Key: []byte("BTC/USDT"), Value: map[string]float64{"close": 42}, Headers: map[string]string{"timeframe": "1h"}},
		{Key: []byte("ETH/USDT"), Value: "raw"},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, int64(len(`{"close":42}`)+len("raw")), size)

	assert.Equal(t, "job-7", ExtractTraceID(msgs[0]))
	assert.Equal(t, "job-7", ExtractTraceID(msgs[1]))
	assert.Contains(t, msgs[0].Headers, kafka.Header{Key: "timeframe", Value: []byte("1h")})
	assert.Equal(t, "candles", msgs[1].Topic)
	assert.True(t, msgs[1].Time.Equal(at))
}

func TestTraceIDFromContext(t *testing.T) {
	assert.Equal(t, "job-7", traceID(WithTraceID(context.Background(), "job-7")))
	a, b := traceID(context.Background()), traceID(context.Background())
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestProducerOptionsKeepDefaults(t *testing.T) {
	cfg := defaultProducerConfig()
	WithDelivery("", 0, 0)(cfg)
	WithBatching(0, 0, 0)(cfg)
	assert.Equal(t, "gzip", cfg.Compression)
	assert.Equal(t, -1, cfg.RequiredAcks)
	assert.Equal(t, 100, cfg.BatchSize)

	WithDelivery("zstd", 1, 5)(cfg)
	WithBatching(500, 0, 50*time.Millisecond)(cfg)
	assert.Equal(t, kafka.Zstd, parseCompression(cfg.Compression))
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 500, cfg.BatchSize)
	assert.Equal(t, 50*time.Millisecond, cfg.BatchTimeout)
}
