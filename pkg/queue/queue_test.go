package queue

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type updatePayload struct {
	Symbols   []string `json:"symbols"`
	Timeframe string   `json:"timeframe"`
}

func TestParsePayload(t *testing.T) {
	p, err := ParsePayload[updatePayload](json.RawMessage(`{"symbols":["BTC"],"timeframe":"1d"}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"BTC"}, p.Symbols)
	assert.Equal(t, "1d", p.Timeframe)

	empty, err := ParsePayload[updatePayload](nil)
	require.NoError(t, err)
	assert.Empty(t, empty.Symbols)

	_, err = ParsePayload[updatePayload](json.RawMessage(`{bad`))
	assert.Error(t, err)
}

func TestNewMessageEncodesPayload(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	msg, err := newMessage("id-1", "update_symbols", updatePayload{Timeframe: "1h"}, now)
	require.NoError(t, err)
	assert.JSONEq(t, `{"symbols":null,"timeframe":"1h"}`, string(msg.Payload))
	assert.Equal(t, now, msg.Timestamp)

	msg, err = newMessage("id-2", "x", json.RawMessage(`{"a":1}`), now)
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(msg.Payload))

	_, err = newMessage("id-3", "x", func() {}, now)
	assert.Error(t, err)
}

func TestStatusOf(t *testing.T) {
	now := time.Now()
	st := statusOf(Message{ID: "a", Type: "t", Attempts: 2}, StateRetrying, errors.New("boom"), now)
	assert.Equal(t, StateRetrying, st.State)
	assert.Equal(t, 2, st.Attempts)
	assert.Equal(t, "boom", st.Error)
}

func TestKeysUsePrefix(t *testing.T) {
	q := NewRedisQueue(nil, nil, redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), ModeConsumerOnly, WithKeyPrefix("qd:test"))
	assert.Equal(t, "qd:test:messages", q.queueKey())
	assert.Equal(t, "qd:test:retry", q.retryKey())
	assert.Equal(t, "qd:test:dlq", q.deadLetterKey())
	assert.Equal(t, "qd:test:status:abc", q.statusKey("abc"))
	assert.Equal(t, 1, q.config.Workers)
}

func TestPublishRequiresRunningQueue(t *testing.T) {
	q := NewRedisQueue(nil, nil, redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), ModeProducerOnly)
	_, err := q.PublishMessage(context.Background(), "update_symbols", nil)
	assert.ErrorContains(t, err, "not running")
}

func TestRegisterJobIgnoredForProducer(t *testing.T) {
	q := NewRedisQueue(nil, nil, redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"}), ModeProducerOnly)
	q.RegisterJob(JobFunc{JobName: "u", JobType: "update_symbols", Fn: func(context.Context, json.RawMessage) error { return nil }})
	assert.Empty(t, q.jobs)
}

func TestJobIDOnContext(t *testing.T) {
	assert.Empty(t, JobID(context.Background()))
	assert.Equal(t, "6f1c", JobID(withJobID(context.Background(), "6f1c")))
}
