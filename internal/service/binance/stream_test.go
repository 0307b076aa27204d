package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamEmitsClosedKlines(t *testing.T) {
	upgrader := websocket.Upgrader{}
	subscribed := make(chan subscribeRequest, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if !assert.NoError(t, err) {
			return
		}
		defer conn.Close()

		var req subscribeRequest
		if !assert.NoError(t, conn.ReadJSON(&req)) {
			return
		}
		subscribed <- req

		frames := []string{
			`{"result":null,"id":1}`,
			`{"stream":"btcusdt@kline_1m","data":{"e":"kline","s":"BTCUSDT","k":{"t":1704067200000,"o":"1","h":"2","l":"0.5","c":"1.5","v":"10","x":false}}}`,
			`{"stream":"btcusdt@kline_1m","data":{"e":"kline","s":"BTCUSDT","k":{"t":1704067200000,"o":"1","h":"2","l":"0.5","c":"1.8","v":"12","x":true}}}`,
		}
		for _, f := range frames {
			assert.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(f)))
		}
		// keep the socket open until the client goes away
		_, _, _ = conn.ReadMessage()
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	s := NewStream(wsURL, []string{"BTC/USDT"}, "1m", time.Millisecond, time.Hour, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, s.Connect(ctx))
	require.NoError(t, s.Subscribe(ctx))
	assert.True(t, s.IsConnected())

	req := <-subscribed
	assert.Equal(t, "SUBSCRIBE", req.Method)
	assert.Equal(t, []string{"btcusdt@kline_1m"}, req.Params)

	candles, _ := s.Read(ctx)
	select {
	case c := <-candles:
		require.NotNil(t, c)
		assert.Equal(t, "BTC/USDT", c.Symbol)
		assert.Equal(t, 1.8, c.Close)
		assert.Equal(t, 12.0, c.Volume)
	case <-ctx.Done():
		t.Fatal("no candle received")
	}

	require.NoError(t, s.Close())
	assert.False(t, s.IsConnected())
}
