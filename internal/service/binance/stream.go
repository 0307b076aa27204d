package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"QuantData/internal/domain/models"
	drepo "QuantData/internal/domain/repository"
	applogger "QuantData/pkg/logger"

	"github.com/gorilla/websocket"
)

// Stream implements MarketStream over the Binance kline websocket.
// Only closed klines are emitted.
type Stream struct {
	streamURL      string
	tf             drepo.Timeframe
	reconnectDelay time.Duration
	pingInterval   time.Duration
	logger         *applogger.Logger

	// exchange symbol (BTCUSDT) -> pair (BTC/USDT)
	pairs map[string]string

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

// NewStream creates a kline stream for symbols at tf.
func NewStream(streamURL string, symbols []string, tf drepo.Timeframe, reconnectDelay, pingInterval time.Duration, l *applogger.Logger) *Stream {
	if l == nil {
		l = applogger.Nop()
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	pairs := make(map[string]string, len(symbols))
	for _, s := range symbols {
		pair := models.NormalizeSymbol(s)
		pairs[models.ExchangeSymbol(pair)] = pair
	}
	return &Stream{
		streamURL:      strings.TrimRight(streamURL, "/"),
		tf:             tf,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		logger:         l,
		pairs:          pairs,
	}
}

// Connect establishes the websocket connection.
func (s *Stream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.streamURL+"/stream", nil)
	if err != nil {
		return fmt.Errorf("binance stream connect: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()
	s.logger.Info("binance stream connected", applogger.String("url", s.streamURL))
	return nil
}

type subscribeRequest struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int      `json:"id"`
}

// Subscribe asks for <symbol>@kline_<tf> of every configured symbol.
func (s *Stream) Subscribe(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil || !s.connected {
		return fmt.Errorf("binance stream not connected")
	}
	params := make([]string, 0, len(s.pairs))
	for sym := range s.pairs {
		params = append(params, fmt.Sprintf("%s@kline_%s", strings.ToLower(sym), s.tf))
	}
	if err := s.conn.WriteJSON(subscribeRequest{Method: "SUBSCRIBE", Params: params, ID: 1}); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	s.logger.Info("binance stream subscribed", applogger.Strings("streams", params))
	return nil
}

type klineEnvelope struct {
	Stream string `json:"stream"`
	Data   struct {
		Event  string `json:"e"`
		Symbol string `json:"s"`
		Kline  struct {
			Start  int64  `json:"t"`
			Open   string `json:"o"`
			High   string `json:"h"`
			Low    string `json:"l"`
			Close  string `json:"c"`
			Volume string `json:"v"`
			Closed bool   `json:"x"`
		} `json:"k"`
	} `json:"data"`
}

// Read streams closed candles and errors. Both channels close when the read loop ends.
func (s *Stream) Read(ctx context.Context) (<-chan *models.Candle, <-chan error) {
	candles := make(chan *models.Candle, 1024)
	errs := make(chan error, 1)

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	done := make(chan struct{})

	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			case <-ticker.C:
				if conn != nil {
					_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
				}
			}
		}
	}()

	go func() {
		defer close(candles)
		defer close(errs)
		defer close(done)
		if conn == nil {
			errs <- fmt.Errorf("binance stream not connected")
			return
		}
		go func() {
			select {
			case <-ctx.Done():
				_ = conn.Close()
			case <-done:
			}
		}()
		for {
			var env klineEnvelope
			if err := conn.ReadJSON(&env); err != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("binance stream read: %w", err)
				}
				return
			}
			if env.Data.Event != "kline" || !env.Data.Kline.Closed {
				continue
			}
			c, err := s.toCandle(&env)
			if err != nil {
				s.logger.Warn("binance stream bad kline", applogger.String("stream", env.Stream), applogger.Error(err))
				continue
			}
			select {
			case candles <- c:
			default:
				s.logger.Warn("binance stream backpressure, dropping candle", applogger.String("symbol", c.Symbol))
			}
		}
	}()

	return candles, errs
}

func (s *Stream) toCandle(env *klineEnvelope) (*models.Candle, error) {
	k := env.Data.Kline
	vals := make([]float64, 5)
	for i, raw := range []string{k.Open, k.High, k.Low, k.Close, k.Volume} {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, err
		}
		vals[i] = v
	}
	pair, ok := s.pairs[env.Data.Symbol]
	if !ok {
		pair = models.NormalizeSymbol(models.BaseFromPair(env.Data.Symbol, models.DefaultQuote))
	}
	return &models.Candle{
		Bucket: time.UnixMilli(k.Start).UTC(),
		Symbol: pair,
		Open:   vals[0],
		High:   vals[1],
		Low:    vals[2],
		Close:  vals[3],
		Volume: vals[4],
	}, nil
}

// Reconnect closes, waits the reconnect delay and subscribes again.
func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(s.reconnectDelay):
	}
	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx)
}

// Close closes the websocket.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	if s.conn != nil {
		err := s.conn.Close()
		s.conn = nil
		return err
	}
	return nil
}

func (s *Stream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

var _ drepo.MarketStream = (*Stream)(nil)
