package metrics

import (
	"strconv"
	"sync"

	"QuantData/internal/domain/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements repository.Metrics using Prometheus.
type Recorder struct {
	messagesSent     *prometheus.CounterVec
	errorsTotal      *prometheus.CounterVec
	lastPrice        *prometheus.GaugeVec
	latency          *prometheus.HistogramVec
	candlesFetched   *prometheus.CounterVec
	exchangeRequests *prometheus.CounterVec
	validationIssues *prometheus.CounterVec
}

var (
	once     sync.Once
	recorder *Recorder
)

// New returns the process-wide Prometheus recorder. Collectors register on first use.
func New() *Recorder {
	once.Do(func() {
		recorder = &Recorder{
			messagesSent: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "quantdata_messages_sent_total",
					Help: "Total number of candles sent to a backend",
				},
				[]string{"backend", "symbol"},
			),
			errorsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "quantdata_errors_total",
					Help: "Total number of errors encountered",
				},
				[]string{"type"},
			),
			lastPrice: promauto.NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "quantdata_last_price",
					Help: "Last close seen for a symbol",
				},
				[]string{"symbol"},
			),
			latency: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "quantdata_operation_duration_seconds",
					Help:    "Duration of operations in seconds",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"operation"},
			),
			candlesFetched: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "quantdata_candles_fetched_total",
					Help: "Candles received from the exchange",
				},
				[]string{"symbol", "timeframe"},
			),
			exchangeRequests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "quantdata_exchange_requests_total",
					Help: "Exchange REST requests by outcome",
				},
				[]string{"status"},
			),
			validationIssues: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "quantdata_validation_issues_total",
					Help: "Issues found by dataset validation",
				},
				[]string{"kind"},
			),
		}
	})
	return recorder
}

// RecordMessageSent records a message sent to a backend.
func (r *Recorder) RecordMessageSent(backend, symbol string) {
	r.messagesSent.WithLabelValues(backend, symbol).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLastPrice records the last price for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordCandlesFetched(symbol string, tf repository.Timeframe, n int) {
	r.candlesFetched.WithLabelValues(symbol, string(tf)).Add(float64(n))
}

func (r *Recorder) RecordExchangeRequest(status string) {
	r.exchangeRequests.WithLabelValues(status).Inc()
}

func (r *Recorder) RecordValidationIssues(kind string, n int) {
	if n > 0 {
		r.validationIssues.WithLabelValues(kind).Add(float64(n))
	}
}

// StatusLabel turns an HTTP status code into a metrics label, "error" for transport failures.
func StatusLabel(code int) string {
	if code == 0 {
		return "error"
	}
	return strconv.Itoa(code)
}

// Nop discards every measurement.
type Nop struct{}

func (Nop) RecordMessageSent(string, string)                       {}
func (Nop) RecordError(string)                                     {}
func (Nop) RecordLastPrice(string, float64)                        {}
func (Nop) RecordLatency(string, float64)                          {}
func (Nop) RecordCandlesFetched(string, repository.Timeframe, int) {}
func (Nop) RecordExchangeRequest(string)                           {}
func (Nop) RecordValidationIssues(string, int)                     {}

var (
	_ repository.Metrics = (*Recorder)(nil)
	_ repository.Metrics = Nop{}
)
