package repository

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	"QuantData/internal/domain/models"
	drepo "QuantData/internal/domain/repository"
	pkgch "QuantData/pkg/clickhouse"
)

const (
	chunkSize     = 2000
	candleColumns = "symbol, tf, ts, open, high, low, close, volume, source"
)

// ClickHouseStorage stores candles in one ReplacingMergeTree table keyed by (symbol, tf, ts).
type ClickHouseStorage struct {
	db       *sql.DB
	database string
	table    string
	source   string
}

var (
	_ drepo.Storage      = (*ClickHouseStorage)(nil)
	_ drepo.CandleReader = (*ClickHouseStorage)(nil)
)

func NewClickHouseStorage(db *sql.DB, database, source string) *ClickHouseStorage {
	if source == "" {
		source = "binance"
	}
	return &ClickHouseStorage{db: db, database: database, table: database + ".candles", source: source}
}

// Init creates the database and table when missing.
func (s *ClickHouseStorage) Init(ctx context.Context) error {
	for _, stmt := range pkgch.CandlesSchema(s.database, "candles") {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init candles schema: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseStorage) Store(ctx context.Context, tf drepo.Timeframe, c *models.Candle) error {
	return s.StoreBatch(ctx, tf, []*models.Candle{c})
}

// StoreBatch inserts candles as multi-row VALUES statements of at most 2000 rows.
func (s *ClickHouseStorage) StoreBatch(ctx context.Context, tf drepo.Timeframe, candles []*models.Candle) error {
	for start := 0; start < len(candles); start += chunkSize {
		end := min(start+chunkSize, len(candles))
		q, args := s.insertStatement(tf, candles[start:end])
		if q == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert candles: %w", err)
		}
	}
	return nil
}

func (s *ClickHouseStorage) insertStatement(tf drepo.Timeframe, candles []*models.Candle) (string, []interface{}) {
	values := make([]string, 0, len(candles))
	args := make([]interface{}, 0, len(candles)*9)
	for _, c := range candles {
		if c == nil || c.Symbol == "" || c.Bucket.IsZero() {
			continue
		}
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, c.Symbol, tf.String(), c.Bucket.UTC(),
			nanToZero(c.Open), nanToZero(c.High), nanToZero(c.Low), nanToZero(c.Close), nanToZero(c.Volume),
			s.source)
	}
	if len(values) == 0 {
		return "", nil
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES %s", s.table, candleColumns, strings.Join(values, ",")), args
}

// Query returns candles newest first, limited to limit rows.
func (s *ClickHouseStorage) Query(ctx context.Context, symbol string, tf drepo.Timeframe, from, to time.Time, limit int) ([]*models.Candle, error) {
	q := fmt.Sprintf(`SELECT symbol, ts, open, high, low, close, volume FROM %s FINAL
WHERE symbol = ? AND tf = ? AND ts >= ? AND ts <= ?
ORDER BY ts DESC LIMIT ?`, s.table)
	series, err := s.scan(ctx, q, symbol, tf.String(), from.UTC(), to.UTC(), limit)
	if err != nil {
		return nil, err
	}
	out := make([]*models.Candle, len(series))
	for i := range series {
		out[i] = &series[i]
	}
	return out, nil
}

// GetCandles serves the read API. Zero bounds are open.
func (s *ClickHouseStorage) GetCandles(ctx context.Context, symbol string, tf drepo.Timeframe, from, to time.Time, limit int) (models.Series, error) {
	if to.IsZero() {
		to = time.Now().UTC()
	}
	q := fmt.Sprintf(`SELECT symbol, ts, open, high, low, close, volume FROM %s FINAL
WHERE symbol = ? AND tf = ? AND ts >= ? AND ts <= ?
ORDER BY ts ASC LIMIT ?`, s.table)
	return s.scan(ctx, q, symbol, tf.String(), from.UTC(), to.UTC(), limit)
}

func (s *ClickHouseStorage) GetLatestNCandles(ctx context.Context, symbol string, tf drepo.Timeframe, n int) (models.Series, error) {
	q := fmt.Sprintf(`SELECT symbol, ts, open, high, low, close, volume FROM %s FINAL
WHERE symbol = ? AND tf = ?
ORDER BY ts DESC LIMIT ?`, s.table)
	out, err := s.scan(ctx, q, symbol, tf.String(), n)
	if err != nil {
		return nil, err
	}
	out.Sort()
	return out, nil
}

func (s *ClickHouseStorage) scan(ctx context.Context, q string, args ...interface{}) (models.Series, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	var out models.Series
	for rows.Next() {
		var c models.Candle
		if err := rows.Scan(&c.Symbol, &c.Bucket, &c.Open, &c.High, &c.Low, &c.Close, &c.Volume); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.Bucket = c.Bucket.UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return out, nil
}

func (s *ClickHouseStorage) Health(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close is a no-op; the pool belongs to pkg/clickhouse.Client.
func (s *ClickHouseStorage) Close() error { return nil }

func nanToZero(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
