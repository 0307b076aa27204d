package repository

import (
	"context"
	"errors"
	"time"

	"QuantData/internal/domain/models"
)

var (
	// ErrNoData is returned when a symbol has no stored candles.
	ErrNoData = errors.New("no data")
	// ErrLocked is returned when another run holds the update lock for a symbol.
	ErrLocked = errors.New("symbol is locked by another run")
)

// OHLCVSource is an exchange REST API that serves historical candles.
type OHLCVSource interface {
	Name() string
	// FetchOHLCV returns up to limit candles opening at or after since. A zero since asks for the latest page.
	FetchOHLCV(ctx context.Context, symbol string, tf Timeframe, since time.Time, limit int) (models.Series, error)
	// Markets lists tradable pairs as BASE/QUOTE.
	Markets(ctx context.Context) ([]string, error)
}

// MarketStream delivers closed candles in real time.
type MarketStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.Candle, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

type Publisher interface {
	Publish(ctx context.Context, tf Timeframe, c *models.Candle) error
	PublishBatch(ctx context.Context, tf Timeframe, candles []*models.Candle) error
	Close() error
}

type Storage interface {
	Init(ctx context.Context) error
	Store(ctx context.Context, tf Timeframe, c *models.Candle) error
	StoreBatch(ctx context.Context, tf Timeframe, candles []*models.Candle) error
	Query(ctx context.Context, symbol string, tf Timeframe, from, to time.Time, limit int) ([]*models.Candle, error)
	Health(ctx context.Context) error
	Close() error
}

type Metrics interface {
	RecordMessageSent(backend, symbol string)
	RecordError(kind string)
	RecordLastPrice(symbol string, price float64)
	RecordLatency(op string, seconds float64)
	RecordCandlesFetched(symbol string, tf Timeframe, n int)
	RecordExchangeRequest(status string)
	RecordValidationIssues(kind string, n int)
}

// Digest algorithms accepted by CandleStore.Hash.
const (
	HashMD5    = "md5"
	HashSHA256 = "sha256"
)

// CandleFile is a candle series as read from disk, in file order.
type CandleFile struct {
	Path    string
	Columns []string
	Series  models.Series
}

// HasColumn reports whether the file header carried col.
func (f *CandleFile) HasColumn(col string) bool {
	for _, c := range f.Columns {
		if c == col {
			return true
		}
	}
	return false
}

// CandleStore persists the canonical per-symbol candle files.
type CandleStore interface {
	Root() string
	Path(base string, tf Timeframe) string
	Exists(base string, tf Timeframe) bool
	// Read returns ErrNoData when the file does not exist.
	Read(base string, tf Timeframe) (*CandleFile, error)
	Write(base string, tf Timeframe, s models.Series) error
	// Bases lists symbol directories sorted by name.
	Bases() ([]string, error)
	// Timeframes lists the timeframes stored for base.
	Timeframes(base string) ([]Timeframe, error)
	// ReadFile and WriteFile address candle files outside the canonical layout.
	ReadFile(path string) (*CandleFile, error)
	WriteFile(path string, s models.Series) error
	// Hash digests the file at path with md5 or sha256.
	Hash(path, algo string) (string, error)
}

// ManifestStore persists per-symbol manifests.
type ManifestStore interface {
	ReadSymbol(base string, tf Timeframe) (*models.SymbolManifest, error)
	WriteSymbol(base string, tf Timeframe, m *models.SymbolManifest) error
	// WriteFetch stores a run manifest and returns its path.
	WriteFetch(m *models.FetchManifest) (string, error)
}

// Locker serialises work on a key across processes.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}
