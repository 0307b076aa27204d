package logger

import (
	"context"
	"fmt"
	"hash/fnv"
	"os"
	"sort"
	"sync"
	"time"
)

const publishTimeout = 30 * time.Second

// DefaultGroupBy are the fields that tell two pipeline events apart. Fields
// such as page cursors or row counts change on every call and would defeat
// aggregation.
var DefaultGroupBy = []string{"symbol", "base", "timeframe", "exchange", "topic", "error"}

// Publisher ships log digests somewhere, usually a Kafka topic.
type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval, 30s when unset
	CountThreshold int           // distinct events that force an early flush, 100 when unset
	Topic          string
	Publisher      Publisher
	GroupBy        []string // DefaultGroupBy when empty
}

type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogDigest is one published batch, most frequent events first.
type LogDigest struct {
	Host    string               `json:"host"`
	From    time.Time            `json:"from"`
	To      time.Time            `json:"to"`
	Entries []AggregatedLogEntry `json:"entries"`
}

// LogCollector folds repeated warnings and errors into counted entries and
// publishes them as a LogDigest every interval.
type LogCollector struct {
	cfg     CollectionConfig
	host    string
	mu      sync.Mutex
	entries map[uint64]*AggregatedLogEntry
	since   time.Time
	flushCh chan struct{}
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	cfg := *config
	if cfg.TimeInterval <= 0 {
		cfg.TimeInterval = 30 * time.Second
	}
	if cfg.CountThreshold <= 0 {
		cfg.CountThreshold = 100
	}
	if len(cfg.GroupBy) == 0 {
		cfg.GroupBy = DefaultGroupBy
	}
	cfg.GroupBy = append([]string(nil), cfg.GroupBy...)
	sort.Strings(cfg.GroupBy)
	host, _ := os.Hostname()

	c := &LogCollector{
		cfg:     cfg,
		host:    host,
		entries: make(map[uint64]*AggregatedLogEntry),
		since:   time.Now().UTC(),
		flushCh: make(chan struct{}, 1),
		done:    make(chan struct{}),
	}
	c.wg.Add(1)
	go c.run()
	return c
}

func (c *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now().UTC()
	key := c.key(level, message, fields, caller)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		e.Count++
		e.LastSeen = now
	} else {
		c.entries[key] = &AggregatedLogEntry{
			Level:     level,
			Message:   message,
			Fields:    fields,
			Caller:    caller,
			Count:     1,
			FirstSeen: now,
			LastSeen:  now,
		}
	}
	full := len(c.entries) >= c.cfg.CountThreshold
	c.mu.Unlock()

	if full {
		select {
		case c.flushCh <- struct{}{}:
		default:
		}
	}
}

func (c *LogCollector) key(level, message string, fields map[string]interface{}, caller string) uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00%s\x00%s", level, message, caller)
	for _, k := range c.cfg.GroupBy {
		if v, ok := fields[k]; ok {
			fmt.Fprintf(h, "\x00%s=%v", k, v)
		}
	}
	return h.Sum64()
}

func (c *LogCollector) run() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.cfg.TimeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.flush()
		case <-c.flushCh:
			c.flush()
		case <-c.done:
			c.flush()
			return
		}
	}
}

// take swaps out the collected entries. It returns nil when nothing was seen.
func (c *LogCollector) take() *LogDigest {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) == 0 {
		return nil
	}
	now := time.Now().UTC()
	d := &LogDigest{Host: c.host, From: c.since, To: now, Entries: make([]AggregatedLogEntry, 0, len(c.entries))}
	for _, e := range c.entries {
		d.Entries = append(d.Entries, *e)
	}
	c.entries = make(map[uint64]*AggregatedLogEntry)
	c.since = now

	sort.Slice(d.Entries, func(i, j int) bool {
		if d.Entries[i].Count != d.Entries[j].Count {
			return d.Entries[i].Count > d.Entries[j].Count
		}
		return d.Entries[i].FirstSeen.Before(d.Entries[j].FirstSeen)
	})
	return d
}

func (c *LogCollector) flush() {
	d := c.take()
	if d == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := c.cfg.Publisher.PublishMessage(ctx, c.cfg.Topic, d); err != nil {
		// the logger cannot log its own shipping failure
		fmt.Fprintf(os.Stderr, "log collector: publish to %s failed: %v\n", c.cfg.Topic, err)
	}
}

// Close publishes what is left and stops the flusher.
func (c *LogCollector) Close() {
	c.once.Do(func() { close(c.done) })
	c.wg.Wait()
}
