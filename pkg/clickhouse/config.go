package clickhouse

import (
	"net"
	"strconv"
	"time"
)

const (
	nativePort = 9000
	httpPort   = 8123
)

// ClientConfig addresses the ClickHouse server that stores candles.
type ClientConfig struct {
	Host            string
	Port            int // 0 picks the protocol default
	Database        string
	User            string
	Password        string
	UseHTTP         bool
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	DialTimeout     time.Duration
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	// AsyncInsert lets the server buffer small candle batches from the stream.
	AsyncInsert  bool
	WaitForAsync bool
	MaxExecTime  time.Duration
}

func defaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Database:        "default",
		User:            "default",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		DialTimeout:     5 * time.Second,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
	}
}

// Addr resolves the port for the chosen protocol. The native default port
// switches to 8123 over HTTP.
func (c *ClientConfig) Addr() string {
	port := c.Port
	if c.UseHTTP && (port == 0 || port == nativePort) {
		port = httpPort
	}
	if port == 0 {
		port = nativePort
	}
	return net.JoinHostPort(c.Host, strconv.Itoa(port))
}

type ClientOption func(*ClientConfig)

// WithAddr selects host, port and protocol.
func WithAddr(host string, port int, useHTTP bool) ClientOption {
	return func(c *ClientConfig) {
		c.Host = host
		c.Port = port
		c.UseHTTP = useHTTP
	}
}

// WithAuth selects the database and the account used to write candles.
func WithAuth(database, user, password string) ClientOption {
	return func(c *ClientConfig) {
		if database != "" {
			c.Database = database
		}
		if user != "" {
			c.User = user
		}
		c.Password = password
	}
}

func WithPool(maxOpen, maxIdle int, lifetime time.Duration) ClientOption {
	return func(c *ClientConfig) {
		c.MaxOpenConns = maxOpen
		c.MaxIdleConns = maxIdle
		if lifetime > 0 {
			c.ConnMaxLifetime = lifetime
		}
	}
}

// WithTimeouts overrides the non-zero timeouts.
func WithTimeouts(dial, read, write time.Duration) ClientOption {
	return func(c *ClientConfig) {
		for dst, d := range map[*time.Duration]time.Duration{&c.DialTimeout: dial, &c.ReadTimeout: read, &c.WriteTimeout: write} {
			if d > 0 {
				*dst = d
			}
		}
	}
}

// WithAsyncInsert sets async_insert and wait_for_async_insert.
func WithAsyncInsert(enabled, wait bool) ClientOption {
	return func(c *ClientConfig) {
		c.AsyncInsert = enabled
		c.WaitForAsync = wait
	}
}

// WithMaxExecutionTime bounds each query server side.
func WithMaxExecutionTime(d time.Duration) ClientOption {
	return func(c *ClientConfig) { c.MaxExecTime = d }
}
