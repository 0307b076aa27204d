package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development" validate:"required"`
	Log         struct {
		Level      string `yaml:"level" default:"info" validate:"oneof=trace debug info warn error fatal panic"`
		Format     string `yaml:"format" default:"console" validate:"oneof=json console"`
		Output     string `yaml:"output" default:"stderr"`
		TimeFormat string `yaml:"time_format"`
		Collector  struct {
			Enabled        bool          `yaml:"enabled"`
			Topic          string        `yaml:"topic" default:"logs"`
			Interval       time.Duration `yaml:"interval" default:"30s"`
			CountThreshold int           `yaml:"count_threshold" default:"100"`
		} `yaml:"collector"`
	} `yaml:"log"`
	Data struct {
		Root       string `yaml:"root" default:"data/crypto/USDT" validate:"required"`
		ResultsDir string `yaml:"results_dir" default:"results"`
		BundleDir  string `yaml:"bundle_dir" default:"bundles"`
	} `yaml:"data"`
	Exchange struct {
		Name           string        `yaml:"name" default:"binance" validate:"oneof=binance"`
		BaseURL        string        `yaml:"base_url" default:"https://api.binance.com" validate:"url"`
		StreamURL      string        `yaml:"stream_url" default:"wss://stream.binance.com:9443"`
		VisionURL      string        `yaml:"vision_url" default:"https://data.binance.vision/data/spot" validate:"url"`
		RateLimit      time.Duration `yaml:"rate_limit" default:"100ms"`
		Timeout        time.Duration `yaml:"timeout" default:"30s"`
		MaxRetries     int           `yaml:"max_retries" default:"3" validate:"gte=0,lte=10"`
		RetryBackoff   time.Duration `yaml:"retry_backoff" default:"1s"`
		PageLimit      int           `yaml:"page_limit" default:"1000" validate:"gte=1,lte=1000"`
		Symbols        []string      `yaml:"symbols"`
		Quotes         []string      `yaml:"quotes" default:"[\"USDT\",\"USDC\",\"USD\"]"`
		MarketsTTL     time.Duration `yaml:"markets_ttl" default:"1h"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
	} `yaml:"exchange"`
	Fetch struct {
		Timeframe  string `yaml:"timeframe" default:"1h"`
		DaysBack   int    `yaml:"days_back" default:"365" validate:"gte=1"`
		Overlap    int    `yaml:"overlap" default:"1" validate:"gte=0"`
		IncludeNow bool   `yaml:"include_now"`
		Workers    int    `yaml:"workers" default:"4" validate:"gte=1,lte=32"`
	} `yaml:"fetch"`
	Validation struct {
		Timeframes   []string `yaml:"timeframes" default:"[\"1h\",\"1d\"]"`
		RiskFreeRate float64  `yaml:"risk_free_rate" default:"0.02"`
	} `yaml:"validation"`
	Bundles struct {
		Period   string        `yaml:"period" default:"daily" validate:"oneof=daily monthly"`
		DaysBack int           `yaml:"days_back" default:"30" validate:"gte=1"`
		Pause    time.Duration `yaml:"pause" default:"50ms"`
		Symbols  []string      `yaml:"symbols" default:"[\"BTCUSDT\",\"ETHUSDT\",\"BNBUSDT\",\"XRPUSDT\",\"ADAUSDT\"]"`
	} `yaml:"bundles"`
	Server struct {
		Port            int           `yaml:"port" default:"8080" validate:"gte=1,lte=65535"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"30s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"10s"`
		JobRateLimit    time.Duration `yaml:"job_rate_limit" default:"2s"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Stream struct {
		Enabled   bool    `yaml:"enabled"`
		Timeframe string  `yaml:"timeframe" default:"1m"`
		MaxRate   float64 `yaml:"max_rate" default:"50"`
	} `yaml:"stream"`
	Backend struct {
		Type         string        `yaml:"type" default:"none" validate:"oneof=none kafka clickhouse"`
		BatchSize    int           `yaml:"batch_size" default:"500"`
		BatchTimeout time.Duration `yaml:"batch_timeout" default:"1s"`
	} `yaml:"backend"`
	Kafka struct {
		Brokers      []string `yaml:"brokers" default:"[\"localhost:9092\"]"`
		Topic        string   `yaml:"topic" default:"candles"`
		RequiredAcks int      `yaml:"required_acks" default:"-1"`
		Compression  string   `yaml:"compression" default:"snappy"`
		Producer     struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"10"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id" default:"quantdata-candles"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"1000"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"candles.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"quantdata"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"30s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"30s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"60s"`
	} `yaml:"clickhouse"`
	Cache struct {
		Type        string        `yaml:"type" default:"memory" validate:"oneof=memory redis layered"`
		TTL         time.Duration `yaml:"ttl" default:"5m"`
		MaxSize     int           `yaml:"max_size" default:"1000"`
		RedisHost   string        `yaml:"redis_host" default:"localhost"`
		RedisPort   int           `yaml:"redis_port" default:"6379"`
		RedisPass   string        `yaml:"redis_password"`
		RedisDB     int           `yaml:"redis_db"`
		LockTimeout time.Duration `yaml:"lock_timeout" default:"10m"`
	} `yaml:"cache"`
	Queue struct {
		Enabled    bool          `yaml:"enabled"`
		Workers    int           `yaml:"workers" default:"2"`
		RetryLimit int           `yaml:"retry_limit" default:"3"`
		RetryDelay time.Duration `yaml:"retry_delay" default:"30s"`
		KeyPrefix  string        `yaml:"key_prefix" default:"quantdata:jobs"`
	} `yaml:"queue"`
}

var validate = validator.New()

// Default returns a config populated only from struct defaults.
func Default() *Config {
	var c Config
	_ = defaults.Set(&c)
	return &c
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes, applies defaults and validates.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
// A missing file falls back to defaults so the CLI works out of the box.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		c = Default()
	}

	if v := os.Getenv("QD_ENV"); v != "" {
		c.Environment = v
	}
	if v := os.Getenv("QD_DATA_ROOT"); v != "" {
		c.Data.Root = v
	}
	if v := os.Getenv("QD_SYMBOLS"); v != "" {
		c.Exchange.Symbols = splitList(v)
	}
	if v := os.Getenv("QD_BACKEND"); v != "" {
		c.Backend.Type = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("KAFKA_TOPIC"); v != "" {
		c.Kafka.Topic = v
	}
	if v := os.Getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := os.Getenv("REDIS_HOST"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		c.Cache.RedisHost = host
		if ok {
			if p, err := strconv.Atoi(port); err == nil {
				c.Cache.RedisPort = p
			}
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

// Validate checks struct tags plus the cross-field rules tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Backend.Type == "kafka" && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when backend.type is kafka")
	}
	if c.Backend.Type == "clickhouse" && c.ClickHouse.Database == "" {
		return fmt.Errorf("clickhouse.database is required when backend.type is clickhouse")
	}
	if c.Log.Collector.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("log.collector requires kafka.brokers")
	}
	return nil
}

// RedisAddr joins the cache redis host and port.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Cache.RedisHost, c.Cache.RedisPort)
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
