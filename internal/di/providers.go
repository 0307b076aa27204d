package di

import (
	"context"
	"fmt"
	"time"

	"QuantData/internal/domain/models"
	drepo "QuantData/internal/domain/repository"
	"QuantData/internal/handler/api"
	mid "QuantData/internal/middleware"
	internalrepo "QuantData/internal/repository"
	"QuantData/internal/service/binance"
	"QuantData/internal/service/bundles"
	"QuantData/internal/service/ratelimit"
	"QuantData/internal/usecase"
	"QuantData/pkg/cache"
	pkgch "QuantData/pkg/clickhouse"
	"QuantData/pkg/config"
	xhttp "QuantData/pkg/http"
	pkgkafka "QuantData/pkg/kafka"
	applogger "QuantData/pkg/logger"
	"QuantData/pkg/metrics"
	"QuantData/pkg/queue"
	"QuantData/pkg/server"

	"github.com/redis/go-redis/v9"
)

// Toolkit holds the batch use cases behind the one-shot CLI commands.
type Toolkit struct {
	Logger      *applogger.Logger
	Fetcher     *usecase.Fetcher
	Updater     *usecase.Updater
	Validator   *usecase.Validator
	Summarizer  *usecase.Summarizer
	OnePager    *usecase.OnePager
	Downloader  *bundles.Downloader
	Importer    *bundles.Importer
	Partitioner *bundles.Partitioner
	Processor   *usecase.CandleProcessor
}

// ProvideKafkaProducer creates a Kafka producer when the kafka backend or the
// log collector needs one. Otherwise it returns nil.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if cfg.Backend.Type != usecase.BackendKafka && !cfg.Log.Collector.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithDelivery(cfg.Kafka.Compression, cfg.Kafka.RequiredAcks, cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideLogger builds the zerolog logger and, when enabled, ships aggregated
// warnings and errors to the logs topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, func(), error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: cfg.Log.TimeFormat,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}
	if cfg.Log.Collector.Enabled && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Log.Collector.Interval,
			CountThreshold: cfg.Log.Collector.CountThreshold,
			Topic:          cfg.Log.Collector.Topic,
			Publisher:      producer,
		})
	}
	return l, l.RemoveCollector, nil
}

func ProvideMetrics() drepo.Metrics {
	return metrics.New()
}

// ProvideCache builds the configured cache backend.
func ProvideCache(cfg *config.Config) (cache.Service, func(), error) {
	switch cfg.Cache.Type {
	case "redis", "layered":
		rc, err := cache.NewRedisCache(
			cache.WithRedisAddr(cfg.Cache.RedisHost, cfg.Cache.RedisPort),
			cache.WithRedisAuth(cfg.Cache.RedisPass, cfg.Cache.RedisDB),
			cache.WithRedisPrefix("quantdata"),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("redis cache: %w", err)
		}
		if cfg.Cache.Type == "redis" {
			return rc, func() { _ = rc.Close() }, nil
		}
		lc := cache.NewLayeredCache(rc, cache.WithLayeredMemorySize(cfg.Cache.MaxSize))
		return lc, func() { _ = lc.Close() }, nil
	default:
		mc := cache.NewMemoryCache(cache.WithMemoryMaxSize(cfg.Cache.MaxSize))
		return mc, func() { _ = mc.Close() }, nil
	}
}

// ProvideRedisClient returns the job queue connection, or nil when the queue is disabled.
func ProvideRedisClient(cfg *config.Config) (redis.UniversalClient, func(), error) {
	if !cfg.Queue.Enabled {
		return nil, func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Cache.RedisPass,
		DB:       cfg.Cache.RedisDB,
	})
	return client, func() { _ = client.Close() }, nil
}

// ProvideClickHouseClient opens ClickHouse when the backend or the kafka sink needs it.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if cfg.Backend.Type != usecase.BackendClickHouse && !cfg.Kafka.Consumer.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port, cfg.ClickHouse.UseHTTP),
		pkgch.WithAuth(cfg.ClickHouse.Database, cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithPool(10, 5, 0),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

// ProvideStorage returns the ClickHouse candle storage, or nil without a client.
func ProvideStorage(client *pkgch.Client, cfg *config.Config) (drepo.Storage, error) {
	if client == nil {
		return nil, nil
	}
	store := internalrepo.NewClickHouseStorage(client.DB(), cfg.ClickHouse.Database, cfg.Exchange.Name)
	if cfg.Backend.Type == usecase.BackendClickHouse {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := store.Init(ctx); err != nil {
			return nil, fmt.Errorf("clickhouse schema: %w", err)
		}
	}
	return store, nil
}

// ProvidePublisher returns the Kafka candle publisher for the kafka backend, else nil.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) drepo.Publisher {
	if producer == nil || cfg.Backend.Type != usecase.BackendKafka {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.Topic)
}

func ProvideCandleProcessor(pub drepo.Publisher, store drepo.Storage, m drepo.Metrics, cfg *config.Config) *usecase.CandleProcessor {
	return usecase.NewCandleProcessor(pub, store, m, cfg.Backend.Type, drepo.NormalizeTimeframe(cfg.Stream.Timeframe))
}

func ProvideCSVStore(cfg *config.Config) *internalrepo.CSVStore {
	return internalrepo.NewCSVStore(cfg.Data.Root)
}

func ProvideManifestStore(cfg *config.Config) *internalrepo.ManifestStore {
	return internalrepo.NewManifestStore(cfg.Data.Root)
}

func ProvideHTTPClient(cfg *config.Config, l *applogger.Logger) *xhttp.Client {
	return xhttp.NewClient(
		xhttp.WithTimeout(cfg.Exchange.Timeout),
		xhttp.WithRetry(cfg.Exchange.MaxRetries, cfg.Exchange.RetryBackoff),
		xhttp.WithLogger(l),
	)
}

// ProvideExchange creates the Binance REST client behind a shared rate limiter.
func ProvideExchange(cfg *config.Config, client *xhttp.Client, m drepo.Metrics, l *applogger.Logger) drepo.OHLCVSource {
	return binance.New(cfg.Exchange.BaseURL, client, ratelimit.NewMinGap(cfg.Exchange.RateLimit),
		binance.WithMetrics(m),
		binance.WithLogger(l),
	)
}

// ProvideFetcher wires the fetcher. Saved candles are forwarded unless the backend is none.
func ProvideFetcher(
	cfg *config.Config,
	source drepo.OHLCVSource,
	store *internalrepo.CSVStore,
	manifests *internalrepo.ManifestStore,
	c cache.Service,
	proc *usecase.CandleProcessor,
	m drepo.Metrics,
	l *applogger.Logger,
) *usecase.Fetcher {
	opts := []usecase.FetcherOption{
		usecase.WithFetcherCache(c),
		usecase.WithFetcherMetrics(m),
		usecase.WithFetcherLogger(l),
	}
	if proc.Backend() != usecase.BackendNone {
		opts = append(opts, usecase.WithSink(proc))
	}
	return usecase.NewFetcher(source, store, manifests, usecase.FetcherConfig{
		PageLimit:  cfg.Exchange.PageLimit,
		Workers:    cfg.Fetch.Workers,
		Quotes:     cfg.Exchange.Quotes,
		MarketsTTL: cfg.Exchange.MarketsTTL,
	}, opts...)
}

func ProvideUpdater(
	cfg *config.Config,
	fetcher *usecase.Fetcher,
	store *internalrepo.CSVStore,
	manifests *internalrepo.ManifestStore,
	c cache.Service,
	l *applogger.Logger,
) *usecase.Updater {
	return usecase.NewUpdater(fetcher, store, manifests, c, cfg.Cache.LockTimeout, l)
}

func ProvideValidator(
	cfg *config.Config,
	store *internalrepo.CSVStore,
	manifests *internalrepo.ManifestStore,
	m drepo.Metrics,
	l *applogger.Logger,
) *usecase.Validator {
	return usecase.NewValidator(store, manifests, cfg.Validation.RiskFreeRate, m, l)
}

func ProvideSummarizer(cfg *config.Config, store *internalrepo.CSVStore, l *applogger.Logger) *usecase.Summarizer {
	return usecase.NewSummarizer(store, cfg.Exchange.Name, l)
}

func ProvideOnePager(store *internalrepo.CSVStore, manifests *internalrepo.ManifestStore, l *applogger.Logger) *usecase.OnePager {
	return usecase.NewOnePager(store, manifests, l)
}

func ProvideDownloader(cfg *config.Config, client *xhttp.Client, l *applogger.Logger) *bundles.Downloader {
	return bundles.NewDownloader(client, cfg.Exchange.VisionURL, l)
}

func ProvideImporter(store *internalrepo.CSVStore, manifests *internalrepo.ManifestStore, l *applogger.Logger) *bundles.Importer {
	return bundles.NewImporter(store, manifests, l)
}

func ProvidePartitioner(store *internalrepo.CSVStore, l *applogger.Logger) *bundles.Partitioner {
	return bundles.NewPartitioner(store, l)
}

// ProvideCandleReader serves the API from ClickHouse for the clickhouse backend,
// otherwise from the canonical CSV files.
func ProvideCandleReader(cfg *config.Config, store *internalrepo.CSVStore, storage drepo.Storage) drepo.CandleReader {
	if cfg.Backend.Type == usecase.BackendClickHouse {
		if r, ok := storage.(drepo.CandleReader); ok {
			return r
		}
	}
	return store
}

func ProvideCandlesUseCase(r drepo.CandleReader) *usecase.CandlesUseCase {
	return usecase.NewCandlesUseCase(r)
}

// ProvideJobs lists the jobs a worker can run.
func ProvideJobs(cfg *config.Config, updater *usecase.Updater, importer *bundles.Importer, onepager *usecase.OnePager) []queue.Job {
	return []queue.Job{
		usecase.UpdateSymbolsJob(updater),
		usecase.ImportBundlesJob(importer, cfg.Data.BundleDir),
		usecase.GenerateOnePagerJob(onepager, OnePagerPath(cfg)),
	}
}

// OnePagerPath is where generate-onepager writes by default.
func OnePagerPath(cfg *config.Config) string {
	return cfg.Data.ResultsDir + "/data_onepager.md"
}

// ProvideJobPublisher returns a producer-only queue for the API, or nil without redis.
func ProvideJobPublisher(cfg *config.Config, client redis.UniversalClient, l *applogger.Logger) *queue.RedisQueue {
	if client == nil {
		return nil
	}
	return queue.NewRedisQueue(l, nil, client, queue.ModeProducerOnly, queue.WithKeyPrefix(cfg.Queue.KeyPrefix))
}

func ProvideHTTPHandler(
	cfg *config.Config,
	l *applogger.Logger,
	candles *usecase.CandlesUseCase,
	store *internalrepo.CSVStore,
	manifests *internalrepo.ManifestStore,
	onepager *usecase.OnePager,
	c cache.Service,
	publisher *queue.RedisQueue,
	updater *usecase.Updater,
	storage drepo.Storage,
) xhttp.Handler {
	opts := []api.HandlerOption{
		api.WithCache(c, cfg.Cache.TTL),
		api.WithJobLimiter(ratelimit.NewMinGap(cfg.Server.JobRateLimit)),
	}
	if publisher != nil {
		opts = append(opts, api.WithJobQueue(publisher))
	} else {
		opts = append(opts, api.WithInlineUpdater(updater))
	}
	if storage != nil {
		opts = append(opts, api.WithBackendHealth(storage))
	}
	return api.NewCandlesEchoHandler(l, candles, store, manifests, onepager, opts...)
}

// ProvideMarketStream subscribes to the configured symbols, or the first five default bases.
func ProvideMarketStream(cfg *config.Config, l *applogger.Logger) drepo.MarketStream {
	symbols := cfg.Exchange.Symbols
	if len(symbols) == 0 {
		for _, base := range usecase.DefaultBases[:5] {
			symbols = append(symbols, base+"/"+models.DefaultQuote)
		}
	}
	return binance.NewStream(
		cfg.Exchange.StreamURL,
		symbols,
		drepo.NormalizeTimeframe(cfg.Stream.Timeframe),
		cfg.Exchange.ReconnectDelay,
		cfg.Exchange.PingInterval,
		l,
	)
}

// ProvideStreamCollector puts the realtime pipeline between the stream and the processor.
func ProvideStreamCollector(
	cfg *config.Config,
	stream drepo.MarketStream,
	proc *usecase.CandleProcessor,
	m drepo.Metrics,
	l *applogger.Logger,
) *usecase.StreamCollector {
	pipe := mid.NewRealtimePipeline(proc, m,
		mid.WithMaxRate(cfg.Stream.MaxRate),
		mid.WithBufferSize(2000),
		mid.WithPipelineLogger(l),
	)
	return usecase.NewStreamCollector(stream, proc, m, pipe, l)
}

// ProvideKafkaConsumer creates the candles consumer when kafka.consumer.enabled is set.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideKafkaCandlesHandler returns the sink handler, or nil without storage.
func ProvideKafkaCandlesHandler(cfg *config.Config, storage drepo.Storage, m drepo.Metrics) pkgkafka.MessageHandler {
	if storage == nil {
		return nil
	}
	return usecase.NewKafkaCandlesHandler(cfg.Kafka.Topic, storage, m)
}

func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler xhttp.Handler,
	collector *usecase.StreamCollector,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	storage drepo.Storage,
	publisher *queue.RedisQueue,
	client redis.UniversalClient,
	jobs []queue.Job,
) *server.App {
	return server.New(cfg, l, server.Deps{
		Handler:   handler,
		Collector: collector,
		Consumer:  consumer,
		Kafka:     kh,
		Storage:   storage,
		Publisher: publisher,
		Redis:     client,
		Jobs:      jobs,
	})
}
