package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	drepo "QuantData/internal/domain/repository"
	"QuantData/internal/usecase"
	"QuantData/pkg/config"
	xhttp "QuantData/pkg/http"
	pkgkafka "QuantData/pkg/kafka"
	applogger "QuantData/pkg/logger"
	"QuantData/pkg/queue"

	"github.com/redis/go-redis/v9"
)

// App owns the long-running lifecycles: serve, worker, watch and consume.
type App struct {
	cfg       *config.Config
	log       *applogger.Logger
	handler   xhttp.Handler
	collector *usecase.StreamCollector
	consumer  *pkgkafka.Consumer
	kh        pkgkafka.MessageHandler
	storage   drepo.Storage
	publisher *queue.RedisQueue
	redis     redis.UniversalClient
	jobs      []queue.Job

	streaming bool
	consuming bool
}

// Deps groups what New needs. Nil members disable the matching lifecycle.
type Deps struct {
	Handler   xhttp.Handler
	Collector *usecase.StreamCollector
	Consumer  *pkgkafka.Consumer
	Kafka     pkgkafka.MessageHandler
	Storage   drepo.Storage
	Publisher *queue.RedisQueue
	Redis     redis.UniversalClient
	Jobs      []queue.Job
}

func New(cfg *config.Config, l *applogger.Logger, d Deps) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{
		cfg:       cfg,
		log:       l,
		handler:   d.Handler,
		collector: d.Collector,
		consumer:  d.Consumer,
		kh:        d.Kafka,
		storage:   d.Storage,
		publisher: d.Publisher,
		redis:     d.Redis,
		jobs:      d.Jobs,
	}
}

func signalContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}

func (a *App) shutdownContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
}

// Serve runs the HTTP API, plus the live stream and the kafka sink when enabled,
// until a signal arrives or the listener fails.
func (a *App) Serve(ctx context.Context) error {
	ctx, stop := signalContext(ctx)
	defer stop()

	if a.handler == nil {
		return errors.New("no http handler configured")
	}
	if a.publisher != nil {
		if err := a.publisher.Start(); err != nil {
			return fmt.Errorf("start job queue: %w", err)
		}
	}
	if a.cfg.Stream.Enabled {
		if err := a.startStream(ctx); err != nil {
			return err
		}
	}
	if a.cfg.Kafka.Consumer.Enabled {
		if err := a.startConsumer(ctx); err != nil {
			return err
		}
	}

	srv := xhttp.NewServer(a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(a.metricsPath()),
		xhttp.WithCORS(true, a.cfg.Server.CORSOrigins...),
		xhttp.WithServerLogger(a.log),
	)
	if err := srv.Start(); err != nil {
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("shutdown signal received")
	case runErr = <-srv.Errors():
	}

	sctx, cancel := a.shutdownContext()
	defer cancel()
	if err := srv.Stop(sctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}
	a.stopAll(sctx)
	return runErr
}

// Worker consumes the redis job queue until a signal arrives.
func (a *App) Worker(ctx context.Context) error {
	ctx, stop := signalContext(ctx)
	defer stop()

	if a.redis == nil {
		return errors.New("worker needs queue.enabled and a reachable redis")
	}
	q := queue.NewRedisConsumer(a.log, &queue.QueueConfig{
		Workers:    a.cfg.Queue.Workers,
		RetryLimit: a.cfg.Queue.RetryLimit,
		RetryDelay: a.cfg.Queue.RetryDelay,
	}, a.redis, a.jobs, queue.WithKeyPrefix(a.cfg.Queue.KeyPrefix))
	if err := q.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	a.log.Info("shutdown signal received")

	sctx, cancel := a.shutdownContext()
	defer cancel()
	return q.Stop(sctx)
}

// Watch streams closed klines into the candle processor until a signal arrives.
func (a *App) Watch(ctx context.Context) error {
	ctx, stop := signalContext(ctx)
	defer stop()

	if err := a.startStream(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	a.log.Info("shutdown signal received")

	sctx, cancel := a.shutdownContext()
	defer cancel()
	a.stopAll(sctx)
	return nil
}

// Consume runs the kafka to clickhouse sink until a signal arrives.
func (a *App) Consume(ctx context.Context) error {
	ctx, stop := signalContext(ctx)
	defer stop()

	if err := a.startConsumer(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	a.log.Info("shutdown signal received")

	sctx, cancel := a.shutdownContext()
	defer cancel()
	a.stopAll(sctx)
	return nil
}

func (a *App) startStream(ctx context.Context) error {
	if a.collector == nil {
		return errors.New("no market stream configured")
	}
	if err := a.collector.Start(ctx); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}
	a.streaming = true
	a.log.Info("stream collector started",
		applogger.String("timeframe", a.cfg.Stream.Timeframe),
		applogger.String("backend", a.collector.Processor().Backend()))
	return nil
}

func (a *App) startConsumer(ctx context.Context) error {
	if a.consumer == nil || a.kh == nil || a.storage == nil {
		return errors.New("kafka consumer needs kafka.consumer.enabled and clickhouse")
	}
	ictx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := a.storage.Init(ictx); err != nil {
		return err
	}
	a.consumer.SetHook(pkgkafka.LoggingHook{Log: a.log, Slow: time.Second})
	a.consumer.RegisterHandler(a.kh)
	if err := a.consumer.Start(); err != nil {
		return fmt.Errorf("start kafka consumer: %w", err)
	}
	a.consuming = true
	a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	return nil
}

// stopAll stops whatever was started. Resources are closed by the DI cleanup.
func (a *App) stopAll(ctx context.Context) {
	if a.streaming {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.log.Warn("collector stop error", applogger.Error(err))
		}
	}
	if a.consuming {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}
	if a.publisher != nil {
		if err := a.publisher.Stop(ctx); err != nil {
			a.log.Warn("job queue stop error", applogger.Error(err))
		}
	}
	a.log.Info("shutdown complete")
}

func (a *App) metricsPath() string {
	if !a.cfg.Metrics.Enabled {
		return ""
	}
	return a.cfg.Metrics.Path
}
