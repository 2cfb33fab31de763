package di

import (
	"context"
	"fmt"
	"time"

	"SignalFuse/internal/domain/models"
	drepo "SignalFuse/internal/domain/repository"
	dservice "SignalFuse/internal/domain/service"
	"SignalFuse/internal/handler/api"
	internalrepo "SignalFuse/internal/repository"
	"SignalFuse/internal/service/quotes"
	"SignalFuse/internal/service/scoring"
	"SignalFuse/internal/usecase"
	"SignalFuse/pkg/cache"
	pkgch "SignalFuse/pkg/clickhouse"
	"SignalFuse/pkg/config"
	xhttp "SignalFuse/pkg/http"
	pkgkafka "SignalFuse/pkg/kafka"
	"SignalFuse/pkg/logger"
	"SignalFuse/pkg/metrics"
	"SignalFuse/pkg/queue"
	"SignalFuse/pkg/server"
)

// Stores bundles the persistence interfaces. CH is nil for the memory backend.
type Stores struct {
	Events drepo.EventStore
	Ticks  drepo.TickStore
	Watch  drepo.Watchlist
	CH     *pkgch.Client
}

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() drepo.Metrics {
	return metrics.New()
}

// ProvideAuditLog creates the run audit log.
func ProvideAuditLog(l *logger.Logger) drepo.AuditLog {
	return internalrepo.NewLoggerAuditLog(l)
}

// ProvideScorer creates the default severity scorer.
func ProvideScorer() dservice.SeverityScorer {
	return scoring.New()
}

// ProvideCache creates the cache backend: Redis when enabled, in-process
// memory otherwise.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if cfg.Redis.Enabled {
		c, err := cache.NewRedisCache(
			cache.WithRedisHost(cfg.Redis.Host),
			cache.WithRedisPort(cfg.Redis.Port),
			cache.WithRedisPassword(cfg.Redis.Password),
			cache.WithRedisDB(cfg.Redis.DB),
		)
		if err != nil {
			return nil, fmt.Errorf("redis cache: %w", err)
		}
		return c, nil
	}
	return cache.NewMemoryCache(), nil
}

// ProvideQueue creates the alert-dispatch queue when Redis is available: the
// fusion sink publishes to it and the in-process workers deliver the alerts.
// Returns nil otherwise; the alert sink treats that as "no queue".
func ProvideQueue(c cache.Service, l *logger.Logger) (queue.QueueService, error) {
	rc, ok := c.(*cache.RedisCache)
	if !ok {
		return nil, nil
	}
	q := queue.NewRedisQueue(l, &queue.QueueConfig{Workers: 2, RetryLimit: 3}, rc.Client(), queue.ModeProducerConsumer)
	q.RegisterJob(internalrepo.NewAlertDispatchJob(l))
	if err := q.Start(); err != nil {
		return nil, fmt.Errorf("alert queue: %w", err)
	}
	return q, nil
}

// ProvideStores creates the persistence layer for the configured backend.
func ProvideStores(cfg *config.Config, c cache.Service, l *logger.Logger) (*Stores, error) {
	if cfg.Storage.Type == "memory" {
		mem := internalrepo.NewMemoryStore()
		return &Stores{Events: mem, Ticks: mem, Watch: mem}, nil
	}

	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.SchemaStatements(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	store := internalrepo.NewClickHouseStore(client.DB(), cfg.ClickHouse.Database)
	store.SetLogger(l)

	watch := internalrepo.NewCachedWatchlist(
		internalrepo.NewClickHouseWatchlist(client.DB(), cfg.ClickHouse.Database),
		c,
		cfg.Cache.WatchlistTTL,
		l,
	)

	return &Stores{Events: store, Ticks: store, Watch: watch, CH: client}, nil
}

// ProvideKafkaProducer creates the Kafka producer, or nil when Kafka is off.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaConsumer creates the inbound events consumer, or nil.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
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
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideAlertSink publishes fused events to Kafka when enabled.
func ProvideAlertSink(cfg *config.Config, producer *pkgkafka.Producer, q queue.QueueService) drepo.AlertSink {
	if producer == nil {
		return internalrepo.NopAlertSink{}
	}
	return internalrepo.NewKafkaAlertSink(producer, cfg.Kafka.AlertsTopic, q)
}

// ProvideQuoteProvider selects the market-data source.
func ProvideQuoteProvider(cfg *config.Config, l *logger.Logger) drepo.QuoteProvider {
	if cfg.Quotes.Provider == "websocket" {
		return quotes.NewStream(
			cfg.Quotes.APIKey,
			cfg.Quotes.WebSocketURL,
			cfg.Quotes.Symbols,
			cfg.Quotes.PingInterval,
			l,
		)
	}
	return quotes.NewSynthetic()
}

// ProvideDetector creates the anomaly detector from configured thresholds.
func ProvideDetector(cfg *config.Config, scorer dservice.SeverityScorer) *usecase.AnomalyDetector {
	return usecase.NewAnomalyDetector(models.AnomalyConfig{
		PriceSpike5mPct:       cfg.Detector.PriceSpike5mPct,
		VolumeSpikeMultiplier: cfg.Detector.VolumeSpikeMultiplier,
		VolatilityRangePct:    cfg.Detector.VolatilityRangePct,
		MinHistory:            cfg.Detector.MinHistory,
	}, scorer)
}

// ProvideStreamer creates the market streamer use case.
func ProvideStreamer(
	cfg *config.Config,
	stores *Stores,
	provider drepo.QuoteProvider,
	detector *usecase.AnomalyDetector,
	m drepo.Metrics,
	audit drepo.AuditLog,
	l *logger.Logger,
) *usecase.MarketStreamer {
	return usecase.NewMarketStreamer(
		stores.Watch,
		provider,
		stores.Ticks,
		stores.Events,
		detector,
		m,
		audit,
		l,
		usecase.WithConcurrency(cfg.Quotes.Concurrency),
		usecase.WithMaxRPS(cfg.Quotes.MaxRPS),
		usecase.WithHistoryWindow(cfg.Detector.HistoryWindow),
		usecase.WithVolumeSpikeMultiplier(cfg.Detector.VolumeSpikeMultiplier),
	)
}

// ProvideFusion creates the fusion engine use case.
func ProvideFusion(
	cfg *config.Config,
	stores *Stores,
	sink drepo.AlertSink,
	m drepo.Metrics,
	audit drepo.AuditLog,
	l *logger.Logger,
) *usecase.FusionEngine {
	return usecase.NewFusionEngine(
		stores.Events,
		sink,
		m,
		audit,
		l,
		usecase.WithFusionWindow(cfg.Fusion.Window),
	)
}

// ProvideEventsHandler registers the inbound events topic handler.
func ProvideEventsHandler(cfg *config.Config, stores *Stores, m drepo.Metrics) *usecase.KafkaEventsHandler {
	return usecase.NewKafkaEventsHandler(cfg.Kafka.EventsTopic, stores.Events, m)
}

// ProvideJobsHandler creates the HTTP API handler.
func ProvideJobsHandler(
	streamer *usecase.MarketStreamer,
	fusion *usecase.FusionEngine,
	stores *Stores,
	l *logger.Logger,
) xhttp.Handler {
	return api.NewJobsHandler(streamer, fusion, stores.Events, l)
}

// ProvideApp assembles the application.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	handler xhttp.Handler,
	streamer *usecase.MarketStreamer,
	fusion *usecase.FusionEngine,
	consumer *pkgkafka.Consumer,
	eventsHandler *usecase.KafkaEventsHandler,
	provider drepo.QuoteProvider,
	sink drepo.AlertSink,
	stores *Stores,
	c cache.Service,
	q queue.QueueService,
) *server.App {
	return server.New(cfg, l, handler, streamer, fusion, consumer, eventsHandler, provider, sink, stores.CH, c, q)
}
