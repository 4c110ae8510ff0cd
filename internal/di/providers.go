package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"FinValue/internal/domain/models"
	drepo "FinValue/internal/domain/repository"
	"FinValue/internal/handler/api"
	internalrepo "FinValue/internal/repository"
	"FinValue/internal/service/finnhub"
	pmetrics "FinValue/internal/service/metrics"
	"FinValue/internal/service/ratelimit"
	"FinValue/internal/services/dcf"
	"FinValue/internal/services/report"
	"FinValue/internal/usecase"
	"FinValue/pkg/cache"
	pkgch "FinValue/pkg/clickhouse"
	"FinValue/pkg/config"
	xhttp "FinValue/pkg/http"
	pkgkafka "FinValue/pkg/kafka"
	"FinValue/pkg/logger"
	"FinValue/pkg/metrics"
	"FinValue/pkg/queue"
	"FinValue/pkg/server"
)

// ProvideLogger builds the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideRedisClient returns nil unless a Redis backed component is configured.
func ProvideRedisClient(cfg *config.Config) redis.UniversalClient {
	if cfg.Finnhub.RateLimit.Backend != "redis" && cfg.Jobs.Backend == "memory" && cfg.Jobs.Transport != "redis" {
		return nil
	}
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{cfg.Redis.Addr},
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// ProvideRateLimiter creates the limiter shared by all Finnhub calls.
func ProvideRateLimiter(cfg *config.Config, rdb redis.UniversalClient) drepo.RateLimiter {
	rl := cfg.Finnhub.RateLimit
	if rl.Backend == "redis" && rdb != nil {
		return ratelimit.NewRedis(rdb, rl.PerSecond)
	}
	return ratelimit.New(rl.Burst, float64(rl.PerSecond))
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() drepo.Metrics {
	pmetrics.Register()
	return metrics.New()
}

// ProvideDataProvider creates the Finnhub REST provider.
func ProvideDataProvider(cfg *config.Config, limiter drepo.RateLimiter, l *logger.Logger) drepo.DataProvider {
	return finnhub.NewProvider(cfg.Finnhub.BaseURL, cfg.Finnhub.APIKey,
		finnhub.WithLimiter(limiter, cfg.Finnhub.RateLimit.MaxWait),
		finnhub.WithHTTPClient(xhttp.NewClient(xhttp.WithTimeout(cfg.Finnhub.Timeout))),
		finnhub.WithLogger(l),
	)
}

// ProvidePriceFeed returns the WebSocket price feed, or nil when live prices are off.
func ProvidePriceFeed(cfg *config.Config, l *logger.Logger) drepo.PriceFeed {
	if !cfg.Finnhub.LivePrice {
		return nil
	}
	return finnhub.NewStream(cfg.Finnhub.WebSocketURL, cfg.Finnhub.APIKey, cfg.Finnhub.LivePriceTimeout, l)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithAutoCreateTopic(cfg.Environment == "development"),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideClickHouseClient connects to ClickHouse, or returns nil when the archive is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c := cfg.ClickHouse
	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(c.Host),
		pkgch.WithPort(c.Port),
		pkgch.WithDatabase(c.Database),
		pkgch.WithCredentials(c.User, c.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(c.UseHTTP),
		pkgch.WithAsyncInsert(c.AsyncInsert, c.WaitForAsync),
		pkgch.WithTimeouts(c.DialTimeout, c.ReadTimeout),
		pkgch.WithMaxExecutionTime(c.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideResultStore creates the ClickHouse archive and its schema. It is nil
// when ClickHouse is disabled.
func ProvideResultStore(client *pkgch.Client, l *logger.Logger) (drepo.ResultStore, error) {
	if client == nil {
		return nil, nil
	}
	store := internalrepo.NewCHResultStore(client, l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ResultSinks are the destinations every finished report is handed to.
type ResultSinks []drepo.ResultSink

// ProvideResultSinks collects the archive and the result topic, whichever are enabled.
func ProvideResultSinks(cfg *config.Config, store drepo.ResultStore, producer *pkgkafka.Producer) ResultSinks {
	var sinks ResultSinks
	if store != nil {
		sinks = append(sinks, store)
	}
	if producer != nil && cfg.Kafka.ResultTopic != "" {
		sinks = append(sinks, internalrepo.NewKafkaResultPublisher(producer, cfg.Kafka.ResultTopic))
	}
	return sinks
}

// ProvideJobCache builds the job status store for the configured backend.
func ProvideJobCache(cfg *config.Config, rdb redis.UniversalClient) cache.Service {
	j := cfg.Jobs
	switch {
	case j.Backend == "redis" && rdb != nil:
		return cache.NewRedisCache(rdb, cache.WithRedisPrefix("finvalue:jobs"))
	case j.Backend == "layered" && rdb != nil:
		return cache.NewLayeredCache(
			cache.NewRedisCache(rdb, cache.WithRedisPrefix("finvalue:jobs")),
			cache.WithLayeredMemorySize(j.MaxEntries),
			cache.WithLayeredMemoryTTL(time.Minute),
		)
	default:
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(j.MaxEntries))
	}
}

func ProvideJobTracker(cfg *config.Config, store cache.Service) *usecase.JobTracker {
	return usecase.NewJobTracker(store, cfg.Jobs.StatusTTL, cfg.Jobs.LockTTL)
}

// ProvideCompsAnalysis creates the comps use case.
func ProvideCompsAnalysis(
	cfg *config.Config,
	provider drepo.DataProvider,
	feed drepo.PriceFeed,
	sinks ResultSinks,
	m drepo.Metrics,
	l *logger.Logger,
) *usecase.CompsAnalysis {
	fields := make([]models.Multiple, 0, len(cfg.Valuation.Comps.Multiples))
	for _, f := range cfg.Valuation.Comps.Multiples {
		fields = append(fields, models.Multiple(f))
	}
	opts := []usecase.CompsOption{
		usecase.WithCompsSinks(sinks...),
		usecase.WithCompsMetrics(m),
		usecase.WithCompsLogger(l.With(logger.String("usecase", "comps"))),
		usecase.WithCompsConcurrency(cfg.Valuation.Comps.MaxConcurrency),
		usecase.WithCompsDefaults(models.NormalizeStatKind(cfg.Valuation.Comps.Stat), fields),
	}
	if feed != nil {
		opts = append(opts, usecase.WithCompsPriceFeed(feed))
	}
	return usecase.NewCompsAnalysis(provider, opts...)
}

// ProvideDCFAnalysis creates the DCF use case with the configured growth policy.
func ProvideDCFAnalysis(
	cfg *config.Config,
	provider drepo.DataProvider,
	feed drepo.PriceFeed,
	sinks ResultSinks,
	m drepo.Metrics,
	l *logger.Logger,
) *usecase.DCFAnalysis {
	d := cfg.Valuation.DCF
	engine := dcf.NewEngine(dcf.NewProjector(dcf.WithGrowthPolicy(dcf.GrowthPolicy{
		Default: d.Growth.Default,
		Floor:   d.Growth.Floor,
		Cap:     d.Growth.Cap,
	})))
	opts := []usecase.DCFOption{
		usecase.WithDCFEngine(engine),
		usecase.WithDCFSinks(sinks...),
		usecase.WithDCFMetrics(m),
		usecase.WithDCFLogger(l.With(logger.String("usecase", "dcf"))),
		usecase.WithDCFDefaults(usecase.DCFDefaults{Horizon: d.Horizon, WACC: d.WACC, TerminalGrowth: d.TerminalGrowth}),
	}
	if feed != nil {
		opts = append(opts, usecase.WithDCFPriceFeed(feed))
	}
	return usecase.NewDCFAnalysis(provider, opts...)
}

func ProvideHistory(store drepo.ResultStore) *usecase.History {
	return usecase.NewHistory(store)
}

// ProvideJobQueue creates the Redis job queue when jobs.transport is redis.
// Errors the handler marks permanent go straight to the dead letter list.
func ProvideJobQueue(cfg *config.Config, rdb redis.UniversalClient, l *logger.Logger, handler *usecase.ValuationJobHandler) *queue.RedisQueue {
	if cfg.Jobs.Transport != "redis" || rdb == nil {
		return nil
	}
	q := cfg.Jobs.Queue
	rq := queue.NewRedisQueue(rdb,
		queue.WithWorkers(q.Workers),
		queue.WithRetry(q.RetryLimit, q.RetryDelay),
		queue.WithKeyPrefix(q.KeyPrefix),
		queue.WithPermanent(pkgkafka.IsPermanent),
		queue.WithLogger(l.With(logger.String("component", "queue"))),
	)
	rq.RegisterHandler(handler)
	return rq
}

// ProvideJobSubmitter wires job intake to the configured transport. Submissions
// fail with ErrJobsDisabled when neither Kafka nor the Redis queue is available.
func ProvideJobSubmitter(
	cfg *config.Config,
	producer *pkgkafka.Producer,
	jq *queue.RedisQueue,
	tracker *usecase.JobTracker,
	l *logger.Logger,
) *usecase.JobSubmitter {
	var pub usecase.JobPublisher
	switch {
	case cfg.Jobs.Transport == "redis" && jq != nil:
		pub = jq
	case cfg.Jobs.Transport == "kafka" && producer != nil:
		pub = producer
	}
	return usecase.NewJobSubmitter(pub, cfg.Kafka.RequestTopic, tracker, l)
}

func ProvideValuationJobHandler(
	cfg *config.Config,
	comps *usecase.CompsAnalysis,
	dcfa *usecase.DCFAnalysis,
	tracker *usecase.JobTracker,
	l *logger.Logger,
) *usecase.ValuationJobHandler {
	return usecase.NewValuationJobHandler(cfg.Kafka.RequestTopic, comps, dcfa, tracker, l.With(logger.String("usecase", "jobs")))
}

// ProvideKafkaConsumer creates the job consumer, or nil when Kafka is disabled
// or jobs travel over Redis.
func ProvideKafkaConsumer(cfg *config.Config, l *logger.Logger, handler *usecase.ValuationJobHandler) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Jobs.Transport != "kafka" {
		return nil, nil
	}
	k := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(k.GroupID),
		pkgkafka.WithConsumerWorkers(k.Workers),
		pkgkafka.WithConsumerBufferSize(k.BufferSize),
		pkgkafka.WithConsumerRetry(k.RetryMax, k.BackoffMin, k.BackoffMax),
		pkgkafka.WithConsumerDLQ(k.DLQTopic),
		pkgkafka.WithConsumerFetch(k.MinBytes, k.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.LoggingHook(l))
	consumer.RegisterHandler(handler)
	return consumer, nil
}

// ProvideHTTPHandler creates the valuation routes with health checks for enabled dependencies.
func ProvideHTTPHandler(
	l *logger.Logger,
	comps *usecase.CompsAnalysis,
	dcfa *usecase.DCFAnalysis,
	history *usecase.History,
	submitter *usecase.JobSubmitter,
	tracker *usecase.JobTracker,
	store drepo.ResultStore,
	rdb redis.UniversalClient,
) *api.ValuationEchoHandler {
	opts := []api.ValuationHandlerOption{
		api.WithHistory(history),
		api.WithJobs(submitter, tracker),
	}
	if store != nil {
		opts = append(opts, api.WithHealthCheck("clickhouse", store.Health))
	}
	if rdb != nil {
		opts = append(opts, api.WithHealthCheck("redis", func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}))
	}
	return api.NewValuationEchoHandler(l, comps, dcfa, report.NewTextRenderer(), report.NewExcelExporter(), opts...)
}

// ProvideHTTPServer creates the Echo server.
func ProvideHTTPServer(cfg *config.Config, l *logger.Logger, h *api.ValuationEchoHandler) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(l, []xhttp.Handler{h},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithMetricsPath(metricsPath),
	)
}

// ProvideApp assembles the application and registers everything that needs closing.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	srv *xhttp.Server,
	consumer *pkgkafka.Consumer,
	jq *queue.RedisQueue,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
	jobCache cache.Service,
	rdb redis.UniversalClient,
) *server.App {
	if producer != nil && cfg.Log.Collector.Enabled {
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval:   cfg.Log.Collector.Interval,
			CountThreshold: cfg.Log.Collector.CountThreshold,
			Topic:          cfg.Log.Collector.Topic,
			Publisher:      producer,
		})
	}

	app := server.New(cfg, l, srv)
	if consumer != nil {
		app.AddWorker("kafka consumer", consumer)
	}
	if jq != nil {
		app.AddWorker("redis queue", jq)
	}
	if rdb != nil {
		app.OnShutdown("redis", rdb.Close)
	}
	if chClient != nil {
		app.OnShutdown("clickhouse", chClient.Close)
	}
	if producer != nil {
		app.OnShutdown("kafka producer", producer.Close)
	}
	app.OnShutdown("job cache", jobCache.Close)
	return app
}
