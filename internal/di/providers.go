package di

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"FinScreen/internal/domain/repository"
	"FinScreen/internal/handler/api"
	internalrepo "FinScreen/internal/repository"
	"FinScreen/internal/service/auth"
	"FinScreen/internal/service/events"
	"FinScreen/internal/service/ratelimit"
	"FinScreen/internal/service/tokenstore"
	"FinScreen/internal/services/backend"
	"FinScreen/internal/usecase"
	pkgch "FinScreen/pkg/clickhouse"
	"FinScreen/pkg/config"
	xhttp "FinScreen/pkg/http"
	pkgkafka "FinScreen/pkg/kafka"
	"FinScreen/pkg/logger"
	"FinScreen/pkg/metrics"
	"FinScreen/pkg/server"
	"FinScreen/pkg/storage"

	"github.com/prometheus/client_golang/prometheus"
)

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, rec *metrics.Recorder) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	pc := cfg.Kafka.Producer
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithClientID(pc.ClientID),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(pc.BatchSize, pc.BatchBytes, pc.BatchTimeout),
		pkgkafka.WithTimeouts(pc.WriteTimeout, pc.WriteTimeout),
		pkgkafka.WithMaxAttempts(pc.MaxAttempts),
		pkgkafka.WithAsync(pc.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithObserver(rec),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger creates the root logger. Error logs are aggregated and
// shipped to Kafka when the log collector is enabled.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if producer != nil && cfg.Kafka.LogCollector.Enabled {
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval:   cfg.Kafka.LogCollector.Interval,
			CountThreshold: cfg.Kafka.LogCollector.CountThreshold,
			MinLevel:       cfg.Kafka.LogCollector.MinLevel,
			Topic:          cfg.Kafka.LogTopic,
			Publisher:      producer,
		})
	}
	return l, nil
}

// ProvideClickHouseClient creates a ClickHouse client with the archive
// schema in place, or nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(4, 2),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stmts := append([]string{"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database},
		internalrepo.ResultSchema(archiveTable(cfg))...)
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

func archiveTable(cfg *config.Config) string {
	return cfg.ClickHouse.Database + "." + cfg.ClickHouse.Table
}

// ProvideStorage opens the key/value store behind tokens and configuration.
func ProvideStorage(cfg *config.Config) (storage.Store, error) {
	kv, err := storage.New(storage.Config{
		Type:          cfg.Storage.Type,
		Path:          cfg.Storage.Path,
		RedisAddr:     cfg.Storage.Redis.Addr,
		RedisPassword: cfg.Storage.Redis.Password,
		RedisDB:       cfg.Storage.Redis.DB,
		RedisPrefix:   cfg.Storage.Redis.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	return kv, nil
}

// ProvideMetrics creates the Prometheus recorder on the default registry,
// which is what /metrics serves.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideTokenStore creates the token pair store.
func ProvideTokenStore(kv storage.Store, l *logger.Logger) *tokenstore.Store {
	return tokenstore.New(kv, l)
}

// ProvideHTTPClient creates the single authenticated HTTP client. The
// session-expired hook is attached by ProvideAuthManager.
func ProvideHTTPClient(cfg *config.Config, tokens *tokenstore.Store, rec *metrics.Recorder, l *logger.Logger) *xhttp.Client {
	return xhttp.NewClient(
		xhttp.WithTimeout(cfg.Backend.Timeout),
		xhttp.WithTokenStore(tokens),
		xhttp.WithRefreshURL(backend.RefreshURL(cfg.Backend.BaseURL, cfg.Backend.RefreshPath)),
		xhttp.WithObserver(rec),
		xhttp.WithLogger(l.With(logger.String("component", "http"))),
	)
}

// ProvideBackendClient creates the typed backend API.
func ProvideBackendClient(cfg *config.Config, hc *xhttp.Client, l *logger.Logger) *backend.Client {
	return backend.NewClient(cfg.Backend.BaseURL, hc, backend.Options{
		ScreenTimeout:   cfg.Backend.ScreenTimeout,
		IndicesCacheTTL: cfg.Backend.IndicesCacheTTL,
	}, l)
}

// ProvideEventHub creates the websocket event hub.
func ProvideEventHub(l *logger.Logger) *events.Hub {
	return events.NewHub(l)
}

// ProvideAuthManager creates the session manager and makes it the HTTP
// client's session-expired hook.
func ProvideAuthManager(bc *backend.Client, tokens *tokenstore.Store, redirect repository.LoginRedirector, hc *xhttp.Client, l *logger.Logger) *auth.Manager {
	m := auth.NewManager(bc, tokens, redirect, l)
	hc.OnSessionExpired(m.HandleSessionExpired)
	return m
}

// ProvideConfigStore creates the screener form store.
func ProvideConfigStore(kv storage.Store, bc *backend.Client, l *logger.Logger) *usecase.ConfigStore {
	return usecase.NewConfigStore(kv, bc, l)
}

// ProvideSymbolResolver creates the symbol resolver.
func ProvideSymbolResolver(bc *backend.Client, cs *usecase.ConfigStore, l *logger.Logger) *usecase.SymbolResolver {
	return usecase.NewSymbolResolver(bc, cs, l)
}

// ProvideSinks collects the run sinks that are enabled.
func ProvideSinks(cfg *config.Config, ch *pkgch.Client, producer *pkgkafka.Producer, rec *metrics.Recorder, notifier repository.StatusNotifier) usecase.Sinks {
	sinks := usecase.Sinks{Metrics: rec, Notifier: notifier}

	var archives internalrepo.FanoutArchive
	if ch != nil {
		archives = append(archives, internalrepo.NewClickHouseArchive(ch.DB(), archiveTable(cfg)))
	}
	if producer != nil {
		pub := internalrepo.NewKafkaRunPublisher(producer, cfg.Kafka.Topic)
		sinks.Publisher = pub
		archives = append(archives, pub)
	}
	if len(archives) > 0 {
		sinks.Archive = archives
	}
	return sinks
}

// ProvideOrchestrator creates the screening orchestrator.
func ProvideOrchestrator(m *auth.Manager, cs *usecase.ConfigStore, resolver *usecase.SymbolResolver, bc *backend.Client, sinks usecase.Sinks, l *logger.Logger) *usecase.Orchestrator {
	return usecase.NewOrchestrator(m, cs, resolver, bc, sinks, l)
}

// ProvideLoginLimiter creates the per-IP login throttle.
func ProvideLoginLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.RateLimit.LoginCapacity, cfg.RateLimit.LoginRefill)
}

// ProvideHandlers builds every route of the dashboard server.
func ProvideHandlers(
	l *logger.Logger,
	m *auth.Manager,
	limiter *ratelimit.Limiter,
	cs *usecase.ConfigStore,
	resolver *usecase.SymbolResolver,
	orch *usecase.Orchestrator,
	bc *backend.Client,
	hub *events.Hub,
) xhttp.Handler {
	return xhttp.Handlers{
		api.NewAuthHandler(l, m, limiter),
		api.NewScreenerHandler(l, cs, resolver, orch, bc, hub),
	}
}

// ProvideApp creates the dashboard application.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	handler xhttp.Handler,
	m *auth.Manager,
	cs *usecase.ConfigStore,
	hub *events.Hub,
	kv storage.Store,
	ch *pkgch.Client,
	producer *pkgkafka.Producer,
) *server.App {
	app := server.New(cfg, l, handler)
	app.OnStart("session", m.Initialize)
	app.OnStart("config", cs.Load)
	app.OnStart("feature catalog", cs.LoadAvailableFeatures)

	app.OnClose("events", closerFunc(func() error { hub.Close(); return nil }))
	app.OnClose("logger", closerFunc(func() error { l.RemoveCollector(); return nil }))
	if producer != nil {
		app.OnClose("kafka", producer)
	}
	if ch != nil {
		app.OnHealth("clickhouse", ch.Health)
		app.OnClose("clickhouse", ch)
	}
	app.OnClose("storage", kv)
	return app
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// Screener is the headless set of services the command line client drives.
type Screener struct {
	Auth    *auth.Manager
	Config  *usecase.ConfigStore
	Symbols *usecase.SymbolResolver
	Runs    *usecase.Orchestrator
	Backend *backend.Client

	log     *logger.Logger
	closers []io.Closer
}

// Close releases the connections the screener holds.
func (s *Screener) Close() error {
	s.log.RemoveCollector()
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ProvideScreener assembles the command line services.
func ProvideScreener(
	l *logger.Logger,
	m *auth.Manager,
	cs *usecase.ConfigStore,
	resolver *usecase.SymbolResolver,
	orch *usecase.Orchestrator,
	bc *backend.Client,
	kv storage.Store,
	ch *pkgch.Client,
	producer *pkgkafka.Producer,
) *Screener {
	s := &Screener{Auth: m, Config: cs, Symbols: resolver, Runs: orch, Backend: bc, log: l}
	if producer != nil {
		s.closers = append(s.closers, producer)
	}
	if ch != nil {
		s.closers = append(s.closers, ch)
	}
	s.closers = append(s.closers, kv)
	return s
}
