package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/yelpclone/directory/pkg/database"
	"github.com/yelpclone/directory/pkg/health"
	"github.com/yelpclone/directory/pkg/httpclient"
	pkgkafka "github.com/yelpclone/directory/pkg/kafka"
	"github.com/yelpclone/directory/pkg/tracing"

	"github.com/yelpclone/directory/internal/chat"
	"github.com/yelpclone/directory/internal/config"
	"github.com/yelpclone/directory/internal/event"
	handler "github.com/yelpclone/directory/internal/handler/http"
	"github.com/yelpclone/directory/internal/repository"
	"github.com/yelpclone/directory/internal/repository/memory"
	mongorepo "github.com/yelpclone/directory/internal/repository/mongo"
	"github.com/yelpclone/directory/internal/repository/postgres"
	"github.com/yelpclone/directory/internal/search"
	"github.com/yelpclone/directory/internal/service"
	"github.com/yelpclone/directory/internal/session"
)

const idempotencyTTL = 24 * time.Hour

// App wires together all dependencies and runs the directory service.
type App struct {
	cfg            *config.Config
	logger         *slog.Logger
	store          *repository.Store
	redis          *redis.Client
	search         search.Index
	producer       *pkgkafka.Producer
	dlq            *pkgkafka.DLQProducer
	consumers      []*pkgkafka.Consumer
	stopConsumers  context.CancelFunc
	consumerWG     sync.WaitGroup
	router         http.Handler
	httpServer     *http.Server
	shutdownTracer func(context.Context) error
}

// NewApp creates a new application instance, initializing all dependencies.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a := &App{cfg: cfg, logger: logger}

	shutdownTracer, err := tracing.InitTracer(ctx, cfg.Tracing())
	if err != nil {
		return nil, fmt.Errorf("init tracer: %w", err)
	}
	a.shutdownTracer = shutdownTracer

	database.SetSlowQueryLogging(cfg.SlowQueryThreshold(), logger)

	healthHandler := health.NewHandler()

	// Primary store.
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		a.closeAll(ctx)
		return nil, err
	}
	a.store = store
	healthHandler.RegisterCritical(cfg.StorageDriver, store.Ping)

	// Redis backs chat sessions and reconciler idempotency when configured.
	if cfg.SessionDriver == config.SessionRedis {
		client, err := database.NewRedisClient(ctx, cfg.Redis(), logger)
		if err != nil {
			a.closeAll(ctx)
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		a.redis = client
		healthHandler.RegisterNonCritical("redis", func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		logger.Info("connected to Redis", slog.String("addr", cfg.Redis().Addr()))
	}

	var sessions session.Store
	if a.redis != nil {
		sessions = session.NewRedisStore(a.redis, cfg.SessionTTL, cfg.ChatHistoryLimit)
	} else {
		sessions = session.NewMemoryStore(cfg.SessionTTL, cfg.ChatHistoryLimit)
	}

	// Search projection.
	index, err := openSearchIndex(ctx, cfg, logger)
	if err != nil {
		a.closeAll(ctx)
		return nil, err
	}
	a.search = index
	if index != nil {
		healthHandler.RegisterNonCritical("search", index.Ping)
		if cfg.SearchBackfillOnStart {
			if _, err := search.Backfill(ctx, store.Businesses, index, logger); err != nil {
				logger.Warn("search backfill failed", slog.String("error", err.Error()))
			}
		}
	}

	// Domain events. Without Kafka the search index is fed in process.
	eventProducer := event.NewNoopProducer(logger)
	switch {
	case cfg.KafkaEnabled:
		a.producer = pkgkafka.NewProducer(pkgkafka.DefaultProducerConfig(cfg.KafkaBrokers), logger)
		eventProducer = event.NewProducer(a.producer, logger)
		healthHandler.RegisterNonCritical("kafka", a.producer.Ping)
		logger.Info("kafka producer initialized", slog.Any("brokers", cfg.KafkaBrokers))
	case index != nil:
		eventProducer = event.NewProducer(event.HandlerSender(event.NewIndexer(index, logger).Handle), logger)
	}

	// Build the dependency graph.
	businessService := service.NewBusinessService(store, eventProducer, logger)
	reviewService := service.NewReviewService(store, eventProducer, logger)
	chatService := service.NewChatService(newChatClient(cfg, logger), sessions, store.Businesses, service.ChatConfig{
		Timeout:      cfg.ChatTimeout,
		HistoryLimit: cfg.ChatHistoryLimit,
	}, logger)

	var searchService *service.SearchService
	if index != nil {
		searchService = service.NewSearchService(index, logger)
	}

	if cfg.ReconcilerEnabled {
		reconciler := event.NewReconciler(reviewService, logger)
		a.consumers = append(a.consumers, a.newConsumer(event.ReconcilerGroup, reconciler.Topics(), reconciler.Handle))
	}
	if cfg.KafkaEnabled && index != nil {
		indexer := event.NewIndexer(index, logger)
		a.consumers = append(a.consumers, a.newConsumer(event.IndexerGroup, indexer.Topics(), indexer.Handle))
	}

	// HTTP router.
	a.router = handler.NewRouter(handler.Services{
		Businesses: businessService,
		Reviews:    reviewService,
		Chat:       chatService,
		Search:     searchService,
	}, healthHandler, handler.RouterConfig{
		ServiceName: config.ServiceName,
		CORS:        cfg.CORS(),
		Session: handler.SessionConfig{
			Secure: cfg.SecureCookies || cfg.IsProduction(),
			MaxAge: int(cfg.SessionTTL / time.Second),
		},
		PprofAllowedCIDRs: cfg.PprofAllowedCIDRs,
		ChatRateLimit:     cfg.ChatRateLimit(),
	}, logger)

	a.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      a.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return a, nil
}

// openStore connects the configured storage backend and prepares its schema.
func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*repository.Store, error) {
	switch cfg.StorageDriver {
	case config.StoragePostgres:
		pgCfg := cfg.Postgres()
		pool, err := database.NewPostgresPool(ctx, &pgCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		if err := database.RunMigrations(ctx, pool, postgres.Migrations(), logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		if err := database.RegisterPoolMetrics(prometheus.DefaultRegisterer, pool, config.ServiceName); err != nil {
			logger.Warn("register pool metrics", slog.String("error", err.Error()))
		}
		logger.Info("connected to PostgreSQL",
			slog.String("host", pgCfg.Host),
			slog.Int("port", pgCfg.Port),
			slog.String("database", pgCfg.DBName),
		)
		return postgres.NewStore(pool), nil

	case config.StorageMongo:
		client, err := database.NewMongoClient(ctx, cfg.Mongo(), logger)
		if err != nil {
			return nil, fmt.Errorf("connect to mongo: %w", err)
		}
		db := client.Database(cfg.MongoDB)
		if err := mongorepo.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		logger.Info("connected to MongoDB", slog.String("database", cfg.MongoDB))
		return mongorepo.NewStore(db), nil

	case config.StorageMemory:
		logger.Warn("using in-memory storage, data is lost on restart")
		return memory.NewStore().Repositories(), nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}
}

// newChatClient builds the completions client behind a retrying transport
// and a circuit breaker.
func newChatClient(cfg *config.Config, logger *slog.Logger) *chat.Client {
	httpCfg := httpclient.DefaultConfig()
	httpCfg.Timeout = cfg.ChatTimeout
	httpCfg.MaxRetries = cfg.ChatMaxRetries
	breaker := httpclient.NewCircuitBreakerClient(
		httpclient.New(httpCfg),
		httpclient.DefaultCircuitBreakerConfig("chat-completions"),
		logger,
	)

	if cfg.ChatAPIKey == "" {
		logger.Warn("CHAT_API_KEY is not set, chat requests will be rejected upstream")
	}
	return chat.NewClient(breaker, chat.Config{
		BaseURL:     cfg.ChatBaseURL,
		APIKey:      cfg.ChatAPIKey,
		Model:       cfg.ChatModel,
		Temperature: cfg.ChatTemperature,
	})
}

// openSearchIndex returns the configured search index, or nil when search
// is disabled.
func openSearchIndex(ctx context.Context, cfg *config.Config, logger *slog.Logger) (search.Index, error) {
	switch cfg.SearchDriver {
	case config.SearchElasticsearch:
		index, err := search.NewElasticsearchIndex(ctx, cfg.Elasticsearch(), logger)
		if err != nil {
			return nil, fmt.Errorf("connect to elasticsearch: %w", err)
		}
		logger.Info("connected to Elasticsearch", slog.Any("addresses", cfg.ElasticsearchURLs))
		return index, nil
	case config.SearchMemory:
		return search.NewMemoryIndex(), nil
	default:
		return nil, nil
	}
}

// newConsumer subscribes handler to topics under group. Processed event IDs
// are remembered in Redis when it is available, and poison messages go to
// the shared DLQ.
func (a *App) newConsumer(group string, topics []string, handler pkgkafka.Handler) *pkgkafka.Consumer {
	var seen pkgkafka.IdempotencyStore
	if a.redis != nil {
		seen = pkgkafka.NewRedisIdempotencyStore(a.redis, group+":seen:", idempotencyTTL)
	} else {
		seen = pkgkafka.NewMemoryIdempotencyStore(idempotencyTTL)
	}

	if a.dlq == nil {
		a.dlq = pkgkafka.NewDLQProducer(a.cfg.KafkaBrokers, a.logger)
	}

	consumerCfg := pkgkafka.DefaultConsumerConfig(a.cfg.KafkaBrokers, group, topics...)
	return pkgkafka.NewConsumer(consumerCfg,
		pkgkafka.IdempotentHandler(seen, handler, a.logger),
		a.logger,
		pkgkafka.WithDLQ(a.dlq),
	)
}

// Handler returns the HTTP handler serving all routes.
func (a *App) Handler() http.Handler {
	return a.router
}

// Run starts the HTTP server and Kafka consumers, then blocks until the context is canceled.
func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)

	// Start Kafka consumers. Shutdown cancels them and waits for them to
	// return before their readers and the DLQ are closed.
	consumerCtx, stop := context.WithCancel(ctx)
	a.stopConsumers = stop
	for _, consumer := range a.consumers {
		c := consumer
		a.consumerWG.Add(1)
		go func() {
			defer a.consumerWG.Done()
			if err := c.Start(consumerCtx); err != nil && !errors.Is(err, context.Canceled) {
				a.logger.Error("kafka consumer error", slog.String("error", err.Error()))
			}
		}()
	}

	go func() {
		a.logger.Info("starting HTTP server",
			slog.String("addr", a.httpServer.Addr),
		)
		if err := a.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case err := <-errCh:
		_ = a.Shutdown()
		return err
	}

	return a.Shutdown()
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown() error {
	a.logger.Info("shutting down application...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	if a.stopConsumers != nil {
		a.stopConsumers()
	}

	var shutdownErr error
	if err := a.httpServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http server shutdown error", slog.String("error", err.Error()))
		shutdownErr = fmt.Errorf("http server shutdown: %w", err)
	}

	if !a.waitConsumers(shutdownCtx) {
		a.logger.Warn("kafka consumers still running at shutdown deadline")
	}

	a.closeAll(shutdownCtx)

	a.logger.Info("application shutdown complete")
	return shutdownErr
}

// waitConsumers blocks until every consumer goroutine has returned or ctx
// ends. It reports whether all of them returned.
func (a *App) waitConsumers(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		a.consumerWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}

// closeAll releases every dependency that was opened, in reverse order of
// construction. It is safe on a partially built App.
func (a *App) closeAll(ctx context.Context) {
	for _, consumer := range a.consumers {
		if err := consumer.Close(); err != nil {
			a.logger.Error("kafka consumer close error", slog.String("error", err.Error()))
		}
	}
	if a.dlq != nil {
		if err := a.dlq.Close(); err != nil {
			a.logger.Error("kafka dlq producer close error", slog.String("error", err.Error()))
		}
	}
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Error("kafka producer close error", slog.String("error", err.Error()))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Error("redis close error", slog.String("error", err.Error()))
		}
	}
	if a.store != nil {
		if err := a.store.Close(ctx); err != nil {
			a.logger.Error("store close error", slog.String("error", err.Error()))
		}
	}
	if a.shutdownTracer != nil {
		if err := a.shutdownTracer(ctx); err != nil {
			a.logger.Error("tracer shutdown error", slog.String("error", err.Error()))
		}
	}
}
