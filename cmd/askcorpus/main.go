package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/askcorpus/askcorpus/internal/corpus"
	corpusmem "github.com/askcorpus/askcorpus/internal/corpus/memory"
	corpuspg "github.com/askcorpus/askcorpus/internal/corpus/postgres"
	"github.com/askcorpus/askcorpus/internal/events"
	"github.com/askcorpus/askcorpus/internal/extract"
	"github.com/askcorpus/askcorpus/internal/handler"
	"github.com/askcorpus/askcorpus/internal/listcache"
	"github.com/askcorpus/askcorpus/internal/qa"
	"github.com/askcorpus/askcorpus/internal/service"
	"github.com/askcorpus/askcorpus/pkg/config"
	"github.com/askcorpus/askcorpus/pkg/health"
	"github.com/askcorpus/askcorpus/pkg/kafka"
	"github.com/askcorpus/askcorpus/pkg/logger"
	"github.com/askcorpus/askcorpus/pkg/metrics"
	"github.com/askcorpus/askcorpus/pkg/middleware"
	"github.com/askcorpus/askcorpus/pkg/postgres"
	pkgredis "github.com/askcorpus/askcorpus/pkg/redis"
	"github.com/askcorpus/askcorpus/pkg/resilience"
	"github.com/joho/godotenv"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	// Optional .env for local development; env vars still win.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting askcorpus", "port", cfg.Server.Port, "store", cfg.Store.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m *metrics.Metrics
	var metricsShutdown func(context.Context) error
	if cfg.Metrics.Enabled {
		m = metrics.New()
		metricsShutdown = metrics.StartServer(cfg.Metrics.Port)
	}

	checker := health.NewChecker()

	// Store wiring. The process must not serve traffic without a reachable
	// store, so a failed postgres connection after retries is fatal.
	var docStore corpus.DocumentStore
	var ansStore corpus.AnswerStore
	switch cfg.Store.Backend {
	case config.StorePostgres:
		var db *postgres.Client
		err := resilience.Retry(ctx, "postgres-connect", resilience.RetryConfig{
			MaxAttempts:  cfg.Postgres.ConnectAttempts,
			InitialDelay: time.Second,
		}, func() error {
			var connErr error
			db, connErr = postgres.New(cfg.Postgres)
			return connErr
		})
		if err != nil {
			slog.Error("store unavailable", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := corpuspg.EnsureSchema(ctx, db); err != nil {
			slog.Error("failed to ensure schema", "error", err)
			os.Exit(1)
		}
		docStore = corpuspg.NewDocumentStore(db)
		ansStore = corpuspg.NewAnswerStore(db)
		checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
			if err := db.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDown, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
		slog.Info("postgres store ready", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)
	case config.StoreMemory:
		docStore = corpusmem.NewDocumentStore()
		ansStore = corpusmem.NewAnswerStore()
		slog.Warn("using in-memory store; corpus is lost on restart")
	}

	// Redis listing cache is optional: the service runs uncached without it.
	var cache *listcache.Cache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, listing cache disabled", "error", err)
	} else {
		defer redisClient.Close()
		cache = listcache.New(redisClient, cfg.Redis, m)
		checker.Register("redis", func(ctx context.Context) health.ComponentHealth {
			if err := redisClient.Ping(ctx); err != nil {
				return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
			}
			return health.ComponentHealth{Status: health.StatusUp}
		})
		slog.Info("listing cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	// Audit events are optional: no brokers, no publisher.
	var publisher *events.Publisher
	if cfg.Kafka.Enabled() {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.AuditTopic)
		defer producer.Close()
		publisher = events.NewPublisher(producer, 1024)
		publisher.Start(ctx)
		defer publisher.Close()
		slog.Info("audit publisher enabled", "topic", cfg.Kafka.AuditTopic, "brokers", cfg.Kafka.Brokers)
	}

	fetcher := extract.NewClient(cfg.Parser, m)
	engine := qa.NewClient(cfg.Engine, m)

	docs := corpus.NewRepository(docStore, fetcher, engine)
	answers := corpus.NewAnswerCache(ansStore)
	svc := service.New(docs, answers, engine, cache, publisher, m)

	h := handler.New(svc)
	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if m != nil {
		chain = middleware.Metrics(m)(chain)
	}
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
		if metricsShutdown != nil {
			if err := metricsShutdown(shutdownCtx); err != nil {
				slog.Error("metrics server shutdown error", "error", err)
			}
		}
	}()

	slog.Info("askcorpus listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("askcorpus stopped")
}
