// Package main provides the referral API service entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/drfirst/go-referral/internal/api/handlers"
	"github.com/drfirst/go-referral/internal/api/middleware"
	"github.com/drfirst/go-referral/internal/config"
	"github.com/drfirst/go-referral/internal/domain/record"
	"github.com/drfirst/go-referral/internal/domain/referral"
	"github.com/drfirst/go-referral/internal/export"
	"github.com/drfirst/go-referral/internal/infrastructure/postgres"
	"github.com/drfirst/go-referral/internal/infrastructure/redis"
	"github.com/drfirst/go-referral/internal/infrastructure/redpanda"
	"github.com/drfirst/go-referral/internal/letter"
	"github.com/drfirst/go-referral/internal/observability/metrics"
	"github.com/drfirst/go-referral/internal/observability/tracing"
	"github.com/drfirst/go-referral/internal/workflow"
	"github.com/drfirst/go-referral/pkg/circuitbreaker"
	"github.com/drfirst/go-referral/pkg/workerpool"
)

const serviceName = "referral-api"

type readiness func(ctx context.Context) error

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	tcfg := tracing.DefaultConfig(serviceName)
	tcfg.Environment = cfg.Env
	tcfg.OTLPEndpoint = cfg.OTELEndpoint
	tp, err := tracing.Init(ctx, tcfg)
	if err != nil {
		logger.Fatal("failed to init tracing", zap.Error(err))
	}
	defer tp.Shutdown(context.Background())

	m := metrics.New(prometheus.DefaultRegisterer)
	hub := workflow.NewHub(logger)
	sinks := referral.Sinks{hub, m}

	// State store
	var (
		store    referral.Store
		eventLog *postgres.EventLog
		checks   []readiness
	)
	switch cfg.StateBackend {
	case config.BackendRedis:
		client, err := redis.Connect(ctx, cfg.RedisURL)
		if err != nil {
			logger.Fatal("failed to connect to redis", zap.Error(err))
		}
		defer client.Close()
		rs := redis.NewStateStore(client, cfg.StateKey, logger)
		store = rs
		checks = append(checks, rs.Ping)
		logger.Info("connected to redis")

	case config.BackendPostgres:
		if err := postgres.Migrate(cfg.DatabaseURL, logger); err != nil {
			logger.Fatal("failed to migrate database", zap.Error(err))
		}
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("failed to connect to database", zap.Error(err))
		}
		defer pool.Close()
		store = postgres.NewStateStore(pool, cfg.StateKey, logger)
		checks = append(checks, pool.Ping)
		eventLog = postgres.NewEventLog(pool, logger)
		sinks = append(sinks, eventLog, postgres.NewOutboxSink(pool, cfg.EventsTopic, logger))
		logger.Info("connected to database")

	default:
		store = referral.NewMemoryStore()
		logger.Warn("using in-memory state; referrals are lost on restart")
	}

	manager := referral.NewManager(store, logger,
		referral.WithEventSink(sinks),
		referral.WithFailureObserver(m),
		referral.WithSource(cfg.InstanceID),
	)

	// Letter generation
	var client letter.Client = letter.UnavailableClient{}
	if cfg.AnthropicAPIKey != "" {
		client = letter.NewAnthropicClient(letter.AnthropicConfig{
			APIKey:    cfg.AnthropicAPIKey,
			Model:     cfg.LetterModel,
			MaxTokens: cfg.LetterMaxTokens,
		}, logger)
	} else {
		logger.Warn("ANTHROPIC_API_KEY not set; letter generation will fail")
	}

	bcfg := circuitbreaker.DefaultConfig("letter-service")
	bcfg.OnStateChange = m.ObserveBreaker
	breaker, err := circuitbreaker.New(bcfg, logger)
	if err != nil {
		logger.Fatal("failed to create circuit breaker", zap.Error(err))
	}
	generator := letter.NewGenerator(client, letter.GeneratorConfig{
		Timeout:  cfg.LetterTimeout,
		Breaker:  breaker,
		Observer: m,
	}, logger)

	archive, err := export.NewArchive(ctx, export.ArchiveConfig{
		Type:      export.ArchiveType(cfg.ArchiveBackend),
		LocalPath: cfg.ArchiveLocalPath,
		S3Bucket:  cfg.ArchiveS3Bucket,
		S3Region:  cfg.ArchiveS3Region,
	})
	if err != nil {
		logger.Fatal("failed to create archive", zap.Error(err))
	}

	svc := workflow.NewService(ctx, workflow.Config{
		PatientID:   record.DemoPatientID,
		Specialty:   cfg.ReferralSpecialty,
		RecentNotes: cfg.RecentNotesLimit,
		NotesDelay:  cfg.NotesSimulationDelay,
	}, workflow.Deps{
		Records:   record.NewDemoStore(),
		Manager:   manager,
		Generator: generator,
		Renderer:  export.NewPDFRenderer(cfg.PDFFontPath, logger),
		Archive:   archive,
		Observer:  m,
		Notifier:  hub,
		Logger:    logger,
	})

	// Generation runs on a single worker so requests never overlap
	pool, err := workerpool.New(workerpool.DefaultConfig(), svc.RunTask, logger)
	if err != nil {
		logger.Fatal("failed to create worker pool", zap.Error(err))
	}
	pool.Start()
	svc.UsePool(pool)

	// Remote resets
	var consumer *redpanda.Consumer
	if len(cfg.KafkaBrokers) > 0 {
		listener := redpanda.NewResetListener(cfg.InstanceID, svc, logger)
		ccfg := redpanda.DefaultConsumerConfig()
		ccfg.Brokers = cfg.KafkaBrokers
		ccfg.Topics = []string{cfg.EventsTopic}
		ccfg.GroupID = serviceName + "-" + cfg.InstanceID
		consumer, err = redpanda.NewConsumer(ccfg, listener.Handle, logger)
		if err != nil {
			logger.Fatal("failed to create consumer", zap.Error(err))
		}
		consumer.Start()
		logger.Info("listening for remote resets", zap.String("topic", cfg.EventsTopic))
	}

	// Router
	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS)
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Access(logger, svc))
	r.Use(middleware.Tracing(serviceName, svc))

	r.Get("/health", healthHandler)
	r.Get("/ready", func(w http.ResponseWriter, r *http.Request) {
		for _, check := range checks {
			if err := check(r.Context()); err != nil {
				http.Error(w, "not ready", http.StatusServiceUnavailable)
				return
			}
		}
		if !pool.IsHealthy() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready"))
	})
	r.Handle("/metrics", m.Handler())
	api := handlers.NewReferralHandler(svc, hub, logger)
	if eventLog != nil {
		api.WithEventLog(eventLog)
	}
	r.Mount("/api/v1", api.Routes())

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.LetterTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", zap.Error(err))
		}
	}()

	logger.Info("starting referral API",
		zap.String("port", cfg.Port),
		zap.String("state_backend", cfg.StateBackend),
		zap.String("instance_id", cfg.InstanceID))
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		logger.Fatal("server error", zap.Error(err))
	}

	if consumer != nil {
		consumer.Stop()
	}
	if err := pool.Stop(); err != nil {
		logger.Warn("worker pool stop", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger(level string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if level == "debug" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"healthy","service":"%s","version":"1.0.0"}`, serviceName)
}
