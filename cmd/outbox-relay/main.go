// Package main provides the outbox relay service entry point.
// Referral events written to the Postgres outbox are relayed to Redpanda.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/drfirst/go-referral/internal/config"
	"github.com/drfirst/go-referral/internal/infrastructure/postgres"
	"github.com/drfirst/go-referral/internal/infrastructure/redpanda"
	"github.com/drfirst/go-referral/internal/observability/metrics"
	"github.com/drfirst/go-referral/internal/observability/tracing"
)

const retention = 7 * 24 * time.Hour

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if cfg.DatabaseURL == "" {
		logger.Fatal("DATABASE_URL is required")
	}
	if len(cfg.KafkaBrokers) == 0 {
		logger.Fatal("KAFKA_BROKERS is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tcfg := tracing.DefaultConfig("outbox-relay")
	tcfg.OTLPEndpoint = cfg.OTELEndpoint
	tp, err := tracing.Init(ctx, tcfg)
	if err != nil {
		logger.Fatal("failed to init tracing", zap.Error(err))
	}
	defer tp.Shutdown(context.Background())

	if err := postgres.Migrate(cfg.DatabaseURL, logger); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}
	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal("database connection failed", zap.Error(err))
	}
	defer pool.Close()
	logger.Info("connected to database")

	admin, err := redpanda.NewAdmin(cfg.KafkaBrokers, logger)
	if err != nil {
		logger.Fatal("admin client creation failed", zap.Error(err))
	}
	if err := admin.EnsureTopics(ctx, cfg.EventsTopic); err != nil {
		logger.Warn("could not ensure topics", zap.Error(err))
	}
	admin.Close()

	producerCfg := redpanda.DefaultProducerConfig()
	producerCfg.Brokers = cfg.KafkaBrokers
	producer, err := redpanda.NewProducer(producerCfg, logger)
	if err != nil {
		logger.Fatal("producer creation failed", zap.Error(err))
	}
	defer producer.Close()
	logger.Info("connected to Redpanda", zap.Strings("brokers", cfg.KafkaBrokers))

	m := metrics.New(prometheus.DefaultRegisterer)

	outboxCfg := postgres.DefaultOutboxConfig()
	outboxCfg.DeadLetterTopic = cfg.EventsTopic + ".dlq"
	outbox := postgres.NewOutbox(pool, producer, outboxCfg, logger)
	outbox.SetObserver(m)
	outbox.Start()

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := redpanda.HealthCheck(r.Context(), cfg.KafkaBrokers); err != nil {
			http.Error(w, fmt.Sprintf("broker: %v", err), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	server := &http.Server{Addr: ":" + cfg.Port, Handler: mux, ReadTimeout: 10 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("metrics server error", zap.Error(err))
		}
	}()

	cleanup := time.NewTicker(time.Hour)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			outbox.Stop()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			server.Shutdown(shutdownCtx)
			cancel()
			if stats, err := outbox.GetStats(context.Background()); err == nil {
				logger.Info("outbox relay stopped",
					zap.Int64("pending", stats.Pending),
					zap.Int64("failed", stats.Failed),
					zap.Int64("produced", producer.Stats().MessagesSent))
			}
			return
		case <-cleanup.C:
			n, err := outbox.CleanupProcessed(ctx, retention)
			if err != nil {
				logger.Warn("outbox cleanup failed", zap.Error(err))
				continue
			}
			if n > 0 {
				logger.Info("outbox cleaned", zap.Int64("deleted", n))
			}
		}
	}
}
