package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	lrepo "github.com/radieske/updown-market-poc/internal/ledger-projector/repo"
	"github.com/radieske/updown-market-poc/internal/ledger-projector/worker"
	"github.com/radieske/updown-market-poc/internal/shared/config"
	"github.com/radieske/updown-market-poc/internal/shared/db"
	"github.com/radieske/updown-market-poc/internal/shared/kafka"
	"github.com/radieske/updown-market-poc/internal/shared/logger"
	"github.com/radieske/updown-market-poc/internal/shared/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Errorf("config: %w", err))
	}
	log, err := logger.New(cfg.ServiceName, cfg.Env, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer log.Sync()
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Postgres: tabelas de leitura (rounds, user_bets, claims, house_ledger)
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("pg connect", zap.Error(err))
	}
	defer pg.Close()
	if err := db.Migrate(ctx, pg); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	// Kafka consumer: market_events publicados pelo market-service
	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicMarketEvents, "ledger-projector")
	defer reader.Close()

	w := &worker.Worker{
		Log:        log,
		Source:     reader,
		Store:      lrepo.NewPostgres(pg),
		MaxRetries: cfg.ProjectorMaxRetries,
		Backoff:    cfg.ProjectorRetryBackoff,
	}
	if cfg.TopicMarketEventsDLQ != "" {
		dlq := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMarketEventsDLQ)
		defer dlq.Close()
		w.DLQ = dlq
	}

	applied := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ledger_projector_applied_total", Help: "eventos projetados por tipo"}, []string{"type"})
	dups := prometheus.NewCounter(prometheus.CounterOpts{Name: "ledger_projector_duplicates_total", Help: "eventos já processados"})
	dead := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "ledger_projector_dlq_total", Help: "eventos enviados para a DLQ"}, []string{"reason"})
	prometheus.MustRegister(applied, dups, dead)
	w.OnApplied = func(t string) { applied.WithLabelValues(t).Inc() }
	w.OnDuplicate = dups.Inc
	w.OnDLQ = func(r string) { dead.WithLabelValues(r).Inc() }

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log, map[string]metrics.HealthFunc{
		"postgres": pg.PingContext,
	})
	defer metricsSrv.Close()

	log.Info("ledger-projector-worker started",
		zap.String("consume", cfg.TopicMarketEvents),
		zap.String("dlq", cfg.TopicMarketEventsDLQ),
	)
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("projector stopped with error", zap.Error(err))
	}
	log.Info("ledger-projector-worker stopped")
}
