package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/updown-market-poc/internal/price-ingest/publisher"
	"github.com/radieske/updown-market-poc/internal/price-ingest/service"
	"github.com/radieske/updown-market-poc/internal/shared/config"
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

	log.Info("Kafka brokers", zap.String("brokers", cfg.KafkaBrokers))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Env == "local" || cfg.Env == "dev" {
		if err := publisher.EnsureTopic(ctx, cfg.KafkaBrokers, cfg.TopicPriceUpdates, log); err != nil {
			log.Warn("ensure kafka topic", zap.Error(err))
		}
	}

	pub := publisher.NewKafkaPublisher(cfg.KafkaBrokers, cfg.TopicPriceUpdates, log)
	defer pub.Close()

	published := prometheus.NewCounter(prometheus.CounterOpts{Name: "price_ingest_published_total", Help: "ticks publicados no Kafka"})
	rejected := prometheus.NewCounter(prometheus.CounterOpts{Name: "price_ingest_rejected_total", Help: "ticks inválidos descartados"})
	prometheus.MustRegister(published, rejected)

	wsClient := &service.WSClient{
		URL:         cfg.PriceWSURL,
		Symbol:      cfg.Oracle.Symbol,
		Log:         log,
		Publisher:   pub,
		OnPublished: published.Inc,
		OnRejected:  rejected.Inc,
	}
	done := make(chan struct{})
	go func() {
		wsClient.Start(ctx)
		close(done)
	}()

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log, nil)

	<-ctx.Done()
	log.Info("shutdown signal received")
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
	shCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = metricsSrv.Shutdown(shCtx)
}
