package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/updown-market-poc/internal/price-simulator/feed"
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
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}

	prometheus.MustRegister(feed.WSConnections, feed.WSMessagesSent)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	h := feed.NewHub(log)
	walk := feed.NewWalk(cfg.Oracle.Symbol, cfg.ServiceName,
		cfg.Sim.StartPrice, cfg.Sim.Volatility, cfg.Sim.JumpChance, time.Now().UnixNano())

	// Gera um preço por tick e envia para todos os clientes conectados
	go func() {
		ticker := time.NewTicker(cfg.Sim.Tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				u := walk.Next(now)
				h.Broadcast(u)
				log.Debug("price tick", zap.Float64("price", u.Price), zap.Int("version", u.Version))
			}
		}
	}()

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log, nil)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.HandleWS)
	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		log.Info("price simulator running",
			zap.String("addr", srv.Addr),
			zap.String("symbol", cfg.Oracle.Symbol),
			zap.Duration("tick", cfg.Sim.Tick),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("public server error", zap.Error(err))
		}
	}()

	<-ctx.Done()
	shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shCtx)
	_ = metricsSrv.Shutdown(shCtx)
}
