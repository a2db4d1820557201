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

	"github.com/radieske/updown-market-poc/internal/contract"
	"github.com/radieske/updown-market-poc/internal/market"
	mhttp "github.com/radieske/updown-market-poc/internal/market-service/http"
	"github.com/radieske/updown-market-poc/internal/market-service/keeper"
	"github.com/radieske/updown-market-poc/internal/market-service/producer"
	"github.com/radieske/updown-market-poc/internal/market-service/pubsub"
	mrepo "github.com/radieske/updown-market-poc/internal/market-service/repo"
	"github.com/radieske/updown-market-poc/internal/market-service/wallet"
	"github.com/radieske/updown-market-poc/internal/market-service/ws"
	"github.com/radieske/updown-market-poc/internal/oracle"
	"github.com/radieske/updown-market-poc/internal/shared/cache"
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
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()
	if err := cfg.Validate(); err != nil {
		log.Fatal("invalid config", zap.Error(err))
	}
	log.Info("starting service", zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Postgres: snapshot do estado do mercado
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()
	if err := db.Migrate(ctx, pg); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	// Redis: preço corrente (oráculo) e pub/sub entre réplicas
	rdb, err := cache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	defer rdb.Close()

	var feed oracle.PriceFeed = oracle.NewRedisFeed(rdb, cfg.Oracle.Symbol)
	if cfg.Oracle.StaticPrice > 0 {
		feed = oracle.NewStaticFeed(cfg.Oracle.StaticPrice, uint64(time.Now().UnixMilli()))
		log.Warn("using static price feed", zap.Float64("price", cfg.Oracle.StaticPrice))
	}
	gw := oracle.NewGateway(feed, cfg.Oracle.MaxAge)

	eng, err := market.NewEngine(cfg.MarketParams(), gw, log.Named("engine"))
	if err != nil {
		log.Fatal("engine init", zap.Error(err))
	}

	repo := mrepo.NewPostgres(pg)
	if cfg.Market.RestoreSnapshot {
		st, ok, err := repo.Load(ctx)
		if err != nil {
			log.Fatal("load market snapshot", zap.Error(err))
		}
		if ok {
			if err := eng.Restore(st); err != nil {
				log.Fatal("restore market snapshot", zap.Error(err))
			}
			log.Info("market state restored",
				zap.Uint64("seq", st.Seq),
				zap.Uint64("round_counter", st.RoundCounter),
				zap.Uint64("house_balance", st.HouseBalance),
			)
		}
	}

	// Sinks: snapshot primeiro, depois Kafka (projector) e Redis (WebSocket)
	writer := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicMarketEvents)
	defer writer.Close()
	d := contract.NewDispatcher(eng, log.Named("contract"),
		repo.Sink(eng),
		producer.NewKafkaPublisher(writer, cfg.TopicMarketEvents),
		pubsub.NewRedisBroadcaster(rdb),
	)

	hub := ws.NewHub(func(*http.Request) bool { return true }, log.Named("ws"))
	go ws.StartRedisSubscriber(ctx, rdb, hub, log)

	if cfg.Keeper.Enabled {
		k := keeper.New(d, cfg.Keeper.Interval, log.Named("keeper"))
		go k.Run(ctx)
		log.Info("keeper enabled", zap.Duration("interval", cfg.Keeper.Interval))
	}

	var custody mhttp.Custody
	if cfg.Market.UseCustody {
		custody = wallet.New(cfg.WalletURL)
	}
	api := mhttp.NewServer(log, d, custody, hub.HandleWS, mhttp.NewMetrics(prometheus.DefaultRegisterer)).
		WithPending(mrepo.NewPendingOps(pg))
	if rec := api.Reconciler(); rec != nil {
		go rec.Run(ctx, cfg.Market.ReconcileInterval)
		log.Info("wallet reconciler enabled", zap.Duration("interval", cfg.Market.ReconcileInterval))
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log, map[string]metrics.HealthFunc{
		"postgres": pg.PingContext,
		"redis":    func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	})

	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("api listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("api srv", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiSrv.Shutdown(shCtx)
	_ = metricsSrv.Shutdown(shCtx)

	// último snapshot garante o seq mais recente no banco
	if err := repo.Save(shCtx, eng.Snapshot()); err != nil {
		log.Error("final snapshot", zap.Error(err))
	}
}
