package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/updown-market-poc/internal/price-processor/cache"
	"github.com/radieske/updown-market-poc/internal/price-processor/consumer"
	"github.com/radieske/updown-market-poc/internal/price-processor/repository"
	sharedcache "github.com/radieske/updown-market-poc/internal/shared/cache"
	"github.com/radieske/updown-market-poc/internal/shared/config"
	"github.com/radieske/updown-market-poc/internal/shared/db"
	"github.com/radieske/updown-market-poc/internal/shared/kafka"
	"github.com/radieske/updown-market-poc/internal/shared/logger"
	"github.com/radieske/updown-market-poc/internal/shared/metrics"
	"github.com/radieske/updown-market-poc/pkg/contracts/events"
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

	// Sinalização para shutdown gracioso (SIGINT/SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Inicializa dependências: Postgres e Redis
	pg, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("postgres connect", zap.Error(err))
	}
	defer pg.Close()
	if err := db.Migrate(ctx, pg); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}

	redisClient, err := sharedcache.ConnectRedis(ctx, cfg.RedisAddr)
	if err != nil {
		log.Fatal("redis connect", zap.Error(err))
	}
	defer redisClient.Close()

	reader := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicPriceUpdates, "price-processor")
	defer reader.Close()

	// Métricas Prometheus para monitoramento do processamento
	consumed := prometheus.NewCounter(prometheus.CounterOpts{Name: "price_proc_messages_consumed_total", Help: "mensagens consumidas"})
	cached := prometheus.NewCounter(prometheus.CounterOpts{Name: "price_proc_cache_sets_total", Help: "preço corrente atualizado"})
	persist := prometheus.NewCounter(prometheus.CounterOpts{Name: "price_proc_db_writes_total", Help: "escritas no histórico"})
	errorsBy := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "price_proc_errors_total", Help: "erros por estágio"}, []string{"stage"})
	prometheus.MustRegister(consumed, cached, persist, errorsBy)

	proc := &consumer.Processor{
		Log:        log,
		Source:     reader,
		Repo:       repository.NewPostgresRepo(pg),
		Cache:      cache.NewRedisCache(redisClient, cfg.PriceCacheTTL),
		OnConsumed: consumed.Inc,
		OnCached:   cached.Inc,
		OnPersist:  persist.Inc,
		OnError:    func(stage string) { errorsBy.WithLabelValues(stage).Inc() },

		// Preço novo vai para o Redis Pub/Sub (UI de preço ao vivo)
		OnAfterCache: func(u events.PriceUpdate) {
			b, _ := json.Marshal(u)
			pctx, pcancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
			defer pcancel()
			if err := redisClient.Publish(pctx, cfg.RedisPriceChannel, b).Err(); err != nil {
				log.Warn("price broadcast publish failed", zap.Error(err))
			}
		},
	}

	metricsSrv := metrics.StartMetricsServer(cfg.MetricsPort, log, map[string]metrics.HealthFunc{
		"postgres": pg.PingContext,
		"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
	})
	defer metricsSrv.Close()

	log.Info("price-processor started", zap.String("topic", cfg.TopicPriceUpdates))
	if err := proc.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal("processor stopped with error", zap.Error(err))
	}
	log.Info("price-processor stopped")
}
