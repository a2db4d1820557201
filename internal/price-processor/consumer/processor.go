package consumer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/updown-market-poc/pkg/contracts/events"
)

type Source interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Cache interface {
	SetCurrent(ctx context.Context, u events.PriceUpdate) (bool, error)
}

type History interface {
	InsertHistory(ctx context.Context, u events.PriceUpdate) error
}

// Processor consome price_updates, atualiza o preço corrente no Redis e
// grava o histórico no Postgres. O offset só é confirmado depois da
// persistência; falhas de banco fazem a mensagem ser relida.
type Processor struct {
	Log    *zap.Logger
	Source Source
	Repo   History
	Cache  Cache

	OnConsumed func()
	OnCached   func()
	OnPersist  func()
	OnError    func(string) // métricas por fase

	// chamado quando o preço corrente avançou
	OnAfterCache func(u events.PriceUpdate)

	RetryDelay time.Duration
}

func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Source.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.Error(err))
			p.fail("read")
			p.sleep(ctx)
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed()
		}

		if err := p.Handle(ctx, m.Value); err != nil {
			// não confirma: a mensagem volta depois do rebalance/restart
			p.sleep(ctx)
			continue
		}
		if err := p.Source.CommitMessages(ctx, m); err != nil {
			p.Log.Warn("kafka commit failed", zap.Error(err))
			p.fail("commit")
		}
	}
}

// Handle processa um payload. Mensagens inválidas são descartadas (nil) para
// não travar a partição.
func (p *Processor) Handle(ctx context.Context, value []byte) error {
	var u events.PriceUpdate
	if err := json.Unmarshal(value, &u); err != nil || u.Symbol == "" || !(u.Price > 0) {
		p.Log.Warn("invalid message", zap.ByteString("value", value), zap.Error(err))
		p.fail("decode")
		return nil
	}

	// falha no cache não bloqueia o histórico
	advanced, err := p.Cache.SetCurrent(ctx, u)
	switch {
	case err != nil:
		p.Log.Warn("redis set failed", zap.Error(err))
		p.fail("cache")
	case advanced:
		if p.OnCached != nil {
			p.OnCached()
		}
		if p.OnAfterCache != nil {
			p.OnAfterCache(u)
		}
	default:
		p.Log.Debug("stale price ignored", zap.String("symbol", u.Symbol), zap.Int("version", u.Version))
	}

	if err := p.Repo.InsertHistory(ctx, u); err != nil {
		p.Log.Warn("db insert history failed", zap.Error(err))
		p.fail("db_history")
		return err
	}
	if p.OnPersist != nil {
		p.OnPersist()
	}
	return nil
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

func (p *Processor) sleep(ctx context.Context) {
	d := p.RetryDelay
	if d <= 0 {
		d = 500 * time.Millisecond
	}
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
