package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/updown-market-poc/pkg/contracts/events"
)

// CurrentPriceKey é a chave onde o price-processor grava o último preço.
func CurrentPriceKey(symbol string) string { return "price:current:" + symbol }

// RedisFeed lê o preço corrente publicado pelo price-processor-worker.
type RedisFeed struct {
	Rdb    *redis.Client
	Symbol string
}

func NewRedisFeed(r *redis.Client, symbol string) *RedisFeed {
	return &RedisFeed{Rdb: r, Symbol: symbol}
}

func (f *RedisFeed) CurrentPrice(ctx context.Context) (Quote, error) {
	b, err := f.Rdb.Get(ctx, CurrentPriceKey(f.Symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Quote{}, fmt.Errorf("%w: %s", ErrNoPrice, f.Symbol)
	}
	if err != nil {
		return Quote{}, fmt.Errorf("redis get price: %w", err)
	}
	var upd events.PriceUpdate
	if err := json.Unmarshal(b, &upd); err != nil {
		return Quote{}, fmt.Errorf("decode price update: %w", err)
	}
	return Quote{Price: upd.Price, Timestamp: uint64(upd.TsUnixMs)}, nil
}
