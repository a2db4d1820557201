package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/updown-market-poc/internal/oracle"
	"github.com/radieske/updown-market-poc/pkg/contracts/events"
)

// setIfNewer grava ARGV[1] só se o ts guardado em KEYS[2] for menor que ARGV[2].
// Mensagens reentregues fora de ordem não regridem o preço corrente.
var setIfNewer = redis.NewScript(`
local cur = redis.call("GET", KEYS[2])
if cur and tonumber(cur) >= tonumber(ARGV[2]) then
  return 0
end
redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[3])
redis.call("SET", KEYS[2], ARGV[2], "PX", ARGV[3])
return 1
`)

// RedisCache mantém o último preço por símbolo, lido pelo oráculo do
// market-service.
type RedisCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisCache(c *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{Client: c, TTL: ttl}
}

func tsKey(symbol string) string { return oracle.CurrentPriceKey(symbol) + ":ts" }

// SetCurrent devolve false quando já havia um preço mais novo.
func (r *RedisCache) SetCurrent(ctx context.Context, u events.PriceUpdate) (bool, error) {
	b, err := json.Marshal(u)
	if err != nil {
		return false, err
	}
	n, err := setIfNewer.Run(ctx, r.Client,
		[]string{oracle.CurrentPriceKey(u.Symbol), tsKey(u.Symbol)},
		b, u.TsUnixMs, r.TTL.Milliseconds(),
	).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
