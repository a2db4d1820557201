package pubsub

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/updown-market-poc/pkg/contracts/events"
)

// Channel é o canal Redis Pub/Sub lido pelos hubs WebSocket.
const Channel = "market_updates_broadcast"

// RedisBroadcaster repassa os eventos do mercado para todas as réplicas do
// market-service via Redis Pub/Sub.
type RedisBroadcaster struct {
	Rdb     *redis.Client
	Channel string
}

func NewRedisBroadcaster(r *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{Rdb: r, Channel: Channel}
}

func (b *RedisBroadcaster) Emit(ctx context.Context, e events.MarketEvent) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal market event: %w", err)
	}
	return b.Rdb.Publish(ctx, b.Channel, payload).Err()
}
