package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/segmentio/kafka-go"

	skafka "github.com/radieske/updown-market-poc/internal/shared/kafka"
	"github.com/radieske/updown-market-poc/pkg/contracts/events"
)

// KafkaPublisher publica os eventos de mutação do mercado no tópico
// market_events; a chave é o id da rodada para manter a ordem por rodada.
type KafkaPublisher struct {
	Writer *kafka.Writer
	Topic  string
}

func NewKafkaPublisher(w *kafka.Writer, topic string) *KafkaPublisher {
	return &KafkaPublisher{Writer: w, Topic: topic}
}

func (p *KafkaPublisher) Emit(ctx context.Context, e events.MarketEvent) error {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal market event: %w", err)
	}
	return skafka.WriteJSON(ctx, p.Writer, EventKey(e), b)
}

// EventKey particiona por rodada; aportes da casa vão para "house".
func EventKey(e events.MarketEvent) string {
	if e.RoundID == 0 {
		return "house"
	}
	return strconv.FormatUint(e.RoundID, 10)
}
