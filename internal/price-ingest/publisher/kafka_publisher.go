package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	skafka "github.com/radieske/updown-market-poc/internal/shared/kafka"
	"github.com/radieske/updown-market-poc/pkg/contracts/events"
)

// KafkaPublisher publica os ticks de preço no tópico price_updates, com o
// símbolo como chave.
type KafkaPublisher struct {
	writer *kafka.Writer
	log    *zap.Logger
}

func NewKafkaPublisher(brokers, topic string, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: skafka.NewWriter(brokers, topic), log: log}
}

// EnsureTopic cria o tópico via controller do cluster. Usado só em
// ambientes local/dev, onde não há provisionamento de tópicos.
func EnsureTopic(ctx context.Context, brokers, topic string, log *zap.Logger) error {
	list := skafka.Brokers(brokers)
	if len(list) == 0 {
		return fmt.Errorf("kafka brokers not provided")
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	conn, err := kafka.DialContext(ctx, "tcp", list[0])
	if err != nil {
		return fmt.Errorf("dial kafka: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("kafka controller: %w", err)
	}
	cconn, err := kafka.DialContext(ctx, "tcp", fmt.Sprintf("%s:%d", controller.Host, controller.Port))
	if err != nil {
		return fmt.Errorf("dial controller: %w", err)
	}
	defer cconn.Close()

	// single-broker: uma partição, sem réplica
	err = cconn.CreateTopics(kafka.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1})
	if err != nil && !strings.Contains(err.Error(), "already exists") {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if err == nil {
		log.Info("kafka topic created", zap.String("topic", topic))
	}
	return nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, u events.PriceUpdate) error {
	value, err := json.Marshal(u)
	if err != nil {
		return err
	}
	if err := skafka.WriteJSON(ctx, p.writer, u.Symbol, value); err != nil {
		return err
	}
	p.log.Debug("published price update", zap.String("symbol", u.Symbol), zap.Int("version", u.Version))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
