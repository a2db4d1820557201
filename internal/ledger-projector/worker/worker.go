package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/updown-market-poc/internal/ledger-projector/projection"
	"github.com/radieske/updown-market-poc/pkg/contracts/events"
)

// ErrUnprocessed indica uma mensagem que não foi aplicada nem enviada para
// a DLQ; o consumo para nela.
var ErrUnprocessed = errors.New("market event not processed")

type Source interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Store interface {
	Apply(ctx context.Context, p projection.Projection) (bool, error)
}

type DLQ interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Worker projeta market_events nas tabelas de leitura. Cada mensagem é
// tentada MaxRetries vezes além da primeira; depois vai para a DLQ e o
// offset avança. Se nem a DLQ aceitar a mensagem, Run devolve o erro sem
// confirmar o offset: o commit de uma mensagem posterior pularia a que falhou.
type Worker struct {
	Log        *zap.Logger
	Source     Source
	Store      Store
	DLQ        DLQ // nil: sem DLQ, Run para na primeira mensagem que falhar
	MaxRetries int
	Backoff    time.Duration

	OnApplied   func(eventType string)
	OnDuplicate func()
	OnDLQ       func(reason string)
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		m, err := w.Source.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.Log.Warn("kafka read", zap.Error(err))
			if !sleep(ctx, time.Second) {
				return ctx.Err()
			}
			continue
		}

		if err := w.process(ctx, m); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			w.Log.Error("process market event", zap.Int64("offset", m.Offset), zap.Error(err))
			return fmt.Errorf("%w: partition %d offset %d: %w", ErrUnprocessed, m.Partition, m.Offset, err)
		}
		if err := w.Source.CommitMessages(ctx, m); err != nil {
			w.Log.Warn("kafka commit", zap.Error(err))
		}
	}
}

// process devolve erro só quando a mensagem não foi aplicada nem enviada
// para a DLQ.
func (w *Worker) process(ctx context.Context, m kafka.Message) error {
	var e events.MarketEvent
	if err := json.Unmarshal(m.Value, &e); err != nil {
		return w.deadLetter(ctx, m, "decode", err)
	}
	p, err := projection.FromEvent(e)
	if err != nil {
		return w.deadLetter(ctx, m, "invalid", err)
	}

	var applied bool
	for attempt := 0; ; attempt++ {
		applied, err = w.Store.Apply(ctx, p)
		if err == nil || attempt >= w.MaxRetries {
			break
		}
		// backoff linear, como no fluxo de confirmação
		if !sleep(ctx, time.Duration(attempt+1)*w.Backoff) {
			return ctx.Err()
		}
	}
	if err != nil {
		return w.deadLetter(ctx, m, "apply", err)
	}

	if !applied {
		w.Log.Debug("duplicate market event", zap.String("event_id", e.EventID))
		if w.OnDuplicate != nil {
			w.OnDuplicate()
		}
		return nil
	}
	w.Log.Debug("market event projected", zap.String("type", e.Type), zap.Uint64("seq", e.Seq))
	if w.OnApplied != nil {
		w.OnApplied(e.Type)
	}
	return nil
}

func (w *Worker) deadLetter(ctx context.Context, m kafka.Message, reason string, cause error) error {
	if w.DLQ == nil {
		return fmt.Errorf("%s: %w", reason, cause)
	}
	dl := kafka.Message{
		Key:   m.Key,
		Value: m.Value,
		Headers: []kafka.Header{
			{Key: "reason", Value: []byte(reason)},
			{Key: "error", Value: []byte(cause.Error())},
		},
		Time: time.Now(),
	}
	if err := w.DLQ.WriteMessages(ctx, dl); err != nil {
		return errors.Join(fmt.Errorf("%s: %w", reason, cause), fmt.Errorf("dlq: %w", err))
	}
	w.Log.Warn("market event sent to dlq", zap.String("reason", reason), zap.Int64("offset", m.Offset), zap.Error(cause))
	if w.OnDLQ != nil {
		w.OnDLQ(reason)
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
