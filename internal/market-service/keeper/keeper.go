// Package keeper mantém o mercado girando: abre uma rodada quando não há
// nenhuma ativa e liquida a rodada ativa assim que ela expira.
package keeper

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/updown-market-poc/internal/contract"
	"github.com/radieske/updown-market-poc/internal/market"
	"github.com/radieske/updown-market-poc/pkg/contracts/calls"
)

// Caller é o endereço usado pelo keeper nas chamadas ao contrato.
const Caller = "keeper"

type Keeper struct {
	d        *contract.Dispatcher
	interval time.Duration
	log      *zap.Logger
	now      func() time.Time
}

func New(d *contract.Dispatcher, interval time.Duration, log *zap.Logger) *Keeper {
	if log == nil {
		log = zap.NewNop()
	}
	return &Keeper{d: d, interval: interval, log: log, now: time.Now}
}

// WithClock troca o relógio usado para decidir a liquidação (testes).
func (k *Keeper) WithClock(now func() time.Time) *Keeper {
	k.now = now
	return k
}

// Run executa Tick a cada intervalo até o contexto ser cancelado.
func (k *Keeper) Run(ctx context.Context) {
	t := time.NewTicker(k.interval)
	defer t.Stop()
	for {
		if err := k.Tick(ctx); err != nil {
			k.log.Warn("keeper tick", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

// Tick faz no máximo uma liquidação seguida de uma criação.
func (k *Keeper) Tick(ctx context.Context) error {
	cur, err := k.d.Engine().CurrentRound()
	switch {
	case errors.Is(err, market.ErrRoundNotFound):
		return k.create(ctx)
	case err != nil:
		return err
	case cur.Status == market.StatusSettled:
		return k.create(ctx)
	case uint64(k.now().UnixMilli()) < cur.SettlementTime:
		return nil
	}

	_, err = k.d.Dispatch(ctx, contract.Call{
		Operation: calls.OpSettleRound,
		Caller:    Caller,
		Args:      calls.RoundID{RoundID: cur.ID}.Marshal(),
	})
	if err != nil && !errors.Is(err, market.ErrAlreadySettled) {
		return err
	}
	return k.create(ctx)
}

func (k *Keeper) create(ctx context.Context) error {
	_, err := k.d.Dispatch(ctx, contract.Call{Operation: calls.OpCreateRound, Caller: Caller})
	if errors.Is(err, market.ErrRoundActive) {
		return nil
	}
	return err
}
