package market

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// CreateRound abre a próxima rodada com o preço atual do oráculo.
func (e *Engine) CreateRound(ctx context.Context) (Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if cur, ok := e.store.latest(); ok && cur.Status == StatusActive {
		return Receipt{}, fmt.Errorf("%w (round %d)", ErrRoundActive, cur.ID)
	}
	q, stale, err := e.readPrice(ctx)
	if err != nil {
		return Receipt{}, err
	}

	now := e.now()
	r := &Round{
		ID:              e.store.roundCounter + 1,
		StartTime:       now,
		BettingEndTime:  now + uint64(e.params.BettingWindow.Milliseconds()),
		SettlementTime:  now + uint64(e.params.RoundDuration.Milliseconds()),
		StartPrice:      q.Price,
		Status:          StatusActive,
		StartPriceStale: stale,
	}
	e.store.rounds[r.ID] = r
	e.store.roundCounter = r.ID
	seq := e.commit()

	e.log.Info("round created",
		zap.Uint64("round_id", r.ID),
		zap.Float64("start_price", r.StartPrice),
		zap.Uint64("betting_end", r.BettingEndTime),
		zap.Uint64("settlement", r.SettlementTime),
	)
	return Receipt{Seq: seq, Round: *r, HouseBalance: e.store.house.Balance}, nil
}

// SettleRound fecha a rodada com o preço final. Empate favorece DOWN.
func (e *Engine) SettleRound(ctx context.Context, roundID uint64) (Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.store.round(roundID)
	if !ok {
		return Receipt{}, fmt.Errorf("%w: %d", ErrRoundNotFound, roundID)
	}
	if r.Status == StatusSettled {
		return Receipt{}, fmt.Errorf("%w (round %d)", ErrAlreadySettled, roundID)
	}
	if now := e.now(); now < r.SettlementTime {
		return Receipt{}, fmt.Errorf("%w: %dms left", ErrNotExpired, r.SettlementTime-now)
	}
	q, stale, err := e.readPrice(ctx)
	if err != nil {
		return Receipt{}, err
	}

	r.EndPrice = q.Price
	r.EndPriceStale = stale
	r.UpWins = r.EndPrice > r.StartPrice
	r.Status = StatusSettled
	seq := e.commit()

	e.log.Info("round settled",
		zap.Uint64("round_id", r.ID),
		zap.Float64("start_price", r.StartPrice),
		zap.Float64("end_price", r.EndPrice),
		zap.Bool("up_wins", r.UpWins),
	)
	return Receipt{Seq: seq, Round: *r, HouseBalance: e.store.house.Balance}, nil
}

// Round retorna os detalhes de uma rodada.
func (e *Engine) Round(roundID uint64) (Round, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.store.round(roundID)
	if !ok {
		return Round{}, fmt.Errorf("%w: %d", ErrRoundNotFound, roundID)
	}
	return *r, nil
}

// CurrentRound retorna a rodada mais recente, ativa ou não.
func (e *Engine) CurrentRound() (Round, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.store.latest()
	if !ok {
		return Round{}, fmt.Errorf("%w: no rounds yet", ErrRoundNotFound)
	}
	return *r, nil
}

// Odds cota uma aposta prospectiva sobre os pools atuais da rodada.
func (e *Engine) Odds(roundID, amount uint64) (OddsQuote, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	r, ok := e.store.round(roundID)
	if !ok {
		return OddsQuote{}, fmt.Errorf("%w: %d", ErrRoundNotFound, roundID)
	}
	return QuoteOdds(r.Pools(), e.ammParams(), amount), nil
}
