package market

import (
	"fmt"

	"go.uber.org/zap"
)

// PlaceBet registra o stake transferido pelo usuário. O payout projetado é
// a cotação do AMM com o stake já no pool do lado escolhido; é informativo,
// a liquidação paga o rateio real.
func (e *Engine) PlaceBet(roundID uint64, user string, up bool, amount uint64) (Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if user == "" {
		return Receipt{}, ErrInvalidCaller
	}
	if amount < e.params.MinBet {
		return Receipt{}, fmt.Errorf("%w: %d < %d", ErrBelowMinimum, amount, e.params.MinBet)
	}
	r, ok := e.store.round(roundID)
	if !ok {
		return Receipt{}, fmt.Errorf("%w: %w: %d", ErrRoundNotActive, ErrRoundNotFound, roundID)
	}
	if r.Status != StatusActive {
		return Receipt{}, fmt.Errorf("%w (round %d)", ErrRoundNotActive, roundID)
	}
	if e.now() >= r.BettingEndTime {
		return Receipt{}, fmt.Errorf("%w (round %d)", ErrBettingClosed, roundID)
	}

	key := BetKey{RoundID: roundID, User: user}
	bet := e.store.bet(key)
	pool := r.TotalDownBets
	if up {
		pool = r.TotalUpBets
	}
	if overflows(pool, amount) || overflows(bet.Stake(up), amount) || overflows(e.store.house.Balance, amount) {
		return Receipt{}, ErrAmountOverflow
	}

	q := QuoteOdds(r.Pools(), e.ammParams(), amount)
	projected := q.DownPayout
	if up {
		projected = q.UpPayout
		r.TotalUpBets += amount
		bet.UpAmount += amount
	} else {
		r.TotalDownBets += amount
		bet.DownAmount += amount
	}
	e.store.bets[key] = &bet
	e.store.house.Balance += amount
	seq := e.commit()

	e.log.Debug("bet placed",
		zap.Uint64("round_id", roundID),
		zap.String("user", user),
		zap.String("side", string(SideOf(up))),
		zap.Uint64("amount", amount),
		zap.Uint64("projected_payout", projected),
	)
	return Receipt{
		Seq:          seq,
		Round:        *r,
		User:         user,
		Bet:          bet,
		Amount:       amount,
		Payout:       projected,
		HouseBalance: e.store.house.Balance,
	}, nil
}

// GetUserBet nunca falha: sem aposta, retorna zeros.
func (e *Engine) GetUserBet(roundID uint64, user string) UserBet {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.bet(BetKey{RoundID: roundID, User: user})
}

func overflows(a, b uint64) bool { return a > ^uint64(0)-b }
