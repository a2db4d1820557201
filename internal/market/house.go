package market

import (
	"fmt"

	"go.uber.org/zap"
)

// AddHouseFunds credita liquidez na casa.
func (e *Engine) AddHouseFunds(caller string, amount uint64) (Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if caller == "" {
		return Receipt{}, ErrInvalidCaller
	}
	if !e.params.OpenFunding && caller != e.params.Owner {
		return Receipt{}, fmt.Errorf("%w: %s cannot fund the house", ErrUnauthorized, caller)
	}
	if amount == 0 {
		return Receipt{}, fmt.Errorf("%w: funding amount is zero", ErrBelowMinimum)
	}
	if overflows(e.store.house.Balance, amount) {
		return Receipt{}, ErrAmountOverflow
	}

	e.store.house.Balance += amount
	seq := e.commit()

	e.log.Info("house funded",
		zap.String("caller", caller),
		zap.Uint64("amount", amount),
		zap.Uint64("balance", e.store.house.Balance),
	)
	return Receipt{Seq: seq, User: caller, Amount: amount, HouseBalance: e.store.house.Balance}, nil
}

// ClaimWinnings paga ao usuário sua fatia do pool total da rodada:
//
//	payout = stake_vencedor * (up + down) / pool_vencedor
//
// O edge da casa não entra aqui; só afeta as odds cotadas.
func (e *Engine) ClaimWinnings(roundID uint64, user string) (Receipt, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if user == "" {
		return Receipt{}, ErrInvalidCaller
	}
	r, ok := e.store.round(roundID)
	if !ok {
		return Receipt{}, fmt.Errorf("%w: %d", ErrRoundNotFound, roundID)
	}
	if r.Status != StatusSettled {
		return Receipt{}, fmt.Errorf("%w (round %d)", ErrRoundNotSettled, roundID)
	}
	key := BetKey{RoundID: roundID, User: user}
	if e.store.claims[key] {
		return Receipt{}, fmt.Errorf("%w (round %d, user %s)", ErrAlreadyClaimed, roundID, user)
	}
	bet := e.store.bet(key)
	stake := bet.Stake(r.UpWins)
	if stake == 0 {
		return Receipt{}, fmt.Errorf("%w (round %d, user %s)", ErrNoPosition, roundID, user)
	}
	payout := proRata(stake, r.TotalUpBets, r.TotalDownBets, r.WinningPool())
	if payout > e.store.house.Balance {
		e.log.Error("house cannot cover payout",
			zap.Uint64("round_id", roundID),
			zap.Uint64("payout", payout),
			zap.Uint64("balance", e.store.house.Balance),
		)
		return Receipt{}, fmt.Errorf("%w: payout %d, balance %d", ErrInsufficientHouseLiquidity, payout, e.store.house.Balance)
	}

	e.store.claims[key] = true
	e.store.house.Balance -= payout
	seq := e.commit()

	e.log.Info("winnings claimed",
		zap.Uint64("round_id", roundID),
		zap.String("user", user),
		zap.Uint64("payout", payout),
	)
	return Receipt{
		Seq:          seq,
		Round:        *r,
		User:         user,
		Bet:          bet,
		Payout:       payout,
		HouseBalance: e.store.house.Balance,
	}, nil
}

// ClaimableAmount projeta ClaimWinnings sem alterar estado; qualquer
// condição que faria o resgate falhar resulta em 0.
func (e *Engine) ClaimableAmount(roundID uint64, user string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.store.round(roundID)
	if !ok || r.Status != StatusSettled {
		return 0
	}
	key := BetKey{RoundID: roundID, User: user}
	if e.store.claims[key] {
		return 0
	}
	stake := e.store.bet(key).Stake(r.UpWins)
	if stake == 0 {
		return 0
	}
	payout := proRata(stake, r.TotalUpBets, r.TotalDownBets, r.WinningPool())
	if payout > e.store.house.Balance {
		return 0
	}
	return payout
}

// HouseStatus retorna o saldo e a configuração da casa.
func (e *Engine) HouseStatus() HouseStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	h := e.store.house
	return HouseStatus{
		Balance:          h.Balance,
		RoundCounter:     e.store.roundCounter,
		HouseEdge:        h.HouseEdge,
		MinBet:           h.MinBet,
		RoundDuration:    uint64(e.params.RoundDuration.Milliseconds()),
		BettingWindow:    uint64(e.params.BettingWindow.Milliseconds()),
		VirtualLiquidity: h.VirtualLiquidity,
	}
}

// proRata calcula stake*(up+down)/winning com divisão inteira exata.
func proRata(stake, up, down, winning uint64) uint64 {
	if winning == 0 {
		return 0
	}
	total := dec(up).Add(dec(down))
	q, _ := dec(stake).Mul(total).QuoRem(dec(winning), 0)
	return toUnits(q)
}
