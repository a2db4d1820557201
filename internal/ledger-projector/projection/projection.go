// Package projection traduz os eventos do mercado nas linhas das tabelas de
// leitura (rounds, user_bets, claims, house_ledger).
package projection

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/radieske/updown-market-poc/pkg/contracts/events"
)

var ErrInvalidEvent = errors.New("invalid market event")

type BetRow struct {
	RoundID    uint64
	User       string
	UpAmount   uint64
	DownAmount uint64
}

type ClaimRow struct {
	RoundID uint64
	User    string
	Amount  uint64
}

// HouseEntry é um lançamento no extrato da casa; Delta negativo é saída.
type HouseEntry struct {
	Kind    string
	RoundID uint64
	User    string
	Delta   int64
	Balance uint64
}

type Projection struct {
	EventID string
	Seq     uint64
	Round   *events.RoundState
	Bet     *BetRow
	Claim   *ClaimRow
	House   *HouseEntry
}

// FromEvent valida o evento e monta as escritas correspondentes.
func FromEvent(e events.MarketEvent) (Projection, error) {
	if _, err := uuid.Parse(e.EventID); err != nil {
		return Projection{}, fmt.Errorf("%w: event_id %q", ErrInvalidEvent, e.EventID)
	}
	if e.Seq == 0 {
		return Projection{}, fmt.Errorf("%w: missing seq", ErrInvalidEvent)
	}
	p := Projection{EventID: e.EventID, Seq: e.Seq}

	needRound := func() error {
		if e.Round == nil || e.Round.RoundID == 0 {
			return fmt.Errorf("%w: %s without round", ErrInvalidEvent, e.Type)
		}
		p.Round = e.Round
		return nil
	}

	switch e.Type {
	case events.TypeRoundCreated, events.TypeRoundSettled:
		if err := needRound(); err != nil {
			return Projection{}, err
		}

	case events.TypeBetPlaced:
		if err := needRound(); err != nil {
			return Projection{}, err
		}
		if e.User == "" || e.Amount == 0 {
			return Projection{}, fmt.Errorf("%w: bet without user or amount", ErrInvalidEvent)
		}
		p.Bet = &BetRow{RoundID: e.RoundID, User: e.User, UpAmount: e.UserUp, DownAmount: e.UserDown}
		p.House = &HouseEntry{Kind: "STAKE", RoundID: e.RoundID, User: e.User, Delta: toDelta(e.Amount), Balance: e.HouseBalance}

	case events.TypeWinningsClaimed:
		if err := needRound(); err != nil {
			return Projection{}, err
		}
		if e.User == "" {
			return Projection{}, fmt.Errorf("%w: claim without user", ErrInvalidEvent)
		}
		p.Claim = &ClaimRow{RoundID: e.RoundID, User: e.User, Amount: e.Payout}
		p.House = &HouseEntry{Kind: "PAYOUT", RoundID: e.RoundID, User: e.User, Delta: -toDelta(e.Payout), Balance: e.HouseBalance}

	case events.TypeHouseFunded:
		if e.Amount == 0 {
			return Projection{}, fmt.Errorf("%w: funding without amount", ErrInvalidEvent)
		}
		p.House = &HouseEntry{Kind: "FUNDING", User: e.User, Delta: toDelta(e.Amount), Balance: e.HouseBalance}

	default:
		return Projection{}, fmt.Errorf("%w: unknown type %q", ErrInvalidEvent, e.Type)
	}
	return p, nil
}

// toDelta limita ao maior int64; valores acima disso não cabem em BIGINT.
func toDelta(v uint64) int64 {
	const maxInt64 = 1<<63 - 1
	if v > maxInt64 {
		return maxInt64
	}
	return int64(v)
}
