// Package calls define os esquemas posicionais (ordem e largura dos campos)
// dos argumentos e retornos de cada operação do mercado.
package calls

import (
	"errors"
	"fmt"

	"github.com/radieske/updown-market-poc/internal/wire"
)

// Nomes das operações expostas pelo contrato.
const (
	OpCreateRound        = "createRound"
	OpPlaceBet           = "placeBet"
	OpSettleRound        = "settleRound"
	OpClaimWinnings      = "claimWinnings"
	OpGetCurrentRound    = "getCurrentRound"
	OpGetRoundDetails    = "getRoundDetails"
	OpGetUserBet         = "getUserBet"
	OpGetAMMOdds         = "getAMMOdds"
	OpGetHouseStatus     = "getHouseStatus"
	OpAddHouseFunds      = "addHouseFunds"
	OpGetClaimableAmount = "getClaimableAmount"
)

// Payable indica se a operação consome moedas transferidas pelo chamador.
func Payable(op string) bool { return op == OpPlaceBet || op == OpAddHouseFunds }

var ErrTrailingBytes = errors.New("calls: trailing bytes after last field")

func decode(b []byte, fields func(r *wire.Reader) error) error {
	r := wire.NewReader(b)
	if err := fields(r); err != nil {
		return err
	}
	if n := r.Remaining(); n != 0 {
		return fmt.Errorf("%w (%d)", ErrTrailingBytes, n)
	}
	return nil
}

// RoundID é o argumento de settleRound, claimWinnings e getRoundDetails.
type RoundID struct {
	RoundID uint64
}

func (a RoundID) Marshal() []byte { return wire.NewArgs().AddU64(a.RoundID).Serialize() }

func (a *RoundID) Unmarshal(b []byte) error {
	return decode(b, func(r *wire.Reader) (err error) {
		a.RoundID, err = r.NextU64()
		return err
	})
}

// OptionalRoundID é o argumento de getCurrentRound: vazio significa a rodada
// mais recente.
type OptionalRoundID struct {
	RoundID uint64
	Set     bool
}

func (a OptionalRoundID) Marshal() []byte {
	if !a.Set {
		return nil
	}
	return RoundID{RoundID: a.RoundID}.Marshal()
}

func (a *OptionalRoundID) Unmarshal(b []byte) error {
	if len(b) == 0 {
		*a = OptionalRoundID{}
		return nil
	}
	var id RoundID
	if err := id.Unmarshal(b); err != nil {
		return err
	}
	*a = OptionalRoundID{RoundID: id.RoundID, Set: true}
	return nil
}

type PlaceBetArgs struct {
	RoundID uint64
	BetUp   bool
}

func (a PlaceBetArgs) Marshal() []byte {
	return wire.NewArgs().AddU64(a.RoundID).AddBool(a.BetUp).Serialize()
}

func (a *PlaceBetArgs) Unmarshal(b []byte) error {
	return decode(b, func(r *wire.Reader) (err error) {
		if a.RoundID, err = r.NextU64(); err != nil {
			return err
		}
		a.BetUp, err = r.NextBool()
		return err
	})
}

type UserArgs struct {
	RoundID uint64
	User    string
}

func (a UserArgs) Marshal() []byte {
	return wire.NewArgs().AddU64(a.RoundID).AddString(a.User).Serialize()
}

func (a *UserArgs) Unmarshal(b []byte) error {
	return decode(b, func(r *wire.Reader) (err error) {
		if a.RoundID, err = r.NextU64(); err != nil {
			return err
		}
		a.User, err = r.NextString()
		return err
	})
}

type OddsArgs struct {
	RoundID uint64
	Amount  uint64
}

func (a OddsArgs) Marshal() []byte {
	return wire.NewArgs().AddU64(a.RoundID).AddU64(a.Amount).Serialize()
}

func (a *OddsArgs) Unmarshal(b []byte) error {
	return decode(b, func(r *wire.Reader) (err error) {
		if a.RoundID, err = r.NextU64(); err != nil {
			return err
		}
		a.Amount, err = r.NextU64()
		return err
	})
}

// NoArgs valida que createRound, getHouseStatus e addHouseFunds vieram sem
// argumentos.
func NoArgs(b []byte) error { return decode(b, func(*wire.Reader) error { return nil }) }
