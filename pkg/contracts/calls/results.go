package calls

import "github.com/radieske/updown-market-poc/internal/wire"

type CreateRoundResult struct {
	RoundID uint64
}

func (r CreateRoundResult) Marshal() []byte { return wire.NewArgs().AddU64(r.RoundID).Serialize() }

func (r *CreateRoundResult) Unmarshal(b []byte) error {
	return decode(b, func(rd *wire.Reader) (err error) {
		r.RoundID, err = rd.NextU64()
		return err
	})
}

type PlaceBetResult struct {
	Accepted        uint64
	ProjectedPayout uint64
}

func (r PlaceBetResult) Marshal() []byte {
	return wire.NewArgs().AddU64(r.Accepted).AddU64(r.ProjectedPayout).Serialize()
}

func (r *PlaceBetResult) Unmarshal(b []byte) error {
	return decode(b, func(rd *wire.Reader) (err error) {
		if r.Accepted, err = rd.NextU64(); err != nil {
			return err
		}
		r.ProjectedPayout, err = rd.NextU64()
		return err
	})
}

type SettleResult struct {
	UpWins   bool
	EndPrice float64
}

func (r SettleResult) Marshal() []byte {
	return wire.NewArgs().AddBool(r.UpWins).AddF64(r.EndPrice).Serialize()
}

func (r *SettleResult) Unmarshal(b []byte) error {
	return decode(b, func(rd *wire.Reader) (err error) {
		if r.UpWins, err = rd.NextBool(); err != nil {
			return err
		}
		r.EndPrice, err = rd.NextF64()
		return err
	})
}

// AmountResult é o retorno de claimWinnings e getClaimableAmount.
type AmountResult struct {
	Amount uint64
}

func (r AmountResult) Marshal() []byte { return wire.NewArgs().AddU64(r.Amount).Serialize() }

func (r *AmountResult) Unmarshal(b []byte) error {
	return decode(b, func(rd *wire.Reader) (err error) {
		r.Amount, err = rd.NextU64()
		return err
	})
}

// RoundDetails segue a ordem do contrato: settlementTime vem antes de
// bettingEndTime. Status: 0 ACTIVE, 1 SETTLED.
type RoundDetails struct {
	RoundID        uint64
	StartTime      uint64
	SettlementTime uint64
	BettingEndTime uint64
	StartPrice     float64
	EndPrice       float64
	TotalUpBets    uint64
	TotalDownBets  uint64
	Status         uint8
	UpWins         bool
}

func (r RoundDetails) Marshal() []byte {
	return wire.NewArgs().
		AddU64(r.RoundID).
		AddU64(r.StartTime).
		AddU64(r.SettlementTime).
		AddU64(r.BettingEndTime).
		AddF64(r.StartPrice).
		AddF64(r.EndPrice).
		AddU64(r.TotalUpBets).
		AddU64(r.TotalDownBets).
		AddU8(r.Status).
		AddBool(r.UpWins).
		Serialize()
}

func (r *RoundDetails) Unmarshal(b []byte) error {
	return decode(b, func(rd *wire.Reader) (err error) {
		for _, f := range []*uint64{&r.RoundID, &r.StartTime, &r.SettlementTime, &r.BettingEndTime} {
			if *f, err = rd.NextU64(); err != nil {
				return err
			}
		}
		if r.StartPrice, err = rd.NextF64(); err != nil {
			return err
		}
		if r.EndPrice, err = rd.NextF64(); err != nil {
			return err
		}
		if r.TotalUpBets, err = rd.NextU64(); err != nil {
			return err
		}
		if r.TotalDownBets, err = rd.NextU64(); err != nil {
			return err
		}
		if r.Status, err = rd.NextU8(); err != nil {
			return err
		}
		r.UpWins, err = rd.NextBool()
		return err
	})
}

type UserBetResult struct {
	RoundID    uint64
	User       string
	UpAmount   uint64
	DownAmount uint64
}

func (r UserBetResult) Marshal() []byte {
	return wire.NewArgs().
		AddU64(r.RoundID).
		AddString(r.User).
		AddU64(r.UpAmount).
		AddU64(r.DownAmount).
		Serialize()
}

func (r *UserBetResult) Unmarshal(b []byte) error {
	return decode(b, func(rd *wire.Reader) (err error) {
		if r.RoundID, err = rd.NextU64(); err != nil {
			return err
		}
		if r.User, err = rd.NextString(); err != nil {
			return err
		}
		if r.UpAmount, err = rd.NextU64(); err != nil {
			return err
		}
		r.DownAmount, err = rd.NextU64()
		return err
	})
}

type OddsResult struct {
	UpOdds     float64
	DownOdds   float64
	UpPayout   uint64
	DownPayout uint64
	UpPool     uint64
	DownPool   uint64
}

func (r OddsResult) Marshal() []byte {
	return wire.NewArgs().
		AddF64(r.UpOdds).
		AddF64(r.DownOdds).
		AddU64(r.UpPayout).
		AddU64(r.DownPayout).
		AddU64(r.UpPool).
		AddU64(r.DownPool).
		Serialize()
}

func (r *OddsResult) Unmarshal(b []byte) error {
	return decode(b, func(rd *wire.Reader) (err error) {
		if r.UpOdds, err = rd.NextF64(); err != nil {
			return err
		}
		if r.DownOdds, err = rd.NextF64(); err != nil {
			return err
		}
		for _, f := range []*uint64{&r.UpPayout, &r.DownPayout, &r.UpPool, &r.DownPool} {
			if *f, err = rd.NextU64(); err != nil {
				return err
			}
		}
		return nil
	})
}

type HouseStatusResult struct {
	Balance          uint64
	RoundCounter     uint64
	HouseEdge        float64
	MinBet           uint64
	RoundDuration    uint64
	VirtualLiquidity uint64
}

func (r HouseStatusResult) Marshal() []byte {
	return wire.NewArgs().
		AddU64(r.Balance).
		AddU64(r.RoundCounter).
		AddF64(r.HouseEdge).
		AddU64(r.MinBet).
		AddU64(r.RoundDuration).
		AddU64(r.VirtualLiquidity).
		Serialize()
}

func (r *HouseStatusResult) Unmarshal(b []byte) error {
	return decode(b, func(rd *wire.Reader) (err error) {
		if r.Balance, err = rd.NextU64(); err != nil {
			return err
		}
		if r.RoundCounter, err = rd.NextU64(); err != nil {
			return err
		}
		if r.HouseEdge, err = rd.NextF64(); err != nil {
			return err
		}
		for _, f := range []*uint64{&r.MinBet, &r.RoundDuration, &r.VirtualLiquidity} {
			if *f, err = rd.NextU64(); err != nil {
				return err
			}
		}
		return nil
	})
}
