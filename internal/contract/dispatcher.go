// Package contract expõe o Engine através do protocolo binário posicional:
// decodifica os argumentos, executa a operação, codifica o retorno e avisa
// os sinks sobre cada mutação aceita.
package contract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/updown-market-poc/internal/market"
	"github.com/radieske/updown-market-poc/pkg/contracts/calls"
	"github.com/radieske/updown-market-poc/pkg/contracts/events"
)

var (
	ErrUnknownOperation = errors.New("unknown operation")
	ErrBadArgs          = errors.New("malformed arguments")
	ErrUnexpectedCoins  = errors.New("operation does not accept coins")
)

// Call é uma invocação externa. Coins são as moedas já transferidas pelo
// chamador (stake ou aporte).
type Call struct {
	Operation string
	Caller    string
	Coins     uint64
	Args      []byte
}

// Sink recebe os eventos de mutação (kafka, redis, snapshot).
type Sink interface {
	Emit(ctx context.Context, e events.MarketEvent) error
}

type SinkFunc func(ctx context.Context, e events.MarketEvent) error

func (f SinkFunc) Emit(ctx context.Context, e events.MarketEvent) error { return f(ctx, e) }

type Dispatcher struct {
	eng   *market.Engine
	log   *zap.Logger
	sinks []Sink
	now   func() time.Time
}

func NewDispatcher(eng *market.Engine, log *zap.Logger, sinks ...Sink) *Dispatcher {
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{eng: eng, log: log, sinks: sinks, now: time.Now}
}

// AddSink registra mais um destino de eventos; não é seguro chamar depois
// que o Dispatcher começou a atender.
func (d *Dispatcher) AddSink(s Sink) { d.sinks = append(d.sinks, s) }

func (d *Dispatcher) Engine() *market.Engine { return d.eng }

// Dispatch executa a chamada e retorna o resultado codificado.
func (d *Dispatcher) Dispatch(ctx context.Context, c Call) ([]byte, error) {
	if c.Coins > 0 && !calls.Payable(c.Operation) {
		return nil, fmt.Errorf("%w: %s", ErrUnexpectedCoins, c.Operation)
	}

	switch c.Operation {
	case calls.OpCreateRound:
		if err := calls.NoArgs(c.Args); err != nil {
			return nil, badArgs(err)
		}
		rc, err := d.eng.CreateRound(ctx)
		if err != nil {
			return nil, err
		}
		d.emit(ctx, d.event(events.TypeRoundCreated, rc))
		return calls.CreateRoundResult{RoundID: rc.Round.ID}.Marshal(), nil

	case calls.OpPlaceBet:
		var a calls.PlaceBetArgs
		if err := a.Unmarshal(c.Args); err != nil {
			return nil, badArgs(err)
		}
		rc, err := d.eng.PlaceBet(a.RoundID, c.Caller, a.BetUp, c.Coins)
		if err != nil {
			return nil, err
		}
		e := d.event(events.TypeBetPlaced, rc)
		e.Side = string(market.SideOf(a.BetUp))
		d.emit(ctx, e)
		return calls.PlaceBetResult{Accepted: rc.Amount, ProjectedPayout: rc.Payout}.Marshal(), nil

	case calls.OpSettleRound:
		var a calls.RoundID
		if err := a.Unmarshal(c.Args); err != nil {
			return nil, badArgs(err)
		}
		rc, err := d.eng.SettleRound(ctx, a.RoundID)
		if err != nil {
			return nil, err
		}
		d.emit(ctx, d.event(events.TypeRoundSettled, rc))
		return calls.SettleResult{UpWins: rc.Round.UpWins, EndPrice: rc.Round.EndPrice}.Marshal(), nil

	case calls.OpClaimWinnings:
		var a calls.RoundID
		if err := a.Unmarshal(c.Args); err != nil {
			return nil, badArgs(err)
		}
		rc, err := d.eng.ClaimWinnings(a.RoundID, c.Caller)
		if err != nil {
			return nil, err
		}
		d.emit(ctx, d.event(events.TypeWinningsClaimed, rc))
		return calls.AmountResult{Amount: rc.Payout}.Marshal(), nil

	case calls.OpAddHouseFunds:
		if err := calls.NoArgs(c.Args); err != nil {
			return nil, badArgs(err)
		}
		rc, err := d.eng.AddHouseFunds(c.Caller, c.Coins)
		if err != nil {
			return nil, err
		}
		d.emit(ctx, d.event(events.TypeHouseFunded, rc))
		return nil, nil

	case calls.OpGetCurrentRound:
		var a calls.OptionalRoundID
		if err := a.Unmarshal(c.Args); err != nil {
			return nil, badArgs(err)
		}
		var (
			r   market.Round
			err error
		)
		if a.Set {
			r, err = d.eng.Round(a.RoundID)
		} else {
			r, err = d.eng.CurrentRound()
		}
		if err != nil {
			return nil, err
		}
		return RoundDetails(r).Marshal(), nil

	case calls.OpGetRoundDetails:
		var a calls.RoundID
		if err := a.Unmarshal(c.Args); err != nil {
			return nil, badArgs(err)
		}
		r, err := d.eng.Round(a.RoundID)
		if err != nil {
			return nil, err
		}
		return RoundDetails(r).Marshal(), nil

	case calls.OpGetUserBet:
		var a calls.UserArgs
		if err := a.Unmarshal(c.Args); err != nil {
			return nil, badArgs(err)
		}
		b := d.eng.GetUserBet(a.RoundID, a.User)
		return calls.UserBetResult{RoundID: a.RoundID, User: a.User, UpAmount: b.UpAmount, DownAmount: b.DownAmount}.Marshal(), nil

	case calls.OpGetAMMOdds:
		var a calls.OddsArgs
		if err := a.Unmarshal(c.Args); err != nil {
			return nil, badArgs(err)
		}
		q, err := d.eng.Odds(a.RoundID, a.Amount)
		if err != nil {
			return nil, err
		}
		return calls.OddsResult(q).Marshal(), nil

	case calls.OpGetHouseStatus:
		if err := calls.NoArgs(c.Args); err != nil {
			return nil, badArgs(err)
		}
		hs := d.eng.HouseStatus()
		return calls.HouseStatusResult{
			Balance:          hs.Balance,
			RoundCounter:     hs.RoundCounter,
			HouseEdge:        hs.HouseEdge,
			MinBet:           hs.MinBet,
			RoundDuration:    hs.RoundDuration,
			VirtualLiquidity: hs.VirtualLiquidity,
		}.Marshal(), nil

	case calls.OpGetClaimableAmount:
		var a calls.UserArgs
		if err := a.Unmarshal(c.Args); err != nil {
			return nil, badArgs(err)
		}
		return calls.AmountResult{Amount: d.eng.ClaimableAmount(a.RoundID, a.User)}.Marshal(), nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnknownOperation, c.Operation)
}

// RoundDetails converte a rodada para o layout de retorno do contrato.
func RoundDetails(r market.Round) calls.RoundDetails {
	return calls.RoundDetails{
		RoundID:        r.ID,
		StartTime:      r.StartTime,
		SettlementTime: r.SettlementTime,
		BettingEndTime: r.BettingEndTime,
		StartPrice:     r.StartPrice,
		EndPrice:       r.EndPrice,
		TotalUpBets:    r.TotalUpBets,
		TotalDownBets:  r.TotalDownBets,
		Status:         uint8(r.Status),
		UpWins:         r.UpWins,
	}
}

func badArgs(err error) error { return fmt.Errorf("%w: %w", ErrBadArgs, err) }

func (d *Dispatcher) event(typ string, rc market.Receipt) events.MarketEvent {
	e := events.MarketEvent{
		EventID:      uuid.NewString(),
		Type:         typ,
		Seq:          rc.Seq,
		User:         rc.User,
		Amount:       rc.Amount,
		Payout:       rc.Payout,
		UserUp:       rc.Bet.UpAmount,
		UserDown:     rc.Bet.DownAmount,
		HouseBalance: rc.HouseBalance,
		TsUnixMs:     d.now().UnixMilli(),
	}
	if rc.Round.ID != 0 {
		e.RoundID = rc.Round.ID
		rs := RoundState(rc.Round)
		e.Round = &rs
	}
	return e
}

// RoundState converte a rodada para o formato dos eventos.
func RoundState(r market.Round) events.RoundState {
	return events.RoundState{
		RoundID:         r.ID,
		StartTime:       r.StartTime,
		BettingEndTime:  r.BettingEndTime,
		SettlementTime:  r.SettlementTime,
		StartPrice:      r.StartPrice,
		EndPrice:        r.EndPrice,
		TotalUpBets:     r.TotalUpBets,
		TotalDownBets:   r.TotalDownBets,
		Status:          r.Status.String(),
		UpWins:          r.UpWins,
		StartPriceStale: r.StartPriceStale,
		EndPriceStale:   r.EndPriceStale,
	}
}

// emit entrega o evento a todos os sinks. A mutação já foi aplicada, então
// falhas aqui são só logadas.
func (d *Dispatcher) emit(ctx context.Context, e events.MarketEvent) {
	for _, s := range d.sinks {
		if err := s.Emit(ctx, e); err != nil {
			d.log.Warn("emit market event failed",
				zap.String("type", e.Type),
				zap.Uint64("seq", e.Seq),
				zap.Error(err),
			)
		}
	}
}
