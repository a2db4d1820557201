package contract

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/updown-market-poc/internal/market"
	"github.com/radieske/updown-market-poc/internal/oracle"
	"github.com/radieske/updown-market-poc/pkg/contracts/calls"
	"github.com/radieske/updown-market-poc/pkg/contracts/events"
)

const mas = uint64(1_000_000_000)

type recorder struct{ got []events.MarketEvent }

func (r *recorder) Emit(_ context.Context, e events.MarketEvent) error {
	r.got = append(r.got, e)
	return nil
}

func newDispatcher(t *testing.T) (*Dispatcher, *oracle.StaticFeed, *time.Time, *recorder) {
	t.Helper()
	now := time.UnixMilli(1_750_000_000_000)
	clock := func() time.Time { return now }
	feed := oracle.NewStaticFeed(110000, uint64(now.UnixMilli()))
	eng, err := market.NewEngine(market.Params{
		HouseEdge:        0.05,
		VirtualLiquidity: 1000 * mas,
		MinBet:           mas,
		BettingWindow:    40 * time.Minute,
		RoundDuration:    time.Hour,
		OpenFunding:      true,
	}, oracle.NewGateway(feed, 0), zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	eng.WithClock(clock)
	rec := &recorder{}
	return NewDispatcher(eng, zap.NewNop(), rec), feed, &now, rec
}

func TestDispatch_FullRound(t *testing.T) {
	d, feed, now, rec := newDispatcher(t)
	ctx := context.Background()

	out, err := d.Dispatch(ctx, Call{Operation: calls.OpCreateRound, Caller: "keeper"})
	if err != nil {
		t.Fatalf("createRound: %v", err)
	}
	var created calls.CreateRoundResult
	if err := created.Unmarshal(out); err != nil || created.RoundID != 1 {
		t.Fatalf("createRound result = %+v, %v; want round 1", created, err)
	}

	bet := func(user string, up bool, coins uint64) {
		t.Helper()
		out, err := d.Dispatch(ctx, Call{
			Operation: calls.OpPlaceBet,
			Caller:    user,
			Coins:     coins,
			Args:      calls.PlaceBetArgs{RoundID: 1, BetUp: up}.Marshal(),
		})
		if err != nil {
			t.Fatalf("placeBet(%s): %v", user, err)
		}
		var res calls.PlaceBetResult
		if err := res.Unmarshal(out); err != nil {
			t.Fatalf("decode placeBet: %v", err)
		}
		if res.Accepted != coins || res.ProjectedPayout <= coins {
			t.Errorf("placeBet result = %+v, want accepted %d and payout above it", res, coins)
		}
	}
	bet("alice", true, 10*mas)
	bet("bob", false, 5*mas)

	out, err = d.Dispatch(ctx, Call{Operation: calls.OpGetUserBet, Args: calls.UserArgs{RoundID: 1, User: "alice"}.Marshal()})
	if err != nil {
		t.Fatalf("getUserBet: %v", err)
	}
	var ub calls.UserBetResult
	if err := ub.Unmarshal(out); err != nil || ub.User != "alice" || ub.UpAmount != 10*mas {
		t.Errorf("getUserBet = %+v, %v", ub, err)
	}

	*now = now.Add(time.Hour)
	feed.Set(120000, uint64(now.UnixMilli()))
	out, err = d.Dispatch(ctx, Call{Operation: calls.OpSettleRound, Args: calls.RoundID{RoundID: 1}.Marshal()})
	if err != nil {
		t.Fatalf("settleRound: %v", err)
	}
	var settled calls.SettleResult
	if err := settled.Unmarshal(out); err != nil || !settled.UpWins || settled.EndPrice != 120000 {
		t.Errorf("settleRound = %+v, %v", settled, err)
	}

	out, err = d.Dispatch(ctx, Call{Operation: calls.OpClaimWinnings, Caller: "alice", Args: calls.RoundID{RoundID: 1}.Marshal()})
	if err != nil {
		t.Fatalf("claimWinnings: %v", err)
	}
	var won calls.AmountResult
	if err := won.Unmarshal(out); err != nil || won.Amount != 15*mas {
		t.Errorf("claimWinnings = %+v, %v; want %d", won, err, 15*mas)
	}

	out, err = d.Dispatch(ctx, Call{Operation: calls.OpGetRoundDetails, Args: calls.RoundID{RoundID: 1}.Marshal()})
	if err != nil {
		t.Fatalf("getRoundDetails: %v", err)
	}
	var rd calls.RoundDetails
	if err := rd.Unmarshal(out); err != nil || rd.Status != 1 || !rd.UpWins || rd.TotalUpBets != 10*mas {
		t.Errorf("getRoundDetails = %+v, %v", rd, err)
	}

	wantTypes := []string{
		events.TypeRoundCreated,
		events.TypeBetPlaced,
		events.TypeBetPlaced,
		events.TypeRoundSettled,
		events.TypeWinningsClaimed,
	}
	if len(rec.got) != len(wantTypes) {
		t.Fatalf("emitted %d events, want %d", len(rec.got), len(wantTypes))
	}
	for i, e := range rec.got {
		if e.Type != wantTypes[i] {
			t.Errorf("event[%d].Type = %s, want %s", i, e.Type, wantTypes[i])
		}
		if e.Seq != uint64(i+1) {
			t.Errorf("event[%d].Seq = %d, want %d", i, e.Seq, i+1)
		}
		if e.EventID == "" {
			t.Errorf("event[%d] has no id", i)
		}
	}
	if rec.got[1].Side != "UP" || rec.got[2].Side != "DOWN" {
		t.Errorf("bet sides = %s/%s, want UP/DOWN", rec.got[1].Side, rec.got[2].Side)
	}
}

func TestDispatch_Reads(t *testing.T) {
	d, _, _, rec := newDispatcher(t)
	ctx := context.Background()

	if _, err := d.Dispatch(ctx, Call{Operation: calls.OpAddHouseFunds, Caller: "funder", Coins: 100 * mas}); err != nil {
		t.Fatalf("addHouseFunds: %v", err)
	}
	if _, err := d.Dispatch(ctx, Call{Operation: calls.OpCreateRound}); err != nil {
		t.Fatalf("createRound: %v", err)
	}

	out, err := d.Dispatch(ctx, Call{Operation: calls.OpGetHouseStatus})
	if err != nil {
		t.Fatalf("getHouseStatus: %v", err)
	}
	var hs calls.HouseStatusResult
	if err := hs.Unmarshal(out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := calls.HouseStatusResult{
		Balance:          100 * mas,
		RoundCounter:     1,
		HouseEdge:        0.05,
		MinBet:           mas,
		RoundDuration:    3_600_000,
		VirtualLiquidity: 1000 * mas,
	}
	if hs != want {
		t.Errorf("getHouseStatus = %+v, want %+v", hs, want)
	}

	out, err = d.Dispatch(ctx, Call{Operation: calls.OpGetAMMOdds, Args: calls.OddsArgs{RoundID: 1}.Marshal()})
	if err != nil {
		t.Fatalf("getAMMOdds: %v", err)
	}
	var odds calls.OddsResult
	if err := odds.Unmarshal(out); err != nil || odds.UpOdds != odds.DownOdds {
		t.Errorf("getAMMOdds = %+v, %v; want balanced", odds, err)
	}

	out, err = d.Dispatch(ctx, Call{Operation: calls.OpGetCurrentRound})
	if err != nil {
		t.Fatalf("getCurrentRound: %v", err)
	}
	var rd calls.RoundDetails
	if err := rd.Unmarshal(out); err != nil || rd.RoundID != 1 || rd.Status != 0 {
		t.Errorf("getCurrentRound = %+v, %v", rd, err)
	}

	out, err = d.Dispatch(ctx, Call{Operation: calls.OpGetClaimableAmount, Args: calls.UserArgs{RoundID: 1, User: "nobody"}.Marshal()})
	if err != nil {
		t.Fatalf("getClaimableAmount: %v", err)
	}
	var amt calls.AmountResult
	if err := amt.Unmarshal(out); err != nil || amt.Amount != 0 {
		t.Errorf("getClaimableAmount = %+v, %v; want 0", amt, err)
	}

	if len(rec.got) != 2 {
		t.Errorf("reads emitted events: got %d total, want 2", len(rec.got))
	}
}

func TestDispatch_Errors(t *testing.T) {
	tests := []struct {
		name     string
		call     Call
		wantErr  error
		wantCode string
	}{
		{"unknown op", Call{Operation: "rugPull"}, ErrUnknownOperation, "UnknownOperation"},
		{"short args", Call{Operation: calls.OpSettleRound, Args: []byte{1}}, ErrBadArgs, "BadArgs"},
		{"coins on read", Call{Operation: calls.OpGetHouseStatus, Coins: 1}, ErrUnexpectedCoins, "UnexpectedCoins"},
		{"settle unknown round", Call{Operation: calls.OpSettleRound, Args: calls.RoundID{RoundID: 9}.Marshal()}, market.ErrRoundNotFound, "RoundNotFound"},
		{"bet unknown round", Call{Operation: calls.OpPlaceBet, Caller: "a", Coins: mas, Args: calls.PlaceBetArgs{RoundID: 9}.Marshal()}, market.ErrRoundNotActive, "RoundNotActive"},
		{"bet below minimum", Call{Operation: calls.OpPlaceBet, Caller: "a", Coins: 1, Args: calls.PlaceBetArgs{RoundID: 9}.Marshal()}, market.ErrBelowMinimum, "BelowMinimum"},
		{"no current round", Call{Operation: calls.OpGetCurrentRound}, market.ErrRoundNotFound, "RoundNotFound"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, _, _, rec := newDispatcher(t)
			_, err := d.Dispatch(context.Background(), tt.call)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("error = %v, want %v", err, tt.wantErr)
			}
			if got := Code(err); got != tt.wantCode {
				t.Errorf("Code = %s, want %s", got, tt.wantCode)
			}
			if len(rec.got) != 0 {
				t.Errorf("failed call emitted %d events", len(rec.got))
			}
		})
	}
}

func TestCode_StateErrors(t *testing.T) {
	tests := map[error]string{
		market.ErrRoundActive:    "InvalidState",
		market.ErrAlreadyClaimed: "AlreadyClaimed",
		market.ErrNotExpired:     "NotExpired",
		errors.New("boom"):       "Internal",
	}
	for err, want := range tests {
		if got := Code(err); got != want {
			t.Errorf("Code(%v) = %s, want %s", err, got, want)
		}
	}
}
