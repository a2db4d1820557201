package keeper

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/updown-market-poc/internal/contract"
	"github.com/radieske/updown-market-poc/internal/market"
	"github.com/radieske/updown-market-poc/internal/oracle"
)

func setup(t *testing.T) (*Keeper, *market.Engine, *oracle.StaticFeed, *time.Time) {
	t.Helper()
	now := time.UnixMilli(1_750_000_000_000)
	clock := func() time.Time { return now }
	feed := oracle.NewStaticFeed(100, uint64(now.UnixMilli()))
	eng, err := market.NewEngine(market.Params{
		HouseEdge:        0.05,
		VirtualLiquidity: 1_000,
		MinBet:           1,
		BettingWindow:    time.Minute,
		RoundDuration:    2 * time.Minute,
		OpenFunding:      true,
	}, oracle.NewGateway(feed, 0), zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	eng.WithClock(clock)
	k := New(contract.NewDispatcher(eng, nil), time.Second, nil).WithClock(clock)
	return k, eng, feed, &now
}

func TestKeeper_Tick(t *testing.T) {
	k, eng, feed, now := setup(t)
	ctx := context.Background()

	if err := k.Tick(ctx); err != nil {
		t.Fatalf("first tick: %v", err)
	}
	r, err := eng.CurrentRound()
	if err != nil || r.ID != 1 || r.Status != market.StatusActive {
		t.Fatalf("after first tick round = %+v, %v", r, err)
	}

	*now = now.Add(time.Minute)
	if err := k.Tick(ctx); err != nil {
		t.Fatalf("mid-round tick: %v", err)
	}
	if r, _ := eng.CurrentRound(); r.ID != 1 {
		t.Errorf("mid-round tick opened round %d", r.ID)
	}

	*now = now.Add(time.Minute)
	feed.Set(101, uint64(now.UnixMilli()))
	if err := k.Tick(ctx); err != nil {
		t.Fatalf("expiry tick: %v", err)
	}
	first, _ := eng.Round(1)
	if first.Status != market.StatusSettled || !first.UpWins {
		t.Errorf("round 1 = %+v, want settled with UP win", first)
	}
	if r, _ := eng.CurrentRound(); r.ID != 2 || r.StartPrice != 101 {
		t.Errorf("current round = %+v, want round 2 at 101", r)
	}
}

func TestKeeper_TickOracleDown(t *testing.T) {
	k, eng, feed, _ := setup(t)
	feed.Set(-1, 0)

	if err := k.Tick(context.Background()); !errors.Is(err, market.ErrOracleUnavailable) {
		t.Errorf("error = %v, want ErrOracleUnavailable", err)
	}
	if _, err := eng.CurrentRound(); !errors.Is(err, market.ErrRoundNotFound) {
		t.Errorf("round created despite oracle failure: %v", err)
	}
}
