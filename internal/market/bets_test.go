package market

import (
	"errors"
	"math"
	"testing"
	"time"
)

func TestPlaceBet_Accumulates(t *testing.T) {
	h := newHarness(t, testParams())
	r := h.mustCreate(t)

	h.mustBet(t, r.ID, "alice", true, 3*mas)
	h.mustBet(t, r.ID, "alice", true, 2*mas)
	h.mustBet(t, r.ID, "alice", false, 4*mas)
	rc := h.mustBet(t, r.ID, "bob", false, mas)

	if rc.Round.TotalUpBets != 5*mas || rc.Round.TotalDownBets != 5*mas {
		t.Errorf("pools = %d/%d, want %d/%d", rc.Round.TotalUpBets, rc.Round.TotalDownBets, 5*mas, 5*mas)
	}
	got := h.eng.GetUserBet(r.ID, "alice")
	if got != (UserBet{UpAmount: 5 * mas, DownAmount: 4 * mas}) {
		t.Errorf("alice bet = %+v, want up 5 MAS down 4 MAS", got)
	}
	if hs := h.eng.HouseStatus(); hs.Balance != 10*mas {
		t.Errorf("house balance = %d, want %d", hs.Balance, 10*mas)
	}
}

func TestPlaceBet_ProjectedPayout(t *testing.T) {
	h := newHarness(t, testParams())
	r := h.mustCreate(t)

	rc := h.mustBet(t, r.ID, "alice", true, 10*mas)
	if rc.Amount != 10*mas {
		t.Errorf("accepted = %d, want %d", rc.Amount, 10*mas)
	}
	if rc.Payout != 18_905_940_594 {
		t.Errorf("projected payout = %d, want 18905940594", rc.Payout)
	}
	if rc.Payout <= rc.Amount {
		t.Errorf("projected payout %d should exceed stake %d", rc.Payout, rc.Amount)
	}
}

func TestPlaceBet_MinorityOddsAfterBet(t *testing.T) {
	h := newHarness(t, testParams())
	r := h.mustCreate(t)
	before, _ := h.eng.Odds(r.ID, 0)

	h.mustBet(t, r.ID, "alice", true, 10*mas)
	after, err := h.eng.Odds(r.ID, 0)
	if err != nil {
		t.Fatalf("Odds: %v", err)
	}
	if !(after.DownOdds > before.UpOdds && before.UpOdds > after.UpOdds) {
		t.Errorf("want down %v > balanced %v > up %v", after.DownOdds, before.UpOdds, after.UpOdds)
	}
}

func TestPlaceBet_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T, h *harness, id uint64)
		round   func(id uint64) uint64
		user    string
		amount  uint64
		wantErr []error
	}{
		{
			name:    "below minimum",
			user:    "alice",
			amount:  mas - 1,
			wantErr: []error{ErrBelowMinimum},
		},
		{
			name:    "unknown round",
			round:   func(id uint64) uint64 { return id + 10 },
			user:    "alice",
			amount:  mas,
			wantErr: []error{ErrRoundNotActive, ErrRoundNotFound, ErrInvalidState},
		},
		{
			name:    "betting closed",
			setup:   func(_ *testing.T, h *harness, _ uint64) { h.clock.Advance(40 * time.Minute) },
			user:    "alice",
			amount:  mas,
			wantErr: []error{ErrBettingClosed, ErrInvalidState},
		},
		{
			name:    "settled round",
			setup:   func(t *testing.T, h *harness, id uint64) { h.mustSettle(t, id, 1) },
			user:    "alice",
			amount:  mas,
			wantErr: []error{ErrRoundNotActive},
		},
		{
			name:    "no caller",
			amount:  mas,
			wantErr: []error{ErrInvalidCaller},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testParams())
			r := h.mustCreate(t)
			if tt.setup != nil {
				tt.setup(t, h, r.ID)
			}
			id := r.ID
			if tt.round != nil {
				id = tt.round(id)
			}
			seq := h.eng.Seq()

			_, err := h.eng.PlaceBet(id, tt.user, true, tt.amount)
			for _, want := range tt.wantErr {
				if !errors.Is(err, want) {
					t.Errorf("error = %v, want %v", err, want)
				}
			}
			if h.eng.Seq() != seq {
				t.Error("rejected bet mutated state")
			}
			if got := h.eng.GetUserBet(r.ID, tt.user); got != (UserBet{}) {
				t.Errorf("user bet = %+v, want zero", got)
			}
		})
	}
}

func TestPlaceBet_Overflow(t *testing.T) {
	p := testParams()
	p.OpenFunding = true
	h := newHarness(t, p)
	r := h.mustCreate(t)
	if _, err := h.eng.AddHouseFunds("whale", math.MaxUint64-mas); err != nil {
		t.Fatalf("AddHouseFunds: %v", err)
	}
	if _, err := h.eng.PlaceBet(r.ID, "alice", true, 2*mas); !errors.Is(err, ErrAmountOverflow) {
		t.Errorf("error = %v, want ErrAmountOverflow", err)
	}
}

func TestGetUserBet_NeverFails(t *testing.T) {
	h := newHarness(t, testParams())
	if got := h.eng.GetUserBet(42, "nobody"); got != (UserBet{}) {
		t.Errorf("GetUserBet = %+v, want zero", got)
	}
}
