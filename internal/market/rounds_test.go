package market

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCreateRound_Timing(t *testing.T) {
	h := newHarness(t, testParams())
	r := h.mustCreate(t)

	if r.ID != 1 {
		t.Errorf("ID = %d, want 1", r.ID)
	}
	if !(r.StartTime < r.BettingEndTime && r.BettingEndTime < r.SettlementTime) {
		t.Errorf("timing %d < %d < %d violated", r.StartTime, r.BettingEndTime, r.SettlementTime)
	}
	if got := r.BettingEndTime - r.StartTime; got != uint64((40 * time.Minute).Milliseconds()) {
		t.Errorf("betting window = %dms, want 40m", got)
	}
	if got := r.SettlementTime - r.StartTime; got != uint64((60 * time.Minute).Milliseconds()) {
		t.Errorf("round duration = %dms, want 60m", got)
	}
	if r.StartPrice != 110000.0 || r.EndPrice != 0 || r.Status != StatusActive {
		t.Errorf("round = %+v, want start 110000, end 0, ACTIVE", r)
	}
}

func TestCreateRound_FailsWhileActive(t *testing.T) {
	h := newHarness(t, testParams())
	h.mustCreate(t)

	_, err := h.eng.CreateRound(context.Background())
	if !errors.Is(err, ErrRoundActive) || !errors.Is(err, ErrInvalidState) {
		t.Fatalf("error = %v, want ErrRoundActive wrapping ErrInvalidState", err)
	}
	if hs := h.eng.HouseStatus(); hs.RoundCounter != 1 {
		t.Errorf("RoundCounter = %d, want 1", hs.RoundCounter)
	}
}

func TestCreateRound_AfterSettlementAssignsNextID(t *testing.T) {
	h := newHarness(t, testParams())
	first := h.mustCreate(t)
	h.mustSettle(t, first.ID, 111000)

	second := h.mustCreate(t)
	if second.ID != first.ID+1 {
		t.Errorf("second ID = %d, want %d", second.ID, first.ID+1)
	}
	cur, err := h.eng.CurrentRound()
	if err != nil || cur.ID != second.ID {
		t.Errorf("CurrentRound = %d, %v; want %d", cur.ID, err, second.ID)
	}
}

func TestCreateRound_OracleFailureLeavesNoTrace(t *testing.T) {
	h := newHarness(t, testParams())
	h.feed.Set(0, uint64(h.clock.t.UnixMilli()))

	if _, err := h.eng.CreateRound(context.Background()); !errors.Is(err, ErrOracleUnavailable) {
		t.Fatalf("error = %v, want ErrOracleUnavailable", err)
	}
	if _, err := h.eng.CurrentRound(); !errors.Is(err, ErrRoundNotFound) {
		t.Errorf("CurrentRound error = %v, want ErrRoundNotFound", err)
	}
	if h.eng.Seq() != 0 {
		t.Errorf("Seq = %d, want 0", h.eng.Seq())
	}
}

func TestCreateRound_StalePricePolicy(t *testing.T) {
	stale := func(h *harness) {
		h.feed.Set(110000, uint64(h.clock.t.Add(-10*time.Minute).UnixMilli()))
	}

	t.Run("flagged by default", func(t *testing.T) {
		h := newHarness(t, testParams())
		stale(h)
		r := h.mustCreate(t)
		if !r.StartPriceStale {
			t.Error("StartPriceStale = false, want true")
		}
	})

	t.Run("blocked when configured", func(t *testing.T) {
		p := testParams()
		p.BlockOnStale = true
		h := newHarness(t, p)
		stale(h)
		if _, err := h.eng.CreateRound(context.Background()); !errors.Is(err, ErrStalePrice) {
			t.Errorf("error = %v, want ErrStalePrice", err)
		}
	})
}

func TestSettleRound(t *testing.T) {
	h := newHarness(t, testParams())
	r := h.mustCreate(t)

	h.clock.Advance(59 * time.Minute)
	if _, err := h.eng.SettleRound(context.Background(), r.ID); !errors.Is(err, ErrNotExpired) {
		t.Fatalf("early settle error = %v, want ErrNotExpired", err)
	}

	h.clock.Advance(time.Minute)
	h.setPrice(120000)
	rc, err := h.eng.SettleRound(context.Background(), r.ID)
	if err != nil {
		t.Fatalf("SettleRound: %v", err)
	}
	if !rc.Round.UpWins || rc.Round.EndPrice != 120000 || rc.Round.Status != StatusSettled {
		t.Errorf("settled round = %+v, want UP win at 120000", rc.Round)
	}

	if _, err := h.eng.SettleRound(context.Background(), r.ID); !errors.Is(err, ErrAlreadySettled) {
		t.Errorf("second settle error = %v, want ErrAlreadySettled", err)
	}
	if _, err := h.eng.SettleRound(context.Background(), 99); !errors.Is(err, ErrRoundNotFound) {
		t.Errorf("unknown round error = %v, want ErrRoundNotFound", err)
	}
}

func TestSettleRound_Outcome(t *testing.T) {
	tests := []struct {
		name   string
		end    float64
		upWins bool
	}{
		{"price up", 110000.01, true},
		{"price down", 109999.99, false},
		{"tie goes to down", 110000, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, testParams())
			r := h.mustCreate(t)
			got := h.mustSettle(t, r.ID, tt.end)
			if got.UpWins != tt.upWins {
				t.Errorf("UpWins = %v, want %v", got.UpWins, tt.upWins)
			}
			if got.UpWins != (got.EndPrice > got.StartPrice) {
				t.Errorf("UpWins %v inconsistent with %v > %v", got.UpWins, got.EndPrice, got.StartPrice)
			}
		})
	}
}

func TestOdds_UnknownRound(t *testing.T) {
	h := newHarness(t, testParams())
	if _, err := h.eng.Odds(7, mas); !errors.Is(err, ErrRoundNotFound) {
		t.Errorf("error = %v, want ErrRoundNotFound", err)
	}
}
