package market

import "testing"

func TestScenario_UpBettorBeatsMixedPool(t *testing.T) {
	h := newHarness(t, testParams())
	if _, err := h.eng.AddHouseFunds("AU1owner", 1000*mas); err != nil {
		t.Fatalf("AddHouseFunds: %v", err)
	}

	r := h.mustCreate(t)
	if r.StartPrice != 110000.0 {
		t.Fatalf("StartPrice = %v, want 110000", r.StartPrice)
	}
	h.mustBet(t, r.ID, "alice", true, 10*mas)
	h.mustBet(t, r.ID, "dave", true, 6*mas)
	h.mustBet(t, r.ID, "bob", false, 4*mas)

	settled := h.mustSettle(t, r.ID, 120000.0)
	if !settled.UpWins {
		t.Fatal("UpWins = false, want true")
	}

	rc, err := h.eng.ClaimWinnings(r.ID, "alice")
	if err != nil {
		t.Fatalf("ClaimWinnings: %v", err)
	}
	// 10 * 20 / 16
	if rc.Payout != 12_500_000_000 {
		t.Errorf("payout = %d, want 12500000000", rc.Payout)
	}
	if rc.Payout <= 10*mas {
		t.Errorf("payout %d should exceed the 10 MAS stake", rc.Payout)
	}
	if got, want := h.eng.HouseStatus().Balance, 1020*mas-12_500_000_000; got != want {
		t.Errorf("house balance = %d, want %d", got, want)
	}
}

// O edge da casa só entra nas odds cotadas; a liquidação é rateio puro.
func TestScenario_ProRataIgnoresHouseEdge(t *testing.T) {
	h := newHarness(t, testParams())
	r := h.mustCreate(t)
	h.mustBet(t, r.ID, "alice", true, 10*mas)
	h.mustBet(t, r.ID, "bob", false, 5*mas)
	h.mustSettle(t, r.ID, 120000.0)

	rc, err := h.eng.ClaimWinnings(r.ID, "alice")
	if err != nil {
		t.Fatalf("ClaimWinnings: %v", err)
	}
	if rc.Payout != 15*mas {
		t.Errorf("payout = %d, want %d (10 * 15 / 10)", rc.Payout, 15*mas)
	}
}

func TestScenario_BothSidesPosition(t *testing.T) {
	h := newHarness(t, testParams())
	r := h.mustCreate(t)
	h.mustBet(t, r.ID, "alice", true, 2*mas)
	h.mustBet(t, r.ID, "alice", false, 3*mas)
	h.mustBet(t, r.ID, "bob", false, 5*mas)
	h.mustSettle(t, r.ID, 100000.0)

	// DOWN vence: 3 * 10 / 8
	if got := h.eng.ClaimableAmount(r.ID, "alice"); got != 3_750_000_000 {
		t.Errorf("alice claimable = %d, want 3750000000", got)
	}
	if got := h.eng.ClaimableAmount(r.ID, "bob"); got != 6_250_000_000 {
		t.Errorf("bob claimable = %d, want 6250000000", got)
	}
}
