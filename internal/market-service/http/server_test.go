package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/updown-market-poc/internal/contract"
	"github.com/radieske/updown-market-poc/internal/market"
	"github.com/radieske/updown-market-poc/internal/market-service/wallet"
	"github.com/radieske/updown-market-poc/internal/oracle"
	"github.com/radieske/updown-market-poc/pkg/contracts/calls"
)

const mas = uint64(1_000_000_000)

type fakeCustody struct {
	balances  map[string]uint64
	pending   map[string]uint64
	committed []string
	refunded  []string
	deposits  map[string]uint64

	// falhas antes de aceitar
	depositFailures int
	commitFailures  int
}

func newFakeCustody() *fakeCustody {
	return &fakeCustody{balances: map[string]uint64{}, pending: map[string]uint64{}, deposits: map[string]uint64{}}
}

func (f *fakeCustody) Reserve(_ context.Context, user string, amount uint64, ref string) (string, error) {
	if f.balances[user] < amount {
		return "", wallet.ErrInsufficientFunds
	}
	f.balances[user] -= amount
	f.pending[ref] = amount
	return ref, nil
}

func (f *fakeCustody) Commit(_ context.Context, _ string, ref string) error {
	if f.commitFailures > 0 {
		f.commitFailures--
		return errors.New("wallet /wallet/commit: connection refused")
	}
	delete(f.pending, ref)
	f.committed = append(f.committed, ref)
	return nil
}

func (f *fakeCustody) Refund(_ context.Context, user, ref string) error {
	f.balances[user] += f.pending[ref]
	delete(f.pending, ref)
	f.refunded = append(f.refunded, ref)
	return nil
}

func (f *fakeCustody) Deposit(_ context.Context, user string, amount uint64, ref string) (int64, error) {
	if f.depositFailures > 0 {
		f.depositFailures--
		return 0, errors.New("wallet /wallet/deposit: connection refused")
	}
	if _, dup := f.deposits[ref]; !dup {
		f.deposits[ref] = amount
		f.balances[user] += amount
	}
	return int64(f.balances[user]), nil
}

type env struct {
	h       http.Handler
	srv     *Server
	custody *fakeCustody
	feed    *oracle.StaticFeed
	now     *time.Time
}

func newEnv(t *testing.T) *env {
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
		Owner:            "owner",
	}, oracle.NewGateway(feed, 0), zap.NewNop())
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	eng.WithClock(clock)
	c := newFakeCustody()
	srv := NewServer(zap.NewNop(), contract.NewDispatcher(eng, zap.NewNop()), c, nil, nil)
	return &env{h: srv.Router(), srv: srv, custody: c, feed: feed, now: &now}
}

func (e *env) op(t *testing.T, op, caller string, coins uint64, args []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/ops/"+op, bytes.NewReader(args))
	if caller != "" {
		req.Header.Set(HeaderCaller, caller)
	}
	if coins > 0 {
		req.Header.Set(HeaderCoins, strconv.FormatUint(coins, 10))
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	return rec
}

func (e *env) get(t *testing.T, path string, dst any) int {
	t.Helper()
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if dst != nil && rec.Code == http.StatusOK {
		if err := json.NewDecoder(rec.Body).Decode(dst); err != nil {
			t.Fatalf("decode %s: %v", path, err)
		}
	}
	return rec.Code
}

func TestServer_BetSettleClaimThroughCustody(t *testing.T) {
	e := newEnv(t)
	e.custody.balances["alice"] = 20 * mas
	e.custody.balances["bob"] = 20 * mas

	if rec := e.op(t, calls.OpCreateRound, "keeper", 0, nil); rec.Code != http.StatusOK {
		t.Fatalf("createRound status = %d, body %s", rec.Code, rec.Body)
	}
	rec := e.op(t, calls.OpPlaceBet, "alice", 10*mas, calls.PlaceBetArgs{RoundID: 1, BetUp: true}.Marshal())
	if rec.Code != http.StatusOK {
		t.Fatalf("placeBet status = %d, body %s", rec.Code, rec.Body)
	}
	var placed calls.PlaceBetResult
	if err := placed.Unmarshal(rec.Body.Bytes()); err != nil || placed.Accepted != 10*mas {
		t.Errorf("placeBet = %+v, %v", placed, err)
	}
	if rec := e.op(t, calls.OpPlaceBet, "bob", 5*mas, calls.PlaceBetArgs{RoundID: 1}.Marshal()); rec.Code != http.StatusOK {
		t.Fatalf("bob placeBet status = %d", rec.Code)
	}
	if len(e.custody.committed) != 2 || len(e.custody.pending) != 0 {
		t.Errorf("committed %d, pending %d; want 2, 0", len(e.custody.committed), len(e.custody.pending))
	}

	var odds oddsView
	if code := e.get(t, "/v1/rounds/1/odds?amount=1000000000", &odds); code != http.StatusOK || !(odds.DownOdds > odds.UpOdds) {
		t.Errorf("odds = %+v (status %d), want down > up", odds, code)
	}

	*e.now = e.now.Add(time.Hour)
	e.feed.Set(120000, uint64(e.now.UnixMilli()))
	if rec := e.op(t, calls.OpSettleRound, "keeper", 0, calls.RoundID{RoundID: 1}.Marshal()); rec.Code != http.StatusOK {
		t.Fatalf("settleRound status = %d, body %s", rec.Code, rec.Body)
	}

	var cl claimableView
	if code := e.get(t, "/v1/rounds/1/claimable/alice", &cl); code != http.StatusOK || cl.Amount != 15*mas {
		t.Errorf("claimable = %+v (status %d), want %d", cl, code, 15*mas)
	}

	rec = e.op(t, calls.OpClaimWinnings, "alice", 0, calls.RoundID{RoundID: 1}.Marshal())
	if rec.Code != http.StatusOK {
		t.Fatalf("claimWinnings status = %d, body %s", rec.Code, rec.Body)
	}
	if got := e.custody.balances["alice"]; got != 25*mas {
		t.Errorf("alice wallet = %d, want %d", got, 25*mas)
	}

	rec = e.op(t, calls.OpClaimWinnings, "alice", 0, calls.RoundID{RoundID: 1}.Marshal())
	if rec.Code != http.StatusConflict {
		t.Errorf("second claim status = %d, want 409", rec.Code)
	}
	var ev errorView
	_ = json.NewDecoder(rec.Body).Decode(&ev)
	if ev.Code != "AlreadyClaimed" {
		t.Errorf("second claim code = %q, want AlreadyClaimed", ev.Code)
	}

	var house houseView
	if code := e.get(t, "/v1/house", &house); code != http.StatusOK || house.Balance != 0 || house.RoundCounter != 1 {
		t.Errorf("house = %+v (status %d)", house, code)
	}
}

func TestServer_FailedBetRefundsReservation(t *testing.T) {
	e := newEnv(t)
	e.custody.balances["alice"] = 20 * mas

	rec := e.op(t, calls.OpPlaceBet, "alice", 10*mas, calls.PlaceBetArgs{RoundID: 1, BetUp: true}.Marshal())
	if rec.Code != http.StatusConflict {
		t.Fatalf("bet on missing round status = %d, want 409", rec.Code)
	}
	if len(e.custody.refunded) != 1 || e.custody.balances["alice"] != 20*mas {
		t.Errorf("refunded %v, balance %d; want one refund and full balance", e.custody.refunded, e.custody.balances["alice"])
	}
}

func TestServer_InsufficientWalletFunds(t *testing.T) {
	e := newEnv(t)
	e.op(t, calls.OpCreateRound, "keeper", 0, nil)

	rec := e.op(t, calls.OpPlaceBet, "broke", 10*mas, calls.PlaceBetArgs{RoundID: 1}.Marshal())
	if rec.Code != http.StatusPaymentRequired {
		t.Errorf("status = %d, want 402", rec.Code)
	}
	var bet userBetView
	if e.get(t, "/v1/rounds/1/bets/broke", &bet); bet.DownAmount != 0 {
		t.Errorf("bet recorded without funds: %+v", bet)
	}
}

func TestServer_Errors(t *testing.T) {
	e := newEnv(t)
	tests := []struct {
		name   string
		op     string
		caller string
		coins  uint64
		args   []byte
		want   int
	}{
		{"unknown op", "mint", "", 0, nil, http.StatusNotFound},
		{"bad args", calls.OpSettleRound, "", 0, []byte{1, 2}, http.StatusBadRequest},
		{"settle missing round", calls.OpSettleRound, "", 0, calls.RoundID{RoundID: 5}.Marshal(), http.StatusNotFound},
		{"fund by stranger", calls.OpAddHouseFunds, "mallory", 0, nil, http.StatusForbidden},
		{"payable without caller", calls.OpPlaceBet, "", mas, calls.PlaceBetArgs{RoundID: 1}.Marshal(), http.StatusBadRequest},
		{"coins above int64", calls.OpPlaceBet, "alice", math.MaxInt64 + 1, calls.PlaceBetArgs{RoundID: 1}.Marshal(), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := e.op(t, tt.op, tt.caller, tt.coins, tt.args); rec.Code != tt.want {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.want, rec.Body)
			}
		})
	}

	if code := e.get(t, "/v1/rounds/current", nil); code != http.StatusNotFound {
		t.Errorf("current round with none = %d, want 404", code)
	}
	if code := e.get(t, "/v1/rounds/abc", nil); code != http.StatusBadRequest {
		t.Errorf("bad round id = %d, want 400", code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{market.ErrRoundActive, http.StatusConflict},
		{market.ErrNoPosition, http.StatusConflict},
		{market.ErrBelowMinimum, http.StatusBadRequest},
		{market.ErrOracleUnavailable, http.StatusServiceUnavailable},
		{market.ErrInsufficientHouseLiquidity, http.StatusInternalServerError},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := StatusFor(tt.err); got != tt.want {
			t.Errorf("StatusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

// settledRound abre a rodada 1 com alice 10 UP e bob 5 DOWN e liquida com UP.
func (e *env) settledRound(t *testing.T) {
	t.Helper()
	e.custody.balances["alice"] = 10 * mas
	e.custody.balances["bob"] = 5 * mas
	e.op(t, calls.OpCreateRound, "keeper", 0, nil)
	e.op(t, calls.OpPlaceBet, "alice", 10*mas, calls.PlaceBetArgs{RoundID: 1, BetUp: true}.Marshal())
	e.op(t, calls.OpPlaceBet, "bob", 5*mas, calls.PlaceBetArgs{RoundID: 1}.Marshal())
	*e.now = e.now.Add(time.Hour)
	e.feed.Set(120000, uint64(e.now.UnixMilli()))
	if rec := e.op(t, calls.OpSettleRound, "keeper", 0, calls.RoundID{RoundID: 1}.Marshal()); rec.Code != http.StatusOK {
		t.Fatalf("settleRound status = %d, body %s", rec.Code, rec.Body)
	}
}

func TestServer_ClaimRetriesPendingPayout(t *testing.T) {
	e := newEnv(t)
	e.settledRound(t)
	e.custody.depositFailures = 2

	rec := e.op(t, calls.OpClaimWinnings, "alice", 0, calls.RoundID{RoundID: 1}.Marshal())
	if rec.Code != http.StatusOK || rec.Header().Get(HeaderPayoutPending) != "true" {
		t.Fatalf("first claim = %d pending %q, want 200 with pending payout", rec.Code, rec.Header().Get(HeaderPayoutPending))
	}
	if got := e.custody.balances["alice"]; got != 0 {
		t.Fatalf("alice wallet = %d before the deposit went through", got)
	}

	// wallet ainda fora: claim repetido continua pendente
	rec = e.op(t, calls.OpClaimWinnings, "alice", 0, calls.RoundID{RoundID: 1}.Marshal())
	if rec.Code != http.StatusBadGateway || rec.Header().Get(HeaderPayoutPending) != "true" {
		t.Errorf("retry while wallet down = %d pending %q, want 502 pending", rec.Code, rec.Header().Get(HeaderPayoutPending))
	}

	rec = e.op(t, calls.OpClaimWinnings, "alice", 0, calls.RoundID{RoundID: 1}.Marshal())
	if rec.Code != http.StatusOK {
		t.Fatalf("retry claim status = %d, body %s", rec.Code, rec.Body)
	}
	var res calls.AmountResult
	if err := res.Unmarshal(rec.Body.Bytes()); err != nil || res.Amount != 15*mas {
		t.Errorf("retry claim result = %+v, %v; want %d", res, err, 15*mas)
	}
	if got := e.custody.balances["alice"]; got != 15*mas {
		t.Errorf("alice wallet = %d, want %d", got, 15*mas)
	}

	// depósito confirmado: agora é claim duplicado de verdade
	rec = e.op(t, calls.OpClaimWinnings, "alice", 0, calls.RoundID{RoundID: 1}.Marshal())
	if rec.Code != http.StatusConflict {
		t.Errorf("claim after payout = %d, want 409", rec.Code)
	}
	if got := e.custody.balances["alice"]; got != 15*mas {
		t.Errorf("alice wallet after duplicate = %d, want %d", got, 15*mas)
	}
}

func TestServer_ReconcilerCreditsPendingPayout(t *testing.T) {
	e := newEnv(t)
	e.settledRound(t)
	e.custody.depositFailures = 1

	if rec := e.op(t, calls.OpClaimWinnings, "alice", 0, calls.RoundID{RoundID: 1}.Marshal()); rec.Code != http.StatusOK {
		t.Fatalf("claim status = %d", rec.Code)
	}
	n, err := e.srv.Reconciler().RunOnce(context.Background())
	if err != nil || n != 1 {
		t.Fatalf("RunOnce = %d, %v; want 1 resolved", n, err)
	}
	if got := e.custody.balances["alice"]; got != 15*mas {
		t.Errorf("alice wallet = %d, want %d", got, 15*mas)
	}
	if n, _ := e.srv.Reconciler().RunOnce(context.Background()); n != 0 {
		t.Errorf("second RunOnce resolved %d, want 0", n)
	}
}

func TestServer_FailedCommitIsReconciled(t *testing.T) {
	e := newEnv(t)
	e.custody.balances["alice"] = 10 * mas
	e.custody.commitFailures = 1
	e.op(t, calls.OpCreateRound, "keeper", 0, nil)

	if rec := e.op(t, calls.OpPlaceBet, "alice", 10*mas, calls.PlaceBetArgs{RoundID: 1, BetUp: true}.Marshal()); rec.Code != http.StatusOK {
		t.Fatalf("placeBet status = %d", rec.Code)
	}
	if len(e.custody.pending) != 1 {
		t.Fatalf("pending reservations = %d, want 1 after failed commit", len(e.custody.pending))
	}
	if n, err := e.srv.Reconciler().RunOnce(context.Background()); err != nil || n != 1 {
		t.Fatalf("RunOnce = %d, %v; want 1 resolved", n, err)
	}
	if len(e.custody.pending) != 0 || len(e.custody.committed) != 1 {
		t.Errorf("pending %d, committed %d; want 0, 1", len(e.custody.pending), len(e.custody.committed))
	}
}
