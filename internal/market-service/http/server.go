package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/updown-market-poc/internal/contract"
	"github.com/radieske/updown-market-poc/internal/market"
	"github.com/radieske/updown-market-poc/internal/market-service/wallet"
	"github.com/radieske/updown-market-poc/pkg/contracts/calls"
)

const maxArgsBytes = 64 << 10

const (
	HeaderCaller        = "X-Caller"
	HeaderCoins         = "X-Coins"
	HeaderPayoutPending = "X-Payout-Pending"
)

// Custody guarda as moedas do chamador durante uma chamada pagável e
// recebe os prêmios dos claims.
type Custody interface {
	Reserve(ctx context.Context, userID string, amount uint64, externalRef string) (string, error)
	Commit(ctx context.Context, userID, externalRef string) error
	Refund(ctx context.Context, userID, externalRef string) error
	Deposit(ctx context.Context, userID string, amount uint64, externalRef string) (int64, error)
}

// Server expõe o contrato via HTTP: chamadas binárias em /v1/ops e visões
// JSON para a UI.
type Server struct {
	log     *zap.Logger
	d       *contract.Dispatcher
	custody Custody
	pending wallet.PendingStore
	rec     *wallet.Reconciler
	ws      http.HandlerFunc
	metrics *Metrics
}

// NewServer monta o servidor. custody nil aceita as moedas declaradas em
// X-Coins sem custódia (modo local); ws nil desliga /v1/ws.
func NewServer(log *zap.Logger, d *contract.Dispatcher, custody Custody, ws http.HandlerFunc, m *Metrics) *Server {
	if m == nil {
		m = NewMetrics(nil)
	}
	s := &Server{log: log, d: d, custody: custody, ws: ws, metrics: m}
	return s.WithPending(wallet.NewMemoryPending())
}

// WithPending troca onde ficam as operações de wallet ainda não confirmadas.
func (s *Server) WithPending(p wallet.PendingStore) *Server {
	s.pending = p
	if s.custody != nil {
		s.rec = &wallet.Reconciler{
			Store:      p,
			Wallet:     s.custody,
			Log:        s.log.Named("reconciler"),
			OnResolved: func(kind string) { s.metrics.PendingResolved.WithLabelValues(kind).Inc() },
		}
	}
	return s
}

// Reconciler reenvia as operações pendentes; nil sem custódia.
func (s *Server) Reconciler() *wallet.Reconciler { return s.rec }

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/v1/ops/{op}", s.call)
	r.Get("/v1/rounds/current", s.currentRound)
	r.Get("/v1/rounds/{id}", s.roundDetails)
	r.Get("/v1/rounds/{id}/odds", s.odds) // ?amount=
	r.Get("/v1/rounds/{id}/bets/{user}", s.userBet)
	r.Get("/v1/rounds/{id}/claimable/{user}", s.claimable)
	r.Get("/v1/house", s.house)
	if s.ws != nil {
		r.Get("/v1/ws", s.ws)
	}
	return r
}

// call executa uma operação do contrato. Para operações pagáveis as moedas
// são reservadas na wallet antes e efetivadas (ou devolvidas) depois.
func (s *Server) call(w http.ResponseWriter, r *http.Request) {
	op := chi.URLParam(r, "op")
	started := time.Now()
	defer func() { s.metrics.CallDuration.WithLabelValues(op).Observe(time.Since(started).Seconds()) }()

	args, err := io.ReadAll(io.LimitReader(r.Body, maxArgsBytes+1))
	if err != nil || len(args) > maxArgsBytes {
		s.writeCallError(w, op, fmt.Errorf("%w: body unreadable or too large", contract.ErrBadArgs))
		return
	}
	coins, err := parseCoins(r.Header.Get(HeaderCoins))
	if err != nil {
		s.writeCallError(w, op, fmt.Errorf("%w: %v", contract.ErrBadArgs, err))
		return
	}
	c := contract.Call{Operation: op, Caller: r.Header.Get(HeaderCaller), Coins: coins, Args: args}

	ref := ""
	if s.custody != nil && coins > 0 && calls.Payable(op) {
		if c.Caller == "" {
			s.writeCallError(w, op, market.ErrInvalidCaller)
			return
		}
		// ref nova a cada chamada: repetir a chamada é apostar de novo
		ref = op + ":" + uuid.NewString()
		if _, err := s.custody.Reserve(r.Context(), c.Caller, coins, ref); err != nil {
			s.writeWalletError(w, op, err)
			return
		}
	}

	out, err := s.d.Dispatch(r.Context(), c)
	if ref != "" {
		s.settleReservation(r.Context(), c.Caller, ref, err == nil)
	}
	if err != nil {
		if op == calls.OpClaimWinnings && s.custody != nil && errors.Is(err, market.ErrAlreadyClaimed) &&
			s.retryPayout(r.Context(), w, c) {
			return
		}
		s.writeCallError(w, op, err)
		return
	}

	if op == calls.OpClaimWinnings && s.custody != nil {
		s.creditPayout(r.Context(), w, c, out)
	}

	s.metrics.Calls.WithLabelValues(op, "OK").Inc()
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out)
}

// settleReservation fecha a reserva conforme o resultado do contrato. Se a
// wallet falhar, a operação fica pendente e o Reconciler reenvia com a
// mesma ref.
func (s *Server) settleReservation(ctx context.Context, user, ref string, ok bool) {
	op := wallet.PendingOp{Ref: ref, Kind: wallet.OpRefund, UserID: user}
	if ok {
		op.Kind = wallet.OpCommit
	}
	if err := wallet.Apply(ctx, s.custody, op); err != nil {
		s.log.Error("wallet "+op.Kind+" failed", zap.String("user", user), zap.String("ref", ref), zap.Error(err))
		op.Attempts, op.LastError = 1, err.Error()
		s.keepPending(ctx, op)
	}
}

func (s *Server) keepPending(ctx context.Context, op wallet.PendingOp) {
	s.metrics.PendingOps.WithLabelValues(op.Kind).Inc()
	if err := s.pending.Save(context.WithoutCancel(ctx), op); err != nil {
		s.log.Error("save pending wallet op", zap.String("ref", op.Ref), zap.String("kind", op.Kind), zap.Error(err))
	}
}

func claimRef(roundID uint64, user string) string {
	return fmt.Sprintf("claim:%d:%s", roundID, user)
}

// creditPayout leva o prêmio para a wallet. O claim já foi registrado no
// contrato, então o depósito é gravado como pendente antes de ir para a
// wallet e só sai de lá quando ela confirma.
func (s *Server) creditPayout(ctx context.Context, w http.ResponseWriter, c contract.Call, out []byte) {
	var a calls.RoundID
	var res calls.AmountResult
	if err := a.Unmarshal(c.Args); err != nil {
		return
	}
	if err := res.Unmarshal(out); err != nil || res.Amount == 0 {
		return
	}
	op := wallet.PendingOp{Ref: claimRef(a.RoundID, c.Caller), Kind: wallet.OpDeposit, UserID: c.Caller, Amount: res.Amount}
	s.keepPending(ctx, op)
	if err := s.rec.Retry(ctx, op); err != nil {
		s.metrics.PayoutErrors.Inc()
		s.log.Error("payout credit failed",
			zap.Uint64("round_id", a.RoundID),
			zap.String("user", c.Caller),
			zap.Uint64("amount", res.Amount),
			zap.Error(err),
		)
		w.Header().Set(HeaderPayoutPending, "true")
	}
}

// retryPayout atende um claim repetido cujo depósito ainda está pendente:
// reenvia o depósito e, se a wallet aceitar, responde como o claim original.
func (s *Server) retryPayout(ctx context.Context, w http.ResponseWriter, c contract.Call) bool {
	var a calls.RoundID
	if err := a.Unmarshal(c.Args); err != nil {
		return false
	}
	op, ok, err := s.pending.Get(ctx, claimRef(a.RoundID, c.Caller))
	if err != nil {
		s.log.Error("load pending payout", zap.Uint64("round_id", a.RoundID), zap.String("user", c.Caller), zap.Error(err))
		return false
	}
	if !ok || op.Kind != wallet.OpDeposit {
		return false
	}
	if err := s.rec.Retry(ctx, op); err != nil {
		s.metrics.Calls.WithLabelValues(c.Operation, "WalletUnavailable").Inc()
		w.Header().Set(HeaderPayoutPending, "true")
		writeJSON(w, http.StatusBadGateway, errorView{Error: "payout still pending: wallet unavailable", Code: "WalletUnavailable"})
		return true
	}
	s.metrics.Calls.WithLabelValues(c.Operation, "OK").Inc()
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(calls.AmountResult{Amount: op.Amount}.Marshal())
	return true
}

func (s *Server) currentRound(w http.ResponseWriter, _ *http.Request) {
	rd, err := s.d.Engine().CurrentRound()
	if err != nil {
		s.writeViewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rd)
}

func (s *Server) roundDetails(w http.ResponseWriter, r *http.Request) {
	id, ok := roundParam(w, r)
	if !ok {
		return
	}
	rd, err := s.d.Engine().Round(id)
	if err != nil {
		s.writeViewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rd)
}

func (s *Server) odds(w http.ResponseWriter, r *http.Request) {
	id, ok := roundParam(w, r)
	if !ok {
		return
	}
	var amount uint64
	if v := r.URL.Query().Get("amount"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorView{Error: "invalid amount", Code: "BadArgs"})
			return
		}
		amount = n
	}
	q, err := s.d.Engine().Odds(id, amount)
	if err != nil {
		s.writeViewError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newOddsView(id, amount, q))
}

func (s *Server) userBet(w http.ResponseWriter, r *http.Request) {
	id, ok := roundParam(w, r)
	if !ok {
		return
	}
	user := chi.URLParam(r, "user")
	b := s.d.Engine().GetUserBet(id, user)
	writeJSON(w, http.StatusOK, userBetView{RoundID: id, User: user, UpAmount: b.UpAmount, DownAmount: b.DownAmount})
}

func (s *Server) claimable(w http.ResponseWriter, r *http.Request) {
	id, ok := roundParam(w, r)
	if !ok {
		return
	}
	user := chi.URLParam(r, "user")
	writeJSON(w, http.StatusOK, claimableView{RoundID: id, User: user, Amount: s.d.Engine().ClaimableAmount(id, user)})
}

func (s *Server) house(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, houseView(s.d.Engine().HouseStatus()))
}

func roundParam(w http.ResponseWriter, r *http.Request) (uint64, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorView{Error: "invalid round id", Code: "BadArgs"})
		return 0, false
	}
	return id, true
}

func parseCoins(v string) (uint64, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s header", HeaderCoins)
	}
	// saldos da wallet são int64
	if n > math.MaxInt64 {
		return 0, fmt.Errorf("%s above %d", HeaderCoins, int64(math.MaxInt64))
	}
	return n, nil
}

func (s *Server) writeCallError(w http.ResponseWriter, op string, err error) {
	code := contract.Code(err)
	s.metrics.Calls.WithLabelValues(op, code).Inc()
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("contract call failed", zap.String("op", op), zap.String("code", code), zap.Error(err))
	} else {
		s.log.Debug("contract call rejected", zap.String("op", op), zap.String("code", code), zap.Error(err))
	}
	writeJSON(w, status, errorView{Error: err.Error(), Code: code})
}

func (s *Server) writeWalletError(w http.ResponseWriter, op string, err error) {
	s.metrics.Calls.WithLabelValues(op, "WalletRejected").Inc()
	switch {
	case errors.Is(err, wallet.ErrInsufficientFunds):
		writeJSON(w, http.StatusPaymentRequired, errorView{Error: err.Error(), Code: "InsufficientFunds"})
	case errors.Is(err, wallet.ErrNotFound):
		writeJSON(w, http.StatusPaymentRequired, errorView{Error: err.Error(), Code: "WalletNotFound"})
	case errors.Is(err, wallet.ErrAmountTooLarge):
		writeJSON(w, http.StatusBadRequest, errorView{Error: err.Error(), Code: "BadArgs"})
	default:
		s.log.Error("wallet reserve failed", zap.String("op", op), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, errorView{Error: "wallet unavailable", Code: "WalletUnavailable"})
	}
}

func (s *Server) writeViewError(w http.ResponseWriter, err error) {
	writeJSON(w, StatusFor(err), errorView{Error: err.Error(), Code: contract.Code(err)})
}

// StatusFor traduz a taxonomia de erros do contrato para status HTTP.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, contract.ErrUnknownOperation):
		return http.StatusNotFound
	case errors.Is(err, contract.ErrBadArgs),
		errors.Is(err, contract.ErrUnexpectedCoins),
		errors.Is(err, market.ErrBelowMinimum),
		errors.Is(err, market.ErrInvalidCaller),
		errors.Is(err, market.ErrAmountOverflow):
		return http.StatusBadRequest
	case errors.Is(err, market.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, market.ErrRoundNotActive):
		return http.StatusConflict
	case errors.Is(err, market.ErrRoundNotFound):
		return http.StatusNotFound
	case errors.Is(err, market.ErrInvalidState), errors.Is(err, market.ErrNoPosition):
		return http.StatusConflict
	case errors.Is(err, market.ErrOracleUnavailable), errors.Is(err, market.ErrStalePrice):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
