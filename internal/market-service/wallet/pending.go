package wallet

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Tipos de operação pendente. Todas são idempotentes na wallet pela ref.
const (
	OpDeposit = "deposit"
	OpCommit  = "commit"
	OpRefund  = "refund"
)

// PendingOp é uma chamada à wallet que o mercado já decidiu mas que ainda
// não foi confirmada pela wallet.
type PendingOp struct {
	Ref       string
	Kind      string
	UserID    string
	Amount    uint64 // só deposit
	Attempts  int
	LastError string
	CreatedAt time.Time
}

// PendingStore guarda as operações pendentes, uma por ref.
type PendingStore interface {
	Save(ctx context.Context, op PendingOp) error
	Get(ctx context.Context, ref string) (PendingOp, bool, error)
	List(ctx context.Context, limit int) ([]PendingOp, error)
	Delete(ctx context.Context, ref string) error
}

// Settler é a parte da wallet usada para fechar operações.
type Settler interface {
	Commit(ctx context.Context, userID, externalRef string) error
	Refund(ctx context.Context, userID, externalRef string) error
	Deposit(ctx context.Context, userID string, amount uint64, externalRef string) (int64, error)
}

// Apply envia a operação para a wallet.
func Apply(ctx context.Context, w Settler, op PendingOp) error {
	switch op.Kind {
	case OpDeposit:
		_, err := w.Deposit(ctx, op.UserID, op.Amount, op.Ref)
		return err
	case OpCommit:
		return w.Commit(ctx, op.UserID, op.Ref)
	case OpRefund:
		return w.Refund(ctx, op.UserID, op.Ref)
	}
	return fmt.Errorf("unknown pending op kind %q", op.Kind)
}

// Reconciler reenvia operações pendentes com a mesma ref até a wallet aceitar.
type Reconciler struct {
	Store  PendingStore
	Wallet Settler
	Log    *zap.Logger
	Batch  int

	OnResolved func(kind string)
}

// Retry tenta uma operação. Sucesso remove a pendência; falha fica registrada
// para a próxima rodada.
func (r *Reconciler) Retry(ctx context.Context, op PendingOp) error {
	err := Apply(ctx, r.Wallet, op)
	if err != nil {
		// reserva inexistente não tem como ser fechada
		if op.Kind == OpDeposit || !errors.Is(err, ErrNotFound) {
			op.Attempts++
			op.LastError = err.Error()
			if serr := r.Store.Save(ctx, op); serr != nil {
				r.log().Error("save pending wallet op", zap.String("ref", op.Ref), zap.Error(serr))
			}
			return err
		}
		r.log().Error("reservation missing in wallet, dropping pending op",
			zap.String("ref", op.Ref), zap.String("kind", op.Kind), zap.String("user", op.UserID))
	}
	if err := r.Store.Delete(ctx, op.Ref); err != nil {
		return fmt.Errorf("delete pending %s: %w", op.Ref, err)
	}
	if op.Attempts > 0 {
		r.log().Info("pending wallet op resolved",
			zap.String("ref", op.Ref), zap.String("kind", op.Kind), zap.Int("attempts", op.Attempts))
	}
	if r.OnResolved != nil {
		r.OnResolved(op.Kind)
	}
	return nil
}

// RunOnce percorre um lote de pendências e devolve quantas foram resolvidas.
func (r *Reconciler) RunOnce(ctx context.Context) (int, error) {
	batch := r.Batch
	if batch <= 0 {
		batch = 100
	}
	ops, err := r.Store.List(ctx, batch)
	if err != nil {
		return 0, fmt.Errorf("list pending wallet ops: %w", err)
	}
	resolved := 0
	for _, op := range ops {
		if ctx.Err() != nil {
			return resolved, ctx.Err()
		}
		if err := r.Retry(ctx, op); err != nil {
			r.log().Warn("pending wallet op still failing",
				zap.String("ref", op.Ref), zap.String("kind", op.Kind), zap.Error(err))
			continue
		}
		resolved++
	}
	return resolved, nil
}

// Run executa RunOnce a cada intervalo até o contexto ser cancelado.
func (r *Reconciler) Run(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if _, err := r.RunOnce(ctx); err != nil && ctx.Err() == nil {
			r.log().Warn("wallet reconcile", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}

func (r *Reconciler) log() *zap.Logger {
	if r.Log == nil {
		return zap.NewNop()
	}
	return r.Log
}

// MemoryPending é o PendingStore em memória (modo local e testes).
type MemoryPending struct {
	mu  sync.Mutex
	ops map[string]PendingOp
}

func NewMemoryPending() *MemoryPending {
	return &MemoryPending{ops: make(map[string]PendingOp)}
}

func (m *MemoryPending) Save(_ context.Context, op PendingOp) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.ops[op.Ref]; ok {
		op.CreatedAt = prev.CreatedAt
	} else if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now()
	}
	m.ops[op.Ref] = op
	return nil
}

func (m *MemoryPending) Get(_ context.Context, ref string) (PendingOp, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.ops[ref]
	return op, ok, nil
}

func (m *MemoryPending) List(_ context.Context, limit int) ([]PendingOp, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]PendingOp, 0, len(m.ops))
	for _, op := range m.ops {
		out = append(out, op)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Ref < out[j].Ref
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryPending) Delete(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ops, ref)
	return nil
}
