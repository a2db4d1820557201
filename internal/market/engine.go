package market

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/updown-market-poc/internal/oracle"
)

// Oracle é o que o motor precisa do gateway de preço.
type Oracle interface {
	CurrentPrice(ctx context.Context) (oracle.Quote, error)
	IsStale(ts uint64) bool
}

// Engine executa as operações do mercado. Cada chamada pública roda inteira
// sob um único mutex e só escreve no Store depois de validar tudo.
type Engine struct {
	mu     sync.Mutex
	params Params
	store  *Store
	oracle Oracle
	log    *zap.Logger
	clock  func() time.Time
}

func NewEngine(params Params, o Oracle, log *zap.Logger) (*Engine, error) {
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("market params: %w", err)
	}
	if o == nil {
		return nil, fmt.Errorf("market: oracle is required")
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		params: params,
		store: NewStore(HouseAccount{
			HouseEdge:        params.HouseEdge,
			VirtualLiquidity: params.VirtualLiquidity,
			MinBet:           params.MinBet,
		}),
		oracle: o,
		log:    log,
		clock:  time.Now,
	}, nil
}

// WithClock troca o relógio do motor (testes).
func (e *Engine) WithClock(clock func() time.Time) *Engine {
	if clock != nil {
		e.clock = clock
	}
	return e
}

func (e *Engine) Params() Params { return e.params }

func (e *Engine) now() uint64 { return uint64(e.clock().UnixMilli()) }

func (e *Engine) ammParams() AMMParams {
	return AMMParams{HouseEdge: e.params.HouseEdge, VirtualLiquidity: e.params.VirtualLiquidity}
}

// readPrice consulta o oráculo aplicando a política de staleness.
func (e *Engine) readPrice(ctx context.Context) (oracle.Quote, bool, error) {
	q, err := e.oracle.CurrentPrice(ctx)
	if err != nil {
		return oracle.Quote{}, false, fmt.Errorf("%w: %w", ErrOracleUnavailable, err)
	}
	stale := e.oracle.IsStale(q.Timestamp)
	if stale && e.params.BlockOnStale {
		return oracle.Quote{}, true, fmt.Errorf("%w: observed at %d", ErrStalePrice, q.Timestamp)
	}
	if stale {
		e.log.Warn("using stale oracle price", zap.Float64("price", q.Price), zap.Uint64("ts", q.Timestamp))
	}
	return q, stale, nil
}

// commit avança o contador de mutações; chamado uma vez por escrita aceita.
func (e *Engine) commit() uint64 {
	e.store.seq++
	return e.store.seq
}

// Snapshot retorna uma cópia do estado atual.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Snapshot()
}

// Restore carrega um snapshot salvo anteriormente.
func (e *Engine) Restore(st State) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.Restore(st)
}

// Seq retorna o número de mutações aplicadas.
func (e *Engine) Seq() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.seq
}
