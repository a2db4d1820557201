package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/radieske/updown-market-poc/internal/contract"
	"github.com/radieske/updown-market-poc/internal/market"
	"github.com/radieske/updown-market-poc/pkg/contracts/events"
)

// Postgres guarda o snapshot do estado do mercado numa única linha de
// market_state. O seq impede que um snapshot antigo sobrescreva um novo.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

func (p *Postgres) Save(ctx context.Context, st market.State) error {
	b, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal market state: %w", err)
	}
	_, err = p.db.ExecContext(ctx, `
		INSERT INTO market_state(id, seq, state, updated_at)
		VALUES (1, $1, $2, now())
		ON CONFLICT (id) DO UPDATE
		SET seq = EXCLUDED.seq, state = EXCLUDED.state, updated_at = now()
		WHERE market_state.seq < EXCLUDED.seq`, int64(st.Seq), b)
	return err
}

// Load retorna o último snapshot salvo; ok=false quando ainda não existe.
func (p *Postgres) Load(ctx context.Context) (st market.State, ok bool, err error) {
	var b []byte
	err = p.db.QueryRowContext(ctx, `SELECT state FROM market_state WHERE id = 1`).Scan(&b)
	if errors.Is(err, sql.ErrNoRows) {
		return market.State{}, false, nil
	}
	if err != nil {
		return market.State{}, false, err
	}
	if err := json.Unmarshal(b, &st); err != nil {
		return market.State{}, false, fmt.Errorf("decode market state: %w", err)
	}
	return st, true, nil
}

// Sink salva um snapshot do engine a cada evento de mutação.
func (p *Postgres) Sink(eng *market.Engine) contract.Sink {
	return contract.SinkFunc(func(ctx context.Context, _ events.MarketEvent) error {
		return p.Save(ctx, eng.Snapshot())
	})
}
