package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/radieske/updown-market-poc/internal/ledger-projector/projection"
)

// Postgres aplica as projeções numa única transação por evento. A linha em
// processed_events é a trava de idempotência.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// Apply devolve applied=false quando o evento já tinha sido processado.
func (p *Postgres) Apply(ctx context.Context, pr projection.Projection) (applied bool, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO processed_events(event_id) VALUES($1) ON CONFLICT (event_id) DO NOTHING`, pr.EventID)
	if err != nil {
		return false, fmt.Errorf("mark processed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}

	if r := pr.Round; r != nil {
		// last_seq impede que um evento atrasado regrida a rodada
		_, err = tx.ExecContext(ctx, `
			INSERT INTO rounds (round_id, start_time, betting_end_time, settlement_time, start_price, end_price,
			                    total_up_bets, total_down_bets, status, up_wins, start_price_stale, end_price_stale, last_seq)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
			ON CONFLICT (round_id) DO UPDATE SET
			  end_price         = EXCLUDED.end_price,
			  total_up_bets     = EXCLUDED.total_up_bets,
			  total_down_bets   = EXCLUDED.total_down_bets,
			  status            = EXCLUDED.status,
			  up_wins           = EXCLUDED.up_wins,
			  end_price_stale   = EXCLUDED.end_price_stale,
			  last_seq          = EXCLUDED.last_seq,
			  updated_at        = now()
			WHERE rounds.last_seq < EXCLUDED.last_seq`,
			i64(r.RoundID), i64(r.StartTime), i64(r.BettingEndTime), i64(r.SettlementTime), r.StartPrice, r.EndPrice,
			i64(r.TotalUpBets), i64(r.TotalDownBets), r.Status, r.UpWins, r.StartPriceStale, r.EndPriceStale, i64(pr.Seq))
		if err != nil {
			return false, fmt.Errorf("upsert round: %w", err)
		}
	}

	if b := pr.Bet; b != nil {
		// os valores do evento são o total do usuário; GREATEST tolera reordenação
		_, err = tx.ExecContext(ctx, `
			INSERT INTO user_bets (round_id, user_id, up_amount, down_amount)
			VALUES ($1,$2,$3,$4)
			ON CONFLICT (round_id, user_id) DO UPDATE SET
			  up_amount   = GREATEST(user_bets.up_amount, EXCLUDED.up_amount),
			  down_amount = GREATEST(user_bets.down_amount, EXCLUDED.down_amount),
			  updated_at  = now()`,
			i64(b.RoundID), b.User, i64(b.UpAmount), i64(b.DownAmount))
		if err != nil {
			return false, fmt.Errorf("upsert user bet: %w", err)
		}
	}

	if c := pr.Claim; c != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO claims (round_id, user_id, amount) VALUES ($1,$2,$3)
			ON CONFLICT (round_id, user_id) DO NOTHING`,
			i64(c.RoundID), c.User, i64(c.Amount))
		if err != nil {
			return false, fmt.Errorf("insert claim: %w", err)
		}
	}

	if h := pr.House; h != nil {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO house_ledger (event_id, seq, kind, round_id, user_id, delta, balance)
			VALUES ($1,$2,$3,NULLIF($4::bigint,0),NULLIF($5::text,''),$6,$7)`,
			pr.EventID, i64(pr.Seq), h.Kind, i64(h.RoundID), h.User, h.Delta, i64(h.Balance))
		if err != nil {
			return false, fmt.Errorf("insert house entry: %w", err)
		}
	}

	return true, tx.Commit()
}

// i64 converte para BIGINT; o engine nunca passa de 2^63 na prática, e o
// Postgres rejeitaria o valor de qualquer forma.
func i64(v uint64) int64 {
	if v > 1<<63-1 {
		return 1<<63 - 1
	}
	return int64(v)
}
