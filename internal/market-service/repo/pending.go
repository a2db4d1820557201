package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/radieske/updown-market-poc/internal/market-service/wallet"
)

// PendingOps guarda em wallet_pending_ops as chamadas à wallet que ainda
// precisam ser reenviadas. amount é NUMERIC para caber qualquer uint64.
type PendingOps struct{ db *sql.DB }

func NewPendingOps(db *sql.DB) *PendingOps { return &PendingOps{db: db} }

func (p *PendingOps) Save(ctx context.Context, op wallet.PendingOp) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO wallet_pending_ops(ref, kind, user_id, amount, attempts, last_error)
		VALUES ($1, $2, $3, $4::numeric, $5, $6)
		ON CONFLICT (ref) DO UPDATE
		SET attempts = EXCLUDED.attempts, last_error = EXCLUDED.last_error, updated_at = now()`,
		op.Ref, op.Kind, op.UserID, strconv.FormatUint(op.Amount, 10), op.Attempts, op.LastError)
	if err != nil {
		return fmt.Errorf("save pending %s: %w", op.Ref, err)
	}
	return nil
}

func (p *PendingOps) Get(ctx context.Context, ref string) (wallet.PendingOp, bool, error) {
	row := p.db.QueryRowContext(ctx, `
		SELECT ref, kind, user_id, amount::text, attempts, last_error, created_at
		FROM wallet_pending_ops WHERE ref = $1`, ref)
	op, err := scanPending(row)
	if errors.Is(err, sql.ErrNoRows) {
		return wallet.PendingOp{}, false, nil
	}
	if err != nil {
		return wallet.PendingOp{}, false, err
	}
	return op, true, nil
}

func (p *PendingOps) List(ctx context.Context, limit int) ([]wallet.PendingOp, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT ref, kind, user_id, amount::text, attempts, last_error, created_at
		FROM wallet_pending_ops ORDER BY created_at, ref LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []wallet.PendingOp
	for rows.Next() {
		op, err := scanPending(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, op)
	}
	return out, rows.Err()
}

func (p *PendingOps) Delete(ctx context.Context, ref string) error {
	_, err := p.db.ExecContext(ctx, `DELETE FROM wallet_pending_ops WHERE ref = $1`, ref)
	return err
}

type scanner interface{ Scan(dest ...any) error }

func scanPending(s scanner) (wallet.PendingOp, error) {
	var op wallet.PendingOp
	var amount string
	if err := s.Scan(&op.Ref, &op.Kind, &op.UserID, &amount, &op.Attempts, &op.LastError, &op.CreatedAt); err != nil {
		return wallet.PendingOp{}, err
	}
	n, err := strconv.ParseUint(amount, 10, 64)
	if err != nil {
		return wallet.PendingOp{}, fmt.Errorf("pending %s amount %q: %w", op.Ref, amount, err)
	}
	op.Amount = n
	return op, nil
}
