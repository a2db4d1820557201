package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Postgres implementa a custódia de saldos dos apostadores.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrNotFound          = errors.New("not found")
)

const (
	StatusPending   = "PENDING"
	StatusCommitted = "COMMITTED"
	StatusRefunded  = "REFUNDED"
)

// GetOrCreateWallet retorna o walletId e o saldo do usuário, criando a
// carteira se não existir.
func (p *Postgres) GetOrCreateWallet(ctx context.Context, userID string) (walletID string, balance int64, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, err
	}
	defer tx.Rollback()

	if walletID, err = ensureWallet(ctx, tx, userID); err != nil {
		return "", 0, err
	}
	if err = tx.QueryRowContext(ctx, `SELECT balance FROM wallets WHERE id=$1`, walletID).Scan(&balance); err != nil {
		return "", 0, err
	}
	return walletID, balance, tx.Commit()
}

// ensureWallet cria a carteira se preciso e trava a linha até o fim da tx.
func ensureWallet(ctx context.Context, tx *sql.Tx, userID string) (string, error) {
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO wallets(id, user_id, balance, version) VALUES($1,$2,0,1) ON CONFLICT (user_id) DO NOTHING`,
		uuid.NewString(), userID); err != nil {
		return "", fmt.Errorf("upsert wallet: %w", err)
	}
	var id string
	if err := tx.QueryRowContext(ctx, `SELECT id FROM wallets WHERE user_id=$1 FOR UPDATE`, userID).Scan(&id); err != nil {
		return "", fmt.Errorf("lock wallet: %w", err)
	}
	return id, nil
}

// Deposit credita saldo, criando a carteira no primeiro depósito. Com
// externalRef, repetir o mesmo depósito não credita de novo (usado nos
// prêmios de claim).
func (p *Postgres) Deposit(ctx context.Context, userID string, amount int64, externalRef string) (walletID string, newBalance int64, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", 0, err
	}
	defer tx.Rollback()

	if walletID, err = ensureWallet(ctx, tx, userID); err != nil {
		return "", 0, err
	}

	dup := false
	if externalRef != "" {
		err = tx.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM wallet_ledger WHERE wallet_id=$1 AND operation_type='CREDIT' AND external_ref=$2)`,
			walletID, externalRef).Scan(&dup)
		if err != nil {
			return "", 0, err
		}
	}

	if !dup {
		if _, err = tx.ExecContext(ctx, `UPDATE wallets SET balance = balance + $1, version = version + 1 WHERE id=$2`, amount, walletID); err != nil {
			return "", 0, err
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO wallet_ledger(wallet_id, operation_type, amount, description, external_ref) VALUES($1,'CREDIT',$2,$3,NULLIF($4,''))`,
			walletID, amount, "deposit:"+externalRef, externalRef); err != nil {
			return "", 0, err
		}
	}

	if err = tx.QueryRowContext(ctx, `SELECT balance FROM wallets WHERE id=$1`, walletID).Scan(&newBalance); err != nil {
		return "", 0, err
	}
	return walletID, newBalance, tx.Commit()
}

// Reserve bloqueia amount na carteira. Idempotente por (wallet, external_ref).
func (p *Postgres) Reserve(ctx context.Context, userID string, amount int64, externalRef string) (reservationID string, err error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var walletID string
	var balance int64
	err = tx.QueryRowContext(ctx, `SELECT id, balance FROM wallets WHERE user_id=$1 FOR UPDATE`, userID).Scan(&walletID, &balance)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}

	err = tx.QueryRowContext(ctx, `SELECT id FROM wallet_reservations WHERE wallet_id=$1 AND external_ref=$2`, walletID, externalRef).Scan(&reservationID)
	if err == nil {
		return reservationID, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", err
	}

	if balance < amount {
		return "", ErrInsufficientFunds
	}

	if _, err = tx.ExecContext(ctx, `UPDATE wallets SET balance = balance - $1, version = version + 1 WHERE id=$2`, amount, walletID); err != nil {
		return "", err
	}
	reservationID = uuid.NewString()
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO wallet_reservations(id, wallet_id, external_ref, amount, status) VALUES($1,$2,$3,$4,'PENDING')`,
		reservationID, walletID, externalRef, amount); err != nil {
		return "", err
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO wallet_ledger(wallet_id, operation_type, amount, description, external_ref) VALUES($1,'RESERVE',$2,$3,$4)`,
		walletID, amount, "reserve:"+externalRef, externalRef); err != nil {
		return "", err
	}
	return reservationID, tx.Commit()
}

// Commit efetiva a reserva: o valor sai da custódia para o mercado.
func (p *Postgres) Commit(ctx context.Context, userID, externalRef string) error {
	return p.closeReservation(ctx, userID, externalRef, StatusCommitted)
}

// Refund desfaz a reserva e devolve o saldo.
func (p *Postgres) Refund(ctx context.Context, userID, externalRef string) error {
	return p.closeReservation(ctx, userID, externalRef, StatusRefunded)
}

// closeReservation leva uma reserva PENDING ao status final. Reservas já
// fechadas são ignoradas.
func (p *Postgres) closeReservation(ctx context.Context, userID, externalRef, status string) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var walletID, resID, current string
	var amount int64
	err = tx.QueryRowContext(ctx, `
		SELECT wr.id, wr.wallet_id, wr.amount, wr.status
		FROM wallet_reservations wr
		JOIN wallets w ON w.id = wr.wallet_id
		WHERE w.user_id=$1 AND wr.external_ref=$2
		FOR UPDATE`, userID, externalRef).Scan(&resID, &walletID, &amount, &current)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if current != StatusPending {
		return nil
	}

	op := "DEBIT"
	if status == StatusRefunded {
		op = "REFUND"
		if _, err = tx.ExecContext(ctx, `UPDATE wallets SET balance = balance + $1, version = version + 1 WHERE id=$2`, amount, walletID); err != nil {
			return err
		}
	}
	if _, err = tx.ExecContext(ctx, `UPDATE wallet_reservations SET status=$1 WHERE id=$2`, status, resID); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx,
		`INSERT INTO wallet_ledger(wallet_id, operation_type, amount, description, external_ref) VALUES($1,$2,$3,$4,$5)`,
		walletID, op, amount, "settle:"+externalRef, externalRef); err != nil {
		return err
	}
	return tx.Commit()
}
