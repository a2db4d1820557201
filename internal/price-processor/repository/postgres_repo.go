package repository

import (
	"context"
	"database/sql"

	"github.com/radieske/updown-market-poc/pkg/contracts/events"
)

// PostgresRepo guarda o histórico de preços usado em auditoria das liquidações.
type PostgresRepo struct {
	DB *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{DB: db}
}

// InsertHistory ignora reentregas: (symbol, version) é único.
func (r *PostgresRepo) InsertHistory(ctx context.Context, u events.PriceUpdate) error {
	const q = `
		INSERT INTO price_history (symbol, price, ts_unix_ms, source, version)
		VALUES ($1,$2,$3,$4,$5)
		ON CONFLICT (symbol, version) DO NOTHING
	`
	_, err := r.DB.ExecContext(ctx, q, u.Symbol, u.Price, u.TsUnixMs, u.Source, u.Version)
	return err
}

// PriceAt devolve o último preço observado até ts (inclusive).
func (r *PostgresRepo) PriceAt(ctx context.Context, symbol string, ts int64) (events.PriceUpdate, error) {
	const q = `
		SELECT symbol, price, ts_unix_ms, source, version
		FROM price_history
		WHERE symbol = $1 AND ts_unix_ms <= $2
		ORDER BY ts_unix_ms DESC, version DESC
		LIMIT 1
	`
	var u events.PriceUpdate
	err := r.DB.QueryRowContext(ctx, q, symbol, ts).Scan(&u.Symbol, &u.Price, &u.TsUnixMs, &u.Source, &u.Version)
	return u, err
}
