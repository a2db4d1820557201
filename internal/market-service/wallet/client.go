package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/radieske/updown-market-poc/internal/wallet-service/dto"
)

var (
	ErrInsufficientFunds = errors.New("wallet: insufficient funds")
	ErrNotFound          = errors.New("wallet: not found")
	// a wallet guarda saldos em BIGINT
	ErrAmountTooLarge = errors.New("wallet: amount above int64 range")
)

// Client fala com o wallet-service, que guarda as moedas dos apostadores
// enquanto a chamada ao mercado não termina.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

func New(base string) *Client {
	return &Client{
		BaseURL: base,
		HTTP:    &http.Client{Timeout: 2 * time.Second},
	}
}

func (c *Client) Reserve(ctx context.Context, userID string, amount uint64, externalRef string) (string, error) {
	if amount > math.MaxInt64 {
		return "", ErrAmountTooLarge
	}
	var out dto.ReservationResponse
	err := c.post(ctx, "/wallet/reserve", dto.ReserveRequest{UserID: userID, Amount: int64(amount), ExternalRef: externalRef}, &out)
	return out.ReservationID, err
}

func (c *Client) Commit(ctx context.Context, userID, externalRef string) error {
	return c.post(ctx, "/wallet/commit", dto.SettleRequest{UserID: userID, ExternalRef: externalRef}, nil)
}

func (c *Client) Refund(ctx context.Context, userID, externalRef string) error {
	return c.post(ctx, "/wallet/refund", dto.SettleRequest{UserID: userID, ExternalRef: externalRef}, nil)
}

// Deposit credita o prêmio de um claim; externalRef torna a chamada idempotente.
func (c *Client) Deposit(ctx context.Context, userID string, amount uint64, externalRef string) (int64, error) {
	if amount > math.MaxInt64 {
		return 0, ErrAmountTooLarge
	}
	var out dto.WalletResponse
	err := c.post(ctx, "/wallet/deposit", dto.DepositRequest{UserID: userID, Amount: int64(amount), ExternalRef: externalRef}, &out)
	return out.Balance, err
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("wallet %s: %w", path, err)
	}
	defer res.Body.Close()

	switch {
	case res.StatusCode == http.StatusConflict:
		return ErrInsufficientFunds
	case res.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case res.StatusCode >= 300:
		return fmt.Errorf("wallet %s http %d", path, res.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}
