package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/updown-market-poc/pkg/contracts/events"
)

type Publisher interface {
	Publish(ctx context.Context, u events.PriceUpdate) error
}

var ErrInvalidUpdate = errors.New("invalid price update")

// WSClient consome os ticks do fornecedor de preço e publica cada um no Kafka.
type WSClient struct {
	URL       string
	Symbol    string // vazio aceita qualquer símbolo
	Log       *zap.Logger
	Publisher Publisher
	Backoff   time.Duration

	OnPublished func()
	OnRejected  func()

	lastVersion int
}

// Start conecta e escuta até o contexto ser cancelado, reconectando com
// backoff quando a conexão cai.
func (c *WSClient) Start(ctx context.Context) {
	backoff := c.Backoff
	if backoff <= 0 {
		backoff = 3 * time.Second
	}
	for {
		if err := c.connectAndListen(ctx); err != nil {
			c.Log.Warn("connection closed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			c.Log.Info("context canceled, stopping WS client")
			return
		case <-time.After(backoff):
		}
	}
}

func (c *WSClient) connectAndListen(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.URL, nil)
	if err != nil {
		return err
	}
	defer conn.Close()
	c.Log.Info("connected to price feed", zap.String("url", c.URL))

	// fecha o socket no cancelamento para destravar o ReadMessage
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return nil
			}
			return err
		}
		if err := c.handle(ctx, message); err != nil {
			c.Log.Warn("price update dropped", zap.Error(err))
		}
	}
}

// handle valida e publica um tick. Versões que não avançam são descartadas;
// uma versão menor que a última indica que o fornecedor reiniciou.
func (c *WSClient) handle(ctx context.Context, message []byte) error {
	var u events.PriceUpdate
	if err := json.Unmarshal(message, &u); err != nil {
		c.reject()
		return fmt.Errorf("%w: %v", ErrInvalidUpdate, err)
	}
	if err := c.validate(u); err != nil {
		c.reject()
		return err
	}
	if u.Version == c.lastVersion {
		return nil
	}
	if u.Version < c.lastVersion {
		c.Log.Info("price feed restarted", zap.Int("last_version", c.lastVersion), zap.Int("version", u.Version))
	}
	if err := c.Publisher.Publish(ctx, u); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	c.lastVersion = u.Version
	if c.OnPublished != nil {
		c.OnPublished()
	}
	return nil
}

func (c *WSClient) validate(u events.PriceUpdate) error {
	switch {
	case u.Symbol == "":
		return fmt.Errorf("%w: missing symbol", ErrInvalidUpdate)
	case c.Symbol != "" && u.Symbol != c.Symbol:
		return fmt.Errorf("%w: unexpected symbol %s", ErrInvalidUpdate, u.Symbol)
	case !(u.Price > 0):
		return fmt.Errorf("%w: price %v", ErrInvalidUpdate, u.Price)
	case u.TsUnixMs <= 0:
		return fmt.Errorf("%w: missing timestamp", ErrInvalidUpdate)
	}
	return nil
}

func (c *WSClient) reject() {
	if c.OnRejected != nil {
		c.OnRejected()
	}
}
