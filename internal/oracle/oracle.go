// Package oracle define o contrato do feed de preço consumido pelo mercado.
// O núcleo só enxerga um par (preço, timestamp) e uma verificação de
// idade máxima; de onde o preço vem fica a cargo de cada PriceFeed.
package oracle

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

var (
	ErrNoPrice      = errors.New("oracle: no price available")
	ErrInvalidPrice = errors.New("oracle: invalid price")
)

// Quote é o preço atual do ativo e o instante (ms) em que foi observado.
type Quote struct {
	Price     float64
	Timestamp uint64
}

// PriceFeed fornece o último preço conhecido.
type PriceFeed interface {
	CurrentPrice(ctx context.Context) (Quote, error)
}

// Gateway aplica validação e a política de idade sobre um PriceFeed.
type Gateway struct {
	feed   PriceFeed
	maxAge time.Duration
	clock  func() time.Time
}

// NewGateway cria o gateway; maxAge <= 0 desliga a verificação de staleness.
func NewGateway(feed PriceFeed, maxAge time.Duration) *Gateway {
	return &Gateway{feed: feed, maxAge: maxAge, clock: time.Now}
}

// WithClock troca o relógio usado em IsStale (testes).
func (g *Gateway) WithClock(clock func() time.Time) *Gateway {
	if clock != nil {
		g.clock = clock
	}
	return g
}

// CurrentPrice lê o feed e rejeita preços não positivos ou não finitos.
func (g *Gateway) CurrentPrice(ctx context.Context) (Quote, error) {
	q, err := g.feed.CurrentPrice(ctx)
	if err != nil {
		return Quote{}, err
	}
	if math.IsNaN(q.Price) || math.IsInf(q.Price, 0) || q.Price <= 0 {
		return Quote{}, fmt.Errorf("%w: %v", ErrInvalidPrice, q.Price)
	}
	return q, nil
}

// IsStale indica se um preço observado em ts (ms) excede a idade máxima.
func (g *Gateway) IsStale(ts uint64) bool {
	if g.maxAge <= 0 {
		return false
	}
	now := uint64(g.clock().UnixMilli())
	if ts >= now {
		return false
	}
	return time.Duration(now-ts)*time.Millisecond > g.maxAge
}

// MaxAge retorna a idade máxima configurada.
func (g *Gateway) MaxAge() time.Duration { return g.maxAge }
