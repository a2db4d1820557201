// Package feed gera o preço simulado e o distribui por WebSocket para o
// price-ingest-service.
package feed

import (
	"math"
	"math/rand"
	"time"

	"github.com/radieske/updown-market-poc/pkg/contracts/events"
)

// Walk é um passeio aleatório multiplicativo com saltos ocasionais.
// Não é seguro para uso concorrente.
type Walk struct {
	Symbol     string
	Source     string
	price      float64
	volatility float64
	jumpChance float64
	rng        *rand.Rand
	version    int
}

func NewWalk(symbol, source string, start, volatility, jumpChance float64, seed int64) *Walk {
	return &Walk{
		Symbol:     symbol,
		Source:     source,
		price:      start,
		volatility: volatility,
		jumpChance: jumpChance,
		rng:        rand.New(rand.NewSource(seed)),
	}
}

func (w *Walk) Price() float64 { return w.price }

// Next avança um tick e devolve a atualização correspondente. O preço nunca
// fica abaixo de um centavo.
func (w *Walk) Next(now time.Time) events.PriceUpdate {
	step := w.rng.NormFloat64() * w.volatility
	if w.rng.Float64() < w.jumpChance {
		// salto de 10 a 30 desvios, para cima ou para baixo
		jump := (10 + 20*w.rng.Float64()) * w.volatility
		if w.rng.Intn(2) == 0 {
			jump = -jump
		}
		step += jump
	}
	w.price = math.Max(0.01, w.price*(1+step))
	w.price = math.Round(w.price*100) / 100
	w.version++

	return events.PriceUpdate{
		Symbol:   w.Symbol,
		Price:    w.price,
		TsUnixMs: now.UnixMilli(),
		Source:   w.Source,
		Version:  w.version,
	}
}
