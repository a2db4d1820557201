package market

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Pools são os totais reais (sem liquidez virtual) apostados em cada lado.
type Pools struct {
	Up   uint64
	Down uint64
}

// AMMParams são as constantes que moldam as odds.
type AMMParams struct {
	HouseEdge        float64
	VirtualLiquidity uint64
}

// OddsQuote é a cotação do AMM para uma aposta prospectiva nos dois lados.
// UpPool/DownPool são os totais reais antes da aposta.
type OddsQuote struct {
	UpOdds     float64
	DownOdds   float64
	UpPayout   uint64
	DownPayout uint64
	UpPool     uint64
	DownPool   uint64
}

// QuoteOdds calcula odds e payout para amount em cada lado. Para o lado S a
// aposta entra no pool de S:
//
//	odds_S = (up + down + amount) / (pool_S + amount) * (1 - edge)
//
// com up/down já somados à liquidez virtual. O payout é truncado.
func QuoteOdds(p Pools, params AMMParams, amount uint64) OddsQuote {
	vl := dec(params.VirtualLiquidity)
	up := dec(p.Up).Add(vl)
	down := dec(p.Down).Add(vl)
	amt := dec(amount)
	total := up.Add(down).Add(amt)
	keep := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(params.HouseEdge))

	upOdds, upPayout := sideQuote(total, up.Add(amt), keep, amt)
	downOdds, downPayout := sideQuote(total, down.Add(amt), keep, amt)

	return OddsQuote{
		UpOdds:     upOdds,
		DownOdds:   downOdds,
		UpPayout:   upPayout,
		DownPayout: downPayout,
		UpPool:     p.Up,
		DownPool:   p.Down,
	}
}

func sideQuote(total, pool, keep, amount decimal.Decimal) (float64, uint64) {
	if pool.IsZero() {
		// só acontece com liquidez virtual zero e pools vazios
		return 0, 0
	}
	odds := total.Mul(keep).DivRound(pool, 18).InexactFloat64()
	// amount * total * keep / pool, truncado sem passar por float
	payout, _ := amount.Mul(total).Mul(keep).QuoRem(pool, 0)
	return odds, toUnits(payout)
}

func dec(u uint64) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(u), 0)
}

// toUnits converte um decimal inteiro não negativo para uint64, saturando.
func toUnits(d decimal.Decimal) uint64 {
	if d.Sign() <= 0 {
		return 0
	}
	b := d.BigInt()
	if !b.IsUint64() {
		return ^uint64(0)
	}
	return b.Uint64()
}
