package httpapi

import "github.com/radieske/updown-market-poc/internal/market"

type userBetView struct {
	RoundID    uint64 `json:"round_id"`
	User       string `json:"user"`
	UpAmount   uint64 `json:"up_amount"`
	DownAmount uint64 `json:"down_amount"`
}

type claimableView struct {
	RoundID uint64 `json:"round_id"`
	User    string `json:"user"`
	Amount  uint64 `json:"amount"`
}

type oddsView struct {
	RoundID    uint64  `json:"round_id"`
	Amount     uint64  `json:"amount"`
	UpOdds     float64 `json:"up_odds"`
	DownOdds   float64 `json:"down_odds"`
	UpPayout   uint64  `json:"up_payout"`
	DownPayout uint64  `json:"down_payout"`
	UpPool     uint64  `json:"up_pool"`
	DownPool   uint64  `json:"down_pool"`
}

type houseView struct {
	Balance          uint64  `json:"balance"`
	RoundCounter     uint64  `json:"round_counter"`
	HouseEdge        float64 `json:"house_edge"`
	MinBet           uint64  `json:"min_bet"`
	RoundDuration    uint64  `json:"round_duration_ms"`
	BettingWindow    uint64  `json:"betting_window_ms"`
	VirtualLiquidity uint64  `json:"virtual_liquidity"`
}

func newOddsView(roundID, amount uint64, q market.OddsQuote) oddsView {
	return oddsView{
		RoundID:    roundID,
		Amount:     amount,
		UpOdds:     q.UpOdds,
		DownOdds:   q.DownOdds,
		UpPayout:   q.UpPayout,
		DownPayout: q.DownPayout,
		UpPool:     q.UpPool,
		DownPool:   q.DownPool,
	}
}

type errorView struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
