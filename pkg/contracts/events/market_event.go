package events

// Tipos de evento emitidos pelo market-service após cada chamada que altera estado.
const (
	TypeRoundCreated    = "round_created"
	TypeBetPlaced       = "bet_placed"
	TypeRoundSettled    = "round_settled"
	TypeWinningsClaimed = "winnings_claimed"
	TypeHouseFunded     = "house_funded"
)

// RoundState é a foto de uma rodada no momento do evento.
type RoundState struct {
	RoundID         uint64  `json:"round_id"`
	StartTime       uint64  `json:"start_time"`
	BettingEndTime  uint64  `json:"betting_end_time"`
	SettlementTime  uint64  `json:"settlement_time"`
	StartPrice      float64 `json:"start_price"`
	EndPrice        float64 `json:"end_price"`
	TotalUpBets     uint64  `json:"total_up_bets"`
	TotalDownBets   uint64  `json:"total_down_bets"`
	Status          string  `json:"status"` // "ACTIVE" | "SETTLED"
	UpWins          bool    `json:"up_wins"`
	StartPriceStale bool    `json:"start_price_stale,omitempty"`
	EndPriceStale   bool    `json:"end_price_stale,omitempty"`
}

// Evento publicado no tópico "market_events"
type MarketEvent struct {
	EventID      string      `json:"event_id"` // uuid, chave de idempotência do projector
	Type         string      `json:"type"`
	Seq          uint64      `json:"seq"` // contador de mutações do engine
	RoundID      uint64      `json:"round_id,omitempty"`
	User         string      `json:"user,omitempty"`
	Side         string      `json:"side,omitempty"`   // "UP" | "DOWN" em bet_placed
	Amount       uint64      `json:"amount,omitempty"` // stake, aporte ou prêmio
	Payout       uint64      `json:"payout,omitempty"` // payout projetado (bet_placed) ou pago (winnings_claimed)
	UserUp       uint64      `json:"user_up,omitempty"`
	UserDown     uint64      `json:"user_down,omitempty"`
	HouseBalance uint64      `json:"house_balance"`
	Round        *RoundState `json:"round,omitempty"`
	TsUnixMs     int64       `json:"ts_unix_ms"`
}
