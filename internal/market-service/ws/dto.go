package ws

import "github.com/radieske/updown-market-poc/pkg/contracts/events"

// ClientMsg é uma mensagem recebida do cliente WebSocket.
// Type: subscribe | unsubscribe | ping. RoundID 0 assina todas as rodadas.
type ClientMsg struct {
	Type    string `json:"type"`
	RoundID uint64 `json:"roundId"`
}

// RoundUpdate é o que o cliente recebe a cada mutação numa rodada assinada.
type RoundUpdate struct {
	RoundID uint64             `json:"roundId"`
	Event   events.MarketEvent `json:"event"`
}
