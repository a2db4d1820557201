// Package market implementa o motor de liquidação do mercado UP/DOWN:
// ciclo de vida das rodadas, odds do AMM, ledger de apostas, conta da casa
// e resgates. Todas as chamadas do Engine são seções críticas atômicas:
// validam tudo antes de escrever e, se falham, não deixam rastro no estado.
package market

import (
	"fmt"
	"time"
)

// Status do ciclo de vida de uma rodada.
type Status uint8

const (
	StatusActive  Status = 0
	StatusSettled Status = 1
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "ACTIVE"
	case StatusSettled:
		return "SETTLED"
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "ACTIVE":
		*s = StatusActive
	case "SETTLED":
		*s = StatusSettled
	default:
		return fmt.Errorf("unknown round status %q", b)
	}
	return nil
}

// Side é o lado apostado.
type Side string

const (
	SideUp   Side = "UP"
	SideDown Side = "DOWN"
)

func SideOf(up bool) Side {
	if up {
		return SideUp
	}
	return SideDown
}

// Round é uma época de apostas. Timestamps em ms.
type Round struct {
	ID              uint64  `json:"round_id"`
	StartTime       uint64  `json:"start_time"`
	BettingEndTime  uint64  `json:"betting_end_time"`
	SettlementTime  uint64  `json:"settlement_time"`
	StartPrice      float64 `json:"start_price"`
	EndPrice        float64 `json:"end_price"`
	TotalUpBets     uint64  `json:"total_up_bets"`
	TotalDownBets   uint64  `json:"total_down_bets"`
	Status          Status  `json:"status"`
	UpWins          bool    `json:"up_wins"`
	StartPriceStale bool    `json:"start_price_stale"`
	EndPriceStale   bool    `json:"end_price_stale"`
}

// Pools retorna os totais reais apostados em cada lado.
func (r Round) Pools() Pools { return Pools{Up: r.TotalUpBets, Down: r.TotalDownBets} }

// WinningPool é o total do lado vencedor; só faz sentido após a liquidação.
func (r Round) WinningPool() uint64 {
	if r.UpWins {
		return r.TotalUpBets
	}
	return r.TotalDownBets
}

// BetKey identifica a posição de um usuário numa rodada.
type BetKey struct {
	RoundID uint64 `json:"round_id"`
	User    string `json:"user"`
}

// UserBet é o stake acumulado do usuário em cada lado.
type UserBet struct {
	UpAmount   uint64 `json:"up_amount"`
	DownAmount uint64 `json:"down_amount"`
}

// Stake retorna o valor apostado no lado indicado.
func (b UserBet) Stake(up bool) uint64 {
	if up {
		return b.UpAmount
	}
	return b.DownAmount
}

// HouseStatus é a visão pública da conta da casa.
type HouseStatus struct {
	Balance          uint64
	RoundCounter     uint64
	HouseEdge        float64
	MinBet           uint64
	RoundDuration    uint64 // ms
	BettingWindow    uint64 // ms
	VirtualLiquidity uint64
}

// Receipt descreve o efeito de uma chamada que alterou o estado.
type Receipt struct {
	Seq          uint64
	Round        Round
	User         string
	Bet          UserBet
	Amount       uint64 // stake aceito ou aporte
	Payout       uint64 // payout projetado (aposta) ou pago (resgate)
	HouseBalance uint64
}

// Params são as constantes de configuração do mercado.
type Params struct {
	HouseEdge        float64
	VirtualLiquidity uint64
	MinBet           uint64
	BettingWindow    time.Duration
	RoundDuration    time.Duration
	Owner            string // quem pode aportar na casa quando OpenFunding=false
	OpenFunding      bool
	BlockOnStale     bool // rejeita criação/liquidação com preço velho
}

// Validate garante que a configuração mantém as invariantes das rodadas e
// do AMM.
func (p Params) Validate() error {
	if p.HouseEdge < 0 || p.HouseEdge >= 1 {
		return fmt.Errorf("house edge must be in [0, 1), got %v", p.HouseEdge)
	}
	if p.VirtualLiquidity == 0 {
		return fmt.Errorf("virtual liquidity must be positive")
	}
	if p.MinBet == 0 {
		return fmt.Errorf("min bet must be positive")
	}
	if p.BettingWindow < time.Millisecond {
		return fmt.Errorf("betting window must be at least 1ms, got %s", p.BettingWindow)
	}
	if p.BettingWindow >= p.RoundDuration {
		return fmt.Errorf("betting window (%s) must be shorter than round duration (%s)", p.BettingWindow, p.RoundDuration)
	}
	if !p.OpenFunding && p.Owner == "" {
		return fmt.Errorf("owner is required when funding is not open")
	}
	return nil
}
