package market

import (
	"fmt"
	"sort"
)

// HouseAccount é a liquidez que garante os pagamentos.
type HouseAccount struct {
	Balance          uint64
	HouseEdge        float64
	VirtualLiquidity uint64
	MinBet           uint64
}

// Store guarda todo o estado persistente do mercado. Não é seguro para uso
// concorrente; o Engine serializa o acesso.
type Store struct {
	rounds       map[uint64]*Round
	bets         map[BetKey]*UserBet
	claims       map[BetKey]bool
	house        HouseAccount
	roundCounter uint64
	seq          uint64
}

func NewStore(house HouseAccount) *Store {
	return &Store{
		rounds: make(map[uint64]*Round),
		bets:   make(map[BetKey]*UserBet),
		claims: make(map[BetKey]bool),
		house:  house,
	}
}

func (s *Store) round(id uint64) (*Round, bool) {
	r, ok := s.rounds[id]
	return r, ok
}

// latest retorna a rodada mais recente; só ela pode estar ativa.
func (s *Store) latest() (*Round, bool) {
	if s.roundCounter == 0 {
		return nil, false
	}
	return s.round(s.roundCounter)
}

func (s *Store) bet(k BetKey) UserBet {
	if b, ok := s.bets[k]; ok {
		return *b
	}
	return UserBet{}
}

// BetEntry é uma linha do snapshot do ledger.
type BetEntry struct {
	RoundID    uint64 `json:"round_id"`
	User       string `json:"user"`
	UpAmount   uint64 `json:"up_amount"`
	DownAmount uint64 `json:"down_amount"`
}

// State é o snapshot serializável do Store.
type State struct {
	Seq          uint64     `json:"seq"`
	RoundCounter uint64     `json:"round_counter"`
	HouseBalance uint64     `json:"house_balance"`
	Rounds       []Round    `json:"rounds"`
	Bets         []BetEntry `json:"bets"`
	Claims       []BetKey   `json:"claims"`
}

// Snapshot copia o estado em ordem determinística.
func (s *Store) Snapshot() State {
	st := State{
		Seq:          s.seq,
		RoundCounter: s.roundCounter,
		HouseBalance: s.house.Balance,
		Rounds:       make([]Round, 0, len(s.rounds)),
		Bets:         make([]BetEntry, 0, len(s.bets)),
		Claims:       make([]BetKey, 0, len(s.claims)),
	}
	for _, r := range s.rounds {
		st.Rounds = append(st.Rounds, *r)
	}
	sort.Slice(st.Rounds, func(i, j int) bool { return st.Rounds[i].ID < st.Rounds[j].ID })

	for k, b := range s.bets {
		st.Bets = append(st.Bets, BetEntry{RoundID: k.RoundID, User: k.User, UpAmount: b.UpAmount, DownAmount: b.DownAmount})
	}
	sort.Slice(st.Bets, func(i, j int) bool {
		if st.Bets[i].RoundID != st.Bets[j].RoundID {
			return st.Bets[i].RoundID < st.Bets[j].RoundID
		}
		return st.Bets[i].User < st.Bets[j].User
	})

	for k := range s.claims {
		st.Claims = append(st.Claims, k)
	}
	sort.Slice(st.Claims, func(i, j int) bool {
		if st.Claims[i].RoundID != st.Claims[j].RoundID {
			return st.Claims[i].RoundID < st.Claims[j].RoundID
		}
		return st.Claims[i].User < st.Claims[j].User
	})
	return st
}

// Restore substitui o conteúdo do Store pelo snapshot. Os parâmetros da casa
// (edge, liquidez virtual, aposta mínima) continuam vindo da configuração.
func (s *Store) Restore(st State) error {
	rounds := make(map[uint64]*Round, len(st.Rounds))
	for i := range st.Rounds {
		r := st.Rounds[i]
		if r.ID == 0 || r.ID > st.RoundCounter {
			return fmt.Errorf("snapshot: round %d outside counter %d", r.ID, st.RoundCounter)
		}
		if !(r.StartTime < r.BettingEndTime && r.BettingEndTime < r.SettlementTime) {
			return fmt.Errorf("snapshot: round %d has inconsistent timing", r.ID)
		}
		rounds[r.ID] = &r
	}
	bets := make(map[BetKey]*UserBet, len(st.Bets))
	sums := make(map[uint64]Pools, len(rounds))
	for _, b := range st.Bets {
		if _, ok := rounds[b.RoundID]; !ok {
			return fmt.Errorf("snapshot: bet references unknown round %d", b.RoundID)
		}
		k := BetKey{RoundID: b.RoundID, User: b.User}
		if _, dup := bets[k]; dup {
			return fmt.Errorf("snapshot: duplicate bet for round %d user %q", b.RoundID, b.User)
		}
		bets[k] = &UserBet{UpAmount: b.UpAmount, DownAmount: b.DownAmount}

		p := sums[b.RoundID]
		up, okUp := addU64(p.Up, b.UpAmount)
		down, okDown := addU64(p.Down, b.DownAmount)
		if !okUp || !okDown {
			return fmt.Errorf("snapshot: bets of round %d overflow", b.RoundID)
		}
		sums[b.RoundID] = Pools{Up: up, Down: down}
	}
	// os totais da rodada precisam bater com o ledger, senão o pro-rata paga
	// mais (ou menos) do que foi apostado
	for id, r := range rounds {
		if got := sums[id]; got.Up != r.TotalUpBets || got.Down != r.TotalDownBets {
			return fmt.Errorf("snapshot: round %d totals %d/%d do not match bets %d/%d",
				id, r.TotalUpBets, r.TotalDownBets, got.Up, got.Down)
		}
	}

	claims := make(map[BetKey]bool, len(st.Claims))
	for _, k := range st.Claims {
		r, ok := rounds[k.RoundID]
		if !ok {
			return fmt.Errorf("snapshot: claim references unknown round %d", k.RoundID)
		}
		if r.Status != StatusSettled {
			return fmt.Errorf("snapshot: claim on unsettled round %d", k.RoundID)
		}
		if _, ok := bets[k]; !ok {
			return fmt.Errorf("snapshot: claim without position for round %d user %q", k.RoundID, k.User)
		}
		claims[k] = true
	}

	s.rounds, s.bets, s.claims = rounds, bets, claims
	s.roundCounter = st.RoundCounter
	s.seq = st.Seq
	s.house.Balance = st.HouseBalance
	return nil
}

func addU64(a, b uint64) (uint64, bool) {
	c := a + b
	return c, c >= a
}
