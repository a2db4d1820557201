package oracle

import (
	"context"
	"sync"
)

// StaticFeed devolve o último preço definido via Set. Usado em testes e
// no modo local sem pipeline de preços.
type StaticFeed struct {
	mu    sync.RWMutex
	quote Quote
	set   bool
}

func NewStaticFeed(price float64, ts uint64) *StaticFeed {
	f := &StaticFeed{}
	f.Set(price, ts)
	return f
}

func (f *StaticFeed) Set(price float64, ts uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quote = Quote{Price: price, Timestamp: ts}
	f.set = true
}

func (f *StaticFeed) CurrentPrice(_ context.Context) (Quote, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if !f.set {
		return Quote{}, ErrNoPrice
	}
	return f.quote, nil
}
