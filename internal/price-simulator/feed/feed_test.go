package feed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/radieske/updown-market-poc/pkg/contracts/events"
)

func TestWalk_Next(t *testing.T) {
	w := NewWalk("BTCUSD", "price-simulator", 100000, 0.001, 0.05, 42)
	now := time.UnixMilli(1_750_000_000_000)

	prev := w.Price()
	for i := 1; i <= 500; i++ {
		u := w.Next(now.Add(time.Duration(i) * time.Second))
		if u.Version != i {
			t.Fatalf("tick %d: version = %d", i, u.Version)
		}
		if u.Price <= 0 {
			t.Fatalf("tick %d: price = %v", i, u.Price)
		}
		if u.Symbol != "BTCUSD" || u.Source != "price-simulator" {
			t.Fatalf("tick %d: symbol/source = %s/%s", i, u.Symbol, u.Source)
		}
		if u.TsUnixMs != now.Add(time.Duration(i)*time.Second).UnixMilli() {
			t.Fatalf("tick %d: ts = %d", i, u.TsUnixMs)
		}
		// o maior salto possível é 30 desvios mais a parte normal
		if r := u.Price / prev; r > 1.1 || r < 0.9 {
			t.Fatalf("tick %d: move %v -> %v too large", i, prev, u.Price)
		}
		prev = u.Price
	}
}

func TestWalk_Deterministic(t *testing.T) {
	a := NewWalk("X", "s", 50, 0.01, 0.1, 7)
	b := NewWalk("X", "s", 50, 0.01, 0.1, 7)
	now := time.Now()
	for i := 0; i < 20; i++ {
		if pa, pb := a.Next(now).Price, b.Next(now).Price; pa != pb {
			t.Fatalf("tick %d: %v != %v with the same seed", i, pa, pb)
		}
	}
}

func TestWalk_FloorsAtOneCent(t *testing.T) {
	w := NewWalk("X", "s", 0.01, 5, 0, 1)
	for i := 0; i < 100; i++ {
		if p := w.Next(time.Now()).Price; p < 0.01 {
			t.Fatalf("price %v below floor", p)
		}
	}
}

func TestHub_Broadcast(t *testing.T) {
	h := NewHub(zap.NewNop())
	srv := httptest.NewServer(http.HandlerFunc(h.HandleWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.Clients() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	h.Broadcast(events.PriceUpdate{Symbol: "BTCUSD", Price: 1, Version: 3})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var got events.PriceUpdate
	if err := json.Unmarshal(msg, &got); err != nil || got.Version != 3 {
		t.Errorf("got %+v (%v), want version 3", got, err)
	}
}
