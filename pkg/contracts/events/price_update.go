package events

// Evento publicado no tópico "price_updates"
type PriceUpdate struct {
	Symbol   string  `json:"symbol"` // ex: "BTCUSD"
	Price    float64 `json:"price"`
	TsUnixMs int64   `json:"ts_unix_ms"` // instante da observação no fornecedor
	Source   string  `json:"source"`     // "price-simulator"
	Version  int     `json:"version"`    // incrementado a cada tick
}
