package topics

const (
	// Preços
	PriceUpdates = "price_updates"

	// Mercado
	MarketEvents = "market_events"

	// DLQs
	MarketEventsDLQ = "market_events_dlq"
)
