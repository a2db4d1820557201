package httpapi

import "github.com/prometheus/client_golang/prometheus"

// Metrics agrupa os coletores do market-service.
type Metrics struct {
	Calls        *prometheus.CounterVec
	CallDuration *prometheus.HistogramVec
	PayoutErrors prometheus.Counter

	PendingOps      *prometheus.CounterVec
	PendingResolved *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "market_calls_total",
			Help: "chamadas ao contrato por operação e resultado",
		}, []string{"op", "code"}),
		CallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "market_call_duration_seconds",
			Help:    "latência das chamadas ao contrato",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		PayoutErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "market_payout_credit_errors_total",
			Help: "prêmios aceitos pelo contrato que não foram creditados na wallet",
		}),
		PendingOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "market_wallet_pending_ops_total",
			Help: "operações de wallet gravadas como pendentes",
		}, []string{"kind"}),
		PendingResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "market_wallet_pending_resolved_total",
			Help: "operações pendentes confirmadas pela wallet",
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.Calls, m.CallDuration, m.PayoutErrors, m.PendingOps, m.PendingResolved)
	}
	return m
}
