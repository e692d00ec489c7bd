package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the prometheus collectors for purchase and refresh
// activity. A single instance is wired through the services.
type Metrics struct {
	Purchases      *prometheus.CounterVec
	SubmitAttempts prometheus.Counter
	Redemptions    *prometheus.CounterVec
	Refreshes      *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Purchases: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loyalty",
			Name:      "purchases_total",
			Help:      "Purchase attempts by outcome.",
		}, []string{"outcome"}),
		SubmitAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "loyalty",
			Name:      "submit_attempts_total",
			Help:      "Transaction submission attempts, including retries.",
		}),
		Redemptions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loyalty",
			Name:      "redemptions_total",
			Help:      "Reward redemption attempts by outcome.",
		}, []string{"outcome"}),
		Refreshes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "loyalty",
			Name:      "history_refreshes_total",
			Help:      "Transaction history refreshes by outcome.",
		}, []string{"outcome"}),
	}
}
