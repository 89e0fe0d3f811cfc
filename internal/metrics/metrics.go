package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Token directory
	TokenResolutions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intents_token_resolutions_total",
			Help: "Token resolutions by the source that answered",
		},
		[]string{"source"},
	)

	TokenListFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intents_token_list_fetches_total",
			Help: "Token list fetches by outcome",
		},
		[]string{"result"},
	)

	TokenCacheInvalidations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "intents_token_cache_invalidations_total",
		Help: "Wholesale invalidations of the in-memory token cache",
	})

	// Chain context
	ChainSwitches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intents_chain_switches_total",
			Help: "Wallet network switch requests by outcome",
		},
		[]string{"result"},
	)

	// Quotes
	QuoteRegistrations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intents_quote_registrations_total",
			Help: "Quote registrations by whether they became authoritative",
		},
		[]string{"result"},
	)

	QuoteRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intents_quote_refreshes_total",
			Help: "Scheduled quote refreshes by outcome",
		},
		[]string{"result"},
	)

	ActiveQuoteSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "intents_quote_sessions_active",
		Help: "Quote sessions with a live refresh task",
	})

	// Orders
	OrderTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intents_order_transitions_total",
			Help: "Order state machine transitions by target state",
		},
		[]string{"state"},
	)

	OrderOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "intents_order_outcomes_total",
			Help: "Terminal order outcomes by status and error kind",
		},
		[]string{"status", "kind"},
	)

	OrderDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "intents_order_duration_seconds",
			Help:    "Wall time from confirmation to terminal state",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
		},
		[]string{"kind"},
	)
)

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}
