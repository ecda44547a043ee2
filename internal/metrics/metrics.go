package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracks code exchanges against the Bling token endpoint.
	CodeExchangesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bling_code_exchanges_total",
			Help: "Total number of authorization-code exchanges (by account and result).",
		},
		[]string{"account", "result"}, // result = "ok" | "error"
	)

	// Tracks refresh-token calls against the Bling token endpoint.
	TokenRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bling_token_refreshes_total",
			Help: "Total number of refresh-token calls (by account and result).",
		},
		[]string{"account", "result"}, // result = "ok" | "rate_limited" | "error"
	)

	// Counts normalized order records returned to callers.
	OrdersFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bling_orders_fetched_total",
			Help: "Total number of order records fetched and normalized.",
		},
		[]string{"account"},
	)

	// Tracks result-cache hits and misses for fetched order sets.
	ResultCacheAccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "result_cache_access_total",
			Help: "Number of hits/misses in the fetched-orders cache.",
		},
		[]string{"result"}, // hit | miss
	)

	// Tracks adapter-level errors by component.
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapter_errors_total",
			Help: "Count of adapter-level errors by component.",
		},
		[]string{"component", "reason"},
	)

	// Gauges the last successful order fetch (seconds since epoch).
	LastFetchTimestamp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "adapter_last_fetch_timestamp",
			Help: "Timestamp (unix seconds) of the last successful order fetch.",
		},
		[]string{"account"},
	)
)

func IncCodeExchange(account, result string) {
	CodeExchangesTotal.WithLabelValues(account, result).Inc()
}

func IncTokenRefresh(account, result string) {
	TokenRefreshesTotal.WithLabelValues(account, result).Inc()
}

func AddOrdersFetched(account string, n int) {
	OrdersFetchedTotal.WithLabelValues(account).Add(float64(n))
}

func IncCacheAccess(result string) {
	ResultCacheAccess.WithLabelValues(result).Inc()
}

func IncError(component, reason string) {
	ErrorsTotal.WithLabelValues(component, reason).Inc()
}

func SetLastFetch(account string, t time.Time) {
	LastFetchTimestamp.WithLabelValues(account).Set(float64(t.Unix()))
}
