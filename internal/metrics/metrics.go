package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "footy"

type Metrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec

	OrdersCreated      prometheus.Counter
	OrderFailures      *prometheus.CounterVec
	OrderTxRetries     prometheus.Counter
	CartConflicts      prometheus.Counter
	CartRetriesExhaust prometheus.Counter
	CartClearFailures  prometheus.Counter
}

// New registers all collectors on reg. Tests pass prometheus.NewRegistry().
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"route", "status"}),
		LatencyMS: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_ms",
			Help:      "HTTP request latency in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		}, []string{"route"}),
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "order",
			Name:      "created_total",
			Help:      "Orders committed.",
		}),
		OrderFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "order",
			Name:      "create_failures_total",
			Help:      "Failed order creations by reason.",
		}, []string{"reason"}),
		OrderTxRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "order",
			Name:      "tx_retries_total",
			Help:      "Serializable transaction restarts.",
		}),
		CartConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cart",
			Name:      "cas_conflicts_total",
			Help:      "Cart writes aborted because the key changed after WATCH.",
		}),
		CartRetriesExhaust: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cart",
			Name:      "cas_exhausted_total",
			Help:      "Cart updates that gave up after the maximum attempts.",
		}),
		CartClearFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cart",
			Name:      "clear_failures_total",
			Help:      "Post-checkout cart clears that failed.",
		}),
	}

	reg.MustRegister(
		m.Requests,
		m.LatencyMS,
		m.OrdersCreated,
		m.OrderFailures,
		m.OrderTxRetries,
		m.CartConflicts,
		m.CartRetriesExhaust,
		m.CartClearFailures,
	)

	return m
}

func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
