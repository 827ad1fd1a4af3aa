// Package metrics exposes the server's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "novakeeper"

// Metrics owns a registry so tests and multiple servers do not collide on
// the global one.
type Metrics struct {
	Registry *prometheus.Registry

	httpInFlight prometheus.Gauge
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	accountsCreated *prometheus.CounterVec
	keysEscrowed    prometheus.Counter
	keysRetrieved   prometheus.Counter
	fundingSessions prometheus.Counter
	faucetTransfers *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		httpInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "route"}),
		accountsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "registry",
			Name:      "account_creations_total",
			Help:      "Account creation attempts by result.",
		}, []string{"result"}),
		keysEscrowed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "custody",
			Name:      "keys_escrowed_total",
			Help:      "Keys sealed into escrow.",
		}),
		keysRetrieved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "custody",
			Name:      "keys_retrieved_total",
			Help:      "Keys released from escrow.",
		}),
		fundingSessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "funding",
			Name:      "sessions_total",
			Help:      "Hosted on-ramp sessions opened.",
		}),
		faucetTransfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "funding",
			Name:      "faucet_requests_total",
			Help:      "Faucet requests by result.",
		}, []string{"result"}),
	}

	m.Registry = prometheus.NewRegistry()
	m.Registry.MustRegister(
		m.httpInFlight,
		m.httpRequests,
		m.httpDuration,
		m.accountsCreated,
		m.keysEscrowed,
		m.keysRetrieved,
		m.fundingSessions,
		m.faucetTransfers,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one finished request. route is the matched route
// pattern, not the raw path.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) InFlight(delta float64) { m.httpInFlight.Add(delta) }

// AccountCreation counts a create attempt; result is "ok" or an error class.
func (m *Metrics) AccountCreation(result string) { m.accountsCreated.WithLabelValues(result).Inc() }

func (m *Metrics) KeyEscrowed()   { m.keysEscrowed.Inc() }
func (m *Metrics) KeyRetrieved()  { m.keysRetrieved.Inc() }
func (m *Metrics) SessionOpened() { m.fundingSessions.Inc() }

// FaucetRequest counts a faucet call; result is "ok" or an error class.
func (m *Metrics) FaucetRequest(result string) { m.faucetTransfers.WithLabelValues(result).Inc() }
