package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const metricsNamespace = "crm_gateway"

var latencyBuckets = []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30}

// Metrics owns a private Prometheus registry. A nil *Metrics accepts every call and records nothing.
type Metrics struct {
	reg *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	customerAttempts  *prometheus.CounterVec
	customerExhausted prometheus.Counter
	orderFetches      *prometheus.CounterVec
	orderLatency      *prometheus.HistogramVec
	ordersDropped     prometheus.Counter
	recordsEmitted    prometheus.Counter
}

func Enabled() bool {
	return parseBoolEnv("METRICS_ENABLED", false)
}

// Init returns nil unless METRICS_ENABLED is set.
func Init() *Metrics {
	if !Enabled() {
		return nil
	}
	return NewMetrics()
}

func NewMetrics() *Metrics {
	apiLabels := []string{"method", "route", "status"}
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		apiRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests by method/route/status.",
			},
			apiLabels,
		),
		apiLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency in seconds by method/route/status.",
				Buckets:   latencyBuckets,
			},
			apiLabels,
		),
		apiInflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "In-flight HTTP requests.",
		}),
		customerAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "customer_fetch_attempts_total",
				Help:      "Customer fetch attempts by outcome.",
			},
			[]string{"outcome"},
		),
		customerExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "customer_fetch_exhausted_total",
			Help:      "Customer fetches that gave up and yielded no customers.",
		}),
		orderFetches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "order_fetches_total",
				Help:      "Order fetches by outcome.",
			},
			[]string{"outcome"},
		),
		orderLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "order_fetch_duration_seconds",
				Help:      "Order fetch latency in seconds by outcome.",
				Buckets:   latencyBuckets,
			},
			[]string{"outcome"},
		),
		ordersDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "orders_dropped_total",
			Help:      "Orders dropped because they belong to another customer.",
		}),
		recordsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "records_emitted_total",
			Help:      "Customer order records emitted.",
		}),
	}
	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.apiRequests,
		m.apiLatency,
		m.apiInflight,
		m.customerAttempts,
		m.customerExhausted,
		m.orderFetches,
		m.orderLatency,
		m.ordersDropped,
		m.recordsEmitted,
	)
	return m
}

// Registry is what /metrics serves. Nil when metrics are disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
}

func (m *Metrics) APIInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) APIInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) IncCustomerAttempt(outcome string) {
	if m == nil {
		return
	}
	m.customerAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncCustomerExhausted() {
	if m == nil {
		return
	}
	m.customerExhausted.Inc()
}

func (m *Metrics) ObserveOrderFetch(outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.orderFetches.WithLabelValues(outcome).Inc()
	m.orderLatency.WithLabelValues(outcome).Observe(dur.Seconds())
}

func (m *Metrics) IncOrderDropped() {
	if m == nil {
		return
	}
	m.ordersDropped.Inc()
}

func (m *Metrics) IncRecordEmitted() {
	if m == nil {
		return
	}
	m.recordsEmitted.Inc()
}
