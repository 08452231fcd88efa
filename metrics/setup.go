package metrics

import (
	"encoding/json"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthReporter reports whether the observed system is alive and well.
// The AMQP system implements it from its connection lifecycle state.
type HealthReporter interface {
	Healthy() bool
}

// Metrics encapsulates the Prometheus registry and the HTTP server
// responsible for exposing the AMQP metrics.
//
// Each service maintains its own isolated registry to prevent metric
// name collisions when several systems run in one process.
type Metrics struct {
	// Server is the HTTP server exposing /metrics and /healthz.
	Server *http.Server

	// Registry is the Prometheus registry all metrics are registered in.
	Registry *prometheus.Registry

	health HealthReporter

	// Connection lifecycle.
	connects    prometheus.Counter
	disconnects prometheus.Counter
	reconnects  prometheus.Counter

	// Registration.
	callbacksRegistered *prometheus.CounterVec
	routesBound         *prometheus.CounterVec

	// Consuming.
	received          *prometheus.CounterVec
	acked             *prometheus.CounterVec
	nacked            *prometheus.CounterVec
	dropped           *prometheus.CounterVec
	parseFailures     *prometheus.CounterVec
	handlerFailures   *prometheus.CounterVec
	processingSeconds *prometheus.HistogramVec
	inProgress        *prometheus.GaugeVec
	lastReceived      prometheus.Gauge
	backlog           *prometheus.GaugeVec

	// Publishing.
	publishes *prometheus.CounterVec
}

// New initializes a Metrics instance: a dedicated registry, the full
// AMQP metric set wrapped with a constant service label, optional
// default collectors, and an HTTP server exposing /metrics and
// /healthz.
func New(cfg Config) *Metrics {
	registry := prometheus.NewRegistry()

	// All metrics emitted by this instance automatically carry
	// service="<cfg.ServiceName>".
	wrapped := prometheus.WrapRegistererWith(
		prometheus.Labels{"service": cfg.ServiceName},
		registry,
	)

	m := &Metrics{
		Registry: registry,

		connects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "amqp_connects_total",
			Help: "Number of times a broker connection was established",
		}),
		disconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "amqp_disconnects_total",
			Help: "Number of times the broker connection was lost or closed",
		}),
		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "amqp_reconnects_total",
			Help: "Number of times the broker connection was reestablished",
		}),

		callbacksRegistered: createCounterVec(
			"amqp_callbacks_registered_total",
			"Number of callbacks registered",
			[]string{"routing_key"},
		),
		routesBound: createCounterVec(
			"amqp_routes_bound_total",
			"Number of routing keys bound to queues",
			[]string{"function"},
		),

		received: createCounterVec(
			"amqp_messages_received_total",
			"Number of messages delivered by the broker",
			[]string{"routing_key"},
		),
		acked: createCounterVec(
			"amqp_messages_acked_total",
			"Number of messages acknowledged",
			[]string{"routing_key"},
		),
		nacked: createCounterVec(
			"amqp_messages_nacked_total",
			"Number of messages negatively acknowledged",
			[]string{"routing_key", "requeued"},
		),
		dropped: createCounterVec(
			"amqp_messages_dropped_total",
			"Number of messages acknowledged and dropped because no handler matched",
			[]string{"routing_key"},
		),
		parseFailures: createCounterVec(
			"amqp_exceptions_parse_total",
			"Number of payloads that could not be decoded",
			[]string{"routing_key"},
		),
		handlerFailures: createCounterVec(
			"amqp_exceptions_callback_total",
			"Number of handler invocations that returned an error",
			[]string{"routing_key", "function"},
		),
		processingSeconds: createHistogramVec(
			"amqp_processing_seconds",
			"Time spent running handlers",
			[]string{"routing_key", "function"},
			prometheus.DefBuckets,
		),
		inProgress: createGaugeVec(
			"amqp_inprogress",
			"Number of handlers currently running",
			[]string{"routing_key", "function"},
		),
		lastReceived: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "amqp_last_on_message",
			Help: "Unix timestamp of the last received message",
		}),
		backlog: createGaugeVec(
			"amqp_backlog",
			"Number of messages waiting in the queue backlog",
			[]string{"queue"},
		),

		publishes: createCounterVec(
			"amqp_publishes_total",
			"Number of publish attempts by outcome",
			[]string{"routing_key", "status"},
		),
	}

	wrapped.MustRegister(
		m.connects,
		m.disconnects,
		m.reconnects,
		m.callbacksRegistered,
		m.routesBound,
		m.received,
		m.acked,
		m.nacked,
		m.dropped,
		m.parseFailures,
		m.handlerFailures,
		m.processingSeconds,
		m.inProgress,
		m.lastReceived,
		m.backlog,
		m.publishes,
	)

	if cfg.EnableDefaultCollectors {
		wrapped.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			collectors.NewBuildInfoCollector(),
		)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", m.handleHealthz)

	m.Server = &http.Server{
		Addr:    cfg.Address,
		Handler: mux,
	}
	return m
}

// SetHealthReporter wires the /healthz endpoint to a liveness source,
// typically the AMQP system. Without a reporter the endpoint returns
// 503, since nothing can vouch for the connection.
func (m *Metrics) SetHealthReporter(r HealthReporter) {
	m.health = r
}

func (m *Metrics) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	healthy := m.health != nil && m.health.Healthy()

	w.Header().Set("Content-Type", "application/json")
	if !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(map[string]bool{"healthy": healthy})
}
