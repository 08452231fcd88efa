package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ConnectionEstablished increments the connect counter.
func (m *Metrics) ConnectionEstablished() {
	m.connects.Inc()
}

// ConnectionLost increments the disconnect counter.
func (m *Metrics) ConnectionLost() {
	m.disconnects.Inc()
}

// ConnectionReestablished increments the reconnect counter.
func (m *Metrics) ConnectionReestablished() {
	m.reconnects.Inc()
}

// CallbackRegistered counts a handler registration for a routing key.
func (m *Metrics) CallbackRegistered(routingKey string) {
	m.callbacksRegistered.WithLabelValues(routingKey).Inc()
}

// RouteBound counts a routing key bound to a handler's queue.
func (m *Metrics) RouteBound(function string) {
	m.routesBound.WithLabelValues(function).Inc()
}

// MessageReceived counts a delivery and stamps the last-received gauge.
func (m *Metrics) MessageReceived(routingKey string) {
	m.received.WithLabelValues(routingKey).Inc()
	m.lastReceived.SetToCurrentTime()
}

// MessageAcked counts an acknowledged message.
func (m *Metrics) MessageAcked(routingKey string) {
	m.acked.WithLabelValues(routingKey).Inc()
}

// MessageNacked counts a negatively acknowledged message.
func (m *Metrics) MessageNacked(routingKey string, requeued bool) {
	m.nacked.WithLabelValues(routingKey, strconv.FormatBool(requeued)).Inc()
}

// MessageDropped counts an unroutable message that was acknowledged and
// discarded.
func (m *Metrics) MessageDropped(routingKey string) {
	m.dropped.WithLabelValues(routingKey).Inc()
}

// ParseFailed counts a payload that could not be decoded.
func (m *Metrics) ParseFailed(routingKey string) {
	m.parseFailures.WithLabelValues(routingKey).Inc()
}

// HandlerStarted marks a handler invocation as in progress.
func (m *Metrics) HandlerStarted(routingKey, function string) {
	m.inProgress.WithLabelValues(routingKey, function).Inc()
}

// HandlerFinished records the invocation duration and outcome and marks
// it no longer in progress.
func (m *Metrics) HandlerFinished(routingKey, function string, duration time.Duration, err error) {
	m.inProgress.WithLabelValues(routingKey, function).Dec()
	m.processingSeconds.WithLabelValues(routingKey, function).Observe(duration.Seconds())
	if err != nil {
		m.handlerFailures.WithLabelValues(routingKey, function).Inc()
	}
}

// PublishSucceeded counts a confirmed publish.
func (m *Metrics) PublishSucceeded(routingKey string) {
	m.publishes.WithLabelValues(routingKey, "success").Inc()
}

// PublishFailed counts a failed publish attempt.
func (m *Metrics) PublishFailed(routingKey string) {
	m.publishes.WithLabelValues(routingKey, "failure").Inc()
}

// QueueBacklog sets the sampled backlog depth for a queue.
func (m *Metrics) QueueBacklog(queue string, messages int) {
	m.backlog.WithLabelValues(queue).Set(float64(messages))
}

// createCounterVec defines a new CounterVec with standard options.
func createCounterVec(name, help string, labels []string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: name,
			Help: help,
		},
		labels,
	)
}

// createHistogramVec defines a new HistogramVec with configurable buckets.
func createHistogramVec(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    name,
			Help:    help,
			Buckets: buckets,
		},
		labels,
	)
}

// createGaugeVec defines a new GaugeVec with standard options.
func createGaugeVec(name, help string, labels []string) *prometheus.GaugeVec {
	return prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: name,
			Help: help,
		},
		labels,
	)
}
