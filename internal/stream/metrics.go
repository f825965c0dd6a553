package stream

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the broadcaster.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ConnectionsActive prometheus.Gauge
	ConnectionsTotal  prometheus.Counter
	MessagesSent      *prometheus.CounterVec // labels: channel
	DeliveryFailures  prometheus.Counter
	MalformedMessages prometheus.Counter
	LivenessDrops     prometheus.Counter
	RelayMessages     prometheus.Counter
	RelayReconnects   prometheus.Counter
}

// NewMetrics creates the broadcaster collectors and registers them with reg.
// A nil registerer leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pattern_trader_ws_connections_active",
			Help: "Currently registered WebSocket connections",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pattern_trader_ws_connections_total",
			Help: "Total WebSocket connections accepted",
		}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pattern_trader_ws_messages_sent_total",
			Help: "Envelopes enqueued to subscribers",
		}, []string{"channel"}),
		DeliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pattern_trader_ws_delivery_failures_total",
			Help: "Connections dropped because a send failed or the queue was full",
		}),
		MalformedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pattern_trader_ws_malformed_messages_total",
			Help: "Client control messages that could not be parsed",
		}),
		LivenessDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pattern_trader_ws_liveness_drops_total",
			Help: "Connections dropped for not answering a liveness probe",
		}),
		RelayMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pattern_trader_relay_messages_total",
			Help: "Messages relayed from Redis Pub/Sub",
		}),
		RelayReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pattern_trader_relay_reconnects_total",
			Help: "Redis Pub/Sub resubscribe attempts",
		}),
	}

	if reg != nil {
		reg.MustRegister(
			m.ConnectionsActive,
			m.ConnectionsTotal,
			m.MessagesSent,
			m.DeliveryFailures,
			m.MalformedMessages,
			m.LivenessDrops,
			m.RelayMessages,
			m.RelayReconnects,
		)
	}
	return m
}

func (m *Metrics) connOpened() {
	if m == nil {
		return
	}
	m.ConnectionsTotal.Inc()
	m.ConnectionsActive.Inc()
}

func (m *Metrics) connClosed() {
	if m == nil {
		return
	}
	m.ConnectionsActive.Dec()
}

func (m *Metrics) sent(channel string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.MessagesSent.WithLabelValues(channel).Add(float64(n))
}

func (m *Metrics) deliveryFailure() {
	if m == nil {
		return
	}
	m.DeliveryFailures.Inc()
}

func (m *Metrics) malformed() {
	if m == nil {
		return
	}
	m.MalformedMessages.Inc()
}

func (m *Metrics) livenessDrop() {
	if m == nil {
		return
	}
	m.LivenessDrops.Inc()
}

func (m *Metrics) relayed() {
	if m == nil {
		return
	}
	m.RelayMessages.Inc()
}

func (m *Metrics) relayReconnect() {
	if m == nil {
		return
	}
	m.RelayReconnects.Inc()
}
