package realtime

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks relay load.
type Metrics struct {
	connections prometheus.Gauge
	relayed     prometheus.Counter
	dropped     prometheus.Counter
	rejected    *prometheus.CounterVec
}

// NewMetrics registers the relay collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "unileap", Subsystem: "relay", Name: "connections",
			Help: "Open relay connections.",
		}),
		relayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "unileap", Subsystem: "relay", Name: "relayed_total",
			Help: "storage_changed envelopes delivered to peers.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "unileap", Subsystem: "relay", Name: "dropped_total",
			Help: "storage_changed envelopes dropped for backpressure.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "unileap", Subsystem: "relay", Name: "rejected_total",
			Help: "Upgrades rejected before the websocket loop.",
		}, []string{"reason"}),
	}
	if reg != nil {
		reg.MustRegister(m.connections, m.relayed, m.dropped, m.rejected)
	}
	return m
}

func (m *Metrics) connOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) connClosed() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *Metrics) broadcast(sent, dropped int) {
	if m == nil {
		return
	}
	m.relayed.Add(float64(sent))
	m.dropped.Add(float64(dropped))
}

func (m *Metrics) reject(reason string) {
	if m != nil {
		m.rejected.WithLabelValues(reason).Inc()
	}
}
