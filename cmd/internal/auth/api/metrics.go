package authapi

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts account requests by operation and result.
type Metrics struct {
	requests *prometheus.CounterVec
}

// NewMetrics registers the auth collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "unileap",
			Subsystem: "auth",
			Name:      "requests_total",
			Help:      "Account API requests by operation and result.",
		}, []string{"op", "result"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests)
	}
	return m
}

func (m *Metrics) observe(op, result string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(op, result).Inc()
}
