package session

import "github.com/prometheus/client_golang/prometheus"

// Operation outcomes recorded by Metrics.
const (
	outcomeOK        = "ok"
	outcomeAnonymous = "anonymous"
	outcomeInvalid   = "invalid_token"
	outcomeExpired   = "expired"
	outcomeNotFound  = "not_found"
	outcomeError     = "error"
)

// Metrics counts lifecycle operations by op and outcome. A nil *Metrics is a no-op.
type Metrics struct {
	ops        *prometheus.CounterVec
	superseded prometheus.Counter
}

// NewMetrics registers the session collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "securebank",
			Subsystem: "session",
			Name:      "operations_total",
			Help:      "Session lifecycle operations by operation and outcome.",
		}, []string{"op", "outcome"}),
		superseded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "securebank",
			Subsystem: "session",
			Name:      "superseded_total",
			Help:      "Prior sessions deleted by a new issuance or rotation.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.ops, m.superseded)
	}
	return m
}

func (m *Metrics) observe(op, outcome string) {
	if m == nil {
		return
	}
	m.ops.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) addSuperseded(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.superseded.Add(float64(n))
}
