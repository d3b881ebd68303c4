package apikey

import "github.com/prometheus/client_golang/prometheus"

// Write results recorded by Metrics.
const (
	ResultStored          = "stored"
	ResultUnauthenticated = "unauthenticated"
	ResultError           = "error"
)

// Metrics holds the binder counters. A nil *Metrics records nothing.
type Metrics struct {
	writes *prometheus.CounterVec
}

// NewMetrics builds the binder counters and registers them with reg when reg
// is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passage_api_key_writes_total",
			Help: "API key writes by result.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.writes)
	}
	return m
}

func (m *Metrics) observeWrite(result string) {
	if m == nil {
		return
	}
	m.writes.WithLabelValues(result).Inc()
}
