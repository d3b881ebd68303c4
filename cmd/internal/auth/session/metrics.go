package session

import "github.com/prometheus/client_golang/prometheus"

// Validation outcomes recorded by Metrics.
const (
	OutcomeAbsent  = "absent"
	OutcomeExpired = "expired"
	OutcomeActive  = "active"
	OutcomeRenewed = "renewed"
	OutcomeError   = "error"
)

// Metrics holds the session counters. A nil *Metrics records nothing.
type Metrics struct {
	validations *prometheus.CounterVec
	created     prometheus.Counter
}

// NewMetrics builds the session counters and registers them with reg when
// reg is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		validations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "passage_session_validations_total",
			Help: "Session validations by outcome.",
		}, []string{"outcome"}),
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "passage_sessions_created_total",
			Help: "Sessions created.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.validations, m.created)
	}
	return m
}

func (m *Metrics) observeValidation(outcome string) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) observeCreated() {
	if m == nil {
		return
	}
	m.created.Inc()
}
