package cache

import "github.com/prometheus/client_golang/prometheus"

// Lookup results recorded by Metrics.
const (
	ResultHit   = "hit"
	ResultMiss  = "miss"
	ResultError = "error"
)

// Metrics counts cache lookups and invalidations per model alias.
type Metrics struct {
	lookups       *prometheus.CounterVec
	invalidations *prometheus.CounterVec
}

// NewMetrics registers the cache collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crud",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Cache lookups by model alias and result.",
		}, []string{"model", "result"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crud",
			Subsystem: "cache",
			Name:      "invalidated_keys_total",
			Help:      "Keys removed by invalidation by model alias.",
		}, []string{"model"}),
	}
	if reg != nil {
		reg.MustRegister(m.lookups, m.invalidations)
	}
	return m
}

func (m *Metrics) lookup(model, result string) {
	if m == nil {
		return
	}
	m.lookups.WithLabelValues(model, result).Inc()
}

func (m *Metrics) invalidated(model string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.invalidations.WithLabelValues(model).Add(float64(n))
}

// Lookups exposes the lookup counter for a model and result.
func (m *Metrics) Lookups(model, result string) prometheus.Counter {
	return m.lookups.WithLabelValues(model, result)
}
