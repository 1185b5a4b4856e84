package rbac

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts authorization decisions and decision-cache lookups.
type Metrics struct {
	decisions *prometheus.CounterVec
	cache     *prometheus.CounterVec
}

// NewMetrics registers the authorization collectors against registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	decisions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_authz_decisions_total",
		Help: "Authorization decisions partitioned by check kind and outcome.",
	}, []string{"kind", "decision"})
	cache := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "atelier_authz_cache_total",
		Help: "Permission decision cache lookups partitioned by result.",
	}, []string{"result"})
	if registerer != nil {
		registerer.MustRegister(decisions, cache)
	}
	return &Metrics{decisions: decisions, cache: cache}
}

func (m *Metrics) observe(kind string, d Decision) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(kind, d.String()).Inc()
}

func (m *Metrics) cacheResult(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cache.WithLabelValues(result).Inc()
}
