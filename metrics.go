package callsite

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the resolver's collectors. They are only exported when a
// registerer is supplied with WithRegisterer. Resolvers sharing a
// registerer share its collectors.
type metrics struct {
	resolutions  *prometheus.CounterVec
	compilations prometheus.Counter
	cacheLookups *prometheus.CounterVec
	duration     prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	m := &metrics{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "callsite_resolutions_total",
			Help: "Call-site resolutions by result code.",
		}, []string{"result"}),
		compilations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "callsite_compilations_total",
			Help: "Statement groups and roots recompiled while matching.",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "callsite_cache_lookups_total",
			Help: "Resolver cache lookups by cache and outcome.",
		}, []string{"cache", "outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "callsite_resolve_seconds",
			Help:    "Time spent resolving one execution position.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	if reg != nil {
		m.resolutions = register(reg, m.resolutions)
		m.compilations = register(reg, m.compilations)
		m.cacheLookups = register(reg, m.cacheLookups)
		m.duration = register(reg, m.duration)
	}
	return m
}

// register registers c on reg, or returns the collector already registered
// under the same descriptor. A collector reg rejects for any other reason
// still counts, unexported.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	err := reg.Register(c)
	if err == nil {
		return c
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing
		}
	}
	return c
}

func (m *metrics) resolved(err error, start time.Time) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = string(CodeOf(err))
		if result == "" {
			result = "error"
		}
	}
	m.resolutions.WithLabelValues(result).Inc()
	m.duration.Observe(time.Since(start).Seconds())
}

func (m *metrics) compiled() {
	if m == nil {
		return
	}
	m.compilations.Inc()
}

func (m *metrics) cacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, outcome).Inc()
}
