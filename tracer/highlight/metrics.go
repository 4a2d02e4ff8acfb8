package highlight

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/yuuki0xff/tracevis/info"
)

const metricsSubsystem = "highlight"

type sessionMetrics struct {
	catalogBuilds prometheus.Counter
	catalogSkips  prometheus.Counter
	lockTimeouts  prometheus.Counter
	matches       *prometheus.CounterVec
	matchErrors   *prometheus.CounterVec
}

func newSessionMetrics() *sessionMetrics {
	return &sessionMetrics{
		catalogBuilds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: info.MetricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "catalog_builds_total",
			Help:      "Number of catalog rebuilds",
		}),
		catalogSkips: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: info.MetricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "catalog_skips_total",
			Help:      "Number of catalog refreshes skipped because nothing was appended",
		}),
		lockTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: info.MetricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "lock_timeouts_total",
			Help:      "Number of extern list snapshots which fell back to stale data",
		}),
		matches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: info.MetricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "matches_total",
			Help:      "Number of match queries by criterion kind",
		}, []string{"kind"}),
		matchErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: info.MetricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "match_errors_total",
			Help:      "Number of failed match queries by criterion kind",
		}, []string{"kind"}),
	}
}

func (m *sessionMetrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.catalogBuilds,
		m.catalogSkips,
		m.lockTimeouts,
		m.matches,
		m.matchErrors,
	}
}
