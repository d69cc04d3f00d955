package analyzer

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "xquery"
	metricsSubsystem = "analyzer"
)

type metrics struct {
	rewrites       *prometheus.CounterVec
	decls          *prometheus.CounterVec
	compileSeconds prometheus.Histogram
}

// newMetrics creates the analyzer collectors and registers them in r. If
// the collectors are already registered, the existing ones are shared. A nil
// registerer leaves them unregistered.
func newMetrics(r prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		rewrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "rewrites_total",
			Help:      "Number of expressions rewritten by the optimizer, by node.",
		}, []string{"node"}),
		decls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "compiled_declarations_total",
			Help:      "Number of compiled declarations, by kind.",
		}, []string{"kind"}),
		compileSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "compile_seconds",
			Help:      "Time spent compiling query modules.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}
	if r == nil {
		return m, nil
	}

	var err error
	if m.rewrites, err = registerCounterVec(r, m.rewrites); err != nil {
		return nil, err
	}
	if m.decls, err = registerCounterVec(r, m.decls); err != nil {
		return nil, err
	}
	if err = r.Register(m.compileSeconds); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		m.compileSeconds = are.ExistingCollector.(prometheus.Histogram)
	}
	return m, nil
}

func registerCounterVec(r prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := r.Register(c); err != nil {
		are, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return nil, err
		}
		return are.ExistingCollector.(*prometheus.CounterVec), nil
	}
	return c, nil
}
