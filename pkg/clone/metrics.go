package clone

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

// Metrics holds the per-invocation instruments for a single clone. Unlike a
// long-running service, a one-shot CLI has nothing to scrape an HTTP
// endpoint, so the registry is optionally dumped to a textfile in the
// Prometheus text exposition format (spec §4.H) rather than served.
type Metrics struct {
	registry       *prometheus.Registry
	cloneTotal     *prometheus.CounterVec
	phaseDuration  *prometheus.HistogramVec
	primerOutcome  *prometheus.CounterVec
	resumeOutcome  *prometheus.CounterVec
}

// NewMetrics registers a fresh, private metrics registry — never the global
// default registerer, so this package stays safe to import into a larger
// process without clobbering its metrics namespace.
func NewMetrics() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.cloneTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gitclone_clone_total",
		Help: "Count of clone invocations by result.",
	}, []string{"result"})

	m.phaseDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "gitclone_clone_duration_seconds",
		Help:    "Duration of each clone phase.",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	}, []string{"phase"})

	m.primerOutcome = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gitclone_primer_outcome_total",
		Help: "Count of primer adoption outcomes.",
	}, []string{"outcome"})

	m.resumeOutcome = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "gitclone_resume_total",
		Help: "Count of --resume invocation outcomes.",
	}, []string{"outcome"})

	m.registry.MustRegister(m.cloneTotal, m.phaseDuration, m.primerOutcome, m.resumeOutcome)
	return m
}

// ObservePhase records how long a named orchestrator phase took.
func (m *Metrics) ObservePhase(phase string, start time.Time) {
	m.phaseDuration.WithLabelValues(phase).Observe(time.Since(start).Seconds())
}

// RecordResult records the terminal outcome of a clone invocation.
func (m *Metrics) RecordResult(result string) {
	m.cloneTotal.WithLabelValues(result).Inc()
}

// RecordPrimerOutcome records how the primer subsystem resolved.
func (m *Metrics) RecordPrimerOutcome(outcome string) {
	m.primerOutcome.WithLabelValues(outcome).Inc()
}

// RecordResumeOutcome records how a --resume invocation resolved.
func (m *Metrics) RecordResumeOutcome(outcome string) {
	m.resumeOutcome.WithLabelValues(outcome).Inc()
}

// WriteTextfile dumps the registry in Prometheus text exposition format to
// path, for node_exporter-style textfile collection from a one-shot CLI.
func (m *Metrics) WriteTextfile(path string) error {
	families, err := m.registry.Gather()
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}

	enc := expfmt.NewEncoder(f, expfmt.FmtText)
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			f.Close()
			return err
		}
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
