package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels triages that produced a report.
	OutcomeSuccess = "success"
	// OutcomeError labels triages that failed before ranking (validation, snapshot errors).
	OutcomeError = "error"
)

var (
	triagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "platformtriage",
			Name:      "triages_total",
			Help:      "Total number of triages handled, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	triageDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "platformtriage",
			Name:      "triage_seconds",
			Help:      "Triage latency in seconds, snapshot building included.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 15, 30},
		},
	)

	triageHealthTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "platformtriage",
			Name:      "triage_health_total",
			Help:      "Overall health reported by completed triages.",
		},
		[]string{"health"},
	)

	findingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "platformtriage",
			Name:      "findings_total",
			Help:      "Findings emitted, partitioned by failure code and severity.",
		},
		[]string{"code", "severity"},
	)

	detectorFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "platformtriage",
			Name:      "detector_failures_total",
			Help:      "Detector invocations that panicked and were treated as producing no findings.",
		},
		[]string{"detector"},
	)
)

// Register attaches platformtriage collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		triagesTotal,
		triageDurationSeconds,
		triageHealthTotal,
		findingsTotal,
		detectorFailuresTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveTriage records a triage duration and outcome label.
func ObserveTriage(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeError {
		label = OutcomeSuccess
	}
	triagesTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	triageDurationSeconds.Observe(duration.Seconds())
}

// ObserveHealth counts a completed triage under its overall health.
func ObserveHealth(health string) {
	triageHealthTotal.WithLabelValues(health).Inc()
}

// ObserveFinding counts one emitted finding.
func ObserveFinding(code, severity string) {
	findingsTotal.WithLabelValues(code, severity).Inc()
}

// DetectorFailed counts a recovered detector panic.
func DetectorFailed(detector string) {
	detectorFailuresTotal.WithLabelValues(detector).Inc()
}
