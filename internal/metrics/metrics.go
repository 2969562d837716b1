package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels cycles that committed.
	OutcomeSuccess = "success"
	// OutcomeError labels cycles that rolled back or failed to start.
	OutcomeError = "error"
)

var (
	cyclesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "statusd",
			Name:      "cycles_total",
			Help:      "Monitoring cycles run, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	cycleDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "statusd",
			Name:      "cycle_seconds",
			Help:      "Wall-clock duration of one monitoring cycle.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)

	probesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "statusd",
			Name:      "probes_total",
			Help:      "Probe attempts, partitioned by classified status.",
		},
		[]string{"status"},
	)

	outcomesSweptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "statusd",
			Name:      "outcomes_swept_total",
			Help:      "Outcome rows removed by the retention sweep.",
		},
	)
)

// Register attaches statusd collectors to the supplied registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		cyclesTotal,
		cycleDurationSeconds,
		probesTotal,
		outcomesSweptTotal,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveCycle records one cycle's duration and outcome.
func ObserveCycle(d time.Duration, outcome string) {
	if outcome != OutcomeError {
		outcome = OutcomeSuccess
	}
	cyclesTotal.WithLabelValues(outcome).Inc()
	if d < 0 {
		d = 0
	}
	cycleDurationSeconds.Observe(d.Seconds())
}

// ObserveProbe counts one probe attempt by classified status.
func ObserveProbe(status string) {
	probesTotal.WithLabelValues(status).Inc()
}

// AddSwept counts outcome rows removed by a retention sweep.
func AddSwept(n int64) {
	if n > 0 {
		outcomesSweptTotal.Add(float64(n))
	}
}
