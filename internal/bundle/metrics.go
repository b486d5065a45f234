package bundle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// buildsTotal and buildDuration instrument the scheduler's debounced
// build loop (spec §4.5), labeled by outcome so a rebuild storm (many
// "noop" results because the digest didn't change) is visible
// separately from actual "built" work and "failed" attempts.
var (
	buildsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "latchflow",
		Subsystem: "bundle",
		Name:      "builds_total",
		Help:      "Total bundle build attempts, by outcome (built, noop, failed).",
	}, []string{"outcome"})

	buildDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "latchflow",
		Subsystem: "bundle",
		Name:      "build_duration_seconds",
		Help:      "Bundle build duration, from dequeue to finish.",
		Buckets:   prometheus.DefBuckets,
	})
)
