package action

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// invocationsTotal counts every ActionInvocation this process finalizes,
// labeled by its terminal (or retrying) status, giving the action
// consumer's retry/timeout/failure behavior (spec §4.4) the same
// promauto-backed counter shape as internal/objstore's op metrics.
var invocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "latchflow",
	Subsystem: "action",
	Name:      "invocations_total",
	Help:      "Total action invocations finalized, by terminal status.",
}, []string{"status"})
