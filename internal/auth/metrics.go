package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// decisionsTotal counts every authorization decision the default
// DecisionLogger records (spec §4.7's logDecision), labeled by outcome
// and the policy signature that produced it, so allow/deny rates are
// visible per route pattern rather than only in the raw log stream.
var decisionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "latchflow",
	Subsystem: "auth",
	Name:      "decisions_total",
	Help:      "Total authorization decisions, by decision (allow/deny) and policy signature.",
}, []string{"decision", "signature"})
