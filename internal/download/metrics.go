package download

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// downloadsAuthorizedTotal and rejectionsTotal instrument the quota/
// cooldown guard (spec §4.6 steps 1-5): a dashboard can then see quota
// exhaustion and cooldown pressure as separate signals rather than
// inferring them from generic 4xx rates.
var (
	downloadsAuthorizedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "latchflow",
		Subsystem: "download",
		Name:      "authorized_total",
		Help:      "Total downloads that passed quota and cooldown checks.",
	})

	rejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "latchflow",
		Subsystem: "download",
		Name:      "rejections_total",
		Help:      "Total downloads rejected by the guard, by reason.",
	}, []string{"reason"})
)
