package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "servicehub",
		Subsystem: "lifecycle",
		Name:      "transitions_total",
		Help:      "Status transition attempts broken down by edge and result.",
	}, []string{"from", "to", "result"})

	reviewsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "servicehub",
		Subsystem: "lifecycle",
		Name:      "reviews_total",
		Help:      "Review submissions broken down by result.",
	}, []string{"result"})

	ratingRecompute = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "servicehub",
		Subsystem: "lifecycle",
		Name:      "rating_recompute_seconds",
		Help:      "Time spent inside the per-profile rating critical section.",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})
)

func recordTransition(from, to Status, result string) {
	if !to.Valid() {
		to = "unknown"
	}
	transitionsTotal.WithLabelValues(string(from), string(to), result).Inc()
}
