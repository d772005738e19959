package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Ranking and embedding pipeline metrics.
var (
	RankDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rank_duration_seconds",
			Help:      "Time to rank a vacancy pool for one candidate",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	SkippedPairsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_pairs_total",
			Help:      "Candidate/vacancy pairs excluded for lack of a shared weighted category",
		},
	)

	BatchSlotsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_batch_slots_total",
			Help:      "Embedding pipeline slots by outcome",
		},
		[]string{"status"},
	)

	ProviderRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_retries_total",
			Help:      "Embedding calls retried after a transient provider failure",
		},
	)

	WeightUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "weight_updates_total",
			Help:      "Weight update attempts by result",
		},
		[]string{"result"},
	)
)

var registerMatchingOnce sync.Once

// RegisterMatchingMetrics registers ranking and pipeline collectors with the default registry.
func RegisterMatchingMetrics() {
	registerMatchingOnce.Do(func() {
		prometheus.MustRegister(
			RankDuration,
			SkippedPairsTotal,
			BatchSlotsTotal,
			ProviderRetriesTotal,
			WeightUpdatesTotal,
		)
	})
}
