package merge

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the hooks invoked after every merge. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	OnMerge   func(splitting string, elements int, took time.Duration, imbalance float64)
	OnNoop    func()
	OnFailure func()
}

// NewMetrics registers the merge collectors with reg. It returns nil when
// reg is nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	merges := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Namespace: "parmerge",
		Name:      "merges_total",
		Help:      "Number of completed parallel merges",
	}, []string{"splitting"})

	noops := promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Namespace: "parmerge",
		Name:      "merge_noops_total",
		Help:      "Number of merge requests that had nothing to merge",
	})

	failures := promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Namespace: "parmerge",
		Name:      "merge_failures_total",
		Help:      "Number of merges that failed during splitting or in a worker",
	})

	elements := promauto.With(reg).NewCounter(prometheus.CounterOpts{
		Namespace: "parmerge",
		Name:      "merged_elements_total",
		Help:      "Number of elements written by completed merges",
	})

	duration := promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "parmerge",
		Name:      "merge_duration_seconds",
		Help:      "Duration of completed merges",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 12),
	}, []string{"splitting"})

	imbalance := promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
		Namespace: "parmerge",
		Name:      "merge_worker_imbalance",
		Help:      "Largest worker load divided by the ideal per-worker load",
		Buckets:   []float64{1, 1.01, 1.05, 1.1, 1.25, 1.5, 2, 4},
	})

	return &Metrics{
		OnMerge: func(splitting string, n int, took time.Duration, ratio float64) {
			merges.WithLabelValues(splitting).Inc()
			elements.Add(float64(n))
			duration.WithLabelValues(splitting).Observe(took.Seconds())
			imbalance.Observe(ratio)
		},
		OnNoop: func() {
			noops.Inc()
		},
		OnFailure: func() {
			failures.Inc()
		},
	}
}

func (m *Metrics) merged(splitting string, n int, took time.Duration, ratio float64) {
	if m == nil || m.OnMerge == nil {
		return
	}
	m.OnMerge(splitting, n, took, ratio)
}

func (m *Metrics) noop() {
	if m == nil || m.OnNoop == nil {
		return
	}
	m.OnNoop()
}

func (m *Metrics) failed() {
	if m == nil || m.OnFailure == nil {
		return
	}
	m.OnFailure()
}
