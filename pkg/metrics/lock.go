package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	LockAcquisitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "filelock_acquisitions_total",
			Help: "Advisory lock acquisition attempts by result",
		},
		[]string{"result"}, // acquired, timeout, error
	)

	LockWait = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "filelock_wait_seconds",
		Help:    "Time spent waiting for an advisory lock marker",
		Buckets: prometheus.DefBuckets,
	})

	LocksHeld = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "filelock_held",
		Help: "Number of advisory locks currently held by this process",
	})
)
