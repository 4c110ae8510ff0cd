package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "finvalue",
			Subsystem: "provider",
			Name:      "latency_seconds",
			Help:      "Latency of market data provider calls",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	ProviderErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finvalue",
			Subsystem: "provider",
			Name:      "errors_total",
			Help:      "Failed market data provider calls by endpoint",
		},
		[]string{"endpoint"},
	)

	ProviderDeduped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "finvalue",
			Subsystem: "provider",
			Name:      "deduplicated_total",
			Help:      "Provider calls served by an identical in-flight request",
		},
		[]string{"endpoint"},
	)
)

// Register registers provider metrics with the default registry once.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(ProviderLatency, ProviderErrors, ProviderDeduped)
	})
}

// ObserveCall records one upstream call.
func ObserveCall(endpoint string, took time.Duration, err error) {
	ProviderLatency.WithLabelValues(endpoint).Observe(took.Seconds())
	if err != nil {
		ProviderErrors.WithLabelValues(endpoint).Inc()
	}
}
