package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	drepo "FinValue/internal/domain/repository"
)

var _ drepo.Metrics = (*Recorder)(nil)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	valuations  *prometheus.CounterVec
	errorsTotal *prometheus.CounterVec
	peerSkipped *prometheus.CounterVec
	upside      *prometheus.GaugeVec
	latency     *prometheus.HistogramVec
}

// New creates a recorder registered with the default registerer.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer creates a recorder registered with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		valuations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finvalue_valuations_total",
				Help: "Valuations run, by kind (comps, dcf) and result",
			},
			[]string{"kind", "result"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finvalue_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		peerSkipped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "finvalue_peers_skipped_total",
				Help: "Peers dropped from a comps set because their data could not be fetched",
			},
			[]string{"ticker"},
		),
		upside: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "finvalue_last_upside_percent",
				Help: "Upside of the last valuation per ticker, in percent",
			},
			[]string{"kind", "ticker"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "finvalue_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordValuation(kind, result string) {
	r.valuations.WithLabelValues(kind, result).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

func (r *Recorder) RecordPeerSkipped(ticker string) {
	r.peerSkipped.WithLabelValues(ticker).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordUpside(kind, ticker string, pct float64) {
	r.upside.WithLabelValues(kind, ticker).Set(pct)
}

// Nop discards every observation.
type Nop struct{}

var _ drepo.Metrics = Nop{}

func (Nop) RecordValuation(string, string)       {}
func (Nop) RecordError(string)                   {}
func (Nop) RecordPeerSkipped(string)             {}
func (Nop) RecordLatency(string, float64)        {}
func (Nop) RecordUpside(string, string, float64) {}
