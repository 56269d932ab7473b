// Package metrics provides Prometheus metrics for the sync engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultSuccess   = "success"
	ResultFailure   = "failure"
	ResultUnchanged = "unchanged"
	ResultSkipped   = "skipped"
)

var (
	// IngestTotal counts ingest runs by outcome.
	IngestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "planet",
			Name:      "ingest_total",
			Help:      "Total number of feed ingest runs",
		},
		[]string{"result"},
	)

	// IngestArticlesTotal counts articles touched by ingest runs.
	IngestArticlesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "planet",
			Name:      "ingest_articles_total",
			Help:      "Articles created, updated or skipped during ingest",
		},
		[]string{"kind"},
	)

	IngestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "planet",
			Name:      "ingest_duration_seconds",
			Help:      "Duration of ingest runs in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	// PublishTotal counts publish stages by outcome.
	PublishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "planet",
			Name:      "publish_total",
			Help:      "Total number of publish stage executions",
		},
		[]string{"stage", "result"},
	)

	// ProbeTotal counts gateway propagation probes.
	ProbeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "planet",
			Name:      "probe_total",
			Help:      "Total number of gateway propagation probes",
		},
		[]string{"gateway", "result"},
	)
)

// RecordIngest records one ingest run and its article counts.
func RecordIngest(result string, created, updated, skipped int, seconds float64) {
	IngestTotal.WithLabelValues(result).Inc()
	IngestDuration.Observe(seconds)
	IngestArticlesTotal.WithLabelValues("created").Add(float64(created))
	IngestArticlesTotal.WithLabelValues("updated").Add(float64(updated))
	IngestArticlesTotal.WithLabelValues("skipped").Add(float64(skipped))
}

func RecordPublishStage(stage string, err error) {
	PublishTotal.WithLabelValues(stage, outcome(err)).Inc()
}

func RecordProbe(gateway string, err error) {
	ProbeTotal.WithLabelValues(gateway, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return ResultFailure
	}
	return ResultSuccess
}
