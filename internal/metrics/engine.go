package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/machine-telemetry-qa-platform/internal/models"
)

// Prometheus metrics for the question-answering engine and snapshot ingest.
var (
	questionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "qa_questions_total",
			Help: "Total number of questions processed, by classified intent",
		},
		[]string{"intent"},
	)

	questionDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "qa_question_duration_seconds",
			Help:    "End-to-end question processing latency",
			Buckets: prometheus.DefBuckets,
		},
	)

	noDataAnswersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qa_no_data_answers_total",
			Help: "Total number of answers that found no matching records",
		},
	)

	enrichedAnswersTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "qa_enriched_answers_total",
			Help: "Total number of answers rewritten by the generative layer",
		},
	)

	snapshotsIngestedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshots_ingested_total",
			Help: "Total number of snapshots stored, by hashed hostname",
		},
		[]string{"hostname_hash"},
	)

	snapshotsDeletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshots_deleted_total",
			Help: "Total number of snapshots removed by retention cleanup",
		},
	)
)

func init() {
	prometheus.DefaultRegisterer.MustRegister(questionsTotal)
	prometheus.DefaultRegisterer.MustRegister(questionDurationSeconds)
	prometheus.DefaultRegisterer.MustRegister(noDataAnswersTotal)
	prometheus.DefaultRegisterer.MustRegister(enrichedAnswersTotal)
	prometheus.DefaultRegisterer.MustRegister(snapshotsIngestedTotal)
	prometheus.DefaultRegisterer.MustRegister(snapshotsDeletedTotal)
}

// ObserveQuestion records one processed question.
func ObserveQuestion(answer *models.Answer, duration time.Duration) {
	questionsTotal.WithLabelValues(string(answer.Intent.Category)).Inc()
	questionDurationSeconds.Observe(duration.Seconds())

	if answer.RecordCount == 0 {
		noDataAnswersTotal.Inc()
	}
	if answer.NaturalText != answer.StructuredText {
		enrichedAnswersTotal.Inc()
	}
}

// ObserveSnapshotIngested records one stored snapshot. The hostname is hashed
// to keep label cardinality bounded.
func ObserveSnapshotIngested(hostname string) {
	snapshotsIngestedTotal.WithLabelValues(HashHostname(hostname)).Inc()
}

// ObserveSnapshotsDeleted records retention cleanup work.
func ObserveSnapshotsDeleted(count int64) {
	snapshotsDeletedTotal.Add(float64(count))
}
