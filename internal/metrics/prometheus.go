package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	CorrelationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "worklens_correlation_duration_seconds",
			Help:    "Correlation run duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		},
		[]string{"status"},
	)

	CorrelationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worklens_correlation_runs_total",
			Help: "Total number of correlation runs",
		},
		[]string{"status"},
	)

	EvidenceProcessed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "worklens_evidence_processed_total",
			Help: "Total evidence items processed",
		},
	)

	RelationshipsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worklens_relationships_detected_total",
			Help: "Total relationships detected",
		},
		[]string{"method"},
	)

	RelationshipConfidence = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "worklens_relationship_confidence",
			Help:    "Relationship confidence scores",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1.0},
		},
	)

	WorkStoriesCreated = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "worklens_work_stories_per_run",
			Help:    "Number of work stories created per run",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		},
	)

	CorrelationCoverage = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worklens_correlation_coverage_percent",
			Help: "Percentage of evidence correlated into stories",
		},
	)

	SemanticSpend = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worklens_semantic_spend_usd",
			Help: "Estimated semantic correlation API cost in USD",
		},
		[]string{"tier"},
	)

	SemanticPairsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worklens_semantic_pairs_total",
			Help: "Total candidate pairs processed per semantic tier",
		},
		[]string{"tier"},
	)

	SemanticBudgetExhausted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "worklens_semantic_budget_exhausted_total",
			Help: "Total times the monthly semantic budget blocked a tier",
		},
	)
)

func Init() {
	prometheus.MustRegister(CorrelationDuration)
	prometheus.MustRegister(CorrelationTotal)
	prometheus.MustRegister(EvidenceProcessed)
	prometheus.MustRegister(RelationshipsDetected)
	prometheus.MustRegister(RelationshipConfidence)
	prometheus.MustRegister(WorkStoriesCreated)
	prometheus.MustRegister(CorrelationCoverage)
	prometheus.MustRegister(SemanticSpend)
	prometheus.MustRegister(SemanticPairsProcessed)
	prometheus.MustRegister(SemanticBudgetExhausted)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
