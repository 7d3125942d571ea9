// Package metrics provides Prometheus metrics collection for the SmartScholar
// service. It defines the prediction, assignment analysis, HTTP and training
// metrics exposed via the Prometheus metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Prediction metrics
	MLPredictions      prometheus.Counter     // Total number of predictions served
	MLFailures         prometheus.Counter     // Total number of prediction failures
	MLUnavailable      prometheus.Counter     // Predictions rejected because no models are loaded
	MLModelAge         *prometheus.GaugeVec   // Age of each loaded model in seconds
	MLLatency          prometheus.Histogram   // Prediction latency in seconds
	MLPredictionScores prometheus.Histogram   // Distribution of dropout probabilities
	RiskLevels         *prometheus.CounterVec // Predictions per risk tier

	// Assignment analysis metrics
	Analyses           prometheus.Counter   // Total number of assignments analysed
	AssignmentScores   prometheus.Histogram // Distribution of assignment scores
	SentimentFallbacks prometheus.Counter   // Analyses that used the neutral sentiment score

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec   // Requests by route and status code
	HTTPDuration *prometheus.HistogramVec // Request duration by route

	// Training metrics
	TrainingRuns     *prometheus.CounterVec // Completed training runs per model
	TrainingDuration *prometheus.GaugeVec   // Duration of the last training run per model
	TrainingMetric   *prometheus.GaugeVec   // Last evaluation metric per model and metric name

	// System metrics
	ErrorsTotal prometheus.Counter // Total number of errors encountered
}

// New creates and registers all Prometheus metrics using the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics with a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		MLPredictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_predictions_total",
			Help: "Total number of predictions served",
		}),
		MLFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_failures_total",
			Help: "Total number of prediction failures",
		}),
		MLUnavailable: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_unavailable_total",
			Help: "Total number of predictions rejected because models are not loaded",
		}),
		MLModelAge: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ml_model_age_seconds",
			Help: "Age of the loaded model artifact in seconds",
		}, []string{"model"}),
		MLLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_latency_seconds",
			Help:    "Prediction latency in seconds (end-to-end)",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		MLPredictionScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_prediction_scores",
			Help:    "Distribution of dropout probabilities",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		RiskLevels: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "risk_level_total",
			Help: "Total number of predictions per risk level",
		}, []string{"level"}),
		Analyses: factory.NewCounter(prometheus.CounterOpts{
			Name: "assignment_analyses_total",
			Help: "Total number of assignments analysed",
		}),
		AssignmentScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "assignment_scores",
			Help:    "Distribution of assignment scores",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		SentimentFallbacks: factory.NewCounter(prometheus.CounterOpts{
			Name: "sentiment_fallback_total",
			Help: "Total number of analyses that used the neutral sentiment score",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "code"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}, []string{"route"}),
		TrainingRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "training_runs_total",
			Help: "Total number of completed training runs",
		}, []string{"model"}),
		TrainingDuration: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "training_duration_seconds",
			Help: "Duration of the last training run in seconds",
		}, []string{"model"}),
		TrainingMetric: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "training_metric",
			Help: "Evaluation metric of the last training run",
		}, []string{"model", "metric"}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
	}
}

// ErrorRate returns prediction failures divided by predictions as gathered
// from g, or 0 if nothing has been recorded.
func ErrorRate(g prometheus.Gatherer) float64 {
	var total, failures float64

	metricFamilies, err := g.Gather()
	if err != nil {
		return 0
	}

	for _, mf := range metricFamilies {
		switch mf.GetName() {
		case "ml_predictions_total":
			for _, m := range mf.Metric {
				total = m.GetCounter().GetValue()
			}
		case "ml_failures_total":
			for _, m := range mf.Metric {
				failures = m.GetCounter().GetValue()
			}
		}
	}

	// Avoid division by zero
	if total+failures == 0 {
		return 0
	}
	return failures / (total + failures)
}
