package metrics

import "strconv"

// MetricsWrapper adapts Metrics to the narrow interfaces the prediction
// service, the assignment analyzer and the HTTP layer depend on.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) MLPredictionsInc() {
	w.m.MLPredictions.Inc()
}

func (w *MetricsWrapper) MLFailuresInc() {
	w.m.MLFailures.Inc()
	w.m.ErrorsTotal.Inc()
}

func (w *MetricsWrapper) MLLatencyObserve(seconds float64) {
	w.m.MLLatency.Observe(seconds)
}

func (w *MetricsWrapper) MLModelAgeSet(model string, seconds float64) {
	w.m.MLModelAge.WithLabelValues(model).Set(seconds)
}

func (w *MetricsWrapper) MLPredictionScoresObserve(p float64) {
	w.m.MLPredictionScores.Observe(p)
}

func (w *MetricsWrapper) MLUnavailableInc() {
	w.m.MLUnavailable.Inc()
}

func (w *MetricsWrapper) RiskLevelInc(level string) {
	w.m.RiskLevels.WithLabelValues(level).Inc()
}

func (w *MetricsWrapper) AnalysesInc() {
	w.m.Analyses.Inc()
}

func (w *MetricsWrapper) AssignmentScoreObserve(score float64) {
	w.m.AssignmentScores.Observe(score)
}

func (w *MetricsWrapper) SentimentFallbackInc() {
	w.m.SentimentFallbacks.Inc()
}

// HTTPRequestObserve records one served request.
func (w *MetricsWrapper) HTTPRequestObserve(route string, code int, seconds float64) {
	w.m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	w.m.HTTPDuration.WithLabelValues(route).Observe(seconds)
	if code >= 500 {
		w.m.ErrorsTotal.Inc()
	}
}

// TrainingRunObserve records a completed training run and its headline
// evaluation metrics.
func (w *MetricsWrapper) TrainingRunObserve(model string, seconds float64, metrics map[string]float64) {
	w.m.TrainingRuns.WithLabelValues(model).Inc()
	w.m.TrainingDuration.WithLabelValues(model).Set(seconds)
	for name, v := range metrics {
		w.m.TrainingMetric.WithLabelValues(model, name).Set(v)
	}
}
