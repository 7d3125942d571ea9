package ml

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu               sync.Mutex
	predictions      int
	failures         int
	unavailable      int
	latencySum       float64
	modelAge         map[string]float64
	predictionScores []float64
	riskLevels       map[string]int
}

func (m *MockMetrics) MLPredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *MockMetrics) MLFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) MLLatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
}

func (m *MockMetrics) MLModelAgeSet(model string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.modelAge == nil {
		m.modelAge = make(map[string]float64)
	}
	m.modelAge[model] = v
}

func (m *MockMetrics) MLPredictionScoresObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictionScores = append(m.predictionScores, v)
}

func (m *MockMetrics) MLUnavailableInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable++
}

func (m *MockMetrics) RiskLevelInc(level string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.riskLevels == nil {
		m.riskLevels = make(map[string]int)
	}
	m.riskLevels[level]++
}

// Predictions returns the number of successful predictions recorded.
func (m *MockMetrics) Predictions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.predictions
}

// UnavailableCount returns the number of rejected calls on a degraded service.
func (m *MockMetrics) UnavailableCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unavailable
}

// RiskLevels returns a copy of the per-tier counters.
func (m *MockMetrics) RiskLevels() map[string]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]int, len(m.riskLevels))
	for k, v := range m.riskLevels {
		out[k] = v
	}
	return out
}
