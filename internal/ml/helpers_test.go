package ml

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"smartscholar/internal/features"
)

// studentRows builds a small cohort where dropout is driven by attendance
// and GPA tracks current_gpa.
func studentRows(n int) []features.StudentFeatures {
	rows := make([]features.StudentFeatures, n)
	for i := range rows {
		f := features.Defaults()
		f.AttendanceRate = float64(40 + i%60)
		f.CurrentGPA = 2 + float64(i%20)/10
		rows[i] = f
	}
	return rows
}

func fitArtifact(t *testing.T, id features.ModelID) *Artifact {
	t.Helper()

	order := mustOrder(t, id)
	students := studentRows(80)
	raw := make([][]float64, len(students))
	for i, f := range students {
		v, err := f.Assemble(order)
		require.NoError(t, err)
		raw[i] = v
	}

	scaler, err := FitScaler(raw)
	require.NoError(t, err)
	x, err := scaler.TransformAll(raw)
	require.NoError(t, err)

	var model *Forest
	switch id {
	case features.Dropout:
		cfg := DefaultClassifierConfig()
		cfg.Trees = 15
		y := make([]int, len(students))
		for i, f := range students {
			if f.AttendanceRate < 70 {
				y[i] = 1
			}
		}
		model, err = FitClassifier(context.Background(), x, y, cfg)
	case features.GPA:
		cfg := DefaultRegressorConfig()
		cfg.Trees = 15
		y := make([]float64, len(students))
		for i, f := range students {
			y[i] = f.CurrentGPA
		}
		model, err = FitRegressor(context.Background(), x, y, cfg)
	}
	require.NoError(t, err)

	return &Artifact{
		ID:           id,
		Version:      "test-" + string(id),
		Model:        model,
		Scaler:       scaler,
		FeatureOrder: order,
		Metadata:     Metadata{TrainedAt: time.Now().Add(-time.Hour), TrainRows: len(students)},
	}
}

type stubClassifier struct {
	proba []float64
	width int
}

func (s stubClassifier) PredictProba([]float64) ([]float64, error) { return s.proba, nil }
func (s stubClassifier) NumFeatures() int                           { return s.width }

type stubRegressor struct {
	value float64
	width int
}

func (s stubRegressor) Predict([]float64) (float64, error) { return s.value, nil }
func (s stubRegressor) NumFeatures() int                  { return s.width }

// stubService pairs real artifacts, for vector assembly, with fixed model
// outputs.
func stubService(t *testing.T, p, gpa float64) (*Service, *MockMetrics) {
	t.Helper()
	m := &MockMetrics{}
	svc, err := NewService(fitArtifact(t, features.Dropout), fitArtifact(t, features.GPA), m)
	require.NoError(t, err)
	svc.classifier = stubClassifier{proba: []float64{1 - p, p}, width: 11}
	svc.regressor = stubRegressor{value: gpa, width: 8}
	return svc, m
}

func mustOrder(t *testing.T, id features.ModelID) []string {
	t.Helper()
	order, err := features.Order(id)
	require.NoError(t, err)
	return order
}
