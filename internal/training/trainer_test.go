package training

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartscholar/internal/dataset"
	"smartscholar/internal/features"
	"smartscholar/internal/ml"
)

func fastConfig(id features.ModelID) Config {
	cfg := DefaultConfig(id)
	cfg.Forest.Trees = 20
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cfg.Now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	cfg.NewVersion = func() string { return "v-" + string(id) }
	return cfg
}

func TestTrain_Dropout(t *testing.T) {
	ds := dataset.FromStudents(dataset.Generate(300, 42))

	artifact, report, err := Train(context.Background(), ds, features.Dropout, fastConfig(features.Dropout))
	require.NoError(t, err)

	assert.Equal(t, features.Dropout, artifact.ID)
	assert.Equal(t, "v-dropout", artifact.Version)
	assert.Equal(t, mustOrder(t, features.Dropout), artifact.FeatureOrder)
	assert.Equal(t, ml.Classification, artifact.Model.Kind)
	require.NoError(t, artifact.Check())

	assert.Equal(t, 300, report.Rows)
	assert.Equal(t, 300, report.TrainRows+report.TestRows)
	assert.InDelta(t, 60, report.TestRows, 2)
	require.NotNil(t, report.Classification)
	assert.Nil(t, report.Regression)
	assert.Greater(t, report.Classification.Accuracy, 0.7)
	assert.Len(t, report.Classification.Confusion, 2)
	assert.Equal(t, report.TestRows, report.Classification.Classes[0].Support+report.Classification.Classes[1].Support)
	assert.Equal(t, 300, report.ClassDistribution["Safe"]+report.ClassDistribution["At Risk"])
	assert.Len(t, report.Importances, 11)
	assert.Equal(t, time.Second, report.Duration())

	var total float64
	for _, fi := range report.Importances {
		total += fi.Importance
	}
	assert.InDelta(t, 1.0, total, 1e-9)
	assert.Contains(t, artifact.Metadata.Metrics, "accuracy")
}

func TestTrain_GPA(t *testing.T) {
	ds := dataset.FromStudents(dataset.Generate(300, 42))

	artifact, report, err := Train(context.Background(), ds, features.GPA, fastConfig(features.GPA))
	require.NoError(t, err)

	assert.Equal(t, mustOrder(t, features.GPA), artifact.FeatureOrder)
	assert.Equal(t, 8, artifact.Scaler.Width())
	assert.Equal(t, ml.Regression, artifact.Model.Kind)
	require.NotNil(t, report.Regression)
	assert.Less(t, report.Regression.MAE, 0.6)
	assert.Greater(t, report.Regression.R2, 0.3)
	assert.Equal(t, []string{"mae", "r2", "rmse"}, slices.Sorted(maps.Keys(report.MetricMap())))
}

func TestTrain_Deterministic(t *testing.T) {
	ds := dataset.FromStudents(dataset.Generate(150, 5))
	a, _, err := Train(context.Background(), ds, features.Dropout, fastConfig(features.Dropout))
	require.NoError(t, err)
	b, _, err := Train(context.Background(), ds, features.Dropout, fastConfig(features.Dropout))
	require.NoError(t, err)
	assert.Equal(t, a.Model, b.Model)
	assert.Equal(t, a.Scaler, b.Scaler)
}

func TestTrain_DataErrors(t *testing.T) {
	good := dataset.FromStudents(dataset.Generate(40, 1))

	dropColumn := func(name string) *dataset.Dataset {
		var cols []string
		for _, c := range good.Columns {
			if c != name {
				cols = append(cols, c)
			}
		}
		m, err := good.Matrix(cols)
		require.NoError(t, err)
		ds, err := dataset.New(cols, m)
		require.NoError(t, err)
		return ds
	}

	withLabels := func(label float64, n int) *dataset.Dataset {
		m, err := good.Matrix(good.Columns)
		require.NoError(t, err)
		j := 0
		for i, c := range good.Columns {
			if c == features.DropoutLabel {
				j = i
			}
		}
		for i := range m {
			m[i][j] = label
		}
		for i := 0; i < n; i++ {
			m[i][j] = 1 - label
		}
		ds, err := dataset.New(good.Columns, m)
		require.NoError(t, err)
		return ds
	}

	tests := []struct {
		name string
		ds   *dataset.Dataset
		id   features.ModelID
	}{
		{"nil dataset", nil, features.Dropout},
		{"empty dataset", &dataset.Dataset{Columns: good.Columns}, features.GPA},
		{"missing label", dropColumn(features.DropoutLabel), features.Dropout},
		{"missing gpa label", dropColumn(features.GPALabel), features.GPA},
		{"missing feature", dropColumn(features.ForumPosts), features.GPA},
		{"single class", withLabels(0, 0), features.Dropout},
		{"one positive example", withLabels(0, 1), features.Dropout},
		{"non-binary label", withLabels(2, 0), features.Dropout},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := Train(context.Background(), tt.ds, tt.id, fastConfig(tt.id))
			require.Error(t, err)
			assert.True(t, errors.Is(err, dataset.ErrTrainingData), err.Error())
		})
	}

	_, _, err := Train(context.Background(), good, "attendance", fastConfig(features.GPA))
	assert.Error(t, err)
}

func TestStratifiedSplit(t *testing.T) {
	labels := make([]int, 50)
	for i := 0; i < 5; i++ {
		labels[i] = 1
	}
	s, err := StratifiedSplit(labels, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, s.Test, 10)
	assert.Len(t, s.Train, 40)

	assert.Equal(t, 1, countOf(s.Test, labels))
	assert.Equal(t, 4, countOf(s.Train, labels))

	seen := map[int]bool{}
	for _, i := range append(append([]int{}, s.Train...), s.Test...) {
		assert.False(t, seen[i], "row %d in both partitions", i)
		seen[i] = true
	}
	assert.Len(t, seen, 50)

	again, err := StratifiedSplit(labels, 0.2, 42)
	require.NoError(t, err)
	assert.Equal(t, s, again)

	_, err = StratifiedSplit([]int{0, 0, 0, 1}, 0.2, 1)
	assert.True(t, errors.Is(err, dataset.ErrTrainingData))

	// Two examples of the minority class still land in both partitions.
	small, err := StratifiedSplit([]int{0, 0, 0, 0, 0, 0, 1, 1}, 0.2, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, countOf(small.Test, []int{0, 0, 0, 0, 0, 0, 1, 1}))
}

func countOf(idx, labels []int) int {
	n := 0
	for _, i := range idx {
		n += labels[i]
	}
	return n
}

func TestRandomSplit(t *testing.T) {
	s, err := RandomSplit(10, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, s.Test, 2)
	assert.Len(t, s.Train, 8)

	s, err = RandomSplit(11, 0.2, 42)
	require.NoError(t, err)
	assert.Len(t, s.Test, 3, "test size rounds up")

	_, err = RandomSplit(1, 0.2, 42)
	assert.Error(t, err)
	_, err = RandomSplit(10, 1, 42)
	assert.Error(t, err)
}

func TestEvaluateClassifier(t *testing.T) {
	truth := []int{0, 0, 0, 1, 1, 1}
	pred := []int{0, 0, 1, 1, 1, 0}
	m := EvaluateClassifier(truth, pred, ClassNames)

	assert.InDelta(t, 4.0/6, m.Accuracy, 1e-9)
	assert.Equal(t, [][]int{{2, 1}, {1, 2}}, m.Confusion)
	assert.InDelta(t, 2.0/3, m.Classes[1].Precision, 1e-9)
	assert.InDelta(t, 2.0/3, m.Classes[1].Recall, 1e-9)
	assert.InDelta(t, 2.0/3, m.Classes[1].F1, 1e-9)
	assert.Equal(t, 3, m.Classes[0].Support)

	none := EvaluateClassifier([]int{0, 0}, []int{0, 0}, ClassNames)
	assert.Equal(t, 0.0, none.Classes[1].Precision)
	assert.Equal(t, 0.0, none.Classes[1].F1)
}

func TestEvaluateRegressor(t *testing.T) {
	m := EvaluateRegressor([]float64{1, 2, 3, 4}, []float64{1, 2, 3, 4})
	assert.Equal(t, 0.0, m.MAE)
	assert.Equal(t, 0.0, m.RMSE)
	assert.InDelta(t, 1.0, m.R2, 1e-12)

	m = EvaluateRegressor([]float64{1, 2, 3, 4}, []float64{2, 3, 4, 5})
	assert.InDelta(t, 1.0, m.MAE, 1e-12)
	assert.InDelta(t, 1.0, m.RMSE, 1e-12)
	assert.InDelta(t, 0.2, m.R2, 1e-12)

	m = EvaluateRegressor([]float64{2, 2}, []float64{1, 3})
	assert.Equal(t, 0.0, m.R2, "undefined for constant truth")
}

func TestReporter(t *testing.T) {
	ds := dataset.FromStudents(dataset.Generate(120, 42))
	_, report, err := Train(context.Background(), ds, features.Dropout, fastConfig(features.Dropout))
	require.NoError(t, err)

	dir := filepath.Join(t.TempDir(), "reports")
	require.NoError(t, NewReporter(report, dir).GenerateReport())

	summary, err := os.ReadFile(filepath.Join(dir, "dropout_training_summary.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "DROPOUT MODEL TRAINING SUMMARY")
	assert.Contains(t, string(summary), "Accuracy:")
	assert.Contains(t, string(summary), "At Risk")
	top := ml.TopFeatures(report.Importances, 3)
	require.Len(t, top, 3)
	assert.Contains(t, string(summary), "Top 3: "+top[0]+", "+top[1]+", "+top[2])
	assert.Equal(t, report.Importances[0].Name, top[0])

	raw, err := os.ReadFile(filepath.Join(dir, "dropout_training_report.json"))
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "dropout", decoded["model_id"])
	assert.Contains(t, decoded, "classification")
	assert.Contains(t, decoded, "generated_at")

	var buf bytes.Buffer
	require.NoError(t, WriteSummary(&buf, &Report{ModelID: features.GPA, Regression: &RegressionMetrics{MAE: 0.1234}}))
	assert.Contains(t, buf.String(), "Mean Absolute Error: 0.123")
}

func mustOrder(t *testing.T, id features.ModelID) []string {
	t.Helper()
	order, err := features.Order(id)
	require.NoError(t, err)
	return order
}
