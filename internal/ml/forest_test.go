package ml

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func separable(n int) ([][]float64, []int) {
	x := make([][]float64, n)
	y := make([]int, n)
	for i := range x {
		x[i] = []float64{float64(i), 1}
		if i >= n/2 {
			y[i] = 1
		}
	}
	return x, y
}

func TestFitClassifier_SeparableData(t *testing.T) {
	x, y := separable(100)
	f, err := FitClassifier(context.Background(), x, y, DefaultClassifierConfig())
	require.NoError(t, err)
	assert.Equal(t, Classification, f.Kind)
	assert.Equal(t, 2, f.Classes)
	assert.Len(t, f.Trees, 100)
	require.NoError(t, f.Validate())

	for i, row := range x {
		pred, err := f.Predict(row)
		require.NoError(t, err)
		assert.Equal(t, float64(y[i]), pred, "row %d", i)

		proba, err := f.PredictProba(row)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, proba[0]+proba[1], 1e-9)
	}

	// The constant column never splits.
	assert.Equal(t, 0.0, f.Importances[1])
	assert.InDelta(t, 1.0, f.Importances[0], 1e-9)
}

func TestFitRegressor_TracksIdentity(t *testing.T) {
	x := make([][]float64, 100)
	y := make([]float64, 100)
	for i := range x {
		x[i] = []float64{float64(i)}
		y[i] = float64(i)
	}
	f, err := FitRegressor(context.Background(), x, y, DefaultRegressorConfig())
	require.NoError(t, err)
	assert.Equal(t, Regression, f.Kind)

	for _, v := range []float64{10, 25, 50, 75, 90} {
		pred, err := f.Predict([]float64{v})
		require.NoError(t, err)
		assert.InDelta(t, v, pred, 3, "x=%v", v)
	}

	_, err = f.PredictProba([]float64{1})
	assert.Error(t, err)
}

func TestFit_DeterministicAcrossWorkers(t *testing.T) {
	x, y := separable(60)
	for i := range x {
		x[i][1] = float64((i * 7) % 13)
	}

	cfg := DefaultClassifierConfig()
	cfg.Trees = 20
	cfg.Workers = 1
	serial, err := FitClassifier(context.Background(), x, y, cfg)
	require.NoError(t, err)

	cfg.Workers = 8
	parallel, err := FitClassifier(context.Background(), x, y, cfg)
	require.NoError(t, err)

	assert.Equal(t, serial, parallel)
}

func TestFit_Errors(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultClassifierConfig()

	_, err := FitClassifier(ctx, nil, nil, cfg)
	assert.Error(t, err)

	_, err = FitClassifier(ctx, [][]float64{{1}, {2}}, []int{0, 0}, cfg)
	assert.Error(t, err, "single class")

	_, err = FitClassifier(ctx, [][]float64{{1}, {2, 3}}, []int{0, 1}, cfg)
	assert.Error(t, err, "ragged rows")

	_, err = FitRegressor(ctx, [][]float64{{1}}, []float64{1, 2}, DefaultRegressorConfig())
	assert.Error(t, err, "label count")

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	x, y := separable(20)
	_, err = FitClassifier(cancelled, x, y, cfg)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestForest_FeatureMismatch(t *testing.T) {
	x, y := separable(20)
	cfg := DefaultClassifierConfig()
	cfg.Trees = 3
	f, err := FitClassifier(context.Background(), x, y, cfg)
	require.NoError(t, err)

	_, err = f.PredictProba([]float64{1})
	assert.True(t, errors.Is(err, ErrFeatureMismatch))
	_, err = f.Predict([]float64{1, 2, 3})
	assert.True(t, errors.Is(err, ErrFeatureMismatch))
}

func TestForest_ValidateDecoded(t *testing.T) {
	x, y := separable(20)
	cfg := DefaultClassifierConfig()
	cfg.Trees = 3
	f, err := FitClassifier(context.Background(), x, y, cfg)
	require.NoError(t, err)

	data, err := json.Marshal(f)
	require.NoError(t, err)
	var decoded Forest
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.NoError(t, decoded.Validate())
	assert.Equal(t, f, &decoded)

	decoded.Trees[0].Nodes[0].Left = 0
	decoded.Trees[0].Nodes[0].Right = 0
	decoded.Trees[0].Nodes[0].Value = nil
	assert.Error(t, decoded.Validate())

	assert.Error(t, (&Forest{Kind: "boosted", Features: 1, Trees: f.Trees}).Validate())
}

func TestRankImportances(t *testing.T) {
	ranked, err := RankImportances([]string{"a", "b", "c"}, []float64{0.2, 0.5, 0.3})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c", "a"}, TopFeatures(ranked, 3))
	assert.Equal(t, []string{"b"}, TopFeatures(ranked, 1))
	assert.Len(t, TopFeatures(ranked, 10), 3)

	_, err = RankImportances([]string{"a"}, []float64{1, 2})
	assert.True(t, errors.Is(err, ErrFeatureMismatch))
}
