// Package training fits the dropout classifier and the GPA regressor from a
// student dataset and evaluates them on a held-out partition.
package training

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"smartscholar/internal/dataset"
	"smartscholar/internal/features"
	"smartscholar/internal/ml"
)

// ClassNames label the dropout classes in reports.
var ClassNames = []string{"Safe", "At Risk"}

// Config controls one training run.
type Config struct {
	TestFraction float64
	SplitSeed    int64
	Forest       ml.ForestConfig

	// Now and NewVersion are replaceable for tests.
	Now        func() time.Time
	NewVersion func() string
}

// DefaultConfig returns the standard configuration for a model.
func DefaultConfig(id features.ModelID) Config {
	cfg := Config{
		TestFraction: 0.2,
		SplitSeed:    42,
		Forest:       ml.DefaultRegressorConfig(),
		Now:          time.Now,
		NewVersion:   uuid.NewString,
	}
	if id == features.Dropout {
		cfg.Forest = ml.DefaultClassifierConfig()
	}
	return cfg
}

// Report describes a finished training run.
type Report struct {
	ModelID           features.ModelID       `json:"model_id"`
	Version           string                 `json:"version"`
	Kind              ml.Kind                `json:"kind"`
	StartedAt         time.Time              `json:"started_at"`
	FinishedAt        time.Time              `json:"finished_at"`
	Rows              int                    `json:"rows"`
	TrainRows         int                    `json:"train_rows"`
	TestRows          int                    `json:"test_rows"`
	Features          []string               `json:"features"`
	ClassDistribution map[string]int         `json:"class_distribution,omitempty"`
	Classification    *ClassificationMetrics `json:"classification,omitempty"`
	Regression        *RegressionMetrics     `json:"regression,omitempty"`
	Importances       []ml.FeatureImportance `json:"feature_importances"`
	Trees             int                    `json:"trees"`
	MaxDepth          int                    `json:"max_depth"`
}

// Duration is how long the run took.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Train fits the model identified by id on ds. The feature order always
// comes from the schema, so the artifact matches what serving assembles.
func Train(ctx context.Context, ds *dataset.Dataset, id features.ModelID, cfg Config) (*ml.Artifact, *Report, error) {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewVersion == nil {
		cfg.NewVersion = uuid.NewString
	}
	started := cfg.Now()

	order, err := features.Order(id)
	if err != nil {
		return nil, nil, err
	}
	label, err := features.Label(id)
	if err != nil {
		return nil, nil, err
	}

	if ds == nil || ds.Len() == 0 {
		return nil, nil, dataset.Errorf("train", "empty dataset")
	}
	if !ds.Has(label) {
		return nil, nil, dataset.Errorf("train", "label column %q absent", label)
	}
	for _, name := range order {
		if !ds.Has(name) {
			return nil, nil, dataset.Errorf("train", "feature column %q absent", name)
		}
	}

	x, err := ds.Matrix(order)
	if err != nil {
		return nil, nil, err
	}
	y, err := ds.Column(label)
	if err != nil {
		return nil, nil, err
	}

	log.Info().
		Str("model", string(id)).
		Int("rows", ds.Len()).
		Int("features", len(order)).
		Msg("Training started")

	report := &Report{
		ModelID:  id,
		Rows:     ds.Len(),
		Features: order,
		Trees:    cfg.Forest.Trees,
		MaxDepth: cfg.Forest.MaxDepth,
	}

	var (
		model  *ml.Forest
		scaler *ml.Scaler
	)
	switch id {
	case features.Dropout:
		model, scaler, err = trainClassifier(ctx, x, y, cfg, report)
	default:
		model, scaler, err = trainRegressor(ctx, x, y, cfg, report)
	}
	if err != nil {
		return nil, nil, err
	}

	ranked, err := ml.RankImportances(order, model.Importances)
	if err != nil {
		return nil, nil, err
	}
	report.Importances = ranked
	report.Kind = model.Kind
	report.Version = cfg.NewVersion()
	report.StartedAt = started
	report.FinishedAt = cfg.Now()

	artifact := &ml.Artifact{
		ID:           id,
		Version:      report.Version,
		Model:        model,
		Scaler:       scaler,
		FeatureOrder: order,
		Metadata: ml.Metadata{
			TrainedAt:   report.FinishedAt,
			TrainRows:   report.TrainRows,
			TestRows:    report.TestRows,
			Metrics:     report.MetricMap(),
			Importances: ranked,
		},
	}
	if err := artifact.Check(); err != nil {
		return nil, nil, fmt.Errorf("trained artifact failed self-check: %w", err)
	}

	log.Info().
		Str("model", string(id)).
		Str("version", report.Version).
		Dur("duration", report.Duration()).
		Interface("metrics", report.MetricMap()).
		Msg("Training complete")
	return artifact, report, nil
}

func trainClassifier(ctx context.Context, x [][]float64, y []float64, cfg Config, report *Report) (*ml.Forest, *ml.Scaler, error) {
	labels := make([]int, len(y))
	counts := make([]int, len(ClassNames))
	for i, v := range y {
		if v != 0 && v != 1 {
			return nil, nil, dataset.Errorf("train", "row %d: dropout label must be 0 or 1, got %v", i, v)
		}
		labels[i] = int(v)
		counts[labels[i]]++
	}
	report.ClassDistribution = map[string]int{}
	for c, n := range counts {
		report.ClassDistribution[ClassNames[c]] = n
	}
	for c, n := range counts {
		if n == 0 {
			return nil, nil, dataset.Errorf("train", "only one class present, no %q examples", ClassNames[c])
		}
		if n < 2 {
			return nil, nil, dataset.Errorf("train", "class %q has %d example, need at least 2", ClassNames[c], n)
		}
	}

	split, err := StratifiedSplit(labels, cfg.TestFraction, cfg.SplitSeed)
	if err != nil {
		return nil, nil, err
	}
	report.TrainRows, report.TestRows = len(split.Train), len(split.Test)

	scaler, xTrain, xTest, err := scale(x, split)
	if err != nil {
		return nil, nil, err
	}

	model, err := ml.FitClassifier(ctx, xTrain, pick(labels, split.Train), cfg.Forest)
	if err != nil {
		return nil, nil, fmt.Errorf("fit classifier: %w", err)
	}

	pred := make([]int, len(xTest))
	for i, row := range xTest {
		v, err := model.Predict(row)
		if err != nil {
			return nil, nil, err
		}
		pred[i] = int(v)
	}
	metrics := EvaluateClassifier(pick(labels, split.Test), pred, ClassNames)
	report.Classification = &metrics
	return model, scaler, nil
}

func trainRegressor(ctx context.Context, x [][]float64, y []float64, cfg Config, report *Report) (*ml.Forest, *ml.Scaler, error) {
	for i, v := range y {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, nil, dataset.Errorf("train", "row %d: target is not finite", i)
		}
	}

	split, err := RandomSplit(len(y), cfg.TestFraction, cfg.SplitSeed)
	if err != nil {
		return nil, nil, err
	}
	report.TrainRows, report.TestRows = len(split.Train), len(split.Test)

	scaler, xTrain, xTest, err := scale(x, split)
	if err != nil {
		return nil, nil, err
	}

	model, err := ml.FitRegressor(ctx, xTrain, pick(y, split.Train), cfg.Forest)
	if err != nil {
		return nil, nil, fmt.Errorf("fit regressor: %w", err)
	}

	pred := make([]float64, len(xTest))
	for i, row := range xTest {
		if pred[i], err = model.Predict(row); err != nil {
			return nil, nil, err
		}
	}
	metrics := EvaluateRegressor(pick(y, split.Test), pred)
	report.Regression = &metrics
	return model, scaler, nil
}

// scale fits the scaler on the training partition only and transforms both.
func scale(x [][]float64, split Split) (*ml.Scaler, [][]float64, [][]float64, error) {
	train := pick(x, split.Train)
	scaler, err := ml.FitScaler(train)
	if err != nil {
		return nil, nil, nil, err
	}
	xTrain, err := scaler.TransformAll(train)
	if err != nil {
		return nil, nil, nil, err
	}
	xTest, err := scaler.TransformAll(pick(x, split.Test))
	if err != nil {
		return nil, nil, nil, err
	}
	return scaler, xTrain, xTest, nil
}

// MetricMap flattens the headline metrics for artifact metadata and gauges.
func (r *Report) MetricMap() map[string]float64 {
	out := map[string]float64{}
	if c := r.Classification; c != nil {
		out["accuracy"] = c.Accuracy
		if len(c.Classes) > 1 {
			at := c.Classes[1]
			out["precision_at_risk"] = at.Precision
			out["recall_at_risk"] = at.Recall
			out["f1_at_risk"] = at.F1
		}
	}
	if g := r.Regression; g != nil {
		out["mae"] = g.MAE
		out["rmse"] = g.RMSE
		out["r2"] = g.R2
	}
	return out
}
