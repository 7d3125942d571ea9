package ml

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ForestConfig holds random forest hyperparameters.
type ForestConfig struct {
	Trees           int
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	// MaxFeatures is the number of candidate features per split. Zero means
	// √features for classification and all features for regression.
	MaxFeatures int
	// BalancedClassWeights weights each class by n/(k·count).
	BalancedClassWeights bool
	Bootstrap            bool
	Seed                 int64
	// Workers bounds concurrent tree fitting. Zero means GOMAXPROCS.
	Workers int
}

// DefaultClassifierConfig is the dropout classifier configuration.
func DefaultClassifierConfig() ForestConfig {
	return ForestConfig{
		Trees:                100,
		MaxDepth:             10,
		MinSamplesSplit:      5,
		MinSamplesLeaf:       2,
		BalancedClassWeights: true,
		Bootstrap:            true,
		Seed:                 42,
	}
}

// DefaultRegressorConfig is the GPA regressor configuration.
func DefaultRegressorConfig() ForestConfig {
	return ForestConfig{
		Trees:           100,
		MaxDepth:        15,
		MinSamplesSplit: 5,
		MinSamplesLeaf:  2,
		Bootstrap:       true,
		Seed:            42,
	}
}

// Forest is a fitted random forest. It is immutable after fitting and safe
// for concurrent use.
type Forest struct {
	Kind        Kind      `json:"kind"`
	Features    int       `json:"num_features"`
	Classes     int       `json:"num_classes,omitempty"`
	Trees       []Tree    `json:"trees"`
	Importances []float64 `json:"importances"`
}

// FitClassifier fits a classification forest. Labels must be 0..k-1.
func FitClassifier(ctx context.Context, x [][]float64, y []int, cfg ForestConfig) (*Forest, error) {
	if err := checkMatrix(x, len(y)); err != nil {
		return nil, err
	}
	classes := 0
	for i, label := range y {
		if label < 0 {
			return nil, fmt.Errorf("row %d: negative class label %d", i, label)
		}
		if label+1 > classes {
			classes = label + 1
		}
	}
	if classes < 2 {
		return nil, fmt.Errorf("classifier needs at least 2 classes, got %d", classes)
	}

	targets := make([]float64, len(y))
	for i, label := range y {
		targets[i] = float64(label)
	}

	weights := make([]float64, len(y))
	for i := range weights {
		weights[i] = 1
	}
	if cfg.BalancedClassWeights {
		counts := make([]float64, classes)
		for _, label := range y {
			counts[label]++
		}
		for i, label := range y {
			weights[i] = float64(len(y)) / (float64(classes) * counts[label])
		}
	}

	maxFeatures := cfg.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = int(math.Sqrt(float64(len(x[0]))))
		if maxFeatures < 1 {
			maxFeatures = 1
		}
	}

	f := &Forest{Kind: Classification, Features: len(x[0]), Classes: classes}
	if err := f.fit(ctx, x, targets, weights, cfg, maxFeatures); err != nil {
		return nil, err
	}
	return f, nil
}

// FitRegressor fits a regression forest.
func FitRegressor(ctx context.Context, x [][]float64, y []float64, cfg ForestConfig) (*Forest, error) {
	if err := checkMatrix(x, len(y)); err != nil {
		return nil, err
	}
	weights := make([]float64, len(y))
	for i := range weights {
		weights[i] = 1
	}
	maxFeatures := cfg.MaxFeatures
	if maxFeatures <= 0 {
		maxFeatures = len(x[0])
	}

	f := &Forest{Kind: Regression, Features: len(x[0])}
	if err := f.fit(ctx, x, y, weights, cfg, maxFeatures); err != nil {
		return nil, err
	}
	return f, nil
}

func checkMatrix(x [][]float64, labels int) error {
	if len(x) == 0 {
		return fmt.Errorf("no training rows")
	}
	if len(x) != labels {
		return fmt.Errorf("%d rows but %d labels", len(x), labels)
	}
	width := len(x[0])
	if width == 0 {
		return fmt.Errorf("no feature columns")
	}
	for i, row := range x {
		if len(row) != width {
			return fmt.Errorf("row %d has %d columns, expected %d", i, len(row), width)
		}
	}
	return nil
}

func (f *Forest) fit(ctx context.Context, x [][]float64, y, w []float64, cfg ForestConfig, maxFeatures int) error {
	if cfg.Trees <= 0 {
		return fmt.Errorf("tree count must be positive, got %d", cfg.Trees)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	params := treeParams{
		maxDepth:        cfg.MaxDepth,
		minSamplesSplit: cfg.MinSamplesSplit,
		minSamplesLeaf:  max(cfg.MinSamplesLeaf, 1),
		maxFeatures:     maxFeatures,
		numClasses:      f.Classes,
	}

	trees := make([]Tree, cfg.Trees)
	importances := make([][]float64, cfg.Trees)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < cfg.Trees; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := rand.New(rand.NewSource(cfg.Seed + int64(i)))
			idx := make([]int, len(x))
			for j := range idx {
				if cfg.Bootstrap {
					idx[j] = rng.Intn(len(x))
				} else {
					idx[j] = j
				}
			}
			trees[i], importances[i] = growTree(x, y, w, idx, params, rng)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return fmt.Errorf("fit forest: %w", err)
	}

	f.Trees = trees
	f.Importances = averageImportances(importances, f.Features)
	return nil
}

// averageImportances normalises each tree's impurity decreases to sum to 1
// and averages them across trees. Trees without splits contribute nothing.
func averageImportances(perTree [][]float64, width int) []float64 {
	out := make([]float64, width)
	for _, imp := range perTree {
		var total float64
		for _, v := range imp {
			total += v
		}
		if total <= 0 {
			continue
		}
		for j, v := range imp {
			out[j] += v / total
		}
	}
	var total float64
	for _, v := range out {
		total += v
	}
	if total > 0 {
		for j := range out {
			out[j] /= total
		}
	}
	return out
}

// NumFeatures is the input width the forest was fit on.
func (f *Forest) NumFeatures() int {
	return f.Features
}

// PredictProba averages the leaf class distributions across trees.
func (f *Forest) PredictProba(x []float64) ([]float64, error) {
	if f.Kind != Classification {
		return nil, fmt.Errorf("predict proba: forest is a %s model", f.Kind)
	}
	if len(x) != f.Features {
		return nil, fmt.Errorf("%w: model expects %d features, got %d", ErrFeatureMismatch, f.Features, len(x))
	}
	out := make([]float64, f.Classes)
	for i := range f.Trees {
		for k, p := range f.Trees[i].leaf(x) {
			out[k] += p
		}
	}
	for k := range out {
		out[k] /= float64(len(f.Trees))
	}
	return out, nil
}

// Predict returns the mean leaf value for regression, or the most probable
// class index for classification.
func (f *Forest) Predict(x []float64) (float64, error) {
	if f.Kind == Classification {
		proba, err := f.PredictProba(x)
		if err != nil {
			return 0, err
		}
		best := 0
		for k := range proba {
			if proba[k] > proba[best] {
				best = k
			}
		}
		return float64(best), nil
	}
	if len(x) != f.Features {
		return 0, fmt.Errorf("%w: model expects %d features, got %d", ErrFeatureMismatch, f.Features, len(x))
	}
	var sum float64
	for i := range f.Trees {
		sum += f.Trees[i].leaf(x)[0]
	}
	return sum / float64(len(f.Trees)), nil
}

// Validate checks that a decoded forest is structurally sound.
func (f *Forest) Validate() error {
	if f.Features <= 0 {
		return fmt.Errorf("forest has %d features", f.Features)
	}
	if len(f.Trees) == 0 {
		return fmt.Errorf("forest has no trees")
	}
	valueLen := 1
	switch f.Kind {
	case Classification:
		if f.Classes < 2 {
			return fmt.Errorf("classifier has %d classes", f.Classes)
		}
		valueLen = f.Classes
	case Regression:
	default:
		return fmt.Errorf("unknown forest kind %q", f.Kind)
	}
	for i := range f.Trees {
		if err := f.Trees[i].validate(f.Features, valueLen); err != nil {
			return fmt.Errorf("tree %d: %w", i, err)
		}
	}
	return nil
}
