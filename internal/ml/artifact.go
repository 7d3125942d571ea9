package ml

import (
	"fmt"
	"time"

	"smartscholar/internal/features"
)

// Metadata describes how and when an artifact was trained.
type Metadata struct {
	TrainedAt   time.Time           `json:"trained_at"`
	TrainRows   int                 `json:"train_rows"`
	TestRows    int                 `json:"test_rows"`
	Metrics     map[string]float64  `json:"metrics,omitempty"`
	Importances []FeatureImportance `json:"feature_importances,omitempty"`
}

// Artifact is a trained model together with the scaler and feature order it
// was trained with. The three travel as a unit under one version id.
type Artifact struct {
	ID           features.ModelID `json:"model_id"`
	Version      string           `json:"version"`
	Model        *Forest          `json:"-"`
	Scaler       *Scaler          `json:"-"`
	FeatureOrder []string         `json:"features"`
	Metadata     Metadata         `json:"metadata"`
}

// Check verifies the artifact against the schema for its model id and for
// internal consistency between order, scaler and model.
func (a *Artifact) Check() error {
	if a == nil {
		return fmt.Errorf("nil artifact")
	}
	if a.Version == "" {
		return fmt.Errorf("%s artifact: empty version", a.ID)
	}
	want, err := features.Order(a.ID)
	if err != nil {
		return err
	}
	if err := features.SameOrder(want, a.FeatureOrder); err != nil {
		return fmt.Errorf("%w: %s artifact: %v", ErrFeatureMismatch, a.ID, err)
	}

	if a.Scaler == nil {
		return fmt.Errorf("%s artifact: missing scaler", a.ID)
	}
	if err := a.Scaler.validate(); err != nil {
		return fmt.Errorf("%s artifact: %w", a.ID, err)
	}
	if a.Scaler.Width() != len(want) {
		return fmt.Errorf("%w: %s scaler has width %d, order has %d", ErrFeatureMismatch, a.ID, a.Scaler.Width(), len(want))
	}

	if a.Model == nil {
		return fmt.Errorf("%s artifact: missing model", a.ID)
	}
	if err := a.Model.Validate(); err != nil {
		return fmt.Errorf("%s artifact: %w", a.ID, err)
	}
	if a.Model.NumFeatures() != len(want) {
		return fmt.Errorf("%w: %s model has width %d, order has %d", ErrFeatureMismatch, a.ID, a.Model.NumFeatures(), len(want))
	}

	wantKind := Regression
	if a.ID == features.Dropout {
		wantKind = Classification
	}
	if a.Model.Kind != wantKind {
		return fmt.Errorf("%s artifact: expected %s model, got %s", a.ID, wantKind, a.Model.Kind)
	}
	if wantKind == Classification && a.Model.Classes != 2 {
		return fmt.Errorf("%s artifact: expected binary classifier, got %d classes", a.ID, a.Model.Classes)
	}
	return nil
}

// vector assembles, then scales, the model input for f.
func (a *Artifact) vector(f features.StudentFeatures) ([]float64, error) {
	raw, err := f.Assemble(a.FeatureOrder)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeatureMismatch, err)
	}
	return a.Scaler.Transform(raw)
}
