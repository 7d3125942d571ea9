package storage

import (
	"encoding/json"
	"fmt"

	"smartscholar/internal/features"
	"smartscholar/internal/ml"
)

// Blob names, shared by both backends.
const (
	modelBlobName    = "model"
	scalerBlobName   = "scaler"
	featuresBlobName = "features"
)

type modelBlob struct {
	Version  string           `json:"version"`
	ModelID  features.ModelID `json:"model_id"`
	Metadata ml.Metadata      `json:"metadata"`
	Forest   *ml.Forest       `json:"forest"`
}

type scalerBlob struct {
	Version string `json:"version"`
	*ml.Scaler
}

type featuresBlob struct {
	Version  string   `json:"version"`
	Features []string `json:"features"`
}

type blobs struct {
	model, scaler, features []byte
}

func encode(a *ml.Artifact) (blobs, error) {
	if err := a.Check(); err != nil {
		return blobs{}, fmt.Errorf("refusing to save: %w", err)
	}
	var (
		b   blobs
		err error
	)
	if b.model, err = json.Marshal(modelBlob{Version: a.Version, ModelID: a.ID, Metadata: a.Metadata, Forest: a.Model}); err != nil {
		return blobs{}, fmt.Errorf("marshal model: %w", err)
	}
	if b.scaler, err = json.Marshal(scalerBlob{Version: a.Version, Scaler: a.Scaler}); err != nil {
		return blobs{}, fmt.Errorf("marshal scaler: %w", err)
	}
	if b.features, err = json.MarshalIndent(featuresBlob{Version: a.Version, Features: a.FeatureOrder}, "", "  "); err != nil {
		return blobs{}, fmt.Errorf("marshal features: %w", err)
	}
	return b, nil
}

// decode rebuilds an artifact and verifies that every blob carries the same
// version, and that version is want when want is non-empty.
func decode(id features.ModelID, want string, b blobs) (*ml.Artifact, error) {
	var (
		m modelBlob
		s scalerBlob
		f featuresBlob
	)
	if err := json.Unmarshal(b.model, &m); err != nil {
		return nil, fmt.Errorf("decode %s model: %w", id, err)
	}
	if err := json.Unmarshal(b.scaler, &s); err != nil {
		return nil, fmt.Errorf("decode %s scaler: %w", id, err)
	}
	if err := json.Unmarshal(b.features, &f); err != nil {
		return nil, fmt.Errorf("decode %s features: %w", id, err)
	}

	if m.Version != s.Version || m.Version != f.Version {
		return nil, fmt.Errorf("%w: %s model %q, scaler %q, features %q", ErrVersionMismatch, id, m.Version, s.Version, f.Version)
	}
	if want != "" && m.Version != want {
		return nil, fmt.Errorf("%w: %s expected %q, blobs carry %q", ErrVersionMismatch, id, want, m.Version)
	}
	if m.ModelID != id {
		return nil, fmt.Errorf("%s slot holds a %q model", id, m.ModelID)
	}

	a := &ml.Artifact{
		ID:           id,
		Version:      m.Version,
		Model:        m.Forest,
		Scaler:       s.Scaler,
		FeatureOrder: f.Features,
		Metadata:     m.Metadata,
	}
	if err := a.Check(); err != nil {
		return nil, err
	}
	return a, nil
}
