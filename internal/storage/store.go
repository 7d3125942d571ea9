// Package storage persists trained artifacts. Each artifact is three blobs,
// the model, its scaler and its feature order, all stamped with one version
// id and replaced as a unit so readers never pair blobs from different runs.
package storage

import (
	"errors"
	"fmt"

	"smartscholar/internal/cfg"
	"smartscholar/internal/common"
	"smartscholar/internal/features"
	"smartscholar/internal/ml"
)

// Backends accepted by Open.
const (
	BackendFile = common.StorageBackendFile
	BackendBolt = common.StorageBackendBolt
)

var (
	// ErrNotFound means no artifact has been saved for the model id.
	ErrNotFound = errors.New("artifact not found")

	// ErrVersionMismatch means the blobs of an artifact carry different
	// version ids.
	ErrVersionMismatch = errors.New("artifact version mismatch")
)

// ArtifactStore saves and loads artifacts by model id.
type ArtifactStore interface {
	Save(a *ml.Artifact) error
	Load(id features.ModelID) (*ml.Artifact, error)
	Close() error
}

// Open returns the store for a backend rooted at dir.
func Open(backend, dir string) (ArtifactStore, error) {
	switch backend {
	case BackendFile, "":
		return NewFileStore(dir)
	case BackendBolt:
		return New(dir)
	default:
		return nil, fmt.Errorf("unknown artifact backend %q", backend)
	}
}

// Dir is where a backend keeps its data: the artifact directory for file
// stores, the data path for bolt.
func Dir(backend, artifactDir, dataPath string) string {
	if backend == BackendBolt {
		return dataPath
	}
	return artifactDir
}

// OpenSettings opens the store named by the service settings.
func OpenSettings(s cfg.Settings) (ArtifactStore, error) {
	return Open(s.StorageBackend, Dir(s.StorageBackend, s.ArtifactDir, s.DataPath))
}

// LoadPair loads the dropout and GPA artifacts.
func LoadPair(s ArtifactStore) (dropout, gpa *ml.Artifact, err error) {
	if dropout, err = s.Load(features.Dropout); err != nil {
		return nil, nil, fmt.Errorf("load dropout artifact: %w", err)
	}
	if gpa, err = s.Load(features.GPA); err != nil {
		return nil, nil, fmt.Errorf("load gpa artifact: %w", err)
	}
	return dropout, gpa, nil
}
