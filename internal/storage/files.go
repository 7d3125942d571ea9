package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"smartscholar/internal/features"
	"smartscholar/internal/ml"
)

const currentPointer = "CURRENT"

// FileStore keeps artifacts as JSON files under
// <root>/<id>/<version>/{model,scaler,features}.json. A <root>/<id>/CURRENT
// file names the live version and is only swapped once all three blobs of a
// new version are on disk.
type FileStore struct {
	root string
}

// NewFileStore creates the root directory if needed.
func NewFileStore(root string) (*FileStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact directory: %w", err)
	}
	return &FileStore{root: root}, nil
}

// Close is a no-op.
func (s *FileStore) Close() error {
	return nil
}

func blobFile(name string) string {
	return name + ".json"
}

// Save writes a new version directory and then repoints CURRENT at it.
func (s *FileStore) Save(a *ml.Artifact) error {
	if a == nil {
		return fmt.Errorf("nil artifact")
	}
	if strings.ContainsAny(a.Version, `/\`) || a.Version == "." || a.Version == ".." {
		return fmt.Errorf("invalid version %q", a.Version)
	}
	b, err := encode(a)
	if err != nil {
		return err
	}

	modelDir := filepath.Join(s.root, string(a.ID))
	versionDir := filepath.Join(modelDir, a.Version)
	if err := os.MkdirAll(versionDir, 0o755); err != nil {
		return fmt.Errorf("create version directory: %w", err)
	}

	for _, blob := range []struct {
		name string
		data []byte
	}{
		{modelBlobName, b.model},
		{scalerBlobName, b.scaler},
		{featuresBlobName, b.features},
	} {
		if err := writeFileAtomic(filepath.Join(versionDir, blobFile(blob.name)), blob.data); err != nil {
			return fmt.Errorf("write %s blob: %w", blob.name, err)
		}
	}

	if err := writeFileAtomic(filepath.Join(modelDir, currentPointer), []byte(a.Version+"\n")); err != nil {
		return fmt.Errorf("switch current version: %w", err)
	}

	log.Info().
		Str("model", string(a.ID)).
		Str("version", a.Version).
		Str("dir", versionDir).
		Msg("Artifact saved")
	return nil
}

// Current returns the live version id for a model.
func (s *FileStore) Current(id features.ModelID) (string, error) {
	data, err := os.ReadFile(filepath.Join(s.root, string(id), currentPointer))
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("read current version: %w", err)
	}
	version := strings.TrimSpace(string(data))
	if version == "" || strings.ContainsAny(version, `/\`) {
		return "", fmt.Errorf("invalid current version %q for %s", version, id)
	}
	return version, nil
}

// Load follows CURRENT and reads all three blobs of that version.
func (s *FileStore) Load(id features.ModelID) (*ml.Artifact, error) {
	version, err := s.Current(id)
	if err != nil {
		return nil, err
	}

	versionDir := filepath.Join(s.root, string(id), version)
	read := func(name string) ([]byte, error) {
		data, err := os.ReadFile(filepath.Join(versionDir, blobFile(name)))
		if err != nil {
			return nil, fmt.Errorf("read %s %s blob: %w", id, name, err)
		}
		return data, nil
	}

	var b blobs
	if b.model, err = read(modelBlobName); err != nil {
		return nil, err
	}
	if b.scaler, err = read(scalerBlobName); err != nil {
		return nil, err
	}
	if b.features, err = read(featuresBlobName); err != nil {
		return nil, err
	}
	return decode(id, version, b)
}

// writeFileAtomic writes to a temp file in the target directory and renames
// it over path.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
