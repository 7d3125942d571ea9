package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"

	"smartscholar/internal/features"
	"smartscholar/internal/ml"
	"smartscholar/internal/training"
)

const (
	artifactsBucket = "artifacts" // one nested bucket per model id
	runsBucket      = "runs"      // training reports keyed "<id>_<unixnano>"

	versionKey = "version"
	dbFileName = "smartscholar.db"
)

// Store keeps artifacts and the training run log in BoltDB. An artifact's
// blobs are written in a single transaction, so readers see either the old
// triple or the new one.
type Store struct {
	db *bbolt.DB
}

// New opens (or creates) the database under dataPath, creating the
// directory if needed.
func New(dataPath string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	dbPath := filepath.Join(dataPath, dbFileName)

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(artifactsBucket)); err != nil {
			return fmt.Errorf("create artifacts bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return fmt.Errorf("create runs bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database connection gracefully.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save replaces the artifact for a.ID in one transaction.
func (s *Store) Save(a *ml.Artifact) error {
	b, err := encode(a)
	if err != nil {
		return err
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := tx.Bucket([]byte(artifactsBucket)).CreateBucketIfNotExists([]byte(a.ID))
		if err != nil {
			return fmt.Errorf("create %s bucket: %w", a.ID, err)
		}
		for key, value := range map[string][]byte{
			modelBlobName:    b.model,
			scalerBlobName:   b.scaler,
			featuresBlobName: b.features,
			versionKey:       []byte(a.Version),
		} {
			if err := bucket.Put([]byte(key), value); err != nil {
				return fmt.Errorf("put %s: %w", key, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	log.Info().
		Str("model", string(a.ID)).
		Str("version", a.Version).
		Msg("Artifact saved")
	return nil
}

// Load reads the artifact for id.
func (s *Store) Load(id features.ModelID) (*ml.Artifact, error) {
	var a *ml.Artifact
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(artifactsBucket)).Bucket([]byte(id))
		if bucket == nil {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		// Values are only valid inside the transaction; decode copies them.
		b := blobs{
			model:    bucket.Get([]byte(modelBlobName)),
			scaler:   bucket.Get([]byte(scalerBlobName)),
			features: bucket.Get([]byte(featuresBlobName)),
		}
		if b.model == nil || b.scaler == nil || b.features == nil {
			return fmt.Errorf("%s artifact is incomplete", id)
		}
		var err error
		a, err = decode(id, string(bucket.Get([]byte(versionKey))), b)
		return err
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// RecordRun appends a training report to the run log.
func (s *Store) RecordRun(r *training.Report) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(runsBucket))

		data, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("marshal run: %w", err)
		}

		key := runKey(r.ModelID, r.FinishedAt)
		return b.Put([]byte(key), data)
	})
}

func runKey(id features.ModelID, at time.Time) string {
	return fmt.Sprintf("%s_%d", id, at.UnixNano())
}

// ListRuns returns every recorded run for id, oldest first.
func (s *Store) ListRuns(id features.ModelID) ([]training.Report, error) {
	var runs []training.Report
	prefix := []byte(string(id) + "_")

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var r training.Report
			if err := json.Unmarshal(v, &r); err != nil {
				continue // Skip malformed records
			}
			runs = append(runs, r)
		}
		return nil
	})
	return runs, err
}

// RunsBetween returns runs for id that finished within [start, end].
func (s *Store) RunsBetween(id features.ModelID, start, end time.Time) ([]training.Report, error) {
	var runs []training.Report
	prefix := []byte(string(id) + "_")
	startKey := []byte(runKey(id, start))
	endKey := []byte(runKey(id, end))

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket([]byte(runsBucket)).Cursor()
		for k, v := c.Seek(startKey); k != nil && bytes.Compare(k, endKey) <= 0; k, v = c.Next() {
			if !bytes.HasPrefix(k, prefix) {
				continue
			}
			var r training.Report
			if err := json.Unmarshal(v, &r); err != nil {
				continue
			}
			runs = append(runs, r)
		}
		return nil
	})
	return runs, err
}
