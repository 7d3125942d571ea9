package ml

import "errors"

var (
	// ErrServiceUnavailable means the model artifacts were not loaded at
	// startup. It persists until the process restarts with valid artifacts.
	ErrServiceUnavailable = errors.New("ML models not available")

	// ErrFeatureMismatch means a feature vector does not line up with the
	// order, scaler or model it is being fed to.
	ErrFeatureMismatch = errors.New("feature order mismatch")
)
