// Package ml holds the models behind student outcome prediction: a random
// forest with its feature scaler, the artifact bundle that pairs them with a
// persisted feature order, and the inference service that turns raw model
// output into risk tiers and recommendations.
package ml

// Classifier produces class probabilities for a scaled feature vector.
type Classifier interface {
	// PredictProba returns one probability per class, index 1 being the
	// positive class.
	PredictProba(x []float64) ([]float64, error)

	// NumFeatures is the expected input width.
	NumFeatures() int
}

// Regressor produces a continuous estimate for a scaled feature vector.
type Regressor interface {
	Predict(x []float64) (float64, error)
	NumFeatures() int
}
