package ml

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"smartscholar/internal/features"
)

// MetricsInterface defines metrics methods needed by the inference service
type MetricsInterface interface {
	MLPredictionsInc()
	MLFailuresInc()
	MLLatencyObserve(float64)
	MLModelAgeSet(model string, seconds float64)
	MLPredictionScoresObserve(float64)
	MLUnavailableInc()
	RiskLevelInc(level string)
}

// RiskLevel is the coarse dropout risk tier shown to users.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

const (
	highRiskAbove   = 60.0
	mediumRiskAbove = 30.0
	maxGPA          = 4.0
)

// Recommendation texts, listed in the order they are emitted.
const (
	RecAttendance  = "⚠️ Improve attendance - aim for at least 85%"
	RecAssignments = "📝 Complete more assignments on time"
	RecLogin       = "🔔 Log in more frequently to stay engaged"
	RecStudy       = "📚 Increase study time - aim for 15+ hours/week"
	RecDecline     = "📉 Your performance may decline - seek help early"
	RecKeepGoing   = "✅ Keep up the good work!"
)

// PredictionResult is the combined dropout and GPA prediction for a student.
type PredictionResult struct {
	DropoutProbability float64   `json:"dropout_probability"`
	DropoutRiskPercent float64   `json:"dropout_risk_percent"`
	PredictedGPA       float64   `json:"predicted_gpa"`
	RiskLevel          RiskLevel `json:"risk_level"`
	Recommendations    []string  `json:"recommendations"`
}

// Service runs both models for a student. Artifacts are fixed at
// construction; a Service is safe for concurrent use.
type Service struct {
	dropout    *Artifact
	gpa        *Artifact
	classifier Classifier
	regressor  Regressor
	reason     error
	metrics    MetricsInterface
}

// NewService validates both artifacts and builds a ready service. Any
// misalignment between schema, feature order, scaler and model is an error.
func NewService(dropout, gpa *Artifact, m MetricsInterface) (*Service, error) {
	if dropout == nil || gpa == nil {
		return nil, fmt.Errorf("both dropout and gpa artifacts are required")
	}
	if dropout.ID != features.Dropout {
		return nil, fmt.Errorf("dropout slot holds %q artifact", dropout.ID)
	}
	if gpa.ID != features.GPA {
		return nil, fmt.Errorf("gpa slot holds %q artifact", gpa.ID)
	}
	for _, a := range []*Artifact{dropout, gpa} {
		if err := a.Check(); err != nil {
			return nil, fmt.Errorf("invalid artifact: %w", err)
		}
	}

	s := &Service{
		dropout:    dropout,
		gpa:        gpa,
		classifier: dropout.Model,
		regressor:  gpa.Model,
		metrics:    m,
	}
	if m != nil {
		for _, a := range []*Artifact{dropout, gpa} {
			if !a.Metadata.TrainedAt.IsZero() {
				m.MLModelAgeSet(string(a.ID), time.Since(a.Metadata.TrainedAt).Seconds())
			}
		}
	}
	log.Info().
		Str("dropout_version", dropout.Version).
		Str("gpa_version", gpa.Version).
		Msg("ML models loaded")
	return s, nil
}

// Unavailable builds a degraded service whose predictions always fail with
// ErrServiceUnavailable.
func Unavailable(reason error, m MetricsInterface) *Service {
	if reason == nil {
		reason = fmt.Errorf("no artifacts loaded")
	}
	log.Warn().Err(reason).Msg("ML models unavailable, predictions disabled")
	return &Service{reason: reason, metrics: m}
}

// Available reports whether both models are loaded.
func (s *Service) Available() bool {
	return s != nil && s.reason == nil && s.classifier != nil && s.regressor != nil
}

// Predict runs the dropout classifier and the GPA regressor for f and derives
// the risk tier and recommendations.
func (s *Service) Predict(f features.StudentFeatures) (*PredictionResult, error) {
	if !s.Available() {
		if s != nil && s.metrics != nil {
			s.metrics.MLUnavailableInc()
		}
		return nil, ErrServiceUnavailable
	}

	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.MLLatencyObserve(time.Since(start).Seconds())
		}
	}()

	if err := f.Validate(); err != nil {
		return nil, err
	}

	result, err := s.predict(f)
	if err != nil {
		if s.metrics != nil {
			s.metrics.MLFailuresInc()
		}
		log.Error().Err(err).Msg("prediction failed")
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.MLPredictionsInc()
		s.metrics.MLPredictionScoresObserve(result.DropoutProbability)
		s.metrics.RiskLevelInc(string(result.RiskLevel))
	}
	return result, nil
}

func (s *Service) predict(f features.StudentFeatures) (*PredictionResult, error) {
	x, err := s.dropout.vector(f)
	if err != nil {
		return nil, fmt.Errorf("dropout features: %w", err)
	}
	proba, err := s.classifier.PredictProba(x)
	if err != nil {
		return nil, fmt.Errorf("dropout model: %w", err)
	}
	if len(proba) < 2 {
		return nil, fmt.Errorf("dropout model returned %d probabilities", len(proba))
	}
	p := clamp(proba[1], 0, 1)

	x, err = s.gpa.vector(f)
	if err != nil {
		return nil, fmt.Errorf("gpa features: %w", err)
	}
	gpa, err := s.regressor.Predict(x)
	if err != nil {
		return nil, fmt.Errorf("gpa model: %w", err)
	}
	gpa = roundTo(clamp(gpa, 0, maxGPA), 2)

	return &PredictionResult{
		DropoutProbability: p,
		DropoutRiskPercent: clamp(math.Round(p*100), 0, 100),
		PredictedGPA:       gpa,
		RiskLevel:          RiskLevelFor(p * 100),
		Recommendations:    Recommend(f, gpa),
	}, nil
}

// RiskLevelFor maps an unrounded dropout percentage to its tier.
func RiskLevelFor(percent float64) RiskLevel {
	switch {
	case percent > highRiskAbove:
		return RiskHigh
	case percent > mediumRiskAbove:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Recommend lists every rule that fires for the student, in fixed order, or
// the single positive message when none does.
func Recommend(f features.StudentFeatures, predictedGPA float64) []string {
	var recs []string
	if f.AttendanceRate < 70 {
		recs = append(recs, RecAttendance)
	}
	if f.AssignmentCompletion < 70 {
		recs = append(recs, RecAssignments)
	}
	if f.DaysSinceLastLogin > 5 {
		recs = append(recs, RecLogin)
	}
	if f.StudyHoursPerWeek < 12 {
		recs = append(recs, RecStudy)
	}
	if predictedGPA < f.CurrentGPA {
		recs = append(recs, RecDecline)
	}
	if len(recs) == 0 {
		recs = []string{RecKeepGoing}
	}
	return recs
}

// ArtifactInfo is the public description of a loaded artifact.
type ArtifactInfo struct {
	ModelID     features.ModelID    `json:"model_id"`
	Version     string              `json:"version"`
	Kind        Kind                `json:"kind"`
	TrainedAt   time.Time           `json:"trained_at"`
	Features    []string            `json:"features"`
	Trees       int                 `json:"trees"`
	Metrics     map[string]float64  `json:"metrics,omitempty"`
	Importances []FeatureImportance `json:"feature_importances,omitempty"`
}

// Info describes both loaded models.
func (s *Service) Info() (map[features.ModelID]ArtifactInfo, error) {
	if !s.Available() {
		return nil, ErrServiceUnavailable
	}
	out := make(map[features.ModelID]ArtifactInfo, 2)
	for _, a := range []*Artifact{s.dropout, s.gpa} {
		order := make([]string, len(a.FeatureOrder))
		copy(order, a.FeatureOrder)
		out[a.ID] = ArtifactInfo{
			ModelID:     a.ID,
			Version:     a.Version,
			Kind:        a.Model.Kind,
			TrainedAt:   a.Metadata.TrainedAt,
			Features:    order,
			Trees:       len(a.Model.Trees),
			Metrics:     a.Metadata.Metrics,
			Importances: a.Metadata.Importances,
		}
	}
	return out, nil
}

// Reason is why the service is unavailable, or nil.
func (s *Service) Reason() error {
	if s == nil {
		return ErrServiceUnavailable
	}
	return s.reason
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
