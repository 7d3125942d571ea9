package ml

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartscholar/internal/features"
)

func TestRiskLevelFor(t *testing.T) {
	tests := []struct {
		percent float64
		want    RiskLevel
	}{
		{0, RiskLow},
		{30.0, RiskLow},
		{30.1, RiskMedium},
		{60.0, RiskMedium},
		{60.1, RiskHigh},
		{100, RiskHigh},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.percent), func(t *testing.T) {
			assert.Equal(t, tt.want, RiskLevelFor(tt.percent))
		})
	}
}

func TestRecommend_AllRulesInOrder(t *testing.T) {
	f := features.Defaults()
	f.AttendanceRate = 50
	f.AssignmentCompletion = 50
	f.DaysSinceLastLogin = 10
	f.StudyHoursPerWeek = 5
	f.CurrentGPA = 3.0

	assert.Equal(t, []string{
		RecAttendance,
		RecAssignments,
		RecLogin,
		RecStudy,
		RecDecline,
	}, Recommend(f, 2.4))
}

func TestRecommend_Additive(t *testing.T) {
	low := features.Defaults()
	low.AttendanceRate = 69
	low.StudyHoursPerWeek = 8
	high := low
	high.AttendanceRate = 71

	withAttendance := Recommend(low, 3.2)
	without := Recommend(high, 3.2)
	assert.Equal(t, append([]string{RecAttendance}, without...), withAttendance)
	assert.Equal(t, []string{RecStudy}, without)
}

func TestRecommend_KeepGoing(t *testing.T) {
	assert.Equal(t, []string{RecKeepGoing}, Recommend(features.Defaults(), 3.0))
	assert.Equal(t, []string{RecDecline}, Recommend(features.Defaults(), 2.99))
}

func TestService_PredictWithTrainedModels(t *testing.T) {
	m := &MockMetrics{}
	svc, err := NewService(fitArtifact(t, features.Dropout), fitArtifact(t, features.GPA), m)
	require.NoError(t, err)
	require.True(t, svc.Available())

	struggling := features.Defaults()
	struggling.AttendanceRate = 45
	res, err := svc.Predict(struggling)
	require.NoError(t, err)
	assert.Equal(t, RiskHigh, res.RiskLevel)
	assert.Contains(t, res.Recommendations, RecAttendance)

	engaged := features.Defaults()
	engaged.AttendanceRate = 95
	res, err = svc.Predict(engaged)
	require.NoError(t, err)
	assert.Equal(t, RiskLow, res.RiskLevel)
	assert.GreaterOrEqual(t, res.PredictedGPA, 0.0)
	assert.LessOrEqual(t, res.PredictedGPA, 4.0)

	assert.Equal(t, 2, m.Predictions())
	assert.Equal(t, 1, m.RiskLevels()["high"])
	assert.Contains(t, m.modelAge, "dropout")
	assert.Contains(t, m.modelAge, "gpa")
}

func TestService_Tiers(t *testing.T) {
	tests := []struct {
		p       float64
		percent float64
		want    RiskLevel
	}{
		{0.6, 60, RiskMedium},
		{0.601, 60, RiskHigh},
		{0.25, 25, RiskLow},
		{0.35, 35, RiskMedium},
		{0.999, 100, RiskHigh},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.p), func(t *testing.T) {
			svc, _ := stubService(t, tt.p, 3.1)
			res, err := svc.Predict(features.Defaults())
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.RiskLevel)
			assert.Equal(t, tt.percent, res.DropoutRiskPercent)
			assert.Equal(t, tt.p, res.DropoutProbability)
		})
	}
}

func TestService_Clamping(t *testing.T) {
	svc, _ := stubService(t, 0.2, 5.317)
	res, err := svc.Predict(features.Defaults())
	require.NoError(t, err)
	assert.Equal(t, 4.0, res.PredictedGPA)

	svc, _ = stubService(t, 0.2, -0.4)
	res, err = svc.Predict(features.Defaults())
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.PredictedGPA)

	svc, _ = stubService(t, 0.2, 3.14159)
	res, err = svc.Predict(features.Defaults())
	require.NoError(t, err)
	assert.Equal(t, 3.14, res.PredictedGPA)

	svc, _ = stubService(t, 0, 3)
	svc.classifier = stubClassifier{proba: []float64{-0.3, 1.3}, width: 11}
	res, err = svc.Predict(features.Defaults())
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.DropoutProbability)
	assert.Equal(t, 100.0, res.DropoutRiskPercent)
}

func TestService_ScenarioRecommendations(t *testing.T) {
	svc, _ := stubService(t, 0.8, 2.5)
	f := features.Defaults()
	f.AttendanceRate = 50
	f.AssignmentCompletion = 50
	f.DaysSinceLastLogin = 10
	f.StudyHoursPerWeek = 5
	f.CurrentGPA = 3.0

	res, err := svc.Predict(f)
	require.NoError(t, err)
	assert.Equal(t, []string{RecAttendance, RecAssignments, RecLogin, RecStudy, RecDecline}, res.Recommendations)
}

func TestService_RejectsInvalidInput(t *testing.T) {
	svc, m := stubService(t, 0.5, 3)
	f := features.Defaults()
	f.AttendanceRate = 140

	_, err := svc.Predict(f)
	assert.True(t, errors.Is(err, features.ErrValidation))
	assert.Equal(t, 0, m.Predictions())
}

func TestService_Unavailable(t *testing.T) {
	m := &MockMetrics{}
	svc := Unavailable(errors.New("artifacts missing"), m)
	assert.False(t, svc.Available())
	assert.EqualError(t, svc.Reason(), "artifacts missing")

	_, err := svc.Predict(features.Defaults())
	assert.True(t, errors.Is(err, ErrServiceUnavailable))
	_, err = svc.Predict(features.Defaults())
	assert.True(t, errors.Is(err, ErrServiceUnavailable))
	assert.Equal(t, 2, m.UnavailableCount())

	_, err = svc.Info()
	assert.True(t, errors.Is(err, ErrServiceUnavailable))

	var nilSvc *Service
	_, err = nilSvc.Predict(features.Defaults())
	assert.True(t, errors.Is(err, ErrServiceUnavailable))
}

func TestNewService_DetectsMisalignment(t *testing.T) {
	dropout := fitArtifact(t, features.Dropout)
	gpa := fitArtifact(t, features.GPA)

	t.Run("swapped order", func(t *testing.T) {
		bad := *dropout
		bad.FeatureOrder = mustOrder(t, features.Dropout)
		bad.FeatureOrder[0], bad.FeatureOrder[1] = bad.FeatureOrder[1], bad.FeatureOrder[0]
		_, err := NewService(&bad, gpa, nil)
		assert.True(t, errors.Is(err, ErrFeatureMismatch))
	})

	t.Run("truncated order", func(t *testing.T) {
		bad := *gpa
		bad.FeatureOrder = mustOrder(t, features.GPA)[:7]
		_, err := NewService(dropout, &bad, nil)
		assert.True(t, errors.Is(err, ErrFeatureMismatch))
	})

	t.Run("scaler width", func(t *testing.T) {
		bad := *dropout
		bad.Scaler = gpa.Scaler
		_, err := NewService(&bad, gpa, nil)
		assert.True(t, errors.Is(err, ErrFeatureMismatch))
	})

	t.Run("model width", func(t *testing.T) {
		bad := *gpa
		bad.Model = dropout.Model
		_, err := NewService(dropout, &bad, nil)
		assert.True(t, errors.Is(err, ErrFeatureMismatch))
	})

	t.Run("slots swapped", func(t *testing.T) {
		_, err := NewService(gpa, dropout, nil)
		assert.Error(t, err)
	})

	t.Run("missing artifact", func(t *testing.T) {
		_, err := NewService(dropout, nil, nil)
		assert.Error(t, err)
	})
}

func TestService_Info(t *testing.T) {
	svc, _ := stubService(t, 0.1, 3)
	info, err := svc.Info()
	require.NoError(t, err)
	require.Len(t, info, 2)

	assert.Equal(t, "test-dropout", info[features.Dropout].Version)
	assert.Equal(t, Classification, info[features.Dropout].Kind)
	assert.Equal(t, mustOrder(t, features.GPA), info[features.GPA].Features)
	assert.Equal(t, 15, info[features.GPA].Trees)
}
