// Package features defines the student feature schema shared by training and
// serving. It is the single source of truth for feature order, valid ranges
// and request defaults; both the trainer and the inference service consult it
// instead of declaring the order themselves.
package features

import (
	"fmt"
)

// ModelID identifies one of the trained models.
type ModelID string

const (
	Dropout ModelID = "dropout"
	GPA     ModelID = "gpa"
)

// Feature names in canonical order.
const (
	Age                  = "age"
	PreviousGPA          = "previous_gpa"
	CurrentGPA           = "current_gpa"
	AttendanceRate       = "attendance_rate"
	AssignmentCompletion = "assignment_completion"
	StudyHoursPerWeek    = "study_hours_per_week"
	ForumPosts           = "forum_posts"
	DaysSinceLastLogin   = "days_since_last_login"
	FinancialAid         = "financial_aid"
	PartTimeJob          = "part_time_job"
	CommuteTime          = "commute_time"
)

// Label columns of the training dataset.
const (
	DropoutLabel = "dropout_risk"
	GPALabel     = "predicted_gpa"
)

// Feature describes one numeric input.
type Feature struct {
	Name    string  `json:"name"`
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Default float64 `json:"default"`
	Integer bool    `json:"integer"`
}

// catalog is ordered; the GPA set is its first gpaFeatureCount entries.
var catalog = []Feature{
	{Name: Age, Min: 10, Max: 100, Default: 20, Integer: true},
	{Name: PreviousGPA, Min: 0, Max: 4, Default: 3.0},
	{Name: CurrentGPA, Min: 0, Max: 4, Default: 3.0},
	{Name: AttendanceRate, Min: 0, Max: 100, Default: 85.0},
	{Name: AssignmentCompletion, Min: 0, Max: 100, Default: 80.0},
	{Name: StudyHoursPerWeek, Min: 0, Max: 168, Default: 15, Integer: true},
	{Name: ForumPosts, Min: 0, Max: 100000, Default: 10, Integer: true},
	{Name: DaysSinceLastLogin, Min: 0, Max: 3650, Default: 2, Integer: true},
	{Name: FinancialAid, Min: 0, Max: 1, Default: 0, Integer: true},
	{Name: PartTimeJob, Min: 0, Max: 1, Default: 0, Integer: true},
	{Name: CommuteTime, Min: 0, Max: 1440, Default: 30, Integer: true},
}

const gpaFeatureCount = 8

var byName = func() map[string]Feature {
	m := make(map[string]Feature, len(catalog))
	for _, f := range catalog {
		m[f.Name] = f
	}
	return m
}()

// Order returns the canonical ordered feature names for a model. The
// returned slice is a copy and may be modified by the caller.
func Order(id ModelID) ([]string, error) {
	var n int
	switch id {
	case Dropout:
		n = len(catalog)
	case GPA:
		n = gpaFeatureCount
	default:
		return nil, fmt.Errorf("unknown model %q", id)
	}

	names := make([]string, n)
	for i := 0; i < n; i++ {
		names[i] = catalog[i].Name
	}
	return names, nil
}

// Label returns the training label column for a model.
func Label(id ModelID) (string, error) {
	switch id {
	case Dropout:
		return DropoutLabel, nil
	case GPA:
		return GPALabel, nil
	default:
		return "", fmt.Errorf("unknown model %q", id)
	}
}

// Models lists the known model identifiers in training order.
func Models() []ModelID {
	return []ModelID{Dropout, GPA}
}

// Catalog returns a copy of every feature definition in canonical order.
func Catalog() []Feature {
	out := make([]Feature, len(catalog))
	copy(out, catalog)
	return out
}

// Lookup returns the definition of a named feature.
func Lookup(name string) (Feature, bool) {
	f, ok := byName[name]
	return f, ok
}

// SameOrder reports whether got matches want name-for-name.
func SameOrder(want, got []string) error {
	if len(want) != len(got) {
		return fmt.Errorf("expected %d features, got %d", len(want), len(got))
	}
	for i := range want {
		if want[i] != got[i] {
			return fmt.Errorf("feature %d: expected %q, got %q", i, want[i], got[i])
		}
	}
	return nil
}
