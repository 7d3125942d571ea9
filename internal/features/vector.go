package features

import (
	"fmt"
	"math"
)

// Input is a prediction request as received from a client. Nil fields take
// the schema default.
type Input struct {
	Age                  *float64 `json:"age,omitempty"`
	PreviousGPA          *float64 `json:"previous_gpa,omitempty"`
	CurrentGPA           *float64 `json:"current_gpa,omitempty"`
	AttendanceRate       *float64 `json:"attendance_rate,omitempty"`
	AssignmentCompletion *float64 `json:"assignment_completion,omitempty"`
	StudyHoursPerWeek    *float64 `json:"study_hours_per_week,omitempty"`
	ForumPosts           *float64 `json:"forum_posts,omitempty"`
	DaysSinceLastLogin   *float64 `json:"days_since_last_login,omitempty"`
	FinancialAid         *float64 `json:"financial_aid,omitempty"`
	PartTimeJob          *float64 `json:"part_time_job,omitempty"`
	CommuteTime          *float64 `json:"commute_time,omitempty"`
}

// StudentFeatures is a fully resolved feature set, every field present.
type StudentFeatures struct {
	Age                  float64 `json:"age"`
	PreviousGPA          float64 `json:"previous_gpa"`
	CurrentGPA           float64 `json:"current_gpa"`
	AttendanceRate       float64 `json:"attendance_rate"`
	AssignmentCompletion float64 `json:"assignment_completion"`
	StudyHoursPerWeek    float64 `json:"study_hours_per_week"`
	ForumPosts           float64 `json:"forum_posts"`
	DaysSinceLastLogin   float64 `json:"days_since_last_login"`
	FinancialAid         float64 `json:"financial_aid"`
	PartTimeJob          float64 `json:"part_time_job"`
	CommuteTime          float64 `json:"commute_time"`
}

// Defaults returns the feature set a client gets by sending an empty request.
func Defaults() StudentFeatures {
	var f StudentFeatures
	for _, def := range catalog {
		*f.field(def.Name) = def.Default
	}
	return f
}

// Resolve fills omitted fields with defaults and validates every value
// against the schema.
func (in Input) Resolve() (StudentFeatures, error) {
	f := Defaults()
	supplied := map[string]*float64{
		Age:                  in.Age,
		PreviousGPA:          in.PreviousGPA,
		CurrentGPA:           in.CurrentGPA,
		AttendanceRate:       in.AttendanceRate,
		AssignmentCompletion: in.AssignmentCompletion,
		StudyHoursPerWeek:    in.StudyHoursPerWeek,
		ForumPosts:           in.ForumPosts,
		DaysSinceLastLogin:   in.DaysSinceLastLogin,
		FinancialAid:         in.FinancialAid,
		PartTimeJob:          in.PartTimeJob,
		CommuteTime:          in.CommuteTime,
	}

	// Walk the catalog so the first reported error is stable.
	for _, def := range catalog {
		v := supplied[def.Name]
		if v == nil {
			continue
		}
		*f.field(def.Name) = *v
	}
	if err := f.Validate(); err != nil {
		return StudentFeatures{}, err
	}
	return f, nil
}

// Validate checks every field against its declared range and type.
func (f StudentFeatures) Validate() error {
	for _, def := range catalog {
		v := *f.field(def.Name)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return invalid(def.Name, "must be a finite number")
		}
		if def.Integer && v != math.Trunc(v) {
			return invalid(def.Name, "must be an integer, got %v", v)
		}
		if v < def.Min || v > def.Max {
			return invalid(def.Name, "must be between %v and %v, got %v", def.Min, def.Max, v)
		}
	}
	return nil
}

// Value returns a named feature.
func (f StudentFeatures) Value(name string) (float64, bool) {
	p := f.field(name)
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Assemble builds a model input vector with values in the given order. An
// unknown name fails rather than shifting every following value.
func (f StudentFeatures) Assemble(order []string) ([]float64, error) {
	if len(order) == 0 {
		return nil, fmt.Errorf("empty feature order")
	}
	vec := make([]float64, len(order))
	for i, name := range order {
		if _, ok := Lookup(name); !ok {
			return nil, fmt.Errorf("feature %d: unknown feature %q", i, name)
		}
		vec[i], _ = f.Value(name)
	}
	return vec, nil
}

func (f *StudentFeatures) field(name string) *float64 {
	switch name {
	case Age:
		return &f.Age
	case PreviousGPA:
		return &f.PreviousGPA
	case CurrentGPA:
		return &f.CurrentGPA
	case AttendanceRate:
		return &f.AttendanceRate
	case AssignmentCompletion:
		return &f.AssignmentCompletion
	case StudyHoursPerWeek:
		return &f.StudyHoursPerWeek
	case ForumPosts:
		return &f.ForumPosts
	case DaysSinceLastLogin:
		return &f.DaysSinceLastLogin
	case FinancialAid:
		return &f.FinancialAid
	case PartTimeJob:
		return &f.PartTimeJob
	case CommuteTime:
		return &f.CommuteTime
	}
	return nil
}
