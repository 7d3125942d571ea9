package dataset

import (
	"fmt"
	"math"
	"math/rand"

	"smartscholar/internal/features"
)

// Student is one synthetic record with its labels.
type Student struct {
	ID           string
	Features     features.StudentFeatures
	PredictedGPA float64
	RiskScore    float64
	DropoutRisk  int
}

// dropoutAbove is the risk score a student must exceed to be labelled at risk.
const dropoutAbove = 60

// Generate produces n synthetic students. The same seed always yields the
// same cohort.
func Generate(n int, seed int64) []Student {
	rng := rand.New(rand.NewSource(seed))
	students := make([]Student, n)
	for i := range students {
		students[i] = generateOne(rng, i)
	}
	return students
}

func generateOne(rng *rand.Rand, i int) Student {
	var f features.StudentFeatures

	f.Age = float64(18 + rng.Intn(8))
	f.PreviousGPA = clamp(round2(normal(rng, 3.0, 0.8)), 0, 4)
	f.AttendanceRate = clamp(round2(normal(rng, 85, 15)), 0, 100)
	f.AssignmentCompletion = clamp(round2(normal(rng, 80, 20)), 0, 100)
	f.StudyHoursPerWeek = math.Max(0, math.Trunc(normal(rng, 15, 8)))
	f.ForumPosts = math.Max(0, math.Trunc(normal(rng, 10, 5)))
	f.DaysSinceLastLogin = math.Max(0, math.Trunc(rng.ExpFloat64()*2))
	f.FinancialAid = float64(rng.Intn(2))
	f.PartTimeJob = float64(rng.Intn(2))
	f.CommuteTime = math.Max(0, math.Trunc(normal(rng, 30, 20)))

	var risk float64
	fired := false
	for _, factor := range []struct {
		hit    bool
		weight float64
	}{
		{f.AttendanceRate < 70, 0.3},
		{f.AssignmentCompletion < 60, 0.25},
		{f.DaysSinceLastLogin > 7, 0.2},
		{f.PreviousGPA < 2.5, 0.3},
		{f.StudyHoursPerWeek < 10, 0.15},
	} {
		if factor.hit {
			risk += factor.weight
			fired = true
		}
	}

	adjustment := f.AttendanceRate/100*0.5 +
		f.AssignmentCompletion/100*0.5 +
		f.StudyHoursPerWeek/30*0.3 -
		f.DaysSinceLastLogin/14*0.2
	f.CurrentGPA = round2(clamp(f.PreviousGPA+adjustment+normal(rng, 0, 0.3), 0, 4))

	score := risk * 100
	if !fired {
		score = float64(5 + rng.Intn(26))
	}
	score = math.Trunc(clamp(score+normal(rng, 0, 10), 0, 100))

	predicted := clamp(round2(f.CurrentGPA+normal(rng, 0, 0.2)), 0, 4)

	s := Student{
		ID:           fmt.Sprintf("STU%04d", i),
		Features:     f,
		PredictedGPA: predicted,
		RiskScore:    score,
	}
	if score > dropoutAbove {
		s.DropoutRisk = 1
	}
	return s
}

func normal(rng *rand.Rand, mean, std float64) float64 {
	return mean + std*rng.NormFloat64()
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
