package training

import (
	"math"
	"math/rand"
	"slices"

	"smartscholar/internal/dataset"
)

// Split holds row indices of the train and test partitions.
type Split struct {
	Train []int
	Test  []int
}

// testSize rounds the test share up so a non-zero fraction always tests on
// at least one row.
func testSize(n int, fraction float64) int {
	return int(math.Ceil(float64(n) * fraction))
}

// RandomSplit shuffles n rows and holds out a fraction for testing.
func RandomSplit(n int, fraction float64, seed int64) (Split, error) {
	if fraction <= 0 || fraction >= 1 {
		return Split{}, dataset.Errorf("split", "test fraction must be in (0,1), got %v", fraction)
	}
	nTest := testSize(n, fraction)
	if n < 2 || nTest >= n {
		return Split{}, dataset.Errorf("split", "%d rows is too few to hold out %v for testing", n, fraction)
	}

	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return Split{Train: perm[nTest:], Test: perm[:nTest]}, nil
}

// StratifiedSplit holds out a fraction of each class so both partitions keep
// the label distribution. Every class needs at least two rows, one for each
// partition.
func StratifiedSplit(labels []int, fraction float64, seed int64) (Split, error) {
	if fraction <= 0 || fraction >= 1 {
		return Split{}, dataset.Errorf("split", "test fraction must be in (0,1), got %v", fraction)
	}

	byClass := map[int][]int{}
	classes := []int{}
	for i, y := range labels {
		if _, seen := byClass[y]; !seen {
			classes = append(classes, y)
		}
		byClass[y] = append(byClass[y], i)
	}

	rng := rand.New(rand.NewSource(seed))
	var s Split
	slices.Sort(classes)
	for _, c := range classes {
		rows := byClass[c]
		if len(rows) < 2 {
			return Split{}, dataset.Errorf("split", "class %d has %d example(s), need at least 2", c, len(rows))
		}
		rng.Shuffle(len(rows), func(a, b int) { rows[a], rows[b] = rows[b], rows[a] })

		nTest := int(math.Round(float64(len(rows)) * fraction))
		nTest = max(1, min(nTest, len(rows)-1))
		s.Test = append(s.Test, rows[:nTest]...)
		s.Train = append(s.Train, rows[nTest:]...)
	}
	rng.Shuffle(len(s.Train), func(a, b int) { s.Train[a], s.Train[b] = s.Train[b], s.Train[a] })
	rng.Shuffle(len(s.Test), func(a, b int) { s.Test[a], s.Test[b] = s.Test[b], s.Test[a] })
	return s, nil
}

func pick[T any](values []T, idx []int) []T {
	out := make([]T, len(idx))
	for k, i := range idx {
		out[k] = values[i]
	}
	return out
}
