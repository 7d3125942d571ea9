package ml

import (
	"fmt"
	"sort"
)

// FeatureImportance is one feature's share of the total impurity decrease.
type FeatureImportance struct {
	Name       string  `json:"name"`
	Importance float64 `json:"importance"`
}

// RankImportances pairs importances with feature names and sorts them in
// descending order. Ties keep feature order.
func RankImportances(names []string, importances []float64) ([]FeatureImportance, error) {
	if len(names) != len(importances) {
		return nil, fmt.Errorf("%w: %d names for %d importances", ErrFeatureMismatch, len(names), len(importances))
	}
	ranked := make([]FeatureImportance, len(names))
	for i, name := range names {
		ranked[i] = FeatureImportance{Name: name, Importance: importances[i]}
	}
	sort.SliceStable(ranked, func(a, b int) bool {
		return ranked[a].Importance > ranked[b].Importance
	})
	return ranked, nil
}

// TopFeatures returns the names of the n most important features.
func TopFeatures(ranked []FeatureImportance, n int) []string {
	if n > len(ranked) {
		n = len(ranked)
	}
	if n < 0 {
		n = 0
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = ranked[i].Name
	}
	return out
}
