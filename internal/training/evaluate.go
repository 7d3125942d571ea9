package training

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// ClassMetrics are precision, recall and F1 for one class.
type ClassMetrics struct {
	Label     string  `json:"label"`
	Precision float64 `json:"precision"`
	Recall    float64 `json:"recall"`
	F1        float64 `json:"f1"`
	Support   int     `json:"support"`
}

// ClassificationMetrics summarise classifier performance on held-out rows.
type ClassificationMetrics struct {
	Accuracy float64 `json:"accuracy"`
	// Confusion[i][j] counts rows of true class i predicted as class j.
	Confusion [][]int        `json:"confusion_matrix"`
	Classes   []ClassMetrics `json:"classes"`
}

// RegressionMetrics summarise regressor performance on held-out rows.
type RegressionMetrics struct {
	MAE  float64 `json:"mae"`
	RMSE float64 `json:"rmse"`
	R2   float64 `json:"r2"`
}

// EvaluateClassifier scores predictions against truth. Undefined ratios
// (no predictions or no support for a class) are reported as 0.
func EvaluateClassifier(truth, pred []int, names []string) ClassificationMetrics {
	k := len(names)
	confusion := make([][]int, k)
	for i := range confusion {
		confusion[i] = make([]int, k)
	}

	correct := 0
	for i := range truth {
		if truth[i] == pred[i] {
			correct++
		}
		if truth[i] >= 0 && truth[i] < k && pred[i] >= 0 && pred[i] < k {
			confusion[truth[i]][pred[i]]++
		}
	}

	m := ClassificationMetrics{Confusion: confusion}
	if len(truth) > 0 {
		m.Accuracy = float64(correct) / float64(len(truth))
	}

	for c := 0; c < k; c++ {
		tp := confusion[c][c]
		var predicted, support int
		for j := 0; j < k; j++ {
			predicted += confusion[j][c]
			support += confusion[c][j]
		}
		cm := ClassMetrics{Label: names[c], Support: support}
		cm.Precision = ratio(tp, predicted)
		cm.Recall = ratio(tp, support)
		if cm.Precision+cm.Recall > 0 {
			cm.F1 = 2 * cm.Precision * cm.Recall / (cm.Precision + cm.Recall)
		}
		m.Classes = append(m.Classes, cm)
	}
	return m
}

// EvaluateRegressor computes MAE, RMSE and R² of estimates against truth.
func EvaluateRegressor(truth, pred []float64) RegressionMetrics {
	if len(truth) == 0 {
		return RegressionMetrics{}
	}
	var absSum, sqSum float64
	for i := range truth {
		d := pred[i] - truth[i]
		absSum += math.Abs(d)
		sqSum += d * d
	}
	n := float64(len(truth))
	r2 := stat.RSquaredFrom(pred, truth, nil)
	// Constant truth leaves R² undefined.
	if math.IsNaN(r2) || math.IsInf(r2, 0) {
		r2 = 0
	}
	return RegressionMetrics{
		MAE:  absSum / n,
		RMSE: math.Sqrt(sqSum / n),
		R2:   r2,
	}
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}
