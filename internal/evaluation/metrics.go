package evaluation

import (
	"fmt"
	"math"
	"sort"
)

// MetricNames is the column order of the results file.
var MetricNames = []string{"Accuracy", "Specifity", "Recall", "ROC_AUC", "Precision", "Kappa"}

// BinaryMetrics scores hard 0/1 predictions with 1 as the positive class.
type BinaryMetrics struct {
	Accuracy    float64 `json:"accuracy"`
	Specificity float64 `json:"specificity"`
	Recall      float64 `json:"recall"`
	ROCAUC      float64 `json:"roc_auc"`
	Precision   float64 `json:"precision"`
	Kappa       float64 `json:"kappa"`

	TP, FP, TN, FN int
}

func CalculateBinaryMetrics(yTrue, yPred []int) (*BinaryMetrics, error) {
	if len(yTrue) != len(yPred) {
		return nil, fmt.Errorf("%d true labels for %d predictions", len(yTrue), len(yPred))
	}
	if len(yTrue) == 0 {
		return nil, fmt.Errorf("no predictions to score")
	}

	m := &BinaryMetrics{}
	for i := range yTrue {
		t, p := yTrue[i], yPred[i]
		if (t != 0 && t != 1) || (p != 0 && p != 1) {
			return nil, fmt.Errorf("row %d: labels must be 0 or 1, got true=%d pred=%d", i, t, p)
		}
		switch {
		case t == 1 && p == 1:
			m.TP++
		case t == 0 && p == 1:
			m.FP++
		case t == 0 && p == 0:
			m.TN++
		default:
			m.FN++
		}
	}

	auc, err := rocAUC(yTrue, yPred)
	if err != nil {
		return nil, err
	}

	n := float64(len(yTrue))
	tp, fp, tn, fn := float64(m.TP), float64(m.FP), float64(m.TN), float64(m.FN)

	m.Accuracy = (tp + tn) / n
	m.Specificity = safeDivide(tn, tn+fp)
	m.Recall = safeDivide(tp, tp+fn)
	m.Precision = safeDivide(tp, tp+fp)
	m.ROCAUC = auc

	pe := ((tp+fn)*(tp+fp) + (tn+fp)*(tn+fn)) / (n * n)
	if pe == 1 {
		m.Kappa = 0
	} else {
		m.Kappa = (m.Accuracy - pe) / (1 - pe)
	}
	return m, nil
}

// Values returns the metrics in MetricNames order.
func (m *BinaryMetrics) Values() []float64 {
	return []float64{m.Accuracy, m.Specificity, m.Recall, m.ROCAUC, m.Precision, m.Kappa}
}

// rocAUC is the Mann-Whitney statistic of score against the binary truth,
// with tied scores sharing their average rank.
func rocAUC(yTrue, score []int) (float64, error) {
	var nPos, nNeg float64
	for _, t := range yTrue {
		if t == 1 {
			nPos++
		} else {
			nNeg++
		}
	}
	if nPos == 0 || nNeg == 0 {
		return 0, fmt.Errorf("roc auc is undefined when only one class is present")
	}

	order := make([]int, len(score))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return score[order[a]] < score[order[b]] })

	var posRanks float64
	for start := 0; start < len(order); {
		end := start
		for end < len(order) && score[order[end]] == score[order[start]] {
			end++
		}
		rank := float64(start+end+1) / 2
		for _, idx := range order[start:end] {
			if yTrue[idx] == 1 {
				posRanks += rank
			}
		}
		start = end
	}

	return (posRanks - nPos*(nPos+1)/2) / (nPos * nNeg), nil
}

func safeDivide(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0.0
	}
	result := numerator / denominator
	if math.IsNaN(result) || math.IsInf(result, 0) {
		return 0.0
	}
	return result
}

// FormatMetrics renders the metrics and confusion counts on one line.
func (m *BinaryMetrics) FormatMetrics() string {
	return fmt.Sprintf("Accuracy: %.4f, Specificity: %.4f, Recall: %.4f, ROC AUC: %.4f, Precision: %.4f, Kappa: %.4f (TP %d, FP %d, TN %d, FN %d)",
		m.Accuracy, m.Specificity, m.Recall, m.ROCAUC, m.Precision, m.Kappa, m.TP, m.FP, m.TN, m.FN)
}
