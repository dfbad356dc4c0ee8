package metrics

import (
	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Accuracy は予測ラベルが正解と一致した割合を返す
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	if yTrue == nil || yPred == nil || yTrue.Len() == 0 {
		return 0, errors.NewValueError("Accuracy", "empty vector")
	}
	n := yTrue.Len()
	if yPred.Len() != n {
		return 0, errors.NewDimensionError("Accuracy", n, yPred.Len(), 0)
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// AccuracyScore は n×1 行列の入力に対して Accuracy を計算する
func AccuracyScore(yTrue, yPred mat.Matrix) (float64, error) {
	t, p, err := columnPair("AccuracyScore", yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return Accuracy(t, p)
}
