package errors

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// CheckNumericalStability は values に NaN か Inf があれば
// NumericalInstabilityError を返す
func CheckNumericalStability(operation string, values []float64, iteration int) error {
	for _, v := range values {
		if !finite(v) {
			return NewNumericalInstabilityError(operation, values, iteration)
		}
	}
	return nil
}

// CheckMatrix は行列を行順に調べ、最初に非有限値を含む行を Iteration として報告する
func CheckMatrix(operation string, m interface{ At(int, int) float64 }, rows, cols int) error {
	for i := 0; i < rows; i++ {
		var bad []float64
		for j := 0; j < cols; j++ {
			if v := m.At(i, j); !finite(v) {
				bad = append(bad, v)
			}
		}
		if bad != nil {
			return NewNumericalInstabilityError(operation, bad, i)
		}
	}
	return nil
}

// SafeDivide は分母がほぼ0なら0を返す。
// 空の葉や分散0の成分で 0/0 を避けるのに使う。
func SafeDivide(num, den float64) float64 {
	if math.Abs(den) < 1e-150 {
		return 0
	}
	return num / den
}

// Expit はロジスティック関数。|x| が大きくてもオーバーフローしない。
func Expit(x float64) float64 {
	if x < 0 {
		z := math.Exp(x)
		return z / (1 + z)
	}
	return 1 / (1 + math.Exp(-x))
}

// LogSumExp は log(Σ exp(v))。空なら -Inf。
func LogSumExp(values []float64) float64 {
	if len(values) == 0 {
		return math.Inf(-1)
	}
	return floats.LogSumExp(values)
}
