package preprocessing

import (
	"fmt"
	"math"
	"sort"

	"github.com/YuminosukeSato/scigo-fixtures/core/model"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// ImputeStrategy は欠損値を埋める統計量の種類
type ImputeStrategy string

const (
	// ImputeMean は列の平均で埋める
	ImputeMean ImputeStrategy = "mean"
	// ImputeMedian は列の中央値で埋める
	ImputeMedian ImputeStrategy = "median"
	// ImputeMostFrequent は列の最頻値で埋める（同数の場合は最小値）
	ImputeMostFrequent ImputeStrategy = "most_frequent"
)

// Imputer は列ごとの統計量で欠損値を補完する
type Imputer struct {
	model.BaseEstimator

	// Strategy は補完に使う統計量
	Strategy ImputeStrategy

	// MissingValue は欠損を表す値。NaN の場合は NaN を欠損とみなす
	MissingValue float64

	// Statistics は各列の補完値
	Statistics []float64

	// NFeatures は特徴量の数
	NFeatures int
}

// NewImputer は NaN を欠損として扱うImputerを作成する
//
// 使用例:
//
//	imp := preprocessing.NewImputer(preprocessing.ImputeMean)
//	Xfilled, err := imp.FitTransform(X)
func NewImputer(strategy ImputeStrategy) *Imputer {
	return &Imputer{Strategy: strategy, MissingValue: math.NaN()}
}

func (m *Imputer) isMissing(v float64) bool {
	if math.IsNaN(m.MissingValue) {
		return math.IsNaN(v)
	}
	return v == m.MissingValue
}

// Fit は欠損以外のセルから各列の補完値を計算する
// 観測値が1つもない列はエラーになる
func (m *Imputer) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("Imputer.Fit", "empty data", errors.ErrEmptyData)
	}

	m.NFeatures = c
	m.Statistics = make([]float64, c)
	observed := make([]float64, 0, r)
	for j := 0; j < c; j++ {
		observed = observed[:0]
		for i := 0; i < r; i++ {
			if v := X.At(i, j); !m.isMissing(v) && !math.IsNaN(v) {
				observed = append(observed, v)
			}
		}
		if len(observed) == 0 {
			return errors.NewValueError("Imputer.Fit", fmt.Sprintf("column %d has no observed values", j))
		}

		switch m.Strategy {
		case ImputeMean:
			m.Statistics[j] = stat.Mean(observed, nil)
		case ImputeMedian:
			sort.Float64s(observed)
			n := len(observed)
			if n%2 == 1 {
				m.Statistics[j] = observed[n/2]
			} else {
				m.Statistics[j] = (observed[n/2-1] + observed[n/2]) / 2
			}
		case ImputeMostFrequent:
			sort.Float64s(observed)
			best, bestCount := observed[0], 0
			for i := 0; i < len(observed); {
				k := i
				for k < len(observed) && observed[k] == observed[i] {
					k++
				}
				if k-i > bestCount {
					best, bestCount = observed[i], k-i
				}
				i = k
			}
			m.Statistics[j] = best
		default:
			return errors.NewValidationError("strategy", "must be mean, median or most_frequent", m.Strategy)
		}
	}

	m.SetFitted()
	return nil
}

// Transform は欠損セルを学習した補完値で置き換える
func (m *Imputer) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("Imputer", "Transform")
	}
	r, c := X.Dims()
	if c != m.NFeatures {
		return nil, errors.NewDimensionError("Imputer.Transform", m.NFeatures, c, 1)
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		if m.isMissing(v) {
			return m.Statistics[j]
		}
		return v
	}, X)
	return result, nil
}

// FitTransform は学習と補完を同時に行う
func (m *Imputer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}
