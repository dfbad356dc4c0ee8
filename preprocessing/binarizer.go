package preprocessing

import (
	"github.com/YuminosukeSato/scigo-fixtures/core/model"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Binarizer は閾値より大きい値を1、それ以外を0にする
//
// 学習するパラメータはないため Fit は入力の検証だけを行う
type Binarizer struct {
	model.BaseEstimator

	// Threshold は二値化の閾値
	Threshold float64
}

// NewBinarizer は新しいBinarizerを作成する
func NewBinarizer(threshold float64) *Binarizer {
	return &Binarizer{Threshold: threshold}
}

// Fit は入力が空でないことを確認する
func (b *Binarizer) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("Binarizer.Fit", "empty data", errors.ErrEmptyData)
	}
	b.SetFitted()
	return nil
}

// Transform は各要素を二値化する
func (b *Binarizer) Transform(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewModelError("Binarizer.Transform", "empty data", errors.ErrEmptyData)
	}
	result := mat.NewDense(r, c, nil)
	result.Apply(func(_, _ int, v float64) float64 {
		if v > b.Threshold {
			return 1
		}
		return 0
	}, X)
	return result, nil
}

// FitTransform は Fit と Transform を続けて実行する
func (b *Binarizer) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := b.Fit(X); err != nil {
		return nil, err
	}
	return b.Transform(X)
}
