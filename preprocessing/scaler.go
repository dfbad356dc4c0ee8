package preprocessing

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/scigo-fixtures/core/model"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// affine は列ごとの一次変換 v*Scale[j] + Offset[j]
//
// StandardScaler と MinMaxScaler はどちらもこの形に落ちるので、
// 変換と逆変換はここで共通化する。NaN はそのまま通す。
func affine(op string, X mat.Matrix, scale, offset []float64) (*mat.Dense, error) {
	r, c := X.Dims()
	if c != len(scale) {
		return nil, errors.NewDimensionError(op, len(scale), c, 1)
	}
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return v*scale[j] + offset[j]
	}, X)
	return out, nil
}

func invertAffine(op string, X mat.Matrix, scale, offset []float64) (*mat.Dense, error) {
	r, c := X.Dims()
	if c != len(scale) {
		return nil, errors.NewDimensionError(op, len(scale), c, 1)
	}
	out := mat.NewDense(r, c, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return (v - offset[j]) / scale[j]
	}, X)
	return out, nil
}

// observed は列 j の NaN でない値を返す
func observed(X mat.Matrix, j int) []float64 {
	r, _ := X.Dims()
	vals := make([]float64, 0, r)
	for i := 0; i < r; i++ {
		if v := X.At(i, j); !math.IsNaN(v) {
			vals = append(vals, v)
		}
	}
	return vals
}

// StandardScaler は各列を平均0・母標準偏差1に揃える。
// 学習時に NaN は無視され、変換時はそのまま残る。
type StandardScaler struct {
	model.BaseEstimator

	Mean      []float64
	Var       []float64 // 母分散
	Scale     []float64 // 標準偏差。分散0の列は1
	NFeatures int

	WithMean bool
	WithStd  bool
}

// NewStandardScaler は新しいStandardScalerを作成する
func NewStandardScaler(withMean, withStd bool) *StandardScaler {
	return &StandardScaler{WithMean: withMean, WithStd: withStd}
}

// NewStandardScalerDefault は平均除去と分散正規化を両方行う
func NewStandardScalerDefault() *StandardScaler {
	return NewStandardScaler(true, true)
}

func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("StandardScaler.Fit", "empty data", errors.ErrEmptyData)
	}

	s.NFeatures = c
	s.Mean = make([]float64, c)
	s.Var = make([]float64, c)
	s.Scale = make([]float64, c)
	for j := 0; j < c; j++ {
		s.Scale[j] = 1
		col := observed(X, j)
		if len(col) == 0 {
			continue
		}
		mean, variance := stat.PopMeanVariance(col, nil)
		s.Var[j] = variance
		if s.WithMean {
			s.Mean[j] = mean
		}
		if s.WithStd && variance > 0 {
			s.Scale[j] = math.Sqrt(variance)
		}
	}

	if err := errors.CheckNumericalStability("StandardScaler.Fit", s.Scale, 0); err != nil {
		return err
	}
	s.SetFitted()
	return nil
}

// coefficients は (v - mean) / scale を v*a + b の形にしたもの
func (s *StandardScaler) coefficients() (a, b []float64) {
	a = make([]float64, len(s.Scale))
	b = make([]float64, len(s.Scale))
	for j := range s.Scale {
		a[j] = 1 / s.Scale[j]
		b[j] = -s.Mean[j] / s.Scale[j]
	}
	return a, b
}

func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.CheckFitted("StandardScaler", "Transform"); err != nil {
		return nil, err
	}
	a, b := s.coefficients()
	return affine("StandardScaler.Transform", X, a, b)
}

func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

func (s *StandardScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.CheckFitted("StandardScaler", "InverseTransform"); err != nil {
		return nil, err
	}
	a, b := s.coefficients()
	return invertAffine("StandardScaler.InverseTransform", X, a, b)
}

func (s *StandardScaler) String() string {
	return fmt.Sprintf("StandardScaler(with_mean=%t, with_std=%t)", s.WithMean, s.WithStd)
}

// MinMaxScaler は各列を FeatureRange に線形に写す。
// 定数列は幅1として扱うので FeatureRange[0] になる。
type MinMaxScaler struct {
	model.BaseEstimator

	DataMin   []float64
	DataMax   []float64
	Scale     []float64 // range / (max - min)
	Min       []float64 // 変換後に足すオフセット
	NFeatures int

	FeatureRange [2]float64
}

// NewMinMaxScaler は新しいMinMaxScalerを作成する
func NewMinMaxScaler(featureRange [2]float64) *MinMaxScaler {
	return &MinMaxScaler{FeatureRange: featureRange}
}

// NewMinMaxScalerDefault は [0, 1] に写すMinMaxScalerを作成する
func NewMinMaxScalerDefault() *MinMaxScaler {
	return NewMinMaxScaler([2]float64{0, 1})
}

func (m *MinMaxScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("MinMaxScaler.Fit", "empty data", errors.ErrEmptyData)
	}
	lo, hi := m.FeatureRange[0], m.FeatureRange[1]
	if lo >= hi {
		return errors.NewValidationError("feature_range", "minimum must be smaller than maximum", m.FeatureRange)
	}

	m.NFeatures = c
	m.DataMin = make([]float64, c)
	m.DataMax = make([]float64, c)
	m.Scale = make([]float64, c)
	m.Min = make([]float64, c)
	for j := 0; j < c; j++ {
		dmin, dmax := math.Inf(1), math.Inf(-1)
		for _, v := range observed(X, j) {
			dmin, dmax = math.Min(dmin, v), math.Max(dmax, v)
		}
		if math.IsInf(dmin, 1) {
			dmin, dmax = 0, 0
		}
		m.DataMin[j], m.DataMax[j] = dmin, dmax

		width := dmax - dmin
		if width == 0 {
			width = 1
		}
		m.Scale[j] = (hi - lo) / width
		m.Min[j] = lo - dmin*m.Scale[j]
	}

	m.SetFitted()
	return nil
}

func (m *MinMaxScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.CheckFitted("MinMaxScaler", "Transform"); err != nil {
		return nil, err
	}
	return affine("MinMaxScaler.Transform", X, m.Scale, m.Min)
}

func (m *MinMaxScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.Fit(X); err != nil {
		return nil, err
	}
	return m.Transform(X)
}

func (m *MinMaxScaler) InverseTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.CheckFitted("MinMaxScaler", "InverseTransform"); err != nil {
		return nil, err
	}
	return invertAffine("MinMaxScaler.InverseTransform", X, m.Scale, m.Min)
}

func (m *MinMaxScaler) String() string {
	return fmt.Sprintf("MinMaxScaler(feature_range=(%g, %g))", m.FeatureRange[0], m.FeatureRange[1])
}
