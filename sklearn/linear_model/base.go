// Package linear_model は線形モデルと交差検証付きの正則化線形モデルを提供する
package linear_model

import (
	"math"

	"github.com/YuminosukeSato/scigo-fixtures/core/model"
	"github.com/YuminosukeSato/scigo-fixtures/metrics"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"github.com/YuminosukeSato/scigo-fixtures/sklearn/tree"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func init() {
	model.Register(&LinearRegression{})
	model.Register(&RidgeCV{})
	model.Register(&RidgeClassifierCV{})
	model.Register(&LassoCV{})
	model.Register(&ElasticNetCV{})
	model.Register(&LogisticRegression{})
	model.Register(&LogisticRegressionCV{})
}

// LinearModel は y = X·w + b の形の学習済みパラメータ
type LinearModel struct {
	Coefficients   []float64
	InterceptValue float64
	NFeatures      int
}

// Coef は学習された重み係数を返す
func (m *LinearModel) Coef() []float64 {
	return append([]float64(nil), m.Coefficients...)
}

// Intercept は学習された切片を返す
func (m *LinearModel) Intercept() float64 {
	return m.InterceptValue
}

func (m *LinearModel) predict(op string, X mat.Matrix) (mat.Matrix, error) {
	if err := checkPredictInput(op, X, m.NFeatures); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	var out mat.VecDense
	out.MulVec(X, mat.NewVecDense(len(m.Coefficients), m.Coefficients))
	res := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		res.Set(i, 0, out.AtVec(i)+m.InterceptValue)
	}
	return res, nil
}

// LinearClassifier は One-vs-Rest の決定関数 X·Wᵀ + b を持つ分類器の学習済みパラメータ
//
// 二値分類では Coefficients は1行で、決定関数が正なら2番目のクラスになる。
type LinearClassifier struct {
	ClassValues    []float64
	Coefficients   [][]float64
	InterceptValue []float64
	NFeatures      int
}

// Classes は学習時に見たクラスラベルを返す
func (m *LinearClassifier) Classes() []float64 {
	return append([]float64(nil), m.ClassValues...)
}

// Coef は係数行列 (1 × n_features または n_classes × n_features) を返す
func (m *LinearClassifier) Coef() [][]float64 {
	out := make([][]float64, len(m.Coefficients))
	for i, row := range m.Coefficients {
		out[i] = append([]float64(nil), row...)
	}
	return out
}

// Intercept は切片を返す
func (m *LinearClassifier) Intercept() []float64 {
	return append([]float64(nil), m.InterceptValue...)
}

func (m *LinearClassifier) decisionFunction(op string, X mat.Matrix) (*mat.Dense, error) {
	if err := checkPredictInput(op, X, m.NFeatures); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	k := len(m.Coefficients)
	W := mat.NewDense(k, m.NFeatures, nil)
	for i, row := range m.Coefficients {
		W.SetRow(i, row)
	}
	var scores mat.Dense
	scores.Mul(X, W.T())
	out := mat.NewDense(r, k, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < k; j++ {
			out.Set(i, j, scores.At(i, j)+m.InterceptValue[j])
		}
	}
	return out, nil
}

func (m *LinearClassifier) predictClasses(scores *mat.Dense) *mat.Dense {
	r, k := scores.Dims()
	if k == 1 {
		out := mat.NewDense(r, 1, nil)
		for i := 0; i < r; i++ {
			if scores.At(i, 0) > 0 {
				out.Set(i, 0, m.ClassValues[1])
			} else {
				out.Set(i, 0, m.ClassValues[0])
			}
		}
		return out
	}
	return tree.ArgmaxClasses(scores, m.ClassValues)
}

// centered は X と Y を列ごとに中心化したコピーとその平均を返す
// fitIntercept が false の場合は平均を0とする
type centered struct {
	X       *mat.Dense
	Y       *mat.Dense
	XOffset []float64
	YOffset []float64
}

func preprocessData(X mat.Matrix, Y mat.Matrix, fitIntercept bool) centered {
	n, p := X.Dims()
	_, k := Y.Dims()
	c := centered{
		X:       mat.DenseCopyOf(X),
		Y:       mat.DenseCopyOf(Y),
		XOffset: make([]float64, p),
		YOffset: make([]float64, k),
	}
	if !fitIntercept {
		return c
	}
	col := make([]float64, n)
	for j := 0; j < p; j++ {
		mat.Col(col, j, c.X)
		c.XOffset[j] = stat.Mean(col, nil)
		floats.AddConst(-c.XOffset[j], col)
		c.X.SetCol(j, col)
	}
	for j := 0; j < k; j++ {
		mat.Col(col, j, c.Y)
		c.YOffset[j] = stat.Mean(col, nil)
		floats.AddConst(-c.YOffset[j], col)
		c.Y.SetCol(j, col)
	}
	return c
}

// intercept は中心化したデータで求めた係数から元の空間の切片を計算する
func (c centered) intercept(coef []float64, k int) float64 {
	return c.YOffset[k] - floats.Dot(c.XOffset, coef)
}

// thinSVD は X = U·diag(s)·Vᵀ を求める
func thinSVD(op string, X mat.Matrix) (*mat.Dense, []float64, *mat.Dense, error) {
	var svd mat.SVD
	if ok := svd.Factorize(X, mat.SVDThin); !ok {
		return nil, nil, nil, errors.NewModelError(op, "SVD did not converge", errors.ErrSingularMatrix)
	}
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	return &u, svd.Values(nil), &v, nil
}

func checkFitInput(op string, X, y mat.Matrix) ([]float64, error) {
	if y == nil {
		return nil, errors.NewValueError(op, "y is required")
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	target, err := tree.Target(y)
	if err != nil {
		return nil, err
	}
	if len(target) != r {
		return nil, errors.NewDimensionError(op, r, len(target), 0)
	}
	if err := errors.CheckMatrix(op, X, r, c); err != nil {
		return nil, err
	}
	if err := errors.CheckNumericalStability(op, target, 0); err != nil {
		return nil, err
	}
	return target, nil
}

func checkPredictInput(op string, X mat.Matrix, nFeatures int) error {
	r, c := X.Dims()
	if r == 0 {
		return errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if c != nFeatures {
		return errors.NewDimensionError(op, nFeatures, c, 1)
	}
	return nil
}

// r2Score は回帰モデルの決定係数を返す
func r2Score(m model.Predictor, X, y mat.Matrix) (float64, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2ScoreMatrix(y, pred)
}

// accuracyScore は分類モデルの正解率を返す
func accuracyScore(m model.Predictor, X, y mat.Matrix) (float64, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyScore(y, pred)
}

// logspace は 10^start から 10^stop までを対数等間隔に n 点並べる
func logspace(start, stop float64, n int) []float64 {
	out := make([]float64, n)
	if n == 1 {
		out[0] = math.Pow(10, stop)
		return out
	}
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = math.Pow(10, start+step*float64(i))
	}
	return out
}
