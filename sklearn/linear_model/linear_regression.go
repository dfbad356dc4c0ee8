package linear_model

import (
	"math"

	"github.com/YuminosukeSato/scigo-fixtures/core/model"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// LinearRegression は最小二乗法による線形回帰
// scikit-learnのLinearRegressionと同様に、中心化したデータの最小ノルム解を求める
type LinearRegression struct {
	model.BaseEstimator
	LinearModel

	// ハイパーパラメータ
	FitIntercept bool

	// 診断情報
	Rank           int
	SingularValues []float64
}

// LinearRegressionOption は設定オプション
type LinearRegressionOption func(*LinearRegression)

// WithLRFitIntercept は切片の学習有無を設定（LinearRegression用）
func WithLRFitIntercept(fit bool) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.FitIntercept = fit
	}
}

// NewLinearRegression は新しいLinearRegressionモデルを作成
func NewLinearRegression(options ...LinearRegressionOption) *LinearRegression {
	lr := &LinearRegression{FitIntercept: true}
	for _, opt := range options {
		opt(lr)
	}
	return lr
}

// Fit はモデルを訓練データで学習
//
// 特異値分解で擬似逆行列を作り、rcond = eps·max(n, p)·s_max 未満の特異値は0とみなす。
func (lr *LinearRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LinearRegression.Fit")

	target, err := checkFitInput("LinearRegression.Fit", X, y)
	if err != nil {
		return err
	}
	n, p := X.Dims()
	data := preprocessData(X, mat.NewDense(n, 1, target), lr.FitIntercept)

	u, s, v, err := thinSVD("LinearRegression.Fit", data.X)
	if err != nil {
		return err
	}
	cutoff := 0.0
	if len(s) > 0 {
		cutoff = s[0] * float64(max(n, p)) * eps
	}

	var uty mat.VecDense
	uty.MulVec(u.T(), data.Y.ColView(0))
	rank := 0
	for i, sv := range s {
		if sv > cutoff {
			uty.SetVec(i, uty.AtVec(i)/sv)
			rank++
		} else {
			uty.SetVec(i, 0)
		}
	}
	var coef mat.VecDense
	coef.MulVec(v, &uty)

	lr.Coefficients = mat.Col(nil, 0, &coef)
	lr.InterceptValue = data.intercept(lr.Coefficients, 0)
	lr.NFeatures = p
	lr.Rank = rank
	lr.SingularValues = s
	lr.SetFitted()
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !lr.IsFitted() {
		return nil, errors.NewNotFittedError("LinearRegression", "Predict")
	}
	return lr.predict("LinearRegression.Predict", X)
}

// Score はモデルの決定係数（R²）を計算
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	return r2Score(lr, X, y)
}

// eps は float64 の計算機イプシロン
var eps = math.Nextafter(1, 2) - 1
