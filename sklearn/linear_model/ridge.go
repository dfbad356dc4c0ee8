package linear_model

import (
	"github.com/YuminosukeSato/scigo-fixtures/core/model"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/log"
	"github.com/YuminosukeSato/scigo-fixtures/sklearn/tree"
	"gonum.org/v1/gonum/mat"
)

// RidgeParams はリッジ回帰の交差検証パラメータ
type RidgeParams struct {
	Alphas       []float64
	FitIntercept bool
}

// RidgeOption はRidgeCV/RidgeClassifierCVの設定オプション
type RidgeOption func(*RidgeParams)

// WithAlphas は候補の正則化強度を設定
func WithAlphas(alphas ...float64) RidgeOption {
	return func(p *RidgeParams) {
		p.Alphas = append([]float64(nil), alphas...)
	}
}

// WithRidgeFitIntercept は切片の学習有無を設定
func WithRidgeFitIntercept(fit bool) RidgeOption {
	return func(p *RidgeParams) {
		p.FitIntercept = fit
	}
}

func newRidgeParams(opts []RidgeOption) RidgeParams {
	p := RidgeParams{Alphas: []float64{0.1, 1, 10}, FitIntercept: true}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func (p *RidgeParams) validate() error {
	if len(p.Alphas) == 0 {
		return errors.NewValidationError("alphas", "must not be empty", p.Alphas)
	}
	for _, a := range p.Alphas {
		if a <= 0 {
			return errors.NewValidationError("alphas", "must be strictly positive", a)
		}
	}
	return nil
}

type ridgeResult struct {
	Best     int
	Coef     *mat.Dense // k × p
	CVErrors []float64  // alpha ごとの平均二乗 LOO 誤差
}

// ridgeLOO は一個抜き交差検証 (LOO) で最良の alpha を選び、その係数を返す
//
// 中心化した X = U·diag(s)·Vᵀ に対し、ハット行列の対角
// h_i = Σ_j U_ij²·s_j²/(s_j²+α) (+1/n 切片あり) を使うと
// LOO 残差は (y_i - ŷ_i)/(1 - h_i) で求まる。
func ridgeLOO(op string, data centered, p RidgeParams) (ridgeResult, error) {
	n, nFeatures := data.X.Dims()
	_, k := data.Y.Dims()

	u, s, v, err := thinSVD(op, data.X)
	if err != nil {
		return ridgeResult{}, err
	}
	var uty mat.Dense
	uty.Mul(u.T(), data.Y) // r × k
	r := len(s)

	res := ridgeResult{Best: -1, CVErrors: make([]float64, len(p.Alphas))}
	shrink := make([]float64, r)
	hat := make([]float64, n)
	for a, alpha := range p.Alphas {
		for j, sv := range s {
			shrink[j] = sv * sv / (sv*sv + alpha)
		}
		for i := 0; i < n; i++ {
			h := 0.0
			if p.FitIntercept {
				h = 1 / float64(n)
			}
			for j := 0; j < r; j++ {
				uij := u.At(i, j)
				h += uij * uij * shrink[j]
			}
			hat[i] = h
		}

		total := 0.0
		for i := 0; i < n; i++ {
			for c := 0; c < k; c++ {
				fitted := 0.0
				for j := 0; j < r; j++ {
					fitted += u.At(i, j) * shrink[j] * uty.At(j, c)
				}
				e := errors.SafeDivide(data.Y.At(i, c)-fitted, 1-hat[i])
				total += e * e
			}
		}
		res.CVErrors[a] = total / float64(n*k)
		if res.Best < 0 || res.CVErrors[a] < res.CVErrors[res.Best] {
			res.Best = a
		}
	}

	alpha := p.Alphas[res.Best]
	scaled := mat.NewDense(r, k, nil)
	for j, sv := range s {
		for c := 0; c < k; c++ {
			scaled.Set(j, c, sv/(sv*sv+alpha)*uty.At(j, c))
		}
	}
	var w mat.Dense
	w.Mul(v, scaled) // p × k
	res.Coef = mat.NewDense(k, nFeatures, nil)
	res.Coef.Copy(w.T())
	return res, nil
}

// RidgeCV は一個抜き交差検証で正則化強度を選ぶリッジ回帰
type RidgeCV struct {
	model.BaseEstimator
	LinearModel
	RidgeParams

	AlphaValue float64   // 選ばれた正則化強度
	CVErrors   []float64 // alpha ごとの平均二乗 LOO 誤差
}

// NewRidgeCV は新しいRidgeCVを作成
//
// デフォルト: alphas=(0.1, 1, 10), fit_intercept=true
func NewRidgeCV(opts ...RidgeOption) *RidgeCV {
	return &RidgeCV{RidgeParams: newRidgeParams(opts)}
}

// Fit はモデルを訓練データで学習
func (rc *RidgeCV) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RidgeCV.Fit")

	target, err := checkFitInput("RidgeCV.Fit", X, y)
	if err != nil {
		return err
	}
	if err := rc.validate(); err != nil {
		return err
	}
	n, p := X.Dims()
	data := preprocessData(X, mat.NewDense(n, 1, target), rc.FitIntercept)
	res, err := ridgeLOO("RidgeCV.Fit", data, rc.RidgeParams)
	if err != nil {
		return err
	}

	rc.Coefficients = mat.Row(nil, 0, res.Coef)
	rc.InterceptValue = data.intercept(rc.Coefficients, 0)
	rc.NFeatures = p
	rc.AlphaValue = rc.Alphas[res.Best]
	rc.CVErrors = res.CVErrors
	rc.SetFitted()

	log.GetLoggerWithName("linear_model.ridge").Debug("RidgeCV fitted",
		log.SamplesKey, n,
		log.RegularizationKey, rc.AlphaValue,
	)
	return nil
}

// Predict は入力データに対する予測を行う
func (rc *RidgeCV) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !rc.IsFitted() {
		return nil, errors.NewNotFittedError("RidgeCV", "Predict")
	}
	return rc.predict("RidgeCV.Predict", X)
}

// Score はモデルの決定係数（R²）を計算
func (rc *RidgeCV) Score(X, y mat.Matrix) (float64, error) {
	return r2Score(rc, X, y)
}

// RidgeClassifierCV は ±1 に符号化したラベルへのリッジ回帰による分類器
//
// 確率は出力しない。
type RidgeClassifierCV struct {
	model.BaseEstimator
	LinearClassifier
	RidgeParams

	AlphaValue float64
	CVErrors   []float64
}

// NewRidgeClassifierCV は新しいRidgeClassifierCVを作成
func NewRidgeClassifierCV(opts ...RidgeOption) *RidgeClassifierCV {
	return &RidgeClassifierCV{RidgeParams: newRidgeParams(opts)}
}

// Fit はモデルを訓練データで学習
func (rc *RidgeClassifierCV) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RidgeClassifierCV.Fit")

	target, err := checkFitInput("RidgeClassifierCV.Fit", X, y)
	if err != nil {
		return err
	}
	if err := rc.validate(); err != nil {
		return err
	}
	classes, encoded := tree.EncodeClasses(target)
	if len(classes) < 2 {
		return errors.NewValueError("RidgeClassifierCV.Fit", "y needs samples of at least 2 classes")
	}

	n, p := X.Dims()
	data := preprocessData(X, signedIndicators(encoded, len(classes)), rc.FitIntercept)
	res, err := ridgeLOO("RidgeClassifierCV.Fit", data, rc.RidgeParams)
	if err != nil {
		return err
	}

	k, _ := res.Coef.Dims()
	rc.Coefficients = make([][]float64, k)
	rc.InterceptValue = make([]float64, k)
	for c := 0; c < k; c++ {
		rc.Coefficients[c] = mat.Row(nil, c, res.Coef)
		rc.InterceptValue[c] = data.intercept(rc.Coefficients[c], c)
	}
	rc.ClassValues = classes
	rc.NFeatures = p
	rc.AlphaValue = rc.Alphas[res.Best]
	rc.CVErrors = res.CVErrors
	rc.SetFitted()

	log.GetLoggerWithName("linear_model.ridge").Debug("RidgeClassifierCV fitted",
		log.SamplesKey, n,
		log.ClassesKey, len(classes),
		log.RegularizationKey, rc.AlphaValue,
	)
	return nil
}

// DecisionFunction は各クラスの決定関数の値を返す（二値分類では1列）
func (rc *RidgeClassifierCV) DecisionFunction(X mat.Matrix) (*mat.Dense, error) {
	if !rc.IsFitted() {
		return nil, errors.NewNotFittedError("RidgeClassifierCV", "DecisionFunction")
	}
	return rc.decisionFunction("RidgeClassifierCV.DecisionFunction", X)
}

// Predict は決定関数が最大のクラスを返す
func (rc *RidgeClassifierCV) Predict(X mat.Matrix) (mat.Matrix, error) {
	scores, err := rc.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	return rc.predictClasses(scores), nil
}

// Score は正解率を返す
func (rc *RidgeClassifierCV) Score(X, y mat.Matrix) (float64, error) {
	return accuracyScore(rc, X, y)
}

// signedIndicators はクラス番号を ±1 の指示行列にする
// 二値なら2番目のクラスを +1 とする1列、多クラスならクラスごとの列になる
func signedIndicators(encoded []float64, nClasses int) *mat.Dense {
	cols := nClasses
	if nClasses == 2 {
		cols = 1
	}
	Y := mat.NewDense(len(encoded), cols, nil)
	for i, c := range encoded {
		for j := 0; j < cols; j++ {
			target := j
			if cols == 1 {
				target = 1
			}
			if int(c) == target {
				Y.Set(i, j, 1)
			} else {
				Y.Set(i, j, -1)
			}
		}
	}
	return Y
}
