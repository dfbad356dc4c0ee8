// Package naive_bayes はナイーブベイズ分類器を提供する
package naive_bayes

import (
	"math"
	"sort"

	"github.com/YuminosukeSato/scigo-fixtures/core/model"
	"github.com/YuminosukeSato/scigo-fixtures/metrics"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/log"
	"github.com/YuminosukeSato/scigo-fixtures/sklearn/tree"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

func init() {
	model.Register(&GaussianNB{})
}

// GaussianNB は特徴量がクラスごとに独立な正規分布に従うと仮定する分類器
//
// 分散には var_smoothing × (特徴量の分散の最大値) を加えて数値的に安定させる。
type GaussianNB struct {
	model.BaseEstimator

	// ハイパーパラメータ
	VarSmoothing float64
	Priors       []float64 // nil ならクラス頻度から推定

	// 学習済みパラメータ
	ClassValues []float64
	ClassCount  []float64
	ClassPrior  []float64
	Theta       [][]float64 // クラスごとの平均 (n_classes × n_features)
	Sigma       [][]float64 // クラスごとの分散 (n_classes × n_features)
	Epsilon     float64
	NFeatures   int
}

// GaussianNBOption はGaussianNBの設定オプション
type GaussianNBOption func(*GaussianNB)

// WithVarSmoothing は分散に加える平滑化の割合を設定
func WithVarSmoothing(v float64) GaussianNBOption {
	return func(nb *GaussianNB) {
		nb.VarSmoothing = v
	}
}

// WithPriors はクラスの事前確率を固定する
func WithPriors(priors ...float64) GaussianNBOption {
	return func(nb *GaussianNB) {
		nb.Priors = append([]float64(nil), priors...)
	}
}

// NewGaussianNB は新しいGaussianNBを作成
//
// デフォルト: var_smoothing=1e-9
func NewGaussianNB(opts ...GaussianNBOption) *GaussianNB {
	nb := &GaussianNB{VarSmoothing: 1e-9}
	for _, opt := range opts {
		opt(nb)
	}
	return nb
}

// Fit はモデルを訓練データで学習
func (nb *GaussianNB) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GaussianNB.Fit")

	if y == nil {
		return errors.NewValueError("GaussianNB.Fit", "y is required")
	}
	target, err := tree.Target(y)
	if err != nil {
		return err
	}
	classes, _ := tree.EncodeClasses(target)
	nb.Reset()
	nb.ClassValues = nil
	return nb.partialFit("GaussianNB.Fit", X, target, classes)
}

// PartialFit はミニバッチで逐次学習する
//
// 最初の呼び出しでは classes に全クラスを渡す必要がある。以降は nil でよい。
func (nb *GaussianNB) PartialFit(X, y mat.Matrix, classes []float64) (err error) {
	defer errors.Recover(&err, "GaussianNB.PartialFit")

	if y == nil {
		return errors.NewValueError("GaussianNB.PartialFit", "y is required")
	}
	target, err := tree.Target(y)
	if err != nil {
		return err
	}
	return nb.partialFit("GaussianNB.PartialFit", X, target, classes)
}

func (nb *GaussianNB) partialFit(op string, X mat.Matrix, y, classes []float64) error {
	n, p := X.Dims()
	if n == 0 || p == 0 {
		return errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if len(y) != n {
		return errors.NewDimensionError(op, n, len(y), 0)
	}
	if err := errors.CheckMatrix(op, X, n, p); err != nil {
		return err
	}
	if nb.VarSmoothing < 0 {
		return errors.NewValidationError("var_smoothing", "must be non-negative", nb.VarSmoothing)
	}

	cols := tree.Columns(X)
	maxVar := 0.0
	for _, col := range cols {
		_, v := stat.PopMeanVariance(col, nil)
		maxVar = math.Max(maxVar, v)
	}
	epsilon := nb.VarSmoothing * maxVar

	first := nb.ClassValues == nil
	if first {
		if err := nb.initClasses(op, classes, p); err != nil {
			return err
		}
	} else if p != nb.NFeatures {
		return errors.NewDimensionError(op, nb.NFeatures, p, 1)
	}

	// クラスごとの行をまとめる
	rows := make([][]int, len(nb.ClassValues))
	for i, label := range y {
		c := sort.SearchFloat64s(nb.ClassValues, label)
		if c == len(nb.ClassValues) || nb.ClassValues[c] != label {
			if first {
				nb.ClassValues = nil
			}
			return errors.NewValueError(op, "y contains a label that is not in classes")
		}
		rows[c] = append(rows[c], i)
	}

	if !first {
		for i := range nb.Sigma {
			floats.AddConst(-nb.Epsilon, nb.Sigma[i])
		}
	}
	nb.Epsilon = epsilon

	batch := make([]float64, 0, n)
	for c, idx := range rows {
		if len(idx) == 0 {
			continue
		}
		for j, col := range cols {
			batch = batch[:0]
			for _, i := range idx {
				batch = append(batch, col[i])
			}
			nb.Theta[c][j], nb.Sigma[c][j] = updateMeanVariance(nb.ClassCount[c], nb.Theta[c][j], nb.Sigma[c][j], batch)
		}
		nb.ClassCount[c] += float64(len(idx))
	}

	for i := range nb.Sigma {
		floats.AddConst(nb.Epsilon, nb.Sigma[i])
	}
	if nb.Priors == nil {
		nb.ClassPrior = make([]float64, len(nb.ClassCount))
		floats.ScaleTo(nb.ClassPrior, 1/floats.Sum(nb.ClassCount), nb.ClassCount)
	}
	nb.SetFitted()

	log.GetLoggerWithName("naive_bayes").Debug("GaussianNB fitted",
		log.SamplesKey, n,
		log.ClassesKey, len(nb.ClassValues),
	)
	return nil
}

func (nb *GaussianNB) initClasses(op string, classes []float64, nFeatures int) error {
	if len(classes) == 0 {
		return errors.NewValueError(op, "classes must be passed on the first call to PartialFit")
	}
	values := append([]float64(nil), classes...)
	sort.Float64s(values)
	for i := 1; i < len(values); i++ {
		if values[i] == values[i-1] {
			return errors.NewValidationError("classes", "must be unique", classes)
		}
	}
	k := len(values)

	if nb.Priors != nil {
		if len(nb.Priors) != k {
			return errors.NewDimensionError(op, k, len(nb.Priors), 0)
		}
		if math.Abs(floats.Sum(nb.Priors)-1) > 1e-8 {
			return errors.NewValidationError("priors", "must sum to 1", nb.Priors)
		}
		for _, p := range nb.Priors {
			if p < 0 {
				return errors.NewValidationError("priors", "must be non-negative", nb.Priors)
			}
		}
		nb.ClassPrior = append([]float64(nil), nb.Priors...)
	}

	nb.ClassValues = values
	nb.ClassCount = make([]float64, k)
	nb.Theta = make([][]float64, k)
	nb.Sigma = make([][]float64, k)
	for c := 0; c < k; c++ {
		nb.Theta[c] = make([]float64, nFeatures)
		nb.Sigma[c] = make([]float64, nFeatures)
	}
	nb.NFeatures = nFeatures
	return nil
}

// updateMeanVariance は過去 nPast 個の平均と分散に新しい観測を合成する
//
// 分散は母分散で、二乗偏差和を
// SSD_past + SSD_new + nPast/(nNew·total)·(nNew·μ_past - nNew·μ_new)² と結合する。
func updateMeanVariance(nPast, mu, variance float64, x []float64) (float64, float64) {
	if len(x) == 0 {
		return mu, variance
	}
	newMu, newVar := stat.PopMeanVariance(x, nil)
	if nPast == 0 {
		return newMu, newVar
	}
	nNew := float64(len(x))
	total := nPast + nNew
	totalMu := (nNew*newMu + nPast*mu) / total

	d := nNew*mu - nNew*newMu
	totalSSD := nPast*variance + nNew*newVar + nPast/(nNew*total)*d*d
	return totalMu, totalSSD / total
}

// jointLogLikelihood は log P(c) + log P(x|c) を返す (n_samples × n_classes)
func (nb *GaussianNB) jointLogLikelihood(op string, X mat.Matrix) (*mat.Dense, error) {
	r, c := X.Dims()
	if r == 0 {
		return nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if c != nb.NFeatures {
		return nil, errors.NewDimensionError(op, nb.NFeatures, c, 1)
	}
	k := len(nb.ClassValues)
	jll := mat.NewDense(r, k, nil)
	row := make([]float64, c)
	for cls := 0; cls < k; cls++ {
		base := math.Log(nb.ClassPrior[cls])
		for j := 0; j < c; j++ {
			base -= 0.5 * math.Log(2*math.Pi*nb.Sigma[cls][j])
		}
		for i := 0; i < r; i++ {
			mat.Row(row, i, X)
			s := 0.0
			for j, v := range row {
				d := v - nb.Theta[cls][j]
				s += d * d / nb.Sigma[cls][j]
			}
			jll.Set(i, cls, base-0.5*s)
		}
	}
	return jll, nil
}

// PredictLogProba はクラス確率の対数を返す
func (nb *GaussianNB) PredictLogProba(X mat.Matrix) (mat.Matrix, error) {
	if !nb.IsFitted() {
		return nil, errors.NewNotFittedError("GaussianNB", "PredictLogProba")
	}
	jll, err := nb.jointLogLikelihood("GaussianNB.PredictLogProba", X)
	if err != nil {
		return nil, err
	}
	r, _ := jll.Dims()
	for i := 0; i < r; i++ {
		row := jll.RawRowView(i)
		floats.AddConst(-errors.LogSumExp(row), row)
	}
	return jll, nil
}

// PredictProba はクラス確率を返す。列は Classes() の順
func (nb *GaussianNB) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !nb.IsFitted() {
		return nil, errors.NewNotFittedError("GaussianNB", "PredictProba")
	}
	logProba, err := nb.PredictLogProba(X)
	if err != nil {
		return nil, err
	}
	proba := logProba.(*mat.Dense)
	proba.Apply(func(_, _ int, v float64) float64 { return math.Exp(v) }, proba)
	return proba, nil
}

// Predict は事後確率が最大のクラスを返す
func (nb *GaussianNB) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !nb.IsFitted() {
		return nil, errors.NewNotFittedError("GaussianNB", "Predict")
	}
	jll, err := nb.jointLogLikelihood("GaussianNB.Predict", X)
	if err != nil {
		return nil, err
	}
	return tree.ArgmaxClasses(jll, nb.ClassValues), nil
}

// Classes は学習時に見たクラスラベルを返す
func (nb *GaussianNB) Classes() []float64 {
	return append([]float64(nil), nb.ClassValues...)
}

// Score は正解率を返す
func (nb *GaussianNB) Score(X, y mat.Matrix) (float64, error) {
	pred, err := nb.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyScore(y, pred)
}
