package linear_model

import (
	"context"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/YuminosukeSato/scigo-fixtures/core/model"
	"github.com/YuminosukeSato/scigo-fixtures/core/parallel"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/log"
	"github.com/YuminosukeSato/scigo-fixtures/sklearn/model_selection"
	"github.com/YuminosukeSato/scigo-fixtures/sklearn/tree"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Selection は座標降下法で更新する座標の選び方
type Selection string

const (
	// Cyclic は特徴量を順番に更新する
	Cyclic Selection = "cyclic"
	// Random は毎回ランダムな特徴量を更新する
	Random Selection = "random"
)

// CoordinateDescentParams はLassoCV/ElasticNetCVのハイパーパラメータ
type CoordinateDescentParams struct {
	L1Ratio      float64
	Eps          float64   // alpha_min / alpha_max
	NAlphas      int       // 正則化パスの点数
	PathAlphas   []float64 // 指定した場合は自動のグリッドを使わない
	CV           int       // KFold の分割数
	MaxIter      int
	Tol          float64
	FitIntercept bool
	Selection    Selection
	RandomState  int64 // Selection=Random のときに使う（負の値は時刻から生成）
	NJobs        int   // 分割ごとのパスを並列に計算するワーカー数
}

// CoordinateDescentOption はLassoCV/ElasticNetCVの設定オプション
type CoordinateDescentOption func(*CoordinateDescentParams)

// WithL1Ratio はL1とL2の混合比を設定（ElasticNetCV用）
func WithL1Ratio(r float64) CoordinateDescentOption {
	return func(p *CoordinateDescentParams) { p.L1Ratio = r }
}

// WithEps は正則化パスの長さ alpha_min/alpha_max を設定
func WithEps(eps float64) CoordinateDescentOption {
	return func(p *CoordinateDescentParams) { p.Eps = eps }
}

// WithNAlphas は正則化パスの点数を設定
func WithNAlphas(n int) CoordinateDescentOption {
	return func(p *CoordinateDescentParams) { p.NAlphas = n }
}

// WithPathAlphas は正則化パスを明示的に設定
func WithPathAlphas(alphas ...float64) CoordinateDescentOption {
	return func(p *CoordinateDescentParams) { p.PathAlphas = append([]float64(nil), alphas...) }
}

// WithCV は交差検証の分割数を設定
func WithCV(folds int) CoordinateDescentOption {
	return func(p *CoordinateDescentParams) { p.CV = folds }
}

// WithCDMaxIter は座標降下法の最大反復回数を設定
func WithCDMaxIter(n int) CoordinateDescentOption {
	return func(p *CoordinateDescentParams) { p.MaxIter = n }
}

// WithCDTol は双対ギャップによる収束判定の許容誤差を設定
func WithCDTol(tol float64) CoordinateDescentOption {
	return func(p *CoordinateDescentParams) { p.Tol = tol }
}

// WithCDFitIntercept は切片の学習有無を設定
func WithCDFitIntercept(fit bool) CoordinateDescentOption {
	return func(p *CoordinateDescentParams) { p.FitIntercept = fit }
}

// WithSelection は座標の選び方を設定
func WithSelection(s Selection) CoordinateDescentOption {
	return func(p *CoordinateDescentParams) { p.Selection = s }
}

// WithCDRandomState は乱数シードを設定
func WithCDRandomState(seed int64) CoordinateDescentOption {
	return func(p *CoordinateDescentParams) { p.RandomState = seed }
}

// WithCDNJobs は並列ワーカー数を設定
func WithCDNJobs(n int) CoordinateDescentOption {
	return func(p *CoordinateDescentParams) { p.NJobs = n }
}

func newCoordinateDescentParams(l1Ratio float64, opts []CoordinateDescentOption) CoordinateDescentParams {
	p := CoordinateDescentParams{
		L1Ratio:      l1Ratio,
		Eps:          1e-3,
		NAlphas:      100,
		CV:           3,
		MaxIter:      1000,
		Tol:          1e-4,
		FitIntercept: true,
		Selection:    Cyclic,
		RandomState:  -1,
		NJobs:        1,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func (p *CoordinateDescentParams) validate() error {
	if p.L1Ratio <= 0 || p.L1Ratio > 1 {
		return errors.NewValidationError("l1_ratio", "must be in (0, 1]", p.L1Ratio)
	}
	if p.PathAlphas == nil && p.NAlphas < 1 {
		return errors.NewValidationError("n_alphas", "must be at least 1", p.NAlphas)
	}
	if p.MaxIter < 1 {
		return errors.NewValidationError("max_iter", "must be at least 1", p.MaxIter)
	}
	if p.Selection != Cyclic && p.Selection != Random {
		return errors.NewValidationError("selection", "must be cyclic or random", p.Selection)
	}
	return nil
}

func (p *CoordinateDescentParams) newRand() *rand.Rand {
	if p.Selection != Random {
		return nil
	}
	if p.RandomState >= 0 {
		return rand.New(rand.NewSource(p.RandomState))
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// CoordinateDescentCV は正則化パス上の交差検証で alpha を選ぶElasticNet
//
// 目的関数は (1/2n)·||y - Xw||² + α·ρ·||w||₁ + (α·(1-ρ)/2)·||w||²（ρ = L1Ratio）。
type CoordinateDescentCV struct {
	model.BaseEstimator
	LinearModel
	CoordinateDescentParams

	AlphaValue float64     // 選ばれた正則化強度
	AlphaPath  []float64   // 降順の正則化パス
	MSEPath    [][]float64 // n_alphas × n_folds の検証誤差
	DualGap    float64     // 最終モデルの双対ギャップ
	NIter      int         // 最終モデルの反復回数
}

func (cd *CoordinateDescentCV) fit(name string, X, y mat.Matrix) (err error) {
	op := name + ".Fit"
	defer errors.Recover(&err, op)

	target, err := checkFitInput(op, X, y)
	if err != nil {
		return err
	}
	if err := cd.validate(); err != nil {
		return err
	}
	n, p := X.Dims()
	kf := model_selection.NewKFold(cd.CV)
	folds, err := kf.Split(n)
	if err != nil {
		return err
	}

	full := preprocessData(X, mat.NewDense(n, 1, target), cd.FitIntercept)
	alphas := cd.PathAlphas
	if alphas == nil {
		alphas = alphaGrid(tree.Columns(full.X), mat.Col(nil, 0, full.Y), cd.L1Ratio, cd.Eps, cd.NAlphas)
	} else {
		alphas = sortedDescending(alphas)
	}

	mse := make([][]float64, len(folds))
	err = parallel.ForEach(context.Background(), len(folds), cd.NJobs, func(_ context.Context, f int) error {
		mse[f] = cd.foldErrors(X, target, folds[f], alphas)
		return nil
	})
	if err != nil {
		return err
	}

	cd.MSEPath = make([][]float64, len(alphas))
	best := 0
	meanMSE := make([]float64, len(alphas))
	for a := range alphas {
		cd.MSEPath[a] = make([]float64, len(folds))
		for f := range folds {
			cd.MSEPath[a][f] = mse[f][a]
		}
		meanMSE[a] = floats.Sum(cd.MSEPath[a]) / float64(len(folds))
		if meanMSE[a] < meanMSE[best] {
			best = a
		}
	}

	alpha := alphas[best]
	w := make([]float64, p)
	gap, nIter, converged := enetCoordinateDescent(w,
		alpha*cd.L1Ratio*float64(n), alpha*(1-cd.L1Ratio)*float64(n),
		tree.Columns(full.X), mat.Col(nil, 0, full.Y), cd.MaxIter, cd.Tol, cd.newRand())
	if !converged {
		errors.Warn(errors.NewConvergenceWarning(name, nIter,
			"objective did not converge, you might want to increase the number of iterations"))
	}

	cd.Coefficients = w
	cd.InterceptValue = full.intercept(w, 0)
	cd.NFeatures = p
	cd.AlphaValue = alpha
	cd.AlphaPath = alphas
	cd.DualGap = gap
	cd.NIter = nIter
	cd.SetFitted()

	log.GetLoggerWithName("linear_model.coordinate_descent").Debug(name+" fitted",
		log.SamplesKey, n,
		log.FeaturesKey, p,
		log.RegularizationKey, alpha,
		log.IterationKey, nIter,
	)
	return nil
}

// foldErrors は学習側でパスを計算し、検証側の alpha ごとの平均二乗誤差を返す
func (cd *CoordinateDescentCV) foldErrors(X mat.Matrix, y []float64, fold model_selection.Fold, alphas []float64) []float64 {
	trainX := model_selection.SelectRows(X, fold.TrainIndices)
	trainY := model_selection.SelectValues(y, fold.TrainIndices)
	testX := model_selection.SelectRows(X, fold.TestIndices)
	testY := model_selection.SelectValues(y, fold.TestIndices)

	train := preprocessData(trainX, mat.NewDense(len(trainY), 1, trainY), cd.FitIntercept)
	coefs := enetPath(tree.Columns(train.X), mat.Col(nil, 0, train.Y), alphas, &cd.CoordinateDescentParams)

	out := make([]float64, len(alphas))
	row := make([]float64, len(train.XOffset))
	for a, w := range coefs {
		intercept := train.intercept(w, 0)
		sum := 0.0
		for i, yi := range testY {
			mat.Row(row, i, testX)
			r := floats.Dot(row, w) + intercept - yi
			sum += r * r
		}
		out[a] = sum / float64(len(testY))
	}
	return out
}

// enetPath は alpha の大きい方から順に、前の解を初期値として係数を求める
func enetPath(cols [][]float64, y []float64, alphas []float64, p *CoordinateDescentParams) [][]float64 {
	n := float64(len(y))
	rng := p.newRand()
	w := make([]float64, len(cols))
	coefs := make([][]float64, len(alphas))
	for a, alpha := range alphas {
		_, nIter, converged := enetCoordinateDescent(w, alpha*p.L1Ratio*n, alpha*(1-p.L1Ratio)*n, cols, y, p.MaxIter, p.Tol, rng)
		if !converged {
			errors.Warn(errors.NewConvergenceWarning("enet_path", nIter,
				"objective did not converge, you might want to increase the number of iterations"))
		}
		coefs[a] = append([]float64(nil), w...)
	}
	return coefs
}

// alphaGrid は全係数が0になる最小の alpha_max から alpha_max·eps までの降順の対数グリッド
func alphaGrid(cols [][]float64, y []float64, l1Ratio, eps float64, nAlphas int) []float64 {
	alphaMax := 0.0
	for _, col := range cols {
		alphaMax = math.Max(alphaMax, math.Abs(floats.Dot(col, y)))
	}
	alphaMax /= float64(len(y)) * l1Ratio

	out := make([]float64, nAlphas)
	if alphaMax <= resolution {
		for i := range out {
			out[i] = resolution
		}
		return out
	}
	grid := logspace(math.Log10(alphaMax*eps), math.Log10(alphaMax), nAlphas)
	for i := range out {
		out[i] = grid[nAlphas-1-i]
	}
	return out
}

// resolution は float64 の10進の分解能
const resolution = 1e-15

func sortedDescending(v []float64) []float64 {
	out := append([]float64(nil), v...)
	sort.Sort(sort.Reverse(sort.Float64Slice(out)))
	return out
}

// enetCoordinateDescent は 0.5·||y - Xw||² + l1Reg·||w||₁ + 0.5·l2Reg·||w||² を
// 座標降下法で最小化する。w は初期値として使われ、解で上書きされる。
//
// 係数の最大変化量が tol·max|w| を下回るか最終反復で双対ギャップを計算し、
// ギャップが tol·||y||² 未満なら収束とする。
func enetCoordinateDescent(w []float64, l1Reg, l2Reg float64, cols [][]float64, y []float64, maxIter int, tol float64, rng *rand.Rand) (float64, int, bool) {
	nFeatures := len(cols)
	normCols := make([]float64, nFeatures)
	for j, col := range cols {
		normCols[j] = floats.Dot(col, col)
	}

	// R = y - Xw
	R := append([]float64(nil), y...)
	for j, wj := range w {
		if wj != 0 {
			floats.AddScaled(R, -wj, cols[j])
		}
	}

	dwTol := tol
	tol *= floats.Dot(y, y)
	gap := tol + 1
	for iter := 0; iter < maxIter; iter++ {
		var wMax, dwMax float64
		for ii := 0; ii < nFeatures; ii++ {
			j := ii
			if rng != nil {
				j = rng.Intn(nFeatures)
			}
			if normCols[j] == 0 {
				continue
			}
			old := w[j]
			if old != 0 {
				floats.AddScaled(R, old, cols[j])
			}
			tmp := floats.Dot(cols[j], R)
			w[j] = math.Copysign(math.Max(math.Abs(tmp)-l1Reg, 0), tmp) / (normCols[j] + l2Reg)
			if w[j] != 0 {
				floats.AddScaled(R, -w[j], cols[j])
			}
			dwMax = math.Max(dwMax, math.Abs(w[j]-old))
			wMax = math.Max(wMax, math.Abs(w[j]))
		}

		if wMax == 0 || dwMax/wMax < dwTol || iter == maxIter-1 {
			gap = dualityGap(w, l1Reg, l2Reg, cols, y, R)
			if gap < tol {
				return gap, iter + 1, true
			}
		}
	}
	return gap, maxIter, false
}

func dualityGap(w []float64, l1Reg, l2Reg float64, cols [][]float64, y, R []float64) float64 {
	// XtA = Xᵀ·R - l2Reg·w
	dualNorm := 0.0
	for j, col := range cols {
		dualNorm = math.Max(dualNorm, math.Abs(floats.Dot(col, R)-l2Reg*w[j]))
	}
	rNorm2 := floats.Dot(R, R)
	wNorm2 := floats.Dot(w, w)

	var gap, c float64
	if dualNorm > l1Reg {
		c = l1Reg / dualNorm
		gap = 0.5 * (rNorm2 + rNorm2*c*c)
	} else {
		c = 1
		gap = rNorm2
	}
	gap += l1Reg*floats.Norm(w, 1) - c*floats.Dot(R, y) + 0.5*l2Reg*(1+c*c)*wNorm2
	return gap
}

// LassoCV は交差検証で正則化強度を選ぶLasso（L1Ratio=1 のElasticNet）
type LassoCV struct {
	CoordinateDescentCV
}

// NewLassoCV は新しいLassoCVを作成
//
// デフォルト: eps=1e-3, n_alphas=100, cv=3, max_iter=1000, tol=1e-4
func NewLassoCV(opts ...CoordinateDescentOption) *LassoCV {
	p := newCoordinateDescentParams(1, opts)
	p.L1Ratio = 1
	return &LassoCV{CoordinateDescentCV{CoordinateDescentParams: p}}
}

// Fit はモデルを訓練データで学習
func (l *LassoCV) Fit(X, y mat.Matrix) error {
	return l.fit("LassoCV", X, y)
}

// Predict は入力データに対する予測を行う
func (l *LassoCV) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !l.IsFitted() {
		return nil, errors.NewNotFittedError("LassoCV", "Predict")
	}
	return l.predict("LassoCV.Predict", X)
}

// Score はモデルの決定係数（R²）を計算
func (l *LassoCV) Score(X, y mat.Matrix) (float64, error) {
	return r2Score(l, X, y)
}

// ElasticNetCV は交差検証で正則化強度を選ぶElasticNet
type ElasticNetCV struct {
	CoordinateDescentCV
}

// NewElasticNetCV は新しいElasticNetCVを作成
//
// デフォルト: l1_ratio=0.5, eps=1e-3, n_alphas=100, cv=3, max_iter=1000, tol=1e-4
func NewElasticNetCV(opts ...CoordinateDescentOption) *ElasticNetCV {
	return &ElasticNetCV{CoordinateDescentCV{CoordinateDescentParams: newCoordinateDescentParams(0.5, opts)}}
}

// Fit はモデルを訓練データで学習
func (e *ElasticNetCV) Fit(X, y mat.Matrix) error {
	return e.fit("ElasticNetCV", X, y)
}

// Predict は入力データに対する予測を行う
func (e *ElasticNetCV) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !e.IsFitted() {
		return nil, errors.NewNotFittedError("ElasticNetCV", "Predict")
	}
	return e.predict("ElasticNetCV.Predict", X)
}

// Score はモデルの決定係数（R²）を計算
func (e *ElasticNetCV) Score(X, y mat.Matrix) (float64, error) {
	return r2Score(e, X, y)
}
