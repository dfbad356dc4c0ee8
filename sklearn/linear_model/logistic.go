package linear_model

import (
	"context"
	"math"

	"github.com/YuminosukeSato/scigo-fixtures/core/model"
	"github.com/YuminosukeSato/scigo-fixtures/core/parallel"
	"github.com/YuminosukeSato/scigo-fixtures/metrics"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/log"
	"github.com/YuminosukeSato/scigo-fixtures/sklearn/model_selection"
	"github.com/YuminosukeSato/scigo-fixtures/sklearn/tree"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// L-BFGS-B の factr 既定値。相対的な目的関数の改善が factr·eps を下回れば停止する
const lbfgsFactr = 1e7

// LogisticParams はL2正則化ロジスティック回帰のパラメータ
type LogisticParams struct {
	C            float64   // 正則化の逆数 (LogisticRegression)
	Cs           []float64 // 候補の C (LogisticRegressionCV)。nil なら NCs 点の対数グリッド
	NCs          int
	CV           int
	FitIntercept bool
	MaxIter      int
	Tol          float64
	NJobs        int
}

// LogisticRegressionOption はLogisticRegression/LogisticRegressionCVの設定オプション
type LogisticRegressionOption func(*LogisticParams)

// WithLRC は正則化強度の逆数を設定
func WithLRC(c float64) LogisticRegressionOption {
	return func(p *LogisticParams) {
		p.C = c
	}
}

// WithCs は交差検証で比較する C の候補を明示的に設定
func WithCs(cs ...float64) LogisticRegressionOption {
	return func(p *LogisticParams) {
		p.Cs = append([]float64(nil), cs...)
	}
}

// WithNCs は 1e-4 から 1e4 までの対数グリッドの点数を設定
func WithNCs(n int) LogisticRegressionOption {
	return func(p *LogisticParams) {
		p.NCs = n
	}
}

// WithLogisticCV は層化 K 分割の分割数を設定
func WithLogisticCV(folds int) LogisticRegressionOption {
	return func(p *LogisticParams) {
		p.CV = folds
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(p *LogisticParams) {
		p.FitIntercept = fit
	}
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(p *LogisticParams) {
		p.MaxIter = maxIter
	}
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(p *LogisticParams) {
		p.Tol = tol
	}
}

// WithLRNJobs はクラスと分割を並列に学習するワーカー数を設定
func WithLRNJobs(n int) LogisticRegressionOption {
	return func(p *LogisticParams) {
		p.NJobs = n
	}
}

func newLogisticParams(opts []LogisticRegressionOption) LogisticParams {
	p := LogisticParams{
		C:            1.0,
		NCs:          10,
		CV:           3,
		FitIntercept: true,
		MaxIter:      100,
		Tol:          1e-4,
		NJobs:        1,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func (p *LogisticParams) validate() error {
	if p.MaxIter < 1 {
		return errors.NewValidationError("max_iter", "must be positive", p.MaxIter)
	}
	if p.Tol < 0 {
		return errors.NewValidationError("tol", "must be non-negative", p.Tol)
	}
	return nil
}

// grid は C の候補を昇順で返す
func (p *LogisticParams) grid() ([]float64, error) {
	if p.Cs == nil {
		if p.NCs < 1 {
			return nil, errors.NewValidationError("Cs", "must be positive", p.NCs)
		}
		return logspace(-4, 4, p.NCs), nil
	}
	if len(p.Cs) == 0 {
		return nil, errors.NewValidationError("Cs", "must not be empty", p.Cs)
	}
	for _, c := range p.Cs {
		if c <= 0 {
			return nil, errors.NewValidationError("Cs", "must be strictly positive", c)
		}
	}
	return append([]float64(nil), p.Cs...), nil
}

// nVars は切片を含む変数の数
func (p *LogisticParams) nVars(nFeatures int) int {
	if p.FitIntercept {
		return nFeatures + 1
	}
	return nFeatures
}

// logisticProblem は ±1 ラベルに対する
// Σ log(1 + exp(-y·(x·w + b))) + ||w||²/(2C) を表す。切片は正則化しない
type logisticProblem struct {
	X            *mat.Dense
	y            []float64
	alpha        float64
	fitIntercept bool
}

func (lp *logisticProblem) lossGrad(w, grad []float64) float64 {
	n, p := lp.X.Dims()
	coef := w[:p]
	var z mat.VecDense
	z.MulVec(lp.X, mat.NewVecDense(p, coef))
	b := 0.0
	if lp.fitIntercept {
		b = w[p]
	}

	loss := 0.5 * lp.alpha * floats.Dot(coef, coef)
	resid := make([]float64, n)
	for i := 0; i < n; i++ {
		yz := lp.y[i] * (z.AtVec(i) + b)
		loss -= logLogistic(yz)
		resid[i] = (errors.Expit(yz) - 1) * lp.y[i]
	}
	if grad == nil {
		return loss
	}

	g := mat.NewVecDense(p, grad[:p])
	g.MulVec(lp.X.T(), mat.NewVecDense(n, resid))
	floats.AddScaled(grad[:p], lp.alpha, coef)
	if lp.fitIntercept {
		grad[p] = floats.Sum(resid)
	}
	return loss
}

// logLogistic は log(1/(1+exp(-t))) をオーバーフローなしで計算する
func logLogistic(t float64) float64 {
	if t > 0 {
		return -math.Log1p(math.Exp(-t))
	}
	return t - math.Log1p(math.Exp(t))
}

// fitLogistic は L-BFGS で1つの二値問題を解き、係数（切片ありなら末尾が切片）を返す
func fitLogistic(op string, X *mat.Dense, y []float64, C float64, p LogisticParams, w0 []float64) ([]float64, int, error) {
	lp := &logisticProblem{X: X, y: y, alpha: 1 / C, fitIntercept: p.FitIntercept}
	problem := optimize.Problem{
		Func: func(w []float64) float64 { return lp.lossGrad(w, nil) },
		Grad: func(grad, w []float64) { lp.lossGrad(w, grad) },
	}
	settings := &optimize.Settings{
		GradientThreshold: p.Tol,
		MajorIterations:   p.MaxIter,
		Converger:         &optimize.FunctionConverge{Relative: lbfgsFactr * eps, Iterations: 1},
	}

	res, err := optimize.Minimize(problem, w0, settings, &optimize.LBFGS{Store: 10})
	if res == nil {
		return nil, 0, errors.NewModelError(op, "lbfgs failed", err)
	}
	if err != nil || res.Status == optimize.IterationLimit {
		errors.Warn(errors.NewConvergenceWarning("lbfgs", res.MajorIterations,
			"failed to converge, increase the number of iterations"))
	}
	if err := errors.CheckNumericalStability(op, res.X, res.MajorIterations); err != nil {
		return nil, 0, err
	}
	return res.X, res.MajorIterations, nil
}

// ovrProba は One-vs-Rest の決定関数から確率を求める
//
// 二値では [1-σ(s), σ(s)]、多クラスではクラスごとの σ(s) を行和で正規化する。
func ovrProba(scores *mat.Dense) *mat.Dense {
	r, k := scores.Dims()
	if k == 1 {
		out := mat.NewDense(r, 2, nil)
		for i := 0; i < r; i++ {
			p := errors.Expit(scores.At(i, 0))
			out.Set(i, 0, 1-p)
			out.Set(i, 1, p)
		}
		return out
	}
	out := mat.NewDense(r, k, nil)
	row := make([]float64, k)
	for i := 0; i < r; i++ {
		for j := 0; j < k; j++ {
			row[j] = errors.Expit(scores.At(i, j))
		}
		sum := floats.Sum(row)
		if sum == 0 {
			for j := range row {
				row[j] = 1 / float64(k)
			}
		} else {
			floats.Scale(1/sum, row)
		}
		out.SetRow(i, row)
	}
	return out
}

// logisticFitData は学習前の共通処理の結果
type logisticFitData struct {
	X       *mat.Dense
	Y       *mat.Dense // ±1 の指示行列
	target  []float64
	classes []float64
}

func prepareLogistic(op string, X, y mat.Matrix, p *LogisticParams) (logisticFitData, error) {
	target, err := checkFitInput(op, X, y)
	if err != nil {
		return logisticFitData{}, err
	}
	if err := p.validate(); err != nil {
		return logisticFitData{}, err
	}
	classes, encoded := tree.EncodeClasses(target)
	if len(classes) < 2 {
		return logisticFitData{}, errors.NewValueError(op, "needs samples of at least 2 classes")
	}
	return logisticFitData{
		X:       mat.DenseCopyOf(X),
		Y:       signedIndicators(encoded, len(classes)),
		target:  target,
		classes: classes,
	}, nil
}

func (m *LinearClassifier) setOvR(weights [][]float64, nFeatures int, fitIntercept bool) {
	m.Coefficients = make([][]float64, len(weights))
	m.InterceptValue = make([]float64, len(weights))
	for c, w := range weights {
		m.Coefficients[c] = append([]float64(nil), w[:nFeatures]...)
		if fitIntercept {
			m.InterceptValue[c] = w[nFeatures]
		}
	}
	m.NFeatures = nFeatures
}

// LogisticRegression は lbfgs で解く L2 正則化ロジスティック回帰 (One-vs-Rest)
type LogisticRegression struct {
	model.BaseEstimator
	LinearClassifier
	LogisticParams

	NIter []int // クラスごとの反復回数
}

// NewLogisticRegression creates a new LogisticRegression classifier
//
// デフォルト: C=1.0, fit_intercept=true, max_iter=100, tol=1e-4
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	return &LogisticRegression{LogisticParams: newLogisticParams(opts)}
}

// Fit trains the logistic regression model
func (lr *LogisticRegression) Fit(X, y mat.Matrix) (err error) {
	const op = "LogisticRegression.Fit"
	defer errors.Recover(&err, op)

	data, err := prepareLogistic(op, X, y, &lr.LogisticParams)
	if err != nil {
		return err
	}
	if lr.C <= 0 {
		return errors.NewValidationError("C", "must be strictly positive", lr.C)
	}
	_, p := data.X.Dims()
	_, k := data.Y.Dims()

	weights := make([][]float64, k)
	nIter := make([]int, k)
	err = parallel.ForEach(context.Background(), k, lr.NJobs, func(_ context.Context, c int) error {
		w, it, err := fitLogistic(op, data.X, mat.Col(nil, c, data.Y), lr.C, lr.LogisticParams, make([]float64, lr.nVars(p)))
		if err != nil {
			return err
		}
		weights[c], nIter[c] = w, it
		return nil
	})
	if err != nil {
		return err
	}

	lr.setOvR(weights, p, lr.FitIntercept)
	lr.ClassValues = data.classes
	lr.NIter = nIter
	lr.SetFitted()
	return nil
}

// DecisionFunction は各クラスの決定関数値を返す
func (lr *LogisticRegression) DecisionFunction(X mat.Matrix) (*mat.Dense, error) {
	if !lr.IsFitted() {
		return nil, errors.NewNotFittedError("LogisticRegression", "DecisionFunction")
	}
	return lr.decisionFunction("LogisticRegression.DecisionFunction", X)
}

// PredictProba predicts class probabilities
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !lr.IsFitted() {
		return nil, errors.NewNotFittedError("LogisticRegression", "PredictProba")
	}
	scores, err := lr.decisionFunction("LogisticRegression.PredictProba", X)
	if err != nil {
		return nil, err
	}
	return ovrProba(scores), nil
}

// Predict predicts class labels
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !lr.IsFitted() {
		return nil, errors.NewNotFittedError("LogisticRegression", "Predict")
	}
	scores, err := lr.decisionFunction("LogisticRegression.Predict", X)
	if err != nil {
		return nil, err
	}
	return lr.predictClasses(scores), nil
}

// Score returns the mean accuracy
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	return accuracyScore(lr, X, y)
}

// LogisticRegressionCV は層化 K 分割交差検証で C を選ぶロジスティック回帰
//
// クラスごと (二値なら正例クラスのみ) に、各分割で C の昇順にウォームスタートしながら
// 正則化パスを解き、テスト分割の正解率の平均が最大の C を選ぶ。
// 最終モデルは全データに対し、選ばれた C の各分割係数の平均を初期値として再学習する。
type LogisticRegressionCV struct {
	model.BaseEstimator
	LinearClassifier
	LogisticParams

	CsValues []float64     // 探索した C の候補
	CValues  []float64     // クラスごとに選ばれた C
	Scores   [][][]float64 // [クラス][分割][C] のテスト正解率
	NIter    []int
}

// NewLogisticRegressionCV は新しいLogisticRegressionCVを作成
//
// デフォルト: Cs=10 (1e-4〜1e4), cv=3, fit_intercept=true, max_iter=100, tol=1e-4
func NewLogisticRegressionCV(opts ...LogisticRegressionOption) *LogisticRegressionCV {
	return &LogisticRegressionCV{LogisticParams: newLogisticParams(opts)}
}

// Fit はモデルを訓練データで学習
func (lr *LogisticRegressionCV) Fit(X, y mat.Matrix) (err error) {
	const op = "LogisticRegressionCV.Fit"
	defer errors.Recover(&err, op)

	data, err := prepareLogistic(op, X, y, &lr.LogisticParams)
	if err != nil {
		return err
	}
	cs, err := lr.grid()
	if err != nil {
		return err
	}
	folds, err := model_selection.NewStratifiedKFold(lr.CV).Split(data.target)
	if err != nil {
		return err
	}
	n, p := data.X.Dims()
	_, k := data.Y.Dims()
	nf := len(folds)

	// paths[c][f][ci] は分割 f で C=cs[ci] のときの係数
	paths := make([][][][]float64, k)
	scores := make([][][]float64, k)
	for c := range paths {
		paths[c] = make([][][]float64, nf)
		scores[c] = make([][]float64, nf)
	}
	err = parallel.ForEach(context.Background(), k*nf, lr.NJobs, func(_ context.Context, idx int) error {
		c, f := idx/nf, idx%nf
		path, acc, err := lr.scoringPath(op, data.X, mat.Col(nil, c, data.Y), folds[f], cs)
		if err != nil {
			return err
		}
		paths[c][f], scores[c][f] = path, acc
		return nil
	})
	if err != nil {
		return err
	}

	weights := make([][]float64, k)
	lr.CValues = make([]float64, k)
	lr.NIter = make([]int, k)
	for c := 0; c < k; c++ {
		best := bestMeanScore(scores[c])
		init := make([]float64, lr.nVars(p))
		for f := 0; f < nf; f++ {
			floats.Add(init, paths[c][f][best])
		}
		floats.Scale(1/float64(nf), init)

		w, it, err := fitLogistic(op, data.X, mat.Col(nil, c, data.Y), cs[best], lr.LogisticParams, init)
		if err != nil {
			return err
		}
		weights[c] = w
		lr.CValues[c] = cs[best]
		lr.NIter[c] = it
	}

	lr.setOvR(weights, p, lr.FitIntercept)
	lr.ClassValues = data.classes
	lr.CsValues = cs
	lr.Scores = scores
	lr.SetFitted()

	log.GetLoggerWithName("linear_model.logistic").Debug("LogisticRegressionCV fitted",
		log.SamplesKey, n,
		log.ClassesKey, len(data.classes),
		log.RegularizationKey, lr.CValues,
	)
	return nil
}

// scoringPath は1分割について C の正則化パスを解き、各 C のテスト正解率を返す
func (lr *LogisticRegressionCV) scoringPath(op string, X *mat.Dense, y []float64, fold model_selection.Fold, cs []float64) ([][]float64, []float64, error) {
	trainX := model_selection.SelectRows(X, fold.TrainIndices)
	trainY := model_selection.SelectValues(y, fold.TrainIndices)
	testX := model_selection.SelectRows(X, fold.TestIndices)
	testY := mat.NewVecDense(len(fold.TestIndices), model_selection.SelectValues(y, fold.TestIndices))
	_, p := X.Dims()

	path := make([][]float64, len(cs))
	acc := make([]float64, len(cs))
	w := make([]float64, lr.nVars(p))
	for ci, C := range cs {
		var err error
		w, _, err = fitLogistic(op, trainX, trainY, C, lr.LogisticParams, w)
		if err != nil {
			return nil, nil, err
		}
		path[ci] = w

		var z mat.VecDense
		z.MulVec(testX, mat.NewVecDense(p, w[:p]))
		pred := mat.NewVecDense(z.Len(), nil)
		for i := 0; i < z.Len(); i++ {
			s := z.AtVec(i)
			if lr.FitIntercept {
				s += w[p]
			}
			if s > 0 {
				pred.SetVec(i, 1)
			} else {
				pred.SetVec(i, -1)
			}
		}
		if acc[ci], err = metrics.Accuracy(testY, pred); err != nil {
			return nil, nil, err
		}
	}
	return path, acc, nil
}

// bestMeanScore は分割平均の正解率が最大となる最初の C の位置を返す
func bestMeanScore(scores [][]float64) int {
	best, bestScore := 0, math.Inf(-1)
	for ci := range scores[0] {
		mean := 0.0
		for f := range scores {
			mean += scores[f][ci]
		}
		mean /= float64(len(scores))
		if mean > bestScore {
			best, bestScore = ci, mean
		}
	}
	return best
}

// DecisionFunction は各クラスの決定関数値を返す
func (lr *LogisticRegressionCV) DecisionFunction(X mat.Matrix) (*mat.Dense, error) {
	if !lr.IsFitted() {
		return nil, errors.NewNotFittedError("LogisticRegressionCV", "DecisionFunction")
	}
	return lr.decisionFunction("LogisticRegressionCV.DecisionFunction", X)
}

// PredictProba はクラス確率を返す。列は Classes() の順
func (lr *LogisticRegressionCV) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !lr.IsFitted() {
		return nil, errors.NewNotFittedError("LogisticRegressionCV", "PredictProba")
	}
	scores, err := lr.decisionFunction("LogisticRegressionCV.PredictProba", X)
	if err != nil {
		return nil, err
	}
	return ovrProba(scores), nil
}

// Predict はクラスラベルを予測
func (lr *LogisticRegressionCV) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !lr.IsFitted() {
		return nil, errors.NewNotFittedError("LogisticRegressionCV", "Predict")
	}
	scores, err := lr.decisionFunction("LogisticRegressionCV.Predict", X)
	if err != nil {
		return nil, err
	}
	return lr.predictClasses(scores), nil
}

// Score は正解率を返す
func (lr *LogisticRegressionCV) Score(X, y mat.Matrix) (float64, error) {
	return accuracyScore(lr, X, y)
}
