package ensemble

import (
	"github.com/YuminosukeSato/scigo-fixtures/core/model"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/log"
	"github.com/YuminosukeSato/scigo-fixtures/sklearn/tree"
	"gonum.org/v1/gonum/mat"
)

// GradientBoostingClassifier は損失の負の勾配に回帰木を当てはめる分類器
//
// 二値分類では生スコアが1列、多クラスではクラスごとに1列（ステージごとにK本の木）になる。
type GradientBoostingClassifier struct {
	model.BaseEstimator
	Params

	ClassValues []float64
	Init        []float64                      // 生スコアの初期値 (K)
	Estimators  [][]*tree.DecisionTreeRegressor // NEstimators × K
	TrainScore  []float64                      // 各ステージ後の学習データでの損失
	NFeatures   int
}

// NewGradientBoostingClassifier は新しいGradientBoostingClassifierを作成
//
// デフォルト: loss=deviance, n_estimators=100, learning_rate=0.1, max_depth=3
//
// 使用例:
//
//	gb := ensemble.NewGradientBoostingClassifier(
//	    ensemble.WithLoss(ensemble.Exponential),
//	    ensemble.WithRandomState(13),
//	)
func NewGradientBoostingClassifier(opts ...Option) *GradientBoostingClassifier {
	return &GradientBoostingClassifier{Params: boostingParams(Deviance, opts)}
}

// Fit はステージごとに回帰木を追加して学習する
func (gb *GradientBoostingClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GradientBoostingClassifier.Fit")

	target, err := checkFitInput("GradientBoostingClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if err := gb.validate(); err != nil {
		return err
	}
	classes, encoded := tree.EncodeClasses(target)
	if len(classes) < 2 {
		return errors.NewValueError("GradientBoostingClassifier.Fit", "y needs samples of at least 2 classes")
	}
	loss, err := newLossFunction(gb.Loss, len(classes))
	if err != nil {
		return err
	}

	init, stages, trainScore, err := boost(X, encoded, loss, &gb.Params)
	if err != nil {
		return err
	}
	gb.ClassValues = classes
	gb.Init = init
	gb.Estimators = stages
	gb.TrainScore = trainScore
	_, gb.NFeatures = X.Dims()
	gb.SetFitted()

	log.GetLoggerWithName("ensemble.gradient_boosting").Debug("GradientBoostingClassifier fitted",
		log.SamplesKey, len(target),
		log.ClassesKey, len(classes),
		log.IterationKey, len(stages),
		"train_loss", trainScore[len(trainScore)-1],
	)
	return nil
}

// DecisionFunction は生スコア (n × K) を返す
func (gb *GradientBoostingClassifier) DecisionFunction(X mat.Matrix) (*mat.Dense, error) {
	if !gb.IsFitted() {
		return nil, errors.NewNotFittedError("GradientBoostingClassifier", "DecisionFunction")
	}
	if err := checkPredictInput("GradientBoostingClassifier.DecisionFunction", X, gb.NFeatures); err != nil {
		return nil, err
	}
	return rawPredict(X, gb.Init, gb.Estimators, gb.LearningRate), nil
}

// PredictProba は生スコアを損失に応じた確率に変換する
func (gb *GradientBoostingClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	raw, err := gb.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	loss, err := newLossFunction(gb.Loss, len(gb.ClassValues))
	if err != nil {
		return nil, err
	}

	r, _ := raw.Dims()
	out := mat.NewDense(r, len(gb.ClassValues), nil)
	p := make([]float64, len(gb.ClassValues))
	for i := 0; i < r; i++ {
		loss.proba(raw.RawRowView(i), p)
		out.SetRow(i, p)
	}
	return out, nil
}

// Predict は確率が最大のクラスを返す
func (gb *GradientBoostingClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := gb.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return tree.ArgmaxClasses(proba, gb.ClassValues), nil
}

// Classes は学習時に見たクラスラベルを返す
func (gb *GradientBoostingClassifier) Classes() []float64 {
	return append([]float64(nil), gb.ClassValues...)
}

// GradientBoostingRegressor は二乗誤差の残差に回帰木を当てはめる回帰器
type GradientBoostingRegressor struct {
	model.BaseEstimator
	Params

	Init       []float64
	Estimators [][]*tree.DecisionTreeRegressor
	TrainScore []float64
	NFeatures  int
}

// NewGradientBoostingRegressor は新しいGradientBoostingRegressorを作成
//
// デフォルト: loss=ls, n_estimators=100, learning_rate=0.1, max_depth=3
func NewGradientBoostingRegressor(opts ...Option) *GradientBoostingRegressor {
	return &GradientBoostingRegressor{Params: boostingParams(LeastSquares, opts)}
}

// Fit はステージごとに回帰木を追加して学習する
func (gb *GradientBoostingRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "GradientBoostingRegressor.Fit")

	target, err := checkFitInput("GradientBoostingRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if err := gb.validate(); err != nil {
		return err
	}
	loss, err := newLossFunction(gb.Loss, 0)
	if err != nil {
		return err
	}

	init, stages, trainScore, err := boost(X, target, loss, &gb.Params)
	if err != nil {
		return err
	}
	gb.Init = init
	gb.Estimators = stages
	gb.TrainScore = trainScore
	_, gb.NFeatures = X.Dims()
	gb.SetFitted()

	log.GetLoggerWithName("ensemble.gradient_boosting").Debug("GradientBoostingRegressor fitted",
		log.SamplesKey, len(target),
		log.IterationKey, len(stages),
		"train_loss", trainScore[len(trainScore)-1],
	)
	return nil
}

// Predict は初期値と各ステージの寄与の和を返す
func (gb *GradientBoostingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !gb.IsFitted() {
		return nil, errors.NewNotFittedError("GradientBoostingRegressor", "Predict")
	}
	if err := checkPredictInput("GradientBoostingRegressor.Predict", X, gb.NFeatures); err != nil {
		return nil, err
	}
	return rawPredict(X, gb.Init, gb.Estimators, gb.LearningRate), nil
}

// boost は初期スコアから始めて NEstimators ステージの木を学習する
func boost(X mat.Matrix, y []float64, loss lossFunction, p *Params) ([]float64, [][]*tree.DecisionTreeRegressor, []float64, error) {
	if p.LearningRate <= 0 {
		return nil, nil, nil, errors.NewValidationError("learning_rate", "must be positive", p.LearningRate)
	}

	n, _ := X.Dims()
	K := loss.K()
	cols := tree.Columns(X)
	init := loss.initScores(y)
	raw := mat.NewDense(n, K, nil)
	for i := 0; i < n; i++ {
		raw.SetRow(i, init)
	}

	rng := p.newRand()
	residual := make([]float64, n)
	stages := make([][]*tree.DecisionTreeRegressor, 0, p.NEstimators)
	trainScore := make([]float64, 0, p.NEstimators)
	for m := 0; m < p.NEstimators; m++ {
		stage := make([]*tree.DecisionTreeRegressor, K)
		for k := 0; k < K; k++ {
			loss.negativeGradient(y, raw, k, residual)

			dt := &tree.DecisionTreeRegressor{Params: p.TreeParams}
			dt.RandomState = rng.Int63()
			if err := dt.FitTarget(cols, residual, nil); err != nil {
				return nil, nil, nil, errors.Wrapf(err, "boosting stage %d", m)
			}
			leaves, err := dt.Apply(X)
			if err != nil {
				return nil, nil, nil, err
			}

			// 葉の値をニュートン法の1ステップで置き換える
			members := make([][]int, dt.Tree.NodeCount())
			for i, leaf := range leaves {
				members[leaf] = append(members[leaf], i)
			}
			for leaf, samples := range members {
				if len(samples) > 0 {
					dt.Tree.Value[leaf][0] = loss.leafValue(y, residual, raw, k, samples)
				}
			}
			for i, leaf := range leaves {
				raw.Set(i, k, raw.At(i, k)+p.LearningRate*dt.Tree.Value[leaf][0])
			}
			stage[k] = dt
		}
		stages = append(stages, stage)
		trainScore = append(trainScore, loss.loss(y, raw))
	}
	return init, stages, trainScore, nil
}

func rawPredict(X mat.Matrix, init []float64, stages [][]*tree.DecisionTreeRegressor, learningRate float64) *mat.Dense {
	r, c := X.Dims()
	K := len(init)
	raw := mat.NewDense(r, K, nil)
	x := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(x, i, X)
		row := raw.RawRowView(i)
		copy(row, init)
		for _, stage := range stages {
			for k, dt := range stage {
				row[k] += learningRate * dt.Tree.Value[dt.Tree.Apply(x)][0]
			}
		}
	}
	return raw
}
