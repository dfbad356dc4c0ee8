package ensemble

import (
	"context"

	"github.com/YuminosukeSato/scigo-fixtures/core/model"
	"github.com/YuminosukeSato/scigo-fixtures/core/parallel"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/log"
	"github.com/YuminosukeSato/scigo-fixtures/sklearn/tree"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// predictChunk 行以下の予測は呼び出し元のゴルーチンで処理する
const predictChunk = 256

// RandomForestClassifier はブートストラップ標本で学習した分類木の平均確率で予測する
type RandomForestClassifier struct {
	model.BaseEstimator
	Params

	ClassValues []float64
	Estimators  []*tree.DecisionTreeClassifier
	NFeatures   int
}

// NewRandomForestClassifier は新しいRandomForestClassifierを作成
//
// デフォルト: n_estimators=10, bootstrap=true, max_features=sqrt, criterion=gini
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	defaults := tree.NewDecisionTreeClassifier().Params
	return &RandomForestClassifier{Params: forestParams(defaults, tree.SqrtFeatures, opts)}
}

// Fit は木ごとのシードとブートストラップ重みで決定木を並列に学習する
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestClassifier.Fit")

	target, err := checkFitInput("RandomForestClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if err := rf.validate(); err != nil {
		return err
	}

	nSamples, nFeatures := X.Dims()
	seeds := rf.seeds()
	estimators := make([]*tree.DecisionTreeClassifier, len(seeds))
	err = parallel.ForEach(context.Background(), len(seeds), rf.NJobs, func(_ context.Context, i int) error {
		dt := &tree.DecisionTreeClassifier{Params: rf.TreeParams}
		dt.RandomState = seeds[i]
		var weights []float64
		if rf.Bootstrap {
			weights = bootstrapWeights(nSamples, seeds[i])
		}
		if err := dt.FitWeighted(X, y, weights); err != nil {
			return err
		}
		estimators[i] = dt
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "RandomForestClassifier.Fit")
	}

	rf.ClassValues, _ = tree.EncodeClasses(target)
	rf.Estimators = estimators
	rf.NFeatures = nFeatures
	rf.SetFitted()

	log.GetLoggerWithName("ensemble.random_forest").Debug("RandomForestClassifier fitted",
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
		log.ClassesKey, len(rf.ClassValues),
	)
	return nil
}

// PredictProba は各木の葉のクラス確率を平均する
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if !rf.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestClassifier", "PredictProba")
	}
	if err := checkPredictInput("RandomForestClassifier.PredictProba", X, rf.NFeatures); err != nil {
		return nil, err
	}

	r, _ := X.Dims()
	k := len(rf.ClassValues)
	out := mat.NewDense(r, k, nil)
	scale := 1 / float64(len(rf.Estimators))
	parallel.ParallelizeWithThreshold(r, predictChunk, rf.NJobs, func(start, end int) {
		x := make([]float64, rf.NFeatures)
		row := make([]float64, k)
		for i := start; i < end; i++ {
			mat.Row(x, i, X)
			for j := range row {
				row[j] = 0
			}
			for _, est := range rf.Estimators {
				value := est.Tree.Value[est.Tree.Apply(x)]
				total := floats.Sum(value)
				for j, v := range value {
					row[j] += errors.SafeDivide(v, total)
				}
			}
			floats.Scale(scale, row)
			out.SetRow(i, row)
		}
	})
	return out, nil
}

// Predict は平均確率が最大のクラスを返す
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return tree.ArgmaxClasses(proba, rf.ClassValues), nil
}

// Classes は学習時に見たクラスラベルを返す
func (rf *RandomForestClassifier) Classes() []float64 {
	return append([]float64(nil), rf.ClassValues...)
}

// FeatureImportances は各木の不純度減少による重要度の平均
func (rf *RandomForestClassifier) FeatureImportances() []float64 {
	trees := make([]*tree.Tree, len(rf.Estimators))
	for i, est := range rf.Estimators {
		trees[i] = est.Tree
	}
	return meanImportances(trees, rf.NFeatures)
}

// RandomForestRegressor はブートストラップ標本で学習した回帰木の平均で予測する
type RandomForestRegressor struct {
	model.BaseEstimator
	Params

	Estimators []*tree.DecisionTreeRegressor
	NFeatures  int
}

// NewRandomForestRegressor は新しいRandomForestRegressorを作成
//
// デフォルト: n_estimators=10, bootstrap=true, max_features=全て, criterion=mse
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	defaults := tree.NewDecisionTreeRegressor().Params
	return &RandomForestRegressor{Params: forestParams(defaults, tree.AllFeatures, opts)}
}

// Fit は木ごとのシードとブートストラップ重みで回帰木を並列に学習する
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestRegressor.Fit")

	target, err := checkFitInput("RandomForestRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if err := rf.validate(); err != nil {
		return err
	}

	nSamples, nFeatures := X.Dims()
	cols := tree.Columns(X)
	seeds := rf.seeds()
	estimators := make([]*tree.DecisionTreeRegressor, len(seeds))
	err = parallel.ForEach(context.Background(), len(seeds), rf.NJobs, func(_ context.Context, i int) error {
		dt := &tree.DecisionTreeRegressor{Params: rf.TreeParams}
		dt.RandomState = seeds[i]
		var weights []float64
		if rf.Bootstrap {
			weights = bootstrapWeights(nSamples, seeds[i])
		}
		if err := dt.FitTarget(cols, target, weights); err != nil {
			return err
		}
		estimators[i] = dt
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "RandomForestRegressor.Fit")
	}

	rf.Estimators = estimators
	rf.NFeatures = nFeatures
	rf.SetFitted()

	log.GetLoggerWithName("ensemble.random_forest").Debug("RandomForestRegressor fitted",
		log.SamplesKey, nSamples,
		log.FeaturesKey, nFeatures,
	)
	return nil
}

// Predict は各木の予測値の平均を返す
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !rf.IsFitted() {
		return nil, errors.NewNotFittedError("RandomForestRegressor", "Predict")
	}
	if err := checkPredictInput("RandomForestRegressor.Predict", X, rf.NFeatures); err != nil {
		return nil, err
	}

	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	scale := 1 / float64(len(rf.Estimators))
	parallel.ParallelizeWithThreshold(r, predictChunk, rf.NJobs, func(start, end int) {
		x := make([]float64, rf.NFeatures)
		for i := start; i < end; i++ {
			mat.Row(x, i, X)
			sum := 0.0
			for _, est := range rf.Estimators {
				sum += est.Tree.Value[est.Tree.Apply(x)][0]
			}
			out.Set(i, 0, sum*scale)
		}
	})
	return out, nil
}

// FeatureImportances は各木の不純度減少による重要度の平均
func (rf *RandomForestRegressor) FeatureImportances() []float64 {
	trees := make([]*tree.Tree, len(rf.Estimators))
	for i, est := range rf.Estimators {
		trees[i] = est.Tree
	}
	return meanImportances(trees, rf.NFeatures)
}

func meanImportances(trees []*tree.Tree, nFeatures int) []float64 {
	out := make([]float64, nFeatures)
	if len(trees) == 0 {
		return out
	}
	for _, t := range trees {
		floats.Add(out, t.FeatureImportances())
	}
	floats.Scale(1/float64(len(trees)), out)
	return out
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
