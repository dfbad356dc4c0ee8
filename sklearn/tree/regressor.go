package tree

import (
	"github.com/YuminosukeSato/scigo-fixtures/core/model"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// DecisionTreeRegressor はCARTによる回帰木（平均二乗誤差で分岐）
type DecisionTreeRegressor struct {
	model.BaseEstimator
	Params

	Tree      *Tree
	NFeatures int
}

// NewDecisionTreeRegressor は新しいDecisionTreeRegressorを作成
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	dt := &DecisionTreeRegressor{Params: defaultParams(MSE)}
	for _, opt := range opts {
		opt(&dt.Params)
	}
	return dt
}

// Fit は全サンプルの重みを1として学習する
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted はサンプル重み付きで学習する
func (dt *DecisionTreeRegressor) FitWeighted(X, y mat.Matrix, weights []float64) (err error) {
	defer errors.Recover(&err, "DecisionTreeRegressor.Fit")

	target, err := checkFitInput("DecisionTreeRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	return dt.FitTarget(Columns(X), target, weights)
}

// FitTarget は列優先の特徴量と目的変数から直接学習する
// 勾配ブースティングのように同じ特徴量で何度も木を作る場合に使う
func (dt *DecisionTreeRegressor) FitTarget(cols [][]float64, target, weights []float64) error {
	if weights != nil && len(weights) != len(target) {
		return errors.NewDimensionError("DecisionTreeRegressor.Fit", len(target), len(weights), 0)
	}
	t, err := Build(cols, target, 0, weights, dt.buildParams(len(cols)), dt.newRand())
	if err != nil {
		return err
	}
	dt.Tree = t
	dt.NFeatures = len(cols)
	dt.SetFitted()
	return nil
}

// Predict は到達した葉の平均値を返す
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !dt.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeRegressor", "Predict")
	}
	if err := checkPredictInput("DecisionTreeRegressor.Predict", X, dt.NFeatures); err != nil {
		return nil, err
	}
	leaves := applyRows(dt.Tree, X)
	out := mat.NewDense(len(leaves), 1, nil)
	for i, leaf := range leaves {
		out.Set(i, 0, dt.Tree.Value[leaf][0])
	}
	return out, nil
}

// Apply は各サンプルが到達する葉のノード番号を返す
func (dt *DecisionTreeRegressor) Apply(X mat.Matrix) ([]int, error) {
	if !dt.IsFitted() {
		return nil, errors.NewNotFittedError("DecisionTreeRegressor", "Apply")
	}
	if err := checkPredictInput("DecisionTreeRegressor.Apply", X, dt.NFeatures); err != nil {
		return nil, err
	}
	return applyRows(dt.Tree, X), nil
}

// GetDepth は木の深さを返す
func (dt *DecisionTreeRegressor) GetDepth() int {
	if dt.Tree == nil {
		return 0
	}
	return dt.Tree.MaxDepth
}
