package tree

import (
	"sort"

	"github.com/YuminosukeSato/scigo-fixtures/core/model"
	"github.com/YuminosukeSato/scigo-fixtures/metrics"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// DecisionTreeClassifier はCARTによる分類木
// scikit-learnのDecisionTreeClassifierと互換性を持つ
type DecisionTreeClassifier struct {
	model.BaseEstimator
	Params

	// ClassValues は学習時に見たクラスラベル（昇順）
	ClassValues []float64
	Tree        *Tree
	NFeatures   int
}

// NewDecisionTreeClassifier は新しいDecisionTreeClassifierを作成
//
// デフォルト: criterion=gini, max_depth=無制限, min_samples_split=2, min_samples_leaf=1
//
// 使用例:
//
//	dt := tree.NewDecisionTreeClassifier(
//	    tree.WithMinSamplesLeaf(5),
//	    tree.WithRandomState(13),
//	)
//	err := dt.Fit(X, y)
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{Params: defaultParams(Gini)}
	for _, opt := range opts {
		opt(&dt.Params)
	}
	return dt
}

// Fit は全サンプルの重みを1として学習する
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	return dt.FitWeighted(X, y, nil)
}

// FitWeighted はサンプル重み付きで学習する（重み0のサンプルは使われない）
func (dt *DecisionTreeClassifier) FitWeighted(X, y mat.Matrix, weights []float64) (err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.Fit")

	target, err := checkFitInput("DecisionTreeClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	if weights != nil && len(weights) != len(target) {
		return errors.NewDimensionError("DecisionTreeClassifier.Fit", len(target), len(weights), 0)
	}

	classes, encoded := EncodeClasses(target)
	_, nFeatures := X.Dims()
	t, err := Build(Columns(X), encoded, len(classes), weights, dt.buildParams(nFeatures), dt.newRand())
	if err != nil {
		return err
	}

	dt.ClassValues = classes
	dt.Tree = t
	dt.NFeatures = nFeatures
	dt.SetFitted()
	return nil
}

// EncodeClasses はラベルを昇順のクラス値とその番号に変換する
func EncodeClasses(y []float64) ([]float64, []float64) {
	seen := make(map[float64]bool)
	var classes []float64
	for _, v := range y {
		if !seen[v] {
			seen[v] = true
			classes = append(classes, v)
		}
	}
	sort.Float64s(classes)
	index := make(map[float64]int, len(classes))
	for i, c := range classes {
		index[c] = i
	}
	encoded := make([]float64, len(y))
	for i, v := range y {
		encoded[i] = float64(index[v])
	}
	return classes, encoded
}

// PredictProba は到達した葉のクラス頻度を正規化した確率を返す
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.check(X, "PredictProba"); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	out := mat.NewDense(r, len(dt.ClassValues), nil)
	x := make([]float64, dt.NFeatures)
	for i := 0; i < r; i++ {
		mat.Row(x, i, X)
		value := dt.Tree.Value[dt.Tree.Apply(x)]
		total := 0.0
		for _, v := range value {
			total += v
		}
		for k, v := range value {
			out.Set(i, k, errors.SafeDivide(v, total))
		}
	}
	return out, nil
}

// Predict は確率が最大のクラスを返す
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := dt.PredictProba(X)
	if err != nil {
		return nil, err
	}
	return ArgmaxClasses(proba, dt.ClassValues), nil
}

// ArgmaxClasses は各行で最大の列に対応するクラス値を並べる（同値の場合は先頭）
func ArgmaxClasses(scores mat.Matrix, classes []float64) *mat.Dense {
	r, c := scores.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		best := 0
		for k := 1; k < c; k++ {
			if scores.At(i, k) > scores.At(i, best) {
				best = k
			}
		}
		out.Set(i, 0, classes[best])
	}
	return out
}

// Apply は各サンプルが到達する葉のノード番号を返す
func (dt *DecisionTreeClassifier) Apply(X mat.Matrix) ([]int, error) {
	if err := dt.check(X, "Apply"); err != nil {
		return nil, err
	}
	return applyRows(dt.Tree, X), nil
}

// Classes は学習時に見たクラスラベルを返す
func (dt *DecisionTreeClassifier) Classes() []float64 {
	return append([]float64(nil), dt.ClassValues...)
}

// Score は正解率を返す（エラー時は0）
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) float64 {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0
	}
	score, err := metrics.AccuracyScore(y, pred)
	if err != nil {
		return 0
	}
	return score
}

// GetDepth は木の深さを返す
func (dt *DecisionTreeClassifier) GetDepth() int {
	if dt.Tree == nil {
		return 0
	}
	return dt.Tree.MaxDepth
}

// GetNLeaves は葉の数を返す
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	if dt.Tree == nil {
		return 0
	}
	return dt.Tree.NLeaves()
}

// GetFeatureImportances は特徴量重要度を返す
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	if dt.Tree == nil {
		return nil
	}
	return dt.Tree.FeatureImportances()
}

func (dt *DecisionTreeClassifier) check(X mat.Matrix, method string) error {
	if !dt.IsFitted() {
		return errors.NewNotFittedError("DecisionTreeClassifier", method)
	}
	return checkPredictInput("DecisionTreeClassifier."+method, X, dt.NFeatures)
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

func applyRows(t *Tree, X mat.Matrix) []int {
	r, c := X.Dims()
	leaves := make([]int, r)
	x := make([]float64, c)
	for i := range leaves {
		mat.Row(x, i, X)
		leaves[i] = t.Apply(x)
	}
	return leaves
}
