package tree

import (
	"math"
	"math/rand"
	"time"

	"github.com/YuminosukeSato/scigo-fixtures/core/model"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func init() {
	model.Register(&DecisionTreeClassifier{})
	model.Register(&DecisionTreeRegressor{})
}

// MaxFeatures は各ノードで評価する特徴量の数の決め方
type MaxFeatures string

const (
	// AllFeatures は全ての特徴量を評価する
	AllFeatures MaxFeatures = ""
	// SqrtFeatures は sqrt(n_features) 個を評価する
	SqrtFeatures MaxFeatures = "sqrt"
	// Log2Features は log2(n_features) 個を評価する
	Log2Features MaxFeatures = "log2"
)

// Resolve は特徴量数から評価する特徴量の個数を求める
func (m MaxFeatures) Resolve(nFeatures int) int {
	var k int
	switch m {
	case SqrtFeatures:
		k = int(math.Sqrt(float64(nFeatures)))
	case Log2Features:
		k = int(math.Log2(float64(nFeatures)))
	default:
		k = nFeatures
	}
	if k < 1 {
		k = 1
	}
	return k
}

// Params は決定木のハイパーパラメータ
type Params struct {
	Criterion       Criterion
	MaxDepth        int // 0 は無制限
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     MaxFeatures
	RandomState     int64 // 負の値は時刻から生成
}

// Option は決定木の設定オプション
type Option func(*Params)

// WithCriterion は不純度の種類を設定
func WithCriterion(c Criterion) Option {
	return func(p *Params) { p.Criterion = c }
}

// WithMaxDepth は最大の深さを設定（0 は無制限）
func WithMaxDepth(depth int) Option {
	return func(p *Params) { p.MaxDepth = depth }
}

// WithMinSamplesSplit は分岐に必要な最小サンプル数を設定
func WithMinSamplesSplit(n int) Option {
	return func(p *Params) { p.MinSamplesSplit = n }
}

// WithMinSamplesLeaf は葉の最小サンプル数を設定
func WithMinSamplesLeaf(n int) Option {
	return func(p *Params) { p.MinSamplesLeaf = n }
}

// WithMaxFeatures は各ノードで評価する特徴量の数を設定
func WithMaxFeatures(m MaxFeatures) Option {
	return func(p *Params) { p.MaxFeatures = m }
}

// WithRandomState は乱数シードを設定
func WithRandomState(seed int64) Option {
	return func(p *Params) { p.RandomState = seed }
}

func defaultParams(c Criterion) Params {
	return Params{
		Criterion:       c,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		RandomState:     -1,
	}
}

// GetParams はハイパーパラメータを返す
func (p *Params) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         string(p.Criterion),
		"max_depth":         p.MaxDepth,
		"min_samples_split": p.MinSamplesSplit,
		"min_samples_leaf":  p.MinSamplesLeaf,
		"max_features":      string(p.MaxFeatures),
		"random_state":      p.RandomState,
	}
}

// SetParams はハイパーパラメータを設定する
func (p *Params) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "criterion":
			v, ok := value.(string)
			if !ok {
				return errors.NewValidationError(key, "must be a string", value)
			}
			p.Criterion = Criterion(v)
		case "max_features":
			v, ok := value.(string)
			if !ok {
				return errors.NewValidationError(key, "must be a string", value)
			}
			p.MaxFeatures = MaxFeatures(v)
		case "max_depth", "min_samples_split", "min_samples_leaf":
			v, ok := value.(int)
			if !ok {
				return errors.NewValidationError(key, "must be an int", value)
			}
			switch key {
			case "max_depth":
				p.MaxDepth = v
			case "min_samples_split":
				p.MinSamplesSplit = v
			default:
				p.MinSamplesLeaf = v
			}
		case "random_state":
			switch v := value.(type) {
			case int:
				p.RandomState = int64(v)
			case int64:
				p.RandomState = v
			default:
				return errors.NewValidationError(key, "must be an integer", value)
			}
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return nil
}

func (p *Params) newRand() *rand.Rand {
	if p.RandomState >= 0 {
		return rand.New(rand.NewSource(p.RandomState))
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

func (p *Params) buildParams(nFeatures int) BuildParams {
	return BuildParams{
		Criterion:       p.Criterion,
		MaxDepth:        p.MaxDepth,
		MinSamplesSplit: p.MinSamplesSplit,
		MinSamplesLeaf:  p.MinSamplesLeaf,
		MaxFeatures:     p.MaxFeatures.Resolve(nFeatures),
	}
}

// Columns は行列を列優先のスライスに展開する
func Columns(X mat.Matrix) [][]float64 {
	_, c := X.Dims()
	cols := make([][]float64, c)
	for j := range cols {
		cols[j] = mat.Col(nil, j, X)
	}
	return cols
}

// Target は n×1 (または 1×n) の行列をスライスに展開する
func Target(y mat.Matrix) ([]float64, error) {
	r, c := y.Dims()
	switch {
	case c == 1:
		return mat.Col(nil, 0, y), nil
	case r == 1:
		return mat.Row(nil, 0, y), nil
	default:
		return nil, errors.NewDimensionError("Target", 1, c, 1)
	}
}

func checkFitInput(op string, X, y mat.Matrix) ([]float64, error) {
	if y == nil {
		return nil, errors.NewValueError(op, "y is required")
	}
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	target, err := Target(y)
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
