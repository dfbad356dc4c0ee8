// Package ensemble は決定木を組み合わせたアンサンブル学習器を提供する
//
// ランダムフォレストはブートストラップ重みで学習した木を並列に構築し、
// 勾配ブースティングは損失関数の負の勾配に回帰木を逐次当てはめる。
package ensemble

import (
	"math/rand"
	"time"

	"github.com/YuminosukeSato/scigo-fixtures/core/model"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"github.com/YuminosukeSato/scigo-fixtures/sklearn/tree"
)

func init() {
	model.Register(&RandomForestClassifier{})
	model.Register(&RandomForestRegressor{})
	model.Register(&GradientBoostingClassifier{})
	model.Register(&GradientBoostingRegressor{})
}

// Params はアンサンブルのハイパーパラメータ
type Params struct {
	NEstimators int
	RandomState int64 // 負の値は時刻から生成

	// ランダムフォレスト
	Bootstrap bool
	NJobs     int // 1未満はCPU数

	// 勾配ブースティング
	Loss         Loss
	LearningRate float64

	// TreeParams は各決定木に渡すパラメータ（RandomState は木ごとに上書きされる）
	TreeParams tree.Params
}

// Option はアンサンブルの設定オプション
type Option func(*Params)

// WithNEstimators は木の本数（ブースティングではステージ数）を設定
func WithNEstimators(n int) Option {
	return func(p *Params) { p.NEstimators = n }
}

// WithRandomState は乱数シードを設定
func WithRandomState(seed int64) Option {
	return func(p *Params) { p.RandomState = seed }
}

// WithBootstrap はブートストラップ標本を使うかを設定
func WithBootstrap(b bool) Option {
	return func(p *Params) { p.Bootstrap = b }
}

// WithNJobs は木を並列に構築するワーカー数を設定
func WithNJobs(n int) Option {
	return func(p *Params) { p.NJobs = n }
}

// WithLoss はブースティングの損失関数を設定
func WithLoss(l Loss) Option {
	return func(p *Params) { p.Loss = l }
}

// WithLearningRate は各ステージの寄与を縮小する学習率を設定
func WithLearningRate(lr float64) Option {
	return func(p *Params) { p.LearningRate = lr }
}

// WithTreeOptions は各決定木のオプションを設定
//
//	ensemble.NewRandomForestClassifier(
//	    ensemble.WithTreeOptions(tree.WithMinSamplesLeaf(5)),
//	)
func WithTreeOptions(opts ...tree.Option) Option {
	return func(p *Params) {
		for _, opt := range opts {
			opt(&p.TreeParams)
		}
	}
}

func forestParams(treeDefaults tree.Params, maxFeatures tree.MaxFeatures, opts []Option) Params {
	treeDefaults.MaxFeatures = maxFeatures
	p := Params{
		NEstimators: 10,
		RandomState: -1,
		Bootstrap:   true,
		NJobs:       1,
		TreeParams:  treeDefaults,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func boostingParams(loss Loss, opts []Option) Params {
	treeDefaults := tree.NewDecisionTreeRegressor(tree.WithMaxDepth(3)).Params
	p := Params{
		NEstimators:  100,
		RandomState:  -1,
		Loss:         loss,
		LearningRate: 0.1,
		TreeParams:   treeDefaults,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func (p *Params) validate() error {
	if p.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", p.NEstimators)
	}
	return nil
}

func (p *Params) newRand() *rand.Rand {
	if p.RandomState >= 0 {
		return rand.New(rand.NewSource(p.RandomState))
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// seeds は木ごとの乱数シードを学習前にまとめて引く
func (p *Params) seeds() []int64 {
	rng := p.newRand()
	out := make([]int64, p.NEstimators)
	for i := range out {
		out[i] = rng.Int63()
	}
	return out
}

// bootstrapWeights は n 回の復元抽出で各サンプルが選ばれた回数を返す
func bootstrapWeights(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	w := make([]float64, n)
	for i := 0; i < n; i++ {
		w[rng.Intn(n)]++
	}
	return w
}
