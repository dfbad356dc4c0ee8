package cluster

import (
	"math"
	"math/rand"
	"time"

	"github.com/YuminosukeSato/scigo-fixtures/core/model"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func init() {
	model.Register(&KMeans{})
	model.Register(&MiniBatchKMeans{})
}

// Params はKMeansとMiniBatchKMeansに共通するハイパーパラメータ
type Params struct {
	// NClusters はクラスタ数
	NClusters int
	// NInit は異なる初期値で実行する回数（慣性が最小の結果を採用）
	NInit int
	// MaxIter は最大イテレーション数
	MaxIter int
	// Tol は収束判定の許容誤差（特徴量の分散の平均でスケールされる）
	Tol float64
	// RandomState は乱数シード（負の値は時刻から生成）
	RandomState int64

	// BatchSize はミニバッチサイズ（MiniBatchKMeansのみ）
	BatchSize int
	// MaxNoImprovement は改善なしで打ち切るバッチ数（MiniBatchKMeansのみ）
	MaxNoImprovement int
	// ComputeLabels は学習後に全サンプルのラベルと慣性を計算するか（MiniBatchKMeansのみ）
	ComputeLabels bool
	// ReassignmentRatio は小さいクラスタを再配置する閾値の比率（MiniBatchKMeansのみ）
	ReassignmentRatio float64
}

// KMeansOption はクラスタリングモデルの設定オプション
type KMeansOption func(*Params)

// WithKMeansNClusters はクラスタ数を設定
func WithKMeansNClusters(n int) KMeansOption {
	return func(p *Params) {
		p.NClusters = n
	}
}

// WithKMeansNInit は初期化の試行回数を設定
func WithKMeansNInit(n int) KMeansOption {
	return func(p *Params) {
		p.NInit = n
	}
}

// WithKMeansMaxIter は最大イテレーション数を設定
func WithKMeansMaxIter(maxIter int) KMeansOption {
	return func(p *Params) {
		p.MaxIter = maxIter
	}
}

// WithKMeansTol は収束判定の許容誤差を設定
func WithKMeansTol(tol float64) KMeansOption {
	return func(p *Params) {
		p.Tol = tol
	}
}

// WithKMeansRandomState は乱数シードを設定
func WithKMeansRandomState(seed int64) KMeansOption {
	return func(p *Params) {
		p.RandomState = seed
	}
}

// WithKMeansBatchSize はミニバッチサイズを設定
func WithKMeansBatchSize(batchSize int) KMeansOption {
	return func(p *Params) {
		p.BatchSize = batchSize
	}
}

// WithKMeansMaxNoImprovement は改善なしで打ち切るバッチ数を設定
func WithKMeansMaxNoImprovement(n int) KMeansOption {
	return func(p *Params) {
		p.MaxNoImprovement = n
	}
}

// WithKMeansComputeLabels は学習後のラベル計算の有無を設定
func WithKMeansComputeLabels(compute bool) KMeansOption {
	return func(p *Params) {
		p.ComputeLabels = compute
	}
}

func (p *Params) validate(op string, nSamples int) error {
	if p.NClusters <= 0 {
		return errors.NewValidationError("n_clusters", "must be positive", p.NClusters)
	}
	if p.NInit <= 0 {
		return errors.NewValidationError("n_init", "must be positive", p.NInit)
	}
	if p.MaxIter <= 0 {
		return errors.NewValidationError("max_iter", "must be positive", p.MaxIter)
	}
	if nSamples < p.NClusters {
		return errors.NewValueError(op, "n_samples must be >= n_clusters")
	}
	return nil
}

func (p *Params) newRand() *rand.Rand {
	if p.RandomState >= 0 {
		return rand.New(rand.NewSource(p.RandomState))
	}
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// rows は行列を行スライスに展開する
func rows(X mat.Matrix) [][]float64 {
	r, _ := X.Dims()
	out := make([][]float64, r)
	for i := range out {
		out[i] = mat.Row(nil, i, X)
	}
	return out
}

// meanVariance は各特徴量の母分散の平均を返す（Tolのスケーリングに使う）
func meanVariance(data [][]float64) float64 {
	n := float64(len(data))
	d := len(data[0])
	total := 0.0
	for j := 0; j < d; j++ {
		mean := 0.0
		for _, x := range data {
			mean += x[j]
		}
		mean /= n
		v := 0.0
		for _, x := range data {
			diff := x[j] - mean
			v += diff * diff
		}
		total += v / n
	}
	return total / float64(d)
}

func sqDist(a, b []float64) float64 {
	sum := 0.0
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}

// nearest は最近傍の中心とその二乗距離を返す
func nearest(x []float64, centers [][]float64) (int, float64) {
	best, bestDist := 0, math.Inf(1)
	for c, center := range centers {
		if d := sqDist(x, center); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best, bestDist
}

// assign は全サンプルのラベルと慣性（二乗距離の総和）を計算する
func assign(data [][]float64, centers [][]float64) ([]int, []float64, float64) {
	labels := make([]int, len(data))
	dists := make([]float64, len(data))
	inertia := 0.0
	for i, x := range data {
		labels[i], dists[i] = nearest(x, centers)
		inertia += dists[i]
	}
	return labels, dists, inertia
}

// kmeansPlusPlus は貪欲なk-means++で初期中心を選ぶ
//
// 各ステップで 2+log(k) 個の候補を距離の二乗に比例してサンプリングし、
// 慣性が最も小さくなる候補を採用する
func kmeansPlusPlus(data [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(data)
	nTrials := 2 + int(math.Log(float64(k)))
	centers := make([][]float64, 0, k)

	first := rng.Intn(n)
	centers = append(centers, append([]float64(nil), data[first]...))

	closest := make([]float64, n)
	pot := 0.0
	for i, x := range data {
		closest[i] = sqDist(x, centers[0])
		pot += closest[i]
	}

	cum := make([]float64, n)
	for c := 1; c < k; c++ {
		acc := 0.0
		for i, d := range closest {
			acc += d
			cum[i] = acc
		}

		bestCand, bestPot := -1, math.Inf(1)
		var bestClosest []float64
		for t := 0; t < nTrials; t++ {
			target := rng.Float64() * pot
			cand := searchSorted(cum, target)
			candClosest := make([]float64, n)
			candPot := 0.0
			for i, x := range data {
				candClosest[i] = math.Min(closest[i], sqDist(x, data[cand]))
				candPot += candClosest[i]
			}
			if bestCand < 0 || candPot < bestPot {
				bestCand, bestPot, bestClosest = cand, candPot, candClosest
			}
		}

		centers = append(centers, append([]float64(nil), data[bestCand]...))
		closest = bestClosest
		pot = bestPot
	}
	return centers
}

// searchSorted は cum[i] >= target となる最小の i を返す
func searchSorted(cum []float64, target float64) int {
	lo, hi := 0, len(cum)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if cum[mid] < target {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func copyCenters(centers [][]float64) [][]float64 {
	out := make([][]float64, len(centers))
	for i, c := range centers {
		out[i] = append([]float64(nil), c...)
	}
	return out
}

// distances はサンプルごとに各中心へのユークリッド距離を並べた行列を返す
func distances(X mat.Matrix, centers [][]float64) *mat.Dense {
	data := rows(X)
	out := mat.NewDense(len(data), len(centers), nil)
	for i, x := range data {
		for c, center := range centers {
			out.Set(i, c, math.Sqrt(sqDist(x, center)))
		}
	}
	return out
}

func predict(X mat.Matrix, centers [][]float64) *mat.Dense {
	data := rows(X)
	out := mat.NewDense(len(data), 1, nil)
	for i, x := range data {
		c, _ := nearest(x, centers)
		out.Set(i, 0, float64(c))
	}
	return out
}
