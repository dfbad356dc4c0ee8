package cluster

import (
	"math"
	"math/rand"
	"sort"

	"github.com/YuminosukeSato/scigo-fixtures/core/model"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// KMeans はLloydアルゴリズムによるK-meansクラスタリング
// scikit-learnのKMeans(algorithm="full")と同じ手順で学習する
type KMeans struct {
	model.BaseEstimator
	Params

	// 学習パラメータ
	Centers     [][]float64 // クラスタ中心（NClusters × NFeatures）
	TrainLabels []int       // 学習データのクラスタラベル
	Inertia     float64     // クラスタ内平方和誤差
	NIter       int         // 採用した実行のイテレーション数
	NFeatures   int
}

// NewKMeans は新しいKMeansを作成
//
// デフォルト: n_clusters=8, n_init=10, max_iter=300, tol=1e-4
//
// 使用例:
//
//	km := cluster.NewKMeans(
//	    cluster.WithKMeansNClusters(3),
//	    cluster.WithKMeansRandomState(13),
//	)
//	err := km.Fit(X, nil)
func NewKMeans(options ...KMeansOption) *KMeans {
	km := &KMeans{
		Params: Params{
			NClusters:   8,
			NInit:       10,
			MaxIter:     300,
			Tol:         1e-4,
			RandomState: -1,
		},
	}
	for _, opt := range options {
		opt(&km.Params)
	}
	return km
}

// Fit はモデルを学習する（y は使わない）
func (km *KMeans) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "KMeans.Fit")

	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("KMeans.Fit", "empty data", errors.ErrEmptyData)
	}
	if err := km.validate("KMeans.Fit", nSamples); err != nil {
		return err
	}

	data := rows(X)
	if err := errors.CheckMatrix("KMeans.Fit", X, nSamples, nFeatures); err != nil {
		return err
	}
	tol := km.Tol * meanVariance(data)
	rng := km.newRand()

	bestInertia := math.Inf(1)
	for run := 0; run < km.NInit; run++ {
		centers, labels, inertia, nIter := lloyd(data, km.NClusters, km.MaxIter, tol, rng)
		if inertia < bestInertia {
			bestInertia = inertia
			km.Centers = centers
			km.TrainLabels = labels
			km.NIter = nIter
		}
	}
	km.Inertia = bestInertia
	km.NFeatures = nFeatures

	log.GetLoggerWithName("cluster.kmeans").Debug("KMeans fitted",
		log.SamplesKey, nSamples,
		log.IterationKey, km.NIter,
		"inertia", km.Inertia,
	)

	km.SetFitted()
	return nil
}

// lloyd は1回分のk-means++初期化とLloyd反復を行う
func lloyd(data [][]float64, k, maxIter int, tol float64, rng *rand.Rand) ([][]float64, []int, float64, int) {
	nFeatures := len(data[0])
	centers := kmeansPlusPlus(data, k, rng)

	var labels []int
	var dists []float64
	var inertia float64
	shift := 0.0
	iter := 0
	for iter = 0; iter < maxIter; iter++ {
		labels, dists, inertia = assign(data, centers)

		newCenters := make([][]float64, k)
		counts := make([]int, k)
		for c := range newCenters {
			newCenters[c] = make([]float64, nFeatures)
		}
		for i, x := range data {
			c := labels[i]
			counts[c]++
			for j, v := range x {
				newCenters[c][j] += v
			}
		}

		// 空のクラスタは現在の中心から最も遠いサンプルに移す
		var far []int
		for c := range newCenters {
			if counts[c] > 0 {
				continue
			}
			if far == nil {
				far = argsortDesc(dists)
			}
			idx := far[0]
			far = far[1:]
			copy(newCenters[c], data[idx])
			counts[c] = 1
		}
		for c := range newCenters {
			if counts[c] > 1 {
				for j := range newCenters[c] {
					newCenters[c][j] /= float64(counts[c])
				}
			}
		}

		shift = 0
		for c := range centers {
			shift += sqDist(centers[c], newCenters[c])
		}
		centers = newCenters
		if shift <= tol {
			break
		}
	}
	if iter == maxIter {
		iter--
	}

	if shift > 0 {
		// 最後の中心の更新とラベルを一致させる
		labels, _, inertia = assign(data, centers)
	}
	return centers, labels, inertia, iter + 1
}

// argsortDesc は値の降順に並べたインデックスを返す
func argsortDesc(values []float64) []int {
	idx := make([]int, len(values))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return values[idx[a]] > values[idx[b]] })
	return idx
}

// Predict は各サンプルの最近傍クラスタ番号を返す
func (km *KMeans) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := km.check(X, "Predict"); err != nil {
		return nil, err
	}
	return predict(X, km.Centers), nil
}

// Transform は各クラスタ中心へのユークリッド距離を返す (n_samples × n_clusters)
func (km *KMeans) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := km.check(X, "Transform"); err != nil {
		return nil, err
	}
	return distances(X, km.Centers), nil
}

// FitPredict は学習と予測を同時に行う
func (km *KMeans) FitPredict(X mat.Matrix) (mat.Matrix, error) {
	if err := km.Fit(X, nil); err != nil {
		return nil, err
	}
	return km.Predict(X)
}

// ClusterCenters は学習されたクラスタ中心のコピーを返す
func (km *KMeans) ClusterCenters() [][]float64 {
	return copyCenters(km.Centers)
}

func (km *KMeans) check(X mat.Matrix, method string) error {
	if !km.IsFitted() {
		return errors.NewNotFittedError("KMeans", method)
	}
	r, c := X.Dims()
	if r == 0 {
		return errors.NewModelError("KMeans."+method, "empty data", errors.ErrEmptyData)
	}
	if c != km.NFeatures {
		return errors.NewDimensionError("KMeans."+method, km.NFeatures, c, 1)
	}
	return nil
}
