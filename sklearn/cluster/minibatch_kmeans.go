package cluster

import (
	"math"
	"math/rand"

	"github.com/YuminosukeSato/scigo-fixtures/core/model"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// MiniBatchKMeans はミニバッチK-meansクラスタリング
// scikit-learnのMiniBatchKMeansと互換性を持つ
type MiniBatchKMeans struct {
	model.BaseEstimator
	Params

	// 学習パラメータ
	Centers     [][]float64 // クラスタ中心（NClusters × NFeatures）
	Counts      []float64   // 各クラスタに割り当てられたサンプル数の累計
	TrainLabels []int       // 学習データのラベル（ComputeLabels=false の場合は nil）
	Inertia     float64     // 学習データの慣性（ComputeLabels=false の場合は 0）
	NIter       int         // 実行したミニバッチ数
	NFeatures   int
}

// NewMiniBatchKMeans は新しいMiniBatchKMeansを作成
//
// デフォルト: n_clusters=8, batch_size=100, max_iter=100, n_init=3,
// max_no_improvement=10, compute_labels=true, tol=0
func NewMiniBatchKMeans(options ...KMeansOption) *MiniBatchKMeans {
	kmeans := &MiniBatchKMeans{
		Params: Params{
			NClusters:         8,
			NInit:             3,
			MaxIter:           100,
			Tol:               0,
			RandomState:       -1,
			BatchSize:         100,
			MaxNoImprovement:  10,
			ComputeLabels:     true,
			ReassignmentRatio: 0.01,
		},
	}
	for _, opt := range options {
		opt(&kmeans.Params)
	}
	return kmeans
}

// Fit はミニバッチでモデルを訓練する（y は使わない）
//
// 初期化は init_size = 3*batch_size 個のサンプルに対するk-means++を NInit 回行い、
// 検証用サンプルでの慣性が最小のものを採用する。その後 MaxIter エポック分の
// ミニバッチ更新を行い、慣性の指数移動平均が MaxNoImprovement 回続けて改善しなければ打ち切る
func (kmeans *MiniBatchKMeans) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "MiniBatchKMeans.Fit")

	nSamples, nFeatures := X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return errors.NewModelError("MiniBatchKMeans.Fit", "empty data", errors.ErrEmptyData)
	}
	if err := kmeans.validate("MiniBatchKMeans.Fit", nSamples); err != nil {
		return err
	}
	if kmeans.BatchSize <= 0 {
		return errors.NewValidationError("batch_size", "must be positive", kmeans.BatchSize)
	}
	if err := errors.CheckMatrix("MiniBatchKMeans.Fit", X, nSamples, nFeatures); err != nil {
		return err
	}

	data := rows(X)
	rng := kmeans.newRand()
	tol := 0.0
	if kmeans.Tol > 0 {
		tol = kmeans.Tol * meanVariance(data)
	}

	batchSize := min(kmeans.BatchSize, nSamples)
	initSize := 3 * batchSize
	if initSize < kmeans.NClusters {
		initSize = 3 * kmeans.NClusters
	}
	initSize = min(initSize, nSamples)

	validation := sampleRows(data, initSize, rng)

	// 初期化の試行
	var centers [][]float64
	var counts []float64
	bestInertia := math.Inf(1)
	for run := 0; run < kmeans.NInit; run++ {
		initData := sampleRows(data, initSize, rng)
		cand := kmeansPlusPlus(initData, kmeans.NClusters, rng)
		candCounts := make([]float64, kmeans.NClusters)
		miniBatchStep(validation, cand, candCounts, false, 0, rng)
		_, _, inertia := assign(validation, cand)
		if inertia < bestInertia {
			bestInertia = inertia
			centers = cand
			counts = candCounts
		}
	}

	nBatches := (nSamples + batchSize - 1) / batchSize
	nIter := kmeans.MaxIter * nBatches

	ewa := convergenceState{alpha: math.Min(float64(batchSize)*2/float64(nSamples+1), 1)}
	iter := 0
	for iter = 0; iter < nIter; iter++ {
		batch := make([][]float64, batchSize)
		for i := range batch {
			batch[i] = data[rng.Intn(nSamples)]
		}

		minCount := counts[0]
		for _, c := range counts {
			minCount = math.Min(minCount, c)
		}
		reassign := (iter+1)%(10+int(minCount)) == 0

		batchInertia, shift := miniBatchStep(batch, centers, counts, reassign, kmeans.ReassignmentRatio, rng)
		if ewa.update(batchInertia/float64(batchSize), shift, tol, kmeans.MaxNoImprovement) {
			break
		}
	}

	kmeans.Centers = centers
	kmeans.Counts = counts
	kmeans.NIter = iter + 1
	if iter == nIter {
		kmeans.NIter = nIter
	}
	kmeans.NFeatures = nFeatures
	kmeans.TrainLabels = nil
	kmeans.Inertia = 0
	if kmeans.ComputeLabels {
		kmeans.TrainLabels, _, kmeans.Inertia = assign(data, centers)
	}

	log.GetLoggerWithName("cluster.minibatch_kmeans").Debug("MiniBatchKMeans fitted",
		log.SamplesKey, nSamples,
		log.IterationKey, kmeans.NIter,
	)

	kmeans.SetFitted()
	return nil
}

// PartialFit は1つのミニバッチで中心を更新する
// 未学習の場合はバッチに対するk-means++で初期化する
func (kmeans *MiniBatchKMeans) PartialFit(X mat.Matrix) (err error) {
	defer errors.Recover(&err, "MiniBatchKMeans.PartialFit")

	nSamples, nFeatures := X.Dims()
	if nSamples == 0 {
		return errors.NewModelError("MiniBatchKMeans.PartialFit", "empty data", errors.ErrEmptyData)
	}

	data := rows(X)
	rng := kmeans.newRand()
	if kmeans.Centers == nil {
		if err := kmeans.validate("MiniBatchKMeans.PartialFit", nSamples); err != nil {
			return err
		}
		kmeans.NFeatures = nFeatures
		kmeans.Centers = kmeansPlusPlus(data, kmeans.NClusters, rng)
		kmeans.Counts = make([]float64, kmeans.NClusters)
	}
	if nFeatures != kmeans.NFeatures {
		return errors.NewDimensionError("MiniBatchKMeans.PartialFit", kmeans.NFeatures, nFeatures, 1)
	}

	minCount := kmeans.Counts[0]
	for _, c := range kmeans.Counts {
		minCount = math.Min(minCount, c)
	}
	reassign := (kmeans.NIter+1)%(10+int(minCount)) == 0
	miniBatchStep(data, kmeans.Centers, kmeans.Counts, reassign, kmeans.ReassignmentRatio, rng)
	kmeans.NIter++

	if kmeans.ComputeLabels {
		kmeans.TrainLabels, _, kmeans.Inertia = assign(data, kmeans.Centers)
	}
	kmeans.SetFitted()
	return nil
}

// miniBatchStep はバッチのサンプルで中心と累計カウントをその場で更新する
// 戻り値はバッチの慣性と中心の移動量（二乗和）
func miniBatchStep(batch, centers [][]float64, counts []float64, reassign bool, ratio float64, rng *rand.Rand) (float64, float64) {
	labels, dists, inertia := assign(batch, centers)

	if reassign && ratio > 0 {
		reassignSmallClusters(batch, dists, centers, counts, ratio, rng)
	}

	k := len(centers)
	d := len(centers[0])
	sums := make([][]float64, k)
	batchCounts := make([]float64, k)
	for i, x := range batch {
		c := labels[i]
		if sums[c] == nil {
			sums[c] = make([]float64, d)
		}
		batchCounts[c]++
		for j, v := range x {
			sums[c][j] += v
		}
	}

	shift := 0.0
	for c := 0; c < k; c++ {
		if batchCounts[c] == 0 {
			continue
		}
		old := append([]float64(nil), centers[c]...)
		total := counts[c] + batchCounts[c]
		for j := 0; j < d; j++ {
			centers[c][j] = (centers[c][j]*counts[c] + sums[c][j]) / total
		}
		counts[c] = total
		shift += sqDist(old, centers[c])
	}
	return inertia, shift
}

// reassignSmallClusters はカウントが小さすぎるクラスタの中心を
// 距離に比例した確率で選んだバッチ内のサンプルに移す
func reassignSmallClusters(batch [][]float64, dists []float64, centers [][]float64, counts []float64, ratio float64, rng *rand.Rand) {
	maxCount := 0.0
	for _, c := range counts {
		maxCount = math.Max(maxCount, c)
	}

	var small []int
	minKept := math.Inf(1)
	for c, cnt := range counts {
		if cnt < ratio*maxCount {
			small = append(small, c)
		} else {
			minKept = math.Min(minKept, cnt)
		}
	}
	if limit := len(batch) / 2; len(small) > limit {
		small = small[:limit]
	}
	if len(small) == 0 || math.IsInf(minKept, 1) {
		return
	}

	cum := make([]float64, len(dists))
	acc := 0.0
	for i, d := range dists {
		acc += d
		cum[i] = acc
	}
	if acc == 0 {
		return
	}
	for _, c := range small {
		idx := searchSorted(cum, rng.Float64()*acc)
		copy(centers[c], batch[idx])
		counts[c] = minKept
	}
}

// convergenceState は慣性の指数移動平均による早期終了の判定状態
type convergenceState struct {
	alpha         float64
	ewaInertia    float64
	ewaInertiaMin float64
	noImprovement int
	started       bool
}

// update は新しいバッチの統計量を取り込み、学習を打ち切るべきなら true を返す
func (s *convergenceState) update(batchInertia, shift, tol float64, maxNoImprovement int) bool {
	if !s.started {
		s.ewaInertia = batchInertia
		s.ewaInertiaMin = batchInertia
		s.started = true
		return false
	}
	s.ewaInertia = s.ewaInertia*(1-s.alpha) + batchInertia*s.alpha

	if tol > 0 && shift <= tol {
		return true
	}

	if s.ewaInertia < s.ewaInertiaMin {
		s.noImprovement = 0
		s.ewaInertiaMin = s.ewaInertia
	} else {
		s.noImprovement++
	}
	return maxNoImprovement > 0 && s.noImprovement >= maxNoImprovement
}

// sampleRows は重複ありで n 行を無作為に選ぶ
func sampleRows(data [][]float64, n int, rng *rand.Rand) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = data[rng.Intn(len(data))]
	}
	return out
}

// Predict は各サンプルの最近傍クラスタ番号を返す
func (kmeans *MiniBatchKMeans) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := kmeans.check(X, "Predict"); err != nil {
		return nil, err
	}
	return predict(X, kmeans.Centers), nil
}

// Transform はデータをクラスタ中心とのユークリッド距離に変換
func (kmeans *MiniBatchKMeans) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := kmeans.check(X, "Transform"); err != nil {
		return nil, err
	}
	return distances(X, kmeans.Centers), nil
}

// FitPredict は学習と予測を同時に行う
func (kmeans *MiniBatchKMeans) FitPredict(X mat.Matrix) (mat.Matrix, error) {
	if err := kmeans.Fit(X, nil); err != nil {
		return nil, err
	}
	return kmeans.Predict(X)
}

// ClusterCenters は学習されたクラスタ中心のコピーを返す
func (kmeans *MiniBatchKMeans) ClusterCenters() [][]float64 {
	return copyCenters(kmeans.Centers)
}

func (kmeans *MiniBatchKMeans) check(X mat.Matrix, method string) error {
	if !kmeans.IsFitted() {
		return errors.NewNotFittedError("MiniBatchKMeans", method)
	}
	r, c := X.Dims()
	if r == 0 {
		return errors.NewModelError("MiniBatchKMeans."+method, "empty data", errors.ErrEmptyData)
	}
	if c != kmeans.NFeatures {
		return errors.NewDimensionError("MiniBatchKMeans."+method, kmeans.NFeatures, c, 1)
	}
	return nil
}
