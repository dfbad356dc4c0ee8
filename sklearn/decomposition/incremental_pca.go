// Package decomposition は行列分解による次元削減を提供する
package decomposition

import (
	"fmt"
	"math"

	"github.com/YuminosukeSato/scigo-fixtures/core/model"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

func init() {
	model.Register(&IncrementalPCA{})
}

// IncrementalPCA はミニバッチごとの特異値分解で主成分を逐次更新するPCA
// scikit-learnのIncrementalPCAと同じ更新式を使う
type IncrementalPCA struct {
	model.BaseEstimator

	// NComponents は保持する主成分の数 (0 の場合は min(n_samples, n_features))
	NComponents int

	// Whiten が true の場合、変換後の各成分を単位分散にスケールする
	Whiten bool

	// BatchSize はFit時のバッチサイズ (0 の場合は 5 * n_features)
	BatchSize int

	// 学習済みパラメータ
	Components             *mat.Dense // n_components × n_features
	SingularValues         []float64
	Mean                   []float64
	Var                    []float64
	ExplainedVariance      []float64
	ExplainedVarianceRatio []float64
	NoiseVariance          float64
	NSamplesSeen           int
	NFeatures              int
	NComponentsFit         int
	BatchSizeFit           int
}

// IPCAOption はIncrementalPCAの設定オプション
type IPCAOption func(*IncrementalPCA)

// WithNComponents は主成分の数を設定
func WithNComponents(n int) IPCAOption {
	return func(p *IncrementalPCA) {
		p.NComponents = n
	}
}

// WithWhiten は白色化の有無を設定
func WithWhiten(whiten bool) IPCAOption {
	return func(p *IncrementalPCA) {
		p.Whiten = whiten
	}
}

// WithBatchSize はFit時のバッチサイズを設定
func WithBatchSize(size int) IPCAOption {
	return func(p *IncrementalPCA) {
		p.BatchSize = size
	}
}

// NewIncrementalPCA は新しいIncrementalPCAを作成する
//
// 使用例:
//
//	pca := decomposition.NewIncrementalPCA(
//	    decomposition.WithNComponents(3),
//	    decomposition.WithWhiten(true),
//	)
//	Xt, err := pca.FitTransform(X)
func NewIncrementalPCA(opts ...IPCAOption) *IncrementalPCA {
	p := &IncrementalPCA{}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Fit はデータをバッチに分けて PartialFit を繰り返す
func (p *IncrementalPCA) Fit(X mat.Matrix) (err error) {
	defer errors.Recover(&err, "IncrementalPCA.Fit")

	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("IncrementalPCA.Fit", "empty data", errors.ErrEmptyData)
	}
	if p.NComponents < 0 {
		return errors.NewValidationError("n_components", "must be non-negative", p.NComponents)
	}

	p.reset()
	p.BatchSizeFit = p.BatchSize
	if p.BatchSizeFit <= 0 {
		p.BatchSizeFit = 5 * c
	}

	data := mat.DenseCopyOf(X)
	for _, b := range genBatches(r, p.BatchSizeFit, p.NComponents) {
		if err := p.PartialFit(data.Slice(b[0], b[1], 0, c)); err != nil {
			return err
		}
	}
	return nil
}

func (p *IncrementalPCA) reset() {
	p.Components = nil
	p.SingularValues = nil
	p.Mean = nil
	p.Var = nil
	p.NSamplesSeen = 0
	p.Reset()
}

// PartialFit は1バッチ分のデータで主成分を更新する
func (p *IncrementalPCA) PartialFit(X mat.Matrix) (err error) {
	defer errors.Recover(&err, "IncrementalPCA.PartialFit")

	nSamples, nFeatures := X.Dims()
	if p.NSamplesSeen > 0 && nFeatures != p.NFeatures {
		return errors.NewDimensionError("IncrementalPCA.PartialFit", p.NFeatures, nFeatures, 1)
	}

	nComponents := p.NComponents
	if nComponents == 0 {
		if p.Components != nil {
			nComponents, _ = p.Components.Dims()
		} else {
			nComponents = min(nSamples, nFeatures)
		}
	}
	if nComponents > nFeatures {
		return errors.NewValidationError("n_components",
			fmt.Sprintf("must be at most n_features=%d", nFeatures), nComponents)
	}
	if nComponents > nSamples {
		return errors.NewValueError("IncrementalPCA.PartialFit",
			fmt.Sprintf("n_components=%d invalid for a batch of %d samples, need more rows than components", nComponents, nSamples))
	}

	if p.NSamplesSeen == 0 {
		p.Mean = make([]float64, nFeatures)
		p.Var = make([]float64, nFeatures)
	}

	colMean, colVar, nTotal := incrementalMeanVar(X, p.Mean, p.Var, p.NSamplesSeen)

	// 中心化したバッチ（2回目以降は過去の成分と平均補正行を積む）
	batchMean := make([]float64, nFeatures)
	for j := 0; j < nFeatures; j++ {
		batchMean[j] = floats.Sum(mat.Col(nil, j, X)) / float64(nSamples)
	}

	var stacked *mat.Dense
	if p.NSamplesSeen == 0 {
		stacked = mat.NewDense(nSamples, nFeatures, nil)
		stacked.Apply(func(_, j int, v float64) float64 { return v - colMean[j] }, X)
	} else {
		k, _ := p.Components.Dims()
		stacked = mat.NewDense(k+nSamples+1, nFeatures, nil)
		for i := 0; i < k; i++ {
			for j := 0; j < nFeatures; j++ {
				stacked.Set(i, j, p.SingularValues[i]*p.Components.At(i, j))
			}
		}
		for i := 0; i < nSamples; i++ {
			for j := 0; j < nFeatures; j++ {
				stacked.Set(k+i, j, X.At(i, j)-batchMean[j])
			}
		}
		corr := math.Sqrt(float64(p.NSamplesSeen) * float64(nSamples) / float64(nTotal))
		for j := 0; j < nFeatures; j++ {
			stacked.Set(k+nSamples, j, corr*(p.Mean[j]-batchMean[j]))
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(stacked, mat.SVDThin); !ok {
		return errors.NewModelError("IncrementalPCA.PartialFit", "svd did not converge", errors.ErrSingularMatrix)
	}
	S := svd.Values(nil)
	var V mat.Dense
	svd.VTo(&V)
	vt := mat.DenseCopyOf(V.T())
	flipSigns(vt)

	totalVar := 0.0
	for _, v := range colVar {
		totalVar += v * float64(nTotal)
	}
	explained := make([]float64, len(S))
	ratio := make([]float64, len(S))
	for i, s := range S {
		explained[i] = s * s / float64(nTotal-1)
		ratio[i] = errors.SafeDivide(s*s, totalVar)
	}

	p.NSamplesSeen = nTotal
	p.NFeatures = nFeatures
	p.NComponentsFit = nComponents
	p.Components = mat.DenseCopyOf(vt.Slice(0, nComponents, 0, nFeatures))
	p.SingularValues = append([]float64(nil), S[:nComponents]...)
	p.Mean = colMean
	p.Var = colVar
	p.ExplainedVariance = append([]float64(nil), explained[:nComponents]...)
	p.ExplainedVarianceRatio = append([]float64(nil), ratio[:nComponents]...)
	if nComponents < nFeatures && nComponents < len(explained) {
		p.NoiseVariance = floats.Sum(explained[nComponents:]) / float64(len(explained)-nComponents)
	} else {
		p.NoiseVariance = 0
	}

	if err := errors.CheckNumericalStability("IncrementalPCA.PartialFit", p.ExplainedVariance, p.NSamplesSeen); err != nil {
		return err
	}

	p.SetFitted()
	return nil
}

// Transform はデータを主成分空間に射影する
func (p *IncrementalPCA) Transform(X mat.Matrix) (mat.Matrix, error) {
	if !p.IsFitted() {
		return nil, errors.NewNotFittedError("IncrementalPCA", "Transform")
	}
	r, c := X.Dims()
	if c != p.NFeatures {
		return nil, errors.NewDimensionError("IncrementalPCA.Transform", p.NFeatures, c, 1)
	}

	centered := mat.NewDense(r, c, nil)
	centered.Apply(func(_, j int, v float64) float64 { return v - p.Mean[j] }, X)

	var out mat.Dense
	out.Mul(centered, p.Components.T())
	if p.Whiten {
		scale := make([]float64, len(p.ExplainedVariance))
		for i, v := range p.ExplainedVariance {
			scale[i] = math.Sqrt(v)
		}
		out.Apply(func(_, j int, v float64) float64 { return errors.SafeDivide(v, scale[j]) }, &out)
	}
	return &out, nil
}

// FitTransform は学習と射影を同時に行う
func (p *IncrementalPCA) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	if err := p.Fit(X); err != nil {
		return nil, err
	}
	return p.Transform(X)
}

// incrementalMeanVar は既存の平均・母分散と新しいバッチを合わせた統計量を返す
func incrementalMeanVar(X mat.Matrix, lastMean, lastVar []float64, lastCount int) ([]float64, []float64, int) {
	n, c := X.Dims()
	total := lastCount + n
	mean := make([]float64, c)
	variance := make([]float64, c)

	col := make([]float64, n)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		newSum := floats.Sum(col)
		newMean := newSum / float64(n)
		newUnnorm := 0.0
		for _, v := range col {
			d := v - newMean
			newUnnorm += d * d
		}

		lastSum := lastMean[j] * float64(lastCount)
		mean[j] = (lastSum + newSum) / float64(total)

		unnorm := newUnnorm
		if lastCount > 0 {
			lastOverNew := float64(lastCount) / float64(n)
			d := lastSum/lastOverNew - newSum
			unnorm = lastVar[j]*float64(lastCount) + newUnnorm + lastOverNew/float64(total)*d*d
		}
		variance[j] = unnorm / float64(total)
	}
	return mean, variance, total
}

// flipSigns は各成分で絶対値最大の要素が正になるよう符号をそろえる
func flipSigns(vt *mat.Dense) {
	r, c := vt.Dims()
	for i := 0; i < r; i++ {
		best, bestAbs := 0, -1.0
		for j := 0; j < c; j++ {
			if a := math.Abs(vt.At(i, j)); a > bestAbs {
				best, bestAbs = j, a
			}
		}
		if vt.At(i, best) < 0 {
			for j := 0; j < c; j++ {
				vt.Set(i, j, -vt.At(i, j))
			}
		}
	}
}

// genBatches は [start, end) の区間列を返す
// 最後のバッチが minBatch より小さくなる場合は直前のバッチに併合する
func genBatches(n, batchSize, minBatch int) [][2]int {
	var out [][2]int
	start := 0
	for k := 0; k < n/batchSize; k++ {
		end := start + batchSize
		if end+minBatch > n {
			continue
		}
		out = append(out, [2]int{start, end})
		start = end
	}
	if start < n {
		out = append(out, [2]int{start, n})
	}
	return out
}
