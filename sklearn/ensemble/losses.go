package ensemble

import (
	"math"

	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Loss は勾配ブースティングの損失関数の名前
type Loss string

const (
	// LeastSquares は二乗誤差（回帰）
	LeastSquares Loss = "ls"
	// Deviance は二値ならロジスティック、多クラスならソフトマックスの対数尤度
	Deviance Loss = "deviance"
	// Exponential はAdaBoostと同じ指数損失（二値のみ）
	Exponential Loss = "exponential"
)

// minDenominator より小さい分母のニュートン更新は0とする
const minDenominator = 1e-150

// lossFunction は生スコア raw (n × K) に対する損失とその勾配
type lossFunction interface {
	// K は生スコアの列数
	K() int
	// initScores は定数予測の初期スコア (K)
	initScores(y []float64) []float64
	// negativeGradient は列 k の負の勾配を residual に書き込む
	negativeGradient(y []float64, raw *mat.Dense, k int, residual []float64)
	// leafValue は葉に入ったサンプルに対するニュートン法の1ステップ
	leafValue(y, residual []float64, raw *mat.Dense, k int, samples []int) float64
	// loss は学習データでの平均損失
	loss(y []float64, raw *mat.Dense) float64
	// proba は1行分の生スコアをクラス確率に変換する
	proba(raw, out []float64)
}

func newLossFunction(l Loss, nClasses int) (lossFunction, error) {
	switch l {
	case LeastSquares:
		if nClasses != 0 {
			return nil, errors.NewValidationError("loss", "ls is a regression loss", l)
		}
		return leastSquares{}, nil
	case Deviance:
		switch {
		case nClasses == 2:
			return binomialDeviance{}, nil
		case nClasses > 2:
			return multinomialDeviance{nClasses: nClasses}, nil
		}
		return nil, errors.NewValidationError("loss", "deviance needs at least 2 classes", l)
	case Exponential:
		if nClasses != 2 {
			return nil, errors.NewValidationError("loss", "exponential loss requires exactly 2 classes", nClasses)
		}
		return exponentialLoss{}, nil
	default:
		return nil, errors.NewValidationError("loss", "must be ls, deviance or exponential", l)
	}
}

// priorLogOdds は陽性クラスの割合の対数オッズ
func priorLogOdds(y []float64) float64 {
	p := floats.Sum(y) / float64(len(y))
	return math.Log(p / (1 - p))
}

type leastSquares struct{}

func (leastSquares) K() int { return 1 }

func (leastSquares) initScores(y []float64) []float64 {
	return []float64{floats.Sum(y) / float64(len(y))}
}

func (leastSquares) negativeGradient(y []float64, raw *mat.Dense, _ int, residual []float64) {
	for i := range y {
		residual[i] = y[i] - raw.At(i, 0)
	}
}

func (leastSquares) leafValue(_, residual []float64, _ *mat.Dense, _ int, samples []int) float64 {
	sum := 0.0
	for _, i := range samples {
		sum += residual[i]
	}
	return sum / float64(len(samples))
}

func (leastSquares) loss(y []float64, raw *mat.Dense) float64 {
	sum := 0.0
	for i := range y {
		d := y[i] - raw.At(i, 0)
		sum += d * d
	}
	return sum / float64(len(y))
}

func (leastSquares) proba(raw, out []float64) { copy(out, raw) }

type binomialDeviance struct{}

func (binomialDeviance) K() int { return 1 }

func (binomialDeviance) initScores(y []float64) []float64 {
	return []float64{priorLogOdds(y)}
}

func (binomialDeviance) negativeGradient(y []float64, raw *mat.Dense, _ int, residual []float64) {
	for i := range y {
		residual[i] = y[i] - errors.Expit(raw.At(i, 0))
	}
}

func (binomialDeviance) leafValue(y, residual []float64, _ *mat.Dense, _ int, samples []int) float64 {
	var num, den float64
	for _, i := range samples {
		num += residual[i]
		den += (y[i] - residual[i]) * (1 - y[i] + residual[i])
	}
	if math.Abs(den) < minDenominator {
		return 0
	}
	return num / den
}

func (binomialDeviance) loss(y []float64, raw *mat.Dense) float64 {
	sum := 0.0
	for i := range y {
		r := raw.At(i, 0)
		sum += y[i]*r - errors.LogSumExp([]float64{0, r})
	}
	return -2 * sum / float64(len(y))
}

func (binomialDeviance) proba(raw, out []float64) {
	p := errors.Expit(raw[0])
	out[0], out[1] = 1-p, p
}

type multinomialDeviance struct {
	nClasses int
}

func (d multinomialDeviance) K() int { return d.nClasses }

func (d multinomialDeviance) initScores(y []float64) []float64 {
	counts := make([]float64, d.nClasses)
	for _, v := range y {
		counts[int(v)]++
	}
	for k := range counts {
		counts[k] = math.Log(counts[k] / float64(len(y)))
	}
	return counts
}

func (d multinomialDeviance) negativeGradient(y []float64, raw *mat.Dense, k int, residual []float64) {
	row := make([]float64, d.nClasses)
	for i := range y {
		mat.Row(row, i, raw)
		residual[i] = indicator(y[i], k) - math.Exp(row[k]-errors.LogSumExp(row))
	}
}

func (d multinomialDeviance) leafValue(y, residual []float64, _ *mat.Dense, k int, samples []int) float64 {
	var num, den float64
	for _, i := range samples {
		yk := indicator(y[i], k)
		num += residual[i]
		den += (yk - residual[i]) * (1 - yk + residual[i])
	}
	num *= float64(d.nClasses-1) / float64(d.nClasses)
	if math.Abs(den) < minDenominator {
		return 0
	}
	return num / den
}

func (d multinomialDeviance) loss(y []float64, raw *mat.Dense) float64 {
	row := make([]float64, d.nClasses)
	sum := 0.0
	for i := range y {
		mat.Row(row, i, raw)
		sum += errors.LogSumExp(row) - row[int(y[i])]
	}
	return sum / float64(len(y))
}

func (d multinomialDeviance) proba(raw, out []float64) {
	lse := errors.LogSumExp(raw)
	for k, r := range raw {
		out[k] = math.Exp(r - lse)
	}
}

type exponentialLoss struct{}

func (exponentialLoss) K() int { return 1 }

func (exponentialLoss) initScores(y []float64) []float64 {
	return []float64{0.5 * priorLogOdds(y)}
}

func (exponentialLoss) negativeGradient(y []float64, raw *mat.Dense, _ int, residual []float64) {
	for i := range y {
		s := 2*y[i] - 1
		residual[i] = s * math.Exp(-s*raw.At(i, 0))
	}
}

func (exponentialLoss) leafValue(y, _ []float64, raw *mat.Dense, _ int, samples []int) float64 {
	var num, den float64
	for _, i := range samples {
		s := 2*y[i] - 1
		e := math.Exp(-s * raw.At(i, 0))
		num += s * e
		den += e
	}
	if math.Abs(den) < minDenominator {
		return 0
	}
	return num / den
}

func (exponentialLoss) loss(y []float64, raw *mat.Dense) float64 {
	sum := 0.0
	for i := range y {
		sum += math.Exp(-(2*y[i] - 1) * raw.At(i, 0))
	}
	return sum / float64(len(y))
}

func (exponentialLoss) proba(raw, out []float64) {
	p := errors.Expit(2 * raw[0])
	out[0], out[1] = 1-p, p
}

func indicator(y float64, k int) float64 {
	if int(y) == k {
		return 1
	}
	return 0
}
