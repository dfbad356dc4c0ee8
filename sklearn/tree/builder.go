package tree

import (
	"math"
	"math/rand"
	"sort"

	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
)

// Criterion は分岐の良さを測る不純度の種類
type Criterion string

const (
	Gini    Criterion = "gini"
	Entropy Criterion = "entropy"
	MSE     Criterion = "mse"
)

// featureThreshold より近い特徴量の値は同じとみなす
const featureThreshold = 1e-7

// BuildParams は木の成長を制御するパラメータ
type BuildParams struct {
	Criterion       Criterion
	MaxDepth        int // 0 は無制限
	MinSamplesSplit int
	MinSamplesLeaf  int
	MaxFeatures     int // 各ノードで評価する特徴量の数 (0 は全て)
}

// Build は列優先の特徴量 cols (n_features × n_samples) から木を深さ優先で成長させる
//
// 分類では y にクラス番号 (0..nClasses-1) を与え、回帰では nClasses を 0 にする。
// weights が nil の場合は全て1とみなし、重み0のサンプルは木に含めない。
func Build(cols [][]float64, y []float64, nClasses int, weights []float64, p BuildParams, rng *rand.Rand) (*Tree, error) {
	if len(cols) == 0 || len(y) == 0 {
		return nil, errors.NewModelError("tree.Build", "empty data", errors.ErrEmptyData)
	}
	if p.MinSamplesSplit < 2 {
		return nil, errors.NewValidationError("min_samples_split", "must be at least 2", p.MinSamplesSplit)
	}
	if p.MinSamplesLeaf < 1 {
		return nil, errors.NewValidationError("min_samples_leaf", "must be at least 1", p.MinSamplesLeaf)
	}
	switch p.Criterion {
	case Gini, Entropy:
		if nClasses <= 0 {
			return nil, errors.NewValidationError("criterion", "classification criterion needs classes", p.Criterion)
		}
	case MSE:
		nClasses = 0
	default:
		return nil, errors.NewValidationError("criterion", "must be gini, entropy or mse", p.Criterion)
	}
	if p.MaxFeatures <= 0 || p.MaxFeatures > len(cols) {
		p.MaxFeatures = len(cols)
	}

	samples := make([]int, 0, len(y))
	for i := range y {
		if weights == nil || weights[i] != 0 {
			samples = append(samples, i)
		}
	}
	if weights == nil {
		weights = make([]float64, len(y))
		for i := range weights {
			weights[i] = 1
		}
	}
	if len(samples) == 0 {
		return nil, errors.NewValueError("tree.Build", "all sample weights are zero")
	}

	b := &builder{
		cols:     cols,
		y:        y,
		w:        weights,
		nClasses: nClasses,
		params:   p,
		rng:      rng,
		tree:     &Tree{NFeatures: len(cols), NClasses: nClasses},
	}
	b.grow(samples, 0)
	return b.tree, nil
}

type builder struct {
	cols     [][]float64
	y        []float64
	w        []float64
	nClasses int
	params   BuildParams
	rng      *rand.Rand
	tree     *Tree
}

// stats はノード内のサンプルの十分統計量
type stats struct {
	w      float64
	counts []float64 // 分類
	sum    float64   // 回帰
	sqSum  float64
}

func (b *builder) newStats() stats {
	if b.nClasses > 0 {
		return stats{counts: make([]float64, b.nClasses)}
	}
	return stats{}
}

func (b *builder) add(s *stats, i int, sign float64) {
	w := b.w[i] * sign
	s.w += w
	if b.nClasses > 0 {
		s.counts[int(b.y[i])] += w
		return
	}
	s.sum += w * b.y[i]
	s.sqSum += w * b.y[i] * b.y[i]
}

func (b *builder) impurity(s *stats) float64 {
	if s.w <= 0 {
		return 0
	}
	switch b.params.Criterion {
	case Gini:
		g := 1.0
		for _, c := range s.counts {
			p := c / s.w
			g -= p * p
		}
		return g
	case Entropy:
		e := 0.0
		for _, c := range s.counts {
			if c > 0 {
				p := c / s.w
				e -= p * math.Log2(p)
			}
		}
		return e
	default:
		mean := s.sum / s.w
		return s.sqSum/s.w - mean*mean
	}
}

func (b *builder) value(s *stats) []float64 {
	if b.nClasses > 0 {
		return append([]float64(nil), s.counts...)
	}
	return []float64{s.sum / s.w}
}

type split struct {
	feature   int
	threshold float64
	pos       int // samples[:pos] が左
	proxy     float64
}

func (b *builder) grow(samples []int, depth int) int {
	node := b.newStats()
	for _, i := range samples {
		b.add(&node, i, 1)
	}
	imp := b.impurity(&node)
	id := b.tree.addNode(Leaf, 0, b.value(&node), imp, len(samples), node.w)
	if depth > b.tree.MaxDepth {
		b.tree.MaxDepth = depth
	}

	n := len(samples)
	p := b.params
	if (p.MaxDepth > 0 && depth >= p.MaxDepth) ||
		n < p.MinSamplesSplit ||
		n < 2*p.MinSamplesLeaf ||
		imp <= 0 {
		return id
	}

	best, ok := b.bestSplit(samples, &node)
	if !ok {
		return id
	}

	// best.feature でサンプルを並べ直して左右に分ける
	col := b.cols[best.feature]
	left := make([]int, 0, best.pos)
	right := make([]int, 0, n-best.pos)
	for _, i := range samples {
		if col[i] <= best.threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	b.tree.Feature[id] = best.feature
	b.tree.Threshold[id] = best.threshold
	l := b.grow(left, depth+1)
	r := b.grow(right, depth+1)
	b.tree.ChildrenLeft[id] = l
	b.tree.ChildrenRight[id] = r
	return id
}

// bestSplit は特徴量をランダムな順に調べ、MaxFeatures 個の非定数特徴量の中で
// 子ノードの重み付き不純度の和が最小になる分岐を返す
func (b *builder) bestSplit(samples []int, node *stats) (split, bool) {
	nFeatures := len(b.cols)
	order := b.rng.Perm(nFeatures)
	best := split{proxy: math.Inf(-1), feature: -1}

	sorted := make([]int, len(samples))
	visited := 0
	for _, f := range order {
		if visited >= b.params.MaxFeatures {
			break
		}
		col := b.cols[f]

		copy(sorted, samples)
		sort.SliceStable(sorted, func(a, c int) bool { return col[sorted[a]] < col[sorted[c]] })
		if col[sorted[len(sorted)-1]] <= col[sorted[0]]+featureThreshold {
			continue // 定数特徴量
		}
		visited++

		left := b.newStats()
		right := *node
		if b.nClasses > 0 {
			right.counts = append([]float64(nil), node.counts...)
		}
		for pos := 1; pos < len(sorted); pos++ {
			i := sorted[pos-1]
			b.add(&left, i, 1)
			b.add(&right, i, -1)

			if col[sorted[pos]] <= col[i]+featureThreshold {
				continue
			}
			if pos < b.params.MinSamplesLeaf || len(sorted)-pos < b.params.MinSamplesLeaf {
				continue
			}
			proxy := -left.w*b.impurity(&left) - right.w*b.impurity(&right)
			if proxy > best.proxy {
				threshold := col[i]/2 + col[sorted[pos]]/2
				if threshold == col[sorted[pos]] || math.IsInf(threshold, 0) {
					threshold = col[i]
				}
				best = split{feature: f, threshold: threshold, pos: pos, proxy: proxy}
			}
		}
	}
	return best, best.feature >= 0
}
