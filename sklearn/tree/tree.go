// Package tree はCART決定木（分類・回帰）を提供する
//
// 木は配列表現（ノード番号で引く並列スライス）で保持され、
// gobでそのまま保存・復元できる。ensemble パッケージはこの木を
// ランダムフォレストや勾配ブースティングの弱学習器として使う。
package tree

// Leaf は子ノードが存在しないことを表すノード番号
const Leaf = -1

// Tree は学習済みの二分木
//
// ノード i の分岐は X[Feature[i]] <= Threshold[i] なら ChildrenLeft[i]、
// それ以外は ChildrenRight[i] に進む。葉では両方の子が Leaf になる。
type Tree struct {
	ChildrenLeft  []int
	ChildrenRight []int
	Feature       []int
	Threshold     []float64

	// Value は分類木では重み付きクラス頻度、回帰木では [重み付き平均]
	Value [][]float64

	Impurity             []float64
	NNodeSamples         []int
	WeightedNNodeSamples []float64

	NFeatures int
	NClasses  int // 回帰木では 0
	MaxDepth  int // 実際の深さ
}

// NodeCount はノード数を返す
func (t *Tree) NodeCount() int {
	return len(t.Feature)
}

// NLeaves は葉の数を返す
func (t *Tree) NLeaves() int {
	n := 0
	for _, l := range t.ChildrenLeft {
		if l == Leaf {
			n++
		}
	}
	return n
}

// IsLeaf はノードが葉かどうかを返す
func (t *Tree) IsLeaf(node int) bool {
	return t.ChildrenLeft[node] == Leaf
}

// Apply はサンプルが到達する葉のノード番号を返す
func (t *Tree) Apply(x []float64) int {
	node := 0
	for !t.IsLeaf(node) {
		if x[t.Feature[node]] <= t.Threshold[node] {
			node = t.ChildrenLeft[node]
		} else {
			node = t.ChildrenRight[node]
		}
	}
	return node
}

// FeatureImportances は不純度減少量に基づく特徴量重要度を返す（合計1に正規化）
func (t *Tree) FeatureImportances() []float64 {
	imp := make([]float64, t.NFeatures)
	if t.NodeCount() == 0 {
		return imp
	}
	for i := range t.Feature {
		if t.IsLeaf(i) {
			continue
		}
		l, r := t.ChildrenLeft[i], t.ChildrenRight[i]
		imp[t.Feature[i]] += t.WeightedNNodeSamples[i]*t.Impurity[i] -
			t.WeightedNNodeSamples[l]*t.Impurity[l] -
			t.WeightedNNodeSamples[r]*t.Impurity[r]
	}
	total := 0.0
	for i := range imp {
		imp[i] /= t.WeightedNNodeSamples[0]
		total += imp[i]
	}
	if total > 0 {
		for i := range imp {
			imp[i] /= total
		}
	}
	return imp
}

func (t *Tree) addNode(feature int, threshold float64, value []float64, impurity float64, n int, wn float64) int {
	t.ChildrenLeft = append(t.ChildrenLeft, Leaf)
	t.ChildrenRight = append(t.ChildrenRight, Leaf)
	t.Feature = append(t.Feature, feature)
	t.Threshold = append(t.Threshold, threshold)
	t.Value = append(t.Value, value)
	t.Impurity = append(t.Impurity, impurity)
	t.NNodeSamples = append(t.NNodeSamples, n)
	t.WeightedNNodeSamples = append(t.WeightedNNodeSamples, wn)
	return len(t.Feature) - 1
}
