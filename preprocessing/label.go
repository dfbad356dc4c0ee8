package preprocessing

import (
	"sort"
	"strconv"

	"github.com/YuminosukeSato/scigo-fixtures/core/model"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// uniqueSorted はラベルの重複を除いて辞書順に並べる
func uniqueSorted(y []string) []string {
	seen := make(map[string]bool, len(y))
	classes := make([]string, 0)
	for _, v := range y {
		if !seen[v] {
			seen[v] = true
			classes = append(classes, v)
		}
	}
	sort.Strings(classes)
	return classes
}

// LabelEncoder は文字列ラベルを 0..n_classes-1 の整数コードに変換する
//
// クラスは辞書順に並べられ、コードはその位置になる
type LabelEncoder struct {
	model.BaseEstimator

	// Classes は学習時に見たラベル（昇順）
	Classes []string
}

// NewLabelEncoder は新しいLabelEncoderを作成する
func NewLabelEncoder() *LabelEncoder {
	return &LabelEncoder{}
}

// FitLabels はラベルの集合を学習する
func (e *LabelEncoder) FitLabels(y []string) error {
	if len(y) == 0 {
		return errors.NewModelError("LabelEncoder.Fit", "empty data", errors.ErrEmptyData)
	}
	e.Classes = uniqueSorted(y)
	e.SetFitted()
	return nil
}

// Encode はラベルを整数コードに変換する
// 学習時に見ていないラベルはエラーになる
func (e *LabelEncoder) Encode(y []string) ([]float64, error) {
	if !e.IsFitted() {
		return nil, errors.NewNotFittedError("LabelEncoder", "Transform")
	}
	codes := make([]float64, len(y))
	for i, v := range y {
		k := sort.SearchStrings(e.Classes, v)
		if k == len(e.Classes) || e.Classes[k] != v {
			return nil, errors.NewValueError("LabelEncoder.Transform", "unseen label "+strconv.Quote(v))
		}
		codes[i] = float64(k)
	}
	return codes, nil
}

// TransformLabels はラベルを n_samples × 1 のコード行列に変換する
func (e *LabelEncoder) TransformLabels(y []string) (mat.Matrix, error) {
	codes, err := e.Encode(y)
	if err != nil {
		return nil, err
	}
	if len(codes) == 0 {
		return nil, errors.NewModelError("LabelEncoder.Transform", "empty data", errors.ErrEmptyData)
	}
	return mat.NewDense(len(codes), 1, codes), nil
}

// InverseLabels は整数コードを元のラベルに戻す
func (e *LabelEncoder) InverseLabels(codes []float64) ([]string, error) {
	if !e.IsFitted() {
		return nil, errors.NewNotFittedError("LabelEncoder", "InverseTransform")
	}
	labels := make([]string, len(codes))
	for i, c := range codes {
		k := int(c)
		if float64(k) != c || k < 0 || k >= len(e.Classes) {
			return nil, errors.NewValueError("LabelEncoder.InverseTransform", "invalid code "+strconv.FormatFloat(c, 'g', -1, 64))
		}
		labels[i] = e.Classes[k]
	}
	return labels, nil
}

// OutputNames は出力が1列であることを示す
func (e *LabelEncoder) OutputNames() []string {
	return []string{""}
}

// LabelBinarizer は文字列ラベルをone-vs-allの指示行列に変換する
//
//   - 1クラス: NegLabel だけの1列
//   - 2クラス: 2番目のクラスで PosLabel となる1列
//   - 3クラス以上: クラスごとに1列
//
// 学習時に見ていないラベルは全列 NegLabel になる
type LabelBinarizer struct {
	model.BaseEstimator

	// Classes は学習時に見たラベル（昇順）
	Classes []string

	// NegLabel は負例の値 (デフォルト: 0)
	NegLabel float64

	// PosLabel は正例の値 (デフォルト: 1)
	PosLabel float64
}

// NewLabelBinarizer はデフォルト設定 (neg=0, pos=1) でLabelBinarizerを作成する
func NewLabelBinarizer() *LabelBinarizer {
	return &LabelBinarizer{NegLabel: 0, PosLabel: 1}
}

// FitLabels はラベルの集合を学習する
func (b *LabelBinarizer) FitLabels(y []string) error {
	if len(y) == 0 {
		return errors.NewModelError("LabelBinarizer.Fit", "empty data", errors.ErrEmptyData)
	}
	if b.NegLabel >= b.PosLabel {
		return errors.NewValidationError("neg_label", "must be strictly less than pos_label", b.NegLabel)
	}
	b.Classes = uniqueSorted(y)
	b.SetFitted()
	return nil
}

// TransformLabels はラベルを指示行列に変換する
func (b *LabelBinarizer) TransformLabels(y []string) (mat.Matrix, error) {
	if !b.IsFitted() {
		return nil, errors.NewNotFittedError("LabelBinarizer", "Transform")
	}
	if len(y) == 0 {
		return nil, errors.NewModelError("LabelBinarizer.Transform", "empty data", errors.ErrEmptyData)
	}

	nClasses := len(b.Classes)
	out := mat.NewDense(len(y), len(b.OutputNames()), nil)
	for i, v := range y {
		k := sort.SearchStrings(b.Classes, v)
		known := k < nClasses && b.Classes[k] == v
		switch {
		case nClasses <= 2:
			if known && nClasses == 2 && k == 1 {
				out.Set(i, 0, b.PosLabel)
			} else {
				out.Set(i, 0, b.NegLabel)
			}
		default:
			for j := 0; j < nClasses; j++ {
				out.Set(i, j, b.NegLabel)
			}
			if known {
				out.Set(i, k, b.PosLabel)
			}
		}
	}
	return out, nil
}

// OutputNames は各出力列に対応するクラス名を返す
func (b *LabelBinarizer) OutputNames() []string {
	switch len(b.Classes) {
	case 0:
		return nil
	case 1:
		return []string{b.Classes[0]}
	case 2:
		return []string{b.Classes[1]}
	default:
		names := make([]string, len(b.Classes))
		copy(names, b.Classes)
		return names
	}
}
