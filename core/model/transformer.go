package model

import "gonum.org/v1/gonum/mat"

// Transformer は数値データ変換のインターフェース
type Transformer interface {
	// Fit は変換に必要なパラメータを学習する
	Fit(X mat.Matrix) error

	// Transform はデータを変換する
	Transform(X mat.Matrix) (mat.Matrix, error)

	// FitTransform はFitとTransformを同時に実行する
	FitTransform(X mat.Matrix) (mat.Matrix, error)
}

// LabelTransformer は文字列ラベル列を数値列に変換するエンコーダのインターフェース
type LabelTransformer interface {
	// FitLabels はラベルの集合を学習する
	FitLabels(y []string) error

	// TransformLabels はラベルを数値行列に変換する (n_samples × n_outputs)
	TransformLabels(y []string) (mat.Matrix, error)

	// OutputNames は変換後の各列に対応する名前の接尾辞を返す
	OutputNames() []string
}
