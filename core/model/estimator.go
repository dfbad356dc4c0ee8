package model

import "gonum.org/v1/gonum/mat"

// Fitter は学習可能なモデルのインターフェース
//
// クラスタリングのように教師ラベルを使わないモデルは y に nil を受け取る
type Fitter interface {
	// Fit はモデルを訓練データで学習させる
	Fit(X, y mat.Matrix) error
}

// Predictor は予測可能なモデルのインターフェース
type Predictor interface {
	// Predict は入力データに対する予測を行う (n_samples × 1)
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Estimator は学習と予測ができるモデル
type Estimator interface {
	Fitter
	Predictor
	IsFitted() bool
}

// Classifier は分類器のインターフェース
type Classifier interface {
	Estimator

	// Classes は学習時に見たクラスラベルを昇順で返す
	Classes() []float64
}

// ProbabilisticClassifier はクラス確率を出力できる分類器
type ProbabilisticClassifier interface {
	Classifier

	// PredictProba は各クラスの確率を返す (n_samples × n_classes)
	// 列の順序は Classes() と一致する
	PredictProba(X mat.Matrix) (mat.Matrix, error)
}

// Clusterer はクラスタリングモデルのインターフェース
type Clusterer interface {
	Estimator

	// ClusterCenters は学習されたクラスタ中心を返す (n_clusters × n_features)
	ClusterCenters() [][]float64
}
