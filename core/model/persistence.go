package model

import (
	"compress/gzip"
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
)

// CompressionLevel は保存時のgzip圧縮レベル（最大圧縮）
const CompressionLevel = gzip.BestCompression

// Register はインターフェース型のフィールドに格納される具象型をgobに登録する
//
// DataFrameMapper のステップのように interface 越しに保持される変換器は
// 保存前に登録しておく必要がある
func Register(value interface{}) {
	gob.Register(value)
}

// SaveModel はモデルをgzip圧縮したgob形式でファイルに保存する
//
// パラメータ:
//   - model: 保存するモデル（公開フィールドを持つ構造体のポインタ）
//   - filename: 保存先のファイルパス（親ディレクトリは自動で作成される）
//
// 戻り値:
//   - error: 保存に失敗した場合のエラー
//
// 使用例:
//
//	kmeans := cluster.NewKMeans(cluster.WithNClusters(3))
//	// ... モデルの学習 ...
//	err := model.SaveModel(kmeans, "pkl/KMeansWheat.pkl")
func SaveModel(model interface{}, filename string) (err error) {
	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.Wrapf(err, "failed to create directory %s", dir)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to create file %s", filename)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "failed to close file %s", filename)
		}
	}()

	return SaveModelToWriter(model, file)
}

// LoadModel はファイルからモデルを読み込む
//
// パラメータ:
//   - model: 読み込み先のモデル（ポインタ）
//   - filename: 読み込み元のファイルパス
//
// 使用例:
//
//	var kmeans cluster.KMeans
//	err := model.LoadModel(&kmeans, "pkl/KMeansWheat.pkl")
func LoadModel(model interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrapf(err, "failed to open file %s", filename)
	}
	defer file.Close()

	return LoadModelFromReader(model, file)
}

// SaveModelToWriter はモデルをgzip圧縮してio.Writerに書き出す
func SaveModelToWriter(model interface{}, w io.Writer) error {
	zw, err := gzip.NewWriterLevel(w, CompressionLevel)
	if err != nil {
		return errors.Wrap(err, "failed to create gzip writer")
	}
	if err := gob.NewEncoder(zw).Encode(model); err != nil {
		zw.Close()
		return errors.Wrap(err, "failed to encode model")
	}
	if err := zw.Close(); err != nil {
		return errors.Wrap(err, "failed to flush gzip stream")
	}
	return nil
}

// LoadModelFromReader はgzip圧縮されたgobストリームからモデルを読み込む
func LoadModelFromReader(model interface{}, r io.Reader) error {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return errors.Wrap(err, "failed to open gzip stream")
	}
	defer zr.Close()

	if err := gob.NewDecoder(zr).Decode(model); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
