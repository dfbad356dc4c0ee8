package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/rs/zerolog"
)

// 警告は処理を止めずに通知だけ行う。pkg/log の SetupLogger が
// zerolog へ流すシンクを登録する。未登録の間は標準ロガーに出力する。
var (
	sinkMu sync.Mutex
	sink   func(w error)
)

// SetWarningSink は警告の出力先を差し替える。nil で既定に戻る。
func SetWarningSink(fn func(w error)) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	sink = fn
}

// Warn は警告を現在のシンクに渡す。
func Warn(w error) {
	sinkMu.Lock()
	defer sinkMu.Unlock()
	if sink != nil {
		sink(w)
		return
	}
	log.Printf("warning: %v", w)
}

// ConvergenceWarning は反復法が max_iter 以内に収束しなかったことを表す。
// 学習結果はその時点の値のまま使われる。
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

func (w *ConvergenceWarning) Error() string {
	msg := fmt.Sprintf("%s did not converge in %d iterations", w.Algorithm, w.Iterations)
	if w.Message != "" {
		msg += ": " + w.Message
	}
	return msg
}

func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", "ConvergenceWarning").
		Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("detail", w.Message)
}

// DataConversionWarning は入力列の型を暗黙に変換したことを表す。
// 例: 文字列列を数値として読んだ場合。
type DataConversionWarning struct {
	FromType string
	ToType   string
	Reason   string
}

func NewDataConversionWarning(from, to, reason string) *DataConversionWarning {
	return &DataConversionWarning{FromType: from, ToType: to, Reason: reason}
}

func (w *DataConversionWarning) Error() string {
	return fmt.Sprintf("converted %s data to %s (%s)", w.FromType, w.ToType, w.Reason)
}

func (w *DataConversionWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("type", "DataConversionWarning").
		Str("from_type", w.FromType).
		Str("to_type", w.ToType).
		Str("reason", w.Reason)
}
