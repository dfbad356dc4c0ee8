// Package errors はフィクスチャ生成で使うエラー型と警告を提供します。
//
// エラーはすべて cockroachdb/errors でスタックトレース付きにして返します。
// ログ出力時に構造化フィールドを付けられるよう、主要な型は
// zerolog.LogObjectMarshaler を実装しています。
package errors

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

const prefix = "fixtures: "

var (
	// ErrEmptyData は行または列が0のデータを渡された場合のエラーです。
	ErrEmptyData = errors.New("empty data")

	// ErrSingularMatrix は正規方程式などが特異になった場合のエラーです。
	ErrSingularMatrix = errors.New("singular matrix")
)

// NotFittedError は学習前に Predict や Transform が呼ばれた場合のエラーです。
type NotFittedError struct {
	ModelName string
	Method    string
}

func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf(prefix+"%s.%s called before Fit", e.ModelName, e.Method)
}

func (e *NotFittedError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", "NotFittedError").
		Str("model_name", e.ModelName).
		Str("method", e.Method)
}

// DimensionError は入力の行数または特徴量数が学習時と異なる場合のエラーです。
// Axis は 0 が行、1 が列です。
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int
}

func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

func (e *DimensionError) axisName() string {
	if e.Axis == 0 {
		return "rows"
	}
	return "features"
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf(prefix+"%s: expected %d %s, got %d", e.Op, e.Expected, e.axisName(), e.Got)
}

func (e *DimensionError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", "DimensionError").
		Str("operation", e.Op).
		Str("axis", e.axisName()).
		Int("expected", e.Expected).
		Int("got", e.Got)
}

// ValidationError はパラメータや設定値が不正な場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func NewValidationError(param, reason string, value interface{}) error {
	return errors.WithStack(&ValidationError{ParamName: param, Reason: reason, Value: value})
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf(prefix+"invalid %s %v: %s", e.ParamName, e.Value, e.Reason)
}

func (e *ValidationError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", "ValidationError").
		Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value)
}

// ValueError は入力データの値そのものが処理できない場合のエラーです。
type ValueError struct {
	Op      string
	Message string
}

func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

func (e *ValueError) Error() string {
	return prefix + e.Op + ": " + e.Message
}

// ModelError は学習や推論の失敗を、原因のエラーとともに表します。
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

func (e *ModelError) Error() string {
	msg := prefix + e.Op + ": " + e.Kind
	if e.Err != nil && e.Err.Error() != e.Kind {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ModelError) Unwrap() error { return e.Err }

// NumericalInstabilityError は計算結果に NaN または Inf が現れた場合のエラーです。
// Iteration は反復番号、行列の検査では行番号です。
type NumericalInstabilityError struct {
	Operation string
	Values    []float64
	Iteration int
}

func NewNumericalInstabilityError(operation string, values []float64, iteration int) error {
	return errors.WithStack(&NumericalInstabilityError{Operation: operation, Values: values, Iteration: iteration})
}

func (e *NumericalInstabilityError) Error() string {
	shown := e.Values
	if len(shown) > 5 {
		shown = shown[:5]
	}
	parts := make([]string, len(shown))
	for i, v := range shown {
		parts[i] = fmt.Sprintf("%.6g", v)
	}
	if len(e.Values) > len(shown) {
		parts = append(parts, "...")
	}
	return fmt.Sprintf(prefix+"%s: non-finite values at %d: [%s]", e.Operation, e.Iteration, strings.Join(parts, ", "))
}

// FixtureMismatchError は保存済みの成果物が再計算結果と一致しない場合のエラーです。
// Row が -1 のときは特定の行によらない不一致（列名や行数）です。
type FixtureMismatchError struct {
	Artifact string
	Column   string
	Row      int
	Expected string
	Got      string
}

func NewFixtureMismatchError(artifact, column string, row int, expected, got string) error {
	return errors.WithStack(&FixtureMismatchError{Artifact: artifact, Column: column, Row: row, Expected: expected, Got: got})
}

func (e *FixtureMismatchError) Error() string {
	where := e.Artifact
	if e.Column != "" {
		where += fmt.Sprintf(" column %q", e.Column)
	}
	if e.Row >= 0 {
		where += fmt.Sprintf(" row %d", e.Row)
	}
	return fmt.Sprintf(prefix+"%s: expected %s, got %s", where, e.Expected, e.Got)
}

func (e *FixtureMismatchError) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("type", "FixtureMismatchError").
		Str("artifact", e.Artifact).
		Str("column", e.Column).
		Int("row", e.Row).
		Str("expected", e.Expected).
		Str("got", e.Got)
}

// 以下は cockroachdb/errors の薄いラッパー。呼び出し側は
// このパッケージだけを import すればよい。

func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target interface{}) bool { return errors.As(err, target) }

func New(message string) error { return errors.New(message) }

func Newf(format string, args ...interface{}) error { return errors.Newf(format, args...) }

func Wrap(err error, message string) error { return errors.Wrap(err, message) }

func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

func WithStack(err error) error { return errors.WithStack(err) }
