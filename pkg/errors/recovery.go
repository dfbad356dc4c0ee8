package errors

import (
	"fmt"
	"runtime/debug"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"
)

// PanicError は公開APIの境界で回収された panic を表すエラーです。
//
// gonum は次元の不一致や特異行列を panic で通知するため、Fit/Transform の
// 入口で Recover を defer してエラーとして返します。
type PanicError struct {
	Operation  string
	PanicValue interface{}
	StackTrace string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic in %s: %v", e.Operation, e.PanicValue)
}

// Unwrap は panic の値がエラーならそれを返します。
// mat.Condition（特異行列）は ErrSingularMatrix として扱います。
func (e *PanicError) Unwrap() error {
	switch v := e.PanicValue.(type) {
	case mat.Condition:
		return ErrSingularMatrix
	case error:
		return v
	default:
		return nil
	}
}

// NewPanicError は現在のスタックトレース付きで PanicError を作成します。
func NewPanicError(operation string, panicValue interface{}) *PanicError {
	return &PanicError{
		Operation:  operation,
		PanicValue: panicValue,
		StackTrace: string(debug.Stack()),
	}
}

// Recover は panic を回収して *err に設定します。defer で使います。
//
//	func (m *Model) Fit(X, y mat.Matrix) (err error) {
//	    defer errors.Recover(&err, "Model.Fit")
//	    ...
//	}
//
// 既にエラーが設定されている場合は、panic を主エラー、元のエラーを
// 副次エラーとして残します。
func Recover(err *error, operation string) {
	r := recover()
	if r == nil {
		return
	}
	perr := NewPanicError(operation, r)
	if *err != nil {
		*err = errors.WithSecondaryError(perr, *err)
		return
	}
	*err = perr
}
