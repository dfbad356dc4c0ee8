package errors

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func fitThatPanics(v interface{}) (err error) {
	defer Recover(&err, "Model.Fit")
	panic(v)
}

func TestRecover(t *testing.T) {
	err := fitThatPanics("boom")
	require.Error(t, err)

	var perr *PanicError
	require.True(t, As(err, &perr))
	assert.Equal(t, "Model.Fit", perr.Operation)
	assert.Equal(t, "boom", perr.PanicValue)
	assert.Contains(t, perr.StackTrace, "fitThatPanics")
	assert.Equal(t, "panic in Model.Fit: boom", err.Error())
	assert.Nil(t, perr.Unwrap())
}

func TestRecoverWithoutPanic(t *testing.T) {
	fn := func() (err error) {
		defer Recover(&err, "Model.Fit")
		return nil
	}
	assert.NoError(t, fn())

	fails := func() (err error) {
		defer Recover(&err, "Model.Fit")
		return NewValueError("Model.Fit", "bad input")
	}
	var verr *ValueError
	assert.True(t, As(fails(), &verr))
}

// TestRecoverGonumPanics は gonum の panic がエラーとして識別できることを確認する
func TestRecoverGonumPanics(t *testing.T) {
	shape := func() (err error) {
		defer Recover(&err, "Mapper.Transform")
		var out mat.Dense
		out.Mul(mat.NewDense(2, 3, nil), mat.NewDense(2, 3, nil))
		return nil
	}
	assert.True(t, Is(shape(), mat.ErrShape))

	singular := func() (err error) {
		defer Recover(&err, "LinearRegression.Fit")
		panic(mat.Condition(1e18))
	}
	assert.True(t, Is(singular(), ErrSingularMatrix))
}

func TestRecoverKeepsExistingError(t *testing.T) {
	fn := func() (err error) {
		defer Recover(&err, "Model.Fit")
		err = NewValueError("Model.Fit", "first")
		panic("second")
	}
	err := fn()
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "panic in Model.Fit: second"))

	var perr *PanicError
	assert.True(t, As(err, &perr))
}

func BenchmarkRecoverNoPanic(b *testing.B) {
	fn := func() (err error) {
		defer Recover(&err, "bench")
		return nil
	}
	for i := 0; i < b.N; i++ {
		_ = fn()
	}
}
