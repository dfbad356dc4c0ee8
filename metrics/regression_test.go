package metrics

import (
	"math"
	"testing"

	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func vec(values ...float64) *mat.VecDense {
	return mat.NewVecDense(len(values), values)
}

func TestMSE(t *testing.T) {
	got, err := MSE(vec(3, -0.5, 2, 7), vec(2.5, 0, 2, 8))
	require.NoError(t, err)
	assert.InDelta(t, 0.375, got, 1e-12)

	rmse, err := RMSE(vec(3, -0.5, 2, 7), vec(2.5, 0, 2, 8))
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(0.375), rmse, 1e-12)

	_, err = MSE(vec(1, 2), vec(1))
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))

	_, err = MSE(nil, vec(1))
	assert.Error(t, err)
}

// TestMSEMatrix は交差検証の各分割で使う n×1 行列版を確認する
func TestMSEMatrix(t *testing.T) {
	yTrue := mat.NewDense(3, 1, []float64{18, 15, 36})
	yPred := mat.NewDense(3, 1, []float64{17, 15, 38})
	got, err := MSEMatrix(yTrue, yPred)
	require.NoError(t, err)
	assert.InDelta(t, 5.0/3, got, 1e-12)

	_, err = MSEMatrix(mat.NewDense(2, 2, nil), mat.NewDense(2, 2, nil))
	assert.Error(t, err, "only column vectors are accepted")
	_, err = MSEMatrix(yTrue, mat.NewDense(2, 1, nil))
	assert.Error(t, err)
}

func TestR2Score(t *testing.T) {
	tests := []struct {
		name    string
		yTrue   *mat.VecDense
		yPred   *mat.VecDense
		want    float64
		wantErr bool
	}{
		{"perfect", vec(1, 2, 3), vec(1, 2, 3), 1, false},
		{"mean baseline", vec(1, 2, 3), vec(2, 2, 2), 0, false},
		{"worse than baseline", vec(1, 2, 3, 4), vec(4, 3, 2, 1), -3, false},
		{"constant target", vec(3, 3, 3), vec(2, 3, 4), 0, true},
		{"length mismatch", vec(1, 2, 3), vec(1, 2), 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := R2Score(tt.yTrue, tt.yPred)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}

	got, err := R2ScoreMatrix(mat.NewDense(3, 1, []float64{1, 2, 3}), mat.NewDense(3, 1, []float64{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, 1.0, got)
}

func BenchmarkMSEMatrix(b *testing.B) {
	n := 400
	yTrue := mat.NewDense(n, 1, nil)
	yPred := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		yTrue.Set(i, 0, float64(i))
		yPred.Set(i, 0, float64(i)+0.5)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = MSEMatrix(yTrue, yPred)
	}
}
