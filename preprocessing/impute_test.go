package preprocessing

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestImputerStrategies(t *testing.T) {
	nan := math.NaN()
	X := mat.NewDense(5, 2, []float64{
		1, 7,
		nan, 7,
		3, 2,
		10, nan,
		nan, 2,
	})

	tests := []struct {
		strategy ImputeStrategy
		want     []float64
	}{
		{ImputeMean, []float64{14.0 / 3, 4.5}},
		{ImputeMedian, []float64{3, 4.5}},
		{ImputeMostFrequent, []float64{1, 2}},
	}

	for _, tt := range tests {
		t.Run(string(tt.strategy), func(t *testing.T) {
			imp := NewImputer(tt.strategy)
			out, err := imp.FitTransform(X)
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, imp.Statistics, 1e-12)
			assert.InDelta(t, tt.want[0], out.At(1, 0), 1e-12)
			assert.InDelta(t, tt.want[1], out.At(3, 1), 1e-12)
			assert.Equal(t, 10.0, out.At(3, 0))
		})
	}
}

func TestImputerErrors(t *testing.T) {
	nan := math.NaN()
	imp := NewImputer(ImputeMean)
	assert.Error(t, imp.Fit(mat.NewDense(2, 1, []float64{nan, nan})))

	_, err := NewImputer(ImputeMean).Transform(mat.NewDense(1, 1, []float64{1}))
	assert.Error(t, err)

	assert.Error(t, NewImputer("mode").Fit(mat.NewDense(1, 1, []float64{1})))
}

func TestBinarizer(t *testing.T) {
	b := NewBinarizer(1)
	out, err := b.FitTransform(mat.NewDense(3, 1, []float64{1, 2, 3}))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 1}, mat.Col(nil, 0, out))
}
