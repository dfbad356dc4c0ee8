package model_selection

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestKFoldContiguous(t *testing.T) {
	folds, err := NewKFold(3).Split(10)
	require.NoError(t, err)
	require.Len(t, folds, 3)

	assert.Equal(t, []int{0, 1, 2, 3}, folds[0].TestIndices)
	assert.Equal(t, []int{4, 5, 6}, folds[1].TestIndices)
	assert.Equal(t, []int{7, 8, 9}, folds[2].TestIndices)
	assert.Equal(t, []int{0, 1, 2, 3, 7, 8, 9}, folds[1].TrainIndices)
}

func TestKFoldShuffleCoversAllRows(t *testing.T) {
	kf := &KFold{NSplits: 4, Shuffle: true, RandomSeed: 13}
	folds, err := kf.Split(21)
	require.NoError(t, err)

	seen := make(map[int]int)
	for _, f := range folds {
		assert.Len(t, f.TrainIndices, 21-len(f.TestIndices))
		for _, i := range f.TestIndices {
			seen[i]++
		}
	}
	assert.Len(t, seen, 21)
	for i, n := range seen {
		assert.Equal(t, 1, n, "row %d", i)
	}
}

func TestKFoldErrors(t *testing.T) {
	_, err := NewKFold(1).Split(10)
	assert.Error(t, err)
	_, err = NewKFold(5).Split(3)
	assert.Error(t, err)
}

func TestStratifiedKFold(t *testing.T) {
	// 6 rows of class 0 followed by 3 rows of class 1
	y := []float64{0, 0, 0, 0, 0, 0, 1, 1, 1}
	folds, err := NewStratifiedKFold(3).Split(y)
	require.NoError(t, err)
	require.Len(t, folds, 3)

	assert.Equal(t, []int{0, 1, 6}, folds[0].TestIndices)
	assert.Equal(t, []int{2, 3, 7}, folds[1].TestIndices)
	assert.Equal(t, []int{4, 5, 8}, folds[2].TestIndices)
	assert.Equal(t, []int{2, 3, 4, 5, 7, 8}, folds[0].TrainIndices)
}

func TestStratifiedKFoldSmallClass(t *testing.T) {
	// class 1 has fewer members than folds, so one fold gets none of it
	y := []float64{1, 0, 0, 0, 1, 0, 0, 0}
	folds, err := NewStratifiedKFold(3).Split(y)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 1, 2}, folds[0].TestIndices)
	assert.Equal(t, []int{3, 4, 5}, folds[1].TestIndices)
	assert.Equal(t, []int{6, 7}, folds[2].TestIndices)
}

func TestStratifiedKFoldErrors(t *testing.T) {
	_, err := NewStratifiedKFold(4).Split([]float64{0, 0, 1, 1, 1})
	assert.Error(t, err)
	_, err = NewStratifiedKFold(1).Split([]float64{0, 1})
	assert.Error(t, err)
}

func TestSelectRows(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{1, 2, 3, 4, 5, 6})
	got := SelectRows(X, []int{2, 0})
	assert.Equal(t, []float64{5, 6, 1, 2}, got.RawMatrix().Data)
	assert.Equal(t, []float64{30, 10}, SelectValues([]float64{10, 20, 30}, []int{2, 0}))
}
