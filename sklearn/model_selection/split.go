// Package model_selection provides the cross-validation splitters used by the
// *CV linear estimators.
package model_selection

import (
	"math/rand"
	"sort"

	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/log"
	"gonum.org/v1/gonum/mat"
)

// Fold holds the train and test row indices of one split. Both are sorted.
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold splits rows into NSplits contiguous folds. The first n % NSplits
// folds get one extra row.
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int64
}

// NewKFold creates a k-fold splitter without shuffling.
func NewKFold(nSplits int) *KFold {
	return &KFold{NSplits: nSplits}
}

// Split generates the folds for nSamples rows.
func (kf *KFold) Split(nSamples int) ([]Fold, error) {
	if kf.NSplits < 2 {
		return nil, errors.NewValidationError("n_splits", "must be at least 2", kf.NSplits)
	}
	if nSamples < kf.NSplits {
		return nil, errors.NewValueError("KFold.Split",
			"cannot have number of splits greater than the number of samples")
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewSource(kf.RandomSeed))
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	testFold := make([]int, nSamples)
	for fold, part := range partition(nSamples, kf.NSplits) {
		for _, pos := range part {
			testFold[indices[pos]] = fold
		}
	}
	return foldsFromAssignment(testFold, kf.NSplits), nil
}

// StratifiedKFold splits rows so that each fold keeps the class proportions.
// Each class is split like KFold over its own rows, in order of appearance.
type StratifiedKFold struct {
	NSplits int
}

// NewStratifiedKFold creates a stratified k-fold splitter.
func NewStratifiedKFold(nSplits int) *StratifiedKFold {
	return &StratifiedKFold{NSplits: nSplits}
}

// Split generates the folds for the class labels y.
func (skf *StratifiedKFold) Split(y []float64) ([]Fold, error) {
	if skf.NSplits < 2 {
		return nil, errors.NewValidationError("n_splits", "must be at least 2", skf.NSplits)
	}
	if len(y) < skf.NSplits {
		return nil, errors.NewValueError("StratifiedKFold.Split",
			"cannot have number of splits greater than the number of samples")
	}

	classRows := make(map[float64][]int)
	var classes []float64
	for i, label := range y {
		if _, ok := classRows[label]; !ok {
			classes = append(classes, label)
		}
		classRows[label] = append(classRows[label], i)
	}
	sort.Float64s(classes)

	largest, smallest := 0, len(y)
	for _, rows := range classRows {
		if len(rows) > largest {
			largest = len(rows)
		}
		if len(rows) < smallest {
			smallest = len(rows)
		}
	}
	if largest < skf.NSplits {
		return nil, errors.NewValueError("StratifiedKFold.Split",
			"n_splits cannot be greater than the number of members in each class")
	}
	if smallest < skf.NSplits {
		log.GetLoggerWithName("model_selection").Warn("least populated class has fewer members than n_splits",
			"members", smallest,
			"n_splits", skf.NSplits,
		)
	}

	testFold := make([]int, len(y))
	for _, label := range classes {
		rows := classRows[label]
		size := len(rows)
		if size < skf.NSplits {
			size = skf.NSplits
		}
		for fold, part := range partition(size, skf.NSplits) {
			for _, pos := range part {
				if pos < len(rows) {
					testFold[rows[pos]] = fold
				}
			}
		}
	}
	return foldsFromAssignment(testFold, skf.NSplits), nil
}

// partition returns the positions [0, n) cut into k contiguous parts.
func partition(n, k int) [][]int {
	parts := make([][]int, k)
	size, remainder := n/k, n%k
	pos := 0
	for i := range parts {
		s := size
		if i < remainder {
			s++
		}
		parts[i] = make([]int, s)
		for j := range parts[i] {
			parts[i][j] = pos
			pos++
		}
	}
	return parts
}

func foldsFromAssignment(testFold []int, k int) []Fold {
	folds := make([]Fold, k)
	for i, f := range testFold {
		for j := range folds {
			if j == f {
				folds[j].TestIndices = append(folds[j].TestIndices, i)
			} else {
				folds[j].TrainIndices = append(folds[j].TrainIndices, i)
			}
		}
	}
	return folds
}

// SelectRows copies the given rows of X into a new matrix.
func SelectRows(X mat.Matrix, indices []int) *mat.Dense {
	_, c := X.Dims()
	out := mat.NewDense(len(indices), c, nil)
	row := make([]float64, c)
	for i, idx := range indices {
		mat.Row(row, idx, X)
		out.SetRow(i, row)
	}
	return out
}

// SelectValues picks the given entries of v.
func SelectValues(v []float64, indices []int) []float64 {
	out := make([]float64, len(indices))
	for i, idx := range indices {
		out[i] = v[idx]
	}
	return out
}
