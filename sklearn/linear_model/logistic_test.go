package linear_model

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/scigo-fixtures/core/model"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// TestLogisticRegression_FitPredict_Binary tests binary classification
func TestLogisticRegression_FitPredict_Binary(t *testing.T) {
	// Class 0: points around (1, 1)
	// Class 1: points around (3, 3)
	X := mat.NewDense(6, 2, []float64{
		0.5, 0.5,
		1.0, 1.5,
		1.5, 1.0,
		3.0, 2.5,
		2.5, 3.0,
		3.5, 3.5,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	lr := NewLogisticRegression(WithLRC(100), WithLRMaxIter(1000))
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	predictions, err := lr.Predict(X)
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	for i := 0; i < 6; i++ {
		if predictions.At(i, 0) != y.At(i, 0) {
			t.Errorf("Sample %d: expected %v, got %v", i, y.At(i, 0), predictions.At(i, 0))
		}
	}

	if got := len(lr.Coef()); got != 1 {
		t.Errorf("Binary model should have a single coefficient row, got %d", got)
	}
	if lr.Coef()[0][0] <= 0 || lr.Coef()[0][1] <= 0 {
		t.Errorf("Coefficients should point towards class 1, got %v", lr.Coef()[0])
	}
}

// TestLogisticRegression_PredictProba tests probability outputs
func TestLogisticRegression_PredictProba(t *testing.T) {
	X, y := triangleBlobs(3, 30, 7)

	lr := NewLogisticRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}
	proba, err := lr.PredictProba(X)
	if err != nil {
		t.Fatalf("Failed to predict proba: %v", err)
	}
	pred, err := lr.Predict(X)
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}

	r, c := proba.Dims()
	if c != 3 {
		t.Fatalf("Expected 3 probability columns, got %d", c)
	}
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, proba)
		if sum := floats.Sum(row); math.Abs(sum-1) > 1e-10 {
			t.Errorf("Row %d: probabilities sum to %v", i, sum)
		}
		if want := lr.Classes()[floats.MaxIdx(row)]; pred.At(i, 0) != want {
			t.Errorf("Row %d: predict %v disagrees with argmax proba %v", i, pred.At(i, 0), want)
		}
	}
}

func TestLogisticRegression_Multiclass(t *testing.T) {
	X, y := triangleBlobs(3, 40, 11)

	lr := NewLogisticRegression(WithLRNJobs(3))
	require.NoError(t, lr.Fit(X, y))

	assert.Equal(t, []float64{0, 1, 2}, lr.Classes())
	assert.Len(t, lr.Coef(), 3)
	assert.Len(t, lr.NIter, 3)

	score, err := lr.Score(X, y)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, 0.95)
}

// TestLogisticRegression_Regularization checks that smaller C shrinks the weights
func TestLogisticRegression_Regularization(t *testing.T) {
	X, y := triangleBlobs(2, 30, 3)

	strong := NewLogisticRegression(WithLRC(0.01))
	weak := NewLogisticRegression(WithLRC(100))
	if err := strong.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}
	if err := weak.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit: %v", err)
	}

	if floats.Norm(strong.Coef()[0], 2) >= floats.Norm(weak.Coef()[0], 2) {
		t.Errorf("Strong regularization should give smaller weights: %v vs %v",
			strong.Coef()[0], weak.Coef()[0])
	}
}

func TestLogisticRegression_NotFitted(t *testing.T) {
	lr := NewLogisticRegression()
	X := mat.NewDense(1, 2, []float64{1, 2})

	if _, err := lr.Predict(X); err == nil {
		t.Error("Expected error when predicting with unfitted model")
	}
	if _, err := lr.PredictProba(X); err == nil {
		t.Error("Expected error when predicting proba with unfitted model")
	}
}

func TestLogisticRegression_SingleClass(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := mat.NewDense(3, 1, []float64{1, 1, 1})

	err := NewLogisticRegression().Fit(X, y)
	require.Error(t, err)
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))
}

// TestLogisticLossGradient compares the analytic gradient with central differences
func TestLogisticLossGradient(t *testing.T) {
	X := mat.NewDense(5, 2, []float64{
		0.3, -1.2,
		1.5, 0.4,
		-0.7, 0.9,
		2.1, -0.3,
		-1.1, -1.6,
	})
	for _, fitIntercept := range []bool{true, false} {
		lp := &logisticProblem{
			X:            X,
			y:            []float64{1, -1, 1, 1, -1},
			alpha:        0.5,
			fitIntercept: fitIntercept,
		}
		w := []float64{0.4, -0.2}
		if fitIntercept {
			w = append(w, 0.1)
		}
		grad := make([]float64, len(w))
		lp.lossGrad(w, grad)

		const h = 1e-6
		for j := range w {
			plus := append([]float64(nil), w...)
			minus := append([]float64(nil), w...)
			plus[j] += h
			minus[j] -= h
			numeric := (lp.lossGrad(plus, nil) - lp.lossGrad(minus, nil)) / (2 * h)
			assert.InDelta(t, numeric, grad[j], 1e-6, "fitIntercept=%v j=%d", fitIntercept, j)
		}
	}
}

func TestLogLogistic(t *testing.T) {
	assert.InDelta(t, math.Log(0.5), logLogistic(0), 1e-15)
	assert.InDelta(t, -math.Log1p(math.Exp(-3)), logLogistic(3), 1e-15)
	assert.InDelta(t, -800.0, logLogistic(-800), 1e-9)
	assert.False(t, math.IsInf(logLogistic(-1e4), 0))
}

func TestOvRProba(t *testing.T) {
	binary := ovrProba(mat.NewDense(2, 1, []float64{0, 2}))
	assert.InDelta(t, 0.5, binary.At(0, 0), 1e-12)
	assert.InDelta(t, 0.5, binary.At(0, 1), 1e-12)
	assert.InDelta(t, 1-errors.Expit(2), binary.At(1, 0), 1e-12)

	multi := ovrProba(mat.NewDense(1, 3, []float64{0, 0, 0}))
	for j := 0; j < 3; j++ {
		assert.InDelta(t, 1.0/3, multi.At(0, j), 1e-12)
	}
}

func TestLogisticRegressionCV_Binary(t *testing.T) {
	X, y := triangleBlobs(2, 30, 5)

	lr := NewLogisticRegressionCV()
	require.NoError(t, lr.Fit(X, y))

	require.Len(t, lr.CsValues, 10)
	assert.InDelta(t, 1e-4, lr.CsValues[0], 1e-12)
	assert.InDelta(t, 1e4, lr.CsValues[9], 1e-6)
	require.Len(t, lr.Scores, 1)
	require.Len(t, lr.Scores[0], 3)
	assert.Len(t, lr.Scores[0][0], 10)
	require.Len(t, lr.CValues, 1)
	assert.Contains(t, lr.CsValues, lr.CValues[0])

	score, err := lr.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)

	proba, err := lr.PredictProba(X)
	require.NoError(t, err)
	_, c := proba.Dims()
	assert.Equal(t, 2, c)
}

func TestLogisticRegressionCV_Multiclass(t *testing.T) {
	X, y := triangleBlobs(3, 30, 9)

	lr := NewLogisticRegressionCV(WithNCs(4), WithLRNJobs(4))
	require.NoError(t, lr.Fit(X, y))

	assert.Len(t, lr.Scores, 3)
	assert.Len(t, lr.CValues, 3)
	assert.Len(t, lr.Coef(), 3)
	for c := range lr.Scores {
		for f := range lr.Scores[c] {
			for _, s := range lr.Scores[c][f] {
				assert.True(t, s >= 0 && s <= 1)
			}
		}
	}

	score, err := lr.Score(X, y)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, 0.95)
}

// TestLogisticRegressionCV_Deterministic checks that the parallel fit does not
// depend on the number of workers.
func TestLogisticRegressionCV_Deterministic(t *testing.T) {
	X, y := triangleBlobs(3, 20, 13)

	serial := NewLogisticRegressionCV(WithNCs(5))
	parallel := NewLogisticRegressionCV(WithNCs(5), WithLRNJobs(8))
	require.NoError(t, serial.Fit(X, y))
	require.NoError(t, parallel.Fit(X, y))

	assert.Equal(t, serial.CValues, parallel.CValues)
	assert.Equal(t, serial.Coef(), parallel.Coef())
	assert.Equal(t, serial.Intercept(), parallel.Intercept())
}

func TestLogisticRegressionCV_InvalidParams(t *testing.T) {
	X, y := triangleBlobs(2, 10, 1)

	assert.Error(t, NewLogisticRegressionCV(WithCs(1, -1)).Fit(X, y))
	assert.Error(t, NewLogisticRegressionCV(WithNCs(0)).Fit(X, y))
	assert.Error(t, NewLogisticRegressionCV(WithLRMaxIter(0)).Fit(X, y))
	assert.Error(t, NewLogisticRegressionCV(WithLogisticCV(50)).Fit(X, y))
}

func TestLogisticRegressionCV_Persistence(t *testing.T) {
	X, y := triangleBlobs(3, 15, 21)
	lr := NewLogisticRegressionCV(WithNCs(3))
	require.NoError(t, lr.Fit(X, y))
	proba, err := lr.PredictProba(X)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "LogisticRegressionAudit.pkl")
	require.NoError(t, model.SaveModel(lr, path))
	loaded := &LogisticRegressionCV{}
	require.NoError(t, model.LoadModel(loaded, path))

	again, err := loaded.PredictProba(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(proba, again))
	assert.Equal(t, lr.CValues, loaded.CValues)
}
