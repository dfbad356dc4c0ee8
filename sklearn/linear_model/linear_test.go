package linear_model

import (
	"math"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/scigo-fixtures/core/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// triangleBlobs は (0,0), (5,0), (0,5) を中心に各クラス perClass 個の点を生成する
func triangleBlobs(nClasses, perClass int, seed int64) (*mat.Dense, *mat.Dense) {
	centers := [][2]float64{{0, 0}, {5, 0}, {0, 5}}
	rng := rand.New(rand.NewSource(seed))
	n := nClasses * perClass
	X := mat.NewDense(n, 2, nil)
	y := mat.NewDense(n, 1, nil)
	for k := 0; k < nClasses; k++ {
		for i := 0; i < perClass; i++ {
			row := k*perClass + i
			X.Set(row, 0, centers[k][0]+rng.NormFloat64()*0.5)
			X.Set(row, 1, centers[k][1]+rng.NormFloat64()*0.5)
			y.Set(row, 0, float64(k))
		}
	}
	return X, y
}

// sparseRegression は y = 3·x0 - 2·x2 + 1 + noise を生成する
func sparseRegression(n int, noise float64, seed int64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewSource(seed))
	X := mat.NewDense(n, 5, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < 5; j++ {
			X.Set(i, j, rng.NormFloat64())
		}
		y.Set(i, 0, 3*X.At(i, 0)-2*X.At(i, 2)+1+noise*rng.NormFloat64())
	}
	return X, y
}

func TestLinearRegression_ExactFit(t *testing.T) {
	X := mat.NewDense(5, 2, []float64{
		1, 2,
		2, 1,
		3, 5,
		4, 3,
		5, 4,
	})
	y := mat.NewDense(5, 1, nil)
	for i := 0; i < 5; i++ {
		y.Set(i, 0, 2*X.At(i, 0)-3*X.At(i, 1)+5)
	}

	lr := NewLinearRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	coef := lr.Coef()
	if math.Abs(coef[0]-2) > 1e-9 || math.Abs(coef[1]+3) > 1e-9 {
		t.Errorf("Expected coefficients [2 -3], got %v", coef)
	}
	if math.Abs(lr.Intercept()-5) > 1e-9 {
		t.Errorf("Expected intercept 5, got %v", lr.Intercept())
	}
	if lr.Rank != 2 {
		t.Errorf("Expected rank 2, got %d", lr.Rank)
	}

	score, err := lr.Score(X, y)
	if err != nil {
		t.Fatalf("Score failed: %v", err)
	}
	if math.Abs(score-1) > 1e-12 {
		t.Errorf("Expected R2 of 1, got %v", score)
	}
}

// TestLinearRegression_RankDeficient checks the minimum norm solution for collinear features
func TestLinearRegression_RankDeficient(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 2,
		2, 4,
		3, 6,
		4, 8,
	})
	y := mat.NewDense(4, 1, []float64{3, 6, 9, 12})

	lr := NewLinearRegression(WithLRFitIntercept(false))
	require.NoError(t, lr.Fit(X, y))

	assert.Equal(t, 1, lr.Rank)
	assert.InDelta(t, 0.6, lr.Coef()[0], 1e-9)
	assert.InDelta(t, 1.2, lr.Coef()[1], 1e-9)
	assert.Equal(t, 0.0, lr.Intercept())
}

func TestLinearRegression_Errors(t *testing.T) {
	lr := NewLinearRegression()
	_, err := lr.Predict(mat.NewDense(1, 2, nil))
	assert.Error(t, err)

	X, y := sparseRegression(10, 0, 1)
	require.NoError(t, lr.Fit(X, y))
	_, err = lr.Predict(mat.NewDense(2, 3, nil))
	assert.Error(t, err)

	assert.Error(t, lr.Fit(X, mat.NewDense(9, 1, nil)))
	assert.Error(t, lr.Fit(X, nil))
}

// bruteForceRidgeLOO refits a ridge model n times, leaving one sample out each time
func bruteForceRidgeLOO(X *mat.Dense, y []float64, alpha float64) float64 {
	n, p := X.Dims()
	total := 0.0
	for out := 0; out < n; out++ {
		var rows []int
		for i := 0; i < n; i++ {
			if i != out {
				rows = append(rows, i)
			}
		}
		sub := mat.NewDense(len(rows), p, nil)
		subY := mat.NewDense(len(rows), 1, nil)
		for r, i := range rows {
			sub.SetRow(r, mat.Row(nil, i, X))
			subY.Set(r, 0, y[i])
		}
		data := preprocessData(sub, subY, true)

		var gram mat.Dense
		gram.Mul(data.X.T(), data.X)
		for j := 0; j < p; j++ {
			gram.Set(j, j, gram.At(j, j)+alpha)
		}
		var rhs, w mat.Dense
		rhs.Mul(data.X.T(), data.Y)
		if err := w.Solve(&gram, &rhs); err != nil {
			panic(err)
		}
		coef := mat.Col(nil, 0, &w)
		pred := floats.Dot(mat.Row(nil, out, X), coef) + data.intercept(coef, 0)
		total += (y[out] - pred) * (y[out] - pred)
	}
	return total / float64(n)
}

func TestRidgeLOO_MatchesBruteForce(t *testing.T) {
	X, y := sparseRegression(20, 0.5, 4)
	target := mat.Col(nil, 0, y)

	params := newRidgeParams([]RidgeOption{WithAlphas(0.1, 1, 10)})
	res, err := ridgeLOO("test", preprocessData(X, y, true), params)
	require.NoError(t, err)

	for a, alpha := range params.Alphas {
		assert.InDelta(t, bruteForceRidgeLOO(X, target, alpha), res.CVErrors[a], 1e-8, "alpha=%v", alpha)
	}
}

func TestRidgeCV(t *testing.T) {
	X, y := sparseRegression(60, 0, 2)

	rc := NewRidgeCV()
	require.NoError(t, rc.Fit(X, y))

	assert.Equal(t, 0.1, rc.AlphaValue)
	assert.Len(t, rc.CVErrors, 3)
	assert.Less(t, rc.CVErrors[0], rc.CVErrors[2])
	coef := rc.Coef()
	assert.InDelta(t, 3.0, coef[0], 0.05)
	assert.InDelta(t, -2.0, coef[2], 0.05)
	assert.InDelta(t, 1.0, rc.Intercept(), 0.05)

	assert.Error(t, NewRidgeCV(WithAlphas()).Fit(X, y))
	assert.Error(t, NewRidgeCV(WithAlphas(1, 0)).Fit(X, y))
}

func TestRidgeClassifierCV(t *testing.T) {
	X, y := triangleBlobs(3, 30, 8)

	rc := NewRidgeClassifierCV()
	require.NoError(t, rc.Fit(X, y))
	assert.Len(t, rc.Coef(), 3)

	score, err := rc.Score(X, y)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, score, 0.95)

	Xb, yb := triangleBlobs(2, 20, 8)
	binary := NewRidgeClassifierCV()
	require.NoError(t, binary.Fit(Xb, yb))
	scores, err := binary.DecisionFunction(Xb)
	require.NoError(t, err)
	_, c := scores.Dims()
	assert.Equal(t, 1, c)
	score, err = binary.Score(Xb, yb)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)
}

func TestSignedIndicators(t *testing.T) {
	binary := signedIndicators([]float64{0, 1, 1}, 2)
	assert.Equal(t, []float64{-1, 1, 1}, mat.Col(nil, 0, binary))

	multi := signedIndicators([]float64{0, 2, 1}, 3)
	assert.Equal(t, []float64{1, -1, -1}, mat.Row(nil, 0, multi))
	assert.Equal(t, []float64{-1, -1, 1}, mat.Row(nil, 1, multi))
}

func TestLassoCV_SparseRecovery(t *testing.T) {
	X, y := sparseRegression(80, 0.1, 3)

	lasso := NewLassoCV()
	require.NoError(t, lasso.Fit(X, y))

	require.Len(t, lasso.AlphaPath, 100)
	assert.True(t, lasso.AlphaPath[0] > lasso.AlphaPath[99])
	require.Len(t, lasso.MSEPath, 100)
	assert.Len(t, lasso.MSEPath[0], 3)
	assert.Contains(t, lasso.AlphaPath, lasso.AlphaValue)

	coef := lasso.Coef()
	assert.InDelta(t, 3.0, coef[0], 0.2)
	assert.InDelta(t, -2.0, coef[2], 0.2)
	for _, j := range []int{1, 3, 4} {
		assert.Less(t, math.Abs(coef[j]), 0.1, "coef %d", j)
	}

	score, err := lasso.Score(X, y)
	require.NoError(t, err)
	assert.Greater(t, score, 0.99)
}

func TestElasticNetCV(t *testing.T) {
	X, y := sparseRegression(80, 0.1, 5)

	enet := NewElasticNetCV(WithNAlphas(30), WithCDNJobs(3))
	require.NoError(t, enet.Fit(X, y))
	assert.Equal(t, 0.5, enet.L1Ratio)
	assert.Len(t, enet.AlphaPath, 30)

	score, err := enet.Score(X, y)
	require.NoError(t, err)
	assert.Greater(t, score, 0.98)

	assert.Error(t, NewElasticNetCV(WithL1Ratio(0)).Fit(X, y))
	assert.Error(t, NewElasticNetCV(WithSelection("shuffle")).Fit(X, y))
}

func TestLassoCV_Persistence(t *testing.T) {
	X, y := sparseRegression(40, 0.1, 6)
	lasso := NewLassoCV(WithNAlphas(20))
	require.NoError(t, lasso.Fit(X, y))
	pred, err := lasso.Predict(X)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "LassoAuto.pkl")
	require.NoError(t, model.SaveModel(lasso, path))
	loaded := &LassoCV{}
	require.NoError(t, model.LoadModel(loaded, path))

	again, err := loaded.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(pred, again))
	assert.Equal(t, lasso.AlphaValue, loaded.AlphaValue)
}

func TestAlphaGrid(t *testing.T) {
	cols := [][]float64{{1, -1, 0}, {2, 0, -2}}
	y := []float64{1, 0, -1}
	grid := alphaGrid(cols, y, 1, 1e-2, 5)

	require.Len(t, grid, 5)
	assert.InDelta(t, 4.0/3, grid[0], 1e-12)
	assert.InDelta(t, 4.0/3*1e-2, grid[4], 1e-12)

	// alpha_max では全係数が0になる
	w := make([]float64, 2)
	enetCoordinateDescent(w, grid[0]*3*(1+1e-12), 0, cols, y, 100, 1e-4, nil)
	assert.Equal(t, []float64{0, 0}, w)

	flat := alphaGrid(cols, []float64{0, 0, 0}, 1, 1e-2, 3)
	assert.Equal(t, []float64{resolution, resolution, resolution}, flat)
}

func TestLogspace(t *testing.T) {
	got := logspace(-4, 4, 3)
	assert.InDeltaSlice(t, []float64{1e-4, 1, 1e4}, got, 1e-9)
	assert.Equal(t, []float64{100}, logspace(0, 2, 1))
}
