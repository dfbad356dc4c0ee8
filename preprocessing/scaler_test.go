package preprocessing

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

// TestStandardScaler_FitTransform tests standardization with population variance
func TestStandardScaler_FitTransform(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 10,
		2, 10,
		3, 10,
		4, 10,
	})

	scaler := NewStandardScalerDefault()
	out, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	if scaler.Mean[0] != 2.5 {
		t.Errorf("expected mean 2.5, got %v", scaler.Mean[0])
	}
	// population std of 1..4 is sqrt(1.25)
	if math.Abs(scaler.Scale[0]-math.Sqrt(1.25)) > 1e-12 {
		t.Errorf("expected scale sqrt(1.25), got %v", scaler.Scale[0])
	}
	// constant column keeps scale 1
	if scaler.Scale[1] != 1 {
		t.Errorf("expected scale 1 for constant column, got %v", scaler.Scale[1])
	}
	if out.At(3, 1) != 0 {
		t.Errorf("constant column should be centred to 0, got %v", out.At(3, 1))
	}

	back, err := scaler.InverseTransform(out)
	if err != nil {
		t.Fatalf("InverseTransform failed: %v", err)
	}
	if !mat.EqualApprox(back, X, 1e-12) {
		t.Errorf("inverse transform did not restore input")
	}
}

// TestStandardScaler_Errors tests error paths
func TestStandardScaler_Errors(t *testing.T) {
	scaler := NewStandardScalerDefault()
	if _, err := scaler.Transform(mat.NewDense(1, 1, []float64{1})); err == nil {
		t.Error("expected not fitted error")
	}
	if err := scaler.Fit(mat.NewDense(2, 2, []float64{1, 2, 3, 4})); err != nil {
		t.Fatalf("Fit failed: %v", err)
	}
	if _, err := scaler.Transform(mat.NewDense(1, 3, []float64{1, 2, 3})); err == nil {
		t.Error("expected dimension error")
	}
}

// TestMinMaxScaler_FitTransform tests scaling into the feature range
func TestMinMaxScaler_FitTransform(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{
		0, 5,
		5, 5,
		10, 5,
	})

	scaler := NewMinMaxScalerDefault()
	out, err := scaler.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}

	want := mat.NewDense(3, 2, []float64{
		0, 0,
		0.5, 0,
		1, 0,
	})
	if !mat.EqualApprox(out, want, 1e-12) {
		t.Errorf("unexpected output:\n%v", mat.Formatted(out))
	}

	back, err := scaler.InverseTransform(out)
	if err != nil {
		t.Fatalf("InverseTransform failed: %v", err)
	}
	if !mat.EqualApprox(back, X, 1e-12) {
		t.Errorf("inverse transform did not restore input")
	}

	if err := NewMinMaxScaler([2]float64{1, 0}).Fit(X); err == nil {
		t.Error("expected error for inverted feature range")
	}
}

func TestScalersIgnoreMissingValues(t *testing.T) {
	nan := math.NaN()
	X := mat.NewDense(4, 1, []float64{1, nan, 3, 5})

	std := NewStandardScalerDefault()
	out, err := std.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}
	if std.Mean[0] != 3 {
		t.Errorf("expected mean 3 over observed values, got %v", std.Mean[0])
	}
	if !math.IsNaN(out.At(1, 0)) {
		t.Errorf("missing value should pass through, got %v", out.At(1, 0))
	}

	mm := NewMinMaxScalerDefault()
	out, err = mm.FitTransform(X)
	if err != nil {
		t.Fatalf("FitTransform failed: %v", err)
	}
	if mm.DataMin[0] != 1 || mm.DataMax[0] != 5 {
		t.Errorf("expected range [1, 5], got [%v, %v]", mm.DataMin[0], mm.DataMax[0])
	}
	if out.At(3, 0) != 1 || !math.IsNaN(out.At(1, 0)) {
		t.Errorf("unexpected output:\n%v", mat.Formatted(out))
	}
}
