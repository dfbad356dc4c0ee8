package dataframe

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const autoSample = `mpg,cylinders,displacement,horsepower,origin,name
18,8,307,130,1,chevrolet chevelle malibu
15,8,350,NA,1,buick skylark 320
31.5,4,98,68,3,honda civic
`

func TestReadCSVInfersKinds(t *testing.T) {
	f, err := ReadCSV(strings.NewReader(autoSample))
	require.NoError(t, err)

	assert.Equal(t, 3, f.NRows())
	assert.Equal(t, []string{"mpg", "cylinders", "displacement", "horsepower", "origin", "name"}, f.Names())

	hp, err := f.Column("horsepower")
	require.NoError(t, err)
	assert.Equal(t, Numeric, hp.Kind)
	assert.True(t, math.IsNaN(hp.Floats[1]))

	name, err := f.Column("name")
	require.NoError(t, err)
	assert.Equal(t, String, name.Kind)
	assert.Equal(t, "honda civic", name.Strings[2])
}

func TestReadCSVErrors(t *testing.T) {
	t.Run("empty input", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader(""))
		assert.Error(t, err)
	})
	t.Run("ragged row", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader("a,b\n1,2\n3\n"))
		assert.Error(t, err)
	})
	t.Run("duplicate column", func(t *testing.T) {
		_, err := ReadCSV(strings.NewReader("a,a\n1,2\n"))
		assert.Error(t, err)
	})
	t.Run("missing file", func(t *testing.T) {
		_, err := ReadCSVFile(filepath.Join(t.TempDir(), "nope.csv"))
		assert.Error(t, err)
	})
}

func TestCustomNAValues(t *testing.T) {
	f, err := ReadCSV(strings.NewReader("x\n1\n?\n"), WithNAValues("?"))
	require.NoError(t, err)
	x, err := f.Floats("x")
	require.NoError(t, err)
	assert.Equal(t, 1.0, x[0])
	assert.True(t, math.IsNaN(x[1]))
}

func TestCoercions(t *testing.T) {
	f, err := ReadCSV(strings.NewReader("Deductions,Hours,Code\nTrue,40,7\nfalse,35,x\nTRUE,,9\n"))
	require.NoError(t, err)

	require.NoError(t, f.NormalizeBool("Deductions"))
	d, err := f.Strings("Deductions")
	require.NoError(t, err)
	assert.Equal(t, []string{"TRUE", "FALSE", "TRUE"}, d)

	require.NoError(t, f.AsString("Hours"))
	h, err := f.Strings("Hours")
	require.NoError(t, err)
	assert.Equal(t, []string{"40", "35", ""}, h)

	require.NoError(t, f.AsFloat("Hours"))
	hv, err := f.Floats("Hours")
	require.NoError(t, err)
	assert.Equal(t, 40.0, hv[0])
	assert.True(t, math.IsNaN(hv[2]))

	assert.Error(t, f.AsFloat("Code"))
	assert.Error(t, f.NormalizeBool("Code"))
	assert.Error(t, f.AsFloat("Unknown"))
}

func TestDropAndMatrix(t *testing.T) {
	f, err := ReadCSV(strings.NewReader(autoSample))
	require.NoError(t, err)

	require.NoError(t, f.Drop("name"))
	assert.False(t, f.Has("name"))
	assert.Error(t, f.Drop("name"))

	m, err := f.Matrix("mpg", "cylinders")
	require.NoError(t, err)
	r, c := m.Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 31.5, m.At(2, 0))
	assert.Equal(t, 4.0, m.At(2, 1))

	_, err = f.Matrix()
	assert.Error(t, err)
}

func TestMatrixRejectsStringColumn(t *testing.T) {
	f, err := ReadCSV(strings.NewReader(autoSample))
	require.NoError(t, err)
	_, err = f.Matrix("name")
	assert.Error(t, err)
}

func TestAddColumns(t *testing.T) {
	f := New()
	require.NoError(t, f.AddFloats("Cluster", []float64{0, 2, 1}))
	require.NoError(t, f.AddStrings("Species", []string{"setosa", "virginica", "versicolor"}))
	assert.Error(t, f.AddFloats("Cluster", []float64{1, 1, 1}))
	assert.Error(t, f.AddFloats("short", []float64{1}))
	assert.Equal(t, 3, f.NRows())
	assert.Equal(t, 2, f.NCols())
}

func TestWriteCSVRoundTrip(t *testing.T) {
	f := New()
	require.NoError(t, f.AddFloats("Cluster", []float64{0, 2}))
	require.NoError(t, f.AddFloats("affinity_0", []float64{0.125, math.NaN()}))
	require.NoError(t, f.AddStrings("Species", []string{"setosa", "virginica"}))

	var buf bytes.Buffer
	require.NoError(t, f.WriteCSV(&buf))
	assert.Equal(t, "Cluster,affinity_0,Species\n0,0.125,setosa\n2,,virginica\n", buf.String())

	path := filepath.Join(t.TempDir(), "csv", "out.csv")
	require.NoError(t, f.WriteCSVFile(path))
	back, err := ReadCSVFile(path)
	require.NoError(t, err)
	assert.Equal(t, f.Names(), back.Names())
	v, err := back.Floats("affinity_0")
	require.NoError(t, err)
	assert.Equal(t, 0.125, v[0])
	assert.True(t, math.IsNaN(v[1]))
}

func TestFormatFloat(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{0, "0"},
		{3, "3"},
		{-0.5, "-0.5"},
		{1e-5, "1e-05"},
		{0.1 + 0.2, "0.30000000000000004"},
		{math.NaN(), ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatFloat(tt.in))
	}
}
