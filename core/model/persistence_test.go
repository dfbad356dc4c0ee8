package model

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type centroids struct {
	BaseEstimator
	Centers [][]float64
	Labels  []string
}

type shape interface{ Area() float64 }

type square struct{ Side float64 }

func (s *square) Area() float64 { return s.Side * s.Side }

type holder struct {
	Steps []shape
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "pkl", "KMeansWheat.pkl")

	in := &centroids{Centers: [][]float64{{1, 2}, {3, 4}}, Labels: []string{"a", "b"}}
	in.SetFitted()
	require.NoError(t, SaveModel(in, path), "parent directories are created")

	out := &centroids{}
	require.NoError(t, LoadModel(out, path))
	assert.True(t, out.IsFitted())
	assert.Equal(t, in.Centers, out.Centers)
	assert.Equal(t, in.Labels, out.Labels)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x1f, 0x8b}, raw[:2], "gzip magic")
}

func TestInterfaceFieldsNeedRegister(t *testing.T) {
	Register(&square{})

	var buf bytes.Buffer
	require.NoError(t, SaveModelToWriter(&holder{Steps: []shape{&square{Side: 3}}}, &buf))

	var out holder
	require.NoError(t, LoadModelFromReader(&out, &buf))
	require.Len(t, out.Steps, 1)
	assert.Equal(t, 9.0, out.Steps[0].Area())
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	assert.Error(t, LoadModel(&centroids{}, filepath.Join(dir, "missing.pkl")))

	plain := filepath.Join(dir, "plain.pkl")
	require.NoError(t, os.WriteFile(plain, []byte("not gzip"), 0o644))
	assert.Error(t, LoadModel(&centroids{}, plain))
}

func TestCheckFitted(t *testing.T) {
	var e BaseEstimator
	assert.Error(t, e.CheckFitted("KMeans", "Predict"))
	assert.Equal(t, "not fitted", e.State.String())

	e.SetFitted()
	assert.NoError(t, e.CheckFitted("KMeans", "Predict"))
	e.Reset()
	assert.False(t, e.IsFitted())
}
