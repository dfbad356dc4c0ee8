package preprocessing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestLabelEncoder(t *testing.T) {
	enc := NewLabelEncoder()
	require.NoError(t, enc.FitLabels([]string{"virginica", "setosa", "versicolor", "setosa"}))
	assert.Equal(t, []string{"setosa", "versicolor", "virginica"}, enc.Classes)

	codes, err := enc.Encode([]string{"versicolor", "setosa", "virginica"})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0, 2}, codes)

	labels, err := enc.InverseLabels(codes)
	require.NoError(t, err)
	assert.Equal(t, []string{"versicolor", "setosa", "virginica"}, labels)

	_, err = enc.Encode([]string{"unknown"})
	assert.Error(t, err)
	_, err = enc.InverseLabels([]float64{3})
	assert.Error(t, err)
	_, err = enc.InverseLabels([]float64{0.5})
	assert.Error(t, err)

	m, err := enc.TransformLabels([]string{"virginica"})
	require.NoError(t, err)
	assert.Equal(t, 2.0, m.At(0, 0))
	assert.Equal(t, []string{""}, enc.OutputNames())
}

func TestLabelEncoderNotFitted(t *testing.T) {
	_, err := NewLabelEncoder().Encode([]string{"a"})
	assert.Error(t, err)
}

func TestLabelBinarizer(t *testing.T) {
	tests := []struct {
		name    string
		fit     []string
		input   []string
		want    []float64
		outputs []string
	}{
		{
			name:    "single class",
			fit:     []string{"Private", "Private"},
			input:   []string{"Private", "Other"},
			want:    []float64{0, 0},
			outputs: []string{"Private"},
		},
		{
			name:    "two classes",
			fit:     []string{"Male", "Female", "Male"},
			input:   []string{"Female", "Male", "Other"},
			want:    []float64{0, 1, 0},
			outputs: []string{"Male"},
		},
		{
			name:  "multi class",
			fit:   []string{"b", "c", "a"},
			input: []string{"c", "a", "z"},
			want: []float64{
				0, 0, 1,
				1, 0, 0,
				0, 0, 0,
			},
			outputs: []string{"a", "b", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lb := NewLabelBinarizer()
			require.NoError(t, lb.FitLabels(tt.fit))
			out, err := lb.TransformLabels(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, mat.DenseCopyOf(out).RawMatrix().Data)
			assert.Equal(t, tt.outputs, lb.OutputNames())
		})
	}
}
