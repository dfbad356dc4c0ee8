package preprocessing

import (
	"strconv"
	"strings"

	"github.com/YuminosukeSato/scigo-fixtures/core/model"
	"github.com/YuminosukeSato/scigo-fixtures/dataframe"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

func init() {
	model.Register(&StandardScaler{})
	model.Register(&MinMaxScaler{})
	model.Register(&Imputer{})
	model.Register(&Binarizer{})
	model.Register(&LabelEncoder{})
	model.Register(&LabelBinarizer{})
}

// Step is one entry of a DataFrameMapper: a set of input columns and what to
// do with them.
//
// A step either chains numeric Transformers over its columns (the identity
// when the chain is empty) or applies a single Encoder to one string column.
type Step struct {
	Columns      []string
	Transformers []model.Transformer
	Encoder      model.LabelTransformer

	// OutputNames holds the feature names this step produced at fit time.
	OutputNames []string
}

// NewStep maps numeric columns through a chain of transformers.
func NewStep(columns []string, transformers ...model.Transformer) Step {
	return Step{Columns: columns, Transformers: transformers}
}

// NewEncoderStep maps one string column through a label encoder.
func NewEncoderStep(column string, encoder model.LabelTransformer) Step {
	return Step{Columns: []string{column}, Encoder: encoder}
}

// DataFrameMapper turns selected frame columns into a numeric feature matrix.
// Step outputs are concatenated in declaration order.
//
// Once fitted, Transform replays every step without refitting, so a persisted
// mapper reproduces the fit-time matrix on the same input.
type DataFrameMapper struct {
	model.BaseEstimator

	Steps []Step

	// Features holds the output column names in matrix order.
	Features []string
}

// NewDataFrameMapper creates a mapper over the given steps.
func NewDataFrameMapper(steps ...Step) *DataFrameMapper {
	return &DataFrameMapper{Steps: steps}
}

// FeatureNames returns the names of the output columns.
func (m *DataFrameMapper) FeatureNames() []string {
	return m.Features
}

// Fit fits every step on f.
func (m *DataFrameMapper) Fit(f *dataframe.Frame) error {
	_, err := m.FitTransform(f)
	return err
}

// FitTransform fits every step on f and returns the concatenated outputs.
func (m *DataFrameMapper) FitTransform(f *dataframe.Frame) (out *mat.Dense, err error) {
	defer errors.Recover(&err, "DataFrameMapper.FitTransform")

	if len(m.Steps) == 0 {
		return nil, errors.NewValueError("DataFrameMapper.Fit", "no steps")
	}

	blocks := make([]mat.Matrix, len(m.Steps))
	m.Features = m.Features[:0]
	for i := range m.Steps {
		step := &m.Steps[i]
		block, err := step.apply(f, true)
		if err != nil {
			return nil, errors.Wrapf(err, "step %s", strings.Join(step.Columns, ","))
		}
		step.OutputNames = step.names(block)
		m.Features = append(m.Features, step.OutputNames...)
		blocks[i] = block
	}

	m.SetFitted()
	return hstack(f.NRows(), blocks), nil
}

// Transform replays the fitted steps on f.
func (m *DataFrameMapper) Transform(f *dataframe.Frame) (out *mat.Dense, err error) {
	defer errors.Recover(&err, "DataFrameMapper.Transform")

	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("DataFrameMapper", "Transform")
	}

	blocks := make([]mat.Matrix, len(m.Steps))
	for i := range m.Steps {
		step := &m.Steps[i]
		block, err := step.apply(f, false)
		if err != nil {
			return nil, errors.Wrapf(err, "step %s", strings.Join(step.Columns, ","))
		}
		if _, c := block.Dims(); c != len(step.OutputNames) {
			return nil, errors.NewDimensionError("DataFrameMapper.Transform", len(step.OutputNames), c, 1)
		}
		blocks[i] = block
	}
	return hstack(f.NRows(), blocks), nil
}

func (s *Step) apply(f *dataframe.Frame, fit bool) (mat.Matrix, error) {
	if len(s.Columns) == 0 {
		return nil, errors.NewValueError("DataFrameMapper", "step without columns")
	}

	if s.Encoder != nil {
		if len(s.Columns) != 1 {
			return nil, errors.NewValueError("DataFrameMapper", "an encoder step takes exactly one column")
		}
		labels, err := f.Strings(s.Columns[0])
		if err != nil {
			return nil, err
		}
		if fit {
			if err := s.Encoder.FitLabels(labels); err != nil {
				return nil, err
			}
		}
		return s.Encoder.TransformLabels(labels)
	}

	var X mat.Matrix
	X, err := f.Matrix(s.Columns...)
	if err != nil {
		return nil, err
	}
	for _, t := range s.Transformers {
		if fit {
			X, err = t.FitTransform(X)
		} else {
			X, err = t.Transform(X)
		}
		if err != nil {
			return nil, err
		}
	}
	return X, nil
}

// names derives output names: the input column names when the width is kept,
// "<column>_<class>" for multi-column encoders and "<joined columns>_<i>"
// otherwise.
func (s *Step) names(block mat.Matrix) []string {
	_, c := block.Dims()
	if s.Encoder != nil {
		suffixes := s.Encoder.OutputNames()
		if len(suffixes) == 1 {
			return []string{s.Columns[0]}
		}
		names := make([]string, len(suffixes))
		for i, suffix := range suffixes {
			names[i] = s.Columns[0] + "_" + suffix
		}
		return names
	}
	if c == len(s.Columns) {
		return append([]string(nil), s.Columns...)
	}
	prefix := strings.Join(s.Columns, "_")
	names := make([]string, c)
	for i := range names {
		names[i] = prefix + "_" + strconv.Itoa(i)
	}
	return names
}

func hstack(rows int, blocks []mat.Matrix) *mat.Dense {
	width := 0
	for _, b := range blocks {
		_, c := b.Dims()
		width += c
	}
	out := mat.NewDense(rows, width, nil)
	offset := 0
	for _, b := range blocks {
		_, c := b.Dims()
		out.Slice(0, rows, offset, offset+c).(*mat.Dense).Copy(b)
		offset += c
	}
	return out
}
