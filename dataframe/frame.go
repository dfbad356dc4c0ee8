package dataframe

import (
	"math"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// Kind is the storage type of a column.
type Kind int

const (
	// Numeric columns hold float64 values, NaN marks a missing cell.
	Numeric Kind = iota
	// String columns hold raw text, "" marks a missing cell.
	String
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case String:
		return "string"
	default:
		return "unknown"
	}
}

// Column is a named, typed column. Exactly one of Floats or Strings is set,
// depending on Kind.
type Column struct {
	Name    string
	Kind    Kind
	Floats  []float64
	Strings []string
}

// Len returns the number of cells in the column.
func (c *Column) Len() int {
	if c.Kind == Numeric {
		return len(c.Floats)
	}
	return len(c.Strings)
}

// Frame is an ordered set of equally long columns.
type Frame struct {
	columns []*Column
	index   map[string]int
	nrows   int
}

// New returns an empty frame.
func New() *Frame {
	return &Frame{index: make(map[string]int)}
}

// NRows returns the number of rows.
func (f *Frame) NRows() int { return f.nrows }

// NCols returns the number of columns.
func (f *Frame) NCols() int { return len(f.columns) }

// Names returns the column names in order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return names
}

// Has reports whether the frame has a column with the given name.
func (f *Frame) Has(name string) bool {
	_, ok := f.index[name]
	return ok
}

// Column returns the named column.
func (f *Frame) Column(name string) (*Column, error) {
	i, ok := f.index[name]
	if !ok {
		return nil, errors.NewValueError("Frame.Column", "unknown column "+strconv.Quote(name))
	}
	return f.columns[i], nil
}

// Drop removes the named columns. Every name must exist.
func (f *Frame) Drop(names ...string) error {
	drop := make(map[string]bool, len(names))
	for _, name := range names {
		if !f.Has(name) {
			return errors.NewValueError("Frame.Drop", "unknown column "+strconv.Quote(name))
		}
		drop[name] = true
	}

	kept := f.columns[:0]
	for _, c := range f.columns {
		if !drop[c.Name] {
			kept = append(kept, c)
		}
	}
	f.columns = kept
	f.reindex()
	if len(f.columns) == 0 {
		f.nrows = 0
	}
	return nil
}

// Floats returns the values of a numeric column.
func (f *Frame) Floats(name string) ([]float64, error) {
	c, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Kind != Numeric {
		return nil, errors.NewValueError("Frame.Floats", "column "+strconv.Quote(name)+" is not numeric")
	}
	return c.Floats, nil
}

// Strings returns the values of a column as text. Numeric cells are
// formatted the way WriteCSV formats them.
func (f *Frame) Strings(name string) ([]string, error) {
	c, err := f.Column(name)
	if err != nil {
		return nil, err
	}
	if c.Kind == String {
		return c.Strings, nil
	}
	out := make([]string, len(c.Floats))
	for i, v := range c.Floats {
		out[i] = FormatFloat(v)
	}
	return out, nil
}

// AsFloat converts the named column to numeric in place. Missing cells become
// NaN; any other unparsable cell is an error.
func (f *Frame) AsFloat(name string) error {
	c, err := f.Column(name)
	if err != nil {
		return err
	}
	if c.Kind == Numeric {
		return nil
	}

	values := make([]float64, len(c.Strings))
	for i, s := range c.Strings {
		s = strings.TrimSpace(s)
		if s == "" {
			values[i] = math.NaN()
			continue
		}
		v, perr := strconv.ParseFloat(s, 64)
		if perr != nil {
			return errors.NewValueError("Frame.AsFloat",
				"column "+strconv.Quote(name)+" row "+strconv.Itoa(i)+": "+strconv.Quote(s)+" is not a number")
		}
		values[i] = v
	}
	c.Kind = Numeric
	c.Floats = values
	c.Strings = nil
	errors.Warn(errors.NewDataConversionWarning(String.String(), Numeric.String(), "column "+strconv.Quote(name)))
	return nil
}

// AsString converts the named column to text in place.
func (f *Frame) AsString(name string) error {
	values, err := f.Strings(name)
	if err != nil {
		return err
	}
	c, _ := f.Column(name)
	c.Kind = String
	c.Strings = values
	c.Floats = nil
	return nil
}

// NormalizeBool rewrites boolean spellings (true/false in any case, 1/0) to
// "TRUE" and "FALSE". Missing cells stay missing; anything else is an error.
func (f *Frame) NormalizeBool(name string) error {
	if err := f.AsString(name); err != nil {
		return err
	}
	c, _ := f.Column(name)
	for i, s := range c.Strings {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "1":
			c.Strings[i] = "TRUE"
		case "false", "0":
			c.Strings[i] = "FALSE"
		case "":
			c.Strings[i] = ""
		default:
			return errors.NewValueError("Frame.NormalizeBool",
				"column "+strconv.Quote(name)+" row "+strconv.Itoa(i)+": "+strconv.Quote(s)+" is not a boolean")
		}
	}
	return nil
}

// Matrix stacks the named numeric columns into an n_rows × len(names) matrix.
func (f *Frame) Matrix(names ...string) (*mat.Dense, error) {
	if len(names) == 0 {
		return nil, errors.NewValueError("Frame.Matrix", "no columns selected")
	}
	if f.nrows == 0 {
		return nil, errors.NewModelError("Frame.Matrix", "empty data", errors.ErrEmptyData)
	}

	out := mat.NewDense(f.nrows, len(names), nil)
	for j, name := range names {
		values, err := f.Floats(name)
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			out.Set(i, j, v)
		}
	}
	return out, nil
}

// AddFloats appends a numeric column.
func (f *Frame) AddFloats(name string, values []float64) error {
	return f.add(&Column{Name: name, Kind: Numeric, Floats: values})
}

// AddStrings appends a string column.
func (f *Frame) AddStrings(name string, values []string) error {
	return f.add(&Column{Name: name, Kind: String, Strings: values})
}

// AddMatrix appends every column of m, named by names.
func (f *Frame) AddMatrix(names []string, m mat.Matrix) error {
	r, c := m.Dims()
	if c != len(names) {
		return errors.NewDimensionError("Frame.AddMatrix", len(names), c, 1)
	}
	for j, name := range names {
		values := make([]float64, r)
		for i := range values {
			values[i] = m.At(i, j)
		}
		if err := f.AddFloats(name, values); err != nil {
			return err
		}
	}
	return nil
}

func (f *Frame) add(c *Column) error {
	if f.index == nil {
		f.index = make(map[string]int)
	}
	if f.Has(c.Name) {
		return errors.NewValueError("Frame.Add", "duplicate column "+strconv.Quote(c.Name))
	}
	if len(f.columns) > 0 && c.Len() != f.nrows {
		return errors.NewDimensionError("Frame.Add", f.nrows, c.Len(), 0)
	}
	f.columns = append(f.columns, c)
	f.index[c.Name] = len(f.columns) - 1
	f.nrows = c.Len()
	return nil
}

func (f *Frame) reindex() {
	f.index = make(map[string]int, len(f.columns))
	for i, c := range f.columns {
		f.index[c.Name] = i
	}
}

// FormatFloat renders v in its shortest round-trip form. NaN is rendered as
// an empty cell.
func FormatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return ""
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	if a := math.Abs(v); a != 0 && (a < 1e-4 || a >= 1e16) {
		return strconv.FormatFloat(v, 'e', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
