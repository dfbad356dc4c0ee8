package dataframe

import (
	"bufio"
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
)

// DefaultNAValues are the cell spellings read as missing.
var DefaultNAValues = []string{"", "NA", "N/A", "NaN"}

type readConfig struct {
	naValues map[string]bool
	comma    rune
}

// Option configures ReadCSV.
type Option func(*readConfig)

// WithNAValues replaces the set of cell spellings read as missing.
// The empty cell is always missing.
func WithNAValues(values ...string) Option {
	return func(c *readConfig) {
		c.naValues = map[string]bool{"": true}
		for _, v := range values {
			c.naValues[v] = true
		}
	}
}

// WithComma sets the field delimiter.
func WithComma(r rune) Option {
	return func(c *readConfig) {
		c.comma = r
	}
}

// ReadCSVFile reads a CSV file with a header row.
func ReadCSVFile(path string, opts ...Option) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer file.Close()

	f, err := ReadCSV(bufio.NewReader(file), opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	return f, nil
}

// ReadCSV reads CSV data with a header row. A column is numeric when every
// non-missing cell parses as a float, otherwise it is kept as strings.
func ReadCSV(r io.Reader, opts ...Option) (*Frame, error) {
	cfg := readConfig{comma: ','}
	WithNAValues(DefaultNAValues...)(&cfg)
	for _, opt := range opts {
		opt(&cfg)
	}

	reader := csv.NewReader(r)
	reader.Comma = cfg.comma

	header, err := reader.Read()
	if err == io.EOF {
		return nil, errors.NewModelError("ReadCSV", "missing header", errors.ErrEmptyData)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to read header")
	}

	cells := make([][]string, len(header))
	for {
		rec, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// csv.ErrFieldCount covers ragged rows
			return nil, errors.Wrap(err, "failed to read record")
		}
		for j, s := range rec {
			cells[j] = append(cells[j], s)
		}
	}

	frame := New()
	for j, name := range header {
		name = strings.TrimSpace(name)
		col := parseColumn(name, cells[j], cfg.naValues)
		if err := frame.add(col); err != nil {
			return nil, err
		}
	}
	return frame, nil
}

func parseColumn(name string, raw []string, na map[string]bool) *Column {
	floats := make([]float64, len(raw))
	for i, s := range raw {
		s = strings.TrimSpace(s)
		if na[s] {
			floats[i] = math.NaN()
			continue
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			strs := make([]string, len(raw))
			for k, t := range raw {
				t = strings.TrimSpace(t)
				if na[t] {
					t = ""
				}
				strs[k] = t
			}
			return &Column{Name: name, Kind: String, Strings: strs}
		}
		floats[i] = v
	}
	return &Column{Name: name, Kind: Numeric, Floats: floats}
}

// WriteCSVFile writes the frame to path, creating parent directories.
func (f *Frame) WriteCSVFile(path string) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory for %s", path)
	}
	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = errors.Wrapf(cerr, "failed to close %s", path)
		}
	}()
	return f.WriteCSV(file)
}

// WriteCSV writes a header row followed by every row, without an index
// column. Floats use FormatFloat.
func (f *Frame) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(f.Names()); err != nil {
		return errors.Wrap(err, "failed to write header")
	}

	rec := make([]string, len(f.columns))
	for i := 0; i < f.nrows; i++ {
		for j, c := range f.columns {
			if c.Kind == Numeric {
				rec[j] = FormatFloat(c.Floats[i])
			} else {
				rec[j] = c.Strings[i]
			}
		}
		if err := writer.Write(rec); err != nil {
			return errors.Wrapf(err, "failed to write row %d", i)
		}
	}
	writer.Flush()
	return errors.Wrap(writer.Error(), "failed to flush csv")
}
