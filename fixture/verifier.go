package fixture

import (
	"context"
	"math"
	"path/filepath"
	"reflect"
	"slices"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/scigo-fixtures/config"
	"github.com/YuminosukeSato/scigo-fixtures/core/model"
	"github.com/YuminosukeSato/scigo-fixtures/dataframe"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/log"
	"github.com/YuminosukeSato/scigo-fixtures/preprocessing"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"
)

// DefaultTolerance is the relative tolerance of numeric comparisons.
const DefaultTolerance = 1e-9

// Verifier checks generated artifacts against their inputs:
//
//   - the persisted mapper replayed on the input reproduces a fresh fit,
//   - every persisted model reproduces its prediction table,
//   - every prediction table has the expected columns and one row per input row,
//   - class probabilities sum to one on every row.
//
// With Refit set, a freshly fitted model must reproduce the table too.
type Verifier struct {
	CSVDir    string
	PKLDir    string
	Catalog   Catalog
	Tolerance float64
	Refit     bool
	Logger    log.Logger
}

// NewVerifier returns a verifier over the default catalog.
func NewVerifier(c *config.Config) *Verifier {
	return &Verifier{
		CSVDir:    c.CSVDir,
		PKLDir:    c.PKLDir,
		Catalog:   DefaultCatalog(),
		Tolerance: DefaultTolerance,
		Logger:    log.GetLoggerWithName("fixture"),
	}
}

// Run verifies the named datasets, or every dataset when names is empty, and
// returns all violations combined.
func (v *Verifier) Run(ctx context.Context, names ...string) error {
	datasets, err := v.Catalog.Select(names...)
	if err != nil {
		return err
	}
	var errs error
	for _, d := range datasets {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		errs = multierr.Append(errs, v.Dataset(ctx, d))
	}
	return errs
}

// Dataset verifies the artifacts of d.
func (v *Verifier) Dataset(ctx context.Context, d *Dataset) error {
	logger := v.Logger.With(log.DatasetKey, d.Name, log.OperationKey, log.OperationVerify)

	frame, err := d.Load(v.CSVDir)
	if err != nil {
		return errors.Wrapf(err, "load %s", d.Name)
	}

	mapper := &preprocessing.DataFrameMapper{}
	if err := model.LoadModel(mapper, d.MapperPath(v.PKLDir)); err != nil {
		return errors.Wrapf(err, "load %s mapper", d.Name)
	}
	replayed, err := mapper.Transform(frame)
	if err != nil {
		return errors.Wrapf(err, "replay %s mapper", d.Name)
	}
	fresh, err := d.Mapper().FitTransform(frame)
	if err != nil {
		return errors.Wrapf(err, "map %s", d.Name)
	}
	errs := v.compareMatrix(filepath.Base(d.MapperPath(v.PKLDir)), mapper.FeatureNames(), fresh, replayed)

	X, y := d.Split(replayed)
	for _, spec := range d.Models {
		if err := ctx.Err(); err != nil {
			return multierr.Append(errs, err)
		}
		errs = multierr.Append(errs, v.model(d, spec, mapper, frame.NRows(), X, y))
	}

	violations := len(multierr.Errors(errs))
	if violations > 0 {
		logger.Warn("fixture verification failed", log.ViolationsKey, violations)
	} else {
		logger.Info("fixture verified", log.ViolationsKey, 0)
	}
	return errs
}

func (v *Verifier) model(d *Dataset, spec ModelSpec, mapper *preprocessing.DataFrameMapper, nRows int, X, y *mat.Dense) error {
	artifact := filepath.Base(d.OutputPath(v.CSVDir, spec))

	got, err := dataframe.ReadCSVFile(d.OutputPath(v.CSVDir, spec))
	if err != nil {
		return err
	}
	est, err := loadEstimator(spec, d.ModelPath(v.PKLDir, spec))
	if err != nil {
		return err
	}
	want, err := predictFrame(d, spec, est, mapper, X)
	if err != nil {
		return errors.Wrapf(err, "predict %s", d.ArtifactName(spec))
	}

	if got.NRows() != nRows {
		return errors.NewFixtureMismatchError(artifact, "", -1, strconv.Itoa(nRows)+" rows", strconv.Itoa(got.NRows())+" rows")
	}
	errs := v.compareFrames(artifact, want, got)
	errs = multierr.Append(errs, v.probabilitySums(artifact, got))

	if v.Refit {
		refit := spec.New()
		if err := refit.Fit(X, target(y)); err != nil {
			return multierr.Append(errs, errors.Wrapf(err, "refit %s", d.ArtifactName(spec)))
		}
		again, err := predictFrame(d, spec, refit, mapper, X)
		if err != nil {
			return multierr.Append(errs, err)
		}
		errs = multierr.Append(errs, v.compareFrames(artifact+" (refit)", again, got))
	}
	return errs
}

// loadEstimator decodes a persisted model into a zero value of the spec's
// type. gob omits zero-valued fields, so decoding over constructor defaults
// would keep a default wherever the fitted value is zero.
func loadEstimator(spec ModelSpec, path string) (model.Estimator, error) {
	t := reflect.TypeOf(spec.New())
	if t.Kind() != reflect.Pointer {
		return nil, errors.NewValueError("fixture.loadEstimator", spec.Name+" is not a pointer type")
	}
	est := reflect.New(t.Elem()).Interface().(model.Estimator)
	if err := model.LoadModel(est, path); err != nil {
		return nil, err
	}
	return est, nil
}

func predictFrame(d *Dataset, spec ModelSpec, est model.Estimator, mapper *preprocessing.DataFrameMapper, X mat.Matrix) (*dataframe.Frame, error) {
	pred, err := Predict(d, spec, est, X)
	if err != nil {
		return nil, err
	}
	return pred.Frame(d, mapper)
}

func (v *Verifier) near(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	if a == b {
		return true
	}
	scale := math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
	return math.Abs(a-b) <= v.Tolerance*scale
}

func (v *Verifier) compareMatrix(artifact string, names []string, want, got mat.Matrix) error {
	wr, wc := want.Dims()
	gr, gc := got.Dims()
	if wr != gr || wc != gc {
		return errors.NewFixtureMismatchError(artifact, "", -1,
			strconv.Itoa(wr)+"x"+strconv.Itoa(wc), strconv.Itoa(gr)+"x"+strconv.Itoa(gc))
	}
	var errs error
	for j := 0; j < wc; j++ {
		for i := 0; i < wr; i++ {
			a, b := want.At(i, j), got.At(i, j)
			if !v.near(a, b) {
				name := strconv.Itoa(j)
				if j < len(names) {
					name = names[j]
				}
				errs = multierr.Append(errs, errors.NewFixtureMismatchError(artifact, name, i,
					dataframe.FormatFloat(a), dataframe.FormatFloat(b)))
				break
			}
		}
	}
	return errs
}

// compareFrames reports the first differing row of every column.
func (v *Verifier) compareFrames(artifact string, want, got *dataframe.Frame) error {
	if !slices.Equal(want.Names(), got.Names()) {
		return errors.NewFixtureMismatchError(artifact, "", -1,
			strings.Join(want.Names(), ","), strings.Join(got.Names(), ","))
	}
	if want.NRows() != got.NRows() {
		return errors.NewFixtureMismatchError(artifact, "", -1,
			strconv.Itoa(want.NRows())+" rows", strconv.Itoa(got.NRows())+" rows")
	}

	var errs error
	for _, name := range want.Names() {
		wc, _ := want.Column(name)
		gc, _ := got.Column(name)
		for i := 0; i < want.NRows(); i++ {
			if wc.Kind == dataframe.Numeric && gc.Kind == dataframe.Numeric {
				if !v.near(wc.Floats[i], gc.Floats[i]) {
					errs = multierr.Append(errs, errors.NewFixtureMismatchError(artifact, name, i,
						dataframe.FormatFloat(wc.Floats[i]), dataframe.FormatFloat(gc.Floats[i])))
					break
				}
				continue
			}
			if a, b := cell(wc, i), cell(gc, i); a != b {
				errs = multierr.Append(errs, errors.NewFixtureMismatchError(artifact, name, i, a, b))
				break
			}
		}
	}
	return errs
}

func cell(c *dataframe.Column, i int) string {
	if c.Kind == dataframe.Numeric {
		return dataframe.FormatFloat(c.Floats[i])
	}
	return c.Strings[i]
}

// probabilitySums checks that the probability columns of every row sum to 1.
func (v *Verifier) probabilitySums(artifact string, f *dataframe.Frame) error {
	var cols []*dataframe.Column
	for _, name := range f.Names() {
		if strings.HasPrefix(name, ProbabilityPrefix) {
			c, _ := f.Column(name)
			cols = append(cols, c)
		}
	}
	if len(cols) == 0 {
		return nil
	}
	for i := 0; i < f.NRows(); i++ {
		sum := 0.0
		for _, c := range cols {
			if c.Kind != dataframe.Numeric {
				return errors.NewFixtureMismatchError(artifact, c.Name, -1, "numeric", c.Kind.String())
			}
			sum += c.Floats[i]
		}
		if !v.near(sum, 1) {
			return errors.NewFixtureMismatchError(artifact, ProbabilityPrefix+"*", i, "1", dataframe.FormatFloat(sum))
		}
	}
	return nil
}
