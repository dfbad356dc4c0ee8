// Package fixture produces and checks the reference artifacts: for every
// dataset a fitted DataFrameMapper, one fitted model per stock estimator and
// the model's predictions on its own training data.
//
// Artifact layout, relative to the configured directories:
//
//	<csv>/<Dataset>.csv              input table
//	<pkl>/<Dataset>.pkl              fitted mapper
//	<pkl>/<Model><Dataset>.pkl       fitted model
//	<csv>/<Model><Dataset>.csv       predictions
package fixture

import (
	"path/filepath"
	"sort"
	"strings"

	"github.com/YuminosukeSato/scigo-fixtures/core/model"
	"github.com/YuminosukeSato/scigo-fixtures/dataframe"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"github.com/YuminosukeSato/scigo-fixtures/preprocessing"
	"github.com/YuminosukeSato/scigo-fixtures/sklearn/cluster"
	"github.com/YuminosukeSato/scigo-fixtures/sklearn/decomposition"
	"github.com/YuminosukeSato/scigo-fixtures/sklearn/ensemble"
	"github.com/YuminosukeSato/scigo-fixtures/sklearn/linear_model"
	"github.com/YuminosukeSato/scigo-fixtures/sklearn/naive_bayes"
	"github.com/YuminosukeSato/scigo-fixtures/sklearn/tree"
	"gonum.org/v1/gonum/mat"
)

// Task is the kind of learning problem a dataset poses.
type Task int

const (
	Clustering Task = iota
	Classification
	Regression
)

func (t Task) String() string {
	switch t {
	case Clustering:
		return "clustering"
	case Classification:
		return "classification"
	case Regression:
		return "regression"
	default:
		return "unknown"
	}
}

// seed is the random_state shared by every seeded estimator.
const seed = 13

// ModelSpec names a stock estimator.
type ModelSpec struct {
	// Name prefixes the dataset name in artifact names.
	Name string
	// New returns an unfitted estimator with the fixture hyperparameters.
	New func() model.Estimator
	// Extra adds class probabilities (classifiers) or cluster affinities
	// (clusterers) to the prediction table.
	Extra bool
}

// Dataset describes one fixture family.
type Dataset struct {
	Name string
	Task Task
	// Label is the target column. The mapper emits it as its last feature.
	// It is empty for clustering.
	Label string
	// Prepare coerces the raw input table before mapping.
	Prepare func(f *dataframe.Frame) error
	// Mapper returns the unfitted feature mapping.
	Mapper func() *preprocessing.DataFrameMapper
	Models []ModelSpec
}

// ArtifactName is the base name of a model's pkl and csv artifacts.
func (d *Dataset) ArtifactName(m ModelSpec) string {
	return m.Name + d.Name
}

// InputPath is the location of the input table.
func (d *Dataset) InputPath(csvDir string) string {
	return filepath.Join(csvDir, d.Name+".csv")
}

// MapperPath is the location of the persisted mapper.
func (d *Dataset) MapperPath(pklDir string) string {
	return filepath.Join(pklDir, d.Name+".pkl")
}

// ModelPath is the location of a persisted model.
func (d *Dataset) ModelPath(pklDir string, m ModelSpec) string {
	return filepath.Join(pklDir, d.ArtifactName(m)+".pkl")
}

// OutputPath is the location of a model's prediction table.
func (d *Dataset) OutputPath(csvDir string, m ModelSpec) string {
	return filepath.Join(csvDir, d.ArtifactName(m)+".csv")
}

// Load reads the input table and applies Prepare.
func (d *Dataset) Load(csvDir string) (*dataframe.Frame, error) {
	f, err := dataframe.ReadCSVFile(d.InputPath(csvDir))
	if err != nil {
		return nil, err
	}
	if d.Prepare != nil {
		if err := d.Prepare(f); err != nil {
			return nil, errors.Wrapf(err, "prepare %s", d.Name)
		}
	}
	return f, nil
}

// Split separates the mapped matrix into features and target. Clustering
// datasets have no target and get a nil y.
func (d *Dataset) Split(Xy *mat.Dense) (*mat.Dense, *mat.Dense) {
	if d.Task == Clustering {
		return Xy, nil
	}
	r, c := Xy.Dims()
	X := mat.DenseCopyOf(Xy.Slice(0, r, 0, c-1))
	y := mat.DenseCopyOf(Xy.Slice(0, r, c-1, c))
	return X, y
}

// Catalog is an ordered set of datasets.
type Catalog []*Dataset

// Names returns the dataset names in catalog order.
func (c Catalog) Names() []string {
	names := make([]string, len(c))
	for i, d := range c {
		names[i] = d.Name
	}
	return names
}

// Select returns the named datasets in catalog order. No names selects every
// dataset.
func (c Catalog) Select(names ...string) ([]*Dataset, error) {
	if len(names) == 0 {
		return c, nil
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}
	var out []*Dataset
	for _, d := range c {
		if wanted[d.Name] {
			out = append(out, d)
			delete(wanted, d.Name)
		}
	}
	if len(wanted) > 0 {
		unknown := make([]string, 0, len(wanted))
		for n := range wanted {
			unknown = append(unknown, n)
		}
		sort.Strings(unknown)
		return nil, errors.NewValidationError("datasets",
			"unknown dataset, want one of "+strings.Join(c.Names(), ", "), strings.Join(unknown, ", "))
	}
	return out, nil
}

// DefaultCatalog returns the Wheat, Audit, Iris and Auto fixtures.
func DefaultCatalog() Catalog {
	return Catalog{wheat(), audit(), iris(), auto()}
}

func wheat() *Dataset {
	measurements := []string{"Area", "Perimeter", "Compactness", "Kernel.Length", "Kernel.Width", "Asymmetry", "Groove.Length"}
	return &Dataset{
		Name: "Wheat",
		Task: Clustering,
		Prepare: func(f *dataframe.Frame) error {
			return f.Drop("Variety")
		},
		Mapper: func() *preprocessing.DataFrameMapper {
			return preprocessing.NewDataFrameMapper(
				preprocessing.NewStep(measurements, preprocessing.NewMinMaxScalerDefault()),
			)
		},
		Models: []ModelSpec{
			{Name: "KMeans", Extra: true, New: func() model.Estimator {
				return cluster.NewKMeans(
					cluster.WithKMeansNClusters(3),
					cluster.WithKMeansRandomState(seed),
				)
			}},
			{Name: "MiniBatchKMeans", Extra: true, New: func() model.Estimator {
				return cluster.NewMiniBatchKMeans(
					cluster.WithKMeansNClusters(3),
					cluster.WithKMeansComputeLabels(false),
					cluster.WithKMeansRandomState(seed),
				)
			}},
		},
	}
}

// classifiers are the stock classifiers fitted on Audit and Iris.
func classifiers(gbOpts ...ensemble.Option) []ModelSpec {
	return []ModelSpec{
		{Name: "DecisionTree", Extra: true, New: func() model.Estimator {
			return tree.NewDecisionTreeClassifier(tree.WithRandomState(seed), tree.WithMinSamplesLeaf(5))
		}},
		{Name: "GradientBoosting", Extra: true, New: func() model.Estimator {
			return ensemble.NewGradientBoostingClassifier(append([]ensemble.Option{ensemble.WithRandomState(seed)}, gbOpts...)...)
		}},
		{Name: "LogisticRegression", Extra: true, New: func() model.Estimator {
			return linear_model.NewLogisticRegressionCV()
		}},
		{Name: "NaiveBayes", Extra: true, New: func() model.Estimator {
			return naive_bayes.NewGaussianNB()
		}},
		{Name: "RandomForest", Extra: true, New: func() model.Estimator {
			return ensemble.NewRandomForestClassifier(
				ensemble.WithRandomState(seed),
				ensemble.WithTreeOptions(tree.WithMinSamplesLeaf(5)),
			)
		}},
		{Name: "Ridge", New: func() model.Estimator {
			return linear_model.NewRidgeClassifierCV()
		}},
	}
}

func audit() *Dataset {
	lb := func(column string) preprocessing.Step {
		return preprocessing.NewEncoderStep(column, preprocessing.NewLabelBinarizer())
	}
	le := func(column string) preprocessing.Step {
		return preprocessing.NewEncoderStep(column, preprocessing.NewLabelEncoder())
	}
	identity := func(column string) preprocessing.Step {
		return preprocessing.NewStep([]string{column})
	}
	return &Dataset{
		Name:  "Audit",
		Task:  Classification,
		Label: "Adjusted",
		Prepare: func(f *dataframe.Frame) error {
			return f.NormalizeBool("Deductions")
		},
		Mapper: func() *preprocessing.DataFrameMapper {
			return preprocessing.NewDataFrameMapper(
				identity("Age"),
				lb("Employment"),
				lb("Education"),
				lb("Marital"),
				lb("Occupation"),
				identity("Income"),
				le("Gender"),
				le("Deductions"),
				identity("Hours"),
				identity("Adjusted"),
			)
		},
		Models: classifiers(ensemble.WithLoss(ensemble.Exponential)),
	}
}

func iris() *Dataset {
	return &Dataset{
		Name:  "Iris",
		Task:  Classification,
		Label: "Species",
		Mapper: func() *preprocessing.DataFrameMapper {
			return preprocessing.NewDataFrameMapper(
				preprocessing.NewStep(
					[]string{"Sepal.Length", "Sepal.Width", "Petal.Length", "Petal.Width"},
					preprocessing.NewStandardScalerDefault(),
					decomposition.NewIncrementalPCA(decomposition.WithNComponents(3), decomposition.WithWhiten(true)),
				),
				preprocessing.NewEncoderStep("Species", preprocessing.NewLabelEncoder()),
			)
		},
		Models: classifiers(ensemble.WithNEstimators(17)),
	}
}

func auto() *Dataset {
	continuous := []string{"displacement", "horsepower", "weight", "acceleration"}
	return &Dataset{
		Name:  "Auto",
		Task:  Regression,
		Label: "mpg",
		Prepare: func(f *dataframe.Frame) error {
			for _, c := range continuous {
				if err := f.AsFloat(c); err != nil {
					return err
				}
			}
			return nil
		},
		Mapper: func() *preprocessing.DataFrameMapper {
			return preprocessing.NewDataFrameMapper(
				preprocessing.NewStep([]string{"cylinders"}),
				preprocessing.NewStep(continuous,
					preprocessing.NewImputer(preprocessing.ImputeMean),
					preprocessing.NewStandardScalerDefault(),
				),
				preprocessing.NewStep([]string{"model_year"}),
				preprocessing.NewStep([]string{"origin"}, preprocessing.NewBinarizer(1)),
				preprocessing.NewStep([]string{"mpg"}),
			)
		},
		Models: []ModelSpec{
			{Name: "DecisionTree", New: func() model.Estimator {
				return tree.NewDecisionTreeRegressor(tree.WithRandomState(seed), tree.WithMinSamplesLeaf(5))
			}},
			{Name: "ElasticNet", New: func() model.Estimator {
				return linear_model.NewElasticNetCV(linear_model.WithCDRandomState(seed))
			}},
			{Name: "GradientBoosting", New: func() model.Estimator {
				return ensemble.NewGradientBoostingRegressor(ensemble.WithRandomState(seed))
			}},
			{Name: "Lasso", New: func() model.Estimator {
				return linear_model.NewLassoCV(linear_model.WithCDRandomState(seed))
			}},
			{Name: "LinearRegression", New: func() model.Estimator {
				return linear_model.NewLinearRegression()
			}},
			{Name: "RandomForest", New: func() model.Estimator {
				return ensemble.NewRandomForestRegressor(
					ensemble.WithRandomState(seed),
					ensemble.WithTreeOptions(tree.WithMinSamplesLeaf(5)),
				)
			}},
			{Name: "Ridge", New: func() model.Estimator {
				return linear_model.NewRidgeCV()
			}},
		},
	}
}
