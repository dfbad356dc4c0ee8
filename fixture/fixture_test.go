package fixture

import (
	"context"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/YuminosukeSato/scigo-fixtures/config"
	"github.com/YuminosukeSato/scigo-fixtures/dataframe"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"
)

func writeFrame(t *testing.T, path string, build func(f *dataframe.Frame)) {
	t.Helper()
	f := dataframe.New()
	build(f)
	require.NoError(t, f.WriteCSVFile(path))
}

func round(v float64) float64 {
	return math.Round(v*100) / 100
}

// writeWheat writes three well separated kernel groups.
func writeWheat(t *testing.T, dir string, rng *rand.Rand) {
	names := []string{"Area", "Perimeter", "Compactness", "Kernel.Length", "Kernel.Width", "Asymmetry", "Groove.Length"}
	centres := [][]float64{
		{14.5, 14.3, 0.88, 5.5, 3.2, 2.6, 5.1},
		{18.3, 16.1, 0.88, 6.2, 3.7, 3.6, 6.0},
		{11.9, 13.2, 0.85, 5.2, 2.8, 4.7, 5.1},
	}
	cols := make([][]float64, len(names))
	var variety []float64
	for k, c := range centres {
		for i := 0; i < 10; i++ {
			for j := range names {
				cols[j] = append(cols[j], round(c[j]*(1+0.02*rng.NormFloat64())))
			}
			variety = append(variety, float64(k+1))
		}
	}
	writeFrame(t, filepath.Join(dir, "Wheat.csv"), func(f *dataframe.Frame) {
		for j, n := range names {
			require.NoError(t, f.AddFloats(n, cols[j]))
		}
		require.NoError(t, f.AddFloats("Variety", variety))
	})
}

func writeIris(t *testing.T, dir string, rng *rand.Rand) {
	names := []string{"Sepal.Length", "Sepal.Width", "Petal.Length", "Petal.Width"}
	species := []string{"setosa", "versicolor", "virginica"}
	centres := [][]float64{
		{5.0, 3.4, 1.5, 0.2},
		{5.9, 2.8, 4.3, 1.3},
		{6.6, 3.0, 5.6, 2.0},
	}
	cols := make([][]float64, len(names))
	var labels []string
	for k, c := range centres {
		for i := 0; i < 12; i++ {
			for j := range names {
				cols[j] = append(cols[j], round(c[j]+0.15*rng.NormFloat64()))
			}
			labels = append(labels, species[k])
		}
	}
	writeFrame(t, filepath.Join(dir, "Iris.csv"), func(f *dataframe.Frame) {
		for j, n := range names {
			require.NoError(t, f.AddFloats(n, cols[j]))
		}
		require.NoError(t, f.AddStrings("Species", labels))
	})
}

func writeAuto(t *testing.T, dir string, rng *rand.Rand) {
	n := 36
	cols := map[string][]float64{}
	for i := 0; i < n; i++ {
		cyl := []float64{4, 6, 8}[i%3]
		disp := round(60 + 35*cyl + 10*rng.NormFloat64())
		hp := round(30 + 15*cyl + 5*rng.NormFloat64())
		weight := round(1500 + 350*cyl + 80*rng.NormFloat64())
		acc := round(20 - 0.6*cyl + rng.NormFloat64())
		year := float64(70 + i%13)
		origin := float64(1 + i%3)
		mpg := round(48 - 0.006*weight - 0.05*hp + 0.4*(year-70) + 0.5*rng.NormFloat64())
		if i == 5 || i == 17 {
			hp = math.NaN()
		}
		for name, v := range map[string]float64{
			"mpg": mpg, "cylinders": cyl, "displacement": disp, "horsepower": hp,
			"weight": weight, "acceleration": acc, "model_year": year, "origin": origin,
		} {
			cols[name] = append(cols[name], v)
		}
	}
	writeFrame(t, filepath.Join(dir, "Auto.csv"), func(f *dataframe.Frame) {
		for _, name := range []string{"mpg", "cylinders", "displacement", "horsepower", "weight", "acceleration", "model_year", "origin"} {
			require.NoError(t, f.AddFloats(name, cols[name]))
		}
	})
}

func writeAudit(t *testing.T, dir string, rng *rand.Rand) {
	n := 40
	employment := []string{"Private", "Consultant", "SelfEmp", "PSState"}
	education := []string{"College", "HSgrad", "Bachelor", "Master"}
	marital := []string{"Married", "Unmarried", "Absent", "Divorced"}
	occupation := []string{"Service", "Professional", "Clerical", "Repair", "Executive"}
	gender := []string{"Male", "Female"}
	deductions := []string{"FALSE", "false", "TRUE", "False"}

	var age, income, hours, adjusted []float64
	var emp, edu, mar, occ, gen, ded []string
	for i := 0; i < n; i++ {
		a := float64(20 + rng.Intn(45))
		inc := round(20000 + 2500*(a-20) + 15000*rng.NormFloat64())
		h := float64(30 + rng.Intn(30))
		adj := 0.0
		if inc > 90000 || (i%5 == 0 && h > 45) {
			adj = 1
		}
		if i%7 == 0 {
			adj = 1 - adj
		}
		age = append(age, a)
		income = append(income, inc)
		hours = append(hours, h)
		adjusted = append(adjusted, adj)
		emp = append(emp, employment[rng.Intn(len(employment))])
		edu = append(edu, education[rng.Intn(len(education))])
		mar = append(mar, marital[rng.Intn(len(marital))])
		occ = append(occ, occupation[rng.Intn(len(occupation))])
		gen = append(gen, gender[i%2])
		ded = append(ded, deductions[i%len(deductions)])
	}
	// both classes need enough rows for three stratified folds
	for i := 0; i < 8; i++ {
		adjusted[i] = float64(i % 2)
	}

	writeFrame(t, filepath.Join(dir, "Audit.csv"), func(f *dataframe.Frame) {
		require.NoError(t, f.AddFloats("Age", age))
		require.NoError(t, f.AddStrings("Employment", emp))
		require.NoError(t, f.AddStrings("Education", edu))
		require.NoError(t, f.AddStrings("Marital", mar))
		require.NoError(t, f.AddStrings("Occupation", occ))
		require.NoError(t, f.AddFloats("Income", income))
		require.NoError(t, f.AddStrings("Gender", gen))
		require.NoError(t, f.AddStrings("Deductions", ded))
		require.NoError(t, f.AddFloats("Hours", hours))
		require.NoError(t, f.AddFloats("Adjusted", adjusted))
	})
}

type workspace struct {
	csv, pkl, plots string
}

func newWorkspace(t *testing.T) workspace {
	t.Helper()
	root := t.TempDir()
	ws := workspace{
		csv:   filepath.Join(root, "csv"),
		pkl:   filepath.Join(root, "pkl"),
		plots: filepath.Join(root, "plots"),
	}
	require.NoError(t, os.MkdirAll(ws.csv, 0o755))
	rng := rand.New(rand.NewSource(42))
	writeWheat(t, ws.csv, rng)
	writeIris(t, ws.csv, rng)
	writeAuto(t, ws.csv, rng)
	writeAudit(t, ws.csv, rng)
	return ws
}

func (ws workspace) config() *config.Config {
	c := config.Default()
	c.Overwrite(config.Config{CSVDir: ws.csv, PKLDir: ws.pkl})
	return c
}

func (ws workspace) generator(t *testing.T) *Generator {
	g := NewGenerator(ws.config())
	logger, _ := log.NewTestLogger(log.LevelDebug)
	g.Logger = logger
	return g
}

func (ws workspace) verifier(t *testing.T) *Verifier {
	v := NewVerifier(ws.config())
	logger, _ := log.NewTestLogger(log.LevelDebug)
	v.Logger = logger
	return v
}

func TestGenerateAndVerify(t *testing.T) {
	if testing.Short() {
		t.Skip("fits every catalog model")
	}
	ws := newWorkspace(t)

	g := ws.generator(t)
	g.Jobs = 2
	require.NoError(t, g.Run(context.Background()))

	for _, d := range DefaultCatalog() {
		assert.FileExists(t, d.MapperPath(ws.pkl))
		for _, spec := range d.Models {
			assert.FileExists(t, d.ModelPath(ws.pkl, spec))
			assert.FileExists(t, d.OutputPath(ws.csv, spec))
		}
	}

	v := ws.verifier(t)
	v.Refit = true
	require.NoError(t, v.Run(context.Background()))
}

func TestOutputColumns(t *testing.T) {
	if testing.Short() {
		t.Skip("fits every catalog model")
	}
	ws := newWorkspace(t)
	require.NoError(t, ws.generator(t).Run(context.Background()))

	tests := []struct {
		artifact string
		columns  []string
		rows     int
	}{
		{"KMeansWheat.csv", []string{"Cluster", "affinity_0", "affinity_1", "affinity_2"}, 30},
		{"MiniBatchKMeansWheat.csv", []string{"Cluster", "affinity_0", "affinity_1", "affinity_2"}, 30},
		{"DecisionTreeAudit.csv", []string{"Adjusted", "probability_0", "probability_1"}, 40},
		{"RidgeAudit.csv", []string{"Adjusted"}, 40},
		{"LogisticRegressionIris.csv", []string{"Species", "probability_setosa", "probability_versicolor", "probability_virginica"}, 36},
		{"RidgeIris.csv", []string{"Species"}, 36},
		{"LassoAuto.csv", []string{"mpg"}, 36},
	}
	for _, tt := range tests {
		t.Run(tt.artifact, func(t *testing.T) {
			f, err := dataframe.ReadCSVFile(filepath.Join(ws.csv, tt.artifact))
			require.NoError(t, err)
			assert.Equal(t, tt.columns, f.Names())
			assert.Equal(t, tt.rows, f.NRows())
		})
	}

	species, err := dataframe.ReadCSVFile(filepath.Join(ws.csv, "NaiveBayesIris.csv"))
	require.NoError(t, err)
	labels, err := species.Strings("Species")
	require.NoError(t, err)
	for _, l := range labels {
		assert.Contains(t, []string{"setosa", "versicolor", "virginica"}, l)
	}
}

func TestGenerateWithPlots(t *testing.T) {
	ws := newWorkspace(t)
	g := ws.generator(t)
	g.PlotDir = ws.plots
	require.NoError(t, g.Run(context.Background(), "Wheat"))

	assert.FileExists(t, filepath.Join(ws.plots, "KMeansWheat.png"))
	assert.FileExists(t, filepath.Join(ws.plots, "MiniBatchKMeansWheat.png"))
	assert.NoFileExists(t, filepath.Join(ws.pkl, "Iris.pkl"), "unselected datasets are skipped")
}

func TestVerifyDetectsTamperedPredictions(t *testing.T) {
	ws := newWorkspace(t)
	require.NoError(t, ws.generator(t).Run(context.Background(), "Wheat"))

	path := filepath.Join(ws.csv, "KMeansWheat.csv")
	f, err := dataframe.ReadCSVFile(path)
	require.NoError(t, err)
	c, err := f.Column("affinity_1")
	require.NoError(t, err)
	c.Floats[3] += 0.5
	require.NoError(t, f.WriteCSVFile(path))

	err = ws.verifier(t).Run(context.Background(), "Wheat")
	require.Error(t, err)

	violations := multierr.Errors(err)
	require.Len(t, violations, 1)
	var mismatch *errors.FixtureMismatchError
	require.True(t, errors.As(violations[0], &mismatch))
	assert.Equal(t, "KMeansWheat.csv", mismatch.Artifact)
	assert.Equal(t, "affinity_1", mismatch.Column)
	assert.Equal(t, 3, mismatch.Row)
}

func TestVerifyDetectsMissingRows(t *testing.T) {
	ws := newWorkspace(t)
	require.NoError(t, ws.generator(t).Run(context.Background(), "Wheat"))

	path := filepath.Join(ws.csv, "MiniBatchKMeansWheat.csv")
	full, err := dataframe.ReadCSVFile(path)
	require.NoError(t, err)
	short := dataframe.New()
	for _, name := range full.Names() {
		values, err := full.Floats(name)
		require.NoError(t, err)
		require.NoError(t, short.AddFloats(name, values[:10]))
	}
	require.NoError(t, short.WriteCSVFile(path))

	err = ws.verifier(t).Run(context.Background(), "Wheat")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "30 rows")
}

func TestVerifyMissingArtifacts(t *testing.T) {
	ws := newWorkspace(t)
	assert.Error(t, ws.verifier(t).Run(context.Background(), "Wheat"))
}

func TestGenerateErrors(t *testing.T) {
	ws := newWorkspace(t)
	g := ws.generator(t)

	err := g.Run(context.Background(), "Titanic")
	var verr *errors.ValidationError
	assert.True(t, errors.As(err, &verr))

	g.CSVDir = filepath.Join(ws.csv, "missing")
	assert.Error(t, g.Run(context.Background(), "Wheat"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g.CSVDir = ws.csv
	assert.ErrorIs(t, g.Run(ctx, "Wheat"), context.Canceled)
}

func TestCatalog(t *testing.T) {
	c := DefaultCatalog()
	assert.Equal(t, []string{"Wheat", "Audit", "Iris", "Auto"}, c.Names())

	selected, err := c.Select("Auto", "Wheat")
	require.NoError(t, err)
	assert.Equal(t, []string{"Wheat", "Auto"}, Catalog(selected).Names(), "catalog order is kept")

	all, err := c.Select()
	require.NoError(t, err)
	assert.Len(t, all, 4)

	_, err = c.Select("Wheat", "Boston")
	assert.Error(t, err)

	counts := map[string]int{"Wheat": 2, "Audit": 6, "Iris": 6, "Auto": 7}
	for _, d := range c {
		assert.Len(t, d.Models, counts[d.Name], d.Name)
		for _, spec := range d.Models {
			assert.False(t, spec.New().IsFitted())
		}
	}

	iris := c[2]
	lr := iris.Models[2]
	assert.Equal(t, filepath.Join("pkl", "LogisticRegressionIris.pkl"), iris.ModelPath("pkl", lr))
	assert.Equal(t, filepath.Join("csv", "LogisticRegressionIris.csv"), iris.OutputPath("csv", lr))
	assert.Equal(t, filepath.Join("pkl", "Iris.pkl"), iris.MapperPath("pkl"))
}

func TestSplit(t *testing.T) {
	Xy := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})

	X, y := (&Dataset{Task: Regression}).Split(Xy)
	assert.Equal(t, []float64{1, 2, 4, 5}, X.RawMatrix().Data)
	assert.Equal(t, []float64{3, 6}, y.RawMatrix().Data)

	X, y = (&Dataset{Task: Clustering}).Split(Xy)
	assert.Nil(t, y)
	assert.True(t, mat.Equal(Xy, X))
}

func TestSquaredDistances(t *testing.T) {
	X := mat.NewDense(2, 2, []float64{0, 0, 3, 4})
	d := squaredDistances(X, [][]float64{{0, 0}, {3, 0}})
	assert.Equal(t, []float64{0, 9, 25, 16}, d.RawMatrix().Data)
}
