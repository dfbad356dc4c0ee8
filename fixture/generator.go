package fixture

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/YuminosukeSato/scigo-fixtures/config"
	"github.com/YuminosukeSato/scigo-fixtures/core/model"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/errors"
	"github.com/YuminosukeSato/scigo-fixtures/pkg/log"
	"github.com/YuminosukeSato/scigo-fixtures/preprocessing"
	"github.com/YuminosukeSato/scigo-fixtures/report"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// Generator fits every catalog model and writes its artifacts.
type Generator struct {
	CSVDir  string
	PKLDir  string
	PlotDir string // no plots when empty
	Jobs    int    // datasets processed concurrently
	Catalog Catalog
	Logger  log.Logger
}

// NewGenerator returns a generator over the default catalog.
func NewGenerator(c *config.Config) *Generator {
	return &Generator{
		CSVDir:  c.CSVDir,
		PKLDir:  c.PKLDir,
		PlotDir: c.PlotDir,
		Jobs:    c.Jobs,
		Catalog: DefaultCatalog(),
		Logger:  log.GetLoggerWithName("fixture"),
	}
}

// Run generates the named datasets, or every dataset when names is empty.
// Datasets are independent and run concurrently up to Jobs at a time. The
// first failure cancels the remaining work.
func (g *Generator) Run(ctx context.Context, names ...string) error {
	datasets, err := g.Catalog.Select(names...)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(g.PKLDir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create %s", g.PKLDir)
	}

	grp, ctx := errgroup.WithContext(ctx)
	grp.SetLimit(max(g.Jobs, 1))
	for _, d := range datasets {
		d := d
		grp.Go(func() error {
			return g.Dataset(ctx, d)
		})
	}
	return grp.Wait()
}

// Dataset generates the mapper and every model artifact of d.
func (g *Generator) Dataset(ctx context.Context, d *Dataset) error {
	logger := g.Logger.With(log.DatasetKey, d.Name)
	start := time.Now()

	frame, err := d.Load(g.CSVDir)
	if err != nil {
		return errors.Wrapf(err, "load %s", d.Name)
	}
	logger.Debug("dataset loaded",
		log.OperationKey, log.OperationLoad,
		log.FilePathKey, d.InputPath(g.CSVDir),
		log.SamplesKey, frame.NRows(),
		log.ColumnsKey, frame.NCols(),
	)

	mapper := d.Mapper()
	Xy, err := mapper.FitTransform(frame)
	if err != nil {
		return errors.Wrapf(err, "map %s", d.Name)
	}
	if err := g.store(logger, mapper, d.MapperPath(g.PKLDir)); err != nil {
		return err
	}
	X, y := d.Split(Xy)
	_, nFeatures := X.Dims()

	for _, spec := range d.Models {
		if err := ctx.Err(); err != nil {
			return err
		}
		mlog := logger.With(log.ModelNameKey, spec.Name)
		if err := g.model(mlog, d, spec, mapper, X, y); err != nil {
			return errors.Wrapf(err, "%s", d.ArtifactName(spec))
		}
	}

	logger.Info("dataset generated",
		log.SamplesKey, frame.NRows(),
		log.FeaturesKey, nFeatures,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

func (g *Generator) model(logger log.Logger, d *Dataset, spec ModelSpec, mapper *preprocessing.DataFrameMapper, X, y *mat.Dense) error {
	start := time.Now()
	est := spec.New()
	if err := est.Fit(X, target(y)); err != nil {
		return err
	}
	logger.Debug("model fitted",
		log.OperationKey, log.OperationFit,
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)

	if err := g.store(logger, est, d.ModelPath(g.PKLDir, spec)); err != nil {
		return err
	}

	pred, err := Predict(d, spec, est, X)
	if err != nil {
		return err
	}
	table, err := pred.Frame(d, mapper)
	if err != nil {
		return err
	}
	out := d.OutputPath(g.CSVDir, spec)
	if err := table.WriteCSVFile(out); err != nil {
		return err
	}

	if g.PlotDir != "" {
		if err := g.plot(logger, d, spec, est, X, y, pred); err != nil {
			return err
		}
	}

	logger.Info("model generated",
		log.OperationKey, log.OperationPredict,
		log.FilePathKey, out,
		log.SamplesKey, len(pred.Values),
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)
	return nil
}

// target keeps a missing y a nil interface.
func target(y *mat.Dense) mat.Matrix {
	if y == nil {
		return nil
	}
	return y
}

func (g *Generator) store(logger log.Logger, v interface{}, path string) error {
	if err := model.SaveModel(v, path); err != nil {
		return err
	}
	if logger.Enabled(context.Background(), log.LevelDebug) {
		var size int64
		if info, err := os.Stat(path); err == nil {
			size = info.Size()
		}
		logger.Debug("artifact stored",
			log.OperationKey, log.OperationStore,
			log.FilePathKey, path,
			log.FileSizeKey, size,
		)
	}
	return nil
}

// plot draws the diagnostic matching the dataset's task.
func (g *Generator) plot(logger log.Logger, d *Dataset, spec ModelSpec, est model.Estimator, X, y *mat.Dense, pred *Prediction) error {
	path := filepath.Join(g.PlotDir, d.ArtifactName(spec)+".png")
	title := d.ArtifactName(spec)

	var err error
	switch d.Task {
	case Clustering:
		var centers [][]float64
		if cl, ok := est.(model.Clusterer); ok {
			centers = cl.ClusterCenters()
		}
		err = report.ClusterScatter(path, title, X, pred.Values, centers)
	case Classification:
		if pred.Proba == nil {
			return nil
		}
		err = report.ProbabilityHistogram(path, title, pred.Proba)
	case Regression:
		err = report.PredictedVsActual(path, title, mat.Col(nil, 0, y), pred.Values)
	}
	if err != nil {
		return err
	}
	logger.Debug("plot written",
		log.OperationKey, log.OperationPlot,
		log.FilePathKey, path,
	)
	return nil
}
