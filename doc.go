// Package fixtures generates the reference artifacts used as golden fixtures
// for a model export format: fitted DataFrameMappers, fitted scikit-learn
// style models and their predictions on the Wheat, Audit, Iris and Auto
// datasets.
//
// # Quick Start
//
// Put Wheat.csv, Audit.csv, Iris.csv and Auto.csv into csv/ and run
//
//	go run ./cmd/fixturegen generate
//	go run ./cmd/fixturegen verify --refit
//
// generate writes pkl/<Dataset>.pkl (mapper), pkl/<Model><Dataset>.pkl
// (model) and csv/<Model><Dataset>.csv (predictions). Artifacts are gzip
// compressed gob streams readable with core/model.LoadModel.
//
// # Configuration
//
// Settings are read from an optional TOML file (-c fixturegen.toml):
//
//	csv_dir    = "csv"
//	pkl_dir    = "pkl"
//	plot_dir   = "plots"     # optional diagnostic plots
//	datasets   = ["Iris"]    # default: all
//	jobs       = 2           # datasets generated concurrently
//	log_level  = "info"
//	log_format = "console"
//
// Command line flags overwrite the file.
//
// # Packages
//
//   - dataframe: typed in-memory tables with CSV input and output
//   - preprocessing: scalers, encoders, imputer, binarizer and DataFrameMapper
//   - sklearn/...: cluster, decomposition, ensemble, linear_model,
//     naive_bayes, tree and model_selection
//   - metrics: accuracy and regression scores used for model selection
//   - core/model: estimator interfaces, BaseEstimator and persistence
//   - core/parallel: worker fan-out
//   - fixture: dataset catalog, generator and verifier
//   - report: diagnostic plots
//   - config, pkg/errors, pkg/log: configuration, errors and logging
package fixtures
