// Standard attribute keys for fixture generation.
//
// Keys follow a dotted, hierarchical convention ("dataset.name",
// "data.samples") so that log lines from different datasets and models can be
// filtered uniformly.

package log

// Dataset and model context.
const (
	// DatasetKey names the dataset being processed.
	// Examples: "Wheat", "Audit", "Iris", "Auto"
	DatasetKey = "dataset.name"

	// ModelNameKey identifies the fixture being produced, which is the
	// estimator name joined with the dataset name.
	// Examples: "KMeansWheat", "RidgeAudit"
	ModelNameKey = "model.name"

	// EstimatorKey identifies the estimator type.
	// Examples: "KMeans", "LogisticRegressionCV", "DataFrameMapper"
	EstimatorKey = "model.estimator"

	// OperationKey specifies the machine learning operation being performed.
	// Standard values: see the Operation* constants.
	OperationKey = "ml.operation"

	// ComponentKey identifies which package is performing the operation.
	ComponentKey = "ml.component"
)

// Data shape.
const (
	// SamplesKey indicates the number of samples (rows).
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of feature columns.
	FeaturesKey = "data.features"

	// ClassesKey indicates the number of classes seen by a classifier.
	ClassesKey = "data.classes"

	// ColumnsKey lists output column names.
	ColumnsKey = "data.columns"
)

// Artifacts.
const (
	// FilePathKey is the path of a CSV or serialized artifact.
	FilePathKey = "file.path"

	// FileSizeKey is the size of a written artifact in bytes.
	FileSizeKey = "file.size_bytes"
)

// Performance and solver diagnostics.
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// IterationKey records the number of iterations a solver ran.
	IterationKey = "training.iteration"

	// RegularizationKey records the regularization strength picked by a CV estimator.
	RegularizationKey = "hyperparams.regularization"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"
)

// Error context.
const (
	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// ViolationsKey counts failed checks during verification.
	ViolationsKey = "verify.violations"
)

// Standard attribute values for OperationKey.
const (
	OperationLoad      = "load"
	OperationFit       = "fit"
	OperationTransform = "transform"
	OperationPredict   = "predict"
	OperationStore     = "store"
	OperationVerify    = "verify"
	OperationPlot      = "plot"
)
