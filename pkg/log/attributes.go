// Standard attribute keys for data matrix and boosting operations.
//
// The keys follow a hierarchical naming convention ("data.rows",
// "io.path") so log output can be filtered by category.

package log

// Operation context
const (
	// ComponentKey identifies which package is logging.
	// Examples: "dmatrix", "libsvm", "booster"
	ComponentKey = "ml.component"

	// OperationKey specifies the operation being performed.
	// Standard values are the Operation* constants below.
	OperationKey = "ml.operation"

	// PhaseKey indicates the phase of the model lifecycle.
	PhaseKey = "ml.phase"

	// ModelNameKey identifies the model type.
	ModelNameKey = "model.name"
)

// Data shape
const (
	// RowsKey is the number of rows in a matrix.
	RowsKey = "data.rows"

	// ColsKey is the number of columns (max column index + 1).
	ColsKey = "data.cols"

	// NNZKey is the number of stored (non-zero) entries.
	NNZKey = "data.nnz"

	// HasLabelsKey reports whether labels are attached.
	HasLabelsKey = "data.has_labels"

	// HasWeightsKey reports whether weights are attached.
	HasWeightsKey = "data.has_weights"
)

// I/O
const (
	// PathKey is the file path being read or written.
	PathKey = "io.path"

	// BytesKey is the number of bytes encoded or decoded.
	BytesKey = "io.bytes"

	// CompressionKey names the compression codec selected for a path.
	CompressionKey = "io.compression"

	// LineKey is the 1-based line number of a text input.
	LineKey = "io.line"
)

// Training and evaluation
const (
	// IterationKey records the current boosting round.
	IterationKey = "training.iteration"

	// RoundsKey records the requested number of boosting rounds.
	RoundsKey = "training.rounds"

	// ObjectiveKey names the training objective.
	ObjectiveKey = "training.objective"

	// WatchKey names the watch-list entry being evaluated.
	WatchKey = "eval.watch"

	// MetricKey names the evaluation metric.
	MetricKey = "eval.metric"

	// ScoreKey is the evaluation metric value.
	ScoreKey = "eval.score"

	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// WorkersKey records the number of goroutines used.
	WorkersKey = "perf.workers"

	// PredsKey indicates the number of predictions made.
	PredsKey = "preds.count"
)

// Error context
const (
	// ErrorTypeKey categorizes the error.
	ErrorTypeKey = "error.type"

	// StacktraceKey contains stack trace information for debugging.
	StacktraceKey = "error.stacktrace"
)

// Standard attribute values.
const (
	OperationParse   = "parse"
	OperationEncode  = "encode"
	OperationDecode  = "decode"
	OperationSave    = "save"
	OperationLoad    = "load"
	OperationTrain   = "train"
	OperationPredict = "predict"
	OperationEval    = "eval"

	PhaseTraining  = "training"
	PhaseInference = "inference"
)
