package log

// Attribute keys are dotted so the JSON lines of every step can be filtered
// the same way, e.g. select(."pipeline.step" == "data_check").
const (
	StepKey     = "pipeline.step"
	RunIDKey    = "tracking.run_id"
	ArtifactKey = "tracking.artifact" // name:version, e.g. cleaned_data.csv:v3
	CheckKey    = "data_check.name"

	ComponentKey = "component"
	ModelNameKey = "model.name"
	OperationKey = "ml.operation"
	PhaseKey     = "ml.phase"
	IterationKey = "training.iteration" // index of the tree being grown

	SamplesKey  = "data.samples"
	FeaturesKey = "data.features"
	RowsInKey   = "data.rows_in"
	RowsOutKey  = "data.rows_out"

	DurationMsKey = "perf.duration_ms"
	R2ScoreKey    = "metrics.r2_score"
	MAEKey        = "metrics.mae"
	RMSEKey       = "metrics.rmse"
	MAPEKey       = "metrics.mape"
	MaxErrorKey   = "metrics.max_error"
	OOBKey        = "metrics.oob_score"

	ErrorTypeKey = "error.type"
)

// Keys written by ErrFmtHandler and the zerolog backend for error records.
const (
	ErrAttrKey        = "error"
	StacktraceAttrKey = "stacktrace"
)

const (
	OperationFit     = "fit"
	OperationPredict = "predict"

	PhaseTraining   = "training"
	PhaseValidation = "validation"
)
