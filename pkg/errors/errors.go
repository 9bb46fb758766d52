// Package errors provides the error and warning types shared by every stage of the
// price pipeline. Constructors attach a stack trace through cockroachdb/errors so that
// the slog ErrFmtHandler in pkg/log can print where a failure originated.
package errors

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	Global warning handling
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = stderrWarnings(os.Stderr)
	// set by pkg/log to avoid an import cycle
	zerologWarnFunc func(warning error)
)

// stderrWarnings writes warnings as zerolog JSON lines to w. It serves until
// pkg/log installs its provider-backed sink.
func stderrWarnings(w io.Writer) func(error) {
	logger := zerolog.New(w).With().Timestamp().Str("component", "warnings").Logger()
	return func(warning error) {
		ev := logger.Warn()
		if m, ok := warning.(zerolog.LogObjectMarshaler); ok {
			ev = ev.EmbedObject(m)
		}
		ev.Msg(warning.Error())
	}
}

// SetWarningHandler replaces the fallback warning handler.
//
// Example:
//
//	errors.SetWarningHandler(func(w error) {
//	    // drop warnings
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc installs the structured warning sink.
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn emits a warning. The zerolog sink wins when it is installed.
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	Warnings
//
// ===========================================================================

// DataConversionWarning is raised when a value had to be coerced or discarded
// while parsing a dataset column.
type DataConversionWarning struct {
	FromType string
	ToType   string
	Reason   string
}

func (w *DataConversionWarning) Error() string {
	return fmt.Sprintf("data converted from %s to %s. Reason: %s", w.FromType, w.ToType, w.Reason)
}

// MarshalZerologObject adds the warning fields to a zerolog event.
func (w *DataConversionWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("from_type", w.FromType).
		Str("to_type", w.ToType).
		Str("reason", w.Reason).
		Str("type", "DataConversionWarning")
}

// NewDataConversionWarning creates a DataConversionWarning.
func NewDataConversionWarning(from, to, reason string) *DataConversionWarning {
	return &DataConversionWarning{FromType: from, ToType: to, Reason: reason}
}

// UndefinedMetricWarning is raised when a metric cannot be computed and a fallback
// value is returned instead (for example R² on a constant target).
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// MarshalZerologObject adds the warning fields to a zerolog event.
func (w *UndefinedMetricWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("metric", w.Metric).
		Str("condition", w.Condition).
		Float64("result", w.Result).
		Str("type", "UndefinedMetricWarning")
}

// NewUndefinedMetricWarning creates an UndefinedMetricWarning.
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// ===========================================================================
//
//	Model errors
//
// ===========================================================================

// NotFittedError is returned when Predict or Transform is called before Fit.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("nycprice: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError creates a NotFittedError with a stack trace.
func NewNotFittedError(modelName, method string) error {
	err := &NotFittedError{ModelName: modelName, Method: method}
	return errors.WithStack(err)
}

// DimensionError is returned when input dimensions do not match what was expected.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("nycprice: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, e.axisName(), e.Expected, e.Got)
}

func (e *DimensionError) axisName() string {
	if e.Axis == 0 {
		return "rows"
	}
	return "features"
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", e.axisName()).
		Str("type", "DimensionError")
}

// NewDimensionError creates a DimensionError with a stack trace.
func NewDimensionError(op string, expected, got, axis int) error {
	err := &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
	return errors.WithStack(err)
}

// ValidationError is returned when a parameter fails validation.
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("nycprice: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError creates a ValidationError with a stack trace.
func NewValidationError(param, reason string, value interface{}) error {
	err := &ValidationError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ValueError is returned when an argument has an unsuitable value.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("nycprice: %s: %s", e.Op, e.Message)
}

// NewValueError creates a ValueError with a stack trace.
func NewValueError(op, message string) error {
	err := &ValueError{Op: op, Message: message}
	return errors.WithStack(err)
}

// ModelError is a general model failure that may wrap a cause.
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("nycprice: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("nycprice: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError creates a ModelError with a stack trace.
func NewModelError(op, kind string, err error) error {
	modelErr := &ModelError{Op: op, Kind: kind, Err: err}
	return errors.WithStack(modelErr)
}

// ===========================================================================
//
//	Pipeline errors
//
// ===========================================================================

// SchemaError is returned when a dataset does not carry the expected columns.
type SchemaError struct {
	Dataset string
	Missing []string
	Unknown []string
}

func (e *SchemaError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "missing columns ["+strings.Join(e.Missing, ", ")+"]")
	}
	if len(e.Unknown) > 0 {
		parts = append(parts, "unexpected columns ["+strings.Join(e.Unknown, ", ")+"]")
	}
	return fmt.Sprintf("nycprice: schema mismatch in %s: %s", e.Dataset, strings.Join(parts, "; "))
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *SchemaError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("dataset", e.Dataset).
		Strs("missing", e.Missing).
		Strs("unknown", e.Unknown).
		Str("type", "SchemaError")
}

// NewSchemaError creates a SchemaError with a stack trace.
func NewSchemaError(dataset string, missing, unknown []string) error {
	return errors.WithStack(&SchemaError{Dataset: dataset, Missing: missing, Unknown: unknown})
}

// CheckFailure describes one failed data check.
type CheckFailure struct {
	Check  string
	Detail string
}

// CheckFailedError is returned by the data_check step when one or more checks fail.
type CheckFailedError struct {
	Failures []CheckFailure
}

func (e *CheckFailedError) Error() string {
	msgs := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		msgs[i] = f.Check + ": " + f.Detail
	}
	return fmt.Sprintf("nycprice: %d data check(s) failed: %s", len(e.Failures), strings.Join(msgs, "; "))
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *CheckFailedError) MarshalZerologObject(event *zerolog.Event) {
	names := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		names[i] = f.Check
	}
	event.Strs("failed_checks", names).
		Str("type", "CheckFailedError")
}

// NewCheckFailedError creates a CheckFailedError with a stack trace.
func NewCheckFailedError(failures []CheckFailure) error {
	return errors.WithStack(&CheckFailedError{Failures: failures})
}

// ArtifactNotFoundError is returned when a tracking reference cannot be resolved.
type ArtifactNotFoundError struct {
	Name    string
	Version string
}

func (e *ArtifactNotFoundError) Error() string {
	return fmt.Sprintf("nycprice: artifact %s:%s not found", e.Name, e.Version)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *ArtifactNotFoundError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("artifact", e.Name).
		Str("version", e.Version).
		Str("type", "ArtifactNotFoundError")
}

// NewArtifactNotFoundError creates an ArtifactNotFoundError with a stack trace.
func NewArtifactNotFoundError(name, version string) error {
	return errors.WithStack(&ArtifactNotFoundError{Name: name, Version: version})
}

// StepError wraps the failure of a single pipeline step.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("nycprice: step %s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// NewStepError creates a StepError. The cause keeps its own stack trace.
func NewStepError(step string, err error) error {
	return &StepError{Step: step, Err: err}
}

// ===========================================================================
//
//	cockroachdb/errors wrappers
//
// ===========================================================================

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap annotates err with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf annotates err with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates an error with a stack trace.
func New(message string) error {
	return errors.New(message)
}

// Newf creates a formatted error with a stack trace.
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack attaches a stack trace to err.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	Sentinel errors
//
// ===========================================================================

var (
	// ErrEmptyData is returned for empty inputs.
	ErrEmptyData = New("empty data")

	// ErrUnknownStep is returned when a pipeline step name is not recognised.
	ErrUnknownStep = New("unknown pipeline step")
)
