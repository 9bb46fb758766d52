package preprocessing

import (
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/nycprice/core/model"
	"github.com/YuminosukeSato/nycprice/dataset"
	"github.com/YuminosukeSato/nycprice/pkg/errors"
	"github.com/YuminosukeSato/nycprice/pkg/log"
)

// NamedTransformer applies Encoder to Columns of a frame.
type NamedTransformer struct {
	Name    string
	Encoder Encoder
	Columns []string
}

// FeatureGroup is a contiguous range of output features that came from one input
// column, or from one multi-feature transformer such as tf-idf.
type FeatureGroup struct {
	Name       string
	Start, End int
}

// ColumnTransformer fits each named transformer on its columns and stacks the
// outputs side by side. Columns not named by any transformer are dropped.
type ColumnTransformer struct {
	State        *model.StateManager
	Transformers []NamedTransformer

	Features []string
	Groups   []FeatureGroup
}

// NewColumnTransformer creates a ColumnTransformer.
func NewColumnTransformer(transformers ...NamedTransformer) *ColumnTransformer {
	return &ColumnTransformer{State: model.NewStateManager(), Transformers: transformers}
}

// InputColumns returns every column the transformer reads, in order.
func (ct *ColumnTransformer) InputColumns() []string {
	var cols []string
	for _, t := range ct.Transformers {
		cols = append(cols, t.Columns...)
	}
	return cols
}

func columnsOf(f *dataset.Frame, names []string) ([][]string, error) {
	out := make([][]string, len(names))
	var missing []string
	for j, name := range names {
		col, err := f.Column(name)
		if err != nil {
			missing = append(missing, name)
			continue
		}
		out[j] = col
	}
	if len(missing) > 0 {
		return nil, errors.NewSchemaError("ColumnTransformer input", missing, nil)
	}
	return out, nil
}

// Fit fits every transformer and records feature names and groups.
func (ct *ColumnTransformer) Fit(f *dataset.Frame) error {
	_, err := ct.FitTransform(f)
	return err
}

// FitTransform fits every transformer and returns the stacked features.
func (ct *ColumnTransformer) FitTransform(f *dataset.Frame) (*mat.Dense, error) {
	logger := log.GetLoggerWithName("preprocessing")
	for _, t := range ct.Transformers {
		cols, err := columnsOf(f, t.Columns)
		if err != nil {
			return nil, err
		}
		if err := t.Encoder.Fit(cols); err != nil {
			return nil, errors.Wrapf(err, "fit transformer %s", t.Name)
		}
	}

	ct.Features = nil
	ct.Groups = nil
	for _, t := range ct.Transformers {
		names := t.Encoder.FeatureNames(t.Columns)
		start := len(ct.Features)
		ct.Features = append(ct.Features, names...)
		if len(names) == len(t.Columns) {
			for k, c := range t.Columns {
				ct.Groups = append(ct.Groups, FeatureGroup{Name: c, Start: start + k, End: start + k + 1})
			}
		} else {
			ct.Groups = append(ct.Groups, FeatureGroup{Name: strings.Join(t.Columns, "+"), Start: start, End: len(ct.Features)})
		}
	}
	ct.State.MarkFitted(len(ct.Features), f.Len())

	logger.Debug("Column transformer fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, f.Len(),
		log.FeaturesKey, len(ct.Features),
	)
	return ct.Transform(f)
}

// Transform returns an f.Len()×len(Features) matrix.
func (ct *ColumnTransformer) Transform(f *dataset.Frame) (*mat.Dense, error) {
	if err := ct.State.RequireFitted("ColumnTransformer", "Transform"); err != nil {
		return nil, err
	}
	if f.Len() == 0 {
		return nil, errors.NewModelError("ColumnTransformer.Transform", "empty data", errors.ErrEmptyData)
	}

	out := mat.NewDense(f.Len(), len(ct.Features), nil)
	offset := 0
	for _, t := range ct.Transformers {
		cols, err := columnsOf(f, t.Columns)
		if err != nil {
			return nil, err
		}
		part, err := t.Encoder.Transform(cols)
		if err != nil {
			return nil, errors.Wrapf(err, "transform %s", t.Name)
		}
		_, c := part.Dims()
		out.Slice(0, f.Len(), offset, offset+c).(*mat.Dense).Copy(part)
		offset += c
	}
	if offset != len(ct.Features) {
		return nil, errors.NewDimensionError("ColumnTransformer.Transform", len(ct.Features), offset, 1)
	}
	return out, nil
}

// FeatureNames returns the output feature names.
func (ct *ColumnTransformer) FeatureNames() []string {
	return append([]string(nil), ct.Features...)
}

// FeatureGroups returns the output features grouped by input column.
func (ct *ColumnTransformer) FeatureGroups() []FeatureGroup {
	return append([]FeatureGroup(nil), ct.Groups...)
}
