package preprocessing

import (
	"math"
	"strings"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/nycprice/core/model"
	"github.com/YuminosukeSato/nycprice/dataset"
	"github.com/YuminosukeSato/nycprice/pkg/errors"
)

// NumericEncoder parses numeric columns. Unparseable cells become NaN.
type NumericEncoder struct {
	State *model.StateManager
}

// NewNumericEncoder creates a NumericEncoder.
func NewNumericEncoder() *NumericEncoder {
	return &NumericEncoder{State: model.NewStateManager()}
}

// Fit records the column count.
func (e *NumericEncoder) Fit(cols [][]string) error {
	n, err := checkColumns("NumericEncoder.Fit", cols, 0)
	if err != nil {
		return err
	}
	e.State.MarkFitted(len(cols), n)
	return nil
}

// Transform parses every cell.
func (e *NumericEncoder) Transform(cols [][]string) (*mat.Dense, error) {
	if err := e.State.RequireFitted("NumericEncoder", "Transform"); err != nil {
		return nil, err
	}
	if err := e.State.RequireFeatures("NumericEncoder.Transform", len(cols)); err != nil {
		return nil, err
	}
	n, err := checkColumns("NumericEncoder.Transform", cols, 0)
	if err != nil {
		return nil, err
	}

	out := mat.NewDense(n, len(cols), nil)
	bad := 0
	for j, col := range cols {
		for i, v := range col {
			f := dataset.ParseFloat(v)
			if math.IsNaN(f) && v != "" {
				bad++
			}
			out.Set(i, j, f)
		}
	}
	if bad > 0 {
		errors.Warn(errors.NewDataConversionWarning("string", "float64",
			"unparseable numeric cells were set to NaN"))
	}
	return out, nil
}

// FeatureNames returns the inputs unchanged.
func (e *NumericEncoder) FeatureNames(inputs []string) []string {
	return append([]string(nil), inputs...)
}

// DefaultDateFill is the date given to listings that were never reviewed.
const DefaultDateFill = "2010-01-01"

var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"1/2/2006",
}

// ParseDate parses the date formats found in listing exports.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// DateDelta encodes each date as the number of days before the most recent date seen
// during Fit. Dates after the reference produce negative deltas.
type DateDelta struct {
	State *model.StateManager

	// Fallback replaces dates that cannot be parsed.
	Fallback string

	// Reference[j] is the latest date of column j seen during Fit.
	Reference []time.Time
}

// NewDateDelta creates a DateDelta using fallback for unparseable dates.
func NewDateDelta(fallback string) *DateDelta {
	return &DateDelta{State: model.NewStateManager(), Fallback: fallback}
}

func (d *DateDelta) parse(s string) (time.Time, bool) {
	if t, ok := ParseDate(s); ok {
		return t, true
	}
	return ParseDate(d.Fallback)
}

// Fit finds the latest date of each column.
func (d *DateDelta) Fit(cols [][]string) error {
	n, err := checkColumns("DateDelta.Fit", cols, 0)
	if err != nil {
		return err
	}
	d.Reference = make([]time.Time, len(cols))
	for j, col := range cols {
		found := false
		for _, v := range col {
			t, ok := d.parse(v)
			if !ok {
				continue
			}
			if !found || t.After(d.Reference[j]) {
				d.Reference[j] = t
				found = true
			}
		}
		if !found {
			return errors.NewValueError("DateDelta.Fit", "no parseable date in column")
		}
	}
	d.State.MarkFitted(len(cols), n)
	return nil
}

// Transform returns whole days between each date and the column reference.
func (d *DateDelta) Transform(cols [][]string) (*mat.Dense, error) {
	if err := d.State.RequireFitted("DateDelta", "Transform"); err != nil {
		return nil, err
	}
	if err := d.State.RequireFeatures("DateDelta.Transform", len(cols)); err != nil {
		return nil, err
	}
	n, err := checkColumns("DateDelta.Transform", cols, 0)
	if err != nil {
		return nil, err
	}

	out := mat.NewDense(n, len(cols), nil)
	for j, col := range cols {
		for i, v := range col {
			t, ok := d.parse(v)
			if !ok {
				out.Set(i, j, math.NaN())
				continue
			}
			out.Set(i, j, math.Floor(d.Reference[j].Sub(t).Hours()/24))
		}
	}
	return out, nil
}

// FeatureNames returns the inputs unchanged.
func (d *DateDelta) FeatureNames(inputs []string) []string {
	return append([]string(nil), inputs...)
}
