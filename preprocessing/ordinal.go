package preprocessing

import (
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/nycprice/core/model"
)

// UnknownCategory is the code given to values not seen during Fit, and to missing values.
const UnknownCategory = -1.0

// OrdinalEncoder maps each category to its index in the sorted list of categories
// seen during Fit.
type OrdinalEncoder struct {
	State *model.StateManager

	// Categories[j] are the sorted categories of input column j.
	Categories [][]string

	lookupOnce sync.Once
	lookup     []map[string]int
}

// NewOrdinalEncoder creates an OrdinalEncoder.
func NewOrdinalEncoder() *OrdinalEncoder {
	return &OrdinalEncoder{State: model.NewStateManager()}
}

// Fit collects the categories of each column. Empty strings are not categories.
func (e *OrdinalEncoder) Fit(cols [][]string) error {
	n, err := checkColumns("OrdinalEncoder.Fit", cols, 0)
	if err != nil {
		return err
	}

	e.Categories = make([][]string, len(cols))
	for j, col := range cols {
		seen := make(map[string]bool)
		for _, v := range col {
			if v != "" {
				seen[v] = true
			}
		}
		cats := make([]string, 0, len(seen))
		for v := range seen {
			cats = append(cats, v)
		}
		sort.Strings(cats)
		e.Categories[j] = cats
	}
	e.lookupOnce = sync.Once{}
	e.lookup = nil

	e.State.MarkFitted(len(cols), n)
	return nil
}

func (e *OrdinalEncoder) buildLookup() {
	e.lookup = make([]map[string]int, len(e.Categories))
	for j, cats := range e.Categories {
		m := make(map[string]int, len(cats))
		for i, c := range cats {
			m[c] = i
		}
		e.lookup[j] = m
	}
}

// Transform encodes every column; unknown or missing values become UnknownCategory.
func (e *OrdinalEncoder) Transform(cols [][]string) (*mat.Dense, error) {
	if err := e.State.RequireFitted("OrdinalEncoder", "Transform"); err != nil {
		return nil, err
	}
	if err := e.State.RequireFeatures("OrdinalEncoder.Transform", len(cols)); err != nil {
		return nil, err
	}
	n, err := checkColumns("OrdinalEncoder.Transform", cols, len(e.Categories))
	if err != nil {
		return nil, err
	}
	e.lookupOnce.Do(e.buildLookup)

	out := mat.NewDense(n, len(cols), nil)
	for j, col := range cols {
		for i, v := range col {
			code, ok := e.lookup[j][v]
			if !ok {
				out.Set(i, j, UnknownCategory)
				continue
			}
			out.Set(i, j, float64(code))
		}
	}
	return out, nil
}

// FeatureNames returns the inputs unchanged: one code per column.
func (e *OrdinalEncoder) FeatureNames(inputs []string) []string {
	return append([]string(nil), inputs...)
}
