package preprocessing

import (
	"sort"

	"github.com/YuminosukeSato/nycprice/core/model"
	"github.com/YuminosukeSato/nycprice/pkg/errors"
)

// ImputeStrategy selects how SimpleImputer fills missing values.
type ImputeStrategy string

const (
	// MostFrequent fills with the most common value of the column; ties go to the
	// smallest value.
	MostFrequent ImputeStrategy = "most_frequent"
	// Constant fills with FillValue.
	Constant ImputeStrategy = "constant"
)

// SimpleImputer replaces empty strings column by column.
type SimpleImputer struct {
	State *model.StateManager

	Strategy  ImputeStrategy
	FillValue string

	// Statistics holds the fill value learned for each column.
	Statistics []string
}

// NewSimpleImputer creates an imputer. fillValue is only used by Constant.
func NewSimpleImputer(strategy ImputeStrategy, fillValue string) *SimpleImputer {
	return &SimpleImputer{
		State:     model.NewStateManager(),
		Strategy:  strategy,
		FillValue: fillValue,
	}
}

// Fit learns the fill value of each column.
func (s *SimpleImputer) Fit(cols [][]string) error {
	n, err := checkColumns("SimpleImputer.Fit", cols, 0)
	if err != nil {
		return err
	}

	s.Statistics = make([]string, len(cols))
	for j, col := range cols {
		switch s.Strategy {
		case Constant:
			s.Statistics[j] = s.FillValue
		case MostFrequent:
			mode, ok := mostFrequent(col)
			if !ok {
				return errors.NewValueError("SimpleImputer.Fit",
					"most_frequent strategy needs at least one non-missing value per column")
			}
			s.Statistics[j] = mode
		default:
			return errors.NewValidationError("strategy", "must be most_frequent or constant", s.Strategy)
		}
	}

	s.State.MarkFitted(len(cols), n)
	return nil
}

// Transform fills empty cells with the learned statistics.
func (s *SimpleImputer) Transform(cols [][]string) ([][]string, error) {
	if err := s.State.RequireFitted("SimpleImputer", "Transform"); err != nil {
		return nil, err
	}
	if err := s.State.RequireFeatures("SimpleImputer.Transform", len(cols)); err != nil {
		return nil, err
	}

	out := make([][]string, len(cols))
	for j, col := range cols {
		filled := make([]string, len(col))
		for i, v := range col {
			if v == "" {
				v = s.Statistics[j]
			}
			filled[i] = v
		}
		out[j] = filled
	}
	return out, nil
}

// GetParams returns the imputer parameters.
func (s *SimpleImputer) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"strategy":   string(s.Strategy),
		"fill_value": s.FillValue,
	}
}

func mostFrequent(col []string) (string, bool) {
	counts := make(map[string]int)
	for _, v := range col {
		if v != "" {
			counts[v]++
		}
	}
	if len(counts) == 0 {
		return "", false
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best := keys[0]
	for _, k := range keys[1:] {
		if counts[k] > counts[best] {
			best = k
		}
	}
	return best, true
}
