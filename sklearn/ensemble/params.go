package ensemble

import (
	"math"
	"strings"

	"github.com/YuminosukeSato/nycprice/pkg/errors"
	"github.com/YuminosukeSato/nycprice/sklearn/tree"
)

// Params are the RandomForestRegressor hyperparameters, named as in scikit-learn.
type Params struct {
	NEstimators         int     `json:"n_estimators" yaml:"n_estimators"`
	Criterion           string  `json:"criterion" yaml:"criterion"`
	MaxDepth            int     `json:"max_depth" yaml:"max_depth"`
	MinSamplesSplit     int     `json:"min_samples_split" yaml:"min_samples_split"`
	MinSamplesLeaf      int     `json:"min_samples_leaf" yaml:"min_samples_leaf"`
	MinImpurityDecrease float64 `json:"min_impurity_decrease" yaml:"min_impurity_decrease"`
	// MaxFeatures is "sqrt", "log2", a fraction in (0, 1] or a feature count.
	MaxFeatures any   `json:"max_features" yaml:"max_features"`
	Bootstrap   bool  `json:"bootstrap" yaml:"bootstrap"`
	OOBScore    bool  `json:"oob_score" yaml:"oob_score"`
	RandomState int64 `json:"random_state" yaml:"random_state"`
	// NJobs is the number of trees fitted concurrently; -1 uses every core.
	NJobs int `json:"n_jobs" yaml:"n_jobs"`
}

// DefaultParams returns scikit-learn's RandomForestRegressor defaults with a fixed
// random_state.
func DefaultParams() Params {
	return Params{
		NEstimators:     100,
		Criterion:       tree.SquaredError,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		MaxFeatures:     1.0,
		Bootstrap:       true,
		RandomState:     0,
		NJobs:           1,
	}
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	switch {
	case p.NEstimators < 1:
		return errors.NewValidationError("n_estimators", "must be >= 1", p.NEstimators)
	case p.Criterion != tree.SquaredError && p.Criterion != tree.AbsoluteError:
		return errors.NewValidationError("criterion", "must be squared_error or absolute_error", p.Criterion)
	case p.MaxDepth < 0:
		return errors.NewValidationError("max_depth", "must be >= 0", p.MaxDepth)
	case p.MinSamplesSplit < 2:
		return errors.NewValidationError("min_samples_split", "must be >= 2", p.MinSamplesSplit)
	case p.MinSamplesLeaf < 1:
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", p.MinSamplesLeaf)
	case p.OOBScore && !p.Bootstrap:
		return errors.NewValidationError("oob_score", "only available if bootstrap is true", p.OOBScore)
	}
	_, err := p.ResolveMaxFeatures(1)
	return err
}

// ResolveMaxFeatures returns the number of features drawn per split for nFeatures.
func (p Params) ResolveMaxFeatures(nFeatures int) (int, error) {
	var k int
	switch v := p.MaxFeatures.(type) {
	case nil:
		k = nFeatures
	case string:
		switch strings.ToLower(v) {
		case "sqrt":
			k = int(math.Sqrt(float64(nFeatures)))
		case "log2":
			k = int(math.Log2(float64(nFeatures)))
		case "auto", "none", "":
			k = nFeatures
		default:
			return 0, errors.NewValidationError("max_features", "must be sqrt, log2, a fraction or a count", v)
		}
	case float64:
		if v <= 0 || v > 1 {
			return 0, errors.NewValidationError("max_features", "fraction must be in (0, 1]", v)
		}
		k = int(v * float64(nFeatures))
	case int:
		if v < 1 {
			return 0, errors.NewValidationError("max_features", "count must be >= 1", v)
		}
		k = v
	default:
		return 0, errors.NewValidationError("max_features", "unsupported type", v)
	}
	if k < 1 {
		k = 1
	}
	if k > nFeatures {
		k = nFeatures
	}
	return k, nil
}

// ParamsFromMap decodes an rf_config mapping on top of DefaultParams. The legacy
// criterion names "mse" and "mae" are accepted.
func ParamsFromMap(m map[string]any) (Params, error) {
	p := DefaultParams()
	for k, v := range m {
		var ok bool
		switch k {
		case "n_estimators":
			p.NEstimators, ok = toInt(v)
		case "criterion":
			var s string
			s, ok = v.(string)
			switch s {
			case "mse":
				s = tree.SquaredError
			case "mae":
				s = tree.AbsoluteError
			}
			p.Criterion = s
		case "max_depth":
			if v == nil {
				p.MaxDepth, ok = 0, true
			} else {
				p.MaxDepth, ok = toInt(v)
			}
		case "min_samples_split":
			p.MinSamplesSplit, ok = toInt(v)
		case "min_samples_leaf":
			p.MinSamplesLeaf, ok = toInt(v)
		case "min_impurity_decrease":
			p.MinImpurityDecrease, ok = toFloat(v)
		case "max_features":
			ok = true
			switch n := v.(type) {
			case int64:
				p.MaxFeatures = int(n)
			case float64:
				if n > 1 && n == math.Trunc(n) {
					p.MaxFeatures = int(n)
				} else {
					p.MaxFeatures = n
				}
			default:
				p.MaxFeatures = v
			}
		case "bootstrap":
			p.Bootstrap, ok = v.(bool)
		case "oob_score":
			p.OOBScore, ok = v.(bool)
		case "random_state":
			var n int
			n, ok = toInt(v)
			p.RandomState = int64(n)
		case "n_jobs":
			if v == nil {
				p.NJobs, ok = 1, true
			} else {
				p.NJobs, ok = toInt(v)
			}
		default:
			return p, errors.NewValidationError(k, "unknown random forest parameter", v)
		}
		if !ok {
			return p, errors.NewValidationError(k, "wrong type", v)
		}
	}
	return p, p.Validate()
}

// Map returns the parameters keyed as in scikit-learn, the inverse of ParamsFromMap.
func (p Params) Map() map[string]any {
	return map[string]any{
		"n_estimators":          p.NEstimators,
		"criterion":             p.Criterion,
		"max_depth":             p.MaxDepth,
		"min_samples_split":     p.MinSamplesSplit,
		"min_samples_leaf":      p.MinSamplesLeaf,
		"min_impurity_decrease": p.MinImpurityDecrease,
		"max_features":          p.MaxFeatures,
		"bootstrap":             p.Bootstrap,
		"oob_score":             p.OOBScore,
		"random_state":          p.RandomState,
		"n_jobs":                p.NJobs,
	}
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n == math.Trunc(n) {
			return int(n), true
		}
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
