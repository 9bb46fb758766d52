package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// Report bundles the scores logged to a tracking run summary.
type Report struct {
	MAE  float64
	R2   float64
	RMSE float64
	MAPE float64
	// MaxError is the worst single-listing miss, in dollars.
	MaxError          float64
	ExplainedVariance float64
}

// Summary returns the report keyed as it appears in a run summary.
func (r Report) Summary() map[string]float64 {
	return map[string]float64{
		"mae":                r.MAE,
		"r2":                 r.R2,
		"rmse":               r.RMSE,
		"mape":               r.MAPE,
		"max_error":          r.MaxError,
		"explained_variance": r.ExplainedVariance,
	}
}

// RegressionReport computes every Report score for n×1 prediction matrices.
// MAPE is left at zero when every true value is zero, and explained variance
// when the true values are constant.
func RegressionReport(yTrue, yPred mat.Matrix) (Report, error) {
	mse, err := MSEMatrix(yTrue, yPred)
	if err != nil {
		return Report{}, err
	}
	yt, yp, err := columnPair("RegressionReport", yTrue, yPred)
	if err != nil {
		return Report{}, err
	}

	r := Report{RMSE: math.Sqrt(mse)}
	if r.MAE, err = MAE(yt, yp); err != nil {
		return Report{}, err
	}
	if r.R2, err = R2Score(yt, yp); err != nil {
		return Report{}, err
	}
	if r.MaxError, err = MaxError(yt, yp); err != nil {
		return Report{}, err
	}
	if mape, err := MAPE(yt, yp); err == nil {
		r.MAPE = mape
	}
	if ev, err := ExplainedVarianceScore(yt, yp); err == nil {
		r.ExplainedVariance = ev
	}
	return r, nil
}
