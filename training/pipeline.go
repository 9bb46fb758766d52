// Package training implements the train_random_forest step: the inference
// pipeline, its export directory and the feature importance chart.
package training

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/nycprice/dataset"
	"github.com/YuminosukeSato/nycprice/metrics"
	"github.com/YuminosukeSato/nycprice/pkg/errors"
	"github.com/YuminosukeSato/nycprice/pkg/log"
	"github.com/YuminosukeSato/nycprice/preprocessing"
	"github.com/YuminosukeSato/nycprice/sklearn/ensemble"
)

// InferencePipeline turns raw listing rows into price predictions.
type InferencePipeline struct {
	Preprocessor *preprocessing.ColumnTransformer
	Forest       *ensemble.RandomForestRegressor
}

// NewInferencePipeline builds the listing preprocessing followed by a random forest.
func NewInferencePipeline(params ensemble.Params, maxTfidf int) *InferencePipeline {
	return &InferencePipeline{
		Preprocessor: preprocessing.NewListingPipeline(maxTfidf),
		Forest:       ensemble.NewRandomForestRegressor(params),
	}
}

// PriceVector parses prices, rejecting missing or non-numeric values.
func PriceVector(prices []string) (*mat.Dense, error) {
	if len(prices) == 0 {
		return nil, errors.NewModelError("training.PriceVector", "no target values", errors.ErrEmptyData)
	}
	y := make([]float64, len(prices))
	for i, p := range prices {
		y[i] = dataset.ParseFloat(p)
		if math.IsNaN(y[i]) {
			return nil, errors.NewValidationError(dataset.ColPrice, "must be numeric", p)
		}
	}
	return mat.NewDense(len(y), 1, y), nil
}

// Fit fits the preprocessing and the forest on X and the target y (n×1).
func (p *InferencePipeline) Fit(X *dataset.Frame, y mat.Matrix) error {
	features, err := p.Preprocessor.FitTransform(X)
	if err != nil {
		return err
	}
	if err := p.Forest.Fit(features, y); err != nil {
		return err
	}
	log.GetLoggerWithName("training").Info("Pipeline fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, X.Len(),
		log.FeaturesKey, len(p.Preprocessor.FeatureNames()),
	)
	return nil
}

// Predict returns one price per row of X as an n×1 matrix.
func (p *InferencePipeline) Predict(X *dataset.Frame) (mat.Matrix, error) {
	features, err := p.Preprocessor.Transform(X)
	if err != nil {
		return nil, err
	}
	return p.Forest.Predict(features)
}

// Score returns the R² on X and y.
func (p *InferencePipeline) Score(X *dataset.Frame, y mat.Matrix) (float64, error) {
	r, err := p.Evaluate(X, y)
	return r.R2, err
}

// Evaluate computes MAE, R², RMSE and MAPE on X and y.
func (p *InferencePipeline) Evaluate(X *dataset.Frame, y mat.Matrix) (metrics.Report, error) {
	pred, err := p.Predict(X)
	if err != nil {
		return metrics.Report{}, err
	}
	return metrics.RegressionReport(y, pred)
}

// GroupedImportances sums the forest importances per input column, so the
// tf-idf terms of name appear as a single entry, last.
func (p *InferencePipeline) GroupedImportances() ([]string, []float64, error) {
	if err := p.Forest.State.RequireFitted("InferencePipeline", "GroupedImportances"); err != nil {
		return nil, nil, err
	}
	imp := p.Forest.FeatureImportances()
	groups := p.Preprocessor.FeatureGroups()
	names := make([]string, len(groups))
	values := make([]float64, len(groups))
	for i, g := range groups {
		if g.End > len(imp) {
			return nil, nil, errors.NewDimensionError("InferencePipeline.GroupedImportances", g.End, len(imp), 1)
		}
		names[i] = g.Name
		for _, v := range imp[g.Start:g.End] {
			values[i] += v
		}
	}
	return names, values, nil
}
