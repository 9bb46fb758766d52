// Package evaluation implements the test_regression_model step: it scores an
// exported price model on the held-out test split.
package evaluation

import (
	"github.com/YuminosukeSato/nycprice/dataset"
	"github.com/YuminosukeSato/nycprice/metrics"
	"github.com/YuminosukeSato/nycprice/pkg/errors"
	"github.com/YuminosukeSato/nycprice/pkg/log"
	"github.com/YuminosukeSato/nycprice/training"
)

// Result is the outcome of Evaluate.
type Result struct {
	Report  metrics.Report
	Samples int
	// ModelChecksum identifies the evaluated model.gob.
	ModelChecksum string
}

// Summary returns the values logged to the run summary.
func (r *Result) Summary() map[string]float64 {
	return r.Report.Summary()
}

// Evaluate loads the export at modelDir and scores it on the test rows,
// which must still carry the price column.
func Evaluate(modelDir string, test *dataset.Frame) (*Result, error) {
	logger := log.GetLoggerWithName("evaluation")

	pipe, manifest, err := training.Load(modelDir)
	if err != nil {
		return nil, errors.Wrap(err, "load model export")
	}
	prices, X, err := test.Pop(dataset.ColPrice)
	if err != nil {
		return nil, errors.NewSchemaError("test_data", []string{dataset.ColPrice}, nil)
	}
	if err := dataset.Listings.Without(dataset.ColPrice).Validate("test_data", X); err != nil {
		return nil, err
	}
	y, err := training.PriceVector(prices)
	if err != nil {
		return nil, err
	}

	logger.Info("Scoring inference pipeline", log.PhaseKey, log.PhaseValidation, log.SamplesKey, X.Len())
	rep, err := pipe.Evaluate(X, y)
	if err != nil {
		return nil, err
	}
	logger.Info("Test scores",
		log.R2ScoreKey, rep.R2,
		log.MAEKey, rep.MAE,
		log.RMSEKey, rep.RMSE,
		log.MAPEKey, rep.MAPE,
		log.MaxErrorKey, rep.MaxError,
	)
	return &Result{Report: rep, Samples: X.Len(), ModelChecksum: manifest.Checksum}, nil
}

// EvaluateFiles is Evaluate reading the test split from a CSV file.
func EvaluateFiles(modelDir, testCSV string) (*Result, error) {
	test, err := dataset.ReadCSVFile(testCSV)
	if err != nil {
		return nil, err
	}
	return Evaluate(modelDir, test)
}
