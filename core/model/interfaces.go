// Package model holds the contracts shared by the price regressors and the
// preprocessing transformers: fitted-state tracking, the export manifest and
// checksummed gob persistence.
package model

import "gonum.org/v1/gonum/mat"

// Regressor is a supervised model mapping a numeric feature matrix to one
// price per row. Score reports R² against y.
type Regressor interface {
	Fit(X, y mat.Matrix) error
	Predict(X mat.Matrix) (mat.Matrix, error)
	Score(X, y mat.Matrix) (float64, error)
}

// Tunable exposes hyperparameters under the keys used in the modeling section
// of the configuration, e.g. "n_estimators" or "max_features".
type Tunable interface {
	GetParams() map[string]interface{}
	SetParams(params map[string]interface{}) error
}

// ImportanceReporter is implemented by tree models; one value per input column.
type ImportanceReporter interface {
	GetFeatureImportances() []float64
}
