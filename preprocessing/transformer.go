// Package preprocessing turns listing columns into the dense feature matrix fed to the
// random forest.
//
// Transformers work column-major on string data, cols[j][i] being row i of input
// column j, because every input column arrives from CSV as text and missing values
// are empty strings.
package preprocessing

import (
	"encoding/gob"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/nycprice/pkg/errors"
)

// StringTransformer maps string columns to string columns, e.g. an imputer.
type StringTransformer interface {
	Fit(cols [][]string) error
	Transform(cols [][]string) ([][]string, error)
}

// Encoder maps string columns to numeric features.
type Encoder interface {
	Fit(cols [][]string) error
	Transform(cols [][]string) (*mat.Dense, error)
	// FeatureNames names the output features given the input column names.
	FeatureNames(inputs []string) []string
}

func init() {
	gob.Register(&SimpleImputer{})
	gob.Register(&OrdinalEncoder{})
	gob.Register(&NumericEncoder{})
	gob.Register(&DateDelta{})
	gob.Register(&TfidfVectorizer{})
	gob.Register(&Chain{})
}

func checkColumns(op string, cols [][]string, want int) (int, error) {
	if want > 0 && len(cols) != want {
		return 0, errors.NewDimensionError(op, want, len(cols), 1)
	}
	if len(cols) == 0 || len(cols[0]) == 0 {
		return 0, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	n := len(cols[0])
	for _, c := range cols[1:] {
		if len(c) != n {
			return 0, errors.NewDimensionError(op, n, len(c), 0)
		}
	}
	return n, nil
}

// Chain runs string stages in order and hands the result to a final encoder, like
// scikit-learn's make_pipeline(imputer, encoder).
type Chain struct {
	Stages []StringTransformer
	Final  Encoder
}

// NewChain returns a Chain that applies stages then final.
//
//	preprocessing.NewChain(preprocessing.NewOrdinalEncoder(),
//	    preprocessing.NewSimpleImputer(preprocessing.MostFrequent, ""))
func NewChain(final Encoder, stages ...StringTransformer) *Chain {
	return &Chain{Stages: stages, Final: final}
}

// Fit fits each stage on the output of the previous one.
func (c *Chain) Fit(cols [][]string) error {
	cur := cols
	for _, s := range c.Stages {
		if err := s.Fit(cur); err != nil {
			return err
		}
		var err error
		if cur, err = s.Transform(cur); err != nil {
			return err
		}
	}
	return c.Final.Fit(cur)
}

// Transform runs every stage then the final encoder.
func (c *Chain) Transform(cols [][]string) (*mat.Dense, error) {
	cur := cols
	for _, s := range c.Stages {
		var err error
		if cur, err = s.Transform(cur); err != nil {
			return nil, err
		}
	}
	return c.Final.Transform(cur)
}

// FeatureNames delegates to the final encoder.
func (c *Chain) FeatureNames(inputs []string) []string {
	return c.Final.FeatureNames(inputs)
}
