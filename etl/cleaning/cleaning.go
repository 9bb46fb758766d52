// Package cleaning implements the basic_cleaning step: price and location filters
// plus last_review normalisation.
package cleaning

import (
	"math"

	"github.com/YuminosukeSato/nycprice/dataset"
	"github.com/YuminosukeSato/nycprice/pkg/errors"
	"github.com/YuminosukeSato/nycprice/pkg/log"
	"github.com/YuminosukeSato/nycprice/preprocessing"
)

const (
	// ArtifactName is the tracking name of the cleaned sample.
	ArtifactName = "cleaned_data.csv"
	// ArtifactType is the tracking type of the cleaned sample.
	ArtifactType = "cleaned_data"
	// ArtifactDescription describes the cleaned sample artifact.
	ArtifactDescription = "Data after basic cleaning"
)

// Options bound the rows kept by Clean.
type Options struct {
	MinPrice float64
	MaxPrice float64
	Bounds   dataset.Bounds
	// SkipGeoFilter keeps listings outside Bounds.
	SkipGeoFilter bool
}

// DefaultOptions returns the project defaults: prices 10 to 350 inside NYC.
func DefaultOptions() Options {
	return Options{MinPrice: 10, MaxPrice: 350, Bounds: dataset.NYCBounds}
}

// Validate checks the price range and box.
func (o Options) Validate() error {
	if math.IsNaN(o.MinPrice) || math.IsNaN(o.MaxPrice) || o.MinPrice > o.MaxPrice {
		return errors.NewValidationError("etl.min_price", "must not exceed etl.max_price", o.MinPrice)
	}
	if !o.SkipGeoFilter && !o.Bounds.Valid() {
		return errors.NewValidationError("etl.bounds", "invalid bounding box", o.Bounds)
	}
	return nil
}

// Report counts what Clean removed.
type Report struct {
	RowsIn  int
	RowsOut int

	DroppedUnparseablePrice int
	DroppedPriceRange       int
	DroppedOutOfBounds      int
	// InvalidDates counts last_review values that could not be parsed and were cleared.
	InvalidDates int
}

// Dropped returns the number of removed rows.
func (r Report) Dropped() int { return r.RowsIn - r.RowsOut }

// Clean keeps rows with MinPrice <= price <= MaxPrice inside Bounds and rewrites
// last_review as YYYY-MM-DD.
func Clean(f *dataset.Frame, opts Options) (*dataset.Frame, Report, error) {
	rep := Report{RowsIn: f.Len()}
	if err := opts.Validate(); err != nil {
		return nil, rep, err
	}
	required := []string{dataset.ColPrice, dataset.ColLastReview}
	if !opts.SkipGeoFilter {
		required = append(required, dataset.ColLongitude, dataset.ColLatitude)
	}
	var missing []string
	for _, c := range required {
		if !f.Has(c) {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, rep, errors.NewSchemaError("basic_cleaning input", missing, nil)
	}

	out := f.Filter(func(r dataset.Row) bool {
		price := r.Float(dataset.ColPrice)
		switch {
		case math.IsNaN(price):
			rep.DroppedUnparseablePrice++
			return false
		case price < opts.MinPrice || price > opts.MaxPrice:
			rep.DroppedPriceRange++
			return false
		}
		if !opts.SkipGeoFilter && !opts.Bounds.Contains(r.Float(dataset.ColLongitude), r.Float(dataset.ColLatitude)) {
			rep.DroppedOutOfBounds++
			return false
		}
		return true
	})

	reviews, err := out.Column(dataset.ColLastReview)
	if err != nil {
		return nil, rep, err
	}
	normalised := make([]string, len(reviews))
	for i, v := range reviews {
		if v == "" {
			continue
		}
		t, ok := preprocessing.ParseDate(v)
		if !ok {
			rep.InvalidDates++
			continue
		}
		normalised[i] = t.Format("2006-01-02")
	}
	if rep.InvalidDates > 0 {
		errors.Warn(errors.NewDataConversionWarning("string", "date",
			"unparseable last_review values were cleared"))
	}
	if out, err = out.With(dataset.ColLastReview, normalised); err != nil {
		return nil, rep, err
	}

	rep.RowsOut = out.Len()
	log.GetLoggerWithName("cleaning").Info("Basic cleaning done",
		log.RowsInKey, rep.RowsIn,
		log.RowsOutKey, rep.RowsOut,
		"dropped.price_unparseable", rep.DroppedUnparseablePrice,
		"dropped.price_range", rep.DroppedPriceRange,
		"dropped.out_of_bounds", rep.DroppedOutOfBounds,
		"invalid_dates", rep.InvalidDates,
	)
	if rep.RowsOut == 0 {
		return nil, rep, errors.NewModelError("cleaning.Clean", "no rows left after cleaning", errors.ErrEmptyData)
	}
	return out, rep, nil
}
