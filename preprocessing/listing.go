package preprocessing

import (
	"github.com/YuminosukeSato/nycprice/dataset"
)

// ZeroImputedColumns are numeric listing columns whose missing values become 0.
var ZeroImputedColumns = []string{
	dataset.ColMinimumNights,
	dataset.ColNumberOfReviews,
	dataset.ColReviewsPerMonth,
	dataset.ColCalculatedHostListingsCount,
	dataset.ColAvailability365,
	dataset.ColLongitude,
	dataset.ColLatitude,
}

// NewListingPipeline builds the preprocessing used for price models:
//
//   - room_type: ordinal codes
//   - neighbourhood_group: most-frequent imputation then ordinal codes
//   - numeric columns: zero imputation
//   - last_review: days before the latest review, never-reviewed listings dated 2010-01-01
//   - name: tf-idf over at most maxTfidf terms, English stop words removed
//
// The name features come last so their importances can be summed into one bar.
func NewListingPipeline(maxTfidf int) *ColumnTransformer {
	return NewColumnTransformer(
		NamedTransformer{
			Name:    "ordinal_cat",
			Encoder: NewOrdinalEncoder(),
			Columns: []string{dataset.ColRoomType},
		},
		NamedTransformer{
			Name:    "non_ordinal_cat",
			Encoder: NewChain(NewOrdinalEncoder(), NewSimpleImputer(MostFrequent, "")),
			Columns: []string{dataset.ColNeighbourhoodGroup},
		},
		NamedTransformer{
			Name:    "impute_zero",
			Encoder: NewChain(NewNumericEncoder(), NewSimpleImputer(Constant, "0")),
			Columns: append([]string(nil), ZeroImputedColumns...),
		},
		NamedTransformer{
			Name:    "transform_date",
			Encoder: NewChain(NewDateDelta(DefaultDateFill), NewSimpleImputer(Constant, DefaultDateFill)),
			Columns: []string{dataset.ColLastReview},
		},
		NamedTransformer{
			Name:    "transform_name",
			Encoder: NewChain(NewTfidfVectorizer(maxTfidf, true), NewSimpleImputer(Constant, "")),
			Columns: []string{dataset.ColName},
		},
	)
}
