package dataset

import (
	"github.com/YuminosukeSato/nycprice/pkg/errors"
)

// Kind classifies a column for preprocessing.
type Kind int

const (
	KindID Kind = iota
	KindNumeric
	KindCategorical
	KindDate
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindID:
		return "id"
	case KindNumeric:
		return "double"
	case KindCategorical:
		return "string"
	case KindDate:
		return "date"
	case KindText:
		return "string"
	default:
		return "unknown"
	}
}

// Field is one column of a schema.
type Field struct {
	Name string
	Kind Kind
}

// Schema is an ordered list of fields.
type Schema struct {
	Fields []Field
}

// Names returns the field names in order.
func (s Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Kind returns the kind of field name.
func (s Schema) Kind(name string) (Kind, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f.Kind, true
		}
	}
	return 0, false
}

// Without returns the schema minus the named fields.
func (s Schema) Without(names ...string) Schema {
	skip := make(map[string]bool, len(names))
	for _, n := range names {
		skip[n] = true
	}
	var out Schema
	for _, f := range s.Fields {
		if !skip[f.Name] {
			out.Fields = append(out.Fields, f)
		}
	}
	return out
}

// Validate returns a SchemaError naming every field that frame lacks.
func (s Schema) Validate(dataset string, frame *Frame) error {
	var missing []string
	for _, f := range s.Fields {
		if !frame.Has(f.Name) {
			missing = append(missing, f.Name)
		}
	}
	if len(missing) > 0 {
		return errors.NewSchemaError(dataset, missing, nil)
	}
	return nil
}

// ValidateStrict also rejects columns the schema does not know about.
func (s Schema) ValidateStrict(dataset string, frame *Frame) error {
	known := make(map[string]bool, len(s.Fields))
	var missing, unknown []string
	for _, f := range s.Fields {
		known[f.Name] = true
		if !frame.Has(f.Name) {
			missing = append(missing, f.Name)
		}
	}
	for _, c := range frame.Columns() {
		if !known[c] {
			unknown = append(unknown, c)
		}
	}
	if len(missing) > 0 || len(unknown) > 0 {
		return errors.NewSchemaError(dataset, missing, unknown)
	}
	return nil
}

// Column names of the listings sample.
const (
	ColID                          = "id"
	ColName                        = "name"
	ColHostID                      = "host_id"
	ColHostName                    = "host_name"
	ColNeighbourhoodGroup          = "neighbourhood_group"
	ColNeighbourhood               = "neighbourhood"
	ColLatitude                    = "latitude"
	ColLongitude                   = "longitude"
	ColRoomType                    = "room_type"
	ColPrice                       = "price"
	ColMinimumNights               = "minimum_nights"
	ColNumberOfReviews             = "number_of_reviews"
	ColLastReview                  = "last_review"
	ColReviewsPerMonth             = "reviews_per_month"
	ColCalculatedHostListingsCount = "calculated_host_listings_count"
	ColAvailability365             = "availability_365"
)

// Listings is the schema of the NYC Airbnb listings sample, in file order.
var Listings = Schema{Fields: []Field{
	{ColID, KindID},
	{ColName, KindText},
	{ColHostID, KindID},
	{ColHostName, KindText},
	{ColNeighbourhoodGroup, KindCategorical},
	{ColNeighbourhood, KindCategorical},
	{ColLatitude, KindNumeric},
	{ColLongitude, KindNumeric},
	{ColRoomType, KindCategorical},
	{ColPrice, KindNumeric},
	{ColMinimumNights, KindNumeric},
	{ColNumberOfReviews, KindNumeric},
	{ColLastReview, KindDate},
	{ColReviewsPerMonth, KindNumeric},
	{ColCalculatedHostListingsCount, KindNumeric},
	{ColAvailability365, KindNumeric},
}}

// RoomTypes are the known property types.
var RoomTypes = []string{"Entire home/apt", "Private room", "Shared room", "Hotel room"}

// NeighbourhoodGroups are the five NYC boroughs.
var NeighbourhoodGroups = []string{"Bronx", "Brooklyn", "Manhattan", "Queens", "Staten Island"}
