package dataset

import "math"

// Bounds is an inclusive longitude/latitude box.
type Bounds struct {
	MinLongitude float64 `yaml:"min_longitude" json:"min_longitude"`
	MaxLongitude float64 `yaml:"max_longitude" json:"max_longitude"`
	MinLatitude  float64 `yaml:"min_latitude" json:"min_latitude"`
	MaxLatitude  float64 `yaml:"max_latitude" json:"max_latitude"`
}

// NYCBounds is the box every listing of the sample must fall in.
var NYCBounds = Bounds{
	MinLongitude: -74.25,
	MaxLongitude: -73.50,
	MinLatitude:  40.5,
	MaxLatitude:  41.2,
}

// Contains reports whether (lon, lat) lies inside b. NaN coordinates never do.
func (b Bounds) Contains(lon, lat float64) bool {
	if math.IsNaN(lon) || math.IsNaN(lat) {
		return false
	}
	return lon >= b.MinLongitude && lon <= b.MaxLongitude &&
		lat >= b.MinLatitude && lat <= b.MaxLatitude
}

// Valid reports whether the box is non-empty.
func (b Bounds) Valid() bool {
	return b.MinLongitude <= b.MaxLongitude && b.MinLatitude <= b.MaxLatitude &&
		b.MinLongitude >= -180 && b.MaxLongitude <= 180 &&
		b.MinLatitude >= -90 && b.MaxLatitude <= 90
}
