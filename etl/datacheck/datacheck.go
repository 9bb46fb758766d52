// Package datacheck implements the data_check step: deterministic and statistical
// tests run against the cleaned sample and the raw reference sample.
package datacheck

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/nycprice/dataset"
	"github.com/YuminosukeSato/nycprice/pkg/errors"
	"github.com/YuminosukeSato/nycprice/pkg/log"
	"github.com/YuminosukeSato/nycprice/sklearn/drift"
)

// Check names.
const (
	CheckColumnNames         = "column_names"
	CheckNeighbourhoodNames  = "neighbourhood_names"
	CheckRoomTypes           = "room_types"
	CheckProperBoundaries    = "proper_boundaries"
	CheckSimilarNeighDistrib = "similar_neigh_distrib"
	CheckRowCount            = "row_count"
	CheckPriceRange          = "price_range"
	CheckPriceOutliers       = "price_outliers"
)

// Options parametrise the checks.
type Options struct {
	KLThreshold float64
	MinRows     int
	MaxRows     int
	MinPrice    float64
	MaxPrice    float64
	Bounds      dataset.Bounds
	// OutlierTolerance is the largest accepted fraction of prices above Q3 + 3·IQR.
	OutlierTolerance float64
}

// DefaultOptions mirrors the project configuration.
func DefaultOptions() Options {
	return Options{
		KLThreshold:      0.2,
		MinRows:          15000,
		MaxRows:          1000000,
		MinPrice:         10,
		MaxPrice:         350,
		Bounds:           dataset.NYCBounds,
		OutlierTolerance: 0.05,
	}
}

// Result is the outcome of one check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Value is the measured quantity when the check has one, e.g. the KL divergence.
	Value float64
}

// Report collects check results in execution order.
type Report struct {
	Results []Result
}

// Passed reports whether every check passed.
func (r Report) Passed() bool {
	for _, res := range r.Results {
		if !res.Passed {
			return false
		}
	}
	return true
}

// Failures returns the failed checks.
func (r Report) Failures() []errors.CheckFailure {
	var out []errors.CheckFailure
	for _, res := range r.Results {
		if !res.Passed {
			out = append(out, errors.CheckFailure{Check: res.Name, Detail: res.Detail})
		}
	}
	return out
}

// Err returns a CheckFailedError listing the failures, or nil.
func (r Report) Err() error {
	if f := r.Failures(); len(f) > 0 {
		return errors.NewCheckFailedError(f)
	}
	return nil
}

// Check inspects the cleaned data against the reference sample.
type Check struct {
	Name string
	Run  func(data, ref *dataset.Frame, opts Options) Result
}

// Checks are run in this order by Run.
var Checks = []Check{
	{CheckColumnNames, checkColumnNames},
	{CheckNeighbourhoodNames, checkNeighbourhoodNames},
	{CheckRoomTypes, checkRoomTypes},
	{CheckProperBoundaries, checkProperBoundaries},
	{CheckSimilarNeighDistrib, checkSimilarNeighDistrib},
	{CheckRowCount, checkRowCount},
	{CheckPriceRange, checkPriceRange},
	{CheckPriceOutliers, checkPriceOutliers},
}

// Run executes every check and logs each outcome.
func Run(data, ref *dataset.Frame, opts Options) Report {
	logger := log.GetLoggerWithName("data_check")
	var rep Report
	for _, c := range Checks {
		res := c.Run(data, ref, opts)
		res.Name = c.Name
		rep.Results = append(rep.Results, res)
		if res.Passed {
			logger.Info("Data check passed", log.CheckKey, c.Name)
		} else {
			logger.Warn("Data check failed", log.CheckKey, c.Name, "detail", res.Detail)
		}
	}
	return rep
}

func fail(format string, args ...any) Result {
	return Result{Detail: fmt.Sprintf(format, args...)}
}

func pass() Result { return Result{Passed: true} }

func checkColumnNames(data, _ *dataset.Frame, _ Options) Result {
	got := data.Columns()
	want := dataset.Listings.Names()
	if len(got) != len(want) {
		return fail("expected %d columns, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			return fail("column %d is %q, expected %q", i, got[i], want[i])
		}
	}
	return pass()
}

func checkKnownValues(data *dataset.Frame, column string, known []string) Result {
	values, err := data.Column(column)
	if err != nil {
		return fail("%v", err)
	}
	allowed := make(map[string]bool, len(known))
	for _, k := range known {
		allowed[k] = true
	}
	unknown := make(map[string]bool)
	for _, v := range values {
		if !allowed[v] {
			unknown[v] = true
		}
	}
	if len(unknown) > 0 {
		names := make([]string, 0, len(unknown))
		for v := range unknown {
			names = append(names, fmt.Sprintf("%q", v))
		}
		sort.Strings(names)
		return fail("unknown %s values: %s", column, strings.Join(names, ", "))
	}
	return pass()
}

func checkNeighbourhoodNames(data, _ *dataset.Frame, _ Options) Result {
	return checkKnownValues(data, dataset.ColNeighbourhoodGroup, dataset.NeighbourhoodGroups)
}

func checkRoomTypes(data, _ *dataset.Frame, _ Options) Result {
	return checkKnownValues(data, dataset.ColRoomType, dataset.RoomTypes)
}

func checkProperBoundaries(data, _ *dataset.Frame, opts Options) Result {
	lon, err := data.Float(dataset.ColLongitude)
	if err != nil {
		return fail("%v", err)
	}
	lat, err := data.Float(dataset.ColLatitude)
	if err != nil {
		return fail("%v", err)
	}
	outside := 0
	for i := range lon {
		if !opts.Bounds.Contains(lon[i], lat[i]) {
			outside++
		}
	}
	if outside > 0 {
		r := fail("%d listings outside the bounding box", outside)
		r.Value = float64(outside)
		return r
	}
	return pass()
}

func checkSimilarNeighDistrib(data, ref *dataset.Frame, opts Options) Result {
	if ref == nil {
		return fail("no reference sample")
	}
	sample, err := data.Column(dataset.ColNeighbourhoodGroup)
	if err != nil {
		return fail("%v", err)
	}
	reference, err := ref.Column(dataset.ColNeighbourhoodGroup)
	if err != nil {
		return fail("reference: %v", err)
	}
	res, err := drift.NewKLDetector(drift.WithKLThreshold(opts.KLThreshold)).Detect(sample, reference)
	if err != nil {
		return fail("%v", err)
	}
	if res.DriftDetected {
		r := fail("KL divergence %.4f >= threshold %.4f", res.Divergence, res.Threshold)
		r.Value = res.Divergence
		return r
	}
	return Result{Passed: true, Value: res.Divergence}
}

func checkRowCount(data, _ *dataset.Frame, opts Options) Result {
	n := data.Len()
	if n <= opts.MinRows || n >= opts.MaxRows {
		r := fail("%d rows, expected more than %d and fewer than %d", n, opts.MinRows, opts.MaxRows)
		r.Value = float64(n)
		return r
	}
	return Result{Passed: true, Value: float64(n)}
}

func checkPriceRange(data, _ *dataset.Frame, opts Options) Result {
	prices, err := data.Float(dataset.ColPrice)
	if err != nil {
		return fail("%v", err)
	}
	bad := 0
	for _, p := range prices {
		if math.IsNaN(p) || p < opts.MinPrice || p > opts.MaxPrice {
			bad++
		}
	}
	if bad > 0 {
		r := fail("%d prices outside [%g, %g]", bad, opts.MinPrice, opts.MaxPrice)
		r.Value = float64(bad)
		return r
	}
	return pass()
}

func checkPriceOutliers(data, _ *dataset.Frame, opts Options) Result {
	prices, err := data.Float(dataset.ColPrice)
	if err != nil {
		return fail("%v", err)
	}
	sorted := make([]float64, 0, len(prices))
	for _, p := range prices {
		if !math.IsNaN(p) {
			sorted = append(sorted, p)
		}
	}
	if len(sorted) == 0 {
		return fail("no numeric prices")
	}
	sort.Float64s(sorted)
	q1 := stat.Quantile(0.25, stat.Empirical, sorted, nil)
	q3 := stat.Quantile(0.75, stat.Empirical, sorted, nil)
	fence := q3 + 3*(q3-q1)

	above := 0
	for _, p := range sorted {
		if p > fence {
			above++
		}
	}
	frac := float64(above) / float64(len(sorted))
	if frac > opts.OutlierTolerance {
		r := fail("%.2f%% of prices above %.2f, tolerance %.2f%%", 100*frac, fence, 100*opts.OutlierTolerance)
		r.Value = frac
		return r
	}
	return Result{Passed: true, Value: frac}
}
