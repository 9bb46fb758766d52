package dataset_test

import (
	"bytes"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/nycprice/dataset"
	"github.com/YuminosukeSato/nycprice/dataset/datasettest"
	"github.com/YuminosukeSato/nycprice/pkg/errors"
)

func TestReadCSVSample(t *testing.T) {
	f := datasettest.Sample()

	assert.Equal(t, dataset.Listings.Names(), f.Columns())
	assert.Equal(t, 13, f.Len())
	assert.Equal(t, "THE VILLAGE OF HARLEM, NEW YORK !", f.Value(2, dataset.ColName))

	prices, err := f.Float(dataset.ColPrice)
	require.NoError(t, err)
	assert.Equal(t, 149.0, prices[0])

	perMonth, err := f.Float(dataset.ColReviewsPerMonth)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(perMonth[2]), "empty cell should parse as NaN")
}

func TestCSVRoundTripPreservesText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, datasettest.Sample().WriteCSV(&buf))
	assert.Equal(t, datasettest.SampleCSV, buf.String())
}

func TestReadCSVEmpty(t *testing.T) {
	_, err := dataset.ReadCSV(strings.NewReader(""))
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
}

func TestFilterSelectDropPop(t *testing.T) {
	f := datasettest.Sample()

	brooklyn := f.Filter(func(r dataset.Row) bool {
		return r.Get(dataset.ColNeighbourhoodGroup) == "Brooklyn"
	})
	assert.Equal(t, 4, brooklyn.Len())

	sel := f.Select([]int{3, 0})
	assert.Equal(t, "3831", sel.Value(0, dataset.ColID))
	assert.Equal(t, "2539", sel.Value(1, dataset.ColID))

	dropped := f.Drop(dataset.ColHostName, "not_a_column")
	assert.False(t, dropped.Has(dataset.ColHostName))
	assert.Len(t, dropped.Columns(), 15)

	price, rest, err := f.Pop(dataset.ColPrice)
	require.NoError(t, err)
	assert.Equal(t, "225", price[1])
	assert.False(t, rest.Has(dataset.ColPrice))
	assert.True(t, f.Has(dataset.ColPrice), "Pop must not mutate the source frame")

	_, _, err = f.Pop("cost")
	var schemaErr *errors.SchemaError
	assert.True(t, errors.As(err, &schemaErr))
}

func TestWithReplacesAndAppends(t *testing.T) {
	f, err := dataset.New([]string{"a"}, [][]string{{"1"}, {"2"}})
	require.NoError(t, err)

	g, err := f.With("a", []string{"x", "y"})
	require.NoError(t, err)
	assert.Equal(t, "x", g.Value(0, "a"))
	assert.Equal(t, "1", f.Value(0, "a"))

	h, err := g.With("b", []string{"3", "4"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, h.Columns())

	_, err = h.With("c", []string{"only one"})
	var dimErr *errors.DimensionError
	assert.True(t, errors.As(err, &dimErr))
}

func TestDense(t *testing.T) {
	f, err := dataset.New([]string{"x", "y"}, [][]string{{"1", "2"}, {"3", ""}})
	require.NoError(t, err)

	m, err := f.Dense("y", "x")
	require.NoError(t, err)
	assert.Equal(t, 2.0, m.At(0, 0))
	assert.Equal(t, 3.0, m.At(1, 1))
	assert.True(t, math.IsNaN(m.At(1, 0)))
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := dataset.New([]string{"a", "a"}, nil)
	assert.Error(t, err)

	_, err = dataset.New([]string{"a", "b"}, [][]string{{"1"}})
	assert.Error(t, err)
}

func TestSchemaValidate(t *testing.T) {
	f := datasettest.Sample()
	require.NoError(t, dataset.Listings.Validate("sample.csv", f))
	require.NoError(t, dataset.Listings.ValidateStrict("sample.csv", f))

	err := dataset.Listings.Validate("sample.csv", f.Drop(dataset.ColPrice, dataset.ColRoomType))
	var schemaErr *errors.SchemaError
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{dataset.ColRoomType, dataset.ColPrice}, schemaErr.Missing)

	extra, err := f.With("extra", make([]string, f.Len()))
	require.NoError(t, err)
	err = dataset.Listings.ValidateStrict("sample.csv", extra)
	require.True(t, errors.As(err, &schemaErr))
	assert.Equal(t, []string{"extra"}, schemaErr.Unknown)
}

func TestSchemaWithout(t *testing.T) {
	features := dataset.Listings.Without(dataset.ColPrice, dataset.ColID)
	assert.Len(t, features.Fields, len(dataset.Listings.Fields)-2)
	_, ok := features.Kind(dataset.ColPrice)
	assert.False(t, ok)
	assert.Equal(t, dataset.ColName, features.Names()[0])

	f := datasettest.Sample().Drop(dataset.ColPrice)
	require.NoError(t, features.Validate("input_example", f))
	assert.Error(t, dataset.Listings.Validate("input_example", f))
}

func TestSyntheticIsDeterministic(t *testing.T) {
	a := datasettest.Synthetic(50, 7)
	b := datasettest.Synthetic(50, 7)
	assert.Equal(t, a.Records(), b.Records())
	require.NoError(t, dataset.Listings.ValidateStrict("synthetic", a))
}

func TestCSVFileRoundTrip(t *testing.T) {
	f := datasettest.Sample()
	path := filepath.Join(t.TempDir(), "sample.csv")
	require.NoError(t, f.WriteCSVFile(path))

	back, err := dataset.ReadCSVFile(path)
	require.NoError(t, err)
	assert.Equal(t, f.Columns(), back.Columns())
	assert.Equal(t, f.Records(), back.Records())

	_, err = dataset.ReadCSVFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}
