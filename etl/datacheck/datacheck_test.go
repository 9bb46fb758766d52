package datacheck

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/nycprice/dataset"
	"github.com/YuminosukeSato/nycprice/dataset/datasettest"
	"github.com/YuminosukeSato/nycprice/etl/cleaning"
	"github.com/YuminosukeSato/nycprice/pkg/errors"
)

func smallOptions() Options {
	opts := DefaultOptions()
	opts.MinRows, opts.MaxRows = 5, 100
	return opts
}

func cleanedSample(t *testing.T) *dataset.Frame {
	t.Helper()
	f, _, err := cleaning.Clean(datasettest.Sample(), cleaning.DefaultOptions())
	require.NoError(t, err)
	return f
}

func TestRunPassesOnCleanedSample(t *testing.T) {
	rep := Run(cleanedSample(t), datasettest.Sample(), smallOptions())

	require.Len(t, rep.Results, len(Checks))
	for _, r := range rep.Results {
		assert.True(t, r.Passed, "%s: %s", r.Name, r.Detail)
	}
	assert.True(t, rep.Passed())
	assert.NoError(t, rep.Err())

	kl := rep.Results[4]
	assert.Equal(t, CheckSimilarNeighDistrib, kl.Name)
	assert.InDelta(t, 0.118, kl.Value, 0.01)
}

func TestRunFailsOnRawSample(t *testing.T) {
	rep := Run(datasettest.Sample(), datasettest.Sample(), DefaultOptions())
	assert.False(t, rep.Passed())

	failed := map[string]bool{}
	for _, f := range rep.Failures() {
		failed[f.Check] = true
	}
	assert.Equal(t, map[string]bool{
		CheckProperBoundaries: true,
		CheckRowCount:         true,
		CheckPriceRange:       true,
	}, failed)

	var cfErr *errors.CheckFailedError
	require.True(t, errors.As(rep.Err(), &cfErr))
	assert.Len(t, cfErr.Failures, 3)
}

func TestRoomTypesAndNeighbourhoods(t *testing.T) {
	f := cleanedSample(t)
	rooms, err := f.Column(dataset.ColRoomType)
	require.NoError(t, err)
	rooms[0] = "Castle"
	f, err = f.With(dataset.ColRoomType, rooms)
	require.NoError(t, err)

	res := checkRoomTypes(f, nil, smallOptions())
	assert.False(t, res.Passed)
	assert.Contains(t, res.Detail, `"Castle"`)

	assert.True(t, checkNeighbourhoodNames(f, nil, smallOptions()).Passed)
}

func TestColumnNames(t *testing.T) {
	f := cleanedSample(t).Drop(dataset.ColHostName)
	res := checkColumnNames(f, nil, smallOptions())
	assert.False(t, res.Passed)
}

func TestSimilarNeighDistribDetectsShift(t *testing.T) {
	f := cleanedSample(t)
	groups := make([]string, f.Len())
	for i := range groups {
		groups[i] = "Staten Island"
	}
	shifted, err := f.With(dataset.ColNeighbourhoodGroup, groups)
	require.NoError(t, err)

	res := checkSimilarNeighDistrib(shifted, datasettest.Sample(), smallOptions())
	assert.False(t, res.Passed)
	assert.Greater(t, res.Value, 0.2)

	assert.False(t, checkSimilarNeighDistrib(f, nil, smallOptions()).Passed)
}

func TestPriceOutliers(t *testing.T) {
	var records [][]string
	for i := 0; i < 20; i++ {
		records = append(records, []string{"100"})
	}
	records = append(records, []string{"10000"}, []string{"12000"})
	f, err := dataset.New([]string{dataset.ColPrice}, records)
	require.NoError(t, err)

	opts := smallOptions()
	res := checkPriceOutliers(f, nil, opts)
	assert.False(t, res.Passed)
	assert.InDelta(t, 2.0/22.0, res.Value, 1e-12)

	opts.OutlierTolerance = 0.1
	assert.True(t, checkPriceOutliers(f, nil, opts).Passed)
}
