// Package model_selection splits row indices into train/test sets and folds.
package model_selection

import (
	"fmt"
	"math"
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/nycprice/pkg/errors"
)

type splitConfig struct {
	seed     uint64
	seeded   bool
	shuffle  bool
	stratify []string
}

// SplitOption configures TrainTestSplit.
type SplitOption func(*splitConfig)

// WithRandomState makes the split reproducible.
func WithRandomState(seed int64) SplitOption {
	return func(c *splitConfig) {
		c.seed = uint64(seed)
		c.seeded = true
	}
}

// WithShuffle toggles shuffling. It is on by default; stratified splits require it.
func WithShuffle(shuffle bool) SplitOption {
	return func(c *splitConfig) { c.shuffle = shuffle }
}

// WithStratify preserves the proportion of each label in both halves.
func WithStratify(labels []string) SplitOption {
	return func(c *splitConfig) { c.stratify = labels }
}

// TestCount resolves testSize for n rows: a fraction in (0, 1) is rounded up, a value
// of 1 or more is an absolute row count.
func TestCount(n int, testSize float64) (int, error) {
	var nTest int
	switch {
	case testSize > 0 && testSize < 1:
		nTest = int(math.Ceil(testSize * float64(n)))
	case testSize >= 1 && testSize == math.Trunc(testSize):
		nTest = int(testSize)
	default:
		return 0, errors.NewValidationError("test_size", "must be a fraction in (0, 1) or a row count", testSize)
	}
	if nTest <= 0 || nTest >= n {
		return 0, errors.NewValidationError("test_size",
			"leaves an empty train or test set", testSize)
	}
	return nTest, nil
}

// TrainTestSplit returns train and test row indices for n rows.
func TrainTestSplit(n int, testSize float64, opts ...SplitOption) (train, test []int, err error) {
	cfg := splitConfig{shuffle: true}
	for _, opt := range opts {
		opt(&cfg)
	}
	if n < 2 {
		return nil, nil, errors.NewModelError("TrainTestSplit", "need at least two rows", errors.ErrEmptyData)
	}
	nTest, err := TestCount(n, testSize)
	if err != nil {
		return nil, nil, err
	}

	if !cfg.seeded {
		cfg.seed = rand.Uint64()
	}
	r := rand.New(rand.NewPCG(cfg.seed, cfg.seed))

	if cfg.stratify != nil {
		if !cfg.shuffle {
			return nil, nil, errors.NewValidationError("shuffle", "stratified train/test split requires shuffle", false)
		}
		if len(cfg.stratify) != n {
			return nil, nil, errors.NewDimensionError("TrainTestSplit", n, len(cfg.stratify), 0)
		}
		return stratifiedSplit(cfg.stratify, nTest, r)
	}

	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	if !cfg.shuffle {
		return idx[:n-nTest], idx[n-nTest:], nil
	}
	r.Shuffle(n, func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
	return idx[nTest:], idx[:nTest], nil
}

func stratifiedSplit(labels []string, nTest int, r *rand.Rand) (train, test []int, err error) {
	n := len(labels)
	groups := make(map[string][]int)
	for i, l := range labels {
		groups[l] = append(groups[l], i)
	}
	classes := make([]string, 0, len(groups))
	for c, members := range groups {
		if len(members) < 2 {
			return nil, nil, errors.NewValidationError("stratify",
				"the least populated class has only 1 member, which is too few", c)
		}
		classes = append(classes, c)
	}
	sort.Strings(classes)
	if nTest < len(classes) || n-nTest < len(classes) {
		return nil, nil, errors.NewValidationError("test_size",
			"must leave at least one row per class on each side", nTest)
	}

	alloc, given := allocate(classes, groups, nTest, n)
	if given != nTest {
		return nil, nil, errors.NewValidationError("test_size",
			fmt.Sprintf("only %d of %d test rows fit while keeping a train row per class", given, nTest), nTest)
	}
	for k, c := range classes {
		members := append([]int(nil), groups[c]...)
		r.Shuffle(len(members), func(i, j int) { members[i], members[j] = members[j], members[i] })
		test = append(test, members[:alloc[k]]...)
		train = append(train, members[alloc[k]:]...)
	}
	r.Shuffle(len(train), func(i, j int) { train[i], train[j] = train[j], train[i] })
	r.Shuffle(len(test), func(i, j int) { test[i], test[j] = test[j], test[i] })
	return train, test, nil
}

// allocate gives each class floor(nTest*share) test rows, then hands the rest
// out one row at a time by largest remainder, skipping classes that are down to
// their last train row. It reports how many rows it could place.
func allocate(classes []string, groups map[string][]int, nTest, n int) ([]int, int) {
	alloc := make([]int, len(classes))
	rem := make([]float64, len(classes))
	given := 0
	for k, c := range classes {
		exact := float64(nTest) * float64(len(groups[c])) / float64(n)
		alloc[k] = min(int(math.Floor(exact)), len(groups[c])-1)
		rem[k] = exact - float64(alloc[k])
		given += alloc[k]
	}
	order := make([]int, len(classes))
	for k := range order {
		order[k] = k
	}
	sort.SliceStable(order, func(a, b int) bool { return rem[order[a]] > rem[order[b]] })
	for given < nTest {
		placed := false
		for _, k := range order {
			if given == nTest {
				break
			}
			if alloc[k] < len(groups[classes[k]])-1 {
				alloc[k]++
				given++
				placed = true
			}
		}
		if !placed {
			break
		}
	}
	return alloc, given
}
