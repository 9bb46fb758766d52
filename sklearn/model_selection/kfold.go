package model_selection

import (
	"math/rand/v2"
)

// Fold holds the row indices of one cross-validation split.
type Fold struct {
	TrainIndices []int
	TestIndices  []int
}

// KFold splits rows into NSplits consecutive folds.
type KFold struct {
	NSplits    int
	Shuffle    bool
	RandomSeed int64
}

// NewKFold creates a k-fold splitter. nSplits below 2 falls back to 5.
func NewKFold(nSplits int, shuffle bool, randomSeed int64) *KFold {
	if nSplits < 2 {
		nSplits = 5
	}
	return &KFold{NSplits: nSplits, Shuffle: shuffle, RandomSeed: randomSeed}
}

// Split returns the folds for n rows. The first n%NSplits folds get one extra row.
func (kf *KFold) Split(n int) []Fold {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(uint64(kf.RandomSeed), uint64(kf.RandomSeed)))
		r.Shuffle(n, func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })
	}

	folds := make([]Fold, kf.NSplits)
	foldSize := n / kf.NSplits
	remainder := n % kf.NSplits
	current := 0
	for i := range folds {
		size := foldSize
		if i < remainder {
			size++
		}
		test := append([]int(nil), indices[current:current+size]...)
		train := make([]int, 0, n-size)
		train = append(train, indices[:current]...)
		train = append(train, indices[current+size:]...)
		folds[i] = Fold{TrainIndices: train, TestIndices: test}
		current += size
	}
	return folds
}
