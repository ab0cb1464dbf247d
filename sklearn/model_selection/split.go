package model_selection

import (
	"math/rand/v2"
	"sort"

	"github.com/YuminosukeSato/gridcv/pkg/errors"
)

// Fold is one train/validation split of row indices. Validation indices are
// disjoint from training indices; TrainIndices is sorted ascending.
type Fold struct {
	TrainIndices      []int
	ValidationIndices []int
}

// Splitter partitions rows into folds. Implementations are pure: the same
// labels always give the same folds.
type Splitter interface {
	Split(y []int) ([]Fold, error)
	GetNSplits() int
}

// KFold implements k-fold cross-validation splitter
type KFold struct {
	NSplits int
	Shuffle bool
	Seed    uint64
}

// NewKFold creates a new k-fold splitter
func NewKFold(nSplits int, shuffle bool, seed uint64) *KFold {
	return &KFold{
		NSplits: nSplits,
		Shuffle: shuffle,
		Seed:    seed,
	}
}

// GetNSplits returns the number of splits
func (kf *KFold) GetNSplits() int {
	return kf.NSplits
}

// Split assigns contiguous blocks of the (optionally shuffled) row order to
// the folds. The first N mod K folds get one extra row.
func (kf *KFold) Split(y []int) ([]Fold, error) {
	nSamples := len(y)
	if err := checkFoldCount(kf.NSplits, nSamples); err != nil {
		return nil, err
	}

	indices := make([]int, nSamples)
	for i := range indices {
		indices[i] = i
	}
	if kf.Shuffle {
		r := rand.New(rand.NewPCG(kf.Seed, kf.Seed))
		r.Shuffle(len(indices), func(i, j int) {
			indices[i], indices[j] = indices[j], indices[i]
		})
	}

	validation := make([][]int, kf.NSplits)
	foldSize := nSamples / kf.NSplits
	remainder := nSamples % kf.NSplits
	currentIdx := 0
	for i := 0; i < kf.NSplits; i++ {
		testSize := foldSize
		if i < remainder {
			testSize++
		}
		validation[i] = append([]int(nil), indices[currentIdx:currentIdx+testSize]...)
		currentIdx += testSize
	}
	return buildFolds(nSamples, validation), nil
}

// StratifiedKFold implements stratified k-fold cross-validation
//
// Rows of each class are dealt to the folds so that every fold holds either
// floor(n_c/K) or ceil(n_c/K) rows of class c. The extra rows of successive
// classes start where the previous class stopped, which keeps fold sizes
// within one row of each other.
type StratifiedKFold struct {
	NSplits int
	Shuffle bool
	Seed    uint64
}

// NewStratifiedKFold creates a new stratified k-fold splitter
func NewStratifiedKFold(nSplits int, shuffle bool, seed uint64) *StratifiedKFold {
	return &StratifiedKFold{
		NSplits: nSplits,
		Shuffle: shuffle,
		Seed:    seed,
	}
}

// GetNSplits returns the number of splits
func (skf *StratifiedKFold) GetNSplits() int {
	return skf.NSplits
}

// Split generates stratified train/validation indices for each fold
func (skf *StratifiedKFold) Split(y []int) ([]Fold, error) {
	nSamples := len(y)
	if err := checkFoldCount(skf.NSplits, nSamples); err != nil {
		return nil, err
	}

	classIndices := make(map[int][]int)
	for i, label := range y {
		classIndices[label] = append(classIndices[label], i)
	}
	// Classes are visited in label order so the partition never depends on
	// map iteration.
	labels := make([]int, 0, len(classIndices))
	for label := range classIndices {
		labels = append(labels, label)
	}
	sort.Ints(labels)

	if skf.Shuffle {
		r := rand.New(rand.NewPCG(skf.Seed, skf.Seed))
		for _, label := range labels {
			indices := classIndices[label]
			r.Shuffle(len(indices), func(i, j int) {
				indices[i], indices[j] = indices[j], indices[i]
			})
		}
	}

	validation := make([][]int, skf.NSplits)
	offset := 0
	for _, label := range labels {
		indices := classIndices[label]
		nClass := len(indices)
		foldSize := nClass / skf.NSplits
		remainder := nClass % skf.NSplits

		currentIdx := 0
		for k := 0; k < skf.NSplits; k++ {
			fold := (offset + k) % skf.NSplits
			testSize := foldSize
			if k < remainder {
				testSize++
			}
			validation[fold] = append(validation[fold], indices[currentIdx:currentIdx+testSize]...)
			currentIdx += testSize
		}
		offset = (offset + remainder) % skf.NSplits
	}

	for _, v := range validation {
		sort.Ints(v)
	}
	return buildFolds(nSamples, validation), nil
}

// NewSplitter returns the shuffled splitter the search engine uses.
func NewSplitter(nSplits int, stratified bool, seed uint64) Splitter {
	if stratified {
		return NewStratifiedKFold(nSplits, true, seed)
	}
	return NewKFold(nSplits, true, seed)
}

func checkFoldCount(k, n int) error {
	if k < 2 {
		return errors.NewInvalidFoldCountError(k, n, "at least 2 folds are required")
	}
	if k > n {
		return errors.NewInvalidFoldCountError(k, n, "more folds than samples")
	}
	return nil
}

// buildFolds derives each fold's training rows as the complement of its
// validation rows.
func buildFolds(nSamples int, validation [][]int) []Fold {
	folds := make([]Fold, len(validation))
	inFold := make([]int, nSamples)
	for k, v := range validation {
		for _, idx := range v {
			inFold[idx] = k
		}
	}
	for k, v := range validation {
		train := make([]int, 0, nSamples-len(v))
		for i := 0; i < nSamples; i++ {
			if inFold[i] != k {
				train = append(train, i)
			}
		}
		folds[k] = Fold{TrainIndices: train, ValidationIndices: v}
	}
	return folds
}
