// Package partition computes the deterministic k-fold partition of a dataset.
//
// Folds are contiguous, positional slices of the simulation index range. They
// are never shuffled: the sample sequence is assumed to be randomized already
// (or deliberately ordered by the user), and positional folds keep every run
// reproducible.
package partition

import (
	"math"

	"github.com/HatiCode/romcv/pkg/romerr"
)

// DefaultFoldFraction is the share of simulations held out per fold.
const DefaultFoldFraction = 0.2

// Fold is one cross-validation iteration: the half-open range
// [RangeMin, RangeMax) is held out as the test set and the rest trains.
type Fold struct {
	Index     int
	RangeMin  int
	RangeMax  int
	TrainSize int
}

// HeldOut returns the number of test records in the fold.
func (f Fold) HeldOut() int { return f.RangeMax - f.RangeMin }

// Contains reports whether simulation i is held out by the fold.
func (f Fold) Contains(i int) bool { return i >= f.RangeMin && i < f.RangeMax }

// Plan is the full partition of a dataset.
type Plan struct {
	NumSim   int
	FoldSize int
	NumFolds int
	Folds    []Fold
}

// Planner computes fold plans for a fixed fold fraction.
type Planner struct {
	foldFraction float64
}

// New returns a Planner for the given fold fraction, which must lie in (0, 1).
func New(foldFraction float64) (*Planner, error) {
	if math.IsNaN(foldFraction) || foldFraction <= 0 || foldFraction >= 1 {
		return nil, romerr.Configf("fold fraction %v must be in (0, 1)", foldFraction)
	}
	return &Planner{foldFraction: foldFraction}, nil
}

// FoldFraction returns the configured fold fraction.
func (p *Planner) FoldFraction() float64 { return p.foldFraction }

// Plan partitions [0, numSim) into contiguous held-out ranges of
// ceil(fraction*numSim) records. The last range is shrunk so the ranges cover
// every index exactly once.
func (p *Planner) Plan(numSim int) (Plan, error) {
	if numSim < 1 {
		return Plan{}, romerr.Configf("simulation count %d must be positive", numSim)
	}

	foldSize := int(math.Ceil(p.foldFraction * float64(numSim)))
	if foldSize < 1 {
		foldSize = 1
	}
	numFolds := (numSim + foldSize - 1) / foldSize

	folds := make([]Fold, numFolds)
	for i := range folds {
		lo := i * foldSize
		hi := min(lo+foldSize, numSim)
		folds[i] = Fold{
			Index:     i,
			RangeMin:  lo,
			RangeMax:  hi,
			TrainSize: numSim - (hi - lo),
		}
	}

	return Plan{
		NumSim:   numSim,
		FoldSize: foldSize,
		NumFolds: numFolds,
		Folds:    folds,
	}, nil
}
