package grid

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
)

// ratioTolerance is the allowed deviation of the ratio sum from 1.0.
const ratioTolerance = 1e-6

// Split labels one of the three evaluation partitions.
type Split string

const (
	SplitTrain      Split = "train"
	SplitValidation Split = "validation"
	SplitTest       Split = "test"
)

// AllSplits is the canonical split ordering used for iteration and
// reporting.
var AllSplits = []Split{SplitTrain, SplitValidation, SplitTest}

// Ratios is the train/validation/test share triple.
type Ratios struct {
	Train      float64
	Validation float64
	Test       float64
}

// Validate checks that the shares are non-negative and sum to 1.0
// within tolerance.
func (r Ratios) Validate() error {
	if r.Train < 0 || r.Validation < 0 || r.Test < 0 {
		return fmt.Errorf("split ratios must be non-negative, got (%g, %g, %g)",
			r.Train, r.Validation, r.Test)
	}
	sum := r.Train + r.Validation + r.Test
	if math.Abs(sum-1.0) > ratioTolerance {
		return fmt.Errorf("split ratios must sum to 1.0, got %g", sum)
	}
	return nil
}

// Assignment is the computed event-id partition. Write-once.
type Assignment struct {
	Train      []string
	Validation []string
	Test       []string
}

// Events returns the event ids assigned to one split.
func (a *Assignment) Events(s Split) []string {
	switch s {
	case SplitTrain:
		return a.Train
	case SplitValidation:
		return a.Validation
	default:
		return a.Test
	}
}

// Total returns the number of assigned events.
func (a *Assignment) Total() int {
	return len(a.Train) + len(a.Validation) + len(a.Test)
}

// Assign partitions event ids into train/validation/test. The ids are
// sorted before the seeded shuffle, so the assignment is bit-identical
// across runs and process restarts for the same (ids, seed, ratios)
// regardless of input order. Cuts use floored counts; the remainder
// lands in Test.
func Assign(ids []string, seed int64, ratios Ratios) (*Assignment, error) {
	if err := ratios.Validate(); err != nil {
		return nil, err
	}

	shuffled := append([]string(nil), ids...)
	sort.Strings(shuffled)

	rng := rand.New(rand.NewSource(seed)) //nolint:gosec // deterministic split, not crypto
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	total := len(shuffled)
	nTrain := int(math.Floor(float64(total) * ratios.Train))
	nValidation := int(math.Floor(float64(total) * ratios.Validation))

	return &Assignment{
		Train:      shuffled[:nTrain],
		Validation: shuffled[nTrain : nTrain+nValidation],
		Test:       shuffled[nTrain+nValidation:],
	}, nil
}
