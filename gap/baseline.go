package gap

import (
	"fmt"

	"github.com/hupe1980/gapgo/structure"
)

// Baseline maps an atomic species to its reference (self-contribution)
// energy, subtracted per atom before fitting and added back at prediction.
type Baseline map[int]float64

// MissingBaselineError indicates a species present in the data but absent
// from the baseline.
type MissingBaselineError struct {
	Species int
}

func (e *MissingBaselineError) Error() string {
	return fmt.Sprintf("gap: energy baseline missing species %d", e.Species)
}

// Validate checks that every species occurring in the structures has a
// baseline entry.
func (b Baseline) Validate(structures []*structure.Structure) error {
	for _, sp := range structure.SpeciesSet(structures) {
		if _, ok := b[sp]; !ok {
			return &MissingBaselineError{Species: sp}
		}
	}
	return nil
}

// StructureSums returns the summed per-atom baseline energy for each
// structure.
func (b Baseline) StructureSums(structures []*structure.Structure) []float64 {
	out := make([]float64, len(structures))
	for i, s := range structures {
		for _, sp := range s.Species {
			out[i] += b[sp]
		}
	}
	return out
}
