package descriptor

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/gapgo/structure"
)

// FeatureMatrix holds per-environment feature rows in the flat ordering of
// the owning descriptor's index map, plus the optional gradient block.
type FeatureMatrix struct {
	// X has one row per atomic environment.
	X *mat.Dense

	// Grad has 3 rows (x, y, z) per environment when gradients were
	// requested, nil otherwise. Row 3a+α is the derivative of environment
	// a's features along axis α.
	Grad *mat.Dense

	// StructureSizes gives the number of atoms per structure, in dataset
	// order. Sum equals the row count of X.
	StructureSizes []int
}

// NumRows returns the number of environment rows.
func (f *FeatureMatrix) NumRows() int {
	r, _ := f.X.Dims()
	return r
}

// NumFeatures returns the feature dimensionality.
func (f *FeatureMatrix) NumFeatures() int {
	_, c := f.X.Dims()
	return c
}

// HasGradients reports whether the gradient block is present.
func (f *FeatureMatrix) HasGradients() bool { return f.Grad != nil }

// Validate checks internal shape consistency.
func (f *FeatureMatrix) Validate() error {
	rows, cols := f.X.Dims()
	total := 0
	for _, n := range f.StructureSizes {
		total += n
	}
	if total != rows {
		return fmt.Errorf("descriptor: structure sizes sum to %d, feature matrix has %d rows", total, rows)
	}
	if f.Grad != nil {
		gr, gc := f.Grad.Dims()
		if gc != cols {
			return fmt.Errorf("descriptor: gradient block has %d columns, features have %d", gc, cols)
		}
		if gr != 3*rows {
			return fmt.Errorf("descriptor: gradient block has %d rows, want %d", gr, 3*rows)
		}
	}
	return nil
}

// Subset returns a new matrix keeping only the given feature columns, in the
// given order. Used to realize a coefficient subselection on precomputed
// full-schema features.
func (f *FeatureMatrix) Subset(cols []int) (*FeatureMatrix, error) {
	rows, n := f.X.Dims()
	for _, c := range cols {
		if c < 0 || c >= n {
			return nil, fmt.Errorf("descriptor: feature column %d outside [0, %d)", c, n)
		}
	}
	sub := mat.NewDense(rows, len(cols), nil)
	for j, c := range cols {
		for i := 0; i < rows; i++ {
			sub.Set(i, j, f.X.At(i, c))
		}
	}
	out := &FeatureMatrix{X: sub, StructureSizes: f.StructureSizes}
	if f.Grad != nil {
		gr, _ := f.Grad.Dims()
		g := mat.NewDense(gr, len(cols), nil)
		for j, c := range cols {
			for i := 0; i < gr; i++ {
				g.Set(i, j, f.Grad.At(i, c))
			}
		}
		out.Grad = g
	}
	return out, nil
}

// Engine is the external descriptor-computation collaborator: it turns
// structures into feature rows obeying the index-map ordering of the
// configuration it was built with. Implementations typically wrap a native
// numeric backend or load precomputed arrays.
type Engine interface {
	Compute(structures []*structure.Structure) (*FeatureMatrix, error)
}
