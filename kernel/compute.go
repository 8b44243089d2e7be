package kernel

import (
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/gapgo/descriptor"
	"github.com/hupe1980/gapgo/internal/f64"
)

// Matrices bundles the kernel blocks consumed by the fitter.
type Matrices struct {
	// KSparse is the n_sparse x n_sparse kernel among sparse points.
	KSparse *mat.Dense

	// KEnergy has one row per structure (or per atom for TargetAtom)
	// against the sparse points.
	KEnergy *mat.Dense

	// KForce has 3 rows per atom against the sparse points; nil when the
	// features carry no gradient block.
	KForce *mat.Dense
}

// Compute builds all kernel blocks between the feature set and the sparse
// point rows. Feature rows are assumed normalized; sparse is a dense matrix
// whose rows are the selected environments' features.
func (k *Kernel) Compute(feats *descriptor.FeatureMatrix, sparse *mat.Dense) (*Matrices, error) {
	if err := feats.Validate(); err != nil {
		return nil, err
	}
	_, fCols := feats.X.Dims()
	_, sCols := sparse.Dims()
	if fCols != sCols {
		return nil, fmt.Errorf("kernel: features have %d columns, sparse points have %d", fCols, sCols)
	}

	m := &Matrices{
		KSparse: k.AtomMatrix(sparse, sparse),
	}

	atom := k.AtomMatrix(feats.X, sparse)
	if k.target == TargetStructure {
		m.KEnergy = sumPerStructure(atom, feats.StructureSizes)
	} else {
		m.KEnergy = atom
	}

	if feats.HasGradients() {
		m.KForce = k.forceMatrix(feats, sparse)
	}
	return m, nil
}

// AtomMatrix returns the pairwise power-kernel matrix between the rows of x
// and the rows of y.
func (k *Kernel) AtomMatrix(x, y *mat.Dense) *mat.Dense {
	xr, _ := x.Dims()
	yr, _ := y.Dims()
	out := mat.NewDense(xr, yr, nil)

	k.parallelRows(xr, func(i int) {
		xi := x.RawRowView(i)
		row := out.RawRowView(i)
		for j := 0; j < yr; j++ {
			row[j] = pow(f64.Dot(xi, y.RawRowView(j)), k.zeta)
		}
	})
	return out
}

// forceMatrix fills the gradient block: row 3a+α holds
// zeta * (x_a · x_j)^(zeta-1) * (g_{a,α} · x_j) for sparse point j.
func (k *Kernel) forceMatrix(feats *descriptor.FeatureMatrix, sparse *mat.Dense) *mat.Dense {
	rows, _ := feats.X.Dims()
	sr, _ := sparse.Dims()
	out := mat.NewDense(3*rows, sr, nil)
	zf := float64(k.zeta)

	k.parallelRows(rows, func(a int) {
		xa := feats.X.RawRowView(a)
		for alpha := 0; alpha < 3; alpha++ {
			g := feats.Grad.RawRowView(3*a + alpha)
			row := out.RawRowView(3*a + alpha)
			for j := 0; j < sr; j++ {
				xj := sparse.RawRowView(j)
				row[j] = zf * pow(f64.Dot(xa, xj), k.zeta-1) * f64.Dot(g, xj)
			}
		}
	})
	return out
}

// parallelRows runs fn(i) for i in [0, n) over a bounded worker pool. Each
// index touches disjoint output rows, so results do not depend on
// scheduling.
func (k *Kernel) parallelRows(n int, fn func(i int)) {
	workers := k.workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers == 1 || n < 2 {
		for i := 0; i < n; i++ {
			fn(i)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(workers)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			fn(i)
			return nil
		})
	}
	_ = g.Wait() // fn never fails
}

// sumPerStructure collapses per-atom kernel rows into per-structure rows.
func sumPerStructure(atom *mat.Dense, sizes []int) *mat.Dense {
	_, cols := atom.Dims()
	out := mat.NewDense(len(sizes), cols, nil)
	row := 0
	for s, n := range sizes {
		dst := out.RawRowView(s)
		for a := 0; a < n; a++ {
			src := atom.RawRowView(row)
			f64.AxpyInPlace(dst, 1, src)
			row++
		}
	}
	return out
}

// pow raises x to a small non-negative integer exponent.
func pow(x float64, n int) float64 {
	switch n {
	case 0:
		return 1
	case 1:
		return x
	case 2:
		return x * x
	}
	out := 1.0
	for i := 0; i < n; i++ {
		out *= x
	}
	return out
}
