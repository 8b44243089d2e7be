package gap

import (
	"errors"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/gapgo/structure"
)

// ErrNotPositiveDefinite is returned when the sparse kernel matrix cannot be
// factorized even after jitter escalation.
var ErrNotPositiveDefinite = errors.New("gap: sparse kernel matrix is not positive definite")

// ShapeError indicates kernel or target dimensions that do not match the
// structure set.
type ShapeError struct {
	What string
	Got  int
	Want int
}

func (e *ShapeError) Error() string {
	return fmt.Sprintf("gap: %s has length %d, want %d", e.What, e.Got, e.Want)
}

// FitOptions holds the optional fit configuration.
type FitOptions struct {
	// Jitter is the starting diagonal shift applied to the sparse kernel
	// before Cholesky factorization. Escalated with a logged warning when
	// the factorization fails.
	Jitter float64

	Logger *slog.Logger
}

// FitSimple solves the regularized sparse kernel regression for the weight
// vector over sparse points.
//
// The per-structure baseline sum is subtracted from each training energy,
// then energy rows and targets are divided by energyReg and force rows by
// forceReg (a smaller regularizer means the block is trusted more). The
// Cholesky factor of the sparse kernel is stacked underneath as ridge rows
// and the combined system is solved by QR least squares; the sparse kernel
// is never inverted directly.
//
// forces and kForce may be nil for an energy-only fit. Shape mismatches and
// a baseline missing a species present in the data are errors.
func FitSimple(structures []*structure.Structure, kSparse *mat.Dense, energies []float64, kEnergy *mat.Dense,
	energyReg float64, baseline Baseline, forces []float64, kForce *mat.Dense, forceReg float64,
	optFns ...func(o *FitOptions)) ([]float64, error) {

	opts := FitOptions{
		Jitter: 1e-10,
		Logger: slog.Default(),
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	nStruct := len(structures)
	eRows, nSparse := kEnergy.Dims()
	sr, sc := kSparse.Dims()

	if sr != sc || sr != nSparse {
		return nil, &ShapeError{What: "sparse kernel rows", Got: sr, Want: nSparse}
	}
	if len(energies) != nStruct {
		return nil, &ShapeError{What: "energies", Got: len(energies), Want: nStruct}
	}
	if eRows != nStruct {
		return nil, &ShapeError{What: "energy kernel rows", Got: eRows, Want: nStruct}
	}
	if energyReg <= 0 {
		return nil, fmt.Errorf("gap: energy regularizer must be positive, got %g", energyReg)
	}
	if err := baseline.Validate(structures); err != nil {
		return nil, err
	}

	nForce := 0
	if kForce != nil {
		fRows, fCols := kForce.Dims()
		want := 3 * structure.TotalAtoms(structures)
		if len(forces) != want {
			return nil, &ShapeError{What: "forces", Got: len(forces), Want: want}
		}
		if fRows != want {
			return nil, &ShapeError{What: "force kernel rows", Got: fRows, Want: want}
		}
		if fCols != nSparse {
			return nil, &ShapeError{What: "force kernel columns", Got: fCols, Want: nSparse}
		}
		if forceReg <= 0 {
			return nil, fmt.Errorf("gap: force regularizer must be positive, got %g", forceReg)
		}
		nForce = want
	}

	ridge, err := choleskyRidge(kSparse, opts.Jitter, opts.Logger)
	if err != nil {
		return nil, err
	}

	// Stacked design: scaled energy rows, scaled force rows, ridge rows.
	rows := nStruct + nForce + nSparse
	a := mat.NewDense(rows, nSparse, nil)
	b := mat.NewVecDense(rows, nil)

	baselineSums := baseline.StructureSums(structures)
	for i := 0; i < nStruct; i++ {
		dst := a.RawRowView(i)
		src := kEnergy.RawRowView(i)
		for j := range dst {
			dst[j] = src[j] / energyReg
		}
		b.SetVec(i, (energies[i]-baselineSums[i])/energyReg)
	}
	for i := 0; i < nForce; i++ {
		dst := a.RawRowView(nStruct + i)
		src := kForce.RawRowView(i)
		for j := range dst {
			dst[j] = src[j] / forceReg
		}
		b.SetVec(nStruct+i, forces[i]/forceReg)
	}
	for i := 0; i < nSparse; i++ {
		// L^T rows: ||L^T w||^2 = w^T K_sparse w.
		dst := a.RawRowView(nStruct + nForce + i)
		for j := 0; j < nSparse; j++ {
			dst[j] = ridge.At(j, i)
		}
	}

	var qr mat.QR
	qr.Factorize(a)
	var w mat.VecDense
	if err := qr.SolveVecTo(&w, false, b); err != nil {
		return nil, fmt.Errorf("gap: least-squares solve: %w", err)
	}

	out := make([]float64, nSparse)
	copy(out, w.RawVector().Data)
	return out, nil
}

// choleskyRidge factorizes kSparse + jitter*I, escalating the jitter with a
// logged numeric warning until the matrix is positive definite. Returns the
// lower-triangular factor L.
func choleskyRidge(kSparse *mat.Dense, jitter float64, logger *slog.Logger) (*mat.TriDense, error) {
	n, _ := kSparse.Dims()

	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, kSparse.At(i, j))
		}
	}

	var chol mat.Cholesky
	for attempt := 0; attempt < 8; attempt++ {
		if attempt > 0 {
			for i := 0; i < n; i++ {
				sym.SetSym(i, i, kSparse.At(i, i)+jitter)
			}
			logger.Warn("sparse kernel matrix not positive definite, adding jitter to the diagonal",
				slog.Float64("jitter", jitter))
			jitter *= 100
		}
		if chol.Factorize(sym) {
			var l mat.TriDense
			chol.LTo(&l)
			return &l, nil
		}
	}
	return nil, ErrNotPositiveDefinite
}
