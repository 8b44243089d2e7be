// Package sparsify selects representative feature rows by farthest point
// sampling, in a plain greedy form and a Voronoi-accelerated form that
// returns index-identical selections.
package sparsify

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/gapgo/internal/f64"
)

// Method selects the FPS algorithm variant.
type Method string

const (
	// MethodSimple is the basic greedy incremental selection,
	// O(nSelect * n * d).
	MethodSimple Method = "simple"

	// MethodVoronoi skips distance recomputation for rows whose Voronoi
	// cell provably cannot move closer to the new center. Exact, not an
	// approximation.
	MethodVoronoi Method = "voronoi"
)

// UnknownMethodError indicates an unsupported FPS method.
type UnknownMethodError struct {
	Method Method
}

func (e *UnknownMethodError) Error() string {
	return fmt.Sprintf("sparsify: unknown FPS method %q (want %q or %q)", e.Method, MethodSimple, MethodVoronoi)
}

// BoundsError indicates a selection size or start index outside the feature
// matrix.
type BoundsError struct {
	Value int
	Rows  int
	What  string
}

func (e *BoundsError) Error() string {
	return fmt.Sprintf("sparsify: %s %d outside feature matrix with %d rows", e.What, e.Value, e.Rows)
}

// Selection is an ordered farthest-point sample. All distances are squared.
type Selection struct {
	// Indices are the selected row indices, in selection order.
	Indices []int

	// MinMax[i] is the max-min distance value at selection step i.
	// Non-increasing by construction.
	MinMax []float64

	// MinDist[j] is row j's distance to the nearest selected row at
	// termination (the Hausdorff distance vector). Also the restart state
	// for continuing the selection.
	MinDist []float64
}

// CoveringRadius returns the largest remaining min-distance, i.e. how far
// the worst-covered row is from the selected set.
func (s *Selection) CoveringRadius() float64 {
	return slices.Max(s.MinDist)
}

// Options holds the optional FPS configuration.
type Options struct {
	// Start is the index of the first selected row.
	Start int

	// Method picks the algorithm variant.
	Method Method

	// Restart continues a previous selection instead of starting over.
	// nSelect then counts the combined total. Simple method only.
	Restart *Selection
}

// WithStart sets the first selected row index.
func WithStart(i int) func(o *Options) {
	return func(o *Options) {
		o.Start = i
	}
}

// WithMethod sets the algorithm variant.
func WithMethod(m Method) func(o *Options) {
	return func(o *Options) {
		o.Method = m
	}
}

// WithRestart resumes from a previous selection's state.
func WithRestart(s *Selection) func(o *Options) {
	return func(o *Options) {
		o.Restart = s
	}
}

// FPS greedily selects nSelect rows of the feature matrix approximately
// maximizing pairwise coverage: each step picks the row farthest from the
// already-selected set (ties broken by lowest row index). With a restart
// state, the selection continues where the previous call stopped and
// nSelect is the combined total.
func FPS(features *mat.Dense, nSelect int, optFns ...func(o *Options)) (*Selection, error) {
	opts := Options{Method: MethodSimple}
	for _, fn := range optFns {
		fn(&opts)
	}

	rows, _ := features.Dims()
	if nSelect < 1 || nSelect > rows {
		return nil, &BoundsError{Value: nSelect, Rows: rows, What: "selection size"}
	}
	if opts.Start < 0 || opts.Start >= rows {
		return nil, &BoundsError{Value: opts.Start, Rows: rows, What: "start index"}
	}

	switch opts.Method {
	case MethodSimple:
		return fpsSimple(features, nSelect, opts.Start, opts.Restart)
	case MethodVoronoi:
		if opts.Restart != nil {
			return nil, fmt.Errorf("sparsify: restart is only supported with the %q method", MethodSimple)
		}
		return fpsVoronoi(features, nSelect, opts.Start)
	default:
		return nil, &UnknownMethodError{Method: opts.Method}
	}
}

func fpsSimple(features *mat.Dense, nSelect, start int, restart *Selection) (*Selection, error) {
	rows, _ := features.Dims()

	sel := &Selection{}
	if restart != nil {
		if len(restart.MinDist) != rows {
			return nil, fmt.Errorf("sparsify: restart state has %d rows, features have %d", len(restart.MinDist), rows)
		}
		if len(restart.Indices) >= nSelect {
			return nil, &BoundsError{Value: nSelect, Rows: rows, What: fmt.Sprintf("total selection size (already have %d)", len(restart.Indices))}
		}
		sel.Indices = slices.Clone(restart.Indices)
		sel.MinMax = slices.Clone(restart.MinMax)
		sel.MinDist = slices.Clone(restart.MinDist)
	} else {
		sel.Indices = []int{start}
		sel.MinDist = make([]float64, rows)
		startRow := features.RawRowView(start)
		for j := 0; j < rows; j++ {
			sel.MinDist[j] = f64.SquaredL2(startRow, features.RawRowView(j))
		}
		// Covering radius with only the start point selected.
		sel.MinMax = []float64{slices.Max(sel.MinDist)}
	}

	for len(sel.Indices) < nSelect {
		next, d2 := argmax(sel.MinDist)
		sel.Indices = append(sel.Indices, next)
		sel.MinMax = append(sel.MinMax, d2)

		nextRow := features.RawRowView(next)
		for j := 0; j < rows; j++ {
			if d := f64.SquaredL2(nextRow, features.RawRowView(j)); d < sel.MinDist[j] {
				sel.MinDist[j] = d
			}
		}
	}
	return sel, nil
}

// argmax returns the index of the largest value, lowest index on ties.
func argmax(v []float64) (int, float64) {
	best, bestVal := 0, v[0]
	for i := 1; i < len(v); i++ {
		if v[i] > bestVal {
			best, bestVal = i, v[i]
		}
	}
	return best, bestVal
}
