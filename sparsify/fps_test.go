package sparsify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/gapgo/testutil"
)

func TestFPSKnownSelection(t *testing.T) {
	// Four points on a line: greedy from 0 picks the far end first, then
	// the midpoint region.
	features := mat.NewDense(4, 1, []float64{0, 1, 2, 10})

	sel, err := FPS(features, 3)
	require.NoError(t, err)

	assert.Equal(t, []int{0, 3, 2}, sel.Indices)
	assert.Equal(t, []float64{100, 100, 4}, sel.MinMax)
	assert.Equal(t, []float64{0, 1, 0, 0}, sel.MinDist)
	assert.Equal(t, 1.0, sel.CoveringRadius())
}

func TestFPSTiesPickLowestIndex(t *testing.T) {
	// Rows 1 and 2 are equidistant from row 0.
	features := mat.NewDense(3, 2, []float64{
		0, 0,
		1, 0,
		0, 1,
	})

	sel, err := FPS(features, 2)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1}, sel.Indices)
}

func TestFPSMinMaxNonIncreasing(t *testing.T) {
	rng := testutil.NewRNG(4711)
	features := rng.UniformMatrix(200, 16)

	for _, method := range []Method{MethodSimple, MethodVoronoi} {
		sel, err := FPS(features, 50, WithMethod(method))
		require.NoError(t, err)

		for i := 1; i < len(sel.MinMax); i++ {
			assert.LessOrEqual(t, sel.MinMax[i], sel.MinMax[i-1],
				"method %s: minmax must be non-increasing at step %d", method, i)
		}
	}
}

func TestFPSRestartContinuation(t *testing.T) {
	rng := testutil.NewRNG(42)
	features := rng.ClusteredMatrix(150, 8, 6, 0.2)

	full, err := FPS(features, 30, WithStart(3))
	require.NoError(t, err)

	first, err := FPS(features, 12, WithStart(3))
	require.NoError(t, err)
	resumed, err := FPS(features, 30, WithRestart(first))
	require.NoError(t, err)

	assert.Equal(t, full.Indices, resumed.Indices)
	assert.Equal(t, full.MinMax, resumed.MinMax)
	assert.Equal(t, full.MinDist, resumed.MinDist)
}

func TestFPSVoronoiMatchesSimple(t *testing.T) {
	tests := []struct {
		name string
		rows int
		cols int
		n    int
	}{
		{name: "uniform", rows: 120, cols: 12, n: 40},
		{name: "clustered", rows: 300, cols: 6, n: 60},
		{name: "select all", rows: 50, cols: 4, n: 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rng := testutil.NewRNG(int64(tt.rows))
			var features *mat.Dense
			if tt.name == "clustered" {
				features = rng.ClusteredMatrix(tt.rows, tt.cols, 8, 0.1)
			} else {
				features = rng.UniformMatrix(tt.rows, tt.cols)
			}

			simple, err := FPS(features, tt.n, WithMethod(MethodSimple))
			require.NoError(t, err)
			voronoi, err := FPS(features, tt.n, WithMethod(MethodVoronoi))
			require.NoError(t, err)

			assert.Equal(t, simple.Indices, voronoi.Indices)
			assert.Equal(t, simple.MinMax, voronoi.MinMax)
			assert.Equal(t, simple.MinDist, voronoi.MinDist)
		})
	}
}

func TestFPSErrors(t *testing.T) {
	features := mat.NewDense(4, 2, nil)

	_, err := FPS(features, 5)
	var be *BoundsError
	require.ErrorAs(t, err, &be)

	_, err = FPS(features, 0)
	assert.ErrorAs(t, err, &be)

	_, err = FPS(features, 2, WithStart(9))
	assert.ErrorAs(t, err, &be)

	_, err = FPS(features, 2, WithMethod("approximate"))
	var ume *UnknownMethodError
	require.ErrorAs(t, err, &ume)
	assert.Equal(t, Method("approximate"), ume.Method)

	_, err = FPS(features, 3, WithMethod(MethodVoronoi), WithRestart(&Selection{}))
	assert.Error(t, err)
}

func TestFPSRestartStateMismatch(t *testing.T) {
	features := mat.NewDense(4, 2, nil)

	_, err := FPS(features, 3, WithRestart(&Selection{
		Indices: []int{0},
		MinMax:  []float64{1},
		MinDist: []float64{0, 1}, // wrong length
	}))
	assert.Error(t, err)
}
