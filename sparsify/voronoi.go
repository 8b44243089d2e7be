package sparsify

import (
	"github.com/RoaringBitmap/roaring/v2"
	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/gapgo/internal/f64"
)

// fpsVoronoi is the accelerated exact variant. Rows are partitioned into
// Voronoi cells around the selected centers; when a new center c is added, a
// cell with center s and radius r only needs its members re-examined when
//
//	r² ≥ d²(s, c) / 4
//
// since otherwise every member provably stays closer to s than to c
// (triangle inequality). The per-row min-distance array and the argmax scan
// are shared with the simple variant, so selections and tie-breaking are
// index-identical; only redundant distance evaluations are skipped.
func fpsVoronoi(features *mat.Dense, nSelect, start int) (*Selection, error) {
	rows, _ := features.Dims()

	sel := &Selection{
		Indices: []int{start},
		MinDist: make([]float64, rows),
	}

	cells := []*roaring.Bitmap{roaring.New()}
	radius := []float64{0}

	startRow := features.RawRowView(start)
	for j := 0; j < rows; j++ {
		sel.MinDist[j] = f64.SquaredL2(startRow, features.RawRowView(j))
		cells[0].Add(uint32(j))
		if sel.MinDist[j] > radius[0] {
			radius[0] = sel.MinDist[j]
		}
	}
	sel.MinMax = []float64{radius[0]}

	for len(sel.Indices) < nSelect {
		next, d2 := argmax(sel.MinDist)
		sel.Indices = append(sel.Indices, next)
		sel.MinMax = append(sel.MinMax, d2)

		nextRow := features.RawRowView(next)
		newCell := roaring.New()

		for c := range cells {
			center := features.RawRowView(sel.Indices[c])
			d2cc := f64.SquaredL2(center, nextRow)
			if 4*radius[c] < d2cc {
				continue // cell out of reach of the new center
			}

			var moved []uint32
			r := 0.0
			it := cells[c].Iterator()
			for it.HasNext() {
				j := it.Next()
				d := f64.SquaredL2(nextRow, features.RawRowView(int(j)))
				if d < sel.MinDist[j] {
					sel.MinDist[j] = d
					moved = append(moved, j)
				} else if sel.MinDist[j] > r {
					r = sel.MinDist[j]
				}
			}
			for _, j := range moved {
				cells[c].Remove(j)
				newCell.Add(j)
			}
			radius[c] = r
		}

		r := 0.0
		it := newCell.Iterator()
		for it.HasNext() {
			if d := sel.MinDist[it.Next()]; d > r {
				r = d
			}
		}
		cells = append(cells, newCell)
		radius = append(radius, r)
	}

	return sel, nil
}
