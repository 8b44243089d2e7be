package gap

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/gapgo/descriptor"
	"github.com/hupe1980/gapgo/internal/npy"
	"github.com/hupe1980/gapgo/persistence"
)

// SparsePoints is the ordered set of selected reference environments: the
// row indices into the training feature matrix and a copy of the selected
// feature rows themselves.
type SparsePoints struct {
	indices  []int
	features *mat.Dense

	mapped []*npy.Array // sidecar views to release on Close
}

// NewSparsePoints copies the selected rows out of the feature matrix.
func NewSparsePoints(feats *descriptor.FeatureMatrix, indices []int) (*SparsePoints, error) {
	rows, cols := feats.X.Dims()
	x := mat.NewDense(len(indices), cols, nil)
	for i, idx := range indices {
		if idx < 0 || idx >= rows {
			return nil, fmt.Errorf("gap: sparse point index %d outside feature matrix with %d rows", idx, rows)
		}
		x.SetRow(i, feats.X.RawRowView(idx))
	}
	return &SparsePoints{
		indices:  append([]int(nil), indices...),
		features: x,
	}, nil
}

// Len returns the number of sparse points.
func (s *SparsePoints) Len() int { return len(s.indices) }

// Indices returns the selected row indices, in selection order.
func (s *SparsePoints) Indices() []int { return s.indices }

// Features returns the selected feature rows.
func (s *SparsePoints) Features() *mat.Dense { return s.features }

// Close releases memory-mapped sidecar arrays held after a load.
func (s *SparsePoints) Close() error {
	var firstErr error
	for _, a := range s.mapped {
		if err := a.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.mapped = nil
	return firstErr
}

// persistence entity implementation

var sparsePointsID = persistence.ID{Module: "gap", Class: "SparsePoints"}

// ID implements persistence.Entity.
func (s *SparsePoints) ID() persistence.ID { return sparsePointsID }

// InitParams implements persistence.Entity.
func (s *SparsePoints) InitParams() map[string]any { return map[string]any{} }

// Data implements persistence.Entity. The feature block is the array that
// crosses the sidecar threshold for big models.
func (s *SparsePoints) Data() map[string]any {
	rows, cols := s.features.Dims()

	idx := make([]int64, len(s.indices))
	for i, v := range s.indices {
		idx[i] = int64(v)
	}
	indicesArr, _ := persistence.IntArray(idx, len(idx))
	featuresArr, _ := persistence.Array(append([]float64(nil), s.features.RawMatrix().Data...), rows, cols)

	return map[string]any{
		"indices":  indicesArr,
		"features": featuresArr,
	}
}

// SetData implements persistence.Entity.
func (s *SparsePoints) SetData(data map[string]any) error {
	idxArr, err := persistence.ToArray(data, "indices")
	if err != nil {
		return err
	}
	featArr, err := persistence.ToArray(data, "features")
	if err != nil {
		return err
	}

	shape := featArr.Shape()
	if len(shape) != 2 {
		return fmt.Errorf("gap: sparse point features have %d dimensions, want 2", len(shape))
	}

	s.indices = arrayToInts(idxArr)
	if len(s.indices) != shape[0] {
		return fmt.Errorf("gap: %d sparse indices but %d feature rows", len(s.indices), shape[0])
	}
	s.features = mat.NewDense(shape[0], shape[1], featArr.Float64())

	for _, a := range []*npy.Array{idxArr, featArr} {
		if a.Mapped() {
			s.mapped = append(s.mapped, a)
		}
	}
	return nil
}

// arrayToInts reads an index vector that may be int64 (sidecar) or float64
// (inline JSON).
func arrayToInts(a *npy.Array) []int {
	if ints := a.Int64(); ints != nil {
		out := make([]int, len(ints))
		for i, v := range ints {
			out[i] = int(v)
		}
		return out
	}
	f := a.Float64()
	out := make([]int, len(f))
	for i, v := range f {
		out[i] = int(v)
	}
	return out
}

func init() {
	persistence.Register(sparsePointsID, func(map[string]any) (persistence.Entity, error) {
		return &SparsePoints{}, nil
	})
}
