package gap

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/gapgo/internal/f64"
	"github.com/hupe1980/gapgo/internal/npy"
	"github.com/hupe1980/gapgo/kernel"
	"github.com/hupe1980/gapgo/persistence"
	"github.com/hupe1980/gapgo/structure"
)

// ModelVersion tags fitted models; bumped when the record layout changes.
const ModelVersion = "1.0"

// KRR is a fitted sparse kernel ridge regression potential: the weight
// vector over sparse points plus everything needed to evaluate and persist
// it.
type KRR struct {
	weights           []float64
	kernel            *kernel.Kernel
	sparse            *SparsePoints
	selfContributions Baseline
	description       string
	version           string

	mapped []*npy.Array
}

// NewKRR assembles a fitted model.
func NewKRR(k *kernel.Kernel, sparse *SparsePoints, baseline Baseline, weights []float64, description string) (*KRR, error) {
	if sparse != nil && len(weights) != sparse.Len() {
		return nil, &ShapeError{What: "weights", Got: len(weights), Want: sparse.Len()}
	}
	return &KRR{
		weights:           append([]float64(nil), weights...),
		kernel:            k,
		sparse:            sparse,
		selfContributions: baseline,
		description:       description,
		version:           ModelVersion,
	}, nil
}

// Weights returns the weight vector over sparse points.
func (m *KRR) Weights() []float64 { return m.weights }

// Kernel returns the kernel configuration.
func (m *KRR) Kernel() *kernel.Kernel { return m.kernel }

// SparsePoints returns the selected reference environments.
func (m *KRR) SparsePoints() *SparsePoints { return m.sparse }

// SelfContributions returns the per-species energy baseline.
func (m *KRR) SelfContributions() Baseline { return m.selfContributions }

// Description returns the free-text model description.
func (m *KRR) Description() string { return m.description }

// Predict evaluates energies: kEnergy · weights plus the per-structure
// baseline sum. The kernel row granularity must match the structure list.
func (m *KRR) Predict(structures []*structure.Structure, kEnergy *mat.Dense) ([]float64, error) {
	rows, cols := kEnergy.Dims()
	if cols != len(m.weights) {
		return nil, &ShapeError{What: "energy kernel columns", Got: cols, Want: len(m.weights)}
	}
	if rows != len(structures) {
		return nil, &ShapeError{What: "energy kernel rows", Got: rows, Want: len(structures)}
	}

	baselineSums := m.selfContributions.StructureSums(structures)
	out := make([]float64, rows)
	for i := range out {
		out[i] = f64.Dot(kEnergy.RawRowView(i), m.weights) + baselineSums[i]
	}
	return out, nil
}

// PredictForces evaluates forces: kForce · weights. The baseline is constant
// per atom and contributes zero gradient.
func (m *KRR) PredictForces(kForce *mat.Dense) ([]float64, error) {
	rows, cols := kForce.Dims()
	if cols != len(m.weights) {
		return nil, &ShapeError{What: "force kernel columns", Got: cols, Want: len(m.weights)}
	}

	out := make([]float64, rows)
	for i := range out {
		out[i] = f64.Dot(kForce.RawRowView(i), m.weights)
	}
	return out, nil
}

// Close releases memory-mapped sidecar arrays held after a load.
func (m *KRR) Close() error {
	var firstErr error
	for _, a := range m.mapped {
		if err := a.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	m.mapped = nil
	if m.sparse != nil {
		if err := m.sparse.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// persistence entity implementation

var krrID = persistence.ID{Module: "gap", Class: "KRR"}

// ID implements persistence.Entity.
func (m *KRR) ID() persistence.ID { return krrID }

// InitParams implements persistence.Entity.
func (m *KRR) InitParams() map[string]any {
	params := map[string]any{
		"model_version": m.version,
		"description":   m.description,
	}
	if m.kernel != nil {
		params["kernel"] = m.kernel
	}
	return params
}

// Data implements persistence.Entity. The weight vector is the array that
// gets externalized for big models.
func (m *KRR) Data() map[string]any {
	weightsArr, _ := persistence.Array(append([]float64(nil), m.weights...), len(m.weights))
	data := map[string]any{
		"weights":            weightsArr,
		"self_contributions": persistence.IntFloatMapParam(m.selfContributions),
	}
	if m.sparse != nil {
		data["sparse_points"] = m.sparse
	}
	return data
}

// SetData implements persistence.Entity.
func (m *KRR) SetData(data map[string]any) error {
	weightsArr, err := persistence.ToArray(data, "weights")
	if err != nil {
		return err
	}
	m.weights = weightsArr.Float64()
	if weightsArr.Mapped() {
		m.mapped = append(m.mapped, weightsArr)
	}

	contrib, err := persistence.ToIntFloatMap(data, "self_contributions")
	if err != nil {
		return err
	}
	m.selfContributions = contrib

	if sp, ok := data["sparse_points"]; ok {
		m.sparse, ok = sp.(*SparsePoints)
		if !ok {
			return fmt.Errorf("gap: sparse_points is %T, want sparse point set", sp)
		}
		if len(m.weights) != m.sparse.Len() {
			return &ShapeError{What: "weights", Got: len(m.weights), Want: m.sparse.Len()}
		}
	}
	return nil
}

func init() {
	persistence.Register(krrID, func(init map[string]any) (persistence.Entity, error) {
		m := &KRR{version: ModelVersion}
		if v, err := persistence.ToString(init, "model_version"); err == nil {
			m.version = v
		}
		if v, err := persistence.ToString(init, "description"); err == nil {
			m.description = v
		}
		if k, ok := init["kernel"]; ok {
			kk, ok := k.(*kernel.Kernel)
			if !ok {
				return nil, fmt.Errorf("gap: kernel is %T, want kernel configuration", k)
			}
			m.kernel = kk
		}
		return m, nil
	})
}
