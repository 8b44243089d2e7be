package gap

import (
	"io"
	"log/slog"
	"math"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/hupe1980/gapgo/descriptor"
	"github.com/hupe1980/gapgo/kernel"
	"github.com/hupe1980/gapgo/persistence"
	"github.com/hupe1980/gapgo/sparsify"
	"github.com/hupe1980/gapgo/structure"
	"github.com/hupe1980/gapgo/testutil"
)

var testBaseline = Baseline{1: -1.0, 2: -0.5}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testKernel(t *testing.T, zeta int) *kernel.Kernel {
	t.Helper()
	d, err := descriptor.New(3.5, 0.5, 2, 1, func(o *descriptor.Options) {
		o.Species = descriptor.UserDefined(1, 2)
	})
	require.NoError(t, err)
	k, err := kernel.New(d, func(o *kernel.Options) { o.Zeta = zeta })
	require.NoError(t, err)
	return k
}

// trainingSet builds 5 toy structures over species {1, 2} whose energies are
// exactly the baseline sums, plus random normalized features.
func trainingSet(t *testing.T) ([]*structure.Structure, *descriptor.FeatureMatrix, []float64) {
	t.Helper()
	rng := testutil.NewRNG(4711)

	structures := rng.Structures(5, 4, []int{1, 2}, "energy", map[int]float64(testBaseline))
	energies, err := structure.Energies(structures, "energy")
	require.NoError(t, err)

	feats := &descriptor.FeatureMatrix{
		X:              rng.UnitRowMatrix(20, 8),
		StructureSizes: []int{4, 4, 4, 4, 4},
	}
	require.NoError(t, feats.Validate())
	return structures, feats, energies
}

func TestBaseline(t *testing.T) {
	structures := []*structure.Structure{
		{Positions: make([][3]float64, 2), Species: []int{1, 2}},
		{Positions: make([][3]float64, 3), Species: []int{2, 2, 2}},
	}

	require.NoError(t, testBaseline.Validate(structures))
	assert.Equal(t, []float64{-1.5, -1.5}, testBaseline.StructureSums(structures))

	structures[0].Species[0] = 3
	err := testBaseline.Validate(structures)
	var mbe *MissingBaselineError
	require.ErrorAs(t, err, &mbe)
	assert.Equal(t, 3, mbe.Species)
}

func TestFitSimpleShapeErrors(t *testing.T) {
	structures, feats, energies := trainingSet(t)
	k := testKernel(t, 2)

	sel, err := sparsify.FPS(feats.X, 3)
	require.NoError(t, err)
	sp, err := NewSparsePoints(feats, sel.Indices)
	require.NoError(t, err)
	m, err := k.Compute(feats, sp.Features())
	require.NoError(t, err)

	var se *ShapeError

	_, err = FitSimple(structures, m.KSparse, energies[:3], m.KEnergy, 1e-3, testBaseline, nil, nil, 0)
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "energies", se.What)

	_, err = FitSimple(structures[:4], m.KSparse, energies[:4], m.KEnergy, 1e-3, testBaseline, nil, nil, 0)
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "energy kernel rows", se.What)

	// Force vector must be 3 per atom.
	kf := mat.NewDense(3*20, 3, nil)
	_, err = FitSimple(structures, m.KSparse, energies, m.KEnergy, 1e-3, testBaseline, make([]float64, 10), kf, 1e-2)
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "forces", se.What)

	// Baseline must cover every species.
	_, err = FitSimple(structures, m.KSparse, energies, m.KEnergy, 1e-3, Baseline{1: -1.0}, nil, nil, 0)
	var mbe *MissingBaselineError
	assert.ErrorAs(t, err, &mbe)
}

func TestEndToEndEnergyFit(t *testing.T) {
	structures, feats, energies := trainingSet(t)
	k := testKernel(t, 2)

	sel, err := sparsify.FPS(feats.X, 3, sparsify.WithStart(0))
	require.NoError(t, err)
	sp, err := NewSparsePoints(feats, sel.Indices)
	require.NoError(t, err)

	m, err := k.Compute(feats, sp.Features())
	require.NoError(t, err)

	weights, err := FitSimple(structures, m.KSparse, energies, m.KEnergy, 1e-3, testBaseline, nil, nil, 0,
		func(o *FitOptions) { o.Logger = quietLogger() })
	require.NoError(t, err)
	require.Len(t, weights, 3)

	model, err := NewKRR(k, sp, testBaseline, weights, "toy potential")
	require.NoError(t, err)

	pred, err := model.Predict(structures, m.KEnergy)
	require.NoError(t, err)
	for i, e := range energies {
		assert.InDelta(t, e, pred[i], 1e-6, "structure %d", i)
	}
}

func TestFitRecoversRepresentableTargets(t *testing.T) {
	structures, feats, _ := trainingSet(t)
	k := testKernel(t, 2)

	sel, err := sparsify.FPS(feats.X, 4)
	require.NoError(t, err)
	sp, err := NewSparsePoints(feats, sel.Indices)
	require.NoError(t, err)
	m, err := k.Compute(feats, sp.Features())
	require.NoError(t, err)

	wTrue := []float64{0.3, -0.7, 0.2, 0.5}
	baselineSums := testBaseline.StructureSums(structures)
	energies := make([]float64, len(structures))
	for i := range energies {
		row := m.KEnergy.RawRowView(i)
		for j, w := range wTrue {
			energies[i] += row[j] * w
		}
		energies[i] += baselineSums[i]
	}

	weights, err := FitSimple(structures, m.KSparse, energies, m.KEnergy, 1e-5, testBaseline, nil, nil, 0,
		func(o *FitOptions) { o.Logger = quietLogger() })
	require.NoError(t, err)

	model, err := NewKRR(k, sp, testBaseline, weights, "")
	require.NoError(t, err)
	pred, err := model.Predict(structures, m.KEnergy)
	require.NoError(t, err)

	for i, e := range energies {
		assert.InDelta(t, e, pred[i], 1e-4, "structure %d", i)
	}
}

func TestFitWithForces(t *testing.T) {
	structures, feats, _ := trainingSet(t)
	rng := testutil.NewRNG(7)
	feats.Grad = rng.GaussianMatrix(3*20, 8)
	k := testKernel(t, 2)

	sel, err := sparsify.FPS(feats.X, 4)
	require.NoError(t, err)
	sp, err := NewSparsePoints(feats, sel.Indices)
	require.NoError(t, err)
	m, err := k.Compute(feats, sp.Features())
	require.NoError(t, err)
	require.NotNil(t, m.KForce)

	// Consistent noiseless targets from a known weight vector.
	wTrue := mat.NewVecDense(4, []float64{0.4, -0.1, 0.25, -0.6})
	var e, f mat.VecDense
	e.MulVec(m.KEnergy, wTrue)
	f.MulVec(m.KForce, wTrue)

	baselineSums := testBaseline.StructureSums(structures)
	energies := make([]float64, len(structures))
	for i := range energies {
		energies[i] = e.AtVec(i) + baselineSums[i]
	}
	forces := append([]float64(nil), f.RawVector().Data...)

	weights, err := FitSimple(structures, m.KSparse, energies, m.KEnergy, 1e-5, testBaseline, forces, m.KForce, 1e-5,
		func(o *FitOptions) { o.Logger = quietLogger() })
	require.NoError(t, err)

	model, err := NewKRR(k, sp, testBaseline, weights, "")
	require.NoError(t, err)

	predE, err := model.Predict(structures, m.KEnergy)
	require.NoError(t, err)
	predF, err := model.PredictForces(m.KForce)
	require.NoError(t, err)

	for i := range energies {
		assert.InDelta(t, energies[i], predE[i], 1e-4)
	}
	assert.Less(t, RMSE(predF, forces), 1e-4)
}

func TestSubselectionEquivalence(t *testing.T) {
	structures, feats, energies := trainingSet(t)
	k := testKernel(t, 2)

	cols := []int{0, 2, 3, 5, 7}

	// Path A: subselect through the feature-matrix API.
	sub, err := feats.Subset(cols)
	require.NoError(t, err)

	// Path B: build the restricted matrix directly.
	rows := feats.NumRows()
	manual := mat.NewDense(rows, len(cols), nil)
	for i := 0; i < rows; i++ {
		for j, c := range cols {
			manual.Set(i, j, feats.X.At(i, c))
		}
	}
	direct := &descriptor.FeatureMatrix{X: manual, StructureSizes: feats.StructureSizes}

	fit := func(fm *descriptor.FeatureMatrix) []float64 {
		sel, err := sparsify.FPS(fm.X, 3)
		require.NoError(t, err)
		sp, err := NewSparsePoints(fm, sel.Indices)
		require.NoError(t, err)
		m, err := k.Compute(fm, sp.Features())
		require.NoError(t, err)
		w, err := FitSimple(structures, m.KSparse, energies, m.KEnergy, 1e-3, testBaseline, nil, nil, 0,
			func(o *FitOptions) { o.Logger = quietLogger() })
		require.NoError(t, err)
		pred, err := mustModel(t, k, sp, w).Predict(structures, m.KEnergy)
		require.NoError(t, err)
		return pred
	}

	assert.Equal(t, fit(sub), fit(direct), "restricted features must fit and predict identically either way")
}

func mustModel(t *testing.T, k *kernel.Kernel, sp *SparsePoints, w []float64) *KRR {
	t.Helper()
	m, err := NewKRR(k, sp, testBaseline, w, "")
	require.NoError(t, err)
	return m
}

func TestKRRPersistenceRoundTrip(t *testing.T) {
	structures, feats, energies := trainingSet(t)
	k := testKernel(t, 2)

	sel, err := sparsify.FPS(feats.X, 3)
	require.NoError(t, err)
	sp, err := NewSparsePoints(feats, sel.Indices)
	require.NoError(t, err)
	m, err := k.Compute(feats, sp.Features())
	require.NoError(t, err)
	weights, err := FitSimple(structures, m.KSparse, energies, m.KEnergy, 1e-3, testBaseline, nil, nil, 0,
		func(o *FitOptions) { o.Logger = quietLogger() })
	require.NoError(t, err)

	model, err := NewKRR(k, sp, testBaseline, weights, "round trip")
	require.NoError(t, err)

	for _, tt := range []struct {
		name      string
		threshold int
	}{
		{name: "inline arrays", threshold: persistence.DefaultArrayThreshold},
		{name: "sidecar arrays", threshold: 8},
	} {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "model.json")
			saver := persistence.NewSaver(persistence.WithArrayThreshold(tt.threshold))
			require.NoError(t, saver.Save(path, model))

			e, err := saver.Load(path)
			require.NoError(t, err)
			got, ok := e.(*KRR)
			require.True(t, ok)
			defer got.Close()

			assert.InDeltaSlice(t, model.Weights(), got.Weights(), 1e-15)
			assert.Equal(t, model.SelfContributions(), got.SelfContributions())
			assert.Equal(t, model.Description(), got.Description())
			assert.Equal(t, model.SparsePoints().Indices(), got.SparsePoints().Indices())
			assert.True(t, mat.EqualApprox(model.SparsePoints().Features(), got.SparsePoints().Features(), 1e-15))
			require.NotNil(t, got.Kernel())
			assert.Equal(t, model.Kernel().Zeta(), got.Kernel().Zeta())
			assert.Equal(t, model.Kernel().Target(), got.Kernel().Target())
			assert.Equal(t, model.Kernel().Descriptor().InitParams(), got.Kernel().Descriptor().InitParams())

			pred, err := got.Predict(structures, m.KEnergy)
			require.NoError(t, err)
			want, err := model.Predict(structures, m.KEnergy)
			require.NoError(t, err)
			assert.InDeltaSlice(t, want, pred, 1e-12)
		})
	}
}

func TestPredictShapeErrors(t *testing.T) {
	model := &KRR{weights: []float64{1, 2}, selfContributions: testBaseline}

	_, err := model.Predict(nil, mat.NewDense(1, 3, nil))
	var se *ShapeError
	require.ErrorAs(t, err, &se)

	_, err = model.PredictForces(mat.NewDense(3, 5, nil))
	assert.ErrorAs(t, err, &se)
}

func TestResiduals(t *testing.T) {
	pred := []float64{1, 2, 3}
	ref := []float64{1, 2, 5}
	assert.InDelta(t, 2.0/1.7320508075688772, RMSE(pred, ref), 1e-12)

	structures := []*structure.Structure{
		{Positions: make([][3]float64, 1), Species: []int{1}},
		{Positions: make([][3]float64, 1), Species: []int{1}},
		{Positions: make([][3]float64, 2), Species: []int{1, 1}},
	}
	perAtom := PerAtomRMSE(pred, ref, structures)
	assert.InDelta(t, 1.0/1.7320508075688772, perAtom, 1e-12)

	assert.True(t, math.IsNaN(RMSE(nil, nil)), "empty input yields NaN")
}
