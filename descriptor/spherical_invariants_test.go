package descriptor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/gapgo/persistence"
)

func mustNew(t *testing.T, nMax, lMax int, optFns ...func(o *Options)) *SphericalInvariants {
	t.Helper()
	s, err := New(3.5, 0.5, nMax, lMax, optFns...)
	require.NoError(t, err)
	return s
}

func TestNewUnknownSoapType(t *testing.T) {
	_, err := New(3.5, 0.5, 4, 3, func(o *Options) {
		o.SoapType = "TriSpectrum"
	})
	var ute *UnknownSoapTypeError
	require.ErrorAs(t, err, &ute)
	assert.Equal(t, "TriSpectrum", ute.SoapType)
}

func TestRadialSpectrumForcesZeroAngular(t *testing.T) {
	s := mustNew(t, 4, 6, func(o *Options) { o.SoapType = RadialSpectrum })
	assert.Equal(t, 0, s.MaxAngular())
	assert.Equal(t, 0, s.Hypers()["max_angular"])
}

func TestOptimizationFallbacks(t *testing.T) {
	tests := []struct {
		name string
		args map[string]any
		want map[string]any
	}{
		{
			name: "absent",
			args: nil,
			want: map[string]any{"type": "None"},
		},
		{
			name: "explicit none",
			args: map[string]any{"type": "None"},
			want: map[string]any{"type": "None"},
		},
		{
			name: "spline with accuracy",
			args: map[string]any{"type": "Spline", "accuracy": 1e-8},
			want: map[string]any{"type": "Spline", "accuracy": 1e-8},
		},
		{
			name: "spline default accuracy",
			args: map[string]any{"type": "Spline"},
			want: map[string]any{"type": "Spline", "accuracy": 1e-5},
		},
		{
			name: "unknown type falls back",
			args: map[string]any{"type": "Quadrature"},
			want: map[string]any{"type": "None"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := mustNew(t, 4, 3, func(o *Options) { o.OptimizationArgs = tt.args })
			rc := s.Hypers()["radial_contribution"].(map[string]any)
			assert.Equal(t, tt.want, rc["optimization"])
		})
	}
}

func TestHyperparametersUpdateAllowList(t *testing.T) {
	h := Hyperparameters{"max_radial": 4}
	got := h.Update(map[string]any{
		"max_angular":   3,
		"future_option": true, // unrecognized, dropped
	})

	assert.Equal(t, Hyperparameters{"max_radial": 4, "max_angular": 3}, got)
	assert.Equal(t, Hyperparameters{"max_radial": 4}, h, "receiver must not change")
}

// angularTriples counts (l1, l2, l3) combinations within the triangle
// inequality up to lMax, optionally restricted to even l1+l2+l3.
func angularTriples(lMax int, evenOnly bool) int {
	count := 0
	for l1 := 0; l1 <= lMax; l1++ {
		for l2 := 0; l2 <= lMax; l2++ {
			for l3 := 0; l3 <= lMax; l3++ {
				if l3 < l1-l2 || l3 < l2-l1 || l3 > l1+l2 {
					continue
				}
				if evenOnly && (l1+l2+l3)%2 != 0 {
					continue
				}
				count++
			}
		}
	}
	return count
}

func TestNumCoefficientsMatchesEnumeration(t *testing.T) {
	triples := []struct{ nSpecies, nMax, lMax int }{
		{1, 1, 0},
		{1, 4, 3},
		{2, 3, 2},
		{3, 2, 5},
		{4, 5, 1},
	}

	for _, tr := range triples {
		t.Run(fmt.Sprintf("n%d_nmax%d_lmax%d", tr.nSpecies, tr.nMax, tr.lMax), func(t *testing.T) {
			species := make([]int, tr.nSpecies)
			for i := range species {
				species[i] = i + 1
			}

			radial := mustNew(t, tr.nMax, tr.lMax, func(o *Options) { o.SoapType = RadialSpectrum })
			assert.Equal(t, tr.nSpecies*tr.nMax, radial.NumCoefficients(tr.nSpecies))

			power := mustNew(t, tr.nMax, tr.lMax, func(o *Options) { o.SoapType = PowerSpectrum })
			im, err := power.IndexMap(species)
			require.NoError(t, err)
			assert.Equal(t, len(im), power.NumCoefficients(tr.nSpecies),
				"power spectrum closed form must equal index map length")

			n3 := tr.nSpecies * tr.nSpecies * tr.nSpecies * tr.nMax * tr.nMax * tr.nMax

			biAsym := mustNew(t, tr.nMax, tr.lMax, func(o *Options) {
				o.SoapType = BiSpectrum
				o.InversionSymmetry = false
			})
			assert.Equal(t, n3*angularTriples(tr.lMax, false), biAsym.NumCoefficients(tr.nSpecies))

			biSym := mustNew(t, tr.nMax, tr.lMax, func(o *Options) {
				o.SoapType = BiSpectrum
				o.InversionSymmetry = true
			})
			assert.Equal(t, n3*angularTriples(tr.lMax, true), biSym.NumCoefficients(tr.nSpecies))
		})
	}
}

func TestKeysCanonicalOrder(t *testing.T) {
	power := mustNew(t, 2, 1)
	assert.Equal(t, [][]int{{1, 1}, {1, 2}, {2, 2}}, power.Keys([]int{1, 2}))

	radial := mustNew(t, 2, 1, func(o *Options) { o.SoapType = RadialSpectrum })
	assert.Equal(t, [][]int{{1}, {2}}, radial.Keys([]int{1, 2}))

	bi := mustNew(t, 2, 1, func(o *Options) { o.SoapType = BiSpectrum })
	assert.Equal(t, [][]int{{1, 1, 1}, {1, 1, 2}, {1, 2, 2}, {2, 2, 2}}, bi.Keys([]int{1, 2}))
}

func TestIndexMapOrdering(t *testing.T) {
	s := mustNew(t, 2, 1)
	im, err := s.IndexMap([]int{2, 1}) // unsorted input, canonicalized
	require.NoError(t, err)

	require.Len(t, im, 24)
	assert.Equal(t, FeatureIndex{A: 1, B: 1, N1: 0, N2: 0, L: 0}, im[0])
	assert.Equal(t, FeatureIndex{A: 1, B: 1, N1: 0, N2: 0, L: 1}, im[1])
	assert.Equal(t, FeatureIndex{A: 1, B: 1, N1: 0, N2: 1, L: 0}, im[2])
	assert.Equal(t, FeatureIndex{A: 1, B: 2, N1: 0, N2: 0, L: 0}, im[8])
	assert.Equal(t, FeatureIndex{A: 2, B: 2, N1: 1, N2: 1, L: 1}, im[23])
}

func TestIndexMapRadialSpectrumUnsupported(t *testing.T) {
	s := mustNew(t, 2, 1, func(o *Options) { o.SoapType = RadialSpectrum })
	_, err := s.IndexMap([]int{1})
	assert.Error(t, err)
}

func TestSubselectionValidate(t *testing.T) {
	sel := &Subselection{A: []int{1}, B: []int{2}, N1: []int{0}, N2: []int{1}, L: []int{1}}
	require.NoError(t, sel.Validate(2, 1))

	outOfRange := &Subselection{A: []int{1}, B: []int{2}, N1: []int{5}, N2: []int{0}, L: []int{0}}
	var se *SubselectionError
	assert.ErrorAs(t, outOfRange.Validate(2, 1), &se)

	unordered := &Subselection{A: []int{2}, B: []int{1}, N1: []int{0}, N2: []int{0}, L: []int{0}}
	assert.Error(t, unordered.Validate(2, 1))

	ragged := &Subselection{A: []int{1, 1}, B: []int{1}, N1: []int{0}, N2: []int{0}, L: []int{0}}
	assert.Error(t, ragged.Validate(2, 1))
}

func TestSubselectionResolve(t *testing.T) {
	s := mustNew(t, 2, 1)
	im, err := s.IndexMap([]int{1, 2})
	require.NoError(t, err)

	sel := &Subselection{
		A:  []int{1, 2},
		B:  []int{1, 2},
		N1: []int{0, 1},
		N2: []int{0, 1},
		L:  []int{0, 1},
	}
	cols, err := sel.Resolve(im)
	require.NoError(t, err)
	require.Len(t, cols, 2)

	for i, c := range cols {
		assert.Equal(t, FeatureIndex{A: sel.A[i], B: sel.B[i], N1: sel.N1[i], N2: sel.N2[i], L: sel.L[i]}, im[c])
	}

	missing := &Subselection{A: []int{9}, B: []int{9}, N1: []int{0}, N2: []int{0}, L: []int{0}}
	_, err = missing.Resolve(im)
	assert.Error(t, err)
}

func TestPersistenceRoundTrip(t *testing.T) {
	s := mustNew(t, 4, 3, func(o *Options) {
		o.Species = UserDefined(1, 8)
		o.ComputeGradients = true
		o.OptimizationArgs = map[string]any{"type": "Spline", "accuracy": 1e-7}
		o.Subselection = &Subselection{A: []int{1}, B: []int{8}, N1: []int{0}, N2: []int{2}, L: []int{3}}
	})

	rec, err := persistence.ToRecord(s)
	require.NoError(t, err)
	assert.Equal(t, "SphericalInvariants", rec.ClassName)

	e, err := persistence.FromRecord(rec)
	require.NoError(t, err)
	got, ok := e.(*SphericalInvariants)
	require.True(t, ok)

	assert.Equal(t, s.MaxRadial(), got.MaxRadial())
	assert.Equal(t, s.MaxAngular(), got.MaxAngular())
	assert.Equal(t, s.SoapType(), got.SoapType())
	assert.Equal(t, s.Species(), got.Species())
	assert.True(t, got.ComputeGradients())
	assert.Equal(t, s.Subselection(), got.Subselection())
	assert.Equal(t, s.InitParams(), got.InitParams())
}
