package descriptor

import "fmt"

// FeatureIndex locates one power-spectrum coefficient: the species pair
// (A ≤ B), the two radial indices and the angular index.
type FeatureIndex struct {
	A  int `json:"a"`
	B  int `json:"b"`
	N1 int `json:"n1"`
	N2 int `json:"n2"`
	L  int `json:"l"`
}

// PowerSpectrumIndexMap enumerates the flat feature ordering for the given
// species pairs: species pair outer, then n1, n2, l inner, with l running
// 0..lMax inclusive. Coefficient subselection lists index into exactly this
// enumeration, so the order is load-bearing and must never change.
func PowerSpectrumIndexMap(pairs [][2]int, nMax, lMax int) []FeatureIndex {
	out := make([]FeatureIndex, 0, len(pairs)*nMax*nMax*(lMax+1))
	for _, p := range pairs {
		for n1 := 0; n1 < nMax; n1++ {
			for n2 := 0; n2 < nMax; n2++ {
				for l := 0; l <= lMax; l++ {
					out = append(out, FeatureIndex{A: p[0], B: p[1], N1: n1, N2: n2, L: l})
				}
			}
		}
	}
	return out
}

// Subselection restricts the computed coefficients to an explicit list of
// power-spectrum feature records. The five columns are parallel: entry i is
// the coefficient (A[i], B[i], N1[i], N2[i], L[i]). Feature-selection filters
// emit this shape.
type Subselection struct {
	A  []int `json:"a"`
	B  []int `json:"b"`
	N1 []int `json:"n1"`
	N2 []int `json:"n2"`
	L  []int `json:"l"`
}

// Len returns the number of selected coefficients.
func (s *Subselection) Len() int { return len(s.A) }

// Validate checks column lengths and index bounds against the radial and
// angular truncation.
func (s *Subselection) Validate(nMax, lMax int) error {
	n := len(s.A)
	if len(s.B) != n || len(s.N1) != n || len(s.N2) != n || len(s.L) != n {
		return fmt.Errorf("descriptor: coefficient subselection columns have unequal lengths (%d/%d/%d/%d/%d)",
			len(s.A), len(s.B), len(s.N1), len(s.N2), len(s.L))
	}
	for i := 0; i < n; i++ {
		if s.A[i] > s.B[i] {
			return &SubselectionError{Entry: i, Reason: fmt.Sprintf("species pair (%d, %d) is not ordered", s.A[i], s.B[i])}
		}
		if s.N1[i] < 0 || s.N1[i] >= nMax || s.N2[i] < 0 || s.N2[i] >= nMax {
			return &SubselectionError{Entry: i, Reason: fmt.Sprintf("radial indices (%d, %d) outside [0, %d)", s.N1[i], s.N2[i], nMax)}
		}
		if s.L[i] < 0 || s.L[i] > lMax {
			return &SubselectionError{Entry: i, Reason: fmt.Sprintf("angular index %d outside [0, %d]", s.L[i], lMax)}
		}
	}
	return nil
}

// Resolve maps every selected record onto its flat position in the full
// enumeration. Records absent from the map are bounds errors.
func (s *Subselection) Resolve(indexMap []FeatureIndex) ([]int, error) {
	pos := make(map[FeatureIndex]int, len(indexMap))
	for i, f := range indexMap {
		pos[f] = i
	}
	out := make([]int, s.Len())
	for i := range out {
		f := FeatureIndex{A: s.A[i], B: s.B[i], N1: s.N1[i], N2: s.N2[i], L: s.L[i]}
		j, ok := pos[f]
		if !ok {
			return nil, &SubselectionError{Entry: i, Reason: fmt.Sprintf("%+v not in enumerated feature map", f)}
		}
		out[i] = j
	}
	return out, nil
}
