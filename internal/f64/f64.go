// Package f64 provides float64 vector primitives shared by the sparsify and
// kernel packages. Descriptor features are double precision end to end, so
// unlike typical search workloads there is no float32 fast path here.
package f64

import "math"

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float64) float64 {
	var ret float64
	n := len(a) &^ 3
	for i := 0; i < n; i += 4 {
		ret += a[i]*b[i] + a[i+1]*b[i+1] + a[i+2]*b[i+2] + a[i+3]*b[i+3]
	}
	for i := n; i < len(a); i++ {
		ret += a[i] * b[i]
	}
	return ret
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
// Assumes vectors are the same length (caller's responsibility).
func SquaredL2(a, b []float64) float64 {
	var ret float64
	for i := range a {
		d := a[i] - b[i]
		ret += d * d
	}
	return ret
}

// Norm returns the L2 norm of v.
func Norm(v []float64) float64 {
	return math.Sqrt(Dot(v, v))
}

// ScaleInPlace multiplies all elements of a by scalar.
func ScaleInPlace(a []float64, scalar float64) {
	for i := range a {
		a[i] *= scalar
	}
}

// NormalizeInPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeInPlace(v []float64) bool {
	if len(v) == 0 {
		return false
	}
	norm2 := Dot(v, v)
	if norm2 == 0 {
		return false
	}
	ScaleInPlace(v, 1/math.Sqrt(norm2))
	return true
}

// AxpyInPlace computes y += alpha*x.
// Assumes vectors are the same length (caller's responsibility).
func AxpyInPlace(y []float64, alpha float64, x []float64) {
	for i := range y {
		y[i] += alpha * x[i]
	}
}
