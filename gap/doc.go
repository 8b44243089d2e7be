// Package gap fits and evaluates sparse kernel ridge regression potentials
// (Gaussian Approximation Potentials).
//
// The fit subtracts a per-species energy baseline, scales energy and force
// kernel blocks by their regularizers, stacks them with the Cholesky factor
// of the sparse-point kernel as ridge rows, and solves the combined system
// by QR least squares. The fitted model carries everything needed to predict
// and to round-trip through the persistence protocol.
package gap
