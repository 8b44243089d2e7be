package gap

import (
	"math"

	"github.com/hupe1980/gapgo/structure"
)

// Residual diagnostics. Pure post-fit reporting; nothing here feeds back
// into the fitting contract.

// RMSE returns the root mean squared error between predictions and
// reference values.
func RMSE(pred, ref []float64) float64 {
	if len(pred) == 0 || len(pred) != len(ref) {
		return math.NaN()
	}
	sum := 0.0
	for i := range pred {
		d := pred[i] - ref[i]
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(pred)))
}

// PerAtomRMSE returns the RMSE of per-atom energy residuals: each
// structure's residual is divided by its atom count first.
func PerAtomRMSE(pred, ref []float64, structures []*structure.Structure) float64 {
	if len(pred) == 0 || len(pred) != len(ref) || len(pred) != len(structures) {
		return math.NaN()
	}
	sum := 0.0
	for i := range pred {
		d := (pred[i] - ref[i]) / float64(structures[i].NumAtoms())
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(pred)))
}
