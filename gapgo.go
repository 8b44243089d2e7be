package gapgo

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/gapgo/descriptor"
	"github.com/hupe1980/gapgo/gap"
	"github.com/hupe1980/gapgo/kernel"
	"github.com/hupe1980/gapgo/sparsify"
	"github.com/hupe1980/gapgo/structure"
)

// Fitter runs the sparse GAP pipeline: select reference environments,
// assemble kernel matrices, solve the regularized regression, and wrap the
// result as a KRR model.
type Fitter struct {
	kern     *kernel.Kernel
	nSparse  int
	baseline gap.Baseline
	opts     options
}

// NewFitter creates a Fitter for the given kernel configuration.
// nSparse is the number of reference environments to select; baseline maps
// each species to its isolated-atom energy.
func NewFitter(kern *kernel.Kernel, nSparse int, baseline gap.Baseline, optFns ...Option) (*Fitter, error) {
	if nSparse <= 0 {
		return nil, fmt.Errorf("gapgo: number of sparse points must be positive, got %d", nSparse)
	}
	return &Fitter{
		kern:     kern,
		nSparse:  nSparse,
		baseline: baseline,
		opts:     applyOptions(optFns),
	}, nil
}

// Kernel returns the kernel configuration.
func (f *Fitter) Kernel() *kernel.Kernel { return f.kern }

// Sparsify selects reference environments from the feature matrix by
// farthest point sampling.
func (f *Fitter) Sparsify(ctx context.Context, feats *descriptor.FeatureMatrix) (*gap.SparsePoints, *sparsify.Selection, error) {
	start := time.Now()

	sel, err := sparsify.FPS(feats.X, f.nSparse,
		sparsify.WithStart(f.opts.startIndex),
		sparsify.WithMethod(f.opts.method),
	)
	if err != nil {
		f.opts.metricsCollector.RecordSparsify(f.nSparse, time.Since(start), err)
		f.opts.logger.LogSparsify(ctx, f.nSparse, 0, err)
		return nil, nil, err
	}

	points, err := gap.NewSparsePoints(feats, sel.Indices)
	f.opts.metricsCollector.RecordSparsify(f.nSparse, time.Since(start), err)
	f.opts.logger.LogSparsify(ctx, f.nSparse, sel.CoveringRadius(), err)
	if err != nil {
		return nil, nil, err
	}
	return points, sel, nil
}

// Kernels assembles the sparse, energy and force kernel matrices for the
// feature matrix against the selected reference environments.
func (f *Fitter) Kernels(ctx context.Context, feats *descriptor.FeatureMatrix, points *gap.SparsePoints) (*kernel.Matrices, error) {
	start := time.Now()

	km, err := f.kern.Compute(feats, points.Features())

	eRows, fRows := 0, 0
	if km != nil {
		eRows, _ = km.KEnergy.Dims()
		if km.KForce != nil {
			fRows, _ = km.KForce.Dims()
		}
	}
	f.opts.metricsCollector.RecordKernels(eRows+fRows, time.Since(start), err)
	f.opts.logger.LogKernels(ctx, eRows, fRows, points.Len(), err)
	return km, err
}

// Fit runs the full pipeline on a training set and returns the fitted
// model. Reference energies are read from the configured energy parameter;
// forces are included when a force parameter name is set and the feature
// matrix carries gradients.
func (f *Fitter) Fit(ctx context.Context, structures []*structure.Structure, feats *descriptor.FeatureMatrix) (*gap.KRR, error) {
	if len(structures) == 0 {
		return nil, ErrNoTrainingData
	}
	if err := feats.Validate(); err != nil {
		return nil, err
	}
	if err := f.kern.Descriptor().Species().Check(structures); err != nil {
		return nil, err
	}

	energies, err := structure.Energies(structures, f.opts.energyName)
	if err != nil {
		return nil, err
	}

	var forces []float64
	if f.opts.forceName != "" {
		if !feats.HasGradients() {
			return nil, ErrGradientsUnavailable
		}
		forces, err = structure.Forces(structures, f.opts.forceName)
		if err != nil {
			return nil, err
		}
	}

	points, _, err := f.Sparsify(ctx, feats)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	km, err := f.Kernels(ctx, feats, points)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	var kForce = km.KForce
	if forces == nil {
		kForce = nil
	}
	weights, err := gap.FitSimple(structures, km.KSparse, energies, km.KEnergy,
		f.opts.energyReg, f.baseline, forces, kForce, f.opts.forceReg,
		func(o *gap.FitOptions) {
			o.Jitter = f.opts.jitter
			o.Logger = f.opts.logger.Logger
		})
	f.opts.metricsCollector.RecordFit(points.Len(), time.Since(start), err)
	f.opts.logger.LogFit(ctx, len(structures), points.Len(), err)
	if err != nil {
		return nil, err
	}

	return gap.NewKRR(f.kern, points, f.baseline, weights, f.opts.description)
}

// Prediction holds model outputs for a structure set.
type Prediction struct {
	// Energies are total energies per structure, baseline included.
	Energies []float64

	// Forces are flattened per-atom force components (3 per atom), present
	// only when the feature matrix carries gradients.
	Forces []float64
}

// Predict evaluates a fitted model on new structures. The feature matrix
// must come from the same descriptor configuration the model was fitted
// with.
func Predict(ctx context.Context, model *gap.KRR, structures []*structure.Structure, feats *descriptor.FeatureMatrix, optFns ...Option) (*Prediction, error) {
	opts := applyOptions(optFns)
	start := time.Now()

	pred, err := predict(model, structures, feats)
	opts.metricsCollector.RecordPredict(len(structures), time.Since(start), err)
	opts.logger.LogPredict(ctx, len(structures), pred != nil && pred.Forces != nil, err)
	return pred, err
}

func predict(model *gap.KRR, structures []*structure.Structure, feats *descriptor.FeatureMatrix) (*Prediction, error) {
	if len(structures) == 0 {
		return nil, ErrNoTrainingData
	}
	if err := feats.Validate(); err != nil {
		return nil, err
	}

	km, err := model.Kernel().Compute(feats, model.SparsePoints().Features())
	if err != nil {
		return nil, err
	}

	energies, err := model.Predict(structures, km.KEnergy)
	if err != nil {
		return nil, err
	}

	pred := &Prediction{Energies: energies}
	if km.KForce != nil {
		pred.Forces, err = model.PredictForces(km.KForce)
		if err != nil {
			return nil, err
		}
	}
	return pred, nil
}
