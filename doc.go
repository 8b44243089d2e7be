// Package gapgo fits sparse Gaussian approximation potentials from atomic
// structure datasets.
//
// The pipeline has four stages, each usable on its own:
//
//   - descriptor: configuration, sizing and feature indexing for
//     spherical-invariant descriptors computed by an external engine
//   - sparsify: farthest point sampling of reference environments
//   - kernel: power kernels between environments and sparse points
//   - gap: the regularized sparse kernel regression fit and the fitted
//     KRR model
//
// The Fitter type wires the stages together:
//
//	kern, err := kernel.New(desc, func(o *kernel.Options) { o.Zeta = 2 })
//	fitter, err := gapgo.NewFitter(kern, 500, baseline,
//	    gapgo.WithEnergyRegularizer(1e-3),
//	    gapgo.WithForceParameterName("forces"),
//	)
//	model, err := fitter.Fit(ctx, structures, features)
//
// Fitted models round-trip through the persistence package and can be
// packed into a single archive and published to a blobstore:
//
//	err = gapgo.SaveModel("model.json", model)
//	err = gapgo.PublishModel(ctx, store, "potentials/si.tar.zst", "model.json")
package gapgo
