// Package descriptor configures and indexes SOAP-style atomic-environment
// descriptors.
//
// The numeric feature math itself is delegated to an external engine; this
// package owns the canonical hyperparameter set, the species-key scheme, the
// deterministic flat-feature index enumeration, closed-form descriptor sizes,
// and coefficient subselection. Everything downstream (sparsification,
// kernels, fitting) addresses features through the ordering defined here.
package descriptor
