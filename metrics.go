package gapgo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting pipeline stage
// timings. Implement this interface to integrate with monitoring systems
// like Prometheus.
//
// Example Prometheus integration:
//
//	type PrometheusCollector struct {
//	    fitHistogram prometheus.Histogram
//	}
//
//	func (p *PrometheusCollector) RecordFit(nSparse int, duration time.Duration, err error) {
//	    p.fitHistogram.Observe(duration.Seconds())
//	    // ... record error state, etc.
//	}
type MetricsCollector interface {
	// RecordSparsify is called after sparse point selection.
	// nSelect is the number of points selected, duration is the time taken,
	// err is nil if successful.
	RecordSparsify(nSelect int, duration time.Duration, err error)

	// RecordKernels is called after kernel matrix assembly.
	// rows is the total number of kernel rows built.
	RecordKernels(rows int, duration time.Duration, err error)

	// RecordFit is called after the regression solve.
	// nSparse is the size of the weight vector.
	RecordFit(nSparse int, duration time.Duration, err error)

	// RecordPredict is called after each prediction pass.
	// nStructures is the number of structures evaluated.
	RecordPredict(nStructures int, duration time.Duration, err error)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordSparsify(int, time.Duration, error) {}
func (NoopMetricsCollector) RecordKernels(int, time.Duration, error)  {}
func (NoopMetricsCollector) RecordFit(int, time.Duration, error)      {}
func (NoopMetricsCollector) RecordPredict(int, time.Duration, error)  {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	SparsifyCount      atomic.Int64
	SparsifyErrors     atomic.Int64
	SparsifyTotalNanos atomic.Int64
	KernelCount        atomic.Int64
	KernelErrors       atomic.Int64
	KernelTotalNanos   atomic.Int64
	FitCount           atomic.Int64
	FitErrors          atomic.Int64
	FitTotalNanos      atomic.Int64
	PredictCount       atomic.Int64
	PredictErrors      atomic.Int64
	PredictTotalNanos  atomic.Int64
}

// RecordSparsify implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSparsify(nSelect int, duration time.Duration, err error) {
	b.SparsifyCount.Add(1)
	b.SparsifyTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.SparsifyErrors.Add(1)
	}
}

// RecordKernels implements MetricsCollector.
func (b *BasicMetricsCollector) RecordKernels(rows int, duration time.Duration, err error) {
	b.KernelCount.Add(1)
	b.KernelTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.KernelErrors.Add(1)
	}
}

// RecordFit implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFit(nSparse int, duration time.Duration, err error) {
	b.FitCount.Add(1)
	b.FitTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.FitErrors.Add(1)
	}
}

// RecordPredict implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPredict(nStructures int, duration time.Duration, err error) {
	b.PredictCount.Add(1)
	b.PredictTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.PredictErrors.Add(1)
	}
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		SparsifyCount:      b.SparsifyCount.Load(),
		SparsifyErrors:     b.SparsifyErrors.Load(),
		SparsifyTotalNanos: b.SparsifyTotalNanos.Load(),
		KernelCount:        b.KernelCount.Load(),
		KernelErrors:       b.KernelErrors.Load(),
		KernelTotalNanos:   b.KernelTotalNanos.Load(),
		FitCount:           b.FitCount.Load(),
		FitErrors:          b.FitErrors.Load(),
		FitTotalNanos:      b.FitTotalNanos.Load(),
		PredictCount:       b.PredictCount.Load(),
		PredictErrors:      b.PredictErrors.Load(),
		PredictTotalNanos:  b.PredictTotalNanos.Load(),
	}
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	SparsifyCount      int64
	SparsifyErrors     int64
	SparsifyTotalNanos int64
	KernelCount        int64
	KernelErrors       int64
	KernelTotalNanos   int64
	FitCount           int64
	FitErrors          int64
	FitTotalNanos      int64
	PredictCount       int64
	PredictErrors      int64
	PredictTotalNanos  int64
}
