package gapgo

import (
	"log/slog"

	"github.com/hupe1980/gapgo/sparsify"
)

type options struct {
	method           sparsify.Method
	startIndex       int
	energyName       string
	forceName        string
	energyReg        float64
	forceReg         float64
	jitter           float64
	description      string
	logger           *Logger
	metricsCollector MetricsCollector
}

// Option configures Fitter behavior.
type Option func(*options)

// WithSparsifyMethod selects the farthest point sampling variant.
//
// MethodVoronoi produces index-identical selections to MethodSimple but
// skips most distance evaluations once the Voronoi cells get tight.
func WithSparsifyMethod(m sparsify.Method) Option {
	return func(o *options) {
		o.method = m
	}
}

// WithStartIndex sets the first selected environment row.
//
// Selection is deterministic given the start index; refitting with the same
// data and start reproduces the model exactly.
func WithStartIndex(i int) Option {
	return func(o *options) {
		o.startIndex = i
	}
}

// WithEnergyParameterName sets the structure property holding the total
// energy. Default: "energy".
func WithEnergyParameterName(name string) Option {
	return func(o *options) {
		o.energyName = name
	}
}

// WithForceParameterName sets the per-atom property holding forces and
// enables the force block of the fit. Empty (the default) means an
// energy-only fit.
func WithForceParameterName(name string) Option {
	return func(o *options) {
		o.forceName = name
	}
}

// WithEnergyRegularizer sets the energy regularizer. Smaller values trust
// the energy block more. Default: 1e-3.
func WithEnergyRegularizer(reg float64) Option {
	return func(o *options) {
		o.energyReg = reg
	}
}

// WithForceRegularizer sets the force regularizer. Default: 1e-2.
func WithForceRegularizer(reg float64) Option {
	return func(o *options) {
		o.forceReg = reg
	}
}

// WithJitter sets the starting diagonal shift applied to the sparse kernel
// before Cholesky factorization. Default: 1e-10.
func WithJitter(jitter float64) Option {
	return func(o *options) {
		o.jitter = jitter
	}
}

// WithDescription sets the free-text description stored in the fitted model.
func WithDescription(desc string) Option {
	return func(o *options) {
		o.description = desc
	}
}

// WithMetricsCollector configures a metrics collector for stage timings.
//
// Example with BasicMetricsCollector:
//
//	metrics := &gapgo.BasicMetricsCollector{}
//	fitter, _ := gapgo.NewFitter(kern, 500, baseline, gapgo.WithMetricsCollector(metrics))
//	// ... fit ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging for pipeline stages.
//
// Example with JSON logging:
//
//	logger := gapgo.NewJSONLogger(slog.LevelInfo)
//	fitter, _ := gapgo.NewFitter(kern, 500, baseline, gapgo.WithLogger(logger))
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		method:           sparsify.MethodSimple,
		energyName:       "energy",
		energyReg:        1e-3,
		forceReg:         1e-2,
		jitter:           1e-10,
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}
