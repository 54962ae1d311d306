package pointgrid

import (
	"log/slog"

	"github.com/hupe1980/pointgrid/internal/assemble"
	"github.com/hupe1980/pointgrid/internal/parallel"
	"github.com/hupe1980/pointgrid/resource"
)

type options struct {
	logger           *Logger
	metricsCollector MetricsCollector
	resources        *resource.Controller
	workers          int
	grain            int
}

// Option configures BuildSpatialHashTable, FixedRadiusSearch and Searcher.
type Option func(*options)

// WithLogger configures structured logging for builds and searches.
// Pass nil to disable logging.
//
// Example with JSON logging:
//
//	logger := pointgrid.NewJSONLogger(slog.LevelDebug)
//	tbl, _ := pointgrid.BuildSpatialHashTable(ctx, pts, 0.1, splits, 1.0/64, 1<<20, pointgrid.WithLogger(logger))
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

// WithMetricsCollector configures a metrics collector.
// Pass nil to disable metrics collection.
//
//	metrics := &pointgrid.BasicMetricsCollector{}
//	s := pointgrid.NewSearcher[float32, int32](cfg, pointgrid.WithMetricsCollector(metrics))
//	// ... use s ...
//	stats := metrics.GetStats()
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithResourceController bounds the working memory and concurrency of calls.
// A call whose table or neighbor buffers do not fit the memory budget fails
// with ErrResourceLimitExceeded.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.resources = rc
	}
}

// WithWorkers sets the number of goroutines used by the parallel passes.
// Values <= 0 use GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithGrainSize sets how many points or queries one task processes.
// Values <= 0 use the default of 1024.
func WithGrainSize(n int) Option {
	return func(o *options) {
		o.grain = n
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

func (o *options) assembler() *assemble.Assembler {
	return assemble.New(parallel.Runner{Workers: o.workers, Grain: o.grain})
}
