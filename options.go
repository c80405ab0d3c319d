package tindex

import (
	"github.com/hupe1980/tindex/codec"
	"github.com/hupe1980/tindex/internal/index"
)

// DefaultCatalogTable is the kv table holding index definitions.
const DefaultCatalogTable = "__tindex_catalog"

type options struct {
	codec            codec.Codec
	metricsCollector MetricsCollector
	logger           *Logger
	floatTolerance   float64
	unionLimit       int
	catalogTable     string
}

func defaultOptions() options {
	return options{
		codec:            codec.Default,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
		unionLimit:       index.DefaultUnionLimit,
		catalogTable:     DefaultCatalogTable,
	}
}

// Option configures Open.
type Option func(*options)

// WithCodec configures the codec used for new catalog entries.
//
// If nil is passed, codec.Default is used. Existing entries are decoded with
// the codec recorded next to them.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithLogger sets the logger. Nil disables logging.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithMetricsCollector sets the metrics collector. Nil disables metrics.
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithFloatTolerance sets the default tolerance of float equality. A spec
// with its own tolerance overrides it.
func WithFloatTolerance(tol float64) Option {
	return func(o *options) {
		if tol >= 0 {
			o.floatTolerance = tol
		}
	}
}

// WithContainmentUnionLimit sets the largest In list answered by one
// equality scan per value. Larger lists scan the whole table.
func WithContainmentUnionLimit(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.unionLimit = n
		}
	}
}

// WithCatalogTable overrides the kv table holding index definitions.
func WithCatalogTable(name string) Option {
	return func(o *options) {
		if name != "" {
			o.catalogTable = name
		}
	}
}

func (o options) indexOptions() index.Options {
	return index.Options{FloatTolerance: o.floatTolerance, UnionLimit: o.unionLimit}
}
