package eventbus

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/bjaus/eventbus/codegen"
)

// Option configures a Bus.
type Option func(*options)

type options struct {
	executor       Executor
	exceptions     ExceptionHandler
	markers        []Marker
	hierarchical   bool
	matcher        Matcher
	strategy       Strategy
	generated      bool
	backend        codegen.Backend
	logger         *slog.Logger
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	hooks          hooks
}

func defaultOptions() *options {
	return &options{
		executor:     SyncExecutor(),
		markers:      DefaultMarkers(),
		hierarchical: true,
	}
}

// WithExecutor sets the executor Publish and Post schedule dispatch on.
func WithExecutor(e Executor) Option {
	return func(o *options) {
		if e != nil {
			o.executor = e
		}
	}
}

// WithExceptionHandler sets the handler every subscription failure is routed
// to. The default logs through the bus logger.
func WithExceptionHandler(h ExceptionHandler) Option {
	return func(o *options) {
		o.exceptions = h
	}
}

// WithMarkers adds handler markers on top of DefaultMarkers.
func WithMarkers(ms ...Marker) Option {
	return func(o *options) {
		o.markers = append(o.markers, ms...)
	}
}

// WithHierarchical selects hierarchical matching (the default) or exact
// type matching.
func WithHierarchical(on bool) Option {
	return func(o *options) {
		o.hierarchical = on
		o.matcher = nil
	}
}

// WithMatcher replaces the matching rule entirely.
func WithMatcher(m Matcher) Option {
	return func(o *options) {
		o.matcher = m
	}
}

// WithStrategy sets the invocation strategy.
func WithStrategy(s Strategy) Option {
	return func(o *options) {
		o.strategy = s
		o.generated = false
	}
}

// WithBackend selects the generated strategy on backend. Schema operations
// require it. A nil backend makes New fail with *UnsupportedOperationError.
func WithBackend(b codegen.Backend) Option {
	return func(o *options) {
		o.strategy = nil
		o.generated = true
		o.backend = b
	}
}

// WithLogger sets the logger used by the bus and the default exception
// handler.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithTracerProvider sets the tracer provider. Defaults to the otel global.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) {
		o.tracerProvider = tp
	}
}

// WithMeterProvider sets the meter provider. Defaults to the otel global.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(o *options) {
		o.meterProvider = mp
	}
}
