package core

import "time"

// Clock provides the current time. Tests inject fixed clocks.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

// Now returns the function's time.
func (f ClockFunc) Now() time.Time { return f() }

// DefaultMaxConcurrency caps in-flight collaborator calls during a tree build.
const DefaultMaxConcurrency = 8

// Option configures an Engine or a Service.
type Option func(*options)

type options struct {
	logger         Logger
	metrics        MetricsRecorder
	tracer         Tracer
	clock          Clock
	maxConcurrency int64
}

func defaultOptions() options {
	return options{
		logger:         noopLogger{},
		metrics:        noopMetricsRecorder{},
		tracer:         noopTracer{},
		clock:          ClockFunc(func() time.Time { return time.Now().UTC() }),
		maxConcurrency: DefaultMaxConcurrency,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	return o
}

// WithLogger sets the structured logger. A nil logger keeps the no-op default.
func WithLogger(l Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMetricsRecorder sets the operation metrics sink.
func WithMetricsRecorder(m MetricsRecorder) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithTracer sets the span factory.
func WithTracer(t Tracer) Option {
	return func(o *options) {
		if t != nil {
			o.tracer = t
		}
	}
}

// WithClock overrides the clock used for upload timestamps.
func WithClock(c Clock) Option {
	return func(o *options) {
		if c != nil {
			o.clock = c
		}
	}
}

// WithMaxConcurrency bounds concurrent fetches during BuildTree. Values below
// one fall back to DefaultMaxConcurrency.
func WithMaxConcurrency(n int) Option {
	return func(o *options) {
		if n < 1 {
			n = DefaultMaxConcurrency
		}
		o.maxConcurrency = int64(n)
	}
}
