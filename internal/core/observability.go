package core

import (
	"context"
	"time"
)

// Logger is the structured, levelled hook the engine and service write to.
// keyvals alternate keys and values.
type Logger interface {
	Debug(msg string, keyvals ...any)
	Info(msg string, keyvals ...any)
	Warn(msg string, keyvals ...any)
	Error(msg string, keyvals ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// NewNoopLogger returns a Logger that discards everything.
func NewNoopLogger() Logger { return noopLogger{} }

// MetricsRecorder observes operation outcomes and latency.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

// Tracer starts spans around engine and service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the operation's error, if any.
type TraceSpan interface {
	End(err error)
}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

// observe wraps an operation with a span and a metrics observation.
func observe(ctx context.Context, tracer Tracer, metrics MetricsRecorder, operation string) (context.Context, func(error)) {
	ctx, span := tracer.Start(ctx, operation)
	started := time.Now()
	return ctx, func(err error) {
		span.End(err)
		metrics.Observe(ctx, operation, err == nil, time.Since(started))
	}
}
