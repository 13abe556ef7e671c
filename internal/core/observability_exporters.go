package core

import (
	"context"
	"encoding/json"
	"expvar"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

var expvarSeq uint64

// OperationStats aggregates the observations of one operation.
type OperationStats struct {
	Calls   int64     `json:"calls"`
	Errors  int64     `json:"errors"`
	TotalMS float64   `json:"total_ms"`
	MaxMS   float64   `json:"max_ms"`
	LastAt  time.Time `json:"last_at"`
}

// MeanMS is the average latency, zero before the first call.
func (s OperationStats) MeanMS() float64 {
	if s.Calls == 0 {
		return 0
	}
	return s.TotalMS / float64(s.Calls)
}

// ExpvarRecorder publishes per-operation stats (engine.build_tree,
// engine.search, service.attach_document...) under one expvar name, served by
// /debug/vars.
type ExpvarRecorder struct {
	name string
	now  func() time.Time

	mu  sync.Mutex
	ops map[string]OperationStats
}

// NewExpvarRecorder publishes a recorder under name, or under a generated
// rentcore_operations_<n> when name is empty. expvar names are process-global:
// publishing the same name twice panics.
func NewExpvarRecorder(name string) *ExpvarRecorder {
	if name == "" {
		name = fmt.Sprintf("rentcore_operations_%d", atomic.AddUint64(&expvarSeq, 1))
	}
	rec := &ExpvarRecorder{name: name, now: time.Now, ops: make(map[string]OperationStats)}
	expvar.Publish(name, expvar.Func(func() any { return rec.Snapshot() }))
	return rec
}

// Name returns the expvar export name.
func (r *ExpvarRecorder) Name() string { return r.name }

// Snapshot copies the current stats.
func (r *ExpvarRecorder) Snapshot() map[string]OperationStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]OperationStats, len(r.ops))
	for op, s := range r.ops {
		out[op] = s
	}
	return out
}

// Observe implements MetricsRecorder.
func (r *ExpvarRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	if operation == "" {
		return
	}
	ms := float64(duration) / float64(time.Millisecond)
	at := r.now().UTC()

	r.mu.Lock()
	s := r.ops[operation]
	s.Calls++
	if !success {
		s.Errors++
	}
	s.TotalMS += ms
	if ms > s.MaxMS {
		s.MaxMS = ms
	}
	s.LastAt = at
	r.ops[operation] = s
	r.mu.Unlock()
}

// TraceEntry is one finished span. ParentID links nested operations, such as
// the tree build run by a search.
type TraceEntry struct {
	SpanID     string    `json:"span_id"`
	ParentID   string    `json:"parent_id,omitempty"`
	Operation  string    `json:"operation"`
	Status     string    `json:"status"`
	DurationMS float64   `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
}

// JSONTracer writes finished spans as JSON lines and keeps them for Entries.
type JSONTracer struct {
	mu      sync.Mutex
	entries []TraceEntry
	enc     *json.Encoder
}

type spanKey struct{}

// NewJSONTracer builds a tracer writing to w. A nil w only retains entries.
func NewJSONTracer(w io.Writer) *JSONTracer {
	t := &JSONTracer{}
	if w != nil {
		t.enc = json.NewEncoder(w)
	}
	return t
}

// Entries returns the finished spans in completion order.
func (t *JSONTracer) Entries() []TraceEntry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Start implements Tracer. The span id is stored on the returned context so
// spans started from it record it as their parent.
func (t *JSONTracer) Start(ctx context.Context, operation string) (context.Context, TraceSpan) {
	parent, _ := ctx.Value(spanKey{}).(string)
	span := &jsonSpan{
		tracer:  t,
		entry:   TraceEntry{SpanID: uuid.NewString(), ParentID: parent, Operation: operation},
		started: time.Now(),
	}
	span.entry.StartedAt = span.started.UTC()
	return context.WithValue(ctx, spanKey{}, span.entry.SpanID), span
}

type jsonSpan struct {
	tracer  *JSONTracer
	entry   TraceEntry
	started time.Time
}

func (s *jsonSpan) End(err error) {
	entry := s.entry
	entry.DurationMS = float64(time.Since(s.started)) / float64(time.Millisecond)
	entry.Status = "success"
	if err != nil {
		entry.Status = "error"
		entry.Error = err.Error()
	}

	s.tracer.mu.Lock()
	defer s.tracer.mu.Unlock()
	s.tracer.entries = append(s.tracer.entries, entry)
	if s.tracer.enc != nil {
		_ = s.tracer.enc.Encode(entry)
	}
}
