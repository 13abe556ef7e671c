// Package exports renders filtered document listings into downloadable
// artifacts in the background and keeps an audit trail of each request.
package exports

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"rentcore/internal/blob"
	"rentcore/internal/core"
)

// Status describes the lifecycle stage of an export request.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Format names an artifact encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatCSV  Format = "csv"
)

// ErrUnsupportedFormat is returned by Enqueue for unknown formats.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// ErrQueueFull is returned by Enqueue when the worker cannot accept more jobs.
var ErrQueueFull = errors.New("export queue full")

// Artifact is one stored rendering of an export.
type Artifact struct {
	Key         string    `json:"key"`
	Format      Format    `json:"format"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Rows        int       `json:"rows"`
	URL         string    `json:"url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record tracks an export request and its artifacts.
type Record struct {
	ID          string            `json:"id"`
	Scope       string            `json:"entity_id,omitempty"`
	Filters     map[string]string `json:"filters,omitempty"`
	Formats     []Format          `json:"formats"`
	Status      Status            `json:"status"`
	Error       string            `json:"error,omitempty"`
	Artifacts   []Artifact        `json:"artifacts,omitempty"`
	RequestedBy string            `json:"requested_by"`
	Reason      string            `json:"reason,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
	UpdatedAt   time.Time         `json:"updated_at"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

// Input is an enqueue request. Filters use the same keys as the document
// search query string.
type Input struct {
	Scope       string
	Filters     map[string]string
	Formats     []Format
	RequestedBy string
	Reason      string
}

// Scheduler queues exports and exposes their status.
type Scheduler interface {
	Enqueue(ctx context.Context, input Input) (Record, error)
	Get(id string) (Record, bool)
}

// Searcher returns the documents of a scope matching a predicate.
type Searcher interface {
	Search(ctx context.Context, scope string, p core.Predicate) ([]core.ScopedDocument, error)
}

// AuditLogger records export audit entries.
type AuditLogger interface {
	Record(ctx context.Context, entry AuditEntry)
}

// AuditEntry captures audit trail metadata for exports.
type AuditEntry struct {
	ID         string         `json:"id"`
	ExportID   string         `json:"export_id"`
	Action     string         `json:"action"`
	Actor      string         `json:"actor"`
	Status     Status         `json:"status"`
	Scope      string         `json:"entity_id,omitempty"`
	Reason     string         `json:"reason,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

const auditAction = "document_export"

// Worker executes document exports asynchronously.
type Worker struct {
	search    Searcher
	blobs     blob.Store
	audit     AuditLogger
	logger    core.Logger
	clock     core.Clock
	urlExpiry time.Duration

	queue chan task
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type task struct {
	id        string
	predicate core.Predicate
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithAuditLogger records lifecycle transitions to audit.
func WithAuditLogger(audit AuditLogger) WorkerOption {
	return func(w *Worker) { w.audit = audit }
}

// WithLogger sets the worker logger.
func WithLogger(logger core.Logger) WorkerOption {
	return func(w *Worker) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithClock overrides the time source used for record timestamps.
func WithClock(clock core.Clock) WorkerOption {
	return func(w *Worker) {
		if clock != nil {
			w.clock = clock
		}
	}
}

// WithQueueSize bounds the number of pending exports.
func WithQueueSize(n int) WorkerOption {
	return func(w *Worker) {
		if n > 0 {
			w.queue = make(chan task, n)
		}
	}
}

// WithURLExpiry sets the lifetime of artifact download links.
func WithURLExpiry(d time.Duration) WorkerOption {
	return func(w *Worker) {
		if d > 0 {
			w.urlExpiry = d
		}
	}
}

// NewWorker constructs an export worker writing artifacts to blobs.
func NewWorker(search Searcher, blobs blob.Store, opts ...WorkerOption) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		search:    search,
		blobs:     blobs,
		logger:    core.NewNoopLogger(),
		clock:     core.ClockFunc(time.Now),
		urlExpiry: time.Hour,
		queue:     make(chan task, 32),
		jobs:      make(map[string]*Record),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w
}

// Start begins processing export requests.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the worker to halt and waits for the running export.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case t := <-w.queue:
			w.process(t)
		}
	}
}

// Enqueue validates input and schedules an export job.
func (w *Worker) Enqueue(ctx context.Context, input Input) (Record, error) {
	values := url.Values{}
	for k, v := range input.Filters {
		values.Set(k, v)
	}
	predicate, err := core.ParsePredicate(values)
	if err != nil {
		return Record{}, err
	}
	formats, err := normalizeFormats(input.Formats)
	if err != nil {
		return Record{}, err
	}

	now := w.now()
	record := Record{
		ID:          uuid.NewString(),
		Scope:       strings.TrimSpace(input.Scope),
		Filters:     cloneFilters(input.Filters),
		Formats:     formats,
		Status:      StatusQueued,
		RequestedBy: input.RequestedBy,
		Reason:      input.Reason,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	w.mu.Lock()
	w.jobs[record.ID] = &record
	queued := record.copy()
	w.mu.Unlock()
	w.record(ctx, queued, nil)

	select {
	case w.queue <- task{id: record.ID, predicate: predicate}:
	default:
		w.transition(record.ID, StatusFailed, ErrQueueFull.Error(), nil)
		return Record{}, ErrQueueFull
	}
	return queued, nil
}

// Get returns a snapshot of the export record.
func (w *Worker) Get(id string) (Record, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	record, ok := w.jobs[id]
	if !ok {
		return Record{}, false
	}
	return record.copy(), true
}

func (w *Worker) process(t task) {
	record, ok := w.Get(t.id)
	if !ok {
		return
	}
	w.transition(t.id, StatusRunning, "", nil)

	docs, err := w.search.Search(w.ctx, record.Scope, t.predicate)
	if err != nil {
		w.transition(t.id, StatusFailed, fmt.Sprintf("search failed: %v", err), nil)
		return
	}

	artifacts := make([]Artifact, 0, len(record.Formats))
	for _, format := range record.Formats {
		artifact, err := w.store(record.ID, format, docs)
		if err != nil {
			w.transition(t.id, StatusFailed, err.Error(), nil)
			return
		}
		artifacts = append(artifacts, artifact)
	}
	w.transition(t.id, StatusSucceeded, "", artifacts)
}

func (w *Worker) store(id string, format Format, docs []core.ScopedDocument) (Artifact, error) {
	payload, contentType, err := render(format, docs)
	if err != nil {
		return Artifact{}, err
	}
	key := ArtifactKey(id, format)
	obj, err := w.blobs.Put(w.ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"export-id": id},
	})
	if err != nil {
		return Artifact{}, fmt.Errorf("store artifact: %w", err)
	}
	artifact := Artifact{
		Key:         key,
		Format:      format,
		ContentType: contentType,
		SizeBytes:   obj.Size,
		Rows:        len(docs),
		CreatedAt:   w.now(),
	}
	if artifact.SizeBytes == 0 {
		artifact.SizeBytes = int64(len(payload))
	}
	link, err := w.blobs.PresignGet(w.ctx, key, w.urlExpiry)
	switch {
	case err == nil:
		artifact.URL = link
	case errors.Is(err, blob.ErrUnsupported):
	default:
		return Artifact{}, fmt.Errorf("presign artifact: %w", err)
	}
	return artifact, nil
}

func (w *Worker) transition(id string, status Status, message string, artifacts []Artifact) {
	now := w.now()
	w.mu.Lock()
	record, ok := w.jobs[id]
	if !ok {
		w.mu.Unlock()
		return
	}
	record.Status = status
	record.Error = message
	record.UpdatedAt = now
	if status == StatusSucceeded || status == StatusFailed {
		record.Artifacts = artifacts
		record.CompletedAt = &now
	}
	snapshot := record.copy()
	w.mu.Unlock()

	var meta map[string]any
	switch status {
	case StatusFailed:
		meta = map[string]any{"error": message}
		w.logger.Error("export failed", "export_id", id, "error", message)
	case StatusSucceeded:
		meta = map[string]any{"artifacts": len(artifacts)}
		w.logger.Info("export completed", "export_id", id, "artifacts", len(artifacts))
	}
	w.record(w.ctx, snapshot, meta)
}

func (w *Worker) record(ctx context.Context, r Record, meta map[string]any) {
	if w.audit == nil {
		return
	}
	w.audit.Record(ctx, AuditEntry{
		ID:         uuid.NewString(),
		ExportID:   r.ID,
		Action:     auditAction,
		Actor:      r.RequestedBy,
		Status:     r.Status,
		Scope:      r.Scope,
		Reason:     r.Reason,
		Metadata:   meta,
		OccurredAt: r.UpdatedAt,
	})
}

func (w *Worker) now() time.Time { return w.clock.Now().UTC() }

// ArtifactKey is the blob key of an export rendering.
func ArtifactKey(id string, format Format) string {
	return fmt.Sprintf("exports/%s/documents.%s", id, format)
}

func normalizeFormats(in []Format) ([]Format, error) {
	if len(in) == 0 {
		return []Format{FormatJSON, FormatCSV}, nil
	}
	out := make([]Format, 0, len(in))
	seen := make(map[Format]struct{}, len(in))
	for _, f := range in {
		f = Format(strings.ToLower(strings.TrimSpace(string(f))))
		if f != FormatJSON && f != FormatCSV {
			return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, f)
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out, nil
}

func (r Record) copy() Record {
	dup := r
	dup.Filters = cloneFilters(r.Filters)
	dup.Formats = append([]Format(nil), r.Formats...)
	if len(r.Artifacts) > 0 {
		dup.Artifacts = append([]Artifact(nil), r.Artifacts...)
	}
	if r.CompletedAt != nil {
		at := *r.CompletedAt
		dup.CompletedAt = &at
	}
	return dup
}

func cloneFilters(in map[string]string) map[string]string {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

// MemoryAuditLog captures audit entries in memory.
type MemoryAuditLog struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// Record stores an audit entry.
func (l *MemoryAuditLog) Record(_ context.Context, entry AuditEntry) {
	l.mu.Lock()
	l.entries = append(l.entries, entry)
	l.mu.Unlock()
}

// Entries returns a copy of recorded audit entries.
func (l *MemoryAuditLog) Entries() []AuditEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]AuditEntry, len(l.entries))
	copy(out, l.entries)
	return out
}
