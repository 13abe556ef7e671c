package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"rentcore/internal/blob"
	"rentcore/internal/infra/persistence/memory"
	"rentcore/pkg/domain"
)

// Service exposes transactional portfolio writes, document attachment and the
// hierarchy engine over a single store.
type Service struct {
	store  PersistentStore
	blobs  blob.Store
	engine *Engine
	opts   options
}

// NewService constructs a service backed by the supplied store. blobs may be
// nil when document binaries are handled elsewhere.
func NewService(store PersistentStore, blobs blob.Store, opts ...Option) *Service {
	o := applyOptions(opts)
	return &Service{
		store:  store,
		blobs:  blobs,
		engine: &Engine{reader: store, docs: store, opts: o},
		opts:   o,
	}
}

// NewInMemoryService creates a service over a fresh in-memory store and blob store.
func NewInMemoryService(engine *RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), blob.NewMemory(), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore { return s.store }

// Engine returns the hierarchy engine reading from the service store.
func (s *Service) Engine() *Engine { return s.engine }

// Blobs returns the document blob store, which may be nil.
func (s *Service) Blobs() blob.Store { return s.blobs }

func (s *Service) run(ctx context.Context, op string, fn func(Transaction) error) (res Result, err error) {
	ctx, done := observe(ctx, s.opts.tracer, s.opts.metrics, op)
	defer func() { done(err) }()

	res, err = s.store.RunInTransaction(ctx, fn)
	if err != nil {
		s.opts.logger.Error("transaction failed", "operation", op, "error", err)
		return res, err
	}
	for _, v := range res.Violations {
		s.opts.logger.Warn("rule violation", "operation", op, "rule", v.Rule, "severity", string(v.Severity), "entity_id", v.EntityID, "message", v.Message)
	}
	s.opts.logger.Debug("transaction committed", "operation", op, "violations", len(res.Violations))
	return res, nil
}

// CreateEntity persists a holding entity.
func (s *Service) CreateEntity(ctx context.Context, entity Entity) (Entity, Result, error) {
	var created Entity
	res, err := s.run(ctx, "service.create_entity", func(tx Transaction) error {
		var err error
		created, err = tx.CreateEntity(entity)
		return err
	})
	return created, res, err
}

// CreateProperty persists a property under an existing entity.
func (s *Service) CreateProperty(ctx context.Context, property Property) (Property, Result, error) {
	var created Property
	res, err := s.run(ctx, "service.create_property", func(tx Transaction) error {
		var err error
		created, err = tx.CreateProperty(property)
		return err
	})
	return created, res, err
}

// CreateLot persists a lot under an existing property.
func (s *Service) CreateLot(ctx context.Context, lot Lot) (Lot, Result, error) {
	var created Lot
	res, err := s.run(ctx, "service.create_lot", func(tx Transaction) error {
		var err error
		created, err = tx.CreateLot(lot)
		return err
	})
	return created, res, err
}

// CreateLease persists a lease.
func (s *Service) CreateLease(ctx context.Context, lease Lease) (Lease, Result, error) {
	var created Lease
	res, err := s.run(ctx, "service.create_lease", func(tx Transaction) error {
		var err error
		created, err = tx.CreateLease(lease)
		return err
	})
	return created, res, err
}

// UpdateLeaseStatus moves a lease to status. Terminating or archiving a
// lease records its end date when none is set.
func (s *Service) UpdateLeaseStatus(ctx context.Context, id string, status domain.LeaseStatus) (Lease, Result, error) {
	var updated Lease
	now := s.opts.clock.Now()
	res, err := s.run(ctx, "service.update_lease_status", func(tx Transaction) error {
		var err error
		updated, err = tx.UpdateLease(id, func(l *Lease) error {
			l.Status = status
			if (status == domain.LeaseStatusTerminated || status == domain.LeaseStatusArchived) && l.EndDate == nil {
				end := now
				l.EndDate = &end
			}
			return nil
		})
		return err
	})
	return updated, res, err
}

// CreateTenantGroup persists a tenant group.
func (s *Service) CreateTenantGroup(ctx context.Context, group TenantGroup) (TenantGroup, Result, error) {
	var created TenantGroup
	res, err := s.run(ctx, "service.create_tenant_group", func(tx Transaction) error {
		var err error
		created, err = tx.CreateTenantGroup(group)
		return err
	})
	return created, res, err
}

// CreateTenant persists a tenant inside an existing group.
func (s *Service) CreateTenant(ctx context.Context, tenant Tenant) (Tenant, Result, error) {
	var created Tenant
	res, err := s.run(ctx, "service.create_tenant", func(tx Transaction) error {
		var err error
		created, err = tx.CreateTenant(tenant)
		return err
	})
	return created, res, err
}

// CreateCandidate persists a rental application for a lot.
func (s *Service) CreateCandidate(ctx context.Context, candidate Candidate) (Candidate, Result, error) {
	var created Candidate
	res, err := s.run(ctx, "service.create_candidate", func(tx Transaction) error {
		var err error
		created, err = tx.CreateCandidate(candidate)
		return err
	})
	return created, res, err
}

// CreateDocument records document metadata without uploading a binary.
func (s *Service) CreateDocument(ctx context.Context, doc Document) (Document, Result, error) {
	var created Document
	res, err := s.run(ctx, "service.create_document", func(tx Transaction) error {
		var err error
		created, err = tx.CreateDocument(doc)
		return err
	})
	return created, res, err
}

// ErrNoBlobStore is returned by binary operations on a service without blobs.
var ErrNoBlobStore = errors.New("no blob store configured")

// AttachDocument uploads r and records doc with the stored size, type, key
// and upload time. The binary is removed again when the record is rejected.
func (s *Service) AttachDocument(ctx context.Context, doc Document, r io.Reader) (Document, Result, error) {
	if s.blobs == nil {
		return Document{}, Result{}, ErrNoBlobStore
	}
	if doc.FileName == "" {
		return Document{}, Result{}, errors.New("document requires file name")
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	payload, err := io.ReadAll(r)
	if err != nil {
		return Document{}, Result{}, fmt.Errorf("read document %s: %w", doc.ID, err)
	}
	if doc.FileType == "" {
		doc.FileType = detectFileType(doc.FileName, payload)
	}
	key := blob.DocumentKey(domain.ResolveOwner(doc), doc.ID, doc.FileName)
	obj, err := s.blobs.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{
		ContentType: doc.FileType,
		Metadata:    map[string]string{"document-id": doc.ID},
	})
	if err != nil {
		return Document{}, Result{}, fmt.Errorf("upload document %s: %w", doc.ID, err)
	}

	doc.FileSize = obj.Size
	doc.StorageKey = obj.Key
	doc.UploadedAt = s.opts.clock.Now()

	created, res, err := s.CreateDocument(ctx, doc)
	if err != nil {
		if _, delErr := s.blobs.Delete(ctx, key); delErr != nil {
			s.opts.logger.Warn("orphaned document blob", "key", key, "error", delErr)
		}
		return Document{}, res, err
	}
	s.opts.logger.Info("document attached", "document_id", created.ID, "key", key, "size", created.FileSize)
	return created, res, nil
}

func detectFileType(fileName string, payload []byte) string {
	if t := mime.TypeByExtension(filepath.Ext(fileName)); t != "" {
		return t
	}
	return http.DetectContentType(payload)
}

// DocumentURL presigns a download URL for the document binary.
func (s *Service) DocumentURL(ctx context.Context, docID string, expiry time.Duration) (string, error) {
	if s.blobs == nil {
		return "", ErrNoBlobStore
	}
	doc, ok := s.store.GetDocument(docID)
	if !ok {
		return "", domain.NotFoundError{Entity: domain.EntityDocument, ID: docID}
	}
	if doc.StorageKey == "" {
		return "", fmt.Errorf("document %s has no stored binary: %w", docID, blob.ErrNotFound)
	}
	return s.blobs.PresignGet(ctx, doc.StorageKey, expiry)
}

// ImportSnapshot replays a snapshot into the store in dependency order
// within a single transaction. Record ids and timestamps are preserved by the
// store only where it accepts caller-provided values.
func (s *Service) ImportSnapshot(ctx context.Context, snap memory.Snapshot) (Result, error) {
	return s.run(ctx, "service.import_snapshot", func(tx Transaction) error {
		for _, id := range sortedKeys(snap.Entities) {
			if _, err := tx.CreateEntity(snap.Entities[id]); err != nil {
				return fmt.Errorf("import entity %s: %w", id, err)
			}
		}
		for _, id := range sortedKeys(snap.Properties) {
			if _, err := tx.CreateProperty(snap.Properties[id]); err != nil {
				return fmt.Errorf("import property %s: %w", id, err)
			}
		}
		for _, id := range sortedKeys(snap.Lots) {
			if _, err := tx.CreateLot(snap.Lots[id]); err != nil {
				return fmt.Errorf("import lot %s: %w", id, err)
			}
		}
		for _, id := range sortedKeys(snap.TenantGroups) {
			if _, err := tx.CreateTenantGroup(snap.TenantGroups[id]); err != nil {
				return fmt.Errorf("import tenant group %s: %w", id, err)
			}
		}
		for _, id := range sortedKeys(snap.Tenants) {
			if _, err := tx.CreateTenant(snap.Tenants[id]); err != nil {
				return fmt.Errorf("import tenant %s: %w", id, err)
			}
		}
		for _, id := range sortedKeys(snap.Leases) {
			if _, err := tx.CreateLease(snap.Leases[id]); err != nil {
				return fmt.Errorf("import lease %s: %w", id, err)
			}
		}
		for _, id := range sortedKeys(snap.Candidates) {
			if _, err := tx.CreateCandidate(snap.Candidates[id]); err != nil {
				return fmt.Errorf("import candidate %s: %w", id, err)
			}
		}
		for _, id := range sortedKeys(snap.Documents) {
			if _, err := tx.CreateDocument(snap.Documents[id]); err != nil {
				return fmt.Errorf("import document %s: %w", id, err)
			}
		}
		return nil
	})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
