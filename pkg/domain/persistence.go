package domain

import "context"

// Transaction exposes the portfolio mutations a persistence implementation
// must support within an atomic scope.
type Transaction interface {
	Snapshot() TransactionView
	CreateEntity(Entity) (Entity, error)
	DeleteEntity(id string) error
	CreateProperty(Property) (Property, error)
	DeleteProperty(id string) error
	CreateLot(Lot) (Lot, error)
	UpdateLot(id string, mutator func(*Lot) error) (Lot, error)
	DeleteLot(id string) error
	CreateLease(Lease) (Lease, error)
	UpdateLease(id string, mutator func(*Lease) error) (Lease, error)
	DeleteLease(id string) error
	CreateTenantGroup(TenantGroup) (TenantGroup, error)
	DeleteTenantGroup(id string) error
	CreateTenant(Tenant) (Tenant, error)
	DeleteTenant(id string) error
	CreateCandidate(Candidate) (Candidate, error)
	UpdateCandidate(id string, mutator func(*Candidate) error) (Candidate, error)
	DeleteCandidate(id string) error
	CreateDocument(Document) (Document, error)
	UpdateDocument(id string, mutator func(*Document) error) (Document, error)
	DeleteDocument(id string) error
}

// TransactionView provides read-only access to snapshot data for rules.
type TransactionView interface {
	RuleView
}

// DocumentQuery selects documents by a single association foreign key.
type DocumentQuery struct {
	Kind OwnerKind
	ID   string
}

// MatchesQuery reports whether a document has the queried foreign key set,
// regardless of whether other association fields are also populated. This is
// the semantics of a single-predicate store lookup.
func (q DocumentQuery) MatchesQuery(doc Document) bool {
	var v *string
	switch q.Kind {
	case OwnerLot:
		v = doc.LotID
	case OwnerTenantGroup:
		v = doc.TenantGroupID
	case OwnerTenant:
		v = doc.TenantID
	case OwnerCandidate:
		v = doc.CandidateID
	default:
		return false
	}
	return v != nil && *v == q.ID
}

// PortfolioReader is the set of relational fetchers the hierarchy builder
// consumes. Every method is a pure read keyed by a parent id. List methods
// return an empty slice (not an error) when the parent has no children.
type PortfolioReader interface {
	// ListEntities returns every entity, or only scopeID when it is non-empty.
	ListEntities(ctx context.Context, scopeID string) ([]Entity, error)
	ListProperties(ctx context.Context, entityID string) ([]Property, error)
	ListLots(ctx context.Context, propertyID string) ([]Lot, error)
	// ListActiveLeases returns only leases with status active.
	ListActiveLeases(ctx context.Context, lotID string) ([]Lease, error)
	// GetTenantGroup returns a NotFoundError when the group does not exist.
	GetTenantGroup(ctx context.Context, groupID string) (TenantGroup, error)
	ListTenants(ctx context.Context, groupID string) ([]Tenant, error)
	ListCandidates(ctx context.Context, lotID string) ([]Candidate, error)
}

// DocumentLister is the document store client: one foreign-key predicate per call.
type DocumentLister interface {
	ListDocuments(ctx context.Context, q DocumentQuery) ([]Document, error)
}

// Portfolio combines both read contracts. All stores in this module satisfy it.
type Portfolio interface {
	PortfolioReader
	DocumentLister
}

// PersistentStore is the write-capable abstraction over durable backends.
type PersistentStore interface {
	Portfolio
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(TransactionView) error) error
	GetDocument(id string) (Document, bool)
}
