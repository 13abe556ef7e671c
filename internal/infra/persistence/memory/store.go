// Package memory provides an in-memory implementation of the portfolio
// persistence store used for tests, ephemeral environments and as the working
// set of the snapshotting sqlite and postgres stores.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"rentcore/pkg/domain"
)

// Compile-time contract assertions ensuring memory.Store adheres to the domain persistence interfaces.
var _ domain.PersistentStore = (*Store)(nil)

type (
	// Entity aliases domain.Entity for in-memory persistence operations.
	Entity = domain.Entity
	// Property aliases domain.Property.
	Property = domain.Property
	// Lot aliases domain.Lot.
	Lot = domain.Lot
	// Lease aliases domain.Lease.
	Lease = domain.Lease
	// TenantGroup aliases domain.TenantGroup.
	TenantGroup = domain.TenantGroup
	// Tenant aliases domain.Tenant.
	Tenant = domain.Tenant
	// Candidate aliases domain.Candidate.
	Candidate = domain.Candidate
	// Document aliases domain.Document.
	Document = domain.Document
	// Change aliases domain.Change captured in transactions.
	Change = domain.Change
	// Result aliases domain.Result summarizing rule evaluation.
	Result = domain.Result
	// RulesEngine aliases domain.RulesEngine used to evaluate rules.
	RulesEngine = domain.RulesEngine
	// Transaction aliases domain.Transaction representing a mutable unit of work.
	Transaction = domain.Transaction
	// TransactionView aliases domain.TransactionView providing read-only state.
	TransactionView = domain.TransactionView
)

type memoryState struct {
	entities     map[string]Entity
	properties   map[string]Property
	lots         map[string]Lot
	leases       map[string]Lease
	tenantGroups map[string]TenantGroup
	tenants      map[string]Tenant
	candidates   map[string]Candidate
	documents    map[string]Document
}

// Snapshot captures a point-in-time clone of the store state.
type Snapshot struct {
	Entities     map[string]Entity      `json:"entities"`
	Properties   map[string]Property    `json:"properties"`
	Lots         map[string]Lot         `json:"lots"`
	Leases       map[string]Lease       `json:"leases"`
	TenantGroups map[string]TenantGroup `json:"tenant_groups"`
	Tenants      map[string]Tenant      `json:"tenants"`
	Candidates   map[string]Candidate   `json:"candidates"`
	Documents    map[string]Document    `json:"documents"`
}

func newMemoryState() memoryState {
	return memoryState{
		entities:     make(map[string]Entity),
		properties:   make(map[string]Property),
		lots:         make(map[string]Lot),
		leases:       make(map[string]Lease),
		tenantGroups: make(map[string]TenantGroup),
		tenants:      make(map[string]Tenant),
		candidates:   make(map[string]Candidate),
		documents:    make(map[string]Document),
	}
}

func snapshotFromMemoryState(state memoryState) Snapshot {
	s := Snapshot{
		Entities:     make(map[string]Entity, len(state.entities)),
		Properties:   make(map[string]Property, len(state.properties)),
		Lots:         make(map[string]Lot, len(state.lots)),
		Leases:       make(map[string]Lease, len(state.leases)),
		TenantGroups: make(map[string]TenantGroup, len(state.tenantGroups)),
		Tenants:      make(map[string]Tenant, len(state.tenants)),
		Candidates:   make(map[string]Candidate, len(state.candidates)),
		Documents:    make(map[string]Document, len(state.documents)),
	}
	for k, v := range state.entities {
		s.Entities[k] = v
	}
	for k, v := range state.properties {
		s.Properties[k] = v
	}
	for k, v := range state.lots {
		s.Lots[k] = v
	}
	for k, v := range state.leases {
		s.Leases[k] = cloneLease(v)
	}
	for k, v := range state.tenantGroups {
		s.TenantGroups[k] = v
	}
	for k, v := range state.tenants {
		s.Tenants[k] = v
	}
	for k, v := range state.candidates {
		s.Candidates[k] = v
	}
	for k, v := range state.documents {
		s.Documents[k] = cloneDocument(v)
	}
	return s
}

func memoryStateFromSnapshot(s Snapshot) memoryState {
	state := newMemoryState()
	for k, v := range s.Entities {
		state.entities[k] = v
	}
	for k, v := range s.Properties {
		state.properties[k] = v
	}
	for k, v := range s.Lots {
		state.lots[k] = v
	}
	for k, v := range s.Leases {
		state.leases[k] = cloneLease(v)
	}
	for k, v := range s.TenantGroups {
		state.tenantGroups[k] = v
	}
	for k, v := range s.Tenants {
		state.tenants[k] = v
	}
	for k, v := range s.Candidates {
		state.candidates[k] = v
	}
	for k, v := range s.Documents {
		state.documents[k] = cloneDocument(v)
	}
	return state
}

func (s memoryState) clone() memoryState {
	return memoryStateFromSnapshot(snapshotFromMemoryState(s))
}

func cloneLease(l Lease) Lease {
	cp := l
	if l.EndDate != nil {
		end := *l.EndDate
		cp.EndDate = &end
	}
	return cp
}

func cloneDocument(d Document) Document {
	cp := d
	cp.Tags = append([]string(nil), d.Tags...)
	cp.LotID = cloneStringPtr(d.LotID)
	cp.TenantGroupID = cloneStringPtr(d.TenantGroupID)
	cp.TenantID = cloneStringPtr(d.TenantID)
	cp.CandidateID = cloneStringPtr(d.CandidateID)
	return cp
}

func cloneStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Store provides an in-memory transactional store for the portfolio.
type Store struct {
	mu     sync.RWMutex
	state  memoryState
	engine *RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newMemoryState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) newID() string {
	return uuid.NewString()
}

// ExportState clones the current store state for external persistence.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return snapshotFromMemoryState(s.state)
}

// ImportState replaces the store state with the provided snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = memoryStateFromSnapshot(snapshot)
}

// RulesEngine exposes the configured engine so callers can register rules.
func (s *Store) RulesEngine() *RulesEngine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.engine
}

// NowFunc returns the time provider used by the in-memory store.
func (s *Store) NowFunc() func() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nowFn
}

// SetNowFunc overrides the clock used to stamp records. Tests use it to pin timestamps.
func (s *Store) SetNowFunc(fn func() time.Time) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nowFn = fn
}

type transaction struct {
	store   *Store
	state   memoryState
	changes []Change
	now     time.Time
}

type transactionView struct {
	state *memoryState
}

func newTransactionView(state *memoryState) TransactionView {
	return transactionView{state: state}
}

func (v transactionView) ListEntities() []Entity           { return sortedEntities(v.state.entities, "") }
func (v transactionView) ListProperties() []Property       { return sortedProperties(v.state.properties, "") }
func (v transactionView) ListLots() []Lot                  { return sortedLots(v.state.lots, "") }
func (v transactionView) ListTenantGroups() []TenantGroup  { return sortedGroups(v.state.tenantGroups) }
func (v transactionView) ListTenants() []Tenant            { return sortedTenants(v.state.tenants, "") }
func (v transactionView) ListCandidates() []Candidate      { return sortedCandidates(v.state.candidates, "") }
func (v transactionView) ListDocuments() []Document        { return sortedDocuments(v.state.documents, nil) }
func (v transactionView) ListLeases() []Lease              { return sortedLeases(v.state.leases, "", false) }
func (v transactionView) FindEntity(id string) (Entity, bool) {
	e, ok := v.state.entities[id]
	return e, ok
}

func (v transactionView) FindProperty(id string) (Property, bool) {
	p, ok := v.state.properties[id]
	return p, ok
}

func (v transactionView) FindLot(id string) (Lot, bool) {
	l, ok := v.state.lots[id]
	return l, ok
}

func (v transactionView) FindTenantGroup(id string) (TenantGroup, bool) {
	g, ok := v.state.tenantGroups[id]
	return g, ok
}

func (v transactionView) FindTenant(id string) (Tenant, bool) {
	t, ok := v.state.tenants[id]
	return t, ok
}

func (v transactionView) FindCandidate(id string) (Candidate, bool) {
	c, ok := v.state.candidates[id]
	return c, ok
}

// RunInTransaction executes fn within a transactional copy of the store state.
func (s *Store) RunInTransaction(ctx context.Context, fn func(tx Transaction) error) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &transaction{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return Result{}, err
	}

	var result Result
	if s.engine != nil {
		view := newTransactionView(&tx.state)
		res, err := s.engine.Evaluate(ctx, view, tx.changes)
		if err != nil {
			return Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of the store state.
func (s *Store) View(_ context.Context, fn func(TransactionView) error) error {
	s.mu.RLock()
	snapshot := s.state.clone()
	s.mu.RUnlock()
	return fn(newTransactionView(&snapshot))
}

func (tx *transaction) recordChange(change Change) {
	tx.changes = append(tx.changes, change)
}

// Snapshot returns a read-only view over the transactional state.
func (tx *transaction) Snapshot() TransactionView {
	return newTransactionView(&tx.state)
}

// CreateEntity stores a new holding entity.
func (tx *transaction) CreateEntity(e Entity) (Entity, error) {
	if e.ID == "" {
		e.ID = tx.store.newID()
	}
	if _, exists := tx.state.entities[e.ID]; exists {
		return Entity{}, fmt.Errorf("entity %q already exists", e.ID)
	}
	if e.Name == "" {
		return Entity{}, errors.New("entity requires name")
	}
	if e.Type == "" {
		e.Type = domain.EntityKindIndividual
	}
	e.CreatedAt = tx.now
	e.UpdatedAt = tx.now
	tx.state.entities[e.ID] = e
	tx.recordChange(Change{Entity: domain.EntityHolding, Action: domain.ActionCreate, After: e})
	return e, nil
}

// DeleteEntity removes an entity and cascades to its properties.
func (tx *transaction) DeleteEntity(id string) error {
	current, ok := tx.state.entities[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityHolding, ID: id}
	}
	for pid, p := range tx.state.properties {
		if p.EntityID == id {
			tx.cascadeProperty(pid)
		}
	}
	delete(tx.state.entities, id)
	tx.recordChange(Change{Entity: domain.EntityHolding, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateProperty stores a property under an existing entity.
func (tx *transaction) CreateProperty(p Property) (Property, error) {
	if p.ID == "" {
		p.ID = tx.store.newID()
	}
	if _, exists := tx.state.properties[p.ID]; exists {
		return Property{}, fmt.Errorf("property %q already exists", p.ID)
	}
	if p.EntityID == "" {
		return Property{}, errors.New("property requires entity id")
	}
	if _, ok := tx.state.entities[p.EntityID]; !ok {
		return Property{}, domain.NotFoundError{Entity: domain.EntityHolding, ID: p.EntityID}
	}
	p.CreatedAt = tx.now
	p.UpdatedAt = tx.now
	tx.state.properties[p.ID] = p
	tx.recordChange(Change{Entity: domain.EntityProperty, Action: domain.ActionCreate, After: p})
	return p, nil
}

// DeleteProperty removes a property and cascades to its lots.
func (tx *transaction) DeleteProperty(id string) error {
	if _, ok := tx.state.properties[id]; !ok {
		return domain.NotFoundError{Entity: domain.EntityProperty, ID: id}
	}
	tx.cascadeProperty(id)
	return nil
}

// CreateLot stores a lot under an existing property.
func (tx *transaction) CreateLot(l Lot) (Lot, error) {
	if l.ID == "" {
		l.ID = tx.store.newID()
	}
	if _, exists := tx.state.lots[l.ID]; exists {
		return Lot{}, fmt.Errorf("lot %q already exists", l.ID)
	}
	if err := tx.validateLot(l); err != nil {
		return Lot{}, err
	}
	if l.Status == "" {
		l.Status = domain.LotStatusVacant
	}
	l.CreatedAt = tx.now
	l.UpdatedAt = tx.now
	tx.state.lots[l.ID] = l
	tx.recordChange(Change{Entity: domain.EntityLot, Action: domain.ActionCreate, After: l})
	return l, nil
}

// UpdateLot mutates an existing lot.
func (tx *transaction) UpdateLot(id string, mutator func(*Lot) error) (Lot, error) {
	current, ok := tx.state.lots[id]
	if !ok {
		return Lot{}, domain.NotFoundError{Entity: domain.EntityLot, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return Lot{}, err
	}
	if err := tx.validateLot(current); err != nil {
		return Lot{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.lots[id] = current
	tx.recordChange(Change{Entity: domain.EntityLot, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

func (tx *transaction) validateLot(l Lot) error {
	if l.PropertyID == "" {
		return errors.New("lot requires property id")
	}
	if _, ok := tx.state.properties[l.PropertyID]; !ok {
		return domain.NotFoundError{Entity: domain.EntityProperty, ID: l.PropertyID}
	}
	return nil
}

// DeleteLot removes a lot together with its leases, candidates and their documents.
func (tx *transaction) DeleteLot(id string) error {
	if _, ok := tx.state.lots[id]; !ok {
		return domain.NotFoundError{Entity: domain.EntityLot, ID: id}
	}
	tx.cascadeLot(id)
	return nil
}

// CreateLease stores a lease. The tenant group is not required to exist: the
// lease_integrity rule reports dangling groups and the builder skips them.
func (tx *transaction) CreateLease(l Lease) (Lease, error) {
	if l.ID == "" {
		l.ID = tx.store.newID()
	}
	if _, exists := tx.state.leases[l.ID]; exists {
		return Lease{}, fmt.Errorf("lease %q already exists", l.ID)
	}
	if l.LotID == "" || l.TenantGroupID == "" {
		return Lease{}, errors.New("lease requires lot id and tenant group id")
	}
	if l.Status == "" {
		l.Status = domain.LeaseStatusPending
	}
	if l.StartDate.IsZero() {
		l.StartDate = tx.now
	}
	l.CreatedAt = tx.now
	l.UpdatedAt = tx.now
	tx.state.leases[l.ID] = cloneLease(l)
	tx.recordChange(Change{Entity: domain.EntityLease, Action: domain.ActionCreate, After: cloneLease(l)})
	return cloneLease(l), nil
}

// UpdateLease mutates an existing lease, typically to change its status.
func (tx *transaction) UpdateLease(id string, mutator func(*Lease) error) (Lease, error) {
	current, ok := tx.state.leases[id]
	if !ok {
		return Lease{}, domain.NotFoundError{Entity: domain.EntityLease, ID: id}
	}
	before := cloneLease(current)
	if err := mutator(&current); err != nil {
		return Lease{}, err
	}
	if current.LotID == "" || current.TenantGroupID == "" {
		return Lease{}, errors.New("lease requires lot id and tenant group id")
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.leases[id] = cloneLease(current)
	tx.recordChange(Change{Entity: domain.EntityLease, Action: domain.ActionUpdate, Before: before, After: cloneLease(current)})
	return cloneLease(current), nil
}

// DeleteLease removes a lease record.
func (tx *transaction) DeleteLease(id string) error {
	current, ok := tx.state.leases[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityLease, ID: id}
	}
	delete(tx.state.leases, id)
	tx.recordChange(Change{Entity: domain.EntityLease, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateTenantGroup stores a tenant group.
func (tx *transaction) CreateTenantGroup(g TenantGroup) (TenantGroup, error) {
	if g.ID == "" {
		g.ID = tx.store.newID()
	}
	if _, exists := tx.state.tenantGroups[g.ID]; exists {
		return TenantGroup{}, fmt.Errorf("tenant group %q already exists", g.ID)
	}
	if g.GroupType == "" {
		g.GroupType = domain.GroupTypeIndividual
	}
	g.CreatedAt = tx.now
	g.UpdatedAt = tx.now
	tx.state.tenantGroups[g.ID] = g
	tx.recordChange(Change{Entity: domain.EntityTenantGroup, Action: domain.ActionCreate, After: g})
	return g, nil
}

// DeleteTenantGroup removes a group, its tenants and the documents attached
// to either. Leases referencing the group are left for the caller to close.
func (tx *transaction) DeleteTenantGroup(id string) error {
	current, ok := tx.state.tenantGroups[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityTenantGroup, ID: id}
	}
	for tid, t := range tx.state.tenants {
		if t.TenantGroupID == id {
			tx.removeTenant(tid)
		}
	}
	tx.removeDocuments(domain.DocumentQuery{Kind: domain.OwnerTenantGroup, ID: id})
	delete(tx.state.tenantGroups, id)
	tx.recordChange(Change{Entity: domain.EntityTenantGroup, Action: domain.ActionDelete, Before: current})
	return nil
}

// CreateTenant stores a tenant inside an existing group.
func (tx *transaction) CreateTenant(t Tenant) (Tenant, error) {
	if t.ID == "" {
		t.ID = tx.store.newID()
	}
	if _, exists := tx.state.tenants[t.ID]; exists {
		return Tenant{}, fmt.Errorf("tenant %q already exists", t.ID)
	}
	if t.TenantGroupID == "" {
		return Tenant{}, errors.New("tenant requires tenant group id")
	}
	if _, ok := tx.state.tenantGroups[t.TenantGroupID]; !ok {
		return Tenant{}, domain.NotFoundError{Entity: domain.EntityTenantGroup, ID: t.TenantGroupID}
	}
	t.CreatedAt = tx.now
	t.UpdatedAt = tx.now
	tx.state.tenants[t.ID] = t
	tx.recordChange(Change{Entity: domain.EntityTenant, Action: domain.ActionCreate, After: t})
	return t, nil
}

// DeleteTenant removes a tenant and their documents.
func (tx *transaction) DeleteTenant(id string) error {
	if _, ok := tx.state.tenants[id]; !ok {
		return domain.NotFoundError{Entity: domain.EntityTenant, ID: id}
	}
	tx.removeTenant(id)
	return nil
}

// CreateCandidate stores a rental application for an existing lot.
func (tx *transaction) CreateCandidate(c Candidate) (Candidate, error) {
	if c.ID == "" {
		c.ID = tx.store.newID()
	}
	if _, exists := tx.state.candidates[c.ID]; exists {
		return Candidate{}, fmt.Errorf("candidate %q already exists", c.ID)
	}
	if c.LotID == "" {
		return Candidate{}, errors.New("candidate requires lot id")
	}
	if _, ok := tx.state.lots[c.LotID]; !ok {
		return Candidate{}, domain.NotFoundError{Entity: domain.EntityLot, ID: c.LotID}
	}
	if c.Status == "" {
		c.Status = domain.CandidateStatusSubmitted
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = tx.now
	}
	c.UpdatedAt = tx.now
	tx.state.candidates[c.ID] = c
	tx.recordChange(Change{Entity: domain.EntityCandidate, Action: domain.ActionCreate, After: c})
	return c, nil
}

// UpdateCandidate mutates an existing candidate, typically to move it through review.
func (tx *transaction) UpdateCandidate(id string, mutator func(*Candidate) error) (Candidate, error) {
	current, ok := tx.state.candidates[id]
	if !ok {
		return Candidate{}, domain.NotFoundError{Entity: domain.EntityCandidate, ID: id}
	}
	before := current
	if err := mutator(&current); err != nil {
		return Candidate{}, err
	}
	if _, ok := tx.state.lots[current.LotID]; !ok {
		return Candidate{}, domain.NotFoundError{Entity: domain.EntityLot, ID: current.LotID}
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.candidates[id] = current
	tx.recordChange(Change{Entity: domain.EntityCandidate, Action: domain.ActionUpdate, Before: before, After: current})
	return current, nil
}

// DeleteCandidate removes a candidate and their documents.
func (tx *transaction) DeleteCandidate(id string) error {
	if _, ok := tx.state.candidates[id]; !ok {
		return domain.NotFoundError{Entity: domain.EntityCandidate, ID: id}
	}
	tx.removeCandidate(id)
	return nil
}

// CreateDocument stores a document record. Association fields are stored as
// given, including malformed combinations, so that ambiguous documents remain
// visible to operators instead of being rejected at write time.
func (tx *transaction) CreateDocument(d Document) (Document, error) {
	if d.ID == "" {
		d.ID = tx.store.newID()
	}
	if _, exists := tx.state.documents[d.ID]; exists {
		return Document{}, fmt.Errorf("document %q already exists", d.ID)
	}
	if d.FileName == "" {
		return Document{}, errors.New("document requires file name")
	}
	if d.FileSize < 0 {
		return Document{}, errors.New("document size must not be negative")
	}
	if d.UploadedAt.IsZero() {
		d.UploadedAt = tx.now
	}
	d.CreatedAt = tx.now
	d.UpdatedAt = tx.now
	tx.state.documents[d.ID] = cloneDocument(d)
	tx.recordChange(Change{Entity: domain.EntityDocument, Action: domain.ActionCreate, After: cloneDocument(d)})
	return cloneDocument(d), nil
}

// UpdateDocument mutates document metadata.
func (tx *transaction) UpdateDocument(id string, mutator func(*Document) error) (Document, error) {
	current, ok := tx.state.documents[id]
	if !ok {
		return Document{}, domain.NotFoundError{Entity: domain.EntityDocument, ID: id}
	}
	before := cloneDocument(current)
	current = cloneDocument(current)
	if err := mutator(&current); err != nil {
		return Document{}, err
	}
	if current.FileName == "" {
		return Document{}, errors.New("document requires file name")
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.documents[id] = cloneDocument(current)
	tx.recordChange(Change{Entity: domain.EntityDocument, Action: domain.ActionUpdate, Before: before, After: cloneDocument(current)})
	return cloneDocument(current), nil
}

// DeleteDocument removes a document record.
func (tx *transaction) DeleteDocument(id string) error {
	current, ok := tx.state.documents[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityDocument, ID: id}
	}
	delete(tx.state.documents, id)
	tx.recordChange(Change{Entity: domain.EntityDocument, Action: domain.ActionDelete, Before: current})
	return nil
}

// cascade helpers ------------------------------------------------------------

func (tx *transaction) cascadeProperty(id string) {
	for lid, l := range tx.state.lots {
		if l.PropertyID == id {
			tx.cascadeLot(lid)
		}
	}
	if current, ok := tx.state.properties[id]; ok {
		delete(tx.state.properties, id)
		tx.recordChange(Change{Entity: domain.EntityProperty, Action: domain.ActionDelete, Before: current})
	}
}

func (tx *transaction) cascadeLot(id string) {
	for leaseID, l := range tx.state.leases {
		if l.LotID == id {
			delete(tx.state.leases, leaseID)
			tx.recordChange(Change{Entity: domain.EntityLease, Action: domain.ActionDelete, Before: l})
		}
	}
	for cid, c := range tx.state.candidates {
		if c.LotID == id {
			tx.removeCandidate(cid)
		}
	}
	tx.removeDocuments(domain.DocumentQuery{Kind: domain.OwnerLot, ID: id})
	if current, ok := tx.state.lots[id]; ok {
		delete(tx.state.lots, id)
		tx.recordChange(Change{Entity: domain.EntityLot, Action: domain.ActionDelete, Before: current})
	}
}

func (tx *transaction) removeTenant(id string) {
	tx.removeDocuments(domain.DocumentQuery{Kind: domain.OwnerTenant, ID: id})
	current := tx.state.tenants[id]
	delete(tx.state.tenants, id)
	tx.recordChange(Change{Entity: domain.EntityTenant, Action: domain.ActionDelete, Before: current})
}

func (tx *transaction) removeCandidate(id string) {
	tx.removeDocuments(domain.DocumentQuery{Kind: domain.OwnerCandidate, ID: id})
	current := tx.state.candidates[id]
	delete(tx.state.candidates, id)
	tx.recordChange(Change{Entity: domain.EntityCandidate, Action: domain.ActionDelete, Before: current})
}

func (tx *transaction) removeDocuments(q domain.DocumentQuery) {
	for did, d := range tx.state.documents {
		if q.MatchesQuery(d) {
			delete(tx.state.documents, did)
			tx.recordChange(Change{Entity: domain.EntityDocument, Action: domain.ActionDelete, Before: d})
		}
	}
}
