package core

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"rentcore/internal/infra/persistence/memory"
	"rentcore/pkg/domain"
)

var baseTime = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func at(days int) time.Time { return baseTime.Add(time.Duration(days) * 24 * time.Hour) }

type docFixture struct {
	id, title, category string
	lot, group, tenant  string
	candidate           string
	uploaded            time.Time
	tags                []string
}

func (s docFixture) document() domain.Document {
	doc := domain.Document{
		Base:       domain.Base{ID: s.id},
		FileName:   s.id + ".pdf",
		Title:      s.title,
		Category:   s.category,
		FileSize:   100,
		FileType:   "application/pdf",
		UploadedAt: s.uploaded,
		Tags:       s.tags,
	}
	if s.lot != "" {
		doc.LotID = domain.StringPtr(s.lot)
	}
	if s.group != "" {
		doc.TenantGroupID = domain.StringPtr(s.group)
	}
	if s.tenant != "" {
		doc.TenantID = domain.StringPtr(s.tenant)
	}
	if s.candidate != "" {
		doc.CandidateID = domain.StringPtr(s.candidate)
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = baseTime
	}
	return doc
}

// newScenarioStore seeds the reference portfolio:
//
//	E1 / P1 / L1: 2 lot docs, active lease to G1 (2 docs; T1 1 doc, T2 none), C1 (3 docs)
//	E1 / P1 / L2: terminated lease to G2 (2 docs)
//	E1 / P1 / L3: two active leases to G3 (1 doc)
//	E2 / P2 / L4: empty lot
//
// doc-amb carries both a tenant and a candidate id.
func newScenarioStore(t *testing.T) *memory.Store {
	t.Helper()
	store := memory.NewStore(domain.NewRulesEngine())
	store.SetNowFunc(func() time.Time { return baseTime })

	docs := []docFixture{
		{id: "doc-l1-a", title: "Diagnostic énergétique", category: "diagnostic", lot: "L1", uploaded: at(1)},
		{id: "doc-l1-b", title: "Plan du lot", category: "plan", lot: "L1", uploaded: at(2)},
		{id: "doc-g1-a", title: "Bail Dupont", category: "bail", group: "G1", uploaded: at(3), tags: []string{"Signed"}},
		{id: "doc-g1-b", title: "Etat des lieux", category: "edl", group: "G1", uploaded: at(4)},
		{id: "doc-t1-a", title: "Pièce d'identité", category: "identite", tenant: "T1", uploaded: at(5), tags: []string{"signed", "ID"}},
		{id: "doc-c1-a", title: "Bulletin de salaire", category: "revenus", candidate: "C1", uploaded: at(6)},
		{id: "doc-c1-b", title: "Avis d'imposition", category: "revenus", candidate: "C1", uploaded: at(7)},
		{id: "doc-c1-c", title: "Bail précédent", category: "bail", candidate: "C1", uploaded: at(8)},
		{id: "doc-g2-a", title: "Bail Martin", category: "bail", group: "G2", uploaded: at(9)},
		{id: "doc-g2-b", title: "Quittance", category: "quittance", group: "G2", uploaded: at(10)},
		{id: "doc-g3-a", title: "Bail colocation", category: "bail", group: "G3", uploaded: at(11)},
		{id: "doc-amb", title: "Garant", category: "garant", tenant: "T1", candidate: "C1", uploaded: at(12)},
	}

	_, err := store.RunInTransaction(context.Background(), func(tx domain.Transaction) error {
		steps := []func() error{
			func() error { _, err := tx.CreateEntity(domain.Entity{Base: domain.Base{ID: "E1"}, Name: "Alpha SCI", Type: domain.EntityKindSCI}); return err },
			func() error { _, err := tx.CreateEntity(domain.Entity{Base: domain.Base{ID: "E2"}, Name: "Beta"}); return err },
			func() error { _, err := tx.CreateProperty(domain.Property{Base: domain.Base{ID: "P1"}, Name: "Rue Neuve", EntityID: "E1"}); return err },
			func() error { _, err := tx.CreateProperty(domain.Property{Base: domain.Base{ID: "P2"}, Name: "Quai Sud", EntityID: "E2"}); return err },
			func() error { _, err := tx.CreateLot(domain.Lot{Base: domain.Base{ID: "L1"}, Name: "Lot 1", PropertyID: "P1"}); return err },
			func() error { _, err := tx.CreateLot(domain.Lot{Base: domain.Base{ID: "L2"}, Name: "Lot 2", PropertyID: "P1"}); return err },
			func() error { _, err := tx.CreateLot(domain.Lot{Base: domain.Base{ID: "L3"}, Name: "Lot 3", PropertyID: "P1"}); return err },
			func() error { _, err := tx.CreateLot(domain.Lot{Base: domain.Base{ID: "L4"}, Name: "Lot 4", PropertyID: "P2"}); return err },
			func() error { _, err := tx.CreateTenantGroup(domain.TenantGroup{Base: domain.Base{ID: "G1"}, GroupType: domain.GroupTypeCouple}); return err },
			func() error { _, err := tx.CreateTenantGroup(domain.TenantGroup{Base: domain.Base{ID: "G2"}}); return err },
			func() error { _, err := tx.CreateTenantGroup(domain.TenantGroup{Base: domain.Base{ID: "G3"}, GroupType: domain.GroupTypeColocation}); return err },
			func() error { _, err := tx.CreateTenant(domain.Tenant{Base: domain.Base{ID: "T1"}, TenantGroupID: "G1", FirstName: "Anne", LastName: "Dupont"}); return err },
			func() error { _, err := tx.CreateTenant(domain.Tenant{Base: domain.Base{ID: "T2"}, TenantGroupID: "G1", FirstName: "Paul", LastName: "Dupont"}); return err },
			func() error { _, err := tx.CreateCandidate(domain.Candidate{Base: domain.Base{ID: "C1"}, LotID: "L1", FirstName: "Léa", LastName: "Moreau"}); return err },
			func() error { _, err := tx.CreateLease(domain.Lease{Base: domain.Base{ID: "lease-1"}, LotID: "L1", TenantGroupID: "G1", Status: domain.LeaseStatusActive, StartDate: at(-30)}); return err },
			func() error { _, err := tx.CreateLease(domain.Lease{Base: domain.Base{ID: "lease-2"}, LotID: "L2", TenantGroupID: "G2", Status: domain.LeaseStatusTerminated, StartDate: at(-60)}); return err },
			func() error { _, err := tx.CreateLease(domain.Lease{Base: domain.Base{ID: "lease-3a"}, LotID: "L3", TenantGroupID: "G3", Status: domain.LeaseStatusActive, StartDate: at(-20)}); return err },
			func() error { _, err := tx.CreateLease(domain.Lease{Base: domain.Base{ID: "lease-3b"}, LotID: "L3", TenantGroupID: "G3", Status: domain.LeaseStatusActive, StartDate: at(-10)}); return err },
		}
		for _, step := range steps {
			if err := step(); err != nil {
				return err
			}
		}
		for _, fx := range docs {
			if _, err := tx.CreateDocument(fx.document()); err != nil {
				return fmt.Errorf("document %s: %w", fx.id, err)
			}
		}
		return nil
	})
	require.NoError(t, err)
	return store
}

// failingPortfolio wraps a portfolio and fails selected calls. Keys are
// "<method>:<id>".
type failingPortfolio struct {
	domain.Portfolio
	failures map[string]error
}

func newFailingPortfolio(p domain.Portfolio, keys ...string) *failingPortfolio {
	f := &failingPortfolio{Portfolio: p, failures: make(map[string]error, len(keys))}
	for _, key := range keys {
		f.failures[key] = fmt.Errorf("injected failure %s", key)
	}
	return f
}

func (f *failingPortfolio) fail(method, id string) error {
	return f.failures[method+":"+id]
}

func (f *failingPortfolio) ListEntities(ctx context.Context, scopeID string) ([]domain.Entity, error) {
	if err := f.fail("ListEntities", scopeID); err != nil {
		return nil, err
	}
	return f.Portfolio.ListEntities(ctx, scopeID)
}

func (f *failingPortfolio) ListProperties(ctx context.Context, entityID string) ([]domain.Property, error) {
	if err := f.fail("ListProperties", entityID); err != nil {
		return nil, err
	}
	return f.Portfolio.ListProperties(ctx, entityID)
}

func (f *failingPortfolio) ListLots(ctx context.Context, propertyID string) ([]domain.Lot, error) {
	if err := f.fail("ListLots", propertyID); err != nil {
		return nil, err
	}
	return f.Portfolio.ListLots(ctx, propertyID)
}

func (f *failingPortfolio) ListActiveLeases(ctx context.Context, lotID string) ([]domain.Lease, error) {
	if err := f.fail("ListActiveLeases", lotID); err != nil {
		return nil, err
	}
	return f.Portfolio.ListActiveLeases(ctx, lotID)
}

func (f *failingPortfolio) GetTenantGroup(ctx context.Context, groupID string) (domain.TenantGroup, error) {
	if err := f.fail("GetTenantGroup", groupID); err != nil {
		return domain.TenantGroup{}, err
	}
	return f.Portfolio.GetTenantGroup(ctx, groupID)
}

func (f *failingPortfolio) ListTenants(ctx context.Context, groupID string) ([]domain.Tenant, error) {
	if err := f.fail("ListTenants", groupID); err != nil {
		return nil, err
	}
	return f.Portfolio.ListTenants(ctx, groupID)
}

func (f *failingPortfolio) ListCandidates(ctx context.Context, lotID string) ([]domain.Candidate, error) {
	if err := f.fail("ListCandidates", lotID); err != nil {
		return nil, err
	}
	return f.Portfolio.ListCandidates(ctx, lotID)
}

func (f *failingPortfolio) ListDocuments(ctx context.Context, q domain.DocumentQuery) ([]domain.Document, error) {
	if err := f.fail("ListDocuments", string(q.Kind)+"/"+q.ID); err != nil {
		return nil, err
	}
	return f.Portfolio.ListDocuments(ctx, q)
}

type captureLogger struct {
	mu    sync.Mutex
	calls []string
}

func (c *captureLogger) record(level, msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, level+":"+msg)
}

func (c *captureLogger) Debug(msg string, _ ...any) { c.record("d", msg) }
func (c *captureLogger) Info(msg string, _ ...any)  { c.record("i", msg) }
func (c *captureLogger) Warn(msg string, _ ...any)  { c.record("w", msg) }
func (c *captureLogger) Error(msg string, _ ...any) { c.record("e", msg) }

func (c *captureLogger) has(call string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, got := range c.calls {
		if got == call {
			return true
		}
	}
	return false
}

type metricsCall struct {
	op      string
	success bool
}

type captureMetricsRecorder struct {
	mu    sync.Mutex
	calls []metricsCall
}

func (c *captureMetricsRecorder) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, metricsCall{op: op, success: success})
}

func (c *captureMetricsRecorder) has(op string, success bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, call := range c.calls {
		if call.op == op && call.success == success {
			return true
		}
	}
	return false
}

// lotNode finds a lot anywhere in the forest.
func lotNode(t *testing.T, forest Forest, lotID string) LotNode {
	t.Helper()
	for _, e := range forest.Entities {
		for _, p := range e.Properties {
			for _, l := range p.Lots {
				if l.Lot.ID == lotID {
					return l
				}
			}
		}
	}
	t.Fatalf("lot %s not in forest", lotID)
	return LotNode{}
}

func docIDs(docs []ScopedDocument) []string {
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids
}

// requireAdditive checks the roll-up identities at every level.
func requireAdditive(t *testing.T, forest Forest) {
	t.Helper()
	for _, e := range forest.Entities {
		entitySum := 0
		for _, p := range e.Properties {
			entitySum += p.DocumentCount
			if p.Failed {
				require.Zero(t, p.DocumentCount)
				continue
			}
			propertySum := 0
			for _, l := range p.Lots {
				propertySum += l.DocumentCount
				if l.Failed {
					require.Zero(t, l.DocumentCount)
					continue
				}
				lotSum := len(l.Documents)
				for _, c := range l.Candidates {
					require.Equal(t, len(c.Documents), c.DocumentCount, "candidate %s", c.Candidate.ID)
					lotSum += c.DocumentCount
				}
				for _, g := range l.TenantGroups {
					groupSum := len(g.Documents)
					for _, tn := range g.Tenants {
						require.Equal(t, len(tn.Documents), tn.DocumentCount, "tenant %s", tn.Tenant.ID)
						groupSum += tn.DocumentCount
					}
					if !g.Failed {
						require.Equal(t, groupSum, g.DocumentCount, "group %s", g.Group.ID)
					}
					lotSum += g.DocumentCount
				}
				require.Equal(t, lotSum, l.DocumentCount, "lot %s", l.Lot.ID)
			}
			require.Equal(t, propertySum, p.DocumentCount, "property %s", p.Property.ID)
		}
		require.Equal(t, entitySum, e.DocumentCount, "entity %s", e.Entity.ID)
	}
}

func newEmptyStore() *memory.Store { return memory.NewStore(nil) }
