package memory

import (
	"context"
	"sort"

	"rentcore/pkg/domain"
)

// ListEntities returns every entity ordered by name, or only scopeID when set.
// An unknown scope yields an empty slice.
func (s *Store) ListEntities(ctx context.Context, scopeID string) ([]Entity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedEntities(s.state.entities, scopeID), nil
}

// ListProperties returns the properties owned by entityID.
func (s *Store) ListProperties(ctx context.Context, entityID string) ([]Property, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedProperties(s.state.properties, entityID), nil
}

// ListLots returns the lots inside propertyID.
func (s *Store) ListLots(ctx context.Context, propertyID string) ([]Lot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedLots(s.state.lots, propertyID), nil
}

// ListActiveLeases returns the active leases on lotID.
func (s *Store) ListActiveLeases(ctx context.Context, lotID string) ([]Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedLeases(s.state.leases, lotID, true), nil
}

// GetTenantGroup returns the group or a domain.NotFoundError.
func (s *Store) GetTenantGroup(ctx context.Context, groupID string) (TenantGroup, error) {
	if err := ctx.Err(); err != nil {
		return TenantGroup{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.state.tenantGroups[groupID]
	if !ok {
		return TenantGroup{}, domain.NotFoundError{Entity: domain.EntityTenantGroup, ID: groupID}
	}
	return g, nil
}

// ListTenants returns the members of groupID.
func (s *Store) ListTenants(ctx context.Context, groupID string) ([]Tenant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedTenants(s.state.tenants, groupID), nil
}

// ListCandidates returns the candidates who applied for lotID.
func (s *Store) ListCandidates(ctx context.Context, lotID string) ([]Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedCandidates(s.state.candidates, lotID), nil
}

// ListDocuments returns documents whose queried foreign key equals q.ID.
// Documents with several association fields are returned by every matching query.
func (s *Store) ListDocuments(ctx context.Context, q domain.DocumentQuery) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedDocuments(s.state.documents, &q), nil
}

// GetDocument returns a document by id.
func (s *Store) GetDocument(id string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	d, ok := s.state.documents[id]
	if !ok {
		return Document{}, false
	}
	return cloneDocument(d), true
}

func sortedEntities(in map[string]Entity, scopeID string) []Entity {
	out := make([]Entity, 0, len(in))
	for _, e := range in {
		if scopeID != "" && e.ID != scopeID {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sortedProperties(in map[string]Property, entityID string) []Property {
	out := make([]Property, 0)
	for _, p := range in {
		if entityID != "" && p.EntityID != entityID {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sortedLots(in map[string]Lot, propertyID string) []Lot {
	out := make([]Lot, 0)
	for _, l := range in {
		if propertyID != "" && l.PropertyID != propertyID {
			continue
		}
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sortedLeases(in map[string]Lease, lotID string, activeOnly bool) []Lease {
	out := make([]Lease, 0)
	for _, l := range in {
		if lotID != "" && l.LotID != lotID {
			continue
		}
		if activeOnly && !l.IsActive() {
			continue
		}
		out = append(out, cloneLease(l))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func sortedGroups(in map[string]TenantGroup) []TenantGroup {
	out := make([]TenantGroup, 0, len(in))
	for _, g := range in {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedTenants(in map[string]Tenant, groupID string) []Tenant {
	out := make([]Tenant, 0)
	for _, t := range in {
		if groupID != "" && t.TenantGroupID != groupID {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return personLess(out[i].LastName, out[i].FirstName, out[i].ID, out[j].LastName, out[j].FirstName, out[j].ID)
	})
	return out
}

func sortedCandidates(in map[string]Candidate, lotID string) []Candidate {
	out := make([]Candidate, 0)
	for _, c := range in {
		if lotID != "" && c.LotID != lotID {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		return personLess(out[i].LastName, out[i].FirstName, out[i].ID, out[j].LastName, out[j].FirstName, out[j].ID)
	})
	return out
}

func personLess(lastA, firstA, idA, lastB, firstB, idB string) bool {
	if lastA != lastB {
		return lastA < lastB
	}
	if firstA != firstB {
		return firstA < firstB
	}
	return idA < idB
}

func sortedDocuments(in map[string]Document, q *domain.DocumentQuery) []Document {
	out := make([]Document, 0)
	for _, d := range in {
		if q != nil && !q.MatchesQuery(d) {
			continue
		}
		out = append(out, cloneDocument(d))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UploadedAt.Equal(out[j].UploadedAt) {
			return out[i].UploadedAt.After(out[j].UploadedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
