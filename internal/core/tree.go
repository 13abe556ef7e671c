package core

import "rentcore/pkg/domain"

// NodeState is shared by every tree node. DocumentCount is the rolled-up
// number of documents owned by the node and its descendants. A failed node
// reports zero and carries no children or documents.
type NodeState struct {
	DocumentCount int    `json:"documentCount"`
	Failed        bool   `json:"failed,omitempty"`
	Error         string `json:"error,omitempty"`
}

func (s *NodeState) fail(err error) {
	s.Failed = true
	s.Error = err.Error()
	s.DocumentCount = 0
}

// Placement locates a document inside the tree.
type Placement struct {
	EntityID   string `json:"entity_id"`
	PropertyID string `json:"property_id"`
	LotID      string `json:"lot_id"`
}

// ScopedDocument is a document together with its resolved owner and the
// branch of the tree it was reached through.
type ScopedDocument struct {
	Document
	Owner     DocumentOwner `json:"owner"`
	Placement Placement     `json:"placement"`
}

// Ambiguous reports whether the document has no single owner.
func (d ScopedDocument) Ambiguous() bool { return d.Owner.Ambiguous() }

// EntityNode is the root of one holding's subtree.
type EntityNode struct {
	NodeState
	Entity     Entity         `json:"entity"`
	Properties []PropertyNode `json:"properties"`
}

// PropertyNode groups the lots of one property.
type PropertyNode struct {
	NodeState
	Property Property  `json:"property"`
	Lots     []LotNode `json:"lots"`
}

// LotNode holds the lot's own documents, the tenant groups under active
// leases and the candidate branch.
type LotNode struct {
	NodeState
	Lot          Lot               `json:"lot"`
	Documents    []ScopedDocument  `json:"documents"`
	Ambiguous    []ScopedDocument  `json:"ambiguous"`
	TenantGroups []TenantGroupNode `json:"tenant_groups"`
	Candidates   []CandidateNode   `json:"candidates"`

	missingGroups   []string
	duplicateGroups []string
}

// TenantGroupNode is a group linked to the lot by at least one active lease.
type TenantGroupNode struct {
	NodeState
	Group     TenantGroup      `json:"group"`
	Documents []ScopedDocument `json:"documents"`
	Ambiguous []ScopedDocument `json:"ambiguous"`
	Tenants   []TenantNode     `json:"tenants"`
}

// TenantNode is one member of a tenant group.
type TenantNode struct {
	NodeState
	Tenant    Tenant           `json:"tenant"`
	Documents []ScopedDocument `json:"documents"`
	Ambiguous []ScopedDocument `json:"ambiguous"`
}

// CandidateNode is one applicant for the lot.
type CandidateNode struct {
	NodeState
	Candidate Candidate        `json:"candidate"`
	Documents []ScopedDocument `json:"documents"`
	Ambiguous []ScopedDocument `json:"ambiguous"`
}

// NodeRef identifies a node that could not be fully built.
type NodeRef struct {
	Kind  domain.EntityType `json:"kind"`
	ID    string            `json:"id"`
	Error string            `json:"error"`
}

// LeaseAnomaly names a lot/group pair linked by an active lease that did not
// produce a normal group node.
type LeaseAnomaly struct {
	LotID         string `json:"lot_id"`
	TenantGroupID string `json:"tenant_group_id"`
}

// Diagnostics explains the gaps and irregularities met during a build.
type Diagnostics struct {
	FailedNodes          []NodeRef      `json:"failed_nodes"`
	MissingTenantGroups  []LeaseAnomaly `json:"missing_tenant_groups"`
	DuplicateLeases      []LeaseAnomaly `json:"duplicate_leases"`
	MultipleActiveGroups []string       `json:"multiple_active_groups"`
	AmbiguousDocuments   []string       `json:"ambiguous_documents"`
}

// Forest is the result of BuildTree: one subtree per holding entity.
type Forest struct {
	Entities    []EntityNode `json:"entities"`
	Diagnostics Diagnostics  `json:"diagnostics"`
}

// DocumentCount sums the root counts.
func (f Forest) DocumentCount() int {
	total := 0
	for _, e := range f.Entities {
		total += e.DocumentCount
	}
	return total
}

func (n *TenantNode) rollUp() {
	if n.Failed {
		n.Documents, n.Ambiguous = nil, nil
		return
	}
	n.DocumentCount = len(n.Documents)
}

func (n *CandidateNode) rollUp() {
	if n.Failed {
		n.Documents, n.Ambiguous = nil, nil
		return
	}
	n.DocumentCount = len(n.Documents)
}

func (n *TenantGroupNode) rollUp() {
	if n.Failed {
		n.Documents, n.Ambiguous, n.Tenants = nil, nil, nil
		return
	}
	n.DocumentCount = len(n.Documents)
	for _, t := range n.Tenants {
		n.DocumentCount += t.DocumentCount
	}
}

func (n *LotNode) rollUp() {
	if n.Failed {
		n.Documents, n.Ambiguous, n.TenantGroups, n.Candidates = nil, nil, nil, nil
		return
	}
	n.DocumentCount = len(n.Documents)
	for _, c := range n.Candidates {
		n.DocumentCount += c.DocumentCount
	}
	for _, g := range n.TenantGroups {
		n.DocumentCount += g.DocumentCount
	}
}

func (n *PropertyNode) rollUp() {
	if n.Failed {
		n.Lots = nil
		return
	}
	n.DocumentCount = 0
	for _, l := range n.Lots {
		n.DocumentCount += l.DocumentCount
	}
}

func (n *EntityNode) rollUp() {
	n.DocumentCount = 0
	for _, p := range n.Properties {
		n.DocumentCount += p.DocumentCount
	}
}

// diagnose walks a built forest and collects its diagnostics.
func diagnose(entities []EntityNode) Diagnostics {
	d := Diagnostics{
		FailedNodes:          []NodeRef{},
		MissingTenantGroups:  []LeaseAnomaly{},
		DuplicateLeases:      []LeaseAnomaly{},
		MultipleActiveGroups: []string{},
		AmbiguousDocuments:   []string{},
	}
	seenAmbiguous := make(map[string]struct{})
	ambiguous := func(docs []ScopedDocument) {
		for _, doc := range docs {
			if _, ok := seenAmbiguous[doc.ID]; ok {
				continue
			}
			seenAmbiguous[doc.ID] = struct{}{}
			d.AmbiguousDocuments = append(d.AmbiguousDocuments, doc.ID)
		}
	}
	failed := func(kind domain.EntityType, id string, s NodeState) bool {
		if s.Failed {
			d.FailedNodes = append(d.FailedNodes, NodeRef{Kind: kind, ID: id, Error: s.Error})
		}
		return s.Failed
	}

	for _, e := range entities {
		for _, p := range e.Properties {
			if failed(domain.EntityProperty, p.Property.ID, p.NodeState) {
				continue
			}
			for _, l := range p.Lots {
				if failed(domain.EntityLot, l.Lot.ID, l.NodeState) {
					continue
				}
				for _, id := range l.missingGroups {
					d.MissingTenantGroups = append(d.MissingTenantGroups, LeaseAnomaly{LotID: l.Lot.ID, TenantGroupID: id})
				}
				for _, id := range l.duplicateGroups {
					d.DuplicateLeases = append(d.DuplicateLeases, LeaseAnomaly{LotID: l.Lot.ID, TenantGroupID: id})
				}
				if len(l.TenantGroups)+len(l.missingGroups) > 1 {
					d.MultipleActiveGroups = append(d.MultipleActiveGroups, l.Lot.ID)
				}
				ambiguous(l.Ambiguous)
				for _, g := range l.TenantGroups {
					if failed(domain.EntityTenantGroup, g.Group.ID, g.NodeState) {
						continue
					}
					ambiguous(g.Ambiguous)
					for _, t := range g.Tenants {
						if !failed(domain.EntityTenant, t.Tenant.ID, t.NodeState) {
							ambiguous(t.Ambiguous)
						}
					}
				}
				for _, c := range l.Candidates {
					if !failed(domain.EntityCandidate, c.Candidate.ID, c.NodeState) {
						ambiguous(c.Ambiguous)
					}
				}
			}
		}
	}
	return d
}
