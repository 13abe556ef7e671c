package domain

// OwnerKind names the record type a document is attached to.
type OwnerKind string

// Document owner kinds. OwnerAmbiguous marks a document whose association
// fields are empty or set more than once.
const (
	OwnerLot         OwnerKind = "lot"
	OwnerTenantGroup OwnerKind = "tenant_group"
	OwnerTenant      OwnerKind = "tenant"
	OwnerCandidate   OwnerKind = "candidate"
	OwnerAmbiguous   OwnerKind = "ambiguous"
)

// Valid reports whether k identifies a concrete owner (not ambiguous).
func (k OwnerKind) Valid() bool {
	switch k {
	case OwnerLot, OwnerTenantGroup, OwnerTenant, OwnerCandidate:
		return true
	}
	return false
}

// EntityType maps a concrete owner kind to the record type it references.
func (k OwnerKind) EntityType() EntityType {
	switch k {
	case OwnerLot:
		return EntityLot
	case OwnerTenantGroup:
		return EntityTenantGroup
	case OwnerTenant:
		return EntityTenant
	case OwnerCandidate:
		return EntityCandidate
	}
	return EntityDocument
}

// DocumentOwner is the resolved association of a document. For concrete kinds
// ID holds the owning record id. For OwnerAmbiguous, ID is empty and Fields
// lists the populated association fields (possibly none).
type DocumentOwner struct {
	Kind   OwnerKind   `json:"kind"`
	ID     string      `json:"id,omitempty"`
	Fields []OwnerKind `json:"fields,omitempty"`
}

// Ambiguous reports whether the owner could not be determined.
func (o DocumentOwner) Ambiguous() bool { return o.Kind == OwnerAmbiguous }

// Is reports whether the owner is the concrete record kind/id pair.
func (o DocumentOwner) Is(kind OwnerKind, id string) bool {
	return o.Kind == kind && o.ID == id
}

// ResolveOwner classifies a document by its association fields. Exactly one
// non-empty field yields a concrete owner; anything else is ambiguous and is
// never coerced into one of the candidates.
func ResolveOwner(doc Document) DocumentOwner {
	var (
		fields []OwnerKind
		id     string
	)
	check := func(kind OwnerKind, v *string) {
		if v == nil || *v == "" {
			return
		}
		fields = append(fields, kind)
		id = *v
	}
	check(OwnerLot, doc.LotID)
	check(OwnerTenantGroup, doc.TenantGroupID)
	check(OwnerTenant, doc.TenantID)
	check(OwnerCandidate, doc.CandidateID)

	if len(fields) != 1 {
		return DocumentOwner{Kind: OwnerAmbiguous, Fields: fields}
	}
	return DocumentOwner{Kind: fields[0], ID: id}
}

// AssociationError returns an AmbiguousAssociationError for ambiguous
// documents and nil otherwise.
func AssociationError(doc Document) error {
	owner := ResolveOwner(doc)
	if !owner.Ambiguous() {
		return nil
	}
	return AmbiguousAssociationError{DocumentID: doc.ID, Fields: owner.Fields}
}
