// Package domain defines the portfolio records, document association model,
// persistence contracts and rule evaluation primitives used by rentcore.
package domain

import "time"

// EntityType identifies the type of record stored in the portfolio.
type EntityType string

// Supported entity type identifiers used in Change records, errors and persistence buckets.
const (
	// EntityHolding identifies a legal holding entity record.
	EntityHolding EntityType = "entity"
	// EntityProperty identifies a building or land parcel.
	EntityProperty EntityType = "property"
	// EntityLot identifies a rentable unit within a property.
	EntityLot         EntityType = "lot"
	EntityLease       EntityType = "lease"
	EntityTenantGroup EntityType = "tenant_group"
	EntityTenant      EntityType = "tenant"
	EntityCandidate   EntityType = "candidate"
	// EntityDocument identifies an uploaded document record.
	EntityDocument EntityType = "document"
)

// EntityKind describes the legal form of a holding entity.
type EntityKind string

// Known holding structures. Stores accept any value; these are the ones the UI offers.
const (
	EntityKindIndividual EntityKind = "individual"
	EntityKindSCI        EntityKind = "sci"
	EntityKindSARL       EntityKind = "sarl"
	EntityKindIndivision EntityKind = "indivision"
	EntityKindOther      EntityKind = "other"
)

// LotStatus tracks the occupancy state of a lot.
type LotStatus string

// Canonical lot statuses.
const (
	LotStatusVacant      LotStatus = "vacant"
	LotStatusOccupied    LotStatus = "occupied"
	LotStatusUnavailable LotStatus = "unavailable"
)

// LeaseStatus enumerates lease lifecycle states. Only active leases link a
// tenant group into the current portfolio tree.
type LeaseStatus string

// Canonical lease statuses.
const (
	LeaseStatusPending    LeaseStatus = "pending"
	LeaseStatusActive     LeaseStatus = "active"
	LeaseStatusTerminated LeaseStatus = "terminated"
	LeaseStatusArchived   LeaseStatus = "archived"
)

// GroupType describes how many people share a lease.
type GroupType string

// Canonical tenant group types.
const (
	GroupTypeIndividual GroupType = "individual"
	GroupTypeCouple     GroupType = "couple"
	GroupTypeColocation GroupType = "colocation"
)

// CandidateStatus enumerates rental application states.
type CandidateStatus string

// Canonical candidate statuses.
const (
	CandidateStatusSubmitted CandidateStatus = "submitted"
	CandidateStatusReviewing CandidateStatus = "reviewing"
	CandidateStatusAccepted  CandidateStatus = "accepted"
	CandidateStatusRejected  CandidateStatus = "rejected"
	CandidateStatusArchived  CandidateStatus = "archived"
)

// Base contains common fields for all portfolio records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Entity is a legal holding structure owning properties.
type Entity struct {
	Base
	Name string     `json:"name"`
	Type EntityKind `json:"type"`
}

// Property is a building or land parcel held by an entity.
type Property struct {
	Base
	Name     string `json:"name"`
	EntityID string `json:"entity_id"`
	Address  string `json:"address,omitempty"`
}

// Lot is a rentable unit within a property.
type Lot struct {
	Base
	Name       string    `json:"name"`
	PropertyID string    `json:"property_id"`
	Status     LotStatus `json:"status"`
}

// Lease links a lot to the tenant group occupying it.
type Lease struct {
	Base
	LotID         string      `json:"lot_id"`
	TenantGroupID string      `json:"tenant_group_id"`
	Status        LeaseStatus `json:"status"`
	StartDate     time.Time   `json:"start_date"`
	EndDate       *time.Time  `json:"end_date,omitempty"`
}

// IsActive reports whether the lease contributes its tenant group to the live tree.
func (l Lease) IsActive() bool { return l.Status == LeaseStatusActive }

// TenantGroup is the set of co-tenants on a single lease.
type TenantGroup struct {
	Base
	GroupType GroupType `json:"group_type"`
}

// Tenant is an individual member of a tenant group.
type Tenant struct {
	Base
	TenantGroupID string `json:"tenant_group_id"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email,omitempty"`
}

// Candidate is a rental applicant tied directly to a lot.
type Candidate struct {
	Base
	LotID     string          `json:"lot_id"`
	FirstName string          `json:"first_name"`
	LastName  string          `json:"last_name"`
	Email     string          `json:"email,omitempty"`
	Status    CandidateStatus `json:"status"`
}

// Document is an uploaded file attached to exactly one of a lot, tenant
// group, tenant or candidate. The association fields are nullable foreign
// keys; ResolveOwner interprets them.
type Document struct {
	Base
	FileName      string    `json:"file_name"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Category      string    `json:"category"`
	FileSize      int64     `json:"file_size"`
	FileType      string    `json:"file_type"`
	UploadedAt    time.Time `json:"uploaded_at"`
	Tags          []string  `json:"tags,omitempty"`
	StorageKey    string    `json:"storage_key,omitempty"`
	LotID         *string   `json:"lot_id"`
	TenantGroupID *string   `json:"tenant_group_id"`
	TenantID      *string   `json:"tenant_id"`
	CandidateID   *string   `json:"candidate_id"`
}

// Change describes a mutation applied to a record during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported CRUD operations.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behaviour.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn reports a data problem but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// StringPtr returns a pointer to a copy of s. Handy for association fields.
func StringPtr(s string) *string { return &s }
