package core

import "rentcore/pkg/domain"

type (
	Entity          = domain.Entity
	Property        = domain.Property
	Lot             = domain.Lot
	Lease           = domain.Lease
	TenantGroup     = domain.TenantGroup
	Tenant          = domain.Tenant
	Candidate       = domain.Candidate
	Document        = domain.Document
	DocumentOwner   = domain.DocumentOwner
	OwnerKind       = domain.OwnerKind
	Change          = domain.Change
	Result          = domain.Result
	Violation       = domain.Violation
	RulesEngine     = domain.RulesEngine
	Transaction     = domain.Transaction
	TransactionView = domain.TransactionView
	PersistentStore = domain.PersistentStore
)
