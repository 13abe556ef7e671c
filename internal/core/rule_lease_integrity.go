package core

import (
	"context"
	"fmt"

	"rentcore/pkg/domain"
)

// LeaseIntegrityRule blocks leases on unknown lots and warns about leases
// referencing a tenant group that does not exist.
func LeaseIntegrityRule() domain.Rule {
	return leaseIntegrityRule{}
}

type leaseIntegrityRule struct{}

func (leaseIntegrityRule) Name() string { return "lease_integrity" }

func (leaseIntegrityRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityLease || change.After == nil {
			continue
		}
		lease, ok := change.After.(domain.Lease)
		if !ok {
			continue
		}
		if _, ok := view.FindLot(lease.LotID); !ok {
			res.Violations = append(res.Violations, leaseViolation(domain.SeverityBlock, lease.ID,
				fmt.Sprintf("lease %s references missing lot %s", lease.ID, lease.LotID)))
		}
		if _, ok := view.FindTenantGroup(lease.TenantGroupID); !ok {
			res.Violations = append(res.Violations, leaseViolation(domain.SeverityWarn, lease.ID,
				fmt.Sprintf("lease %s references missing tenant group %s", lease.ID, lease.TenantGroupID)))
		}
	}
	return res, nil
}

func leaseViolation(severity domain.Severity, leaseID, message string) domain.Violation {
	return domain.Violation{
		Rule:     "lease_integrity",
		Severity: severity,
		Message:  message,
		Entity:   domain.EntityLease,
		EntityID: leaseID,
	}
}
