package core

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"rentcore/pkg/domain"
)

// ActiveLeaseOverlapRule warns when a lot touched by the transaction has
// active leases for more than one distinct tenant group.
func ActiveLeaseOverlapRule() domain.Rule {
	return activeLeaseOverlapRule{}
}

type activeLeaseOverlapRule struct{}

func (activeLeaseOverlapRule) Name() string { return "active_lease_overlap" }

func (activeLeaseOverlapRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	touched := make(map[string]struct{})
	for _, change := range changes {
		if change.Entity != domain.EntityLease || change.After == nil {
			continue
		}
		if lease, ok := change.After.(domain.Lease); ok && lease.IsActive() {
			touched[lease.LotID] = struct{}{}
		}
	}
	if len(touched) == 0 {
		return res, nil
	}

	groups := make(map[string]map[string]struct{})
	for _, lease := range view.ListLeases() {
		if _, ok := touched[lease.LotID]; !ok || !lease.IsActive() {
			continue
		}
		if groups[lease.LotID] == nil {
			groups[lease.LotID] = make(map[string]struct{})
		}
		groups[lease.LotID][lease.TenantGroupID] = struct{}{}
	}

	lots := make([]string, 0, len(groups))
	for lotID := range groups {
		lots = append(lots, lotID)
	}
	sort.Strings(lots)
	for _, lotID := range lots {
		if len(groups[lotID]) < 2 {
			continue
		}
		ids := make([]string, 0, len(groups[lotID]))
		for id := range groups[lotID] {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		res.Violations = append(res.Violations, domain.Violation{
			Rule:     "active_lease_overlap",
			Severity: domain.SeverityWarn,
			Message:  fmt.Sprintf("lot %s has active leases for %d tenant groups (%s)", lotID, len(ids), strings.Join(ids, ", ")),
			Entity:   domain.EntityLot,
			EntityID: lotID,
		})
	}
	return res, nil
}
