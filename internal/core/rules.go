package core

import "rentcore/pkg/domain"

// NewRulesEngine returns an engine without rules.
func NewRulesEngine() *RulesEngine {
	return domain.NewRulesEngine()
}

// NewDefaultRulesEngine returns an engine with the portfolio integrity rules.
func NewDefaultRulesEngine() *RulesEngine {
	return domain.NewRulesEngine(
		DocumentAssociationRule(),
		LeaseIntegrityRule(),
		ActiveLeaseOverlapRule(),
	)
}
