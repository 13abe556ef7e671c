package domain

import (
	"context"
	"fmt"
)

// RuleView is the committed-plus-pending state a rule inspects.
type RuleView interface {
	ListEntities() []Entity
	ListProperties() []Property
	ListLots() []Lot
	ListLeases() []Lease
	ListTenantGroups() []TenantGroup
	ListTenants() []Tenant
	ListCandidates() []Candidate
	ListDocuments() []Document
	FindEntity(id string) (Entity, bool)
	FindProperty(id string) (Property, bool)
	FindLot(id string) (Lot, bool)
	FindTenantGroup(id string) (TenantGroup, bool)
	FindTenant(id string) (Tenant, bool)
	FindCandidate(id string) (Candidate, bool)
}

// Rule inspects a transaction's changes before it commits. Block-severity
// violations abort the commit.
type Rule interface {
	Name() string
	Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

// RuleFunc adapts a function to Rule.
type RuleFunc struct {
	RuleName string
	Fn       func(ctx context.Context, view RuleView, changes []Change) (Result, error)
}

func (f RuleFunc) Name() string { return f.RuleName }

func (f RuleFunc) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	return f.Fn(ctx, view, changes)
}

// RulesEngine runs rules in registration order. It is not safe to Register
// while transactions are running.
type RulesEngine struct {
	rules []Rule
}

// NewRulesEngine returns an engine holding rules.
func NewRulesEngine(rules ...Rule) *RulesEngine {
	return &RulesEngine{rules: append([]Rule(nil), rules...)}
}

func (e *RulesEngine) Register(rule Rule) {
	e.rules = append(e.rules, rule)
}

// Rules returns a copy of the registered rules.
func (e *RulesEngine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// Evaluate runs every rule and merges their violations. Violations without a
// rule name are attributed to the rule that produced them. The first rule
// error stops evaluation.
func (e *RulesEngine) Evaluate(ctx context.Context, view RuleView, changes []Change) (Result, error) {
	var combined Result
	for _, rule := range e.rules {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}
		res, err := rule.Evaluate(ctx, view, changes)
		if err != nil {
			return Result{}, fmt.Errorf("rule %s: %w", rule.Name(), err)
		}
		for i := range res.Violations {
			if res.Violations[i].Rule == "" {
				res.Violations[i].Rule = rule.Name()
			}
		}
		combined.Merge(res)
	}
	return combined, nil
}
