package core

import (
	"context"
	"fmt"

	"rentcore/pkg/domain"
)

// DocumentAssociationRule warns about documents whose association fields do
// not name exactly one owner. Such documents are stored but never counted.
func DocumentAssociationRule() domain.Rule {
	return documentAssociationRule{}
}

type documentAssociationRule struct{}

func (documentAssociationRule) Name() string { return "document_association" }

func (documentAssociationRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityDocument || change.After == nil {
			continue
		}
		doc, ok := change.After.(domain.Document)
		if !ok {
			continue
		}
		if err := domain.AssociationError(doc); err != nil {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "document_association",
				Severity: domain.SeverityWarn,
				Message:  fmt.Sprintf("%v; it will be listed as ambiguous", err),
				Entity:   domain.EntityDocument,
				EntityID: doc.ID,
			})
		}
	}
	return res, nil
}
