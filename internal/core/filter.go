package core

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"rentcore/pkg/domain"
)

// ErrInvalidPredicate is matched by InvalidPredicateError via errors.Is.
var ErrInvalidPredicate = errors.New("invalid predicate")

// InvalidPredicateError reports a rejected filter field.
type InvalidPredicateError struct {
	Field  string
	Reason string
}

func (e InvalidPredicateError) Error() string {
	return fmt.Sprintf("invalid predicate field %q: %s", e.Field, e.Reason)
}

// Is lets errors.Is(err, ErrInvalidPredicate) match any InvalidPredicateError.
func (e InvalidPredicateError) Is(target error) bool { return target == ErrInvalidPredicate }

// Association filter values.
const (
	AssociationAll         = "all"
	AssociationLot         = "lot"
	AssociationTenant      = "tenant"
	AssociationTenantGroup = "tenant_group"
	AssociationCandidate   = "candidate"
	AssociationAmbiguous   = "ambiguous"
)

const dateLayout = "2006-01-02"

// Predicate selects documents. Zero-valued fields do not constrain.
type Predicate struct {
	Search      string
	Category    string
	Association string
	From        *time.Time
	To          *time.Time
}

var predicateKeys = map[string]struct{}{
	"search":      {},
	"category":    {},
	"association": {},
	"from":        {},
	"to":          {},
	"entity_id":   {},
}

// ParsePredicate builds a predicate from query parameters. entity_id is
// accepted and left to the caller as the scope selector.
func ParsePredicate(values url.Values) (Predicate, error) {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if _, ok := predicateKeys[key]; !ok {
			return Predicate{}, InvalidPredicateError{Field: key, Reason: "unknown parameter"}
		}
	}

	p := Predicate{
		Search:      strings.TrimSpace(values.Get("search")),
		Category:    strings.TrimSpace(values.Get("category")),
		Association: strings.ToLower(strings.TrimSpace(values.Get("association"))),
	}
	var err error
	if p.From, err = parseDate("from", values.Get("from")); err != nil {
		return Predicate{}, err
	}
	if p.To, err = parseDate("to", values.Get("to")); err != nil {
		return Predicate{}, err
	}
	if err := p.Validate(); err != nil {
		return Predicate{}, err
	}
	return p, nil
}

func parseDate(field, raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(dateLayout, raw); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, InvalidPredicateError{Field: field, Reason: fmt.Sprintf("expected YYYY-MM-DD or RFC 3339 date, got %q", raw)}
	}
	return &t, nil
}

// Validate checks the association value and the date range.
func (p Predicate) Validate() error {
	switch p.Association {
	case "", AssociationAll, AssociationLot, AssociationTenant, AssociationTenantGroup, AssociationCandidate, AssociationAmbiguous:
	default:
		return InvalidPredicateError{Field: "association", Reason: fmt.Sprintf("unknown association %q", p.Association)}
	}
	if p.From != nil && p.To != nil && p.From.After(endOfDay(*p.To)) {
		return InvalidPredicateError{Field: "from", Reason: "from is after to"}
	}
	return nil
}

// endOfDay returns the last instant of t's calendar day in t's location.
func endOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(time.Second-time.Nanosecond), t.Location())
}

// Filter returns the documents matching every set field of p, preserving
// input order. An invalid p is rejected with an InvalidPredicateError.
func Filter(docs []ScopedDocument, p Predicate) ([]ScopedDocument, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	search := strings.ToLower(p.Search)
	var to time.Time
	if p.To != nil {
		to = endOfDay(*p.To)
	}
	out := make([]ScopedDocument, 0, len(docs))
	for _, doc := range docs {
		if search != "" && !matchesSearch(doc.Document, search) {
			continue
		}
		if p.Category != "" && doc.Category != p.Category {
			continue
		}
		if !matchesAssociation(doc.Owner, p.Association) {
			continue
		}
		if p.From != nil && doc.UploadedAt.Before(*p.From) {
			continue
		}
		if p.To != nil && doc.UploadedAt.After(to) {
			continue
		}
		out = append(out, doc)
	}
	return out, nil
}

func matchesSearch(doc Document, needle string) bool {
	if strings.Contains(strings.ToLower(doc.Title), needle) ||
		strings.Contains(strings.ToLower(doc.FileName), needle) ||
		strings.Contains(strings.ToLower(doc.Description), needle) {
		return true
	}
	for _, tag := range doc.Tags {
		if strings.Contains(strings.ToLower(tag), needle) {
			return true
		}
	}
	return false
}

func matchesAssociation(owner DocumentOwner, association string) bool {
	switch association {
	case "", AssociationAll:
		return true
	case AssociationLot:
		return owner.Kind == domain.OwnerLot
	case AssociationTenant:
		return owner.Kind == domain.OwnerTenant || owner.Kind == domain.OwnerTenantGroup
	case AssociationTenantGroup:
		return owner.Kind == domain.OwnerTenantGroup
	case AssociationCandidate:
		return owner.Kind == domain.OwnerCandidate
	case AssociationAmbiguous:
		return owner.Ambiguous()
	}
	return false
}
