package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound is matched by NotFoundError via errors.Is.
	ErrNotFound = errors.New("not found")
	// ErrAmbiguousAssociation is matched by AmbiguousAssociationError via errors.Is.
	ErrAmbiguousAssociation = errors.New("ambiguous document association")
)

// NotFoundError is returned when a referenced record does not exist.
type NotFoundError struct {
	Entity EntityType
	ID     string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

// Is lets errors.Is(err, ErrNotFound) match any NotFoundError.
func (e NotFoundError) Is(target error) bool { return target == ErrNotFound }

// AmbiguousAssociationError reports a document whose association fields do
// not identify exactly one owner.
type AmbiguousAssociationError struct {
	DocumentID string
	Fields     []OwnerKind
}

func (e AmbiguousAssociationError) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("document %s has no association", e.DocumentID)
	}
	names := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		names[i] = string(f)
	}
	return fmt.Sprintf("document %s has %d associations (%s)", e.DocumentID, len(e.Fields), strings.Join(names, ", "))
}

// Is lets errors.Is(err, ErrAmbiguousAssociation) match any AmbiguousAssociationError.
func (e AmbiguousAssociationError) Is(target error) bool { return target == ErrAmbiguousAssociation }

// FetchError wraps a collaborator failure while reading children of a record.
type FetchError struct {
	Entity EntityType
	ID     string
	Err    error
}

func (e *FetchError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("fetch %s: %v", e.Entity, e.Err)
	}
	return fmt.Sprintf("fetch %s for %s: %v", e.Entity, e.ID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	for _, v := range e.Result.Violations {
		if v.Severity == SeverityBlock {
			return fmt.Sprintf("transaction blocked by rule %s: %s", v.Rule, v.Message)
		}
	}
	return "transaction blocked by rules"
}
