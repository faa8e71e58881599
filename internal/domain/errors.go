package domain

import (
	"errors"
	"fmt"
)

var (
	ErrOntologyNotFound     = errors.New("ontology not found")
	ErrMergeRequestNotFound = errors.New("merge request not found")
	ErrChangeNotFound       = errors.New("change not found")
	ErrCollaboratorExists   = errors.New("collaborator already added")
	ErrCollaboratorNotFound = errors.New("collaborator not found")
	ErrUnauthorized         = errors.New("user lacks permission for this operation")
	ErrValidation           = errors.New("validation failed")
	ErrVersionConflict      = errors.New("merge request modified concurrently, re-fetch and retry")
	ErrInvalidTransition    = errors.New("invalid status transition")
)

// InvalidTransitionError reports an operation attempted from a status
// that does not permit it. Matches ErrInvalidTransition via errors.Is.
type InvalidTransitionError struct {
	Status    Status
	Operation Operation
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s a merge request in status %q", e.Operation, e.Status)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}
