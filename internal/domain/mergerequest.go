package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a merge request.
type Status string

const (
	StatusDraft            Status = "draft"
	StatusPendingReview    Status = "pending_review"
	StatusApproved         Status = "approved"
	StatusRejected         Status = "rejected"
	StatusChangesRequested Status = "changes_requested"
	StatusMerged           Status = "merged"
	StatusClosed           Status = "closed"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPendingReview, StatusApproved,
		StatusRejected, StatusChangesRequested, StatusMerged, StatusClosed:
		return true
	}
	return false
}

// IsTerminal reports whether no operation may leave this status.
func (s Status) IsTerminal() bool {
	return s == StatusMerged || s == StatusClosed
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Operation is a workflow action applied to a merge request.
type Operation string

const (
	OperationSubmit         Operation = "submit"
	OperationApprove        Operation = "approve"
	OperationReject         Operation = "reject"
	OperationRequestChanges Operation = "request_changes"
	OperationMerge          Operation = "merge"
	OperationClose          Operation = "close"
)

// transitions lists, per operation, the statuses it may be invoked from
// and the status each leads to. Terminal statuses appear in no entry.
var transitions = map[Operation]map[Status]Status{
	OperationSubmit: {
		StatusDraft:            StatusPendingReview,
		StatusChangesRequested: StatusPendingReview,
	},
	OperationApprove:        {StatusPendingReview: StatusApproved},
	OperationReject:         {StatusPendingReview: StatusRejected},
	OperationRequestChanges: {StatusPendingReview: StatusChangesRequested},
	OperationMerge:          {StatusApproved: StatusMerged},
	OperationClose: {
		StatusDraft:            StatusClosed,
		StatusPendingReview:    StatusClosed,
		StatusApproved:         StatusClosed,
		StatusRejected:         StatusClosed,
		StatusChangesRequested: StatusClosed,
	},
}

// NextStatus resolves the status an operation leads to from the current
// one. Returns InvalidTransitionError when the transition table has no
// entry for the pair.
func NextStatus(current Status, op Operation) (Status, error) {
	next, ok := transitions[op][current]
	if !ok {
		return "", &InvalidTransitionError{Status: current, Operation: op}
	}
	return next, nil
}

// MergeRequest is a reviewable bundle of proposed ontology changes.
// Version is an optimistic concurrency token: every persisted mutation
// increments it, and writes carrying a stale version are rejected.
type MergeRequest struct {
	ID               uuid.UUID
	OntologyID       uuid.UUID
	Title            string
	Description      string
	Status           Status
	Priority         Priority
	CreatedBy        string
	AssignedReviewer string // empty means unassigned
	ReviewedBy       string // set on first review action
	ReviewComments   string
	Stats            ChangeStats
	Version          int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
	SubmittedAt      *time.Time
	ReviewedAt       *time.Time
	MergedAt         *time.Time
}

// CanAppendChanges reports whether new changes may still be attached.
func (m *MergeRequest) CanAppendChanges() bool {
	return !m.Status.IsTerminal()
}
