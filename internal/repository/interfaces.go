package repository

import (
	"context"

	"github.com/eidos-ontology/eidos/internal/domain"
	"github.com/google/uuid"
)

// MergeRequestRepository - persistence for merge requests
type MergeRequestRepository interface {
	Create(ctx context.Context, mr *domain.MergeRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.MergeRequest, error)
	// UpdateWithComment persists a status transition and its audit
	// comment as one transaction, compare-and-swapped on mr.Version.
	// Returns domain.ErrVersionConflict when the stored version moved.
	UpdateWithComment(ctx context.Context, mr *domain.MergeRequest, comment *domain.MergeRequestComment) error
	// ApplyMerge is UpdateWithComment plus applying every change
	// payload to the ontology's entity table, in the same transaction.
	ApplyMerge(ctx context.Context, mr *domain.MergeRequest, comment *domain.MergeRequestComment, changes []*domain.MergeRequestChange) error
	// UpdateStats rewrites the derived counters and conflict flag,
	// compare-and-swapped on mr.Version.
	UpdateStats(ctx context.Context, mr *domain.MergeRequest) error
	PendingReviewCount(ctx context.Context, ontologyID uuid.UUID) (int, error)
}

// ChangeRepository - persistence for proposed changes
type ChangeRepository interface {
	Create(ctx context.Context, change *domain.MergeRequestChange) error
	ListByMergeRequest(ctx context.Context, mergeRequestID uuid.UUID) ([]*domain.MergeRequestChange, error)
	// SetConflictFlags updates has_conflict per change id.
	SetConflictFlags(ctx context.Context, flags map[uuid.UUID]bool) error
}

// CommentRepository - append-only audit trail of review comments
type CommentRepository interface {
	Create(ctx context.Context, comment *domain.MergeRequestComment) error
	ListByMergeRequest(ctx context.Context, mergeRequestID uuid.UUID) ([]*domain.MergeRequestComment, error)
}

// OntologyRepository - persistence for ontologies and collaborators
type OntologyRepository interface {
	Create(ctx context.Context, ontology *domain.Ontology) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Ontology, error)
	AddCollaborator(ctx context.Context, collaborator *domain.Collaborator) error
	RemoveCollaborator(ctx context.Context, ontologyID uuid.UUID, userID string) error
}

// EntityStateRepository reads the live state of ontology entities for
// conflict detection. Absence is reported via found=false, not an error.
type EntityStateRepository interface {
	GetLiveState(ctx context.Context, ontologyID uuid.UUID, entityType domain.EntityType, entityID uuid.UUID) (state *domain.EntityState, found bool, err error)
}

// PermissionRepository - permission gate backed by collaborator roles
type PermissionRepository interface {
	CanEdit(ctx context.Context, ontologyID uuid.UUID, userID string) (bool, error)
	CanManage(ctx context.Context, ontologyID uuid.UUID, userID string) (bool, error)
}
