package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/eidos-ontology/eidos/internal/domain"
	"github.com/eidos-ontology/eidos/internal/pkg/logger"
	"github.com/eidos-ontology/eidos/internal/repository"
	. "github.com/go-ozzo/ozzo-validation"
	"github.com/google/uuid"
)

// MergeRequestService owns the review workflow: it validates inputs,
// checks permissions, resolves transitions through the domain table,
// and persists every transition together with its audit comment.
type MergeRequestService struct {
	mrRepo       repository.MergeRequestRepository
	changeRepo   repository.ChangeRepository
	commentRepo  repository.CommentRepository
	ontologyRepo repository.OntologyRepository
	entityRepo   repository.EntityStateRepository
	permRepo     repository.PermissionRepository
	logger       *logger.Logger
}

func NewMergeRequestService(
	mrRepo repository.MergeRequestRepository,
	changeRepo repository.ChangeRepository,
	commentRepo repository.CommentRepository,
	ontologyRepo repository.OntologyRepository,
	entityRepo repository.EntityStateRepository,
	permRepo repository.PermissionRepository,
	logger *logger.Logger,
) *MergeRequestService {
	return &MergeRequestService{
		mrRepo:       mrRepo,
		changeRepo:   changeRepo,
		commentRepo:  commentRepo,
		ontologyRepo: ontologyRepo,
		entityRepo:   entityRepo,
		permRepo:     permRepo,
		logger:       logger.Component("service/mergerequest"),
	}
}

type CreateMergeRequestInput struct {
	OntologyID  uuid.UUID
	Title       string
	Description string
	CreatorID   string
	Priority    domain.Priority // defaults to normal
}

func (in *CreateMergeRequestInput) validate() error {
	return ValidateStruct(in,
		Field(&in.Title, Required, Length(1, 500)),
		Field(&in.Description, Length(0, 10000)),
		Field(&in.CreatorID, Required, Length(1, 255)),
	)
}

func (s *MergeRequestService) CreateMergeRequest(ctx context.Context, in *CreateMergeRequestInput) (*domain.MergeRequest, error) {
	if err := in.validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrValidation, err)
	}

	priority := in.Priority
	if priority == "" {
		priority = domain.PriorityNormal
	}
	if !priority.IsValid() {
		return nil, fmt.Errorf("%w: unknown priority %q", domain.ErrValidation, priority)
	}

	if _, err := s.ontologyRepo.GetByID(ctx, in.OntologyID); err != nil {
		return nil, fmt.Errorf("get ontology: %w", err)
	}

	if err := s.requireEdit(ctx, in.OntologyID, in.CreatorID); err != nil {
		return nil, err
	}

	mr := &domain.MergeRequest{
		ID:          uuid.New(),
		OntologyID:  in.OntologyID,
		Title:       in.Title,
		Description: in.Description,
		Status:      domain.StatusDraft,
		Priority:    priority,
		CreatedBy:   in.CreatorID,
		Version:     1,
	}

	if err := s.mrRepo.Create(ctx, mr); err != nil {
		return nil, fmt.Errorf("create merge request: %w", err)
	}

	created, err := s.mrRepo.GetByID(ctx, mr.ID)
	if err != nil {
		return nil, fmt.Errorf("get created merge request: %w", err)
	}

	s.logger.Info("merge request created",
		"merge_request_id", created.ID,
		"ontology_id", created.OntologyID,
		"created_by", created.CreatedBy,
	)

	return created, nil
}

func (s *MergeRequestService) GetMergeRequest(ctx context.Context, id uuid.UUID) (*domain.MergeRequest, error) {
	mr, err := s.mrRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get merge request: %w", err)
	}
	return mr, nil
}

// Submit moves a draft or changes-requested merge request into review.
// The creator may always submit their own request; anyone else needs
// edit permission on the ontology.
func (s *MergeRequestService) Submit(ctx context.Context, id uuid.UUID, actorID, reviewerID string) error {
	mr, err := s.mrRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get merge request: %w", err)
	}

	if mr.CreatedBy != actorID {
		if err := s.requireEdit(ctx, mr.OntologyID, actorID); err != nil {
			return err
		}
	}

	next, err := domain.NextStatus(mr.Status, domain.OperationSubmit)
	if err != nil {
		return err
	}

	mr.Status = next
	if mr.SubmittedAt == nil {
		now := time.Now()
		mr.SubmittedAt = &now
	}
	if reviewerID != "" {
		mr.AssignedReviewer = reviewerID
	}

	comment := domain.NewSystemComment(mr.ID, actorID, "Submitted for review")
	if err := s.mrRepo.UpdateWithComment(ctx, mr, comment); err != nil {
		return fmt.Errorf("persist submit: %w", err)
	}

	s.logger.Info("merge request submitted",
		"merge_request_id", mr.ID,
		"actor_id", actorID,
		"reviewer_id", reviewerID,
	)

	return nil
}

// Approve accepts a pending merge request. Comments are optional.
func (s *MergeRequestService) Approve(ctx context.Context, id uuid.UUID, reviewerID, comments string) error {
	text := "Approved"
	if strings.TrimSpace(comments) != "" {
		text = "Approved: " + comments
	}
	return s.review(ctx, id, reviewerID, comments, domain.OperationApprove, text)
}

// Reject declines a pending merge request. Comments are required.
func (s *MergeRequestService) Reject(ctx context.Context, id uuid.UUID, reviewerID, comments string) error {
	if strings.TrimSpace(comments) == "" {
		return fmt.Errorf("%w: comments are required to reject", domain.ErrValidation)
	}
	return s.review(ctx, id, reviewerID, comments, domain.OperationReject, "Rejected: "+comments)
}

// RequestChanges sends a pending merge request back to its author.
// Comments are required.
func (s *MergeRequestService) RequestChanges(ctx context.Context, id uuid.UUID, reviewerID, comments string) error {
	if strings.TrimSpace(comments) == "" {
		return fmt.Errorf("%w: comments are required to request changes", domain.ErrValidation)
	}
	return s.review(ctx, id, reviewerID, comments, domain.OperationRequestChanges, "Changes requested: "+comments)
}

// review applies one of the three reviewer verdicts. All of them need
// manage permission and are only valid from pending_review.
func (s *MergeRequestService) review(ctx context.Context, id uuid.UUID, reviewerID, comments string, op domain.Operation, commentText string) error {
	mr, err := s.mrRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get merge request: %w", err)
	}

	if err := s.requireManage(ctx, mr.OntologyID, reviewerID); err != nil {
		return err
	}

	next, err := domain.NextStatus(mr.Status, op)
	if err != nil {
		return err
	}

	mr.Status = next
	if mr.ReviewedBy == "" {
		mr.ReviewedBy = reviewerID
	}
	if mr.ReviewedAt == nil {
		now := time.Now()
		mr.ReviewedAt = &now
	}
	if strings.TrimSpace(comments) != "" {
		mr.ReviewComments = comments
	}

	comment := domain.NewSystemComment(mr.ID, reviewerID, commentText)
	if err := s.mrRepo.UpdateWithComment(ctx, mr, comment); err != nil {
		return fmt.Errorf("persist %s: %w", op, err)
	}

	s.logger.Info("merge request reviewed",
		"merge_request_id", mr.ID,
		"operation", op,
		"reviewer_id", reviewerID,
	)

	return nil
}

// Merge integrates an approved merge request into the ontology. It
// re-runs conflict detection against the live entity state first; a
// positive detection blocks the merge and returns false without error,
// leaving the request approved so the caller can resolve and retry.
func (s *MergeRequestService) Merge(ctx context.Context, id uuid.UUID, userID string) (bool, error) {
	mr, err := s.mrRepo.GetByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("get merge request: %w", err)
	}

	if err := s.requireManage(ctx, mr.OntologyID, userID); err != nil {
		return false, err
	}

	next, err := domain.NextStatus(mr.Status, domain.OperationMerge)
	if err != nil {
		return false, err
	}

	changes, err := s.changeRepo.ListByMergeRequest(ctx, mr.ID)
	if err != nil {
		return false, fmt.Errorf("list changes: %w", err)
	}

	if err := s.refreshConflicts(ctx, mr, changes); err != nil {
		return false, err
	}

	if mr.Stats.HasConflicts {
		s.logger.Info("merge blocked by conflicts",
			"merge_request_id", mr.ID,
			"user_id", userID,
		)
		return false, nil
	}

	mr.Status = next
	now := time.Now()
	mr.MergedAt = &now

	comment := domain.NewSystemComment(mr.ID, userID, "Merged into ontology")
	if err := s.mrRepo.ApplyMerge(ctx, mr, comment, changes); err != nil {
		return false, fmt.Errorf("apply merge: %w", err)
	}

	s.logger.Info("merge request merged",
		"merge_request_id", mr.ID,
		"ontology_id", mr.OntologyID,
		"user_id", userID,
		"changes_applied", len(changes),
	)

	return true, nil
}

// Close abandons a merge request from any non-terminal status. Allowed
// for the creator or anyone with manage permission.
func (s *MergeRequestService) Close(ctx context.Context, id uuid.UUID, userID string) error {
	mr, err := s.mrRepo.GetByID(ctx, id)
	if err != nil {
		return fmt.Errorf("get merge request: %w", err)
	}

	if mr.CreatedBy != userID {
		if err := s.requireManage(ctx, mr.OntologyID, userID); err != nil {
			return err
		}
	}

	next, err := domain.NextStatus(mr.Status, domain.OperationClose)
	if err != nil {
		return err
	}

	mr.Status = next
	comment := domain.NewSystemComment(mr.ID, userID, "Closed without merging")
	if err := s.mrRepo.UpdateWithComment(ctx, mr, comment); err != nil {
		return fmt.Errorf("persist close: %w", err)
	}

	s.logger.Info("merge request closed",
		"merge_request_id", mr.ID,
		"user_id", userID,
	)

	return nil
}

type AddChangeInput struct {
	MergeRequestID uuid.UUID
	ActorID        string
	EntityType     domain.EntityType
	ChangeType     domain.ChangeType
	EntityID       uuid.UUID // may be zero for adds; generated then
	Payload        json.RawMessage
}

func (in *AddChangeInput) validate() error {
	if !in.EntityType.IsValid() {
		return fmt.Errorf("%w: unknown entity type %q", domain.ErrValidation, in.EntityType)
	}
	if !in.ChangeType.IsValid() {
		return fmt.Errorf("%w: unknown change type %q", domain.ErrValidation, in.ChangeType)
	}
	if in.ActorID == "" {
		return fmt.Errorf("%w: actor id is required", domain.ErrValidation)
	}
	if in.ChangeType != domain.ChangeDelete && len(in.Payload) == 0 {
		return fmt.Errorf("%w: payload is required for %s changes", domain.ErrValidation, in.ChangeType)
	}
	if in.ChangeType != domain.ChangeAdd && in.EntityID == uuid.Nil {
		return fmt.Errorf("%w: entity id is required for %s changes", domain.ErrValidation, in.ChangeType)
	}
	return nil
}

// AddChange appends a proposed mutation to a merge request, capturing
// the entity's live state as the base snapshot, then recomputes the
// request's statistics.
func (s *MergeRequestService) AddChange(ctx context.Context, in *AddChangeInput) (*domain.MergeRequestChange, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	mr, err := s.mrRepo.GetByID(ctx, in.MergeRequestID)
	if err != nil {
		return nil, fmt.Errorf("get merge request: %w", err)
	}

	if mr.CreatedBy != in.ActorID {
		if err := s.requireEdit(ctx, mr.OntologyID, in.ActorID); err != nil {
			return nil, err
		}
	}

	if !mr.CanAppendChanges() {
		return nil, &domain.InvalidTransitionError{Status: mr.Status, Operation: "add_change"}
	}

	entityID := in.EntityID
	if entityID == uuid.Nil {
		entityID = uuid.New()
	}

	change := &domain.MergeRequestChange{
		ID:             uuid.New(),
		MergeRequestID: mr.ID,
		EntityType:     in.EntityType,
		ChangeType:     in.ChangeType,
		EntityID:       entityID,
		Payload:        in.Payload,
		BaseCapturedAt: time.Now(),
	}

	// The base snapshot is whatever the ontology holds right now; nil
	// for entities that do not exist yet.
	live, found, err := s.entityRepo.GetLiveState(ctx, mr.OntologyID, in.EntityType, entityID)
	if err != nil {
		return nil, fmt.Errorf("read live state: %w", err)
	}
	if found {
		change.BaseSnapshot = live.Payload
	}

	if err := s.changeRepo.Create(ctx, change); err != nil {
		return nil, fmt.Errorf("create change: %w", err)
	}

	changes, err := s.changeRepo.ListByMergeRequest(ctx, mr.ID)
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}

	mr.Stats = domain.ComputeChangeStats(changes)
	if err := s.mrRepo.UpdateStats(ctx, mr); err != nil {
		return nil, fmt.Errorf("update stats: %w", err)
	}

	s.logger.Info("change added",
		"merge_request_id", mr.ID,
		"change_id", change.ID,
		"entity_type", change.EntityType,
		"change_type", change.ChangeType,
		"total_changes", mr.Stats.TotalChanges(),
	)

	for _, c := range changes {
		if c.ID == change.ID {
			return c, nil
		}
	}
	return change, nil
}

// AddComment appends a user remark to the audit trail, optionally
// scoped to one change.
func (s *MergeRequestService) AddComment(ctx context.Context, id uuid.UUID, authorID, text string, changeID *uuid.UUID) (*domain.MergeRequestComment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: comment text is required", domain.ErrValidation)
	}

	mr, err := s.mrRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get merge request: %w", err)
	}

	if mr.CreatedBy != authorID {
		if err := s.requireEdit(ctx, mr.OntologyID, authorID); err != nil {
			return nil, err
		}
	}

	comment := domain.NewUserComment(mr.ID, authorID, text, changeID)
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("create comment: %w", err)
	}

	s.logger.Info("comment added",
		"merge_request_id", mr.ID,
		"author_id", authorID,
		"change_scoped", changeID != nil,
	)

	return comment, nil
}

func (s *MergeRequestService) ListChanges(ctx context.Context, id uuid.UUID) ([]*domain.MergeRequestChange, error) {
	if _, err := s.mrRepo.GetByID(ctx, id); err != nil {
		return nil, fmt.Errorf("get merge request: %w", err)
	}
	changes, err := s.changeRepo.ListByMergeRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list changes: %w", err)
	}
	return changes, nil
}

func (s *MergeRequestService) ListComments(ctx context.Context, id uuid.UUID) ([]*domain.MergeRequestComment, error) {
	if _, err := s.mrRepo.GetByID(ctx, id); err != nil {
		return nil, fmt.Errorf("get merge request: %w", err)
	}
	comments, err := s.commentRepo.ListByMergeRequest(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	return comments, nil
}

// PendingReviewCount returns the number of merge requests awaiting
// review on an ontology.
func (s *MergeRequestService) PendingReviewCount(ctx context.Context, ontologyID uuid.UUID) (int, error) {
	if _, err := s.ontologyRepo.GetByID(ctx, ontologyID); err != nil {
		return 0, fmt.Errorf("get ontology: %w", err)
	}

	count, err := s.mrRepo.PendingReviewCount(ctx, ontologyID)
	if err != nil {
		return 0, fmt.Errorf("count pending review: %w", err)
	}

	return count, nil
}

func (s *MergeRequestService) requireEdit(ctx context.Context, ontologyID uuid.UUID, userID string) error {
	ok, err := s.permRepo.CanEdit(ctx, ontologyID, userID)
	if err != nil {
		return fmt.Errorf("check edit permission: %w", err)
	}
	if !ok {
		return domain.ErrUnauthorized
	}
	return nil
}

func (s *MergeRequestService) requireManage(ctx context.Context, ontologyID uuid.UUID, userID string) error {
	ok, err := s.permRepo.CanManage(ctx, ontologyID, userID)
	if err != nil {
		return fmt.Errorf("check manage permission: %w", err)
	}
	if !ok {
		return domain.ErrUnauthorized
	}
	return nil
}
